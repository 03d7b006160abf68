package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/scout-reports/internal/ai"
	"github.com/ignatzorin/scout-reports/internal/geo"
	"github.com/ignatzorin/scout-reports/internal/logger"
	"github.com/ignatzorin/scout-reports/internal/metrics"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
	"github.com/ignatzorin/scout-reports/internal/validation"
)

const (
	// DefaultConfidence подставляется, если модель не вернула число.
	DefaultConfidence = 0.75
	// UnidentifiableConfidenceCap верхняя граница уверенности для неопознанного вида.
	UnidentifiableConfidenceCap = 0.3
)

// InvalidRequestMessage текст ошибки для неполного запроса.
const InvalidRequestMessage = "Invalid request: imageUrl, lat, and long are required"

// ReportInserter сохраняет новый отчёт.
type ReportInserter interface {
	Insert(ctx context.Context, in *models.NewReport) (uuid.UUID, error)
}

// SubmitInput тело запроса на анализ. Координаты указателями: отсутствие отличимо от нуля.
type SubmitInput struct {
	ImageURL string   `json:"imageUrl"`
	Lat      *float64 `json:"lat"`
	Long     *float64 `json:"long"`
}

// IngestionService классифицирует фотографию и сохраняет отчёт.
// Состояния между вызовами нет.
type IngestionService struct {
	classifier ai.Classifier
	reports    ReportInserter
	region     ai.Region
	metrics    *metrics.Metrics
}

// NewIngestionService создаёт сервис приёма отчётов.
func NewIngestionService(classifier ai.Classifier, reports ReportInserter, region ai.Region, m *metrics.Metrics) *IngestionService {
	return &IngestionService{
		classifier: classifier,
		reports:    reports,
		region:     region,
		metrics:    m,
	}
}

// Submit проверяет запрос, вызывает модель и сохраняет ровно одну строку.
// При любой ошибке строк не создаётся, повторов нет.
func (s *IngestionService) Submit(ctx context.Context, in SubmitInput, identity uuid.UUID) (*models.ClassificationResult, error) {
	if err := validateSubmit(in); err != nil {
		s.metrics.RecordSubmission(metrics.ResultInvalidInput)
		return nil, err
	}
	if identity == uuid.Nil {
		s.metrics.RecordSubmission(metrics.ResultUnauthorized)
		return nil, apperror.ErrUnauthorized
	}

	lat, long := *in.Lat, *in.Long
	imageURL := strings.TrimSpace(in.ImageURL)

	req := ai.BuildRequest(imageURL, lat, long, s.region)
	started := time.Now()
	classification, err := s.classifier.Classify(ctx, req)
	s.metrics.ObserveClassifier(time.Since(started))
	if err != nil {
		s.metrics.RecordSubmission(metrics.ResultClassifierError)
		logger.Get().WithFields(logrus.Fields{
			"user_id": identity,
			"error":   err.Error(),
		}).Error("ingestion: ошибка классификации")
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeClassifier, err.Error())
	}

	result := NormalizeClassification(classification)

	id, err := s.reports.Insert(ctx, &models.NewReport{
		UserID:          identity,
		SpeciesName:     result.SpeciesName,
		Description:     result.Description,
		HazardRating:    result.HazardRating,
		IsInvasive:      result.IsInvasive,
		ConfidenceScore: result.Confidence,
		ImageURL:        imageURL,
		LocationWKT:     geo.Encode(long, lat),
	})
	if err != nil {
		s.metrics.RecordSubmission(metrics.ResultPersistenceError)
		logger.Get().WithFields(logrus.Fields{
			"user_id": identity,
			"species": result.SpeciesName,
			"error":   err.Error(),
		}).Error("ingestion: не удалось сохранить отчёт")
		return nil, apperror.Wrap(err, apperror.ErrCodePersistence,
			fmt.Sprintf("Failed to save report: %s", persistenceDetail(err)))
	}

	s.metrics.RecordSubmission(metrics.ResultSuccess)
	logger.Get().WithFields(logrus.Fields{
		"user_id":       identity,
		"report_id":     id,
		"species":       result.SpeciesName,
		"hazard_rating": result.HazardRating,
		"is_invasive":   result.IsInvasive,
	}).Info("ingestion: отчёт сохранён")

	return result, nil
}

// NormalizeClassification приводит ответ модели к сохраняемому виду:
// уверенность ограничивается [0,1], для неопознанного вида опасность unknown,
// is_invasive false и уверенность не выше 0.3.
func NormalizeClassification(c *ai.Classification) *models.ClassificationResult {
	confidence := DefaultConfidence
	if c.Confidence != nil && !math.IsNaN(*c.Confidence) && !math.IsInf(*c.Confidence, 0) {
		confidence = math.Min(math.Max(*c.Confidence, 0), 1)
	}

	result := &models.ClassificationResult{
		SpeciesName:  c.SpeciesName,
		IsInvasive:   c.IsInvasive,
		HazardRating: c.HazardRating,
		Description:  c.Description,
		Confidence:   confidence,
	}

	if models.IsUnidentifiableSpecies(c.SpeciesName) {
		result.HazardRating = models.HazardUnknown
		result.IsInvasive = false
		result.Confidence = math.Min(confidence, UnidentifiableConfidenceCap)
	}
	return result
}

func validateSubmit(in SubmitInput) error {
	if validation.ValidateImageURL(in.ImageURL) != nil ||
		validation.ValidateCoordinate("lat", in.Lat) != nil ||
		validation.ValidateCoordinate("long", in.Long) != nil {
		return apperror.New(apperror.ErrCodeInvalidInput, InvalidRequestMessage)
	}
	return nil
}

// persistenceDetail отдаёт текст исходной ошибки хранилища без префиксов пакетов.
func persistenceDetail(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Message
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
