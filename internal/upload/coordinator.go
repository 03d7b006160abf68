// Package upload проводит одну фотографию от выбора файла до сохранённого отчёта:
// проверка, загрузка в хранилище, геолокация и вызов /api/analyze.
package upload

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/scout-reports/internal/goroutine"
	"github.com/ignatzorin/scout-reports/internal/logger"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
	"github.com/ignatzorin/scout-reports/internal/storage"
)

// ErrBusy предыдущая отправка ещё не завершена.
var ErrBusy = errors.New("upload: отправка уже выполняется")

// File выбранная фотография.
type File struct {
	Name         string
	DeclaredType string
	Data         []byte
}

// Position координаты устройства.
type Position struct {
	Lat  float64
	Long float64
}

// LocateOptions параметры однократного запроса геолокации.
type LocateOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// DefaultLocateOptions точная позиция, без кеша, не дольше 10 секунд.
var DefaultLocateOptions = LocateOptions{HighAccuracy: true, Timeout: 10 * time.Second, MaximumAge: 0}

// IdentitySource текущий пользователь.
type IdentitySource interface {
	CurrentUserID(ctx context.Context) (uuid.UUID, error)
}

// BlobUploader загружает байты и возвращает публичный адрес.
type BlobUploader interface {
	Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
}

// Locator однократная геолокация.
type Locator interface {
	Locate(ctx context.Context, opts LocateOptions) (Position, error)
}

// IngestionClient вызывает /api/analyze.
type IngestionClient interface {
	Analyze(ctx context.Context, imageURL string, lat, long float64) (*models.ClassificationResult, error)
}

// NotificationLevel уровень уведомления.
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
)

// Notification сообщение пользователю.
type Notification struct {
	Level   NotificationLevel
	Message string
}

// Notifier показывает уведомления.
type Notifier interface {
	Notify(n Notification)
}

// Coordinator выполняет отправку. Одновременно идёт не больше одной.
type Coordinator struct {
	identity  IdentitySource
	uploader  BlobUploader
	locator   Locator
	ingestion IngestionClient
	notifier  Notifier
	maxBytes  int64
	locate    LocateOptions
	now       func() time.Time
	busy      atomic.Bool
}

// NewCoordinator создаёт координатор.
func NewCoordinator(identity IdentitySource, uploader BlobUploader, locator Locator, ingestion IngestionClient, notifier Notifier, maxBytes int64) *Coordinator {
	return &Coordinator{
		identity:  identity,
		uploader:  uploader,
		locator:   locator,
		ingestion: ingestion,
		notifier:  notifier,
		maxBytes:  maxBytes,
		locate:    DefaultLocateOptions,
		now:       time.Now,
	}
}

// Submit отправляет фотографию. Каждая ошибка даёт ровно одно уведомление, повторов нет.
// Если геолокация не удалась после загрузки, файл остаётся в хранилище.
func (c *Coordinator) Submit(ctx context.Context, f File) (*models.ClassificationResult, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.busy.Store(false)

	result, err := c.submit(ctx, f)
	if err != nil {
		c.notifier.Notify(Notification{Level: LevelError, Message: notificationText(err)})
		return nil, err
	}
	c.notifier.Notify(Notification{
		Level:   LevelSuccess,
		Message: fmt.Sprintf("Report Submitted! Identified: %s", result.SpeciesName),
	})
	return result, nil
}

// Busy true, пока идёт отправка.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

func (c *Coordinator) submit(ctx context.Context, f File) (*models.ClassificationResult, error) {
	mime, sniffedExt, err := ValidateImage(f.DeclaredType, f.Data, c.maxBytes)
	if err != nil {
		return nil, err
	}

	userID, err := c.identity.CurrentUserID(ctx)
	if err != nil || userID == uuid.Nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, MsgUnauthorized)
	}

	ext := storage.ExtensionOf(f.Name)
	if ext == "" {
		ext = sniffedExt
	}
	objectPath := storage.ObjectPath(userID, c.now(), ext)

	publicURL, err := c.uploader.Upload(ctx, objectPath, mime, f.Data)
	if err != nil {
		return nil, &stageError{stage: stageUpload, err: err}
	}

	pos, err := c.locateOnce(ctx)
	if err != nil {
		logger.Get().WithFields(logrus.Fields{
			"object_path": objectPath,
		}).Warn("upload: геолокация не удалась, файл остаётся в хранилище")
		return nil, &stageError{stage: stageGeolocation, err: apperror.Wrap(err, apperror.ErrCodeGeolocation, err.Error())}
	}

	result, err := c.ingestion.Analyze(ctx, publicURL, pos.Lat, pos.Long)
	if err != nil {
		return nil, &stageError{stage: stageAnalyze, err: err}
	}
	return result, nil
}

// errLocateTimeout текст совпадает с сообщением браузера о таймауте геолокации.
var errLocateTimeout = errors.New("timeout expired")

func (c *Coordinator) locateOnce(ctx context.Context) (Position, error) {
	lctx, cancel := context.WithTimeout(ctx, c.locate.Timeout)
	defer cancel()

	type located struct {
		pos Position
		err error
	}
	ch := make(chan located, 1)
	goroutine.SafeGo("upload-locate", func() {
		pos, err := c.locator.Locate(lctx, c.locate)
		ch <- located{pos, err}
	})

	var r located
	select {
	case r = <-ch:
	case <-lctx.Done():
		r.err = lctx.Err()
	}
	if r.err != nil && errors.Is(lctx.Err(), context.DeadlineExceeded) {
		return Position{}, errLocateTimeout
	}
	return r.pos, r.err
}

type stage string

const (
	stageUpload      stage = "Upload failed"
	stageGeolocation stage = "Failed to get location"
	stageAnalyze     stage = "Analysis failed"
)

// stageError связывает ошибку с этапом отправки для текста уведомления.
type stageError struct {
	stage stage
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *stageError) Unwrap() error { return e.err }

func notificationText(err error) string {
	var se *stageError
	if errors.As(err, &se) {
		return fmt.Sprintf("%s: %s", se.stage, apperror.MessageOf(se.err))
	}
	return apperror.MessageOf(err)
}
