package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/scout-reports/internal/ai"
	"github.com/ignatzorin/scout-reports/internal/dto"
	"github.com/ignatzorin/scout-reports/internal/geo"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
	"github.com/ignatzorin/scout-reports/internal/service"
)

var errAlreadyResolved = apperror.New(apperror.ErrCodeConflict, "отчёт уже закрыт")

// memReportStore хранит отчёты в памяти и применяет фильтры так же, как SQL выборка.
type memReportStore struct {
	mu      sync.Mutex
	reports []models.Report
	inserts []models.NewReport
	clock   time.Time
}

func (s *memReportStore) Insert(ctx context.Context, in *models.NewReport) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Add(time.Second)
	id := uuid.New()
	s.inserts = append(s.inserts, *in)
	s.reports = append(s.reports, models.Report{
		ID:              id,
		UserID:          in.UserID,
		CreatedAt:       s.clock,
		UpdatedAt:       s.clock,
		SpeciesName:     in.SpeciesName,
		Description:     in.Description,
		HazardRating:    in.HazardRating,
		IsInvasive:      in.IsInvasive,
		ConfidenceScore: in.ConfidenceScore,
		ImageURL:        in.ImageURL,
		Location:        geo.NewLocation(in.LocationWKT),
		Status:          models.ReportStatusPending,
	})
	return id, nil
}

func (s *memReportStore) List(ctx context.Context, f models.ReportFilter) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Report, 0, len(s.reports))
	for _, r := range s.reports {
		if f.OwnerID != nil && r.UserID != *f.OwnerID {
			continue
		}
		if f.InvasiveMinHazard != nil && !(r.IsInvasive && r.HazardRating.AtLeast(*f.InvasiveMinHazard)) {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if len(f.Hazards) > 0 && !containsHazard(f.Hazards, r.HazardRating) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memReportStore) Resolve(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reports {
		if s.reports[i].ID != id {
			continue
		}
		if s.reports[i].Status == models.ReportStatusResolved {
			return nil, errAlreadyResolved
		}
		s.reports[i].Status = models.ReportStatusResolved
		s.reports[i].UpdatedAt = time.Now()
		r := s.reports[i]
		return &r, nil
	}
	return nil, apperror.ErrReportNotFound
}

func (s *memReportStore) SectorMetrics(ctx context.Context, floor models.HazardRating, dayStart time.Time) (*models.SectorMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &models.SectorMetrics{}
	for _, r := range s.reports {
		if !r.IsInvasive || !r.HazardRating.AtLeast(floor) {
			continue
		}
		m.Total++
		switch r.Status {
		case models.ReportStatusPending:
			m.ActiveThreats++
		case models.ReportStatusResolved:
			m.Resolved++
			if !r.UpdatedAt.Before(dayStart) {
				m.ResolvedToday++
			}
		}
	}
	m.ComputeResolutionRate()
	return m, nil
}

func (s *memReportStore) StatsForUser(ctx context.Context, userID uuid.UUID) (*models.ReportStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &models.ReportStats{}
	for _, r := range s.reports {
		if r.UserID == userID {
			st.Total++
			if r.IsInvasive {
				st.Invasive++
			}
		}
	}
	return st, nil
}

func containsHazard(hs []models.HazardRating, h models.HazardRating) bool {
	for _, x := range hs {
		if x == h {
			return true
		}
	}
	return false
}

// fakeClassifier возвращает заранее заданный ответ модели.
type fakeClassifier struct {
	mu     sync.Mutex
	result *ai.Classification
	err    error
	calls  []ai.ClassificationRequest
}

func (f *fakeClassifier) Classify(ctx context.Context, req ai.ClassificationRequest) (*ai.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	c := *f.result
	return &c, nil
}

func (f *fakeClassifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type staticRoles map[uuid.UUID]models.Role

func (s staticRoles) Resolve(ctx context.Context, userID uuid.UUID) (models.Role, error) {
	if role, ok := s[userID]; ok {
		return role, nil
	}
	return "", errors.New("профиль не найден")
}

func newTestTokens() *service.TokenManager {
	return service.NewTokenManager(
		"handlers-test-access-secret-0123456789",
		"handlers-test-refresh-secret-0123456789",
		time.Hour, 24*time.Hour,
	)
}

func accessToken(t *testing.T, tokens *service.TokenManager, userID uuid.UUID) string {
	t.Helper()
	pair, _, err := tokens.GeneratePair(userID)
	require.NoError(t, err)
	return pair.AccessToken
}

func doJSON(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newRequestAs(method, path string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if userID != uuid.Nil {
		req.Header.Set("X-Test-User", userID.String())
	}
	return req
}

func doRequest(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data any) dto.RawEnvelope {
	t.Helper()
	var env dto.RawEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func init() {
	gin.SetMode(gin.TestMode)
}
