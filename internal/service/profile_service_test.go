package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
)

type fakeProfileStore struct {
	profiles     map[uuid.UUID]*models.Profile
	achievements map[uuid.UUID][]models.Achievement
}

func (f *fakeProfileStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, apperror.ErrProfileNotFound
}

func (f *fakeProfileStore) ListAchievements(ctx context.Context, userID uuid.UUID) ([]models.Achievement, error) {
	return f.achievements[userID], nil
}

type fakeStatsStore struct {
	stats       models.ReportStats
	sector      models.SectorMetrics
	sectorCalls int
}

func (f *fakeStatsStore) StatsForUser(ctx context.Context, userID uuid.UUID) (*models.ReportStats, error) {
	s := f.stats
	return &s, nil
}

func (f *fakeStatsStore) SectorMetrics(ctx context.Context, floor models.HazardRating, dayStart time.Time) (*models.SectorMetrics, error) {
	f.sectorCalls++
	s := f.sector
	return &s, nil
}

func TestProfileService_Get_Scout(t *testing.T) {
	id := uuid.New()
	unlockedAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeProfileStore{
		profiles: map[uuid.UUID]*models.Profile{
			id: {ID: id, Username: "fern_finder", Role: models.RoleScout, XPPoints: 450},
		},
		achievements: map[uuid.UUID][]models.Achievement{
			id: {{UserID: id, AchievementKey: "first_sighting", UnlockedAt: unlockedAt}},
		},
	}

	svc := NewProfileService(store, &fakeStatsStore{})
	view, err := svc.Get(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, 3, view.Level)
	assert.Equal(t, 50, view.XPInLevel)
	assert.Equal(t, 25.0, view.LevelProgress)
	assert.Equal(t, 45.0, view.OverallProgress)

	require.Len(t, view.Achievements, 8)
	assert.Equal(t, "first_sighting", view.Achievements[0].Key)
	assert.True(t, view.Achievements[0].Unlocked)
	assert.Equal(t, unlockedAt, *view.Achievements[0].UnlockedAt)
	assert.False(t, view.Achievements[1].Unlocked)
	assert.Nil(t, view.Achievements[1].UnlockedAt)
}

func TestProfileService_Get_RangerCatalogueAndCap(t *testing.T) {
	id := uuid.New()
	store := &fakeProfileStore{
		profiles: map[uuid.UUID]*models.Profile{
			id: {ID: id, Username: "ranger_sam", Role: models.RoleRanger, XPPoints: 2400},
		},
	}

	view, err := NewProfileService(store, &fakeStatsStore{}).Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 100.0, view.OverallProgress)
	assert.Equal(t, 13, view.Level)
	assert.Equal(t, "first_resolution", view.Achievements[0].Key)
	assert.Equal(t, "legend_ranger", view.Achievements[len(view.Achievements)-1].Key)
}

func TestProfileService_Get_NotFound(t *testing.T) {
	_, err := NewProfileService(&fakeProfileStore{}, &fakeStatsStore{}).Get(context.Background(), uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestProfileService_Stats(t *testing.T) {
	scout, ranger := uuid.New(), uuid.New()
	store := &fakeProfileStore{profiles: map[uuid.UUID]*models.Profile{
		scout:  {ID: scout, Role: models.RoleScout},
		ranger: {ID: ranger, Role: models.RoleRanger},
	}}
	stats := &fakeStatsStore{
		stats:  models.ReportStats{Total: 12, Invasive: 5},
		sector: models.SectorMetrics{ActiveThreats: 3, ResolutionRate: 40},
	}
	svc := NewProfileService(store, stats)

	s, err := svc.Stats(context.Background(), scout)
	require.NoError(t, err)
	assert.Equal(t, 12, s.Total)
	assert.Equal(t, 5, s.Invasive)
	assert.Nil(t, s.Sector)
	assert.Equal(t, 0, stats.sectorCalls)

	r, err := svc.Stats(context.Background(), ranger)
	require.NoError(t, err)
	require.NotNil(t, r.Sector)
	assert.Equal(t, 3, r.Sector.ActiveThreats)
	assert.Equal(t, 1, stats.sectorCalls)
}
