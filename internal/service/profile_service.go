package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/visibility"
)

// AchievementDef описание достижения в каталоге.
type AchievementDef struct {
	Key         string `json:"key"`
	Emoji       string `json:"emoji"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scoutAchievements = []AchievementDef{
	{"first_sighting", "🌱", "First Sighting", "Logged your 1st plant"},
	{"explorer", "🗺️", "Explorer", "Logged 10 plants"},
	{"veteran_scout", "🏅", "Veteran Scout", "Logged 50 plants"},
	{"invasive_hunter", "🎯", "Invasive Hunter", "Detected invasive species"},
	{"fire_watch", "🔥", "Fire Watch", "Identified critical fire hazard"},
	{"century_club", "💯", "Century Club", "Reached 100 XP"},
	{"master_scout", "⭐", "Master Scout", "Reached 500 XP"},
	{"legend", "👑", "Legend", "Reached 1000 XP"},
}

var rangerAchievements = []AchievementDef{
	{"first_resolution", "✅", "First Resolution", "Resolved your 1st threat"},
	{"sector_guardian", "🛡️", "Sector Guardian", "Managed 10 threats"},
	{"crisis_manager", "🚨", "Crisis Manager", "Resolved 50 threats"},
	{"invasive_eliminator", "🎯", "Invasive Eliminator", "Managed invasive species threats"},
	{"fire_watch", "🔥", "Fire Watch", "Identified critical fire hazard"},
	{"efficiency_expert", "⚡", "Efficiency Expert", "Maintained 90%+ resolution rate"},
	{"veteran_ranger", "⭐", "Veteran Ranger", "5 years of service"},
	{"legend_ranger", "👑", "Legend Ranger", "1000+ reports resolved"},
}

// AchievementCatalogue каталог достижений для роли.
func AchievementCatalogue(role models.Role) []AchievementDef {
	if role == models.RoleRanger {
		return rangerAchievements
	}
	return scoutAchievements
}

// AchievementView достижение каталога с отметкой о получении.
type AchievementView struct {
	AchievementDef
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// ProfileView страница профиля.
type ProfileView struct {
	Profile         *models.Profile   `json:"profile"`
	Level           int               `json:"level"`
	XPInLevel       int               `json:"xp_in_level"`
	XPForNextLevel  int               `json:"xp_for_next_level"`
	LevelProgress   float64           `json:"level_progress"`
	OverallProgress float64           `json:"overall_progress"`
	Achievements    []AchievementView `json:"achievements"`
}

// ProfileStats статистика профиля. Поля сектора заполняются только для рейнджера.
type ProfileStats struct {
	models.ReportStats
	Sector *models.SectorMetrics `json:"sector,omitempty"`
}

// ProfileStore чтение профиля и достижений.
type ProfileStore interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	ListAchievements(ctx context.Context, userID uuid.UUID) ([]models.Achievement, error)
}

// ReportStatsStore агрегаты по отчётам.
type ReportStatsStore interface {
	StatsForUser(ctx context.Context, userID uuid.UUID) (*models.ReportStats, error)
	SectorMetrics(ctx context.Context, floor models.HazardRating, dayStart time.Time) (*models.SectorMetrics, error)
}

type ProfileService struct {
	profiles ProfileStore
	reports  ReportStatsStore
	now      func() time.Time
}

func NewProfileService(profiles ProfileStore, reports ReportStatsStore) *ProfileService {
	return &ProfileService{profiles: profiles, reports: reports, now: time.Now}
}

// Get профиль с уровнем, прогрессом и каталогом достижений.
func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*ProfileView, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlocked, err := s.profiles.ListAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlockedAt := make(map[string]time.Time, len(unlocked))
	for _, a := range unlocked {
		unlockedAt[a.AchievementKey] = a.UnlockedAt
	}

	catalogue := AchievementCatalogue(profile.Role)
	views := make([]AchievementView, 0, len(catalogue))
	for _, def := range catalogue {
		v := AchievementView{AchievementDef: def}
		if at, ok := unlockedAt[def.Key]; ok {
			at := at
			v.Unlocked = true
			v.UnlockedAt = &at
		}
		views = append(views, v)
	}

	xpInLevel := profile.XPPoints % models.XPPerLevel
	return &ProfileView{
		Profile:         profile,
		Level:           profile.Level(),
		XPInLevel:       xpInLevel,
		XPForNextLevel:  models.XPPerLevel,
		LevelProgress:   float64(xpInLevel) / models.XPPerLevel * 100,
		OverallProgress: math.Min(float64(profile.XPPoints)/models.XPProgressCap*100, 100),
		Achievements:    views,
	}, nil
}

// Stats количество отчётов пользователя, для рейнджера ещё и показатели сектора.
func (s *ProfileService) Stats(ctx context.Context, userID uuid.UUID) (*ProfileStats, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats, err := s.reports.StatsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &ProfileStats{ReportStats: *stats}

	if profile.Role == models.RoleRanger {
		sector, err := s.reports.SectorMetrics(ctx, visibility.RangerMinHazard, startOfDay(s.now()))
		if err != nil {
			return nil, err
		}
		out.Sector = sector
	}
	return out, nil
}
