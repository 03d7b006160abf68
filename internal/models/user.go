package models

import (
	"time"

	"github.com/google/uuid"
)

// User учётная запись для входа.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Profile публичный профиль, создаётся при регистрации.
type Profile struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	AvatarURL *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	Role      Role      `db:"role" json:"role"`
	XPPoints  int       `db:"xp_points" json:"xp_points"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Level уровень профиля, начиная с 1.
func (p Profile) Level() int {
	return p.XPPoints/XPPerLevel + 1
}

// Session сохранённая refresh-сессия.
type Session struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	UserAgent    *string   `db:"user_agent" json:"user_agent,omitempty"`
	IPAddress    *string   `db:"ip_address" json:"ip_address,omitempty"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Achievement разблокированное достижение. Таблица только для чтения.
type Achievement struct {
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	AchievementKey string    `db:"achievement_key" json:"achievement_key"`
	UnlockedAt     time.Time `db:"unlocked_at" json:"unlocked_at"`
}
