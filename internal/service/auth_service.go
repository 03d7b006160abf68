package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/scout-reports/internal/logger"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
	"github.com/ignatzorin/scout-reports/internal/validation"
)

// AuthRepository описывает зависимости AuthService от слоя хранилища.
type AuthRepository interface {
	CreateWithProfile(ctx context.Context, user *models.User, profile *models.Profile) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, refreshToken string) (*models.Session, error)
	DeleteSession(ctx context.Context, refreshToken string) error
}

// RoleCache сбрасывает закешированную роль при выходе.
type RoleCache interface {
	Invalidate(userID uuid.UUID)
}

// AuthService регистрация, вход и выход. Это внешний поставщик идентичности
// для остальных сервисов: они получают только идентификатор пользователя.
type AuthService struct {
	repo              AuthRepository
	tokens            *TokenManager
	roles             RoleCache
	allowRangerSignup bool
}

// SignUpInput данные регистрации.
type SignUpInput struct {
	Email    string
	Password string
	Username string
	Role     models.Role
}

// SignInInput данные для входа.
type SignInInput struct {
	Email    string
	Password string
}

// SessionMeta сведения о клиенте для сессии.
type SessionMeta struct {
	UserAgent string
	IP        string
}

// AuthResult итог регистрации или входа.
type AuthResult struct {
	User      *models.User    `json:"user"`
	Profile   *models.Profile `json:"profile,omitempty"`
	TokenPair *TokenPair      `json:"tokens"`
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(repo AuthRepository, tokens *TokenManager, roles RoleCache, allowRangerSignup bool) *AuthService {
	return &AuthService{
		repo:              repo,
		tokens:            tokens,
		roles:             roles,
		allowRangerSignup: allowRangerSignup,
	}
}

// SignUp создаёт пользователя и профиль. Роль ranger доступна только при включённой настройке.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput, meta SessionMeta) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInvalidInput, err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInvalidInput, err.Error())
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = deriveUsername(email)
	}
	if err := validation.ValidateUsername(username); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInvalidInput, err.Error())
	}

	role := in.Role
	switch {
	case role == "":
		role = models.RoleScout
	case !role.Valid():
		return nil, apperror.New(apperror.ErrCodeInvalidInput, "неизвестная роль")
	case role == models.RoleRanger && !s.allowRangerSignup:
		return nil, apperror.New(apperror.ErrCodeForbidden, "регистрация рейнджеров закрыта")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	user := &models.User{Email: email, PasswordHash: string(hash)}
	profile := &models.Profile{Username: username, Role: role}
	if err := s.repo.CreateWithProfile(ctx, user, profile); err != nil {
		return nil, err
	}

	pair, err := s.openSession(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Profile: profile, TokenPair: pair}, nil
}

// SignIn проверяет учётные данные и выпускает токены.
func (s *AuthService) SignIn(ctx context.Context, in SignInInput, meta SessionMeta) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	if err := s.repo.UpdateLastLoginAt(ctx, user.ID); err != nil {
		logger.Get().WithFields(logrus.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Warn("auth service: не удалось обновить last_login_at")
	}

	pair, err := s.openSession(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, TokenPair: pair}, nil
}

// Refresh меняет refresh токен на новую пару.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta SessionMeta) (*TokenPair, error) {
	userID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "refresh токен невалиден")
	}
	if _, err := s.repo.GetSession(ctx, refreshToken); err != nil {
		return nil, err
	}
	if err := s.repo.DeleteSession(ctx, refreshToken); err != nil {
		return nil, err
	}
	return s.openSession(ctx, userID, meta)
}

// SignOut удаляет сессию и сбрасывает кеш роли.
func (s *AuthService) SignOut(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	if refreshToken != "" {
		if err := s.repo.DeleteSession(ctx, refreshToken); err != nil {
			return err
		}
	}
	if s.roles != nil {
		s.roles.Invalidate(userID)
	}
	return nil
}

func (s *AuthService) openSession(ctx context.Context, userID uuid.UUID, meta SessionMeta) (*TokenPair, error) {
	pair, refreshExp, err := s.tokens.GeneratePair(userID)
	if err != nil {
		return nil, fmt.Errorf("auth service: выпуск токенов: %w", err)
	}

	session := &models.Session{
		UserID:       userID,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    refreshExp,
	}
	if meta.UserAgent != "" {
		session.UserAgent = &meta.UserAgent
	}
	if meta.IP != "" {
		session.IPAddress = &meta.IP
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return pair, nil
}

// deriveUsername формирует username из email.
func deriveUsername(email string) string {
	name := strings.Split(email, "@")[0]
	name = strings.NewReplacer(".", "_", "+", "_", "-", "_").Replace(name)
	name = strings.ToLower(name)
	if len(name) < 3 || (name[0] >= '0' && name[0] <= '9') {
		name = "scout_" + strings.ReplaceAll(uuid.NewString()[:6], "-", "")
	}
	if len(name) > 30 {
		name = name[:30]
	}
	return name
}
