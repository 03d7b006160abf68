package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ignatzorin/scout-reports/internal/dto"
	"github.com/ignatzorin/scout-reports/internal/models"
)

var errNoToken = errors.New("scout: нужен токен, задайте --token или SCOUT_TOKEN")

// subjectFromToken достаёт идентификатор пользователя из access токена без
// проверки подписи. Подпись проверит сервер.
func subjectFromToken(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, errNoToken
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return uuid.Nil, fmt.Errorf("scout: разбор токена: %w", err)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("scout: некорректный subject токена: %w", err)
	}
	return id, nil
}

type profileEnvelope struct {
	Profile models.Profile `json:"profile"`
}

// fetchProfile читает профиль текущего пользователя, роль берётся из него.
func fetchProfile(ctx context.Context, client *http.Client, apiURL, token string) (*models.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(apiURL, "/")+"/api/profile", nil)
	if err != nil {
		return nil, fmt.Errorf("scout: создание запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scout: запрос профиля: %w", err)
	}
	defer resp.Body.Close()

	var env dto.RawEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("scout: разбор ответа (код %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("scout: код ответа %d: %s", resp.StatusCode, env.Error)
	}

	var view profileEnvelope
	if err := json.Unmarshal(env.Data, &view); err != nil {
		return nil, fmt.Errorf("scout: разбор профиля: %w", err)
	}
	return &view.Profile, nil
}
