package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/scout-reports/internal/dto"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
	"github.com/ignatzorin/scout-reports/internal/storage"
)

// StaticIdentity фиксированный пользователь, например из сохранённой сессии CLI.
type StaticIdentity uuid.UUID

// CurrentUserID реализует IdentitySource.
func (s StaticIdentity) CurrentUserID(ctx context.Context) (uuid.UUID, error) {
	id := uuid.UUID(s)
	if id == uuid.Nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}
	return id, nil
}

// StaticLocator всегда возвращает заданную позицию.
type StaticLocator struct {
	Position Position
}

// Locate реализует Locator.
func (l StaticLocator) Locate(ctx context.Context, opts LocateOptions) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	return l.Position, nil
}

// StoreUploader пишет напрямую в хранилище.
type StoreUploader struct {
	Store storage.BlobStore
}

// Upload реализует BlobUploader.
func (u *StoreUploader) Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	if err := u.Store.Put(ctx, objectPath, contentType, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return u.Store.PublicURL(objectPath), nil
}

// HTTPUploader загружает через POST /api/uploads.
type HTTPUploader struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Upload реализует BlobUploader.
func (u *HTTPUploader) Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("path", objectPath); err != nil {
		return "", fmt.Errorf("upload: формирование запроса: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, path.Base(objectPath)))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("upload: формирование запроса: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("upload: формирование запроса: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("upload: формирование запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL(u.BaseURL, "/api/uploads"), &body)
	if err != nil {
		return "", fmt.Errorf("upload: создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	setBearer(req, u.Token)

	var out dto.UploadResponse
	if err := doEnvelope(httpClient(u.HTTPClient), req, &out); err != nil {
		return "", err
	}
	return out.PublicURL, nil
}

// HTTPIngestionClient вызывает POST /api/analyze.
type HTTPIngestionClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Analyze реализует IngestionClient.
func (c *HTTPIngestionClient) Analyze(ctx context.Context, imageURL string, lat, long float64) (*models.ClassificationResult, error) {
	payload, err := json.Marshal(dto.AnalyzeRequest{ImageURL: imageURL, Lat: &lat, Long: &long})
	if err != nil {
		return nil, fmt.Errorf("upload: сериализация запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL(c.BaseURL, "/api/analyze"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("upload: создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setBearer(req, c.Token)

	var out models.ClassificationResult
	if err := doEnvelope(httpClient(c.HTTPClient), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doEnvelope выполняет запрос и разбирает {success, data|error}.
// Ошибка сервера возвращается как AppError с его сообщением.
func doEnvelope(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("upload: запрос %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("upload: чтение ответа: %w", err)
	}

	var env dto.RawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("upload: разбор ответа (код %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &apperror.AppError{Code: codeForStatus(resp.StatusCode), Message: msg, HTTPStatus: resp.StatusCode}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("upload: разбор данных: %w", err)
	}
	return nil
}

func codeForStatus(status int) apperror.ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return apperror.ErrCodeInvalidInput
	case http.StatusUnauthorized:
		return apperror.ErrCodeUnauthorized
	case http.StatusForbidden:
		return apperror.ErrCodeForbidden
	case http.StatusNotFound:
		return apperror.ErrCodeNotFound
	default:
		return apperror.ErrCodeInternal
	}
}

func apiURL(base, p string) string {
	return strings.TrimRight(base, "/") + p
}

func setBearer(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func httpClient(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}
