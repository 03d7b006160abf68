// Package storage хранит фотографии отчётов в локальном каталоге или в S3 совместимом бакете.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/scout-reports/internal/config"
)

// CacheControl заголовок для загруженных фотографий.
const CacheControl = "max-age=3600"

// BlobStore хранилище фотографий.
type BlobStore interface {
	// Put сохраняет объект по относительному пути.
	Put(ctx context.Context, objectPath, contentType string, r io.Reader) error
	// PublicURL адрес, по которому объект доступен модели и клиентам.
	PublicURL(objectPath string) string
	Delete(ctx context.Context, objectPath string) error
}

// New создаёт хранилище по настройкам.
func New(ctx context.Context, cfg config.BlobConfig, maxBytes int64) (BlobStore, error) {
	switch cfg.Backend {
	case config.BlobBackendLocal:
		return NewLocalStore(cfg.LocalPath, cfg.PublicBaseURL, maxBytes)
	case config.BlobBackendS3:
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("storage: неизвестный backend %q", cfg.Backend)
	}
}

// ObjectPath путь объекта вида <userID>/<время ISO-8601 UTC>.<ext>, двоеточия заменены на дефисы.
func ObjectPath(userID uuid.UUID, at time.Time, ext string) string {
	ts := at.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.ReplaceAll(ts, ":", "-")
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "jpg"
	}
	return userID.String() + "/" + ts + "." + ext
}

// ExtensionOf расширение из имени файла без точки.
func ExtensionOf(name string) string {
	return strings.TrimPrefix(path.Ext(sanitizeFilename(name)), ".")
}

func joinURL(base, objectPath string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.TrimPrefix(objectPath, "/")
}

// cleanObjectPath отбрасывает попытки выйти за пределы хранилища.
func cleanObjectPath(objectPath string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(objectPath, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("storage: пустой путь объекта")
	}
	return cleaned, nil
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "")
	if name == "" || name == "/" || name == "." {
		name = "photo"
	}
	return name
}
