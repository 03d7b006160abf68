package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore файловое хранилище, раздаётся через /media.
type LocalStore struct {
	rootPath       string
	publicBaseURL  string
	maxUploadBytes int64
}

// NewLocalStore создаёт каталог хранилища.
func NewLocalStore(rootPath, publicBaseURL string, maxUploadBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}
	return &LocalStore{
		rootPath:       rootPath,
		publicBaseURL:  publicBaseURL,
		maxUploadBytes: maxUploadBytes,
	}, nil
}

// Root корневой каталог для раздачи файлов.
func (s *LocalStore) Root() string {
	return s.rootPath
}

// Put пишет файл через временный и переименовывает после проверки размера.
func (s *LocalStore) Put(ctx context.Context, objectPath, contentType string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, err := cleanObjectPath(objectPath)
	if err != nil {
		return err
	}

	targetPath := filepath.Join(s.rootPath, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("storage: не удалось создать каталог пользователя: %w", err)
	}

	tempPath := targetPath + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	src := r
	if s.maxUploadBytes > 0 {
		src = &io.LimitedReader{R: r, N: s.maxUploadBytes + 1}
	}
	written, err := io.Copy(f, src)
	if err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if s.maxUploadBytes > 0 && written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return fmt.Errorf("storage: размер файла превышает лимит %d байт", s.maxUploadBytes)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}
	return nil
}

func (s *LocalStore) PublicURL(objectPath string) string {
	return joinURL(s.publicBaseURL, objectPath)
}

// Delete удаляет файл, отсутствие файла ошибкой не считается.
func (s *LocalStore) Delete(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, err := cleanObjectPath(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.rootPath, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}
