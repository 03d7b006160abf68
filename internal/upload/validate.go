package upload

import (
	"github.com/h2non/filetype"

	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
)

// DefaultMaxBytes предел размера фотографии.
const DefaultMaxBytes int64 = 5 * 1024 * 1024

// Сообщения об ошибках проверки файла.
const (
	MsgNoPhoto      = "No photo selected."
	MsgInvalidType  = "Only JPEG, PNG, and WebP images are allowed."
	MsgTooLarge     = "Image size must be less than 5MB."
	MsgUnauthorized = "You must be logged in to upload photos."
)

var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// ValidateImage проверяет заявленный тип, сигнатуру содержимого и размер.
// Возвращает MIME тип по сигнатуре и расширение по умолчанию.
func ValidateImage(declaredType string, data []byte, maxBytes int64) (mime, ext string, err error) {
	if len(data) == 0 {
		return "", "", apperror.New(apperror.ErrCodeUploadValidation, MsgNoPhoto)
	}
	if declaredType != "" {
		if _, ok := allowedTypes[declaredType]; !ok {
			return "", "", apperror.New(apperror.ErrCodeUploadValidation, MsgInvalidType)
		}
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "", "", apperror.New(apperror.ErrCodeUploadValidation, MsgInvalidType)
	}
	ext, ok := allowedTypes[kind.MIME.Value]
	if !ok {
		return "", "", apperror.New(apperror.ErrCodeUploadValidation, MsgInvalidType)
	}

	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if int64(len(data)) > maxBytes {
		return "", "", apperror.New(apperror.ErrCodeUploadValidation, MsgTooLarge)
	}
	return kind.MIME.Value, ext, nil
}
