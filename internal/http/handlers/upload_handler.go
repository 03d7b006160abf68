package handlers

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/scout-reports/internal/dto"
	"github.com/ignatzorin/scout-reports/internal/http/handlers/common"
	"github.com/ignatzorin/scout-reports/internal/logger"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
	"github.com/ignatzorin/scout-reports/internal/storage"
	"github.com/ignatzorin/scout-reports/internal/upload"
)

// UploadHandler сохраняет фотографии отчётов в хранилище.
type UploadHandler struct {
	store    storage.BlobStore
	maxBytes int64
	now      func() time.Time
}

// NewUploadHandler создаёт хэндлер.
func NewUploadHandler(store storage.BlobStore, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = upload.DefaultMaxBytes
	}
	return &UploadHandler{store: store, maxBytes: maxBytes, now: time.Now}
}

// Upload обрабатывает POST /api/uploads.
// Поле path необязательно, но должно лежать в каталоге вызывающего пользователя.
func (h *UploadHandler) Upload(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, upload.MsgUnauthorized)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondErr(c, apperror.New(apperror.ErrCodeUploadValidation, upload.MsgNoPhoto))
		return
	}
	if file.Size > h.maxBytes {
		common.RespondErr(c, apperror.New(apperror.ErrCodeUploadValidation, upload.MsgTooLarge))
		return
	}

	src, err := file.Open()
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, h.maxBytes+1))
	if err != nil {
		common.RespondErr(c, err)
		return
	}

	mime, sniffedExt, err := upload.ValidateImage(file.Header.Get("Content-Type"), data, h.maxBytes)
	if err != nil {
		common.RespondErr(c, err)
		return
	}

	objectPath, err := h.objectPath(userID, c.PostForm("path"), file.Filename, sniffedExt)
	if err != nil {
		common.RespondErr(c, err)
		return
	}

	if err := h.store.Put(c.Request.Context(), objectPath, mime, bytes.NewReader(data)); err != nil {
		common.RespondErr(c, err)
		return
	}

	logger.Get().WithFields(logrus.Fields{
		"user_id":     userID,
		"object_path": objectPath,
		"size":        len(data),
	}).Info("upload: фотография сохранена")

	common.RespondData(c, http.StatusCreated, dto.UploadResponse{
		Path:      objectPath,
		PublicURL: h.store.PublicURL(objectPath),
		Size:      int64(len(data)),
		MimeType:  mime,
	})
}

func (h *UploadHandler) objectPath(userID uuid.UUID, requested, filename, sniffedExt string) (string, error) {
	if requested == "" {
		ext := storage.ExtensionOf(filename)
		if ext == "" {
			ext = sniffedExt
		}
		return storage.ObjectPath(userID, h.now(), ext), nil
	}

	cleaned := path.Clean("/" + requested)[1:]
	prefix := userID.String() + "/"
	if !strings.HasPrefix(cleaned, prefix) || len(cleaned) == len(prefix) {
		return "", apperror.New(apperror.ErrCodeForbidden, "путь должен начинаться с идентификатора пользователя")
	}
	return cleaned, nil
}
