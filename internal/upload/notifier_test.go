package upload

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/scout-reports/internal/logger"
	"github.com/ignatzorin/scout-reports/internal/storage"
)

func TestWriterNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := &WriterNotifier{W: &buf}
	n.Notify(Notification{Level: LevelSuccess, Message: "Report Submitted! Identified: Cape Ivy"})
	n.Notify(Notification{Level: LevelError, Message: "Upload failed: quota"})

	assert.Equal(t, "✔ Report Submitted! Identified: Cape Ivy\n✖ Upload failed: quota\n", buf.String())
}

func TestLogNotifier(t *testing.T) {
	l, hook := test.NewNullLogger()
	logger.Log = l
	defer func() { logger.Log = nil }()

	LogNotifier{}.Notify(Notification{Level: LevelError, Message: "Analysis failed: boom"})
	LogNotifier{}.Notify(Notification{Level: LevelSuccess, Message: "ok"})

	require.Len(t, hook.Entries, 2)
	assert.Equal(t, logrus.ErrorLevel, hook.Entries[0].Level)
	assert.Equal(t, "error", hook.Entries[0].Data["level_ui"])
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}

func TestStoreUploader_WritesThroughBlobStore(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewLocalStore(root, "http://localhost:8080/media/", DefaultMaxBytes)
	require.NoError(t, err)

	objectPath := uuid.NewString() + "/2026-04-02T09-30-15.123Z.png"
	url, err := (&StoreUploader{Store: store}).Upload(context.Background(), objectPath, "image/png", pngBytes)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/"+objectPath, url)

	got, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(objectPath)))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)
}
