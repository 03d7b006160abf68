package dto

import "encoding/json"

// Envelope is the response shape shared by all API endpoints:
// {success: true, data: ...} or {success: false, error: "..."}.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RawEnvelope is used by API clients to decode Data lazily.
type RawEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// UploadResponse describes a stored photo
type UploadResponse struct {
	Path      string `json:"path"`
	PublicURL string `json:"public_url"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mime_type"`
}
