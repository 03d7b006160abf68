package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Classifier определяет вид растения на фотографии.
type Classifier interface {
	Classify(ctx context.Context, req ClassificationRequest) (*Classification, error)
}

// Client работает с OpenAI-совместимым chat/completions API,
// требуя от модели ответ строго по JSON схеме.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient создаёт клиента. Таймаут не задаётся: запрос живёт,
// пока жив контекст входящего запроса.
func NewClient(baseURL, model, apiKey string) *Client {
	if model == "" {
		model = "gpt-4o"
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}
}

// WithHTTPClient подменяет http клиент (тесты, прокси).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Classify отправляет фотографию модели и разбирает ответ.
func (c *Client) Classify(ctx context.Context, req ClassificationRequest) (*Classification, error) {
	messages := []map[string]any{
		{"role": "system", "content": req.SystemPrompt},
		{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": req.UserText},
				{"type": "image_url", "image_url": map[string]any{"url": req.ImageURL}},
			},
		},
	}

	payload := map[string]any{
		"model":    c.model,
		"messages": messages,
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   SchemaName,
				"strict": true,
				"schema": req.Schema,
			},
		},
	}

	content, err := c.chatCompletion(ctx, payload)
	if err != nil {
		return nil, err
	}
	return ParseClassification(content)
}

func (c *Client) chatCompletion(ctx context.Context, payload map[string]any) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("ai: baseURL не задан")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ai: сериализация запроса: %w", err)
	}

	url := c.baseURL
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	url += "chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ai: создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: запрос к модели: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errorBody)
		return "", fmt.Errorf("ai: код ответа %d: %v", resp.StatusCode, errorBody)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Refusal string `json:"refusal"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ai: разбор ответа: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("ai: пустой ответ")
	}
	msg := result.Choices[0].Message
	if msg.Content == "" && msg.Refusal != "" {
		return "", fmt.Errorf("ai: модель отказалась отвечать: %s", msg.Refusal)
	}
	return msg.Content, nil
}
