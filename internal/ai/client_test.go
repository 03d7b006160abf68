package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
)

const testBaseURL = "https://llm.test/v1"

func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

func completionResponse(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}

func TestClient_Classify_Success(t *testing.T) {
	setupHTTPMock(t)

	var captured map[string]any
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(req.Body).Decode(&captured))
			return httpmock.NewJsonResponse(http.StatusOK, completionResponse(
				`{"species_name":"Himalayan Blackberry","is_invasive":true,"hazard_rating":"high","description":"Dense thorny canes","confidence":0.92}`))
		})

	client := NewClient(testBaseURL, "vision-model", "test-key")
	req := BuildRequest("https://cdn.test/u/1.jpg", 37.0, -122.06, DefaultRegion)

	got, err := client.Classify(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Himalayan Blackberry", got.SpeciesName)
	assert.True(t, got.IsInvasive)
	assert.Equal(t, models.HazardHigh, got.HazardRating)
	require.NotNil(t, got.Confidence)
	assert.InDelta(t, 0.92, *got.Confidence, 1e-9)

	assert.Equal(t, "vision-model", captured["model"])
	format := captured["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]any)
	assert.Equal(t, SchemaName, schema["name"])
	assert.Equal(t, true, schema["strict"])

	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]any)
	parts := user["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "image_url", parts[1].(map[string]any)["type"])
	assert.Equal(t, "https://cdn.test/u/1.jpg", parts[1].(map[string]any)["image_url"].(map[string]any)["url"])
}

func TestClient_Classify_HTTPError(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, `{"error":"overloaded"}`))

	client := NewClient(testBaseURL, "", "")
	_, err := client.Classify(context.Background(), BuildRequest("u", 1, 2, DefaultRegion))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "код ответа 503")
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestClient_Classify_EmptyChoices(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"choices": []any{}}))

	_, err := NewClient(testBaseURL, "", "").Classify(context.Background(), BuildRequest("u", 1, 2, DefaultRegion))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "пустой ответ")
}

func TestClient_Classify_ContractViolation(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/chat/completions",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, completionResponse(
			`{"species_name":"Oak","is_invasive":"no","hazard_rating":"low","description":"tree","confidence":0.5}`)))

	_, err := NewClient(testBaseURL, "", "").Classify(context.Background(), BuildRequest("u", 1, 2, DefaultRegion))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContractViolation)
	assert.True(t, apperror.Is(err, apperror.ErrCodeClassifierContract))
}

func TestClient_NoBaseURL(t *testing.T) {
	_, err := NewClient("", "", "").Classify(context.Background(), ClassificationRequest{})
	require.Error(t, err)
}
