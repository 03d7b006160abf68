package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/scout-reports/internal/models"
)

func TestBuildRequest(t *testing.T) {
	req := BuildRequest("https://cdn.test/a.png", 37.0, -122.06, DefaultRegion)

	assert.Equal(t, "Please analyze this image of a plant/species found at coordinates 37, -122.06 in California.", req.UserText)
	assert.Equal(t, "https://cdn.test/a.png", req.ImageURL)

	assert.Contains(t, req.SystemPrompt, "Park Ranger with expertise in Santa Cruz, California ecosystems")
	assert.Contains(t, req.SystemPrompt, `Set species_name to "Unidentifiable" or "Unknown species"`)
	assert.Contains(t, req.SystemPrompt, `Set hazard_rating to "unknown"`)
	assert.Contains(t, req.SystemPrompt, "Set is_invasive to false")
	assert.Contains(t, req.SystemPrompt, "(0.0-0.3)")
	assert.Contains(t, req.SystemPrompt, "Santa Cruz County invasive weeds list")
	for _, n := range []string{"1. ", "2. ", "3. ", "4. ", "5. "} {
		assert.Contains(t, req.SystemPrompt, n)
	}
}

func TestParseRegion(t *testing.T) {
	r := ParseRegion("Marin, California")
	assert.Equal(t, "California", r.State)
	assert.Equal(t, "Marin County invasive weeds list", r.InvasiveList)

	single := ParseRegion("Oregon")
	assert.Equal(t, "Oregon", single.State)
	assert.Equal(t, "Oregon invasive weeds list", single.InvasiveList)
}

func TestClassificationSchema(t *testing.T) {
	s := ClassificationSchema()

	assert.Equal(t, false, s["additionalProperties"])
	assert.ElementsMatch(t,
		[]string{"species_name", "is_invasive", "hazard_rating", "description", "confidence"},
		s["required"])

	props := s["properties"].(map[string]any)
	hazard := props["hazard_rating"].(map[string]any)
	assert.Equal(t, []string{"safe", "low", "medium", "high", "critical", "unknown"}, hazard["enum"])

	conf := props["confidence"].(map[string]any)
	assert.Equal(t, "number", conf["type"])
	assert.Equal(t, 0, conf["minimum"])
	assert.Equal(t, 1, conf["maximum"])
}

func TestParseClassification(t *testing.T) {
	t.Run("fenced block", func(t *testing.T) {
		c, err := ParseClassification("```json\n{\"species_name\":\"French Broom\",\"is_invasive\":true,\"hazard_rating\":\"Critical\",\"description\":\"yellow\",\"confidence\":0.8}\n```")
		require.NoError(t, err)
		assert.Equal(t, models.HazardCritical, c.HazardRating)
	})

	t.Run("non numeric confidence is kept as missing", func(t *testing.T) {
		c, err := ParseClassification(`{"species_name":"Oak","is_invasive":false,"hazard_rating":"low","description":"tree","confidence":"high"}`)
		require.NoError(t, err)
		assert.Nil(t, c.Confidence)
	})

	t.Run("missing confidence", func(t *testing.T) {
		c, err := ParseClassification(`{"species_name":"Oak","is_invasive":false,"hazard_rating":"low","description":"tree"}`)
		require.NoError(t, err)
		assert.Nil(t, c.Confidence)
	})

	t.Run("out of range confidence is passed through", func(t *testing.T) {
		c, err := ParseClassification(`{"species_name":"Oak","is_invasive":false,"hazard_rating":"low","description":"tree","confidence":1.4}`)
		require.NoError(t, err)
		require.NotNil(t, c.Confidence)
		assert.InDelta(t, 1.4, *c.Confidence, 1e-9)
	})

	invalid := map[string]string{
		"not json":          "I think it is an oak",
		"unknown hazard":    `{"species_name":"Oak","is_invasive":false,"hazard_rating":"extreme","description":"tree","confidence":0.5}`,
		"missing species":   `{"is_invasive":false,"hazard_rating":"low","description":"tree","confidence":0.5}`,
		"missing desc":      `{"species_name":"Oak","is_invasive":false,"hazard_rating":"low","confidence":0.5}`,
		"invasive string":   `{"species_name":"Oak","is_invasive":"false","hazard_rating":"low","description":"tree","confidence":0.5}`,
		"hazard not string": `{"species_name":"Oak","is_invasive":false,"hazard_rating":3,"description":"tree","confidence":0.5}`,
	}
	for name, raw := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := ParseClassification(raw)
			assert.ErrorIs(t, err, ErrContractViolation)
		})
	}
}
