package services

import (
	"testing"

	"plant-monitor-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST SUITE 1: JSON EXTRACTION
// ============================================================================

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"surrounded by prose", "Here you go: {\"a\":1} hope it helps", `{"a":1}`, true},
		{"markdown fence", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, true},
		{"braces inside strings", `{"a":"}{","b":"\"}"}`, `{"a":"}{","b":"\"}"}`, true},
		{"first of two objects", `{"a":1} {"b":2}`, `{"a":1}`, true},
		{"unbalanced brace then object", `{ broken {"a":1}`, `{"a":1}`, true},
		{"stray open brace before object", `note { {"a":1}`, `{"a":1}`, true},
		{"no braces", "plain text", "", false},
		{"only closing brace", "}", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractJSONObject_SkipsUnclosedLeadingBrace(t *testing.T) {
	got, ok := ExtractJSONObject(`{"a":"unterminated`)

	assert.False(t, ok)
	assert.Empty(t, got)
}

// ============================================================================
// TEST SUITE 2: STRUCTURED REPLIES
// ============================================================================

func TestParseDiagnosis_DiseasedReply(t *testing.T) {
	raw := "Analysis complete.\n```json\n" + `{
  "status": "Diseased",
  "disease": "powdery mildew",
  "confidence": 88.6,
  "issue": "White powdery patches on upper leaves",
  "recommendations": "## Treatment\n- Remove affected leaves\n- Apply sulfur fungicide"
}` + "\n```"

	d := ParseDiagnosis(raw)

	assert.False(t, d.Fallback)
	assert.Equal(t, models.AnalysisDiseased, d.Status)
	require.NotNil(t, d.Disease)
	assert.Equal(t, models.DiseasePowderyMildew, *d.Disease)
	assert.Equal(t, 89, d.Confidence)
	require.NotNil(t, d.Issue)
	assert.Equal(t, "White powdery patches on upper leaves", *d.Issue)
	assert.Contains(t, d.Recommendations, "sulfur fungicide")
}

func TestParseDiagnosis_HealthyReply(t *testing.T) {
	d := ParseDiagnosis(`{"status":"healthy","disease":null,"confidence":92,"issue":null,"recommendations":["Keep watering schedule","Maintain NPK levels"]}`)

	assert.False(t, d.Fallback)
	assert.Equal(t, models.AnalysisHealthy, d.Status)
	assert.Nil(t, d.Disease)
	assert.Nil(t, d.Issue)
	assert.Equal(t, 92, d.Confidence)
	assert.Equal(t, "- Keep watering schedule\n- Maintain NPK levels", d.Recommendations)
}

func TestParseDiagnosis_HealthyDiseaseLabelMeansNoDisease(t *testing.T) {
	d := ParseDiagnosis(`{"status":"healthy","disease":"Healthy","confidence":"95%","recommendations":"ok"}`)

	assert.Nil(t, d.Disease)
	assert.Equal(t, 95, d.Confidence)
}

func TestParseDiagnosis_DiseaseForcesDiseasedStatus(t *testing.T) {
	d := ParseDiagnosis(`{"status":"healthy","disease":"Root Rot","confidence":60,"recommendations":"Improve drainage"}`)

	assert.Equal(t, models.AnalysisDiseased, d.Status)
	require.NotNil(t, d.Disease)
	assert.Equal(t, models.DiseaseRootRot, *d.Disease)
}

func TestParseDiagnosis_ConfidenceIsClampedAndDefaulted(t *testing.T) {
	assert.Equal(t, 100, ParseDiagnosis(`{"status":"healthy","confidence":150}`).Confidence)
	assert.Equal(t, 0, ParseDiagnosis(`{"status":"healthy","confidence":-20}`).Confidence)
	assert.Equal(t, DefaultConfidence, ParseDiagnosis(`{"status":"healthy"}`).Confidence)
	assert.Equal(t, DefaultConfidence, ParseDiagnosis(`{"status":"healthy","confidence":"high"}`).Confidence)
}

func TestParseDiagnosis_FractionalConfidenceIsScaled(t *testing.T) {
	assert.Equal(t, 92, ParseDiagnosis(`{"status":"healthy","confidence":0.92}`).Confidence)
	assert.Equal(t, 100, ParseDiagnosis(`{"status":"healthy","confidence":1}`).Confidence)
	assert.Equal(t, 75, ParseDiagnosis(`{"status":"healthy","confidence":"0.75"}`).Confidence)
	assert.Equal(t, 1, ParseDiagnosis(`{"status":"healthy","confidence":"1%"}`).Confidence)
	assert.Equal(t, 0, ParseDiagnosis(`{"status":"healthy","confidence":0}`).Confidence)
}

func TestParseDiagnosis_MissingRecommendationsGetDefaultText(t *testing.T) {
	d := ParseDiagnosis(`{"status":"healthy","confidence":90}`)

	assert.Equal(t, defaultRecommendations, d.Recommendations)
	assert.False(t, d.Fallback)
}

// ============================================================================
// TEST SUITE 3: FALLBACK PATHS
// ============================================================================

func TestParseDiagnosis_PlainTextHealthy(t *testing.T) {
	raw := "The plant looks healthy and strong."

	d := ParseDiagnosis(raw)

	assert.True(t, d.Fallback)
	assert.Equal(t, models.AnalysisHealthy, d.Status)
	assert.Equal(t, 85, d.Confidence)
	assert.Equal(t, raw, d.Recommendations)
	assert.Nil(t, d.Disease)
	assert.Nil(t, d.Issue)
}

func TestParseDiagnosis_PlainTextWithoutHealthyIsDiseased(t *testing.T) {
	raw := "Leaves show yellow spots and wilting."

	d := ParseDiagnosis(raw)

	assert.True(t, d.Fallback)
	assert.Equal(t, models.AnalysisDiseased, d.Status)
	assert.Equal(t, raw, d.Recommendations)
}

func TestParseDiagnosis_HealthyMatchIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, models.AnalysisHealthy, ParseDiagnosis("HEALTHY plant").Status)
}

func TestParseDiagnosis_MalformedJSONFallsBack(t *testing.T) {
	raw := `Result: {"status": "healthy", "confidence": 90,}`

	d := ParseDiagnosis(raw)

	assert.True(t, d.Fallback)
	assert.Equal(t, models.AnalysisHealthy, d.Status)
	assert.Equal(t, raw, d.Recommendations)
	assert.Equal(t, DefaultConfidence, d.Confidence)
}

func TestParseDiagnosis_UnknownDiseaseIsParseFailure(t *testing.T) {
	raw := `{"status":"diseased","disease":"Late Blight","confidence":70,"recommendations":"spray"}`

	d := ParseDiagnosis(raw)

	assert.True(t, d.Fallback)
	assert.Nil(t, d.Disease)
	assert.Equal(t, raw, d.Recommendations)
}

func TestParseDiagnosis_InvalidStatusIsParseFailure(t *testing.T) {
	d := ParseDiagnosis(`{"status":"sick","confidence":70}`)

	assert.True(t, d.Fallback)
}

func TestParseDiagnosis_EmptyOutput(t *testing.T) {
	d := ParseDiagnosis("")

	assert.True(t, d.Fallback)
	assert.Equal(t, models.AnalysisDiseased, d.Status)
	assert.Equal(t, DefaultConfidence, d.Confidence)
}
