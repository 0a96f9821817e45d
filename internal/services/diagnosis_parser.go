package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"plant-monitor-service/internal/models"
)

const (
	DefaultConfidence      = 85
	defaultRecommendations = "No specific recommendations were provided. Continue monitoring the plant and sensor readings."
)

var errNoJSONObject = errors.New("no JSON object in model output")

// ParseDiagnosis turns raw model text into a diagnosis. It never fails: when
// no valid JSON object can be extracted, the fallback infers the status from
// the word "healthy" and returns the raw text as recommendations.
func ParseDiagnosis(raw string) models.Diagnosis {
	d, err := parseStructuredDiagnosis(raw)
	if err != nil {
		return fallbackDiagnosis(raw)
	}
	return d
}

func fallbackDiagnosis(raw string) models.Diagnosis {
	status := models.AnalysisDiseased
	if strings.Contains(strings.ToLower(raw), "healthy") {
		status = models.AnalysisHealthy
	}
	return models.Diagnosis{
		Status:          status,
		Confidence:      DefaultConfidence,
		Recommendations: raw,
		Fallback:        true,
	}
}

func parseStructuredDiagnosis(raw string) (models.Diagnosis, error) {
	span, ok := ExtractJSONObject(raw)
	if !ok {
		return models.Diagnosis{}, errNoJSONObject
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(span), &payload); err != nil {
		return models.Diagnosis{}, fmt.Errorf("invalid JSON object: %w", err)
	}

	disease, err := diseaseField(payload["disease"])
	if err != nil {
		return models.Diagnosis{}, err
	}

	status, err := statusField(payload["status"], disease)
	if err != nil {
		return models.Diagnosis{}, err
	}
	if disease != nil {
		status = models.AnalysisDiseased
	}

	d := models.Diagnosis{
		Status:          status,
		Disease:         disease,
		Confidence:      confidenceField(payload["confidence"]),
		Issue:           optionalString(payload["issue"]),
		Recommendations: recommendationsField(payload["recommendations"]),
	}
	return d, nil
}

// ExtractJSONObject returns the first balanced top-level {...} span in s.
// Braces inside JSON strings are ignored.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
		// Unbalanced from this brace; try the next one.
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			return "", false
		}
		start += next + 1
	}
	return "", false
}

// diseaseField returns nil for an absent or healthy label and an error for
// a label outside the vocabulary.
func diseaseField(v any) (*models.DiseaseOption, error) {
	label, ok := v.(string)
	if v == nil || (ok && isEmptyLabel(label)) {
		return nil, nil
	}
	if !ok {
		return nil, fmt.Errorf("disease is %T, want string", v)
	}
	d, known := models.ParseDiseaseOption(label)
	if !known {
		return nil, fmt.Errorf("disease %q is not in the vocabulary", label)
	}
	if d == models.DiseaseHealthy {
		return nil, nil
	}
	return &d, nil
}

func isEmptyLabel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "null", "n/a":
		return true
	}
	return false
}

func statusField(v any, disease *models.DiseaseOption) (models.AnalysisStatus, error) {
	if v == nil {
		if disease != nil {
			return models.AnalysisDiseased, nil
		}
		return models.AnalysisHealthy, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("status is %T, want string", v)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "healthy":
		return models.AnalysisHealthy, nil
	case "diseased":
		return models.AnalysisDiseased, nil
	}
	return "", fmt.Errorf("status %q is not healthy or diseased", s)
}

// confidenceField accepts numbers, numeric strings and percentages, clamped
// to [0,100]. A bare value in (0,1] is a fraction: 0.92 is 92.
func confidenceField(v any) int {
	var f float64
	percent := false
	switch c := v.(type) {
	case float64:
		f = c
	case string:
		trimmed := strings.TrimSpace(c)
		percent = strings.HasSuffix(trimmed, "%")
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(trimmed, "%"), 64)
		if err != nil {
			return DefaultConfidence
		}
		f = parsed
	default:
		return DefaultConfidence
	}
	if math.IsNaN(f) {
		return DefaultConfidence
	}
	if !percent && f > 0 && f <= 1 {
		f *= 100
	}
	return models.ClampConfidence(int(math.Round(math.Max(-1, math.Min(101, f)))))
}

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if isEmptyLabel(s) {
		return nil
	}
	return &s
}

func recommendationsField(v any) string {
	switch r := v.(type) {
	case string:
		if strings.TrimSpace(r) != "" {
			return r
		}
	case []any:
		lines := make([]string, 0, len(r))
		for _, item := range r {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				lines = append(lines, "- "+strings.TrimSpace(s))
			}
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	}
	return defaultRecommendations
}
