package gemini

import (
	"fmt"
	"strings"

	"plant-monitor-service/internal/models"
)

const DiagnosisPromptTemplate = `You are an agronomist specialised in chilli plant (Capsicum) diseases. Analyze the attached photo of a chilli plant together with the live sensor readings from its pot.

## SENSOR READINGS
%s

## DISEASE VOCABULARY
The diagnosis MUST be exactly one of the following labels, or "Healthy":
%s

## OUTPUT FORMAT
Output ONLY one JSON object, no markdown fences, no preamble:
{
  "status": "healthy" | "diseased",
  "disease": one label from the vocabulary, or null when healthy,
  "confidence": integer between 0 and 100,
  "issue": short description of the visible problem, or null,
  "recommendations": markdown with observations, treatment and next steps
}

## RULES
1. Never invent a disease label outside the vocabulary.
2. Relate recommendations to the sensor readings when they are out of the usual range for chilli plants.
3. If the photo does not show a plant, answer "healthy" with confidence 0 and explain in recommendations.`

// BuildDiagnosisPrompt renders the prompt for one image analysis.
func BuildDiagnosisPrompt(snapshot models.SensorSnapshot, vocabulary []models.DiseaseOption) string {
	sensorLines := make([]string, 0, 8)
	for _, line := range snapshot.Lines() {
		sensorLines = append(sensorLines, "- "+line)
	}

	labels := make([]string, 0, len(vocabulary))
	for _, d := range vocabulary {
		labels = append(labels, "- "+string(d))
	}

	return fmt.Sprintf(DiagnosisPromptTemplate, strings.Join(sensorLines, "\n"), strings.Join(labels, "\n"))
}
