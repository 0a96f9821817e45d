package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type DiseaseOption string

const (
	DiseaseHealthy            DiseaseOption = "Healthy"
	DiseaseAnthracnose        DiseaseOption = "Anthracnose"
	DiseaseBacterialLeafSpot  DiseaseOption = "Bacterial Leaf Spot"
	DiseaseCercosporaLeafSpot DiseaseOption = "Cercospora Leaf Spot"
	DiseasePowderyMildew      DiseaseOption = "Powdery Mildew"
	DiseasePhytophthoraBlight DiseaseOption = "Phytophthora Blight"
	DiseaseFusariumWilt       DiseaseOption = "Fusarium Wilt"
	DiseaseDampingOff         DiseaseOption = "Damping Off"
	DiseaseLeafCurlVirus      DiseaseOption = "Leaf Curl Virus"
	DiseaseMosaicVirus        DiseaseOption = "Mosaic Virus"
	DiseaseGrayMold           DiseaseOption = "Gray Mold"
	DiseaseRootRot            DiseaseOption = "Root Rot"
)

// DiseaseVocabulary is the closed set of diagnosable diseases. Healthy is
// not part of it.
var DiseaseVocabulary = []DiseaseOption{
	DiseaseAnthracnose,
	DiseaseBacterialLeafSpot,
	DiseaseCercosporaLeafSpot,
	DiseasePowderyMildew,
	DiseasePhytophthoraBlight,
	DiseaseFusariumWilt,
	DiseaseDampingOff,
	DiseaseLeafCurlVirus,
	DiseaseMosaicVirus,
	DiseaseGrayMold,
	DiseaseRootRot,
}

// ParseDiseaseOption matches label against the vocabulary and Healthy,
// ignoring case, surrounding space and hyphen/space differences.
func ParseDiseaseOption(label string) (DiseaseOption, bool) {
	normalized := normalizeLabel(label)
	if normalized == normalizeLabel(string(DiseaseHealthy)) {
		return DiseaseHealthy, true
	}
	for _, d := range DiseaseVocabulary {
		if normalizeLabel(string(d)) == normalized {
			return d, true
		}
	}
	return "", false
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

type AnalysisStatus string

const (
	AnalysisHealthy  AnalysisStatus = "healthy"
	AnalysisDiseased AnalysisStatus = "diseased"
)

const (
	SourceEndpoint  = "endpoint"
	SourceScheduled = "scheduled"
)

// Diagnosis is the normalized content of a model reply.
type Diagnosis struct {
	Status          AnalysisStatus
	Disease         *DiseaseOption
	Confidence      int
	Issue           *string
	Recommendations string
	Fallback        bool
}

// AnalysisResult is created once per analysis and superseded by the next one.
type AnalysisResult struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	Status          AnalysisStatus `json:"status" db:"status"`
	Disease         *DiseaseOption `json:"disease" db:"disease"`
	Confidence      int            `json:"confidence" db:"confidence"`
	Issue           *string        `json:"issue" db:"issue"`
	Recommendations string         `json:"recommendations" db:"recommendations"`
	Fallback        bool           `json:"fallback" db:"fallback"`
	Source          string         `json:"source" db:"source"`
	ImageObject     *string        `json:"imageObject,omitempty" db:"image_object"`
	Timestamp       time.Time      `json:"timestamp" db:"created_at"`
}

// Diagnosis returns the headline label shown to operators.
func (r AnalysisResult) Diagnosis() string {
	if r.Disease != nil {
		return string(*r.Disease)
	}
	if r.Status == AnalysisHealthy {
		return "Healthy Plant"
	}
	return "Unidentified Disease"
}

// AnalyzePlantRequest is the body of POST /analyze-plant.
type AnalyzePlantRequest struct {
	Image          string         `json:"image"`
	SensorReadings map[string]any `json:"sensorReadings,omitempty"`
}

// AnalysisResponse is the success body of POST /analyze-plant.
type AnalysisResponse struct {
	ID              uuid.UUID      `json:"id"`
	Diagnosis       string         `json:"diagnosis"`
	Status          AnalysisStatus `json:"status"`
	Disease         *DiseaseOption `json:"disease"`
	Confidence      int            `json:"confidence"`
	Issue           *string        `json:"issue"`
	Recommendations string         `json:"recommendations"`
	Timestamp       time.Time      `json:"timestamp"`
	Fallback        bool           `json:"fallback"`
}

func NewAnalysisResponse(r AnalysisResult) AnalysisResponse {
	return AnalysisResponse{
		ID:              r.ID,
		Diagnosis:       r.Diagnosis(),
		Status:          r.Status,
		Disease:         r.Disease,
		Confidence:      r.Confidence,
		Issue:           r.Issue,
		Recommendations: r.Recommendations,
		Timestamp:       r.Timestamp,
		Fallback:        r.Fallback,
	}
}

// ToResult converts a response received over HTTP back into a result.
func (r AnalysisResponse) ToResult(source string) AnalysisResult {
	return AnalysisResult{
		ID:              r.ID,
		Status:          r.Status,
		Disease:         r.Disease,
		Confidence:      ClampConfidence(r.Confidence),
		Issue:           r.Issue,
		Recommendations: r.Recommendations,
		Fallback:        r.Fallback,
		Source:          source,
		Timestamp:       r.Timestamp,
	}
}

func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
