package classify

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/redactify/redactify/internal/models"
)

// Vertex is a Classifier backed by a Gemini model on Vertex AI,
// configured for deterministic structured JSON output.
type Vertex struct {
	model      *genai.GenerativeModel
	baseClient *genai.Client
}

// NewVertex creates the Vertex AI classifier for the given project,
// region and model name.
func NewVertex(ctx context.Context, projectID, region, modelName string) (*Vertex, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertex: projectID and region cannot be empty")
	}
	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		// Force JSON output; the detection schema is non-negotiable.
		ResponseMIMEType: "application/json",
		ResponseSchema:   detectionSchema(),
		Temperature:      genai.Ptr[float32](0.0),
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &Vertex{model: model, baseClient: baseClient}, nil
}

func (v *Vertex) Classify(ctx context.Context, blocks []string) ([]models.RawDetection, error) {
	resp, err := v.model.GenerateContent(ctx, genai.Text(userPrompt(blocks)))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	return parseDetections(extractText(resp))
}

func (v *Vertex) Close() error {
	if v.baseClient != nil {
		return v.baseClient.Close()
	}
	return nil
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

// detectionSchema mirrors jsonSchema in Vertex's native schema type.
func detectionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"detections": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"category": {Type: genai.TypeString, Enum: models.Categories},
						"text":     {Type: genai.TypeString},
					},
					Required: []string{"category", "text"},
				},
			},
		},
		Required: []string{"detections"},
	}
}
