package generativeAI

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

// AIClient wraps the hosted generation model behind a plain-text contract.
type AIClient struct {
	client *genai.Client
	model  string
}

// NewAIClient creates a generation client for the configured model. The API
// key comes from GOOGLE_GEMINI_API_KEY.
func NewAIClient(ctx context.Context, model string) (*AIClient, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "NewAIClient")
	defer span.End()

	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		err := fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
		span.RecordError(err)
		span.SetStatus(codes.Error, "API key not set")
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create Gemini client")
		return nil, err
	}

	span.SetStatus(codes.Ok, "AI client created successfully")
	return &AIClient{
		client: client,
		model:  model,
	}, nil
}

// ModelID returns the identifier of the underlying generation model.
func (ai *AIClient) ModelID() string {
	return ai.model
}

// GenerateCompletion sends the prompt and returns the model's text output.
func (ai *AIClient) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateCompletion")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", ai.model),
		attribute.Int("prompt.length", len(prompt)),
	)

	config := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0.7)}
	result, err := ai.client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Generation request failed")
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	span.SetStatus(codes.Ok, "Generation completed")
	return result.Text(), nil
}

// EmbeddingService wraps the hosted embedding model.
type EmbeddingService struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewEmbeddingService creates an embedding client for the configured model.
func NewEmbeddingService(ctx context.Context, model string, dimensions int) (*EmbeddingService, error) {
	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return &EmbeddingService{
		client:     client,
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed converts text into a fixed-dimension vector suitable for similarity
// search against the destination embedding column.
func (e *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "Embed")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", e.model),
		attribute.Int("text.length", len(text)),
	)

	dims := int32(e.dimensions)
	config := &genai.EmbedContentConfig{
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: &dims,
	}
	result, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Embedding request failed")
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		err := fmt.Errorf("embedding response contained no values")
		span.RecordError(err)
		span.SetStatus(codes.Error, "Empty embedding response")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Embedding generated")
	return result.Embeddings[0].Values, nil
}
