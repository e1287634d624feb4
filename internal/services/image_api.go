package services

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ImageAPI is the outbound contract to the text-to-image provider.
// The generation service depends on this interface so tests can
// substitute a fake.
type ImageAPI interface {
	// Generate submits the fully styled prompt and returns the URL of
	// the generated image.
	Generate(ctx context.Context, prompt, quality string) (string, error)
}

// OpenAIImageAPI calls DALL·E 3 through the OpenAI images endpoint.
type OpenAIImageAPI struct {
	client *openai.Client
}

// NewOpenAIImageAPI creates the provider client. It fails fast when
// the API key is not configured.
func NewOpenAIImageAPI(apiKey string) (*OpenAIImageAPI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not configured")
	}
	return &OpenAIImageAPI{
		client: openai.NewClient(apiKey),
	}, nil
}

// Generate requests a single 1024x1024 image at the given quality.
func (a *OpenAIImageAPI) Generate(ctx context.Context, prompt, quality string) (string, error) {
	resp, err := a.client.CreateImage(ctx, openai.ImageRequest{
		Model:          openai.CreateImageModelDallE3,
		Prompt:         prompt,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		Quality:        quality,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("image generation request failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("image generation returned no image")
	}
	return resp.Data[0].URL, nil
}
