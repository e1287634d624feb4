package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"ghiblify/internal/models"
	"ghiblify/internal/repositories"
)

// Validation errors surfaced before any provider call.
var (
	ErrEmptyPrompt       = errors.New("prompt is required")
	ErrPromptTooLong     = errors.New("prompt too long (max 1000 characters)")
	ErrInvalidMagicLevel = errors.New("magic level must be between 0 and 100")
)

// ErrGenerationFailed hides provider detail from the caller. There is
// no retry; one failed call is one failed generation.
var ErrGenerationFailed = errors.New("failed to generate image")

const (
	defaultMagicLevel = 50
	maxPromptLength   = 1000

	defaultTransformPrompt = "Transform this image in Studio Ghibli style"

	suffixHighDetail = ". High-quality, detailed Studio Ghibli art style with magical elements, vibrant colors, and dreamlike atmosphere."
	suffixMedium     = ". Studio Ghibli art style with soft colors and whimsical elements."
	suffixLight      = ". Light Studio Ghibli inspired aesthetic."
)

// GenerateOptions are the inputs to a text generation.
type GenerateOptions struct {
	Prompt         string
	MagicLevel     *int // nil defaults to 50
	NegativePrompt string
}

// TransformOptions are the inputs to an image-upload transform.
type TransformOptions struct {
	Filename    string
	ContentType string
	Size        int64
	File        io.Reader
	Prompt      string
	MagicLevel  *int
}

// GenerationService turns prompts into stylized image URLs. Credits
// gate the free tier; premium subscribers bypass them. Results are not
// persisted here; the caller saves to the gallery explicitly.
type GenerationService struct {
	api     ImageAPI
	credits *CreditTracker
	subRepo repositories.SubscriptionRepository
	storage *StorageService
}

// NewGenerationService creates a new GenerationService. subRepo may be
// nil when premium bypass is not wanted; storage may be nil when the
// transform path is not exposed.
func NewGenerationService(api ImageAPI, credits *CreditTracker, subRepo repositories.SubscriptionRepository, storage *StorageService) *GenerationService {
	return &GenerationService{
		api:     api,
		credits: credits,
		subRepo: subRepo,
		storage: storage,
	}
}

// stylePrompt appends exactly one tier suffix based on the magic
// level, then the negative-prompt clause if present.
func stylePrompt(prompt string, magicLevel int, negativePrompt string) string {
	styled := prompt
	switch {
	case magicLevel > 70:
		styled += suffixHighDetail
	case magicLevel > 40:
		styled += suffixMedium
	default:
		styled += suffixLight
	}
	if negativePrompt != "" {
		styled += fmt.Sprintf(" Avoid: %s", negativePrompt)
	}
	return styled
}

func qualityFor(magicLevel int) string {
	if magicLevel > 60 {
		return "hd"
	}
	return "standard"
}

func (s *GenerationService) isPremium(userID string) bool {
	if s.subRepo == nil {
		return false
	}
	sub, err := s.subRepo.GetByUser(userID)
	if err != nil {
		return false
	}
	return sub.IsSubscribed() && sub.IsPremium()
}

// RemainingCredits reports the user's free generations left this week.
func (s *GenerationService) RemainingCredits(userID string) int {
	return s.credits.Remaining(userID)
}

// GenerateFromText generates a stylized image from a prompt.
func (s *GenerationService) GenerateFromText(ctx context.Context, userID string, opts GenerateOptions) (*models.GenerationResult, error) {
	prompt := strings.TrimSpace(opts.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if len(prompt) > maxPromptLength {
		return nil, ErrPromptTooLong
	}

	magicLevel := defaultMagicLevel
	if opts.MagicLevel != nil {
		magicLevel = *opts.MagicLevel
	}
	if magicLevel < 0 || magicLevel > 100 {
		return nil, ErrInvalidMagicLevel
	}

	premium := s.isPremium(userID)
	if !premium {
		if err := s.credits.Check(userID); err != nil {
			return nil, err
		}
	}

	styled := stylePrompt(prompt, magicLevel, strings.TrimSpace(opts.NegativePrompt))
	log.Printf("Generating image for user %s (magic level %d)", userID, magicLevel)

	imageURL, err := s.api.Generate(ctx, styled, qualityFor(magicLevel))
	if err != nil {
		log.Printf("Image generation failed for user %s: %v", userID, err)
		return nil, ErrGenerationFailed
	}

	if !premium {
		s.credits.Consume(userID)
	}

	return &models.GenerationResult{
		ImageURL:  imageURL,
		Prompt:    prompt,
		CreatedAt: time.Now(),
	}, nil
}

// TransformImage uploads the user's image to temporary storage and
// then runs the text generation path. The provider offers no real
// image conditioning, so the uploaded file's visual content does not
// influence the result; its URL is recorded alongside the request.
func (s *GenerationService) TransformImage(ctx context.Context, userID string, opts TransformOptions) (*models.GenerationResult, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("upload storage is not configured")
	}
	if err := s.storage.ValidateUpload(opts.ContentType, opts.Size); err != nil {
		return nil, err
	}

	// Buffer the file so validation failures never reach the bucket
	// and the S3 client gets a seekable body.
	data, err := io.ReadAll(io.LimitReader(opts.File, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > MaxUploadBytes {
		return nil, ErrUploadTooLarge
	}

	uploadURL, err := s.storage.UploadTemp(ctx, userID, opts.Filename, opts.ContentType, bytes.NewReader(data))
	if err != nil {
		log.Printf("Temp upload failed for user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}
	log.Printf("Uploaded transform source for user %s: %s", userID, uploadURL)

	prompt := strings.TrimSpace(opts.Prompt)
	if prompt == "" {
		prompt = defaultTransformPrompt
	}

	return s.GenerateFromText(ctx, userID, GenerateOptions{
		Prompt:     prompt,
		MagicLevel: opts.MagicLevel,
	})
}
