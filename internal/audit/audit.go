// Package audit asks a multimodal model to grade finished installations.
// Every outcome, including failure, is a displayable string.
package audit

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vbonduro/kioskinstall/internal/domain"
	"github.com/vbonduro/kioskinstall/internal/photostore"
)

// Prompt is the shared instruction sent with every audit.
const Prompt = `You are a Quality Assurance expert for Kiosk Installations. Analyze these 'After Installation' images. Check for: 1. Cleanliness (no debris). 2. Proper alignment of equipment. 3. Screen visibility. 4. General workmanship quality. Provide a concise summary report (max 100 words) grading the installation as PASS or FAIL with reasons.`

// MaxImages is how many images an audit considers; the rest are ignored.
const MaxImages = 3

const (
	MsgMissingKey = "API Key missing. Cannot perform AI audit."
	MsgNoImages   = "No images available for audit."
	MsgFailed     = "AI Audit failed. Please check network or API quota."
	MsgNoResponse = "No response generated."
)

type Image struct {
	Data     []byte
	MimeType string
}

// Model sends one prompt with images and returns the reply text.
type Model interface {
	Assess(ctx context.Context, prompt string, images []Image) (string, error)
}

type Requester struct {
	model  Model
	photos photostore.PhotoStore
	logger *slog.Logger
}

// NewRequester builds a requester. A nil model means no credential was
// configured; audits then report the missing key.
func NewRequester(model Model, photos photostore.PhotoStore, logger *slog.Logger) *Requester {
	return &Requester{model: model, photos: photos, logger: logger}
}

func (r *Requester) Configured() bool { return r.model != nil }

func (r *Requester) Audit(ctx context.Context, images []domain.CapturedImage) string {
	if r.model == nil {
		r.logger.Error("audit requested without a configured model")
		return MsgMissingKey
	}
	if len(images) == 0 {
		return MsgNoImages
	}
	if len(images) > MaxImages {
		images = images[:MaxImages]
	}

	payload := make([]Image, 0, len(images))
	for _, img := range images {
		data, mimeType, err := photostore.ReadAll(ctx, r.photos, img.StorageKey)
		if err != nil {
			r.logger.Error("failed to load image for audit", "key", img.StorageKey, "error", err)
			return MsgFailed
		}
		payload = append(payload, Image{Data: data, MimeType: mimeType})
	}

	text, err := r.model.Assess(ctx, Prompt, payload)
	if err != nil {
		r.logger.Error("audit request failed", "images", len(payload), "error", err)
		return MsgFailed
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return MsgNoResponse
	}
	return text
}

// Failed reports whether text is one of the requester's own failure strings
// rather than a model reply.
func Failed(text string) bool {
	switch text {
	case MsgMissingKey, MsgNoImages, MsgFailed, MsgNoResponse:
		return true
	}
	return false
}
