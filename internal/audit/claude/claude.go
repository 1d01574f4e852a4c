package claude

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/kioskinstall/internal/audit"
)

// maxTokens leaves room for a 100-word report with a little slack.
const maxTokens = 400

type ClaudeAuditor struct {
	client *anthropic.Client
	model  string
}

var _ audit.Model = (*ClaudeAuditor)(nil)

func NewClaudeAuditor(apiKey, model string) *ClaudeAuditor {
	return &ClaudeAuditor{client: anthropic.NewClient(apiKey), model: model}
}

// newClaudeAuditorWithBaseURL points the client at a test server.
func newClaudeAuditorWithBaseURL(apiKey, model, baseURL string) *ClaudeAuditor {
	return &ClaudeAuditor{
		client: anthropic.NewClient(apiKey, anthropic.WithBaseURL(baseURL)),
		model:  model,
	}
}

func buildContent(prompt string, images []audit.Image) []anthropic.MessageContent {
	content := make([]anthropic.MessageContent, 0, len(images)+1)
	for _, img := range images {
		content = append(content, anthropic.NewImageMessageContent(
			anthropic.NewMessageContentSource(
				anthropic.MessagesContentSourceTypeBase64,
				normaliseMIME(img.MimeType),
				base64.StdEncoding.EncodeToString(img.Data),
			),
		))
	}
	return append(content, anthropic.NewTextMessageContent(prompt))
}

func (a *ClaudeAuditor) Assess(ctx context.Context, prompt string, images []audit.Image) (string, error) {
	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.Message{{
			Role:    anthropic.RoleUser,
			Content: buildContent(prompt, images),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call claude: %w", err)
	}

	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == anthropic.MessagesContentTypeText {
			sb.WriteString(c.GetText())
		}
	}
	return sb.String(), nil
}

// normaliseMIME maps stored MIME types to the values the API accepts.
// Watermarked captures are always JPEG.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
