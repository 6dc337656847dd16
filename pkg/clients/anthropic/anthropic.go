package anthropic

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/milklog/pkg/clients/ocr"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	defaultModel   = "claude-3-haiku-20240307"
	maxTokens      = 4096
)

const transcribePrompt = `This image is a handwritten or printed milk collection log.
Transcribe it as plain text, one table row per line, keeping the original row order.
Keep serial numbers, dates (dd/mm/yy), volume-fat pairs written like 3.0-5.0, and unit
suffixes such as CM exactly as written. Copy header lines such as "Customer ID:" and date
ranges verbatim. Output only the transcription, no commentary.`

// Client transcribes collection log images with Claude vision models.
type Client interface {
	ocr.Extractor
	Transcribe(ctx context.Context, data []byte, mediaType string) (string, error)
}

// Option customizes the client.
type Option func(*anthropicClient)

// WithBaseURL points the client at another API host.
func WithBaseURL(url string) Option {
	return func(c *anthropicClient) { c.httpClient.SetBaseURL(strings.TrimSuffix(url, "/")) }
}

// WithModel selects the model used for transcription.
func WithModel(model string) Option {
	return func(c *anthropicClient) {
		if model != "" {
			c.model = model
		}
	}
}

type anthropicClient struct {
	httpClient *resty.Client
	model      string
}

// NewClient creates a configured Anthropic client.
func NewClient(apiKey string, opts ...Option) Client {
	client := resty.New().
		SetBaseURL(defaultBaseURL).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", apiVersion).
		SetHeader("content-type", "application/json").
		SetTimeout(60 * time.Second)

	c := &anthropicClient{httpClient: client, model: defaultModel}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *blockSource `json:"source,omitempty"`
}

type blockSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ExtractText implements ocr.Extractor.
func (c *anthropicClient) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	return c.Transcribe(ctx, data, contentType)
}

// Transcribe sends the document to the Messages API and returns the model's transcription.
func (c *anthropicClient) Transcribe(ctx context.Context, data []byte, mediaType string) (string, error) {
	const op = "anthropic transcribe"

	if len(data) == 0 {
		return "", ocr.ErrEmptyInput
	}

	source := contentBlock{
		Type: "image",
		Source: &blockSource{
			Type:      "base64",
			MediaType: normalizeMediaType(mediaType),
			Data:      base64.StdEncoding.EncodeToString(data),
		},
	}
	if source.Source.MediaType == "application/pdf" {
		source.Type = "document"
	}

	reqBody := messageRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []message{{
			Role:    "user",
			Content: []contentBlock{source, {Type: "text", Text: transcribePrompt}},
		}},
	}

	var respBody messageResponse
	apiErr := new(apiError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&respBody).
		SetError(apiErr).
		Post("/v1/messages")
	if err != nil {
		return "", ocr.NewTransportError(op, 0, err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		message := apiErr.Error.Message
		if message == "" {
			message = resp.String()
		}
		return "", ocr.NewTransportError(op, resp.StatusCode(), fmt.Errorf("anthropic api error: %s", message))
	}

	var b strings.Builder
	for _, block := range respBody.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", &ocr.FormatError{Op: op, Detail: "response carries no text block"}
	}

	return stripFences(b.String()), nil
}

func normalizeMediaType(mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(mediaType, ";", 2)[0]))
	switch mediaType {
	case "image/jpeg", "image/png", "image/gif", "image/webp", "application/pdf":
		return mediaType
	case "image/jpg":
		return "image/jpeg"
	default:
		return "image/jpeg"
	}
}

// stripFences removes a markdown code fence if the model wrapped its answer in one.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}
