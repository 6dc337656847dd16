package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/milklog/internal/config"
)

// Client exposes WhatsApp Cloud API operations used by the application.
type Client interface {
	SendTextMessage(ctx context.Context, req SendTextMessageRequest) (*SendTextMessageResponse, error)
	DownloadMedia(ctx context.Context, mediaID string) (*Media, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient    *resty.Client
	phoneNumberID string
}

// NewClient builds a WhatsApp API client using the provided configuration values.
func NewClient(cfg config.WhatsAppConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(fmt.Sprintf("%s/%s", base, cfg.APIVersion)).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.AccessToken)).
		SetTimeout(30 * time.Second)

	return &APIClient{
		httpClient:    restyClient,
		phoneNumberID: cfg.PhoneNumberID,
	}
}

// SendTextMessageRequest represents a simplified text message payload.
type SendTextMessageRequest struct {
	To         string
	Body       string
	PreviewURL bool
}

// SendTextMessageResponse mirrors the successful response from Meta.
type SendTextMessageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Media is a downloaded attachment.
type Media struct {
	Data     []byte
	MimeType string
}

type mediaInfo struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
	ID       string `json:"id"`
}

// apiError represents a WhatsApp Cloud API error payload.
type apiError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorData    any    `json:"error_data"`
		ErrorSubcode int    `json:"error_subcode"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

func (c *APIClient) SendTextMessage(ctx context.Context, req SendTextMessageRequest) (*SendTextMessageResponse, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                req.To,
		"type":              "text",
		"text": map[string]any{
			"body":        req.Body,
			"preview_url": req.PreviewURL,
		},
	}

	result := new(SendTextMessageResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("%s/messages", c.phoneNumberID))
	if err != nil {
		return nil, fmt.Errorf("send whatsapp message: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, apiErr.toError(resp.StatusCode())
	}

	return result, nil
}

// DownloadMedia resolves the media id to its short-lived URL and fetches the bytes.
func (c *APIClient) DownloadMedia(ctx context.Context, mediaID string) (*Media, error) {
	if mediaID == "" {
		return nil, fmt.Errorf("media id must not be empty")
	}

	info := new(mediaInfo)
	apiErr := new(apiError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(info).
		SetError(apiErr).
		Get(mediaID)
	if err != nil {
		return nil, fmt.Errorf("lookup whatsapp media %s: %w", mediaID, err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, apiErr.toError(resp.StatusCode())
	}
	if info.URL == "" {
		return nil, fmt.Errorf("whatsapp media %s has no download url", mediaID)
	}

	// The media URL is absolute and still requires the bearer token.
	dl, err := c.httpClient.R().
		SetContext(ctx).
		Get(info.URL)
	if err != nil {
		return nil, fmt.Errorf("download whatsapp media %s: %w", mediaID, err)
	}
	if dl.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("download whatsapp media %s: status %d", mediaID, dl.StatusCode())
	}

	mimeType := info.MimeType
	if mimeType == "" {
		mimeType = dl.Header().Get("Content-Type")
	}
	return &Media{Data: dl.Body(), MimeType: mimeType}, nil
}

func (e *apiError) toError(status int) error {
	message := ""
	code := status
	if e != nil {
		message = e.Error.Message
		if e.Error.Code != 0 {
			code = e.Error.Code
		}
	}
	return fmt.Errorf("whatsapp api error: code=%d, message=%s", code, message)
}
