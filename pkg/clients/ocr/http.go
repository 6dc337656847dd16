package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPExtractor posts the document as a multipart "file" field to an OCR endpoint and reads
// the text from a JSON answer of the form {"text": "..."} or {"result": "..."}.
type HTTPExtractor struct {
	httpClient *resty.Client
	endpoint   string
}

// NewHTTPExtractor builds a client for endpoint. An empty apiKey sends no Authorization header.
func NewHTTPExtractor(endpoint, apiKey string, timeout time.Duration) *HTTPExtractor {
	client := resty.New().SetTimeout(timeout)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &HTTPExtractor{httpClient: client, endpoint: endpoint}
}

// ExtractText implements Extractor.
func (h *HTTPExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	const op = "http extract"

	if len(data) == 0 {
		return "", ErrEmptyInput
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	resp, err := h.httpClient.R().
		SetContext(ctx).
		SetMultipartField("file", "upload", contentType, bytes.NewReader(data)).
		Post(h.endpoint)
	if err != nil {
		return "", NewTransportError(op, 0, err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return "", NewTransportError(op, resp.StatusCode(), fmt.Errorf("backend error: %s", resp.String()))
	}

	return decodeText(op, resp.Body())
}

func decodeText(op string, body []byte) (string, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &FormatError{Op: op, Detail: "response is not a JSON object"}
	}

	for _, key := range []string{"text", "result"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return text, nil
		}
	}

	return "", &FormatError{Op: op, Detail: "response carries no text field"}
}

var _ Extractor = (*HTTPExtractor)(nil)

// IsFormat reports whether err is a FormatError.
func IsFormat(err error) bool {
	return errors.Is(err, ErrFormat)
}
