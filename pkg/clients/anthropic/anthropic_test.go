package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mamadbah2/milklog/pkg/clients/ocr"
)

func TestTranscribe(t *testing.T) {
	var got messageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("x-api-key = %q, want key", r.Header.Get("x-api-key"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{\"content\":[{\"type\":\"text\",\"text\":\"```\\n1 16/01/2025 3.0-5.0\\n```\"}]}"))
	}))
	defer srv.Close()

	c := NewClient("key", WithBaseURL(srv.URL), WithModel("test-model"))
	text, err := c.ExtractText(context.Background(), []byte{0xff, 0xd8}, "image/jpg")
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if text != "1 16/01/2025 3.0-5.0" {
		t.Errorf("text = %q, want fence-free transcription", text)
	}

	if got.Model != "test-model" {
		t.Errorf("model = %q, want test-model", got.Model)
	}
	if len(got.Messages) != 1 || len(got.Messages[0].Content) != 2 {
		t.Fatalf("unexpected request shape: %+v", got)
	}
	img := got.Messages[0].Content[0]
	if img.Type != "image" || img.Source == nil || img.Source.MediaType != "image/jpeg" {
		t.Errorf("image block = %+v, want image/jpeg source", img)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"api error", http.StatusUnauthorized, `{"error":{"type":"authentication_error","message":"bad key"}}`, ocr.ErrTransport},
		{"no text", http.StatusOK, `{"content":[]}`, ocr.ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient("key", WithBaseURL(srv.URL)).Transcribe(context.Background(), []byte("x"), "application/pdf")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"plain":                    "plain",
		"```text\n1 2.0-3.0\n```":  "1 2.0-3.0",
		"  ```\nrow\nrow2\n```  ": "row\nrow2",
	}
	for in, want := range tests {
		if got := stripFences(in); got != want {
			t.Errorf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}
