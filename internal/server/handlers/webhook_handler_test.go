package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/milklog/internal/domain/models"
)

type fakeMessaging struct {
	handled []models.WebhookPayload
	panics  bool
}

func (f *fakeMessaging) VerifyWebhookToken(mode, token, challenge string) (string, error) {
	if mode != "subscribe" || token != "secret" {
		return "", errors.New("invalid verify token")
	}
	return challenge, nil
}

func (f *fakeMessaging) HandleWebhook(_ context.Context, payload models.WebhookPayload) error {
	f.handled = append(f.handled, payload)
	if f.panics {
		panic("pdf: malformed xref")
	}
	return nil
}

func (f *fakeMessaging) SendOutbound(context.Context, models.OutboundMessageRequest) error {
	return nil
}

func newWebhookEngine(svc *fakeMessaging) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(svc, nil)
	h.dispatch = func(fn func()) { fn() }

	r := gin.New()
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Receive)
	return r
}

func TestVerify(t *testing.T) {
	engine := newWebhookEngine(&fakeMessaging{})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=abc", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "abc" {
		t.Errorf("verify = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=abc", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestReceive(t *testing.T) {
	svc := &fakeMessaging{}
	engine := newWebhookEngine(svc)

	payload := `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":
		{"messages":[{"from":"919800","id":"wamid.1","type":"image","image":{"id":"m1","caption":"cow"}}]}}]}]}`
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(svc.handled) != 1 {
		t.Fatalf("handled = %d, want 1", len(svc.handled))
	}
	msg := svc.handled[0].Entry[0].Changes[0].Value.Messages[0]
	if msg.Image == nil || msg.Image.Caption != "cow" {
		t.Errorf("message = %+v", msg)
	}
}

func TestReceive_StatusOnlyAndInvalid(t *testing.T) {
	svc := &fakeMessaging{}
	engine := newWebhookEngine(svc)

	status := `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.1","status":"read"}]}}]}]}`
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(status)))
	if rec.Code != http.StatusOK || len(svc.handled) != 0 {
		t.Errorf("status-only callback: code %d handled %d", rec.Code, len(svc.handled))
	}

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid payload status = %d, want 400", rec.Code)
	}
}

func TestReceive_RecoversFromPanic(t *testing.T) {
	svc := &fakeMessaging{panics: true}
	engine := newWebhookEngine(svc)

	payload := `{"entry":[{"changes":[{"value":{"messages":[{"from":"1","id":"w","type":"document","document":{"id":"d"}}]}}]}]}`
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload)))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if len(svc.handled) != 1 {
		t.Errorf("handled = %d, want 1", len(svc.handled))
	}
}
