package whatsapp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mamadbah2/milklog/internal/config"
	"github.com/mamadbah2/milklog/internal/domain/models"
	"github.com/mamadbah2/milklog/internal/service/processing"
	"github.com/mamadbah2/milklog/internal/service/reporting"
	"github.com/mamadbah2/milklog/pkg/clients/ocr"
	client "github.com/mamadbah2/milklog/pkg/clients/whatsapp"
)

type fakeClient struct {
	sent        []client.SendTextMessageRequest
	media       *client.Media
	downloadErr error
	downloaded  []string
}

func (f *fakeClient) SendTextMessage(_ context.Context, req client.SendTextMessageRequest) (*client.SendTextMessageResponse, error) {
	f.sent = append(f.sent, req)
	return &client.SendTextMessageResponse{}, nil
}

func (f *fakeClient) DownloadMedia(_ context.Context, mediaID string) (*client.Media, error) {
	f.downloaded = append(f.downloaded, mediaID)
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.media, nil
}

type fakeProcessor struct {
	reqs    []processing.Request
	summary models.CollectionSummary
	err     error
}

func (f *fakeProcessor) Process(_ context.Context, req processing.Request) (models.CollectionSummary, error) {
	f.reqs = append(f.reqs, req)
	return f.summary, f.err
}

func newTestService(c *fakeClient, p *fakeProcessor) *MetaWhatsAppService {
	return NewMetaWhatsAppService(config.WhatsAppConfig{VerifyToken: "secret", DefaultMilkType: "both"}, c, p, nil)
}

func payloadWith(msgs ...models.InboundMessage) models.WebhookPayload {
	return models.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []models.WebhookEntry{{
			Changes: []models.WebhookChange{{Value: models.WebhookValue{Messages: msgs}}},
		}},
	}
}

func TestVerifyWebhookToken(t *testing.T) {
	svc := newTestService(&fakeClient{}, &fakeProcessor{})

	if got, err := svc.VerifyWebhookToken("subscribe", "secret", "42"); err != nil || got != "42" {
		t.Errorf("VerifyWebhookToken() = %q, %v", got, err)
	}
	if _, err := svc.VerifyWebhookToken("subscribe", "wrong", "42"); err == nil {
		t.Error("wrong token accepted")
	}
	if _, err := svc.VerifyWebhookToken("unsubscribe", "secret", "42"); err == nil {
		t.Error("unsupported mode accepted")
	}
}

func TestHandleWebhook_ImageWithCaption(t *testing.T) {
	c := &fakeClient{media: &client.Media{Data: []byte("jpeg"), MimeType: "image/jpeg"}}
	summary := models.CollectionSummary{CollectorID: "CM204", Entries: []models.DailyEntry{}}
	p := &fakeProcessor{summary: summary}
	svc := newTestService(c, p)

	err := svc.HandleWebhook(context.Background(), payloadWith(models.InboundMessage{
		From:  "919800",
		ID:    "wamid.1",
		Type:  "image",
		Image: &models.MediaContent{ID: "media-9", MimeType: "image/jpeg", Caption: "cow dialect=tabular rate=35"},
	}))
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}

	if len(c.downloaded) != 1 || c.downloaded[0] != "media-9" {
		t.Errorf("downloaded = %v", c.downloaded)
	}
	if len(p.reqs) != 1 {
		t.Fatalf("processor calls = %d, want 1", len(p.reqs))
	}
	req := p.reqs[0]
	if req.MilkType != "cow" || req.Dialect != "tabular" || req.RatePerLiter != 35 {
		t.Errorf("request = %+v", req)
	}
	if len(req.Files) != 1 || string(req.Files[0].Data) != "jpeg" || req.Files[0].Name != "media-9" {
		t.Errorf("files = %+v", req.Files)
	}

	if len(c.sent) != 1 || c.sent[0].To != "919800" {
		t.Fatalf("sent = %+v", c.sent)
	}
	if c.sent[0].Body != reporting.Digest(summary) {
		t.Errorf("reply = %q, want digest", c.sent[0].Body)
	}
}

func TestHandleWebhook_DocumentUsesDefaultMilkType(t *testing.T) {
	c := &fakeClient{media: &client.Media{Data: []byte("%PDF"), MimeType: ""}}
	p := &fakeProcessor{}
	svc := newTestService(c, p)

	err := svc.HandleWebhook(context.Background(), payloadWith(models.InboundMessage{
		From:     "919800",
		Type:     "document",
		Document: &models.MediaContent{ID: "doc-1", MimeType: "application/pdf", Filename: "june.pdf"},
	}))
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	req := p.reqs[0]
	if req.MilkType != "both" {
		t.Errorf("MilkType = %q, want default both", req.MilkType)
	}
	if req.Files[0].Name != "june.pdf" || req.Files[0].ContentType != "application/pdf" {
		t.Errorf("file = %+v", req.Files[0])
	}
}

func TestHandleWebhook_TextGetsUsage(t *testing.T) {
	c := &fakeClient{}
	p := &fakeProcessor{}
	svc := newTestService(c, p)

	err := svc.HandleWebhook(context.Background(), payloadWith(models.InboundMessage{
		From: "919800",
		Type: "text",
		Text: &models.TextContent{Body: "hello"},
	}))
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if len(p.reqs) != 0 {
		t.Error("text message was processed")
	}
	if len(c.sent) != 1 || c.sent[0].Body != usageMessage {
		t.Errorf("sent = %+v", c.sent)
	}
}

func TestHandleWebhook_ProcessingErrorIsAnswered(t *testing.T) {
	c := &fakeClient{media: &client.Media{Data: []byte("x")}}
	transportErr := ocr.NewTransportError("http extract", 503, errors.New("unavailable"))
	p := &fakeProcessor{err: transportErr}
	svc := newTestService(c, p)

	err := svc.HandleWebhook(context.Background(), payloadWith(models.InboundMessage{
		From:  "919800",
		Image: &models.MediaContent{ID: "m"},
	}))
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if len(c.sent) != 1 || !strings.Contains(c.sent[0].Body, transportErr.Error()) {
		t.Errorf("sent = %+v, want error reply", c.sent)
	}
}

func TestHandleWebhook_DownloadErrorIsAnswered(t *testing.T) {
	c := &fakeClient{downloadErr: errors.New("media expired")}
	p := &fakeProcessor{}
	svc := newTestService(c, p)

	if err := svc.HandleWebhook(context.Background(), payloadWith(models.InboundMessage{
		From:  "919800",
		Image: &models.MediaContent{ID: "m"},
	})); err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if len(p.reqs) != 0 {
		t.Error("processor ran without media")
	}
	if len(c.sent) != 1 || !strings.Contains(c.sent[0].Body, "media expired") {
		t.Errorf("sent = %+v", c.sent)
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("₹", maxMessageLength+10)
	got := []rune(truncate(long))
	if len(got) != maxMessageLength {
		t.Errorf("truncated length = %d, want %d", len(got), maxMessageLength)
	}
	if truncate("short") != "short" {
		t.Error("short message altered")
	}
}
