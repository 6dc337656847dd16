package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milklog/internal/config"
	"github.com/mamadbah2/milklog/internal/domain/models"
	"github.com/mamadbah2/milklog/internal/service/processing"
	"github.com/mamadbah2/milklog/internal/service/reporting"
	client "github.com/mamadbah2/milklog/pkg/clients/whatsapp"
)

// maxMessageLength is the WhatsApp text body limit.
const maxMessageLength = 4096

const usageMessage = "Send a photo or PDF of a milk collection log to get its totals.\n" +
	"Add a caption to choose how it is read, e.g. \"cow dialect=tabular rate=35\".\n" +
	"Milk types: cow, buffalo, both."

// MessagingService describes the operations the HTTP layer and scheduler can perform.
type MessagingService interface {
	VerifyWebhookToken(mode, verifyToken, challenge string) (string, error)
	HandleWebhook(ctx context.Context, payload models.WebhookPayload) error
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Processor runs one collection log through extraction, parsing and aggregation.
type Processor interface {
	Process(ctx context.Context, req processing.Request) (models.CollectionSummary, error)
}

// MetaWhatsAppService is the production implementation backed by WhatsApp Cloud API.
type MetaWhatsAppService struct {
	cfg       config.WhatsAppConfig
	client    client.Client
	processor Processor
	logger    *zap.Logger
}

// NewMetaWhatsAppService wires a new service instance.
func NewMetaWhatsAppService(cfg config.WhatsAppConfig, client client.Client, processor Processor, logger *zap.Logger) *MetaWhatsAppService {
	svc := &MetaWhatsAppService{
		cfg:       cfg,
		client:    client,
		processor: processor,
		logger:    logger,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// VerifyWebhookToken validates the callback verification token.
func (s *MetaWhatsAppService) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode == "" || verifyToken == "" {
		return "", errors.New("missing mode or verify token")
	}

	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("unsupported hub.mode %s", mode)
	}

	if verifyToken != s.cfg.VerifyToken {
		return "", errors.New("invalid verify token")
	}

	return challenge, nil
}

// HandleWebhook processes inbound webhook payloads.
func (s *MetaWhatsAppService) HandleWebhook(ctx context.Context, payload models.WebhookPayload) error {
	if len(payload.Entry) == 0 {
		return nil
	}

	var firstErr error

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if len(change.Value.Messages) == 0 {
				continue
			}

			for _, msg := range change.Value.Messages {
				if err := s.handleInboundMessage(ctx, msg); err != nil {
					s.logger.Error("failed to handle inbound message", zap.Error(err), zap.String("message_id", msg.ID))
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}

	return firstErr
}

func (s *MetaWhatsAppService) handleInboundMessage(ctx context.Context, msg models.InboundMessage) error {
	media := extractMedia(msg)
	if media == nil {
		s.logger.Info("non-media message answered with usage",
			zap.String("from", msg.From),
			zap.String("type", msg.Type))
		return s.reply(ctx, msg.From, usageMessage)
	}

	opts := models.ParseCaption(media.Caption)
	if opts.MilkType == "" {
		opts.MilkType = s.cfg.DefaultMilkType
	}

	s.logger.Info("collection log received",
		zap.String("from", msg.From),
		zap.String("media_id", media.ID),
		zap.String("milk_type", opts.MilkType),
		zap.String("dialect", opts.Dialect))

	summary, err := s.process(ctx, media, opts)
	if err != nil {
		s.logger.Warn("collection log failed", zap.String("from", msg.From), zap.Error(err))
		return s.reply(ctx, msg.From, fmt.Sprintf("Could not read the collection log: %s", err))
	}

	return s.reply(ctx, msg.From, reporting.Digest(summary))
}

func (s *MetaWhatsAppService) process(ctx context.Context, media *models.MediaContent, opts models.IntakeOptions) (models.CollectionSummary, error) {
	downloadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	file, err := s.client.DownloadMedia(downloadCtx, media.ID)
	if err != nil {
		return models.CollectionSummary{}, fmt.Errorf("download attachment: %w", err)
	}

	contentType := file.MimeType
	if contentType == "" {
		contentType = media.MimeType
	}
	name := media.Filename
	if name == "" {
		name = media.ID
	}

	return s.processor.Process(ctx, processing.Request{
		Files:        []processing.Upload{{Name: name, ContentType: contentType, Data: file.Data}},
		MilkType:     opts.MilkType,
		RatePerLiter: opts.RatePerLiter,
		Dialect:      opts.Dialect,
	})
}

// SendOutbound lets internal jobs push quick notifications.
func (s *MetaWhatsAppService) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:         req.To,
		Body:       truncate(req.Message),
		PreviewURL: req.PreviewURL,
	})
	return err
}

func (s *MetaWhatsAppService) reply(ctx context.Context, to, body string) error {
	return s.SendOutbound(ctx, models.OutboundMessageRequest{To: to, Message: body})
}

func extractMedia(msg models.InboundMessage) *models.MediaContent {
	if msg.Image != nil && msg.Image.ID != "" {
		return msg.Image
	}
	if msg.Document != nil && msg.Document.ID != "" {
		return msg.Document
	}
	return nil
}

func truncate(body string) string {
	runes := []rune(body)
	if len(runes) <= maxMessageLength {
		return body
	}
	return string(runes[:maxMessageLength-1]) + "…"
}
