package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/milklog/internal/domain/models"
	service "github.com/mamadbah2/milklog/internal/service/whatsapp"
)

// webhookBudget bounds the background handling of one callback: media download, OCR and reply.
const webhookBudget = 3 * time.Minute

// WebhookHandler handles inbound WhatsApp HTTP events.
type WebhookHandler struct {
	svc      service.MessagingService
	logger   *zap.Logger
	dispatch func(func())
}

// NewWebhookHandler constructs the HTTP handler adapter.
func NewWebhookHandler(svc service.MessagingService, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		svc:      svc,
		logger:   logger,
		dispatch: func(fn func()) { go fn() },
	}
}

// Verify responds to Meta's webhook verification challenge.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	resp, err := h.svc.VerifyWebhookToken(mode, token, challenge)
	if err != nil {
		h.logger.Warn("webhook verification failed", zap.Error(err))
		c.String(http.StatusForbidden, "verification failed")
		return
	}

	c.String(http.StatusOK, resp)
}

// Receive acknowledges webhook POST callbacks from Meta at once and handles the messages in
// the background within webhookBudget.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload models.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("invalid webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if countMessages(payload) == 0 {
		c.Status(http.StatusOK)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	h.dispatch(func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("panic while processing webhook", zap.Any("panic", r), zap.Stack("stack"))
			}
		}()
		ctx, cancel := context.WithTimeout(ctx, webhookBudget)
		defer cancel()
		if err := h.svc.HandleWebhook(ctx, payload); err != nil {
			h.logger.Error("failed processing webhook", zap.Error(err))
		}
	})

	c.Status(http.StatusOK)
}

func countMessages(payload models.WebhookPayload) int {
	n := 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			n += len(change.Value.Messages)
		}
	}
	return n
}
