package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/milklog/internal/domain/models"
	"github.com/mamadbah2/milklog/internal/service/export"
	"github.com/mamadbah2/milklog/internal/service/processing"
	"github.com/mamadbah2/milklog/internal/service/reporting"
	"github.com/mamadbah2/milklog/pkg/clients/ocr"
)

// Processor is the engine surface used by the API.
type Processor interface {
	Process(ctx context.Context, req processing.Request) (models.CollectionSummary, error)
	Dialects() []string
}

// Publisher hands summaries to export sinks.
type Publisher interface {
	Publish(ctx context.Context, summary models.CollectionSummary, names []string) error
	Sinks() []string
}

// APIHandler serves the processing, edit and export endpoints.
type APIHandler struct {
	processor Processor
	exporter  Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewAPIHandler constructs the API handler. exporter may be nil when no sinks are configured.
func NewAPIHandler(processor Processor, exporter Publisher, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{processor: processor, exporter: exporter, logger: logger, now: time.Now}
}

type editRequest struct {
	Summary models.CollectionSummary `json:"summary"`
	Edit    reporting.Edit           `json:"edit"`
}

// Process runs an uploaded collection log through the engine.
func (h *APIHandler) Process(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.logger.Warn("invalid multipart upload", zap.Error(err))
		writeError(c, fmt.Errorf("%w: expected a multipart form with a file field", processing.ErrNoFiles))
		return
	}

	rate, err := parseRate(c.PostForm("rate"))
	if err != nil {
		writeError(c, err)
		return
	}

	uploads, err := readUploads(form.File["file"])
	if err != nil {
		h.logger.Error("failed reading upload", zap.Error(err))
		writeError(c, err)
		return
	}

	summary, err := h.processor.Process(c.Request.Context(), processing.Request{
		Files:        uploads,
		MilkType:     c.PostForm("milk_type"),
		RatePerLiter: rate,
		Dialect:      c.PostForm("dialect"),
	})
	if err != nil {
		h.logger.Warn("processing failed", zap.Error(err))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Edit applies one cell edit and returns the recomputed summary.
func (h *APIHandler) Edit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid edit payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	summary, err := reporting.ApplyEdit(req.Summary, req.Edit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Export returns the summary as a JSON download after publishing it to the requested sinks.
func (h *APIHandler) Export(c *gin.Context) {
	var posted models.CollectionSummary
	if err := c.ShouldBindJSON(&posted); err != nil {
		h.logger.Warn("invalid export payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	// Totals are rebuilt so a stale or hand-edited payload cannot export inconsistent amounts.
	summary := reporting.Aggregate(posted.CollectorID, posted.PeriodStart, posted.PeriodEnd, posted.Entries)

	if sinks := export.ParseSinkList(c.Query("sinks")); len(sinks) > 0 {
		if h.exporter == nil {
			writeError(c, fmt.Errorf("%w: no export sinks are configured", export.ErrUnknownSink))
			return
		}
		if err := h.exporter.Publish(c.Request.Context(), summary, sinks); err != nil {
			writeError(c, err)
			return
		}
	}

	data, err := export.Encode(summary)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(summary.CollectorID, h.now())))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// Dialects lists the line dialects and export sinks a client may select.
func (h *APIHandler) Dialects(c *gin.Context) {
	sinks := []string{}
	if h.exporter != nil {
		sinks = h.exporter.Sinks()
	}
	c.JSON(http.StatusOK, gin.H{
		"dialects": h.processor.Dialects(),
		"sinks":    sinks,
	})
}

func parseRate(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, fmt.Errorf("%w: %q", processing.ErrInvalidRate, raw)
	}
	return rate, nil
}

// readUploads loads the first file's bytes. Later files are listed by name only since they
// are never processed.
func readUploads(files []*multipart.FileHeader) ([]processing.Upload, error) {
	uploads := make([]processing.Upload, 0, len(files))
	for i, fh := range files {
		upload := processing.Upload{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type")}
		if i == 0 {
			data, err := readFileHeader(fh)
			if err != nil {
				return nil, err
			}
			upload.Data = data
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return data, nil
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case processing.IsValidation(err),
		errors.Is(err, reporting.ErrInvalidEdit),
		errors.Is(err, export.ErrUnknownSink):
		return http.StatusBadRequest
	case errors.Is(err, ocr.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, ocr.ErrFormat):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
