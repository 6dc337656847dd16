// Package processing runs one upload through text extraction, line parsing and aggregation.
package processing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milklog/internal/domain/models"
	"github.com/mamadbah2/milklog/internal/service/parsing"
	"github.com/mamadbah2/milklog/internal/service/reporting"
	"github.com/mamadbah2/milklog/pkg/clients/ocr"
)

var (
	// ErrNoFiles is returned when a request carries no upload.
	ErrNoFiles = errors.New("at least one file must be uploaded")
	// ErrEmptyFile is returned when the processed upload has no bytes.
	ErrEmptyFile = errors.New("uploaded file is empty")
	// ErrInvalidMilkType is returned for a selector other than cow, buffalo or both.
	ErrInvalidMilkType = errors.New("milk type must be cow, buffalo or both")
	// ErrInvalidRate is returned for a negative cow milk rate.
	ErrInvalidRate = errors.New("rate per liter must be greater than zero")
)

// IsValidation reports whether err was caused by the request rather than a collaborator.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoFiles) ||
		errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrInvalidMilkType) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, parsing.ErrUnknownDialect) ||
		errors.Is(err, ocr.ErrEmptyInput) ||
		errors.Is(err, ocr.ErrInputTooLarge)
}

// Upload is a single submitted document.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Request describes one processing run. A zero RatePerLiter selects the configured default
// and an empty Dialect selects the configured default dialect.
type Request struct {
	Files        []Upload
	MilkType     string
	RatePerLiter float64
	Dialect      string
}

// Options tunes the service.
type Options struct {
	Timeout        time.Duration
	StrictFormat   bool
	DefaultDialect string
	DefaultRate    float64
}

// Service turns uploads into collection summaries. It holds no per-run state.
type Service struct {
	extractor ocr.Extractor
	dialects  *parsing.Registry
	opts      Options
	logger    *zap.Logger
}

// NewService builds a processing service.
func NewService(extractor ocr.Extractor, dialects *parsing.Registry, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dialects == nil {
		dialects = parsing.NewRegistry()
	}
	if opts.DefaultDialect == "" {
		opts.DefaultDialect = parsing.DialectLog
	}
	if opts.DefaultRate <= 0 {
		opts.DefaultRate = models.DefaultCowRatePerLiter
	}

	return &Service{
		extractor: extractor,
		dialects:  dialects,
		opts:      opts,
		logger:    logger,
	}
}

// Dialects lists the dialect names a request may select.
func (s *Service) Dialects() []string {
	return s.dialects.Names()
}

// Process extracts text from the first uploaded file, parses it and aggregates the entries.
// Any error aborts the run and no summary is returned.
func (s *Service) Process(ctx context.Context, req Request) (models.CollectionSummary, error) {
	milkType, err := models.ParseMilkType(req.MilkType)
	if err != nil {
		return models.CollectionSummary{}, fmt.Errorf("%w: %q", ErrInvalidMilkType, req.MilkType)
	}

	rate := req.RatePerLiter
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return models.CollectionSummary{}, fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	if rate == 0 {
		rate = s.opts.DefaultRate
	}

	dialectName := strings.TrimSpace(req.Dialect)
	if dialectName == "" {
		dialectName = s.opts.DefaultDialect
	}
	dialect, err := s.dialects.Lookup(dialectName)
	if err != nil {
		return models.CollectionSummary{}, err
	}

	if len(req.Files) == 0 {
		return models.CollectionSummary{}, ErrNoFiles
	}
	file := req.Files[0]
	if ignored := len(req.Files) - 1; ignored > 0 {
		s.logger.Info("only the first uploaded file is processed",
			zap.String("file", file.Name),
			zap.Int("ignored_files", ignored))
	}
	if len(file.Data) == 0 {
		return models.CollectionSummary{}, fmt.Errorf("%w: %s", ErrEmptyFile, file.Name)
	}

	text, err := s.extract(ctx, file)
	if err != nil {
		return models.CollectionSummary{}, err
	}

	result := parsing.New(dialect, rate).Parse(text, milkType)
	summary := reporting.Aggregate(result.CollectorID, result.PeriodStart, result.PeriodEnd, result.Entries)

	s.logger.Info("collection log processed",
		zap.String("file", file.Name),
		zap.String("dialect", dialect.Name()),
		zap.String("milk_type", string(milkType)),
		zap.String("collector_id", summary.CollectorID),
		zap.Int("entries", len(summary.Entries)),
		zap.Int("skipped_lines", result.SkippedLines),
		zap.Float64("total_amount", summary.TotalAmount))

	return summary, nil
}

func (s *Service) extract(ctx context.Context, file Upload) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	text, err := s.extractor.ExtractText(ctx, file.Data, file.ContentType)
	switch {
	case err == nil:
		return text, nil
	case errors.Is(err, ocr.ErrFormat):
		if s.opts.StrictFormat {
			return "", err
		}
		s.logger.Warn("ocr returned no text, continuing with empty input",
			zap.String("file", file.Name),
			zap.Error(err))
		return "", nil
	case errors.Is(err, ocr.ErrTransport),
		errors.Is(err, ocr.ErrEmptyInput),
		errors.Is(err, ocr.ErrInputTooLarge):
		return "", err
	default:
		return "", ocr.NewTransportError("extract text", 0, err)
	}
}
