// Package export serializes collection summaries and hands them to optional archive sinks.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milklog/internal/domain/models"
)

// ErrUnknownSink is returned when a publish request names a sink that is not configured.
var ErrUnknownSink = errors.New("unknown export sink")

// Sink receives exported summaries. Sinks are write-only.
type Sink interface {
	Name() string
	Save(ctx context.Context, summary models.CollectionSummary) error
}

// FileName returns the download name for a summary exported at now.
func FileName(collectorID string, now time.Time) string {
	return fmt.Sprintf("milk-log-%s-%s.json", collectorID, now.Format("2006-01-02"))
}

// Encode renders the summary as 2-space indented JSON.
func Encode(summary models.CollectionSummary) ([]byte, error) {
	if summary.Entries == nil {
		summary.Entries = []models.DailyEntry{}
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	return data, nil
}

// Service fans a summary out to named sinks.
type Service struct {
	sinks  map[string]Sink
	logger *zap.Logger
}

// NewService registers the given sinks by name.
func NewService(logger *zap.Logger, sinks ...Sink) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{sinks: make(map[string]Sink, len(sinks)), logger: logger}
	for _, sink := range sinks {
		if sink != nil {
			s.sinks[sink.Name()] = sink
		}
	}
	return s
}

// Sinks lists configured sink names in sorted order.
func (s *Service) Sinks() []string {
	names := make([]string, 0, len(s.sinks))
	for name := range s.sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Publish saves the summary to every named sink. Unknown names are rejected before any
// sink runs. Every sink is attempted and failures are joined.
func (s *Service) Publish(ctx context.Context, summary models.CollectionSummary, names []string) error {
	targets := make([]Sink, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		sink, ok := s.sinks[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSink, name)
		}
		seen[name] = true
		targets = append(targets, sink)
	}

	var errs []error
	for _, sink := range targets {
		if err := sink.Save(ctx, summary); err != nil {
			s.logger.Error("export sink failed",
				zap.String("sink", sink.Name()),
				zap.String("collector_id", summary.CollectorID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		s.logger.Info("summary exported",
			zap.String("sink", sink.Name()),
			zap.String("collector_id", summary.CollectorID),
			zap.Int("entries", len(summary.Entries)))
	}
	return errors.Join(errs...)
}

// ParseSinkList splits a comma separated sink query value.
func ParseSinkList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return strings.Split(value, ",")
}
