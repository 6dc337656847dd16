package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/milklog/internal/config"
	"github.com/mamadbah2/milklog/internal/domain/models"
	"github.com/mamadbah2/milklog/internal/service/export"
	"github.com/mamadbah2/milklog/internal/service/processing"
	"github.com/mamadbah2/milklog/internal/service/reporting"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// contentTypes lists the inbox file extensions that are picked up.
var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".pdf":  "application/pdf",
}

// Processor runs one collection log through extraction, parsing and aggregation.
type Processor interface {
	Process(ctx context.Context, req processing.Request) (models.CollectionSummary, error)
}

// Publisher hands summaries to export sinks.
type Publisher interface {
	Publish(ctx context.Context, summary models.CollectionSummary, names []string) error
}

// Notifier delivers a digest to a WhatsApp recipient.
type Notifier interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// RunResult counts what one inbox sweep did.
type RunResult struct {
	Processed int
	Failed    int
}

// Scheduler sweeps the inbox directory on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	processor Processor
	exporter  Publisher
	notifier  Notifier
	cfg       config.InboxConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduler creates a new scheduler instance. exporter and notifier may be nil.
func NewScheduler(cfg config.InboxConfig, processor Processor, exporter Publisher, notifier Notifier, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Standard 5-field cron; a sweep still running when the next one fires is skipped.
	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(zap.NewStdLog(logger))),
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	return &Scheduler{
		cron:      c,
		processor: processor,
		exporter:  exporter,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Start registers the sweep and starts the scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.register(); err != nil {
		return err
	}

	s.logger.Info("starting scheduler",
		zap.String("schedule", s.cfg.CronSchedule),
		zap.String("inbox", s.cfg.Dir))
	s.cron.Start()
	return nil
}

func (s *Scheduler) register() (cron.EntryID, error) {
	id, err := s.cron.AddFunc(s.cfg.CronSchedule, s.sweep)
	if err != nil {
		return 0, fmt.Errorf("schedule inbox sweep %q: %w", s.cfg.CronSchedule, err)
	}
	return id, nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("inbox sweep failed", zap.Error(err))
		return
	}
	if result.Processed > 0 || result.Failed > 0 {
		s.logger.Info("inbox sweep finished",
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed))
	}
}

// RunOnce processes every supported file currently in the inbox, each as its own run.
func (s *Scheduler) RunOnce(ctx context.Context) (RunResult, error) {
	var result RunResult

	for _, dir := range []string{s.cfg.OutDir, filepath.Join(s.cfg.Dir, processedDir), filepath.Join(s.cfg.Dir, failedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return result, fmt.Errorf("prepare %s: %w", dir, err)
		}
	}

	files, err := s.pendingFiles()
	if err != nil {
		return result, err
	}

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := s.ingest(ctx, name); err != nil {
			result.Failed++
			s.logger.Warn("inbox file failed", zap.String("file", name), zap.Error(err))
			s.quarantine(name, err)
			continue
		}
		result.Processed++
		if _, err := s.move(name, processedDir); err != nil {
			s.logger.Error("failed to archive inbox file", zap.String("file", name), zap.Error(err))
		}
	}

	return result, nil
}

func (s *Scheduler) pendingFiles() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox %s: %w", s.cfg.Dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if _, ok := contentTypes[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Scheduler) ingest(ctx context.Context, name string) error {
	data, err := os.ReadFile(filepath.Join(s.cfg.Dir, name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	summary, err := s.processor.Process(ctx, processing.Request{
		Files: []processing.Upload{{
			Name:        name,
			ContentType: contentTypes[strings.ToLower(filepath.Ext(name))],
			Data:        data,
		}},
		MilkType: s.cfg.MilkType,
		Dialect:  s.cfg.Dialect,
	})
	if err != nil {
		return err
	}

	encoded, err := export.Encode(summary)
	if err != nil {
		return err
	}
	outPath := uniquePath(filepath.Join(s.cfg.OutDir, export.FileName(summary.CollectorID, s.now())))
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	s.logger.Info("inbox file exported",
		zap.String("file", name),
		zap.String("output", outPath),
		zap.Int("entries", len(summary.Entries)))

	// The summary file is the primary output; sink and notification failures are only logged.
	if s.exporter != nil && len(s.cfg.Sinks) > 0 {
		if err := s.exporter.Publish(ctx, summary, s.cfg.Sinks); err != nil {
			s.logger.Error("failed to publish inbox summary", zap.String("file", name), zap.Error(err))
		}
	}
	if s.notifier != nil && s.cfg.NotifyTo != "" {
		msg := fmt.Sprintf("%s\n\n%s", name, reporting.Digest(summary))
		if err := s.notifier.SendOutbound(ctx, models.OutboundMessageRequest{To: s.cfg.NotifyTo, Message: msg}); err != nil {
			s.logger.Error("failed to send inbox digest", zap.String("file", name), zap.Error(err))
		}
	}

	return nil
}

func (s *Scheduler) quarantine(name string, cause error) {
	target, err := s.move(name, failedDir)
	if err != nil {
		s.logger.Error("failed to quarantine inbox file", zap.String("file", name), zap.Error(err))
		return
	}
	errPath := target + ".err"
	if err := os.WriteFile(errPath, []byte(cause.Error()+"\n"), 0o644); err != nil {
		s.logger.Error("failed to record inbox error", zap.String("file", name), zap.Error(err))
	}
}

// move renames the inbox file into subdir and returns its new path.
func (s *Scheduler) move(name, subdir string) (string, error) {
	target := uniquePath(filepath.Join(s.cfg.Dir, subdir, name))
	if err := os.Rename(filepath.Join(s.cfg.Dir, name), target); err != nil {
		return "", err
	}
	return target, nil
}

// uniquePath appends -2, -3, ... before the extension until path does not exist.
func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}
