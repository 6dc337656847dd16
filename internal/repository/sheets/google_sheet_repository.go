package sheets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/milklog/internal/config"
	"github.com/mamadbah2/milklog/internal/domain/models"
)

// SinkName identifies the spreadsheet sink in export requests.
const SinkName = "sheets"

// Repository defines the persistence operations supported by the Google Sheets adapter.
type Repository interface {
	AppendRows(ctx context.Context, sheetRange string, rows [][]interface{}) error
}

// GoogleSheetRepository implements the Repository interface using the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// AppendRows appends the provided rows to the supplied sheet range in one call.
func (r *GoogleSheetRepository) AppendRows(ctx context.Context, sheetRange string, rows [][]interface{}) error {
	if sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}
	if len(rows) == 0 {
		return nil
	}

	payload := &sheetsapi.ValueRange{Values: rows}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append rows into range %s: %w", sheetRange, err)
	}

	r.logger.Debug("rows appended to sheet", zap.String("range", sheetRange), zap.Int("rows", len(rows)))
	return nil
}

// Sink exports summaries as one spreadsheet row per daily entry.
type Sink struct {
	repo       Repository
	sheetRange string
}

// NewSink wraps a repository as an export sink writing to sheetRange.
func NewSink(repo Repository, sheetRange string) *Sink {
	return &Sink{repo: repo, sheetRange: sheetRange}
}

// Name implements the export sink contract.
func (s *Sink) Name() string { return SinkName }

// Save implements the export sink contract.
func (s *Sink) Save(ctx context.Context, summary models.CollectionSummary) error {
	return s.repo.AppendRows(ctx, s.sheetRange, SummaryRows(summary))
}

// SummaryRows flattens a summary into rows of: collector, period start, period end, serial,
// date, morning volume, morning fat, evening volume, evening fat, cow volume, total volume,
// total amount. Absent measurements are left blank.
func SummaryRows(summary models.CollectionSummary) [][]interface{} {
	rows := make([][]interface{}, 0, len(summary.Entries))
	for _, entry := range summary.Entries {
		row := []interface{}{
			textCell(summary.CollectorID),
			textCell(summary.PeriodStart),
			textCell(summary.PeriodEnd),
			entry.SerialNumber,
			textCell(entry.Date),
		}
		row = append(row, sessionCells(entry.Morning)...)
		row = append(row, sessionCells(entry.Evening)...)
		if entry.CowMilk != nil {
			row = append(row, entry.CowMilk.VolumeLiters)
		} else {
			row = append(row, "")
		}
		row = append(row, entry.TotalVolume, entry.TotalAmount)
		rows = append(rows, row)
	}
	return rows
}

// textCell quotes free text that USER_ENTERED input would otherwise evaluate as a formula.
func textCell(value string) string {
	if value != "" && strings.ContainsRune("=+-@", rune(value[0])) {
		return "'" + value
	}
	return value
}

func sessionCells(s *models.MilkSession) []interface{} {
	if s == nil {
		return []interface{}{"", ""}
	}
	return []interface{}{s.VolumeLiters, s.FatPercent}
}
