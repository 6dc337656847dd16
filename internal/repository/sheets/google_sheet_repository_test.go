package sheets

import (
	"context"
	"errors"
	"testing"

	"github.com/mamadbah2/milklog/internal/domain/models"
)

type fakeRepo struct {
	sheetRange string
	rows       [][]interface{}
	err        error
}

func (f *fakeRepo) AppendRows(_ context.Context, sheetRange string, rows [][]interface{}) error {
	f.sheetRange = sheetRange
	f.rows = rows
	return f.err
}

func summaryFixture() models.CollectionSummary {
	return models.CollectionSummary{
		CollectorID: "CUS001",
		PeriodStart: "2025-06-01",
		PeriodEnd:   "2025-06-15",
		Entries: []models.DailyEntry{
			{
				SerialNumber: 1,
				Date:         "2025-01-16",
				Morning:      &models.MilkSession{VolumeLiters: 3, FatPercent: 5},
				Evening:      &models.MilkSession{VolumeLiters: 3.8, FatPercent: 7.8},
				TotalVolume:  6.8,
				TotalAmount:  223.2,
			},
			{
				SerialNumber: 2,
				CowMilk:      models.NewCowMilkRecord(18, 32),
				TotalVolume:  18,
				TotalAmount:  576,
			},
		},
	}
}

func TestSummaryRows(t *testing.T) {
	rows := SummaryRows(summaryFixture())
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	for i, row := range rows {
		if len(row) != 12 {
			t.Errorf("row %d has %d cells, want 12", i, len(row))
		}
	}

	first := rows[0]
	if first[0] != "CUS001" || first[3] != 1 || first[5] != 3.0 || first[8] != 7.8 || first[9] != "" {
		t.Errorf("first row = %v", first)
	}
	second := rows[1]
	if second[4] != "" || second[5] != "" || second[9] != 18.0 || second[11] != 576.0 {
		t.Errorf("second row = %v", second)
	}
}

func TestSummaryRows_QuotesFormulaText(t *testing.T) {
	summary := summaryFixture()
	summary.CollectorID = `=IMPORTXML("http://x","//a")`
	summary.PeriodStart = "+1"
	summary.PeriodEnd = "@now"
	summary.Entries[0].Date = "-2025"

	row := SummaryRows(summary)[0]
	want := []string{`'=IMPORTXML("http://x","//a")`, "'+1", "'@now"}
	for i, w := range want {
		if row[i] != w {
			t.Errorf("cell %d = %v, want %q", i, row[i], w)
		}
	}
	if row[4] != "'-2025" {
		t.Errorf("date cell = %v, want '-2025", row[4])
	}
	if got := SummaryRows(summaryFixture())[0][0]; got != "CUS001" {
		t.Errorf("plain collector cell = %v, want CUS001", got)
	}
}

func TestSink_Save(t *testing.T) {
	repo := &fakeRepo{}
	sink := NewSink(repo, "Entries!A:L")

	if sink.Name() != SinkName {
		t.Errorf("Name() = %q", sink.Name())
	}
	if err := sink.Save(context.Background(), summaryFixture()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if repo.sheetRange != "Entries!A:L" || len(repo.rows) != 2 {
		t.Errorf("append = %s %d rows", repo.sheetRange, len(repo.rows))
	}
}

func TestSink_SaveError(t *testing.T) {
	boom := errors.New("quota exceeded")
	sink := NewSink(&fakeRepo{err: boom}, "Entries!A:L")
	if err := sink.Save(context.Background(), summaryFixture()); !errors.Is(err, boom) {
		t.Errorf("Save() error = %v, want %v", err, boom)
	}
}
