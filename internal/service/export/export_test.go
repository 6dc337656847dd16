package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mamadbah2/milklog/internal/domain/models"
)

type fakeSink struct {
	name  string
	err   error
	saved []models.CollectionSummary
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Save(_ context.Context, summary models.CollectionSummary) error {
	f.saved = append(f.saved, summary)
	return f.err
}

func sampleSummary() models.CollectionSummary {
	return models.CollectionSummary{
		CollectorID: "CUS001",
		PeriodStart: "2025-06-01",
		PeriodEnd:   "2025-06-15",
		Entries: []models.DailyEntry{{
			SerialNumber: 1,
			Date:         "2025-06-01",
			CowMilk:      models.NewCowMilkRecord(18, 32),
			TotalVolume:  18,
			TotalAmount:  576,
		}},
		TotalVolume: 18,
		TotalAmount: 576,
		CowVolume:   18,
		DayCount:    1,
	}
}

func TestFileName(t *testing.T) {
	now := time.Date(2025, time.July, 3, 22, 15, 0, 0, time.UTC)
	if got := FileName("CM204", now); got != "milk-log-CM204-2025-07-03.json" {
		t.Errorf("FileName() = %q", got)
	}
}

func TestEncode(t *testing.T) {
	data, err := Encode(sampleSummary())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "{\n  \"collectorId\": \"CUS001\"") {
		t.Errorf("unexpected encoding prefix:\n%s", text)
	}
	if !strings.Contains(text, `"amount": 576`) {
		t.Errorf("cow milk amount missing:\n%s", text)
	}

	var back map[string]any
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("encoded output is not JSON: %v", err)
	}
}

func TestEncode_EmptyEntriesAsArray(t *testing.T) {
	data, err := Encode(models.CollectionSummary{CollectorID: "X"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"entries": []`) {
		t.Errorf("entries not encoded as empty array:\n%s", data)
	}
}

func TestPublish(t *testing.T) {
	mongo := &fakeSink{name: "mongodb"}
	sheets := &fakeSink{name: "sheets"}
	svc := NewService(nil, mongo, sheets)

	if got := svc.Sinks(); len(got) != 2 || got[0] != "mongodb" || got[1] != "sheets" {
		t.Errorf("Sinks() = %v", got)
	}

	if err := svc.Publish(context.Background(), sampleSummary(), []string{" MongoDB ", "mongodb"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(mongo.saved) != 1 || len(sheets.saved) != 0 {
		t.Errorf("saves = mongo %d sheets %d, want 1/0", len(mongo.saved), len(sheets.saved))
	}
}

func TestPublish_UnknownSink(t *testing.T) {
	mongo := &fakeSink{name: "mongodb"}
	svc := NewService(nil, mongo)

	err := svc.Publish(context.Background(), sampleSummary(), []string{"mongodb", "s3"})
	if !errors.Is(err, ErrUnknownSink) {
		t.Fatalf("error = %v, want ErrUnknownSink", err)
	}
	if len(mongo.saved) != 0 {
		t.Error("sink ran despite an unknown name in the request")
	}
}

func TestPublish_JoinsFailures(t *testing.T) {
	boom := errors.New("boom")
	failing := &fakeSink{name: "mongodb", err: boom}
	ok := &fakeSink{name: "sheets"}
	svc := NewService(nil, failing, ok)

	err := svc.Publish(context.Background(), sampleSummary(), []string{"mongodb", "sheets"})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if len(ok.saved) != 1 {
		t.Error("healthy sink skipped after a failure")
	}
}

func TestParseSinkList(t *testing.T) {
	if got := ParseSinkList(""); got != nil {
		t.Errorf("ParseSinkList(\"\") = %v, want nil", got)
	}
	if got := ParseSinkList("mongodb,sheets"); len(got) != 2 {
		t.Errorf("ParseSinkList() = %v", got)
	}
}
