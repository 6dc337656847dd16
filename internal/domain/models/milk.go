package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultCowRatePerLiter is the flat price applied to cow milk when no rate is configured.
const DefaultCowRatePerLiter = 32.0

// MilkType selects which kinds of measurements the parser extracts from a log.
type MilkType string

const (
	MilkCow     MilkType = "cow"
	MilkBuffalo MilkType = "buffalo"
	MilkBoth    MilkType = "both"
)

// ParseMilkType converts user input into a MilkType. Matching ignores case and surrounding space.
func ParseMilkType(value string) (MilkType, error) {
	switch MilkType(strings.ToLower(strings.TrimSpace(value))) {
	case MilkCow:
		return MilkCow, nil
	case MilkBuffalo:
		return MilkBuffalo, nil
	case MilkBoth:
		return MilkBoth, nil
	default:
		return "", fmt.Errorf("unknown milk type %q", value)
	}
}

// IncludesBuffalo reports whether fat-rated morning/evening sessions are extracted.
func (t MilkType) IncludesBuffalo() bool {
	return t == MilkBuffalo || t == MilkBoth
}

// IncludesCow reports whether flat-rate cow milk records are extracted.
func (t MilkType) IncludesCow() bool {
	return t == MilkCow || t == MilkBoth
}

// MilkSession is one morning or evening collection priced by fat content.
type MilkSession struct {
	VolumeLiters float64 `json:"volumeLiters" bson:"volume_liters"`
	FatPercent   float64 `json:"fatPercent" bson:"fat_percent"`
}

// CowMilkRecord is a flat-rate measurement. Its amount is always derived from volume and rate.
type CowMilkRecord struct {
	VolumeLiters float64 `bson:"volume_liters"`
	RatePerLiter float64 `bson:"rate_per_liter"`
}

// NewCowMilkRecord builds a record, falling back to the default rate for non-positive rates.
func NewCowMilkRecord(volume, rate float64) *CowMilkRecord {
	if rate <= 0 {
		rate = DefaultCowRatePerLiter
	}
	return &CowMilkRecord{VolumeLiters: volume, RatePerLiter: rate}
}

// Amount returns volume multiplied by rate.
func (r CowMilkRecord) Amount() float64 {
	return r.VolumeLiters * r.RatePerLiter
}

type cowMilkJSON struct {
	VolumeLiters float64 `json:"volumeLiters"`
	RatePerLiter float64 `json:"ratePerLiter"`
	Amount       float64 `json:"amount"`
}

// MarshalJSON emits the derived amount alongside its inputs.
func (r CowMilkRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(cowMilkJSON{
		VolumeLiters: r.VolumeLiters,
		RatePerLiter: r.RatePerLiter,
		Amount:       r.Amount(),
	})
}

// UnmarshalJSON ignores any incoming amount; it is recomputed from volume and rate.
func (r *CowMilkRecord) UnmarshalJSON(data []byte) error {
	var raw cowMilkJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.VolumeLiters = raw.VolumeLiters
	r.RatePerLiter = raw.RatePerLiter
	if r.RatePerLiter <= 0 {
		r.RatePerLiter = DefaultCowRatePerLiter
	}
	return nil
}

// DailyEntry is one row of a collection log.
type DailyEntry struct {
	SerialNumber int            `json:"serialNumber" bson:"serial_number"`
	Date         string         `json:"date,omitempty" bson:"date,omitempty"`
	Morning      *MilkSession   `json:"morning,omitempty" bson:"morning,omitempty"`
	Evening      *MilkSession   `json:"evening,omitempty" bson:"evening,omitempty"`
	CowMilk      *CowMilkRecord `json:"cowMilk,omitempty" bson:"cow_milk,omitempty"`
	TotalVolume  float64        `json:"totalVolume" bson:"total_volume"`
	TotalAmount  float64        `json:"totalAmount" bson:"total_amount"`
}

// Clone returns a deep copy so callers can edit without sharing session pointers.
func (e DailyEntry) Clone() DailyEntry {
	out := e
	if e.Morning != nil {
		m := *e.Morning
		out.Morning = &m
	}
	if e.Evening != nil {
		ev := *e.Evening
		out.Evening = &ev
	}
	if e.CowMilk != nil {
		c := *e.CowMilk
		out.CowMilk = &c
	}
	return out
}

// HasFatSessions reports whether the entry carries a morning or evening session.
func (e DailyEntry) HasFatSessions() bool {
	return e.Morning != nil || e.Evening != nil
}

// CollectionSummary is the result of one processing run.
type CollectionSummary struct {
	CollectorID       string       `json:"collectorId" bson:"collector_id"`
	PeriodStart       string       `json:"periodStart" bson:"period_start"`
	PeriodEnd         string       `json:"periodEnd" bson:"period_end"`
	Entries           []DailyEntry `json:"entries" bson:"entries"`
	TotalVolume       float64      `json:"totalVolume" bson:"total_volume"`
	TotalAmount       float64      `json:"totalAmount" bson:"total_amount"`
	BuffaloVolume     float64      `json:"buffaloVolume" bson:"buffalo_volume"`
	CowVolume         float64      `json:"cowVolume" bson:"cow_volume"`
	AverageFatPercent float64      `json:"averageFatPercent" bson:"average_fat_percent"`
	DayCount          int          `json:"dayCount" bson:"day_count"`
}

// Clone returns a deep copy of the summary and its entries.
func (s CollectionSummary) Clone() CollectionSummary {
	out := s
	out.Entries = make([]DailyEntry, len(s.Entries))
	for i, entry := range s.Entries {
		out.Entries[i] = entry.Clone()
	}
	return out
}
