package reporting

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mamadbah2/milklog/internal/domain/models"
)

// ErrInvalidEdit indicates the edit does not address an editable cell.
var ErrInvalidEdit = errors.New("invalid edit")

// Editable cell groups and fields.
const (
	FieldMorning = "morning"
	FieldEvening = "evening"
	FieldCowMilk = "cowMilk"

	SubfieldVolume = "volumeLiters"
	SubfieldFat    = "fatPercent"
	SubfieldRate   = "ratePerLiter"
)

// Edit changes one cell of the entry table.
type Edit struct {
	Index    int    `json:"index"`
	Field    string `json:"field" binding:"required"`
	Subfield string `json:"subfield" binding:"required"`
	Value    string `json:"value"`
}

// ApplyEdit returns a copy of summary with the edit applied and every derived total rebuilt
// through Recompute and Aggregate. Missing sessions are created with zero values. Values that
// do not parse as finite numbers are taken as zero; negative values are rejected.
func ApplyEdit(summary models.CollectionSummary, edit Edit) (models.CollectionSummary, error) {
	if edit.Index < 0 || edit.Index >= len(summary.Entries) {
		return models.CollectionSummary{}, fmt.Errorf("%w: entry index %d out of range", ErrInvalidEdit, edit.Index)
	}

	entries := summary.Clone().Entries
	entry := &entries[edit.Index]
	value := parseCell(edit.Value)
	if value < 0 {
		return models.CollectionSummary{}, fmt.Errorf("%w: %s.%s must not be negative", ErrInvalidEdit, edit.Field, edit.Subfield)
	}

	switch edit.Field {
	case FieldMorning, FieldEvening:
		target := &entry.Morning
		if edit.Field == FieldEvening {
			target = &entry.Evening
		}
		switch edit.Subfield {
		case SubfieldVolume:
			ensureSession(target).VolumeLiters = value
		case SubfieldFat:
			ensureSession(target).FatPercent = value
		default:
			return models.CollectionSummary{}, fmt.Errorf("%w: %s has no field %q", ErrInvalidEdit, edit.Field, edit.Subfield)
		}
	case FieldCowMilk:
		if entry.CowMilk == nil {
			entry.CowMilk = models.NewCowMilkRecord(0, models.DefaultCowRatePerLiter)
		}
		switch edit.Subfield {
		case SubfieldVolume:
			entry.CowMilk.VolumeLiters = value
		case SubfieldRate:
			if value <= 0 {
				return models.CollectionSummary{}, fmt.Errorf("%w: rate must be positive", ErrInvalidEdit)
			}
			entry.CowMilk.RatePerLiter = value
		default:
			return models.CollectionSummary{}, fmt.Errorf("%w: %s has no field %q", ErrInvalidEdit, edit.Field, edit.Subfield)
		}
	default:
		return models.CollectionSummary{}, fmt.Errorf("%w: unknown field %q", ErrInvalidEdit, edit.Field)
	}

	return Aggregate(summary.CollectorID, summary.PeriodStart, summary.PeriodEnd, entries), nil
}

func ensureSession(target **models.MilkSession) *models.MilkSession {
	if *target == nil {
		*target = &models.MilkSession{}
	}
	return *target
}

func parseCell(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
