// Package reporting derives per-entry totals and batch statistics from parsed log entries.
package reporting

import (
	"math"

	"github.com/mamadbah2/milklog/internal/domain/models"
)

// FatPriceCoefficient is the price per liter per fat point of buffalo milk.
const FatPriceCoefficient = 5.0

// Recompute sets the entry's derived totals from its current sessions.
func Recompute(entry *models.DailyEntry) {
	var volume, amount float64

	if entry.Morning != nil {
		volume += entry.Morning.VolumeLiters
		amount += sessionAmount(*entry.Morning)
	}
	if entry.Evening != nil {
		volume += entry.Evening.VolumeLiters
		amount += sessionAmount(*entry.Evening)
	}
	if entry.CowMilk != nil {
		volume += entry.CowMilk.VolumeLiters
		amount += entry.CowMilk.Amount()
	}

	entry.TotalVolume = volume
	entry.TotalAmount = amount
}

// Aggregate builds the summary for one run. The input entries are copied and their totals
// recomputed; the caller's slice is left untouched.
func Aggregate(collectorID, periodStart, periodEnd string, entries []models.DailyEntry) models.CollectionSummary {
	summary := models.CollectionSummary{
		CollectorID: collectorID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Entries:     make([]models.DailyEntry, len(entries)),
		DayCount:    len(entries),
	}

	var totalVolume, totalAmount, buffalo, cow, fatSum float64
	var fatEntries int

	for i, src := range entries {
		entry := src.Clone()
		Recompute(&entry)
		summary.Entries[i] = entry

		totalVolume += entry.TotalVolume
		totalAmount += entry.TotalAmount

		if entry.Morning != nil {
			buffalo += entry.Morning.VolumeLiters
		}
		if entry.Evening != nil {
			buffalo += entry.Evening.VolumeLiters
		}
		if entry.CowMilk != nil {
			cow += entry.CowMilk.VolumeLiters
		}

		if mean, ok := entryFatMean(entry); ok {
			fatSum += mean
			fatEntries++
		}
	}

	var averageFat float64
	if fatEntries > 0 {
		averageFat = fatSum / float64(fatEntries)
	}

	summary.TotalVolume = Round2(totalVolume)
	summary.TotalAmount = Round2(totalAmount)
	summary.BuffaloVolume = Round2(buffalo)
	summary.CowVolume = Round2(cow)
	summary.AverageFatPercent = Round2(averageFat)

	return summary
}

// Round2 rounds half away from zero to two decimal places.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func sessionAmount(s models.MilkSession) float64 {
	return s.VolumeLiters * s.FatPercent * FatPriceCoefficient
}

// entryFatMean averages the fat of an entry's own sessions so a two-session day counts once.
func entryFatMean(entry models.DailyEntry) (float64, bool) {
	var sum float64
	var count int
	if entry.Morning != nil {
		sum += entry.Morning.FatPercent
		count++
	}
	if entry.Evening != nil {
		sum += entry.Evening.FatPercent
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}
