package reporting

import (
	"fmt"
	"strings"

	"github.com/mamadbah2/milklog/internal/domain/models"
)

// Digest renders a summary as plain text: header, aggregate stats and one line per entry.
func Digest(summary models.CollectionSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Milk Collection Summary\n")
	fmt.Fprintf(&b, "Collector ID: %s\n", summary.CollectorID)
	fmt.Fprintf(&b, "Period: %s - %s\n", summary.PeriodStart, summary.PeriodEnd)
	fmt.Fprintf(&b, "Total Milk: %.2fL\n", summary.TotalVolume)
	fmt.Fprintf(&b, "Total Amount: ₹%.2f\n", summary.TotalAmount)
	fmt.Fprintf(&b, "Average Fat: %.2f%%\n", summary.AverageFatPercent)
	fmt.Fprintf(&b, "Total Days: %d\n", summary.DayCount)
	fmt.Fprintf(&b, "Buffalo Milk: %.2fL\n", summary.BuffaloVolume)
	fmt.Fprintf(&b, "Cow Milk: %.2fL\n", summary.CowVolume)

	if len(summary.Entries) == 0 {
		b.WriteString("No entries recognized.")
		return b.String()
	}

	b.WriteString("\nS.No | Morning | Evening | Cow Milk | Total\n")
	for _, e := range summary.Entries {
		fmt.Fprintf(&b, "%d | %s | %s | %s | %s\n",
			e.SerialNumber,
			sessionCell(e.Morning),
			sessionCell(e.Evening),
			cowCell(e.CowMilk),
			totalCell(e.TotalVolume))
	}

	return strings.TrimRight(b.String(), "\n")
}

func sessionCell(s *models.MilkSession) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%gL (%g%%)", s.VolumeLiters, s.FatPercent)
}

func cowCell(c *models.CowMilkRecord) string {
	if c == nil {
		return "-"
	}
	return fmt.Sprintf("%gL", c.VolumeLiters)
}

func totalCell(v float64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fL", v)
}
