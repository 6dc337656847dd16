// Package parsing turns loosely formatted OCR text of a milk collection log into dated entries.
//
// The parser is permissive: lines it cannot read are skipped and fields it cannot find are left
// unset. It never fails on individual lines.
package parsing

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mamadbah2/milklog/internal/domain/models"
)

const (
	DefaultCollectorID = "CUS001"
	DefaultPeriodStart = "2025-06-01"
	DefaultPeriodEnd   = "2025-06-15"
)

var (
	collectorPattern = regexp.MustCompile(`(?i)Customer ID:\s*(\w+)`)
	periodPattern    = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s*-\s*(\d{2}/\d{2}/\d{4})`)
	serialPattern    = regexp.MustCompile(`^(\d+)`)
	datePattern      = regexp.MustCompile(`\d{2}/\d{2}/\d{2,4}`)
)

// Result is the parser output for one block of text.
type Result struct {
	CollectorID  string
	PeriodStart  string
	PeriodEnd    string
	Entries      []models.DailyEntry
	SkippedLines int
}

// Parser extracts entries using one dialect. It holds no per-run state and is safe for
// concurrent use.
type Parser struct {
	dialect Dialect
	cowRate float64
}

// New builds a parser. A nil dialect selects the plain log dialect and a non-positive rate
// selects the default cow rate.
func New(dialect Dialect, cowRate float64) *Parser {
	if dialect == nil {
		dialect = LogDialect()
	}
	if cowRate <= 0 {
		cowRate = models.DefaultCowRatePerLiter
	}
	return &Parser{dialect: dialect, cowRate: cowRate}
}

// Dialect returns the dialect the parser was built with.
func (p *Parser) Dialect() Dialect {
	return p.dialect
}

// Parse reads rawText line by line. Derived totals on the returned entries are left at zero;
// they belong to the aggregation step.
func (p *Parser) Parse(rawText string, milkType models.MilkType) Result {
	result := Result{
		CollectorID: DefaultCollectorID,
		PeriodStart: DefaultPeriodStart,
		PeriodEnd:   DefaultPeriodEnd,
		Entries:     []models.DailyEntry{},
	}

	if m := collectorPattern.FindStringSubmatch(rawText); m != nil {
		result.CollectorID = m[1]
	}
	if m := periodPattern.FindStringSubmatch(rawText); m != nil {
		result.PeriodStart = NormalizeDate(m[1])
		result.PeriodEnd = NormalizeDate(m[2])
	}

	var lastDate string
	for _, line := range splitLines(rawText) {
		entry, ok := p.parseLine(line, milkType, &lastDate)
		if !ok {
			result.SkippedLines++
			continue
		}
		result.Entries = append(result.Entries, entry)
	}

	return result
}

func (p *Parser) parseLine(line string, milkType models.MilkType, lastDate *string) (models.DailyEntry, bool) {
	m := serialPattern.FindStringSubmatch(line)
	if m == nil {
		return models.DailyEntry{}, false
	}
	serial, err := strconv.Atoi(m[1])
	if err != nil {
		return models.DailyEntry{}, false
	}

	entry := models.DailyEntry{SerialNumber: serial}
	body := strings.TrimSpace(line[len(m[0]):])

	if loc := datePattern.FindStringIndex(line); loc != nil {
		entry.Date = NormalizeDate(line[loc[0]:loc[1]])
		*lastDate = entry.Date
		body = strings.TrimSpace(strings.Replace(body, line[loc[0]:loc[1]], "", 1))
	} else {
		entry.Date = *lastDate
	}

	if milkType.IncludesBuffalo() {
		sessions := p.dialect.Sessions(line)
		if len(sessions) > 0 {
			morning := sessions[0]
			entry.Morning = &morning
		}
		if len(sessions) > 1 {
			evening := sessions[1]
			entry.Evening = &evening
		}
	}

	if milkType.IncludesCow() {
		if volume, ok := p.dialect.CowVolume(line, body); ok {
			entry.CowMilk = models.NewCowMilkRecord(volume, p.cowRate)
		}
	}

	return entry, true
}

// NormalizeDate converts dd/mm/yy or dd/mm/yyyy into yyyy-mm-dd. Two digit years are placed in
// the 2000s. Values that are not three slash separated parts are returned unchanged.
func NormalizeDate(value string) string {
	parts := strings.Split(value, "/")
	if len(parts) != 3 {
		return value
	}
	day, month, year := parts[0], parts[1], parts[2]
	if len(year) == 2 {
		year = "20" + year
	}
	return year + "-" + padTwo(month) + "-" + padTwo(day)
}

func padTwo(s string) string {
	if len(s) < 2 {
		return strings.Repeat("0", 2-len(s)) + s
	}
	return s
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
