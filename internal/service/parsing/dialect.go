package parsing

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/mamadbah2/milklog/internal/domain/models"
)

// ErrUnknownDialect is returned when a dialect name is not registered.
var ErrUnknownDialect = errors.New("unknown line dialect")

const (
	// DialectLog is the plain collection log: volume-fat pairs plus "|N|" or "cow milk: N" cells.
	DialectLog = "log"
	// DialectTabular is the unit-suffixed table: "18 CM 16 CM" style cow milk columns.
	DialectTabular = "tabular"
)

// DefaultSessionPattern matches hyphen separated volume-fat pairs such as "3.0-5.0".
var DefaultSessionPattern = regexp.MustCompile(`(\d+\.?\d*)-(\d+\.?\d*)`)

// Dialect recognizes the measurements of one family of log layouts.
type Dialect interface {
	Name() string
	// Sessions returns the fat-rated sessions found on the line, in order, at most two.
	Sessions(line string) []models.MilkSession
	// CowVolume returns the cow milk volume of a line. body is the line with its serial
	// number and date token removed.
	CowVolume(line, body string) (float64, bool)
}

// PatternDialect is a Dialect driven entirely by regular expressions. The first capture group
// of each cow pattern is the volume.
type PatternDialect struct {
	DialectName    string
	SessionPattern *regexp.Regexp
	CowPatterns    []*regexp.Regexp
	// MatchBody applies cow patterns to the line body instead of the full line.
	MatchBody bool
}

// Name implements Dialect.
func (d *PatternDialect) Name() string { return d.DialectName }

// Sessions implements Dialect.
func (d *PatternDialect) Sessions(line string) []models.MilkSession {
	pattern := d.SessionPattern
	if pattern == nil {
		pattern = DefaultSessionPattern
	}

	matches := pattern.FindAllStringSubmatch(line, 2)
	sessions := make([]models.MilkSession, 0, len(matches))
	for _, m := range matches {
		if len(m) < 3 {
			continue
		}
		volume, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		fat, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		sessions = append(sessions, models.MilkSession{VolumeLiters: volume, FatPercent: fat})
	}
	return sessions
}

// CowVolume implements Dialect.
func (d *PatternDialect) CowVolume(line, body string) (float64, bool) {
	target := line
	if d.MatchBody {
		target = body
	}
	for _, pattern := range d.CowPatterns {
		m := pattern.FindStringSubmatch(target)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		volume, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return volume, true
	}
	return 0, false
}

// LogDialect returns the plain collection log dialect.
func LogDialect() Dialect {
	return &PatternDialect{
		DialectName:    DialectLog,
		SessionPattern: DefaultSessionPattern,
		CowPatterns: []*regexp.Regexp{
			regexp.MustCompile(`\|(\d+\.?\d*)\|`),
			regexp.MustCompile(`(?i)cow milk:\s*(\d+\.?\d*)`),
		},
	}
}

// TabularDialect returns the unit-suffixed table dialect. A bare number, optionally followed by
// a unit and optionally by a second number, opens the line body; the first number is the volume.
func TabularDialect() Dialect {
	const unit = `(?:\s*(?i:cm|ltr|lt|l)\b)?`
	return &PatternDialect{
		DialectName:    DialectTabular,
		SessionPattern: DefaultSessionPattern,
		CowPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^(\d+(?:\.\d+)?)` + unit + `(?:\s+\d+(?:\.\d+)?` + unit + `)?(?:\s|$)`),
		},
		MatchBody: true,
	}
}

// Registry holds the dialects available to parsers, keyed by name.
type Registry struct {
	mu       sync.RWMutex
	dialects map[string]Dialect
}

// NewRegistry returns a registry preloaded with the built-in dialects.
func NewRegistry() *Registry {
	r := &Registry{dialects: make(map[string]Dialect)}
	r.Register(LogDialect())
	r.Register(TabularDialect())
	return r
}

// Register adds or replaces a dialect.
func (r *Registry) Register(d Dialect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialects[d.Name()] = d
}

// Lookup returns the named dialect.
func (r *Registry) Lookup(name string) (Dialect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dialects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
	return d, nil
}

// Names lists registered dialect names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.dialects))
	for name := range r.dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
