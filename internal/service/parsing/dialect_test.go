package parsing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mamadbah2/milklog/internal/domain/models"
)

func TestRegistry_BuiltIns(t *testing.T) {
	r := NewRegistry()

	names := r.Names()
	if len(names) != 2 || names[0] != DialectLog || names[1] != DialectTabular {
		t.Errorf("Names() = %v, want [log tabular]", names)
	}

	if _, err := r.Lookup("missing"); !errors.Is(err, ErrUnknownDialect) {
		t.Errorf("Lookup(missing) error = %v, want ErrUnknownDialect", err)
	}
}

func TestTabularDialect_IgnoresSessionPairs(t *testing.T) {
	d := TabularDialect()
	if v, ok := d.CowVolume("", "3.0-5.0 3.8-7.8"); ok {
		t.Errorf("CowVolume matched session pair body, got %v", v)
	}
	if v, ok := d.CowVolume("", "18CM 16CM"); !ok || v != 18 {
		t.Errorf("CowVolume(18CM 16CM) = %v, %v; want 18, true", v, ok)
	}
}

func TestPatternDialect_SessionsCapsAtTwo(t *testing.T) {
	sessions := LogDialect().Sessions("1 1.0-2.0 3.0-4.0 5.0-6.0")
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[1].VolumeLiters != 3.0 || sessions[1].FatPercent != 4.0 {
		t.Errorf("second session = %+v, want {3 4}", sessions[1])
	}
}

func TestLoadDialects(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dialects.yaml")
	content := `dialects:
  - name: slash
    session_pattern: '(\d+\.?\d*)/(\d+\.?\d*)'
    cow_patterns:
      - 'COW\s+(\d+\.?\d*)'
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	names, err := LoadDialects(path, r)
	if err != nil {
		t.Fatalf("LoadDialects() error = %v", err)
	}
	if len(names) != 1 || names[0] != "slash" {
		t.Errorf("names = %v, want [slash]", names)
	}

	d, err := r.Lookup("slash")
	if err != nil {
		t.Fatalf("Lookup(slash) error = %v", err)
	}

	res := New(d, 32).Parse("1 2.0/6.5 COW 4", models.MilkBoth)
	if len(res.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(res.Entries))
	}
	e := res.Entries[0]
	if e.Morning == nil || e.Morning.VolumeLiters != 2.0 || e.Morning.FatPercent != 6.5 {
		t.Errorf("Morning = %+v, want {2.0 6.5}", e.Morning)
	}
	if e.CowMilk == nil || e.CowMilk.VolumeLiters != 4 {
		t.Errorf("CowMilk = %+v, want 4L", e.CowMilk)
	}
}

func TestDecodeDialects_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "dialects:\n  - cow_patterns: ['(\\d+)']\n"},
		{"bad regexp", "dialects:\n  - name: x\n    cow_patterns: ['(']\n"},
		{"no capture group", "dialects:\n  - name: x\n    cow_patterns: ['\\d+']\n"},
		{"session needs two groups", "dialects:\n  - name: x\n    session_pattern: '(\\d+)'\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeDialects([]byte(tt.yaml)); err == nil {
				t.Error("DecodeDialects() error = nil, want error")
			}
		})
	}
}
