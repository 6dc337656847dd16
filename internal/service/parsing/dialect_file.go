package parsing

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// dialectFile is the YAML layout for declaring extra dialects:
//
//	dialects:
//	  - name: pipe-table
//	    session_pattern: '(\d+\.?\d*)/(\d+\.?\d*)'
//	    cow_patterns: ['\|\s*(\d+\.?\d*)\s*\|']
//	    match_body: false
type dialectFile struct {
	Dialects []dialectDecl `yaml:"dialects"`
}

type dialectDecl struct {
	Name           string   `yaml:"name"`
	SessionPattern string   `yaml:"session_pattern"`
	CowPatterns    []string `yaml:"cow_patterns"`
	MatchBody      bool     `yaml:"match_body"`
}

// LoadDialects reads dialect declarations from a YAML file and registers them. Declarations
// reusing a built-in name replace the built-in.
func LoadDialects(path string, registry *Registry) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dialects file %s: %w", path, err)
	}
	dialects, err := DecodeDialects(data)
	if err != nil {
		return nil, fmt.Errorf("dialects file %s: %w", path, err)
	}

	names := make([]string, 0, len(dialects))
	for _, d := range dialects {
		registry.Register(d)
		names = append(names, d.Name())
	}
	return names, nil
}

// DecodeDialects compiles YAML dialect declarations.
func DecodeDialects(data []byte) ([]Dialect, error) {
	var file dialectFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	out := make([]Dialect, 0, len(file.Dialects))
	for i, decl := range file.Dialects {
		d, err := decl.compile()
		if err != nil {
			return nil, fmt.Errorf("dialect #%d: %w", i+1, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s dialectDecl) compile() (*PatternDialect, error) {
	if s.Name == "" {
		return nil, errors.New("name must be provided")
	}

	d := &PatternDialect{DialectName: s.Name, SessionPattern: DefaultSessionPattern, MatchBody: s.MatchBody}
	if s.SessionPattern != "" {
		re, err := regexp.Compile(s.SessionPattern)
		if err != nil {
			return nil, fmt.Errorf("%s: session_pattern: %w", s.Name, err)
		}
		if re.NumSubexp() < 2 {
			return nil, fmt.Errorf("%s: session_pattern needs two capture groups", s.Name)
		}
		d.SessionPattern = re
	}

	for _, raw := range s.CowPatterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: cow pattern %q: %w", s.Name, raw, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("%s: cow pattern %q needs a capture group", s.Name, raw)
		}
		d.CowPatterns = append(d.CowPatterns, re)
	}
	return d, nil
}
