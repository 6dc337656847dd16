package models

import (
	"math"
	"strconv"
	"strings"
)

// IntakeOptions are the processing choices a sender can put in a media caption,
// for example "cow dialect=tabular rate=35". Words the parser does not know are ignored.
type IntakeOptions struct {
	MilkType     string
	Dialect      string
	RatePerLiter float64
	Raw          string
}

// ParseCaption derives IntakeOptions from a free-form caption.
func ParseCaption(caption string) IntakeOptions {
	opts := IntakeOptions{Raw: caption}

	for _, token := range strings.Fields(strings.ToLower(caption)) {
		token = strings.Trim(strings.TrimPrefix(token, "/"), ".,;")
		key, value, hasValue := strings.Cut(token, "=")
		if !hasValue {
			key, value, hasValue = strings.Cut(token, ":")
		}

		if hasValue {
			switch key {
			case "rate":
				if rate, err := strconv.ParseFloat(value, 64); err == nil && rate > 0 && !math.IsInf(rate, 0) {
					opts.RatePerLiter = rate
				}
			case "dialect", "format":
				opts.Dialect = value
			case "milk", "type":
				if _, err := ParseMilkType(value); err == nil {
					opts.MilkType = value
				}
			}
			continue
		}

		if opts.MilkType == "" {
			if mt, err := ParseMilkType(token); err == nil {
				opts.MilkType = string(mt)
			}
		}
	}

	return opts
}
