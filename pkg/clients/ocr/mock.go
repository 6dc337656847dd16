package ocr

import (
	"context"
	"fmt"
	"time"
)

// Mock sample names.
const (
	SampleLog     = "log"
	SampleTabular = "tabular"
)

var samples = map[string]string{
	SampleLog: `
      Milk Collection Log - Customer ID: CUS001
      Date Range: 16/06/2025 - 30/06/2025

      S.No  Date       Morning    Evening    Cow Milk
      16    30/06/25   3.0-5.0    3.8-7.8
      17    30/06/25   3.0-7.4    3.0-9.1
      18    27/06/25   2.7-8.0    3.1-8.7
      19    3.0-6.4    3.4-7.15
      20    2.9-7.1    3.8-7.15
      21    3.1-6.5    3.3-7.7
      22    2.9-6.0    3.3-7.7
      23    2.8-7.1    3.2-7.2
      24    3.2-7.8    3.6-7.6
      25    1.1-8.3    3.3-7.6
      26    1.5-9.5    2.6-8.0
      27    2.5-6.7    3.5-7.2
      28    2.7-7.1    3.4-7.2
      29    2.5-6.7    3.0-7.3
      30    2.0-5.8    3.0-7.3
      1     2.0-6.0    2.0-6.0
      2     1.6-6.5    1.6-6.5
      3     1.4-7.0    1.4-7.0
      4     1.5-7.0    1.5-7.0
      5     1.5-7.0    1.5-7.0
      6     1.2-7.5    1.2-7.5
      7     2.2-7.8    2.2-7.8
      8     1.7-8.0    1.7-8.0
      9     1.7-7.7    1.7-7.7
      10    1.6-8.2    1.6-8.2
      11    1.8-8.5    1.8-8.5
      12    1.5-8.0    1.5-8.0
      13    1.7-8.5    1.7-8.5
      14    1.2-10.0   1.2-10.0
`,
	SampleTabular: `
      Customer ID: CM204
      Period 01/07/2025 - 15/07/2025
      S.No  Morning  Evening
      1     18 CM    16 CM
      2     21 CM    19 CM
      3     17 CM    18 CM
      4     20 CM    17 CM
      5     19 CM    16 CM
      6     22 CM    20 CM
      7     18 CM    18 CM
      8     16 CM    15 CM
      9     20 CM    19 CM
      10    21 CM    18 CM
      11    19 CM    17 CM
      12    18 CM    16 CM
      13    20 CM    18 CM
      14    22 CM    19 CM
      15    19 CM    18 CM
`,
}

// MockExtractor returns canned text after an optional delay, standing in for a real backend.
type MockExtractor struct {
	text  string
	delay time.Duration
}

// NewMockExtractor returns a mock serving the named sample.
func NewMockExtractor(sample string, delay time.Duration) (*MockExtractor, error) {
	text, ok := samples[sample]
	if !ok {
		return nil, fmt.Errorf("unknown mock sample %q", sample)
	}
	return &MockExtractor{text: text, delay: delay}, nil
}

// NewStaticExtractor returns a mock serving text verbatim.
func NewStaticExtractor(text string) *MockExtractor {
	return &MockExtractor{text: text}
}

// ExtractText implements Extractor. The input bytes are ignored.
func (m *MockExtractor) ExtractText(ctx context.Context, _ []byte, _ string) (string, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", NewTransportError("mock extract", 0, ctx.Err())
		case <-timer.C:
		}
	}
	return m.text, nil
}

var _ Extractor = (*MockExtractor)(nil)
