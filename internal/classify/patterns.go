package classify

import "time"

// Pattern pairs a Type with the layout (or sentinel name) that produced
// the match, matching the (type, format) pairs the original describer
// narrows down per cell.
type pattern struct {
	typ    string // "date" | "datetime" | "time"
	layout string
}

// datePatterns, datetimePatterns, and timePatterns are tried in this
// fixed order; the first full-string match wins. Layouts are Go-layout
// equivalents of the original describer's strftime pattern lists.
var (
	datePatterns = []pattern{
		{"date", "2006-01-02"},
		{"date", "2006-Jan-02"},
		{"date", "January 02 06"},
		{"date", "January 02 2006"},
		{"date", "02 January 06"},
		{"date", "02 January 2006"},
		{"date", "01/02/06"},
		{"date", "01/02/2006"},
		{"date", "02/01/06"},
		{"date", "02/01/2006"},
		{"date", "2006/01/02"},
		{"date", "01.02.2006"},
		{"date", "2006.01.02"},
	}

	datetimePatterns = []pattern{
		{"datetime", "2006-01-02 15:04:05"},
		{"datetime", "2006-01-02 15:04"},
		{"datetime", "2006-01-02 15:04:05.000000"},
		{"datetime", "2006-01-02 03:04:05 PM"},
		{"datetime", "2006-01-02 03:04 PM"},
		{"datetime", "2006 Jan 02 15:04:05"},
		{"datetime", "January 02 2006 15:04:05"},
		{"datetime", "January 02 2006 03:04:05 PM"},
		{"datetime", "January 02 2006 03:04 PM"},
		{"datetime", "02 January 2006 15:04:05"},
		{"datetime", "02 January 2006 15:04"},
		{"datetime", "01/02/06 15:04:05"},
		{"datetime", "01/02/06 15:04"},
		{"datetime", "01/02/2006 15:04:05"},
		{"datetime", "01/02/2006 15:04"},
		{"datetime", "02/01/06 15:04:05"},
		{"datetime", "02/01/06 15:04"},
		{"datetime", "02/01/2006 15:04:05"},
		{"datetime", "02/01/2006 15:04"},
		{"datetime", "2006/01/02 15:04:05"},
		{"datetime", "2006/01/02 15:04"},
		{"datetime", time.RFC1123Z},
		{"datetime", time.RFC3339},
		{"datetime", "2006-01-02 15:04:05 MST"},
		{"datetime", "January 02 2006 15:04:05 MST"},
	}

	timePatterns = []pattern{
		{"time", "15:04"},
		{"time", "03:04:05 PM"},
		{"time", "03:04 PM"},
	}
)

// tryTemporal attempts every pattern in order, returning the matched
// (type, format) pair and ok=true on the first full-string match.
func tryTemporal(s string) (typ, format string, ok bool) {
	for _, p := range datetimePatterns {
		if _, err := time.Parse(p.layout, s); err == nil {
			return p.typ, p.layout, true
		}
	}
	for _, p := range datePatterns {
		if _, err := time.Parse(p.layout, s); err == nil {
			return p.typ, p.layout, true
		}
	}
	for _, p := range timePatterns {
		if _, err := time.Parse(p.layout, s); err == nil {
			return p.typ, p.layout, true
		}
	}
	return "", "", false
}
