// Package dateparse finds a single date mention in free text.
//
// Three patterns are tried in order and the first match wins:
//
//	YYYY-MM-DD   confidence 0.95
//	M월 D일      confidence 0.85, in the current year
//	내일         confidence 0.6, the day after now
//
// Anything else, including empty input, is not a date. Calendar-invalid
// matches such as 2024-02-30 are skipped.
package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Confidence per pattern
const (
	ConfidenceISO      = 0.95
	ConfidenceMonthDay = 0.85
	ConfidenceTomorrow = 0.6
)

const isoLayout = "2006-01-02"

const tomorrow = "내일"

var (
	isoPattern      = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	monthDayPattern = regexp.MustCompile(`(\d{1,2})월\s*(\d{1,2})일`)
)

// Result is one extracted date. Start and End are byte offsets of RawText
// in the input, End exclusive.
type Result struct {
	ISODate    string    `json:"iso_date"`
	RawText    string    `json:"raw_text"`
	Confidence float64   `json:"confidence"`
	Date       time.Time `json:"date"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
}

// Parse extracts the first date in text, resolving relative forms against
// now. Dates are midnight in now's location.
func Parse(text string, now time.Time) (Result, bool) {
	if strings.TrimSpace(text) == "" {
		return Result{}, false
	}

	for _, m := range isoPattern.FindAllStringSubmatchIndex(text, -1) {
		// Letters may touch the date, as in 2024-01-15T10:00; digits may not.
		if digitAt(text, m[0]-1) || digitAt(text, m[1]) {
			continue
		}
		year, _ := strconv.Atoi(text[m[2]:m[3]])
		month, _ := strconv.Atoi(text[m[4]:m[5]])
		day, _ := strconv.Atoi(text[m[6]:m[7]])
		if d, ok := date(year, month, day, now.Location()); ok {
			return result(text, m[0], m[1], d, ConfidenceISO), true
		}
	}

	for _, m := range monthDayPattern.FindAllStringSubmatchIndex(text, -1) {
		month, _ := strconv.Atoi(text[m[2]:m[3]])
		day, _ := strconv.Atoi(text[m[4]:m[5]])
		if d, ok := date(now.Year(), month, day, now.Location()); ok {
			return result(text, m[0], m[1], d, ConfidenceMonthDay), true
		}
	}

	if i := strings.Index(text, tomorrow); i >= 0 {
		y, mo, d := now.Date()
		next := time.Date(y, mo, d+1, 0, 0, 0, 0, now.Location())
		return result(text, i, i+len(tomorrow), next, ConfidenceTomorrow), true
	}

	return Result{}, false
}

// ParseNow is Parse against the current time
func ParseNow(text string) (Result, bool) {
	return Parse(text, time.Now())
}

func digitAt(text string, i int) bool {
	return i >= 0 && i < len(text) && text[i] >= '0' && text[i] <= '9'
}

// date builds a calendar date, rejecting values time.Date would normalize
func date(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Month() != time.Month(month) || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func result(text string, start, end int, d time.Time, confidence float64) Result {
	return Result{
		ISODate:    d.Format(isoLayout),
		RawText:    text[start:end],
		Confidence: confidence,
		Date:       d,
		Start:      start,
		End:        end,
	}
}
