package dwqar

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/flowcomply/compliance-engine/internal/domain/errors"
)

var periodPattern = regexp.MustCompile(`^(\d{4})-(?:(Annual)|Q(\d+))$`)

const (
	minPeriodYear = 1900
	quartersPerYr = 4
	monthsPerQtr  = 3
)

// ReportingPeriod is a calendar window over which compliance is assessed.
// Quarter is zero for annual periods. It encodes as its token in JSON.
type ReportingPeriod struct {
	Year    int
	Quarter int
}

// DateRange is an inclusive range of civil dates expressed as UTC midnights.
type DateRange struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// ParsePeriod resolves a period token of the form "<year>-Annual" or
// "<year>-Q<1-4>".
func ParsePeriod(token string) (ReportingPeriod, error) {
	m := periodPattern.FindStringSubmatch(token)
	if m == nil {
		return ReportingPeriod{}, errors.NewInvalidPeriodFormatError(token)
	}

	year, err := strconv.Atoi(m[1])
	if err != nil || year < minPeriodYear {
		return ReportingPeriod{}, errors.NewInvalidPeriodFormatError(token)
	}

	if m[2] == "Annual" {
		return ReportingPeriod{Year: year}, nil
	}

	quarter, err := strconv.Atoi(m[3])
	if err != nil || quarter < 1 || quarter > quartersPerYr {
		return ReportingPeriod{}, errors.NewInvalidPeriodFormatError(token)
	}

	return ReportingPeriod{Year: year, Quarter: quarter}, nil
}

// MustParsePeriod is ParsePeriod for tokens known to be valid.
func MustParsePeriod(token string) ReportingPeriod {
	p, err := ParsePeriod(token)
	if err != nil {
		panic(err)
	}
	return p
}

// AnnualPeriod returns the annual period for year.
func AnnualPeriod(year int) ReportingPeriod {
	return ReportingPeriod{Year: year}
}

// QuarterOf returns the quarterly period containing t.
func QuarterOf(t time.Time) ReportingPeriod {
	return ReportingPeriod{Year: t.Year(), Quarter: (int(t.Month())-1)/monthsPerQtr + 1}
}

// CurrentAnnual returns the annual period still open for submission at now:
// the previous calendar year up to and including 31 July, the current year after.
func CurrentAnnual(now time.Time) ReportingPeriod {
	now = now.UTC()
	cutoff := time.Date(now.Year(), time.July, 31, 23, 59, 59, 0, time.UTC)
	if !now.After(cutoff) {
		return AnnualPeriod(now.Year() - 1)
	}
	return AnnualPeriod(now.Year())
}

func (p ReportingPeriod) IsAnnual() bool {
	return p.Quarter == 0
}

func (p ReportingPeriod) String() string {
	if p.IsAnnual() {
		return fmt.Sprintf("%04d-Annual", p.Year)
	}
	return fmt.Sprintf("%04d-Q%d", p.Year, p.Quarter)
}

// Months is the number of calendar months the period spans.
func (p ReportingPeriod) Months() int {
	if p.IsAnnual() {
		return 12
	}
	return monthsPerQtr
}

// Range returns the inclusive date range of the period. The end date is the
// last day of the final month, derived from the calendar rather than a table.
func (p ReportingPeriod) Range() DateRange {
	startMonth := time.January
	if !p.IsAnnual() {
		startMonth = time.Month((p.Quarter-1)*monthsPerQtr + 1)
	}

	start := time.Date(p.Year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	// Day zero of the following month normalises to the last day of this one.
	end := time.Date(p.Year, startMonth+time.Month(p.Months()), 0, 0, 0, 0, 0, time.UTC)

	return DateRange{Start: start, End: end}
}

// MarshalText encodes the period as its token.
func (p ReportingPeriod) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a period token.
func (p *ReportingPeriod) UnmarshalText(text []byte) error {
	parsed, err := ParsePeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Contains reports whether t falls on any day of the range.
func (r DateRange) Contains(t time.Time) bool {
	from, until := r.Bounds()
	t = t.UTC()
	return !t.Before(from) && t.Before(until)
}

// Bounds returns the half-open instant range [Start, End+1 day) used for
// timestamp queries.
func (r DateRange) Bounds() (time.Time, time.Time) {
	return r.Start, r.End.AddDate(0, 0, 1)
}

// Days is the number of calendar days in the range, inclusive.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}
