package daterange

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"
)

// Layout is the ISO calendar date format used on the wire.
const Layout = "2006-01-02"

// Bounds maps a viewport width band onto a band of months of history.
type Bounds struct {
	MinWidth  int
	MaxWidth  int
	MinMonths int
	MaxMonths int
}

// DefaultBounds covers phones (320px) up to wide desktops (1536px).
var DefaultBounds = Bounds{
	MinWidth:  320,
	MaxWidth:  1536,
	MinMonths: 3,
	MaxMonths: 12,
}

// DateRange is an inclusive window of calendar dates. Both ends are UTC midnight.
type DateRange struct {
	From time.Time
	To   time.Time
}

// MonthsToShow returns the number of months to load for width using DefaultBounds.
func MonthsToShow(width int) int {
	return DefaultBounds.MonthsToShow(width)
}

// MonthsToShow clamps width into the band and interpolates linearly into the month band.
// Ties round half away from zero, so a width exactly between two month counts picks the larger one.
func (b Bounds) MonthsToShow(width int) int {
	if b.MaxWidth <= b.MinWidth {
		if width >= b.MaxWidth {
			return b.MaxMonths
		}
		return b.MinMonths
	}

	clamped := max(b.MinWidth, min(width, b.MaxWidth))
	ratio := float64(clamped-b.MinWidth) / float64(b.MaxWidth-b.MinWidth)
	months := float64(b.MinMonths) + ratio*float64(b.MaxMonths-b.MinMonths)

	return int(math.Round(months))
}

// Validate reports whether the bounds describe a usable band.
func (b Bounds) Validate() error {
	if b.MinWidth <= 0 || b.MaxWidth <= 0 {
		return errors.New("widths must be greater than 0")
	}
	if b.MaxWidth <= b.MinWidth {
		return fmt.Errorf("max width %d must be greater than min width %d", b.MaxWidth, b.MinWidth)
	}
	if b.MinMonths <= 0 || b.MaxMonths <= 0 {
		return errors.New("months must be greater than 0")
	}
	if b.MaxMonths < b.MinMonths {
		return fmt.Errorf("max months %d must not be lower than min months %d", b.MaxMonths, b.MinMonths)
	}
	return nil
}

// Compute returns the range ending on today's calendar date and starting monthsBack months earlier.
// When the target month is shorter than today's day of month, the day is clamped to the month's last day.
func Compute(today time.Time, monthsBack int) DateRange {
	if monthsBack < 0 {
		monthsBack = 0
	}

	year, month, day := today.Date()
	to := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

	// Month index counted from year 0 keeps the arithmetic free of year rollover cases.
	index := year*12 + int(month-1) - monthsBack
	fromYear := floorDiv(index, 12)
	fromMonth := time.Month(index-fromYear*12) + 1

	lastDay := time.Date(fromYear, fromMonth+1, 0, 0, 0, 0, 0, time.UTC).Day()
	from := time.Date(fromYear, fromMonth, min(day, lastDay), 0, 0, 0, 0, time.UTC)

	return DateRange{From: from, To: to}
}

// ForWidth combines MonthsToShow and Compute.
func (b Bounds) ForWidth(today time.Time, width int) (int, DateRange) {
	months := b.MonthsToShow(width)
	return months, Compute(today, months)
}

// Days returns the number of calendar days in the range, both ends included.
func (r DateRange) Days() int {
	return int(dayNumber(r.To)-dayNumber(r.From)) + 1
}

// dayNumber counts days since the Unix epoch for t's calendar date. Unlike Time.Sub it does not
// saturate on ranges longer than about 292 years.
func dayNumber(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// Query encodes the range as the from/to query parameters expected by the contribution endpoint.
func (r DateRange) Query() url.Values {
	return url.Values{
		"from": []string{FormatDate(r.From)},
		"to":   []string{FormatDate(r.To)},
	}
}

func (r DateRange) String() string {
	return FormatDate(r.From) + ".." + FormatDate(r.To)
}

type dateRangeJSON struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateRangeJSON{From: FormatDate(r.From), To: FormatDate(r.To)})
}

// ParseDate parses an ISO calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate formats t as an ISO calendar date.
func FormatDate(t time.Time) string {
	return t.Format(Layout)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
