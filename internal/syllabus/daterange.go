package syllabus

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"cloud.google.com/go/civil"
)

var (
	weekPattern  = regexp.MustCompile(`Week (\d+)(?:\s+and\s+(\d+))?`)
	rangePattern = regexp.MustCompile(`Week \d+(?:\s+and\s+\d+)?\s*\((.*?)\)`)
	dayPrefix    = regexp.MustCompile(`^\d+`)
)

// months is case-sensitive; both "Sep" and "Sept" name September.
var months = map[string]time.Month{
	"Jan":  time.January,
	"Feb":  time.February,
	"Mar":  time.March,
	"Apr":  time.April,
	"May":  time.May,
	"Jun":  time.June,
	"Jul":  time.July,
	"Aug":  time.August,
	"Sep":  time.September,
	"Sept": time.September,
	"Oct":  time.October,
	"Nov":  time.November,
	"Dec":  time.December,
}

// rangeDashes are accepted between the start and end of a range. PDF text
// conversion often turns a typed hyphen into an en or em dash.
var rangeDashes = strings.NewReplacer("–", "-", "—", "-")

// Resolver turns week expressions into concrete dates. Year is the
// reference year for the range start; it is supplied by the caller, never
// read from the clock.
type Resolver struct {
	Year      int
	Location  *time.Location
	StartHour int
}

// NewResolver returns a Resolver starting events at DefaultStartHour.
// A nil loc means UTC.
func NewResolver(year int, loc *time.Location) Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return Resolver{Year: year, Location: loc, StartHour: DefaultStartHour}
}

// monthDay is one side of a range before a year is attached.
type monthDay struct {
	month time.Month
	day   int
}

// Resolve parses row.DateExpr, e.g. "Week 12 and 13 (Nov. 18-30)" or
// "Week 14 (Dec. 28-Jan. 3)". The end side may omit its month to mean the
// start month. When the end month number is below the start month number
// the end falls in the following year.
func (r Resolver) Resolve(row ModuleRow) (DateRange, error) {
	expr := row.DateExpr

	label, err := weekLabel(expr)
	if err != nil {
		return DateRange{}, err
	}

	m := rangePattern.FindStringSubmatch(expr)
	if m == nil {
		return DateRange{}, skip(ReasonNoRange, "%q", expr)
	}
	startTok, endTok := splitRange(strings.TrimSpace(m[1]))

	start, err := parseSide(startTok, 0)
	if err != nil {
		return DateRange{}, err
	}
	end, err := parseSide(endTok, start.month)
	if err != nil {
		return DateRange{}, err
	}

	endYear := r.Year
	if end.month < start.month {
		endYear++
	}
	dr := DateRange{
		WeekLabel: label,
		Start:     civil.Date{Year: r.Year, Month: start.month, Day: start.day},
		End:       civil.Date{Year: endYear, Month: end.month, Day: end.day},
	}
	if !dr.Start.IsValid() {
		return DateRange{}, skip(ReasonInvalidDate, "start %s in %q", dr.Start, expr)
	}
	if !dr.End.IsValid() {
		return DateRange{}, skip(ReasonInvalidDate, "end %s in %q", dr.End, expr)
	}
	if dr.End.Before(dr.Start) {
		return DateRange{}, skip(ReasonInvertedRange, "%s after %s in %q", dr.Start, dr.End, expr)
	}

	dr.StartAt = r.at(dr.Start)
	dr.EndAt = dr.StartAt.Add(hoursDuration(row.Hours))
	return dr, nil
}

func (r Resolver) at(d civil.Date) time.Time {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, r.StartHour, 0, 0, 0, loc)
}

func hoursDuration(h float64) time.Duration {
	if !durationFits(h) {
		h = DefaultHours
	}
	return time.Duration(h * float64(time.Hour))
}

// durationFits reports whether h hours is a time.Duration of at least one
// second. Calendar formats cannot represent anything shorter.
func durationFits(h float64) bool {
	d := h * float64(time.Hour)
	return d >= float64(time.Second) && d < float64(math.MaxInt64)
}

// weekLabel yields "Week N" or "Weeks N and M".
func weekLabel(expr string) (string, error) {
	m := weekPattern.FindStringSubmatch(expr)
	if m == nil {
		return "", skip(ReasonNoWeek, "%q", expr)
	}
	if m[2] != "" {
		return "Weeks " + m[1] + " and " + m[2], nil
	}
	return "Week " + m[1], nil
}

// splitRange cuts "Nov. 28-Dec. 2" into its two sides. Text without a dash
// is a single day, so both sides are the same.
func splitRange(s string) (string, string) {
	s = rangeDashes.Replace(s)
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return s, s
	}
	// Anything after a second dash is ignored.
	end, _, _ = strings.Cut(end, "-")
	return strings.TrimSpace(start), strings.TrimSpace(end)
}

// parseSide reads "Nov. 18", "Nov 18" or, when fallback is set, a bare "30".
func parseSide(tok string, fallback time.Month) (monthDay, error) {
	parts := strings.FieldsFunc(tok, func(r rune) bool {
		return unicode.IsSpace(r) || r == '.'
	})

	var monthTok, dayTok string
	switch {
	case len(parts) >= 2:
		monthTok, dayTok = parts[0], parts[1]
	case len(parts) == 1 && fallback != 0:
		dayTok = parts[0]
	case len(parts) == 1:
		monthTok = parts[0]
	}

	month := fallback
	if monthTok != "" {
		var ok bool
		if month, ok = months[monthTok]; !ok {
			return monthDay{}, skip(ReasonUnknownMonth, "%q", monthTok)
		}
	}

	digits := dayPrefix.FindString(dayTok)
	if digits == "" {
		return monthDay{}, skip(ReasonBadDay, "%q", tok)
	}
	day, err := strconv.Atoi(digits)
	if err != nil {
		return monthDay{}, skip(ReasonBadDay, "%q", tok)
	}
	return monthDay{month: month, day: day}, nil
}
