package dates

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"voucher-service/internal/domain"
)

// rocOffset converts between Gregorian and Republic-of-China years.
const rocOffset = 1911

// Style selects how dates are displayed on rendered vouchers.
type Style string

const (
	StyleROC       Style = "roc"
	StyleGregorian Style = "gregorian"
)

var (
	delimitedPattern = regexp.MustCompile(`^(\d{1,4})\s*[/\-.]\s*(\d{1,2})\s*[/\-.]\s*(\d{1,2})`)
	textualPattern   = regexp.MustCompile(`(\d{1,4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日?`)
	compactPattern   = regexp.MustCompile(`^\d{7,8}$`)
	eraPrefixPattern = regexp.MustCompile(`^(民國|民国|中華民國|中华民国)\s*`)
)

// Options configure a Normalizer.
type Options struct {
	// RocMin and RocMax bound years read verbatim as ROC years.
	RocMin int
	RocMax int
	// SerialMin and SerialMax bound numbers accepted as Excel serial dates.
	SerialMin float64
	SerialMax float64
}

// DefaultOptions returns the era policy used when nothing is configured.
func DefaultOptions() Options {
	return Options{RocMin: 1, RocMax: 200, SerialMin: 35000, SerialMax: 50000}
}

// Normalizer turns heterogeneous raw dates into ROC-era dates.
//
// Era policy: the canonical era-year is always the ROC year. Native dates and
// Gregorian text years (>= 1912) are offset by 1911; text years inside
// [RocMin, RocMax] are already ROC and kept verbatim.
type Normalizer struct {
	opts Options
}

// NewNormalizer builds a Normalizer; zero options take defaults.
func NewNormalizer(opts Options) *Normalizer {
	def := DefaultOptions()
	if opts.RocMin <= 0 {
		opts.RocMin = def.RocMin
	}
	if opts.RocMax <= 0 {
		opts.RocMax = def.RocMax
	}
	if opts.SerialMin <= 0 {
		opts.SerialMin = def.SerialMin
	}
	if opts.SerialMax <= 0 {
		opts.SerialMax = def.SerialMax
	}
	return &Normalizer{opts: opts}
}

// Normalize parses value. On failure it returns the zero EraDate together
// with an *domain.InvalidDateError.
func (n *Normalizer) Normalize(value domain.CellValue) (domain.EraDate, error) {
	switch value.Kind {
	case domain.CellTime:
		return n.fromTime(value.Time, value.String())
	case domain.CellNumber:
		return n.fromNumber(value.Number)
	case domain.CellText:
		return n.fromText(value.Text)
	}
	return domain.EraDate{}, invalid("", "empty cell")
}

func (n *Normalizer) fromTime(t time.Time, raw string) (domain.EraDate, error) {
	if t.Year() <= rocOffset {
		return domain.EraDate{}, invalid(raw, "year before the ROC epoch")
	}
	return domain.EraDate{Year: t.Year() - rocOffset, Month: int(t.Month()), Day: t.Day()}, nil
}

func (n *Normalizer) fromNumber(f float64) (domain.EraDate, error) {
	if f == math.Trunc(f) && f >= 1_000_000 && f < 100_000_000 {
		return n.fromText(strconv.FormatFloat(f, 'f', 0, 64))
	}
	raw := strconv.FormatFloat(f, 'f', -1, 64)
	if f < n.opts.SerialMin || f > n.opts.SerialMax {
		return domain.EraDate{}, invalid(raw, "number outside the serial date range")
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return domain.EraDate{}, invalid(raw, err.Error())
	}
	return n.fromTime(t, raw)
}

func (n *Normalizer) fromText(raw string) (domain.EraDate, error) {
	s := strings.TrimSpace(norm.NFKC.String(raw))
	s = eraPrefixPattern.ReplaceAllString(s, "")
	if s == "" {
		return domain.EraDate{}, invalid(raw, "blank")
	}

	if m := delimitedPattern.FindStringSubmatch(s); m != nil {
		return n.build(raw, m[1], m[2], m[3])
	}
	if m := textualPattern.FindStringSubmatch(s); m != nil {
		return n.build(raw, m[1], m[2], m[3])
	}
	if compactPattern.MatchString(s) {
		split := len(s) - 4
		return n.build(raw, s[:split], s[split:split+2], s[split+2:])
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return n.fromNumber(f)
	}
	return domain.EraDate{}, invalid(raw, "no recognizable date pattern")
}

func (n *Normalizer) build(raw, ys, ms, ds string) (domain.EraDate, error) {
	year, _ := strconv.Atoi(ys)
	month, _ := strconv.Atoi(ms)
	day, _ := strconv.Atoi(ds)

	switch {
	case year >= n.opts.RocMin && year <= n.opts.RocMax:
	case year > rocOffset:
		year -= rocOffset
	default:
		return domain.EraDate{}, invalid(raw, fmt.Sprintf("year %d is neither ROC nor Gregorian", year))
	}

	t := time.Date(year+rocOffset, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year+rocOffset || int(t.Month()) != month || t.Day() != day {
		return domain.EraDate{}, invalid(raw, "no such calendar day")
	}
	return domain.EraDate{Year: year, Month: month, Day: day}, nil
}

func invalid(raw, reason string) error {
	return &domain.InvalidDateError{Value: raw, Reason: reason}
}

// Format renders d for display on a voucher.
func Format(d domain.EraDate, style Style) string {
	year := d.Year
	if style == StyleGregorian {
		year = d.Gregorian()
	}
	return fmt.Sprintf("%d 年 %d 月 %d 日", year, d.Month, d.Day)
}
