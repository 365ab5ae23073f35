package reconcile

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	DefaultLocale         = "uz-UZ"
	DefaultCurrencySuffix = "so'm"
	DefaultTimezone       = "Asia/Tashkent"
	DefaultTimeLayout     = "02.01.2006, 15:04:05"

	moneyFractionDigits = 2
)

// Formatter renders money and timestamps for display rows
type Formatter struct {
	printer *message.Printer
	suffix  string
	layout  string
	loc     *time.Location
}

// FormatterOptions configures a Formatter. Empty fields take the defaults.
type FormatterOptions struct {
	Locale         string
	CurrencySuffix string
	Timezone       string
	TimeLayout     string
}

// NewFormatter creates a formatter for the given locale and time zone
func NewFormatter(opts FormatterOptions) (*Formatter, error) {
	locale := opts.Locale
	if locale == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}

	loc := time.UTC
	if opts.Timezone != "" {
		loc, err = time.LoadLocation(opts.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", opts.Timezone, err)
		}
	}

	layout := opts.TimeLayout
	if layout == "" {
		layout = DefaultTimeLayout
	}

	return &Formatter{
		printer: message.NewPrinter(tag),
		suffix:  opts.CurrencySuffix,
		layout:  layout,
		loc:     loc,
	}, nil
}

// DefaultFormatter uses English digit grouping, the so'm suffix and UTC
func DefaultFormatter() *Formatter {
	return &Formatter{
		printer: message.NewPrinter(language.English),
		suffix:  DefaultCurrencySuffix,
		layout:  DefaultTimeLayout,
		loc:     time.UTC,
	}
}

// Money renders an amount with locale digit grouping and the currency suffix
func (f *Formatter) Money(amount decimal.Decimal) string {
	v := amount.Round(moneyFractionDigits).InexactFloat64()
	s := f.printer.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(moneyFractionDigits)))
	if f.suffix == "" {
		return s
	}
	return s + " " + f.suffix
}

// Time renders a timestamp in the formatter's time zone
func (f *Formatter) Time(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(f.loc).Format(f.layout)
}

// Location returns the formatter's time zone
func (f *Formatter) Location() *time.Location {
	return f.loc
}
