package shared

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var usd = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders a signed, comma-grouped, two-decimal dollar
// string. Nil renders the placeholder used throughout the reports.
func FormatCurrency(v *float64) string {
	if v == nil {
		return "-"
	}
	n := *v
	if n < 0 {
		return usd.Sprintf("-$%.2f", -n)
	}
	return usd.Sprintf("$%.2f", n)
}

// FormatAmount is FormatCurrency for a non-optional value.
func FormatAmount(v float64) string {
	return FormatCurrency(&v)
}

// FormatDate renders month/day/year without zero padding, the display
// format the reports use. Zero time renders the placeholder.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("1/2/2006")
}

// ParsePickerDate converts the calendar picker's wire format to a
// time value. Empty input is valid and returns the zero time.
func ParsePickerDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
