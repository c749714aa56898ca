package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NowFunc returns the current time; mockable in tests.
var NowFunc = time.Now

func init() {
	// money amounts are sent as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// AcademicYear returns the academic year label ("2025-2026") containing t.
// Academic years start in September.
func AcademicYear(t time.Time) string {
	start := t.Year()
	if t.Month() < time.September {
		start--
	}
	return strconv.Itoa(start) + "-" + strconv.Itoa(start+1)
}
