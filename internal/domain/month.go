package domain

import (
	"fmt"
	"strings"
	"time"
)

// Month is the lowercase Spanish month name used as a column key by the
// grouped summary endpoints.
type Month string

const (
	Enero      Month = "enero"
	Febrero    Month = "febrero"
	Marzo      Month = "marzo"
	Abril      Month = "abril"
	Mayo       Month = "mayo"
	Junio      Month = "junio"
	Julio      Month = "julio"
	Agosto     Month = "agosto"
	Septiembre Month = "septiembre"
	Octubre    Month = "octubre"
	Noviembre  Month = "noviembre"
	Diciembre  Month = "diciembre"
)

// Months lists every month in calendar order.
var Months = []Month{
	Enero, Febrero, Marzo, Abril, Mayo, Junio,
	Julio, Agosto, Septiembre, Octubre, Noviembre, Diciembre,
}

// AllMonths returns a fresh copy of Months that callers may mutate.
func AllMonths() []Month {
	out := make([]Month, len(Months))
	copy(out, Months)
	return out
}

// Number returns the calendar number of the month (1-12), or 0 if unknown.
func (m Month) Number() int {
	for i, candidate := range Months {
		if candidate == m {
			return i + 1
		}
	}
	return 0
}

// Short returns the three letter abbreviation used in narrow column headers.
func (m Month) Short() string {
	s := string(m)
	if len(s) <= 3 {
		return s
	}
	return s[:3]
}

// MonthOf maps a time.Month to its column key.
func MonthOf(m time.Month) Month {
	if m < time.January || m > time.December {
		return ""
	}
	return Months[m-1]
}

// ParseMonth accepts a month name (any case) or its number.
func ParseMonth(s string) (Month, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, m := range Months {
		if string(m) == s || m.Short() == s || fmt.Sprint(i+1) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("ParseMonth: unknown month %q", s)
}
