package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cents is an amount of money in hundredths of the currency unit
type Cents int64

// CentsFromFloat converts a decimal amount (4.5) to cents (450), rounding half away from zero
func CentsFromFloat(amount float64) Cents {
	return Cents(math.Round(amount * 100))
}

// ParseCents parses "4.50", "$4.50" or "1,204.10". Blank input returns ok=false with no error.
func ParseCents(s string) (Cents, bool, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, fmt.Errorf("invalid amount %q", s)
	}
	return CentsFromFloat(f), true, nil
}

// Mul returns the amount multiplied by a quantity
func (c Cents) Mul(quantity int) Cents {
	return c * Cents(quantity)
}

// String renders the amount as a plain decimal, e.g. "4.50"
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Ptr returns a pointer to a copy of c
func (c Cents) Ptr() *Cents {
	return &c
}
