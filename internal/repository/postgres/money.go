package postgres

import (
	"fmt"
	"strconv"
	"strings"
)

// Monetary columns are NUMERIC(14,2) in Postgres and int64 cents in Go. The
// conversion parses digits directly instead of going through float64, so
// amounts near the column's precision limit stay exact.

func numericStringToCents(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty numeric string")
	}

	negative := false
	switch trimmed[0] {
	case '-':
		negative = true
		trimmed = trimmed[1:]
	case '+':
		trimmed = trimmed[1:]
	}

	whole, frac, _ := strings.Cut(trimmed, ".")
	if whole == "" {
		whole = "0"
	}

	wholeVal, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	cents := wholeVal * 100

	if frac != "" {
		for _, c := range frac {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("parse numeric %q: invalid fraction", s)
			}
		}
		cents += int64(frac[0]-'0') * 10
		if len(frac) > 1 {
			cents += int64(frac[1] - '0')
		}
		// Columns are scale 2; anything beyond rounds half up.
		if len(frac) > 2 && frac[2] >= '5' {
			cents++
		}
	}

	if negative {
		cents = -cents
	}
	return cents, nil
}

func centsToNumericString(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
