// Package utils provides small, generic helpers for parsing paging query
// parameters. They know nothing about the catalog; handlers map the results
// onto domain.PageRequest.
package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotInteger is returned when a numeric parameter does not parse.
var ErrNotInteger = errors.New("not an integer")

// IntParam parses s as a base-10 int in [lo, hi]. An empty (or all-space) s
// yields def. Out-of-range values are errors, never clamped.
//
//	n, _ := utils.IntParam("", 20, 1, 100)    // 20
//	n, _ = utils.IntParam("3", 20, 1, 100)    // 3
//	_, err := utils.IntParam("0", 20, 1, 100) // error: below minimum
//	_, err = utils.IntParam("101", 20, 1, 100) // error: above maximum
func IntParam(s string, def, lo, hi int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, ErrNotInteger)
	}
	if n < lo {
		return 0, fmt.Errorf("%d is below the minimum %d", n, lo)
	}
	if n > hi {
		return 0, fmt.Errorf("%d is above the maximum %d", n, hi)
	}
	return n, nil
}

// ParseSort splits "field[,asc|desc]" into a lower-cased field and a
// descending flag. Empty input yields ("", false, nil). The field is not
// checked against any allowlist.
func ParseSort(s string) (field string, desc bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false, nil
	}
	f, dir, _ := strings.Cut(s, ",")
	field = strings.ToLower(strings.TrimSpace(f))
	if field == "" {
		return "", false, errors.New("sort field is empty")
	}
	switch d := strings.ToLower(strings.TrimSpace(dir)); d {
	case "", "asc":
		return field, false, nil
	case "desc":
		return field, true, nil
	default:
		return "", false, fmt.Errorf("invalid sort direction %q", d)
	}
}
