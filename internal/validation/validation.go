// Package validation checks anime request bodies before they reach the
// service layer. Each rule is evaluated independently and every failure is
// collected as a (field, message) pair rather than aborting on the first one.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxNameLen is the longest accepted name in runes, counted on the
// NormalizeName form that is stored.
const MaxNameLen = 255

// Rule messages.
const (
	MsgNameNull  = "The anime's name cannot be null"
	MsgNameEmpty = "The anime's name cannot be empty"
	MsgIDNull    = "The anime's id cannot be null"

	MsgNameTooLong = "The anime's name cannot exceed 255 characters"
)

// AnimePostRequestBody is the JSON payload for creating an anime.
// Name is a pointer so a missing/null value can be told apart from "".
type AnimePostRequestBody struct {
	Name *string `json:"name" example:"Kingdom"`
}

// AnimePutRequestBody is the JSON payload for replacing an anime.
type AnimePutRequestBody struct {
	ID   *int64  `json:"id"   example:"1"`
	Name *string `json:"name" example:"Kingdom S2"`
}

// Violation is a single failed rule on a field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Violations is an ordered list of rule failures.
type Violations []Violation

// Fields returns the comma-joined field names.
func (vs Violations) Fields() string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Field
	}
	return strings.Join(out, ", ")
}

// Messages returns the comma-joined messages.
func (vs Violations) Messages() string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Message
	}
	return strings.Join(out, ", ")
}

// Err returns a *ValidationError when vs is non-empty, nil otherwise.
func (vs Violations) Err() error {
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}

// ValidationError reports a structurally invalid request body.
type ValidationError struct {
	Violations Violations
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + e.Violations.Messages()
}

// ValidatePost checks a create payload.
func ValidatePost(b AnimePostRequestBody) Violations {
	return checkName(nil, b.Name)
}

// ValidatePut checks a replace payload.
func ValidatePut(b AnimePutRequestBody) Violations {
	var vs Violations
	if b.ID == nil {
		vs = append(vs, Violation{Field: "id", Message: MsgIDNull})
	}
	return checkName(vs, b.Name)
}

// checkName applies NotNull, NotEmpty and the length limit to name. A null
// name fails the first two.
func checkName(vs Violations, name *string) Violations {
	if name == nil {
		vs = append(vs, Violation{Field: "name", Message: MsgNameNull})
	}
	if name == nil || strings.TrimSpace(*name) == "" {
		return append(vs, Violation{Field: "name", Message: MsgNameEmpty})
	}
	if utf8.RuneCountInString(NormalizeName(*name)) > MaxNameLen {
		vs = append(vs, Violation{Field: "name", Message: MsgNameTooLong})
	}
	return vs
}

// NormalizeName applies NFC, trims whitespace and collapses runs of it.
func NormalizeName(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(norm.NFC.String(s)), " ")
}

var whitespaceRE = regexp.MustCompile(`\s+`)
