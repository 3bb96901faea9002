package httpx

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

// Validate runs struct tag validation and reports failures as ErrValidation.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	return nil
}

// QueryInt64 parses an optional integer query parameter. An absent value is zero.
func QueryInt64(r *http.Request, name string) (int64, error) {
	return ParseInt64(name, r.URL.Query().Get(name))
}

// ParseInt64 parses raw as the integer parameter name. An empty value is zero.
func ParseInt64(name, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrValidation, name)
	}
	return v, nil
}

// OptionalID returns nil for zero, else a pointer to id.
func OptionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrValidation, raw)
	}
	return t, nil
}

// ParseInstant accepts RFC3339 or a calendar date. A bare date means the end
// of that day in loc. An empty value yields fallback.
func ParseInstant(raw string, loc *time.Location, fallback time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q must be RFC3339 or YYYY-MM-DD", ErrValidation, raw)
	}
	return t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}
