// Package http serves the admin dashboard and the small public API.
//
// This file holds the helpers that turn query strings and request bodies
// into typed values: periods, dates and validated form structs.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"ssfarm/internal/billing"
	"ssfarm/internal/core"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var (
	errBadPeriod = errors.New("invalid year or month")
	errBadForm   = errors.New("invalid request format")
	errBadRange  = errors.New("range end is before its start")
)

// ParsePeriod reads year and month from query values. Missing values
// default to now; present but invalid values are an error.
func ParsePeriod(query url.Values, now time.Time) (billing.Period, error) {
	year, month := now.Year(), int(now.Month())
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return billing.Period{}, errBadPeriod
		}
		year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return billing.Period{}, errBadPeriod
		}
		month = m
	}
	p, err := billing.NewPeriod(year, month)
	if err != nil {
		return billing.Period{}, errBadPeriod
	}
	return p, nil
}

// ParseDateParam parses a YYYY-MM-DD value, returning def when empty.
func ParseDateParam(v string, def core.Date) (core.Date, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	return core.ParseDate(v)
}

// RequestBodyParser reads a JSON or form-encoded body once.
// The public order endpoint accepts both.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = fmt.Errorf("decode json body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a sanitized value from the parsed body.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// formValidator checks bound form structs against their validate tags.
type formValidator struct {
	v *validator.Validate
}

func newFormValidator() *formValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return strings.ToLower(f.Name)
	})
	return &formValidator{v: v}
}

// Check validates dst and returns a user-facing message listing every problem.
func (fv *formValidator) Check(dst any) error {
	err := fv.v.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return &FormError{Messages: msgs}
}

// FormError lists validation failures of a submitted form.
type FormError struct {
	Messages []string
}

func (e *FormError) Error() string {
	return strings.Join(e.Messages, "; ")
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required", "required_with":
		return field + " is required"
	case "email":
		return field + " must be an email address"
	case "datetime":
		return field + " must be a date (YYYY-MM-DD)"
	case "oneof":
		return field + " must be one of " + fe.Param()
	case "max":
		return field + " is too long"
	case "min":
		return field + " is too short"
	case "numeric", "number":
		return field + " must be a number"
	default:
		return field + " is invalid"
	}
}

// sanitizeInput trims and removes control characters except tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
