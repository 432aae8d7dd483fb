package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"ssfarm/internal/auth"
	"ssfarm/internal/core"
	"ssfarm/internal/export/csvio"
	"ssfarm/internal/export/pdf"
	applog "ssfarm/internal/log"
	"ssfarm/internal/ports"
	"ssfarm/internal/services"
)

// errorStatus maps service and validation errors onto HTTP status codes.
func errorStatus(err error) int {
	var formErr *FormError
	switch {
	case errors.As(err, &formErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadForm):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound),
		errors.Is(err, core.ErrUnknownSection):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrConflict),
		errors.Is(err, services.ErrDuplicateOrder),
		errors.Is(err, services.ErrOrderNotPending):
		return http.StatusConflict
	case errors.Is(err, services.ErrExportUnavailable),
		errors.Is(err, pdf.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, errBadPeriod),
		errors.Is(err, errBadRange),
		errors.Is(err, errRefundSign),
		errors.Is(err, services.ErrOrderInPast),
		errors.Is(err, services.ErrCustomerNotActive),
		errors.Is(err, csvio.ErrMissingColumn),
		isValidationError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidDate, core.ErrEmptyName, core.ErrInvalidPhone,
		core.ErrInvalidPrice, core.ErrInvalidQuantity, core.ErrInvalidAmount,
		core.ErrInvalidStatus, core.ErrMissingCustomer, core.ErrIncompleteSnap,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// errorMessage is the user-facing text for err. Internal failures are not
// described to the client.
func errorMessage(err error, status int) string {
	switch status {
	case http.StatusInternalServerError:
		return "Something went wrong, please try again"
	case http.StatusNotFound:
		return "Not found"
	}
	return err.Error()
}

// fail logs err and writes the matching HTMX error fragment.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errorStatus(err)
	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		s.slog.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op,
			applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), r.Referer()))
	} else {
		logger.WarnContext(r.Context(), "Request rejected",
			applog.FieldOperation, op,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, status,
			applog.FieldError, err)
	}
	ErrorResponse(status, errorMessage(err, status)).Write(w)
}

// failJSON is fail for the public API.
func (s *Server) failJSON(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errorStatus(err)
	applog.FromContext(r.Context()).WarnContext(r.Context(), "API request rejected",
		applog.FieldOperation, op,
		applog.FieldStatusCode, status,
		applog.FieldError, err)
	writeJSON(w, status, map[string]any{"error": errorMessage(err, status)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// actor names who triggered an operation, for logs and queued jobs.
func actor(r *http.Request) string {
	if sess, ok := auth.FromContext(r.Context()); ok {
		return sess.Email
	}
	return "anonymous"
}

// attachment sets the download headers for a generated file.
func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(filename, `"`, "")+`"`)
	w.Header().Set("Cache-Control", "no-store")
}

// slug turns a customer name into a file-name safe token.
func slug(name string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(stripMarks, name)
	if err != nil {
		plain = name
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "customer"
	}
	return out
}
