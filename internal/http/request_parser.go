package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"forum/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object into v. Unknown fields, trailing data
// and oversize bodies are validation errors. An empty body leaves v untouched
// when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			if allowEmpty {
				return nil
			}
			return core.Invalid("request body is required")
		case errors.As(err, &maxErr):
			return core.Invalid(fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes))
		case errors.Is(err, core.ErrValidation):
			return err
		case errors.Is(err, core.ErrInvalidAmount):
			return core.Invalid(err.Error())
		default:
			return core.Invalid("invalid JSON body: " + err.Error())
		}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return core.Invalid("request body must contain a single JSON object")
	}
	return nil
}

// sanitizeInput removes control characters except tab and newlines, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// pathID returns the {id} wildcard, sanitized.
func pathID(r *http.Request) string {
	return sanitizeInput(r.PathValue("id"))
}
