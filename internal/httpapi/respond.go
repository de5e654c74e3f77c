package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/roach88/ladder/internal/ledger"
)

const maxBodyBytes = 64 << 10

type envelope map[string]any

// readJSON decodes a single JSON object into dst, rejecting unknown fields
// and trailing data.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var typeError *json.UnmarshalTypeError
		var tooLarge *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &typeError):
			if typeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", typeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", typeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return fmt.Errorf("body contains unknown key %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		case errors.As(err, &tooLarge):
			return fmt.Errorf("body must not be larger than %d bytes", tooLarge.Limit)
		default:
			return err
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		slog.Error("encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	js = append(js, '\n')

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(js); err != nil {
		slog.Debug("write response", "error", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, envelope{"error": envelope{"code": code, "message": message}})
}

func badRequest(w http.ResponseWriter, err error) {
	errorResponse(w, http.StatusBadRequest, string(ledger.CodeInvalidInput), err.Error())
}

// statusFor maps a ledger error code to an HTTP status.
func statusFor(code ledger.ErrorCode) int {
	switch code {
	case ledger.CodeNotFound:
		return http.StatusNotFound
	case ledger.CodeUnauthorized:
		return http.StatusForbidden
	case ledger.CodeInvalidInput, ledger.CodeNotParticipant:
		return http.StatusBadRequest
	case ledger.CodeAlreadyResolved:
		return http.StatusConflict
	case ledger.CodePersistenceFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// failure writes err as a JSON error. Ledger errors keep their code; anything
// else is logged and reported as an opaque internal error.
func failure(w http.ResponseWriter, r *http.Request, err error) {
	var lerr *ledger.Error
	if errors.As(err, &lerr) {
		errorResponse(w, statusFor(lerr.Code), string(lerr.Code), lerr.Message)
		return
	}
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	errorResponse(w, http.StatusInternalServerError, "INTERNAL", "the server encountered a problem and could not process your request")
}
