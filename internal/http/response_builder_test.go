package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"tripledger/internal/core"
	"tripledger/internal/storage"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Body(map[string]int{"n": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("Custom header not set")
	}
	if w.Body.String() != "{\"n\":1}\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Body("ignored").Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
}

func TestJSONResponseBuilder_UnencodableBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(map[string]any{"f": func() {}}).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *JSONResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{"bad request", BadRequestError("bad"), http.StatusBadRequest, `{"error":"bad"}`},
		{"unauthorized", UnauthorizedError("who"), http.StatusUnauthorized, `{"error":"who"}`},
		{"not found", NotFoundError("gone"), http.StatusNotFound, `{"error":"gone"}`},
		{"unprocessable", UnprocessableEntityError("nope"), http.StatusUnprocessableEntity, `{"error":"nope"}`},
		{"rate limited", TooManyRequestsError(), http.StatusTooManyRequests, `{"error":"rate limit exceeded, try again later"}`},
		{"internal", InternalServerError(), http.StatusInternalServerError, `{"error":"internal error"}`},
		{"escaping", BadRequestError(`<script>"x"</script>`), http.StatusBadRequest, `{"error":"\u003cscript\u003e\"x\"\u003c/script\u003e"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody+"\n" {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestMethodNotAllowedError(t *testing.T) {
	w := httptest.NewRecorder()
	MethodNotAllowedError("GET, POST").Write(w)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if w.Header().Get("Allow") != "GET, POST" {
		t.Errorf("Allow header = %q", w.Header().Get("Allow"))
	}
}

func TestErrorFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"malformed body", badRequest("malformed"), http.StatusBadRequest},
		{"core not found", fmt.Errorf("trip x: %w", core.ErrNotFound), http.StatusNotFound},
		{"storage not found", fmt.Errorf("get: %w", storage.ErrNotFound), http.StatusNotFound},
		{"validation", fmt.Errorf("validate trip: %w", core.ErrEmptyName), http.StatusUnprocessableEntity},
		{"category", core.ErrInvalidCategory, http.StatusUnprocessableEntity},
		{"anything else", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
			w := httptest.NewRecorder()
			writeError(w, r, tt.err)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestErrorForHidesInternalDetails(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
	w := httptest.NewRecorder()
	writeError(w, r, errors.New("sqlite: database disk image is malformed"))

	if w.Body.String() != "{\"error\":\"internal error\"}\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}
