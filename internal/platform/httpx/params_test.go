package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func TestQueryInt64(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?business_id=42&bad=x", nil)
	if v, err := QueryInt64(r, "business_id"); err != nil || v != 42 {
		t.Fatalf("expected 42, got %d (%v)", v, err)
	}
	if v, err := QueryInt64(r, "missing"); err != nil || v != 0 {
		t.Fatalf("expected zero for missing param, got %d (%v)", v, err)
	}
	if _, err := QueryInt64(r, "bad"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseInstant(t *testing.T) {
	fallback := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := ParseInstant("", nil, fallback)
	if err != nil || !got.Equal(fallback) {
		t.Fatalf("expected fallback, got %v (%v)", got, err)
	}
	got, err = ParseInstant("2025-03-31", time.UTC, fallback)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2025, 3, 31, 23, 59, 59, 999999999, time.UTC); !got.Equal(want) {
		t.Fatalf("expected end of day, got %v", got)
	}
	got, err = ParseInstant("2025-03-31T08:00:00Z", time.UTC, fallback)
	if err != nil || got.Hour() != 8 {
		t.Fatalf("expected RFC3339 instant, got %v (%v)", got, err)
	}
	if _, err := ParseInstant("31/03/2025", time.UTC, fallback); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	type params struct {
		BusinessID int64 `validate:"required,gt=0"`
	}
	if err := Validate(params{BusinessID: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(params{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRespondErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.ErrNotFound, http.StatusNotFound},
		{ErrValidation, http.StatusBadRequest},
		{shared.ErrInvalidRange, http.StatusBadRequest},
		{&shared.OpError{Op: "x", Err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
	}
}
