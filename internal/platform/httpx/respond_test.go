package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProblemBody(t *testing.T) {
	rec := httptest.NewRecorder()
	Problem(rec, http.StatusTooManyRequests, "Too Many Requests", "slow down")

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var body ProblemDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != 429 || body.Title != "Too Many Requests" || body.Detail != "slow down" {
		t.Fatalf("unexpected problem %+v", body)
	}
}

func TestAttachmentHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	Attachment(rec, "text/csv; charset=utf-8", "gl_1_20250301_20250331.csv", []byte("a,b\r\n"))

	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="gl_1_20250301_20250331.csv"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if rec.Body.String() != "a,b\r\n" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}
