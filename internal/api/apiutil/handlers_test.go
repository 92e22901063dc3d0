package apiutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("decodes valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Casey"}`))
		var dst payload
		if err := DecodeJSON(r, &dst); err != nil {
			t.Fatalf("DecodeJSON: %v", err)
		}
		if dst.Name != "Casey" {
			t.Errorf("name = %q, want Casey", dst.Name)
		}
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Casey","extra":1}`))
		var dst payload
		if err := DecodeJSON(r, &dst); err == nil {
			t.Error("unknown field accepted")
		}
	})

	t.Run("rejects trailing content", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Casey"}{"name":"Again"}`))
		var dst payload
		if err := DecodeJSON(r, &dst); err == nil {
			t.Error("trailing JSON accepted")
		}
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{name:`))
		var dst payload
		if err := DecodeJSON(r, &dst); err == nil {
			t.Error("malformed JSON accepted")
		}
	})
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	if err := WriteJSON(w, http.StatusCreated, map[string]int{"id": 7}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var decoded map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if decoded["id"] != 7 {
		t.Errorf("id = %d, want 7", decoded["id"])
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusConflict, "slot already booked")

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if resp.Success {
		t.Error("success = true on an error response")
	}
	if resp.Error != "slot already booked" {
		t.Errorf("error = %q", resp.Error)
	}
}
