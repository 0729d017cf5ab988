package testutil

import (
	"errors"
	"net/http"
	"testing"
)

func TestAssertStatusCode(t *testing.T) {
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
}

func TestAssertNoError(t *testing.T) {
	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	AssertError(t, errors.New("boom"))
}

func TestNewTestRequestWithoutBody(t *testing.T) {
	req := NewTestRequest(http.MethodGet, "/api/status", "")
	if req.Method != http.MethodGet || req.URL.Path != "/api/status" {
		t.Errorf("request = %s %s", req.Method, req.URL.Path)
	}
	if req.Header.Get("Content-Type") != "" {
		t.Error("bodyless request should not set Content-Type")
	}
}

func TestNewTestRequestWithBody(t *testing.T) {
	req := NewTestRequest(http.MethodPost, "/api/emission", `{"on":true}`)
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", req.Header.Get("Content-Type"))
	}
	if req.Body == nil {
		t.Error("request has no body")
	}
}

func TestNewTestRecorder(t *testing.T) {
	rec := NewTestRecorder()
	if rec == nil {
		t.Fatal("NewTestRecorder returned nil")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("initial code = %d", rec.Code)
	}
}
