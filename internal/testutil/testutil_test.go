package testutil

import (
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/banshee-data/prediction.report/internal/perception"
)

// The assertion helpers are exercised on their success paths with a
// throwaway testing.T; their failure paths fire all over the handler
// tests that use them.

func TestAssertStatusCode_Matching(t *testing.T) {
	fakeT := &testing.T{}
	AssertStatusCode(fakeT, http.StatusOK, http.StatusOK)
	if fakeT.Failed() {
		t.Error("expected no failure for matching status codes")
	}
}

func TestAssertNoError_NilErr(t *testing.T) {
	fakeT := &testing.T{}
	AssertNoError(fakeT, nil)
	if fakeT.Failed() {
		t.Error("expected no failure for nil error")
	}
}

func TestAssertError_WithErr(t *testing.T) {
	fakeT := &testing.T{}
	AssertError(fakeT, errors.New("something wrong"))
	if fakeT.Failed() {
		t.Error("expected no failure when error is present")
	}
}

func TestNewTestRequest(t *testing.T) {
	req := NewTestRequest(http.MethodPost, "/api/test")
	if req.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if req.URL.Path != "/api/test" {
		t.Errorf("path = %s, want /api/test", req.URL.Path)
	}
}

func TestNewTestRecorder(t *testing.T) {
	w := NewTestRecorder()
	if w.Code != http.StatusOK {
		t.Errorf("initial Code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.Len() != 0 {
		t.Errorf("initial body length = %d, want 0", w.Body.Len())
	}
}

func TestBatchSource(t *testing.T) {
	scenario := perception.Scenario{
		Key:      "car",
		Class:    perception.ClassCar,
		Velocity: 2.0,
		TimeStep: 500 * time.Millisecond,
		Horizon:  10 * time.Second,
		Pattern:  perception.PatternStraight,
		SpikeAt:  -1,
		Start:    time.Unix(1700000000, 0),
	}
	batches := scenario.Batches(2 * time.Second)

	src := NewBatchSource(batches)
	for i, want := range batches {
		got, err := src.Next()
		AssertNoError(t, err)
		if got.StampNanos != want.StampNanos {
			t.Errorf("batch %d stamp = %d, want %d", i, got.StampNanos, want.StampNanos)
		}
	}
	if _, err := src.Next(); err != io.EOF {
		t.Errorf("exhausted source error = %v, want io.EOF", err)
	}
}

func TestBatchSourceEmpty(t *testing.T) {
	src := NewBatchSource(nil)
	if _, err := src.Next(); err != io.EOF {
		t.Errorf("empty source error = %v, want io.EOF", err)
	}
}
