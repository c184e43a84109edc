// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/prediction.report/internal/perception"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// BatchSource replays a fixed batch slice in order and then reports
// io.EOF, mimicking a finished replay log. It implements
// perception.BatchSource for driving runners in tests.
type BatchSource struct {
	batches []perception.DetectionBatch
	i       int
}

// NewBatchSource wraps the given batches in a replayable source.
func NewBatchSource(batches []perception.DetectionBatch) *BatchSource {
	return &BatchSource{batches: batches}
}

// Next returns the next batch, or io.EOF once the slice is exhausted.
func (s *BatchSource) Next() (perception.DetectionBatch, error) {
	if s.i >= len(s.batches) {
		return perception.DetectionBatch{}, io.EOF
	}
	b := s.batches[s.i]
	s.i++
	return b, nil
}
