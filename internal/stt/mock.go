package stt

import (
	"context"
	"sync"
)

// MockResponse is one scripted answer for the mock recognizer.
type MockResponse struct {
	Text string
	Err  error
}

// MockRecognizer replays scripted responses in order; once the script
// is exhausted it returns empty results, which the pipeline treats as
// silence.
type MockRecognizer struct {
	Script []MockResponse

	mu    sync.Mutex
	calls int
}

func (m *MockRecognizer) Transcribe(_ context.Context, _ []byte, _ int, _ int) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i >= len(m.Script) {
		return Result{}, nil
	}
	resp := m.Script[i]
	if resp.Err != nil {
		return Result{}, resp.Err
	}
	return Result{Text: resp.Text}, nil
}

func (m *MockRecognizer) Close() error {
	return nil
}

// Calls reports how many transcription calls were made.
func (m *MockRecognizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
