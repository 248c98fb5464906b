package audio

import (
	"context"
	"fmt"
	"sync"
)

// MockSource serves canned devices and PCM chunks for tests.
type MockSource struct {
	Devices []Device
	// Chunks are returned in order by ReadChunk; when exhausted the
	// stream reports FailWith if set, otherwise ErrDeviceUnavailable.
	Chunks   [][]byte
	FailWith error

	SampleRate int
	Channels   int
}

func (m *MockSource) ListDevices(_ context.Context) ([]Device, error) {
	if len(m.Devices) == 0 {
		return nil, fmt.Errorf("no mock devices: %w", ErrDeviceNotFound)
	}
	return m.Devices, nil
}

func (m *MockSource) Open(_ context.Context, _ Device) (Stream, error) {
	return &mockStream{src: m}, nil
}

type mockStream struct {
	src *MockSource

	mu     sync.Mutex
	next   int
	closed bool
}

func (s *mockStream) ReadChunk(ctx context.Context) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Chunk{}, context.Canceled
	}
	if s.next >= len(s.src.Chunks) {
		if s.src.FailWith != nil {
			return Chunk{}, s.src.FailWith
		}
		return Chunk{}, fmt.Errorf("mock stream exhausted: %w", ErrDeviceUnavailable)
	}
	pcm := s.src.Chunks[s.next]
	s.next++
	return Chunk{PCM: pcm, SampleRate: s.src.SampleRate, Channels: s.src.Channels}, nil
}

func (s *mockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
