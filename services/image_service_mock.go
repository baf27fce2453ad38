package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/girish1208dev/print-service/models"
)

// MockPreviewEncoder is a mock implementation of PreviewEncoder for testing
type MockPreviewEncoder struct {
	failing map[string]bool // photo ids whose encoding fails
	encoded []string
	mu      sync.Mutex
}

// NewMockPreviewEncoder creates a mock encoder that fails for the given photo ids
func NewMockPreviewEncoder(failingPhotoIDs ...string) *MockPreviewEncoder {
	m := &MockPreviewEncoder{failing: make(map[string]bool)}
	for _, id := range failingPhotoIDs {
		m.failing[id] = true
	}
	return m
}

// SetAsMockForTesting sets this mock as the global preview encoder for testing
func (m *MockPreviewEncoder) SetAsMockForTesting() {
	SetPreviewEncoder(m)
}

// Encode returns a deterministic durable URL or the injected failure
func (m *MockPreviewEncoder) Encode(_ context.Context, photo models.Photo) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing[photo.ID] {
		return "", fmt.Errorf("mock encoding failure for %s", photo.ID)
	}
	m.encoded = append(m.encoded, photo.ID)
	return "https://previews.test/" + photo.ID, nil
}

// Encoded returns the ids encoded so far
func (m *MockPreviewEncoder) Encoded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.encoded...)
}
