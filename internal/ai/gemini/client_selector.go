package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrNoClients = errors.New("no Gemini clients available")

// GeminiClientSelector spreads requests over several API keys in round-robin
// order. Each request uses exactly one client; a failed call is not retried
// on another key.
type GeminiClientSelector struct {
	clients      []*GeminiClient
	currentIndex int
	mutex        sync.Mutex
}

func NewGeminiClientSelector(clients []*GeminiClient) *GeminiClientSelector {
	return &GeminiClientSelector{clients: clients}
}

// GetNextClient returns the next client in round-robin order
func (s *GeminiClientSelector) GetNextClient() (*GeminiClient, int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.clients) == 0 {
		return nil, -1
	}

	client := s.clients[s.currentIndex]
	index := s.currentIndex
	s.currentIndex = (s.currentIndex + 1) % len(s.clients)

	return client, index
}

// Generate implements the vision model used by disease analysis.
func (s *GeminiClientSelector) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	client, idx := s.GetNextClient()
	if client == nil {
		return "", ErrNoClients
	}

	text, err := client.GenerateWithImage(ctx, prompt, image, mimeType)
	if err != nil {
		slog.Warn("Gemini API request failed", "client_index", idx, "error", err)
		return "", fmt.Errorf("gemini client[%d]: %w", idx, err)
	}
	slog.Info("Gemini API request succeeded", "client_index", idx, "response_length", len(text))
	return text, nil
}

func (s *GeminiClientSelector) Close() {
	for i, c := range s.clients {
		if err := c.Close(); err != nil {
			slog.Error("failed to close Gemini client", "client_index", i, "error", err)
		}
	}
}
