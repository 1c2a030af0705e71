package main

import (
	"context"

	"github.com/lumenlabs/lumen/internal/ai"
)

// echoProvider is a no-op model for smoke-testing the engine without any
// vendor client wired in. Select it with `model: {provider: echo}`.
type echoProvider struct{}

func (echoProvider) ID() string { return "echo" }

func (echoProvider) Complete(_ context.Context, req *ai.ChatRequest) (*ai.ChatResponse, error) {
	last := ""
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			last = msg.Content
		}
	}
	return &ai.ChatResponse{Content: "echo: " + last}, nil
}

// defaultProviders builds the provider set this binary links in. Vendor
// clients get added here as they land.
func defaultProviders() *ai.ProviderSet {
	set := ai.NewProviderSet()
	set.Register("echo", func(map[string]string) (ai.Provider, error) {
		return echoProvider{}, nil
	})
	return set
}
