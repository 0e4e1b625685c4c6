package invoke

import (
	"context"
	"os"
	"sync"

	"llmevalbench/internal/registry"
)

// Mux routes invocations to the right provider client based on the model's
// provider tag. Underlying clients are built lazily so a run that never
// touches a provider never constructs its client.
type Mux struct {
	endpoint  string
	apiKeyEnv string
	region    string

	mu      sync.Mutex
	openai  Client
	bedrock Client
}

// NewMux builds a provider router from registry-level connection settings.
func NewMux(reg *registry.Registry) *Mux {
	return &Mux{
		endpoint:  reg.Endpoint,
		apiKeyEnv: reg.APIKeyEnv,
		region:    reg.Region,
	}
}

func (m *Mux) Invoke(ctx context.Context, model registry.ModelSpec, prompt string) (Completion, error) {
	return m.clientFor(model.Provider).Invoke(ctx, model, prompt)
}

func (m *Mux) clientFor(provider string) Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	if provider == "openai" {
		if m.openai == nil {
			m.openai = NewOpenAIClient(m.endpoint, os.Getenv(m.apiKeyEnv))
		}
		return m.openai
	}
	if m.bedrock == nil {
		m.bedrock = NewBedrockClient(m.region)
	}
	return m.bedrock
}
