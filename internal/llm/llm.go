// Package llm adapts the supported AI backends to a single completion contract.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/joescharf/todoai/internal/errs"
	"github.com/joescharf/todoai/internal/models"
)

// ErrNotConfigured is wrapped in a ProviderError when a provider has no API key.
var ErrNotConfigured = errors.New("provider not configured")

// Request is a completion request. System may be empty.
type Request struct {
	Model     string
	MaxTokens int
	System    string
	Messages  []models.Message
}

// Provider sends a role-tagged history to one backend and returns the reply text.
// Implementations return the first text segment of the response, or "" when
// the response has none. Failures are *errs.ProviderError. No retries.
type Provider interface {
	Name() models.Provider
	Complete(ctx context.Context, req Request) (string, error)
}

func providerError(p models.Provider, err error) error {
	var pe *errs.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &errs.ProviderError{Provider: string(p), Err: err}
}

type entry struct {
	provider Provider
	model    string
}

// Registry holds the configured providers and the model each one uses.
type Registry struct {
	entries map[models.Provider]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[models.Provider]entry)}
}

// Register adds p with its default model. A nil provider is ignored.
func (r *Registry) Register(p Provider, model string) {
	if p == nil {
		return
	}
	r.entries[p.Name()] = entry{provider: p, model: model}
}

// Configured reports whether at least one provider is registered.
func (r *Registry) Configured() bool {
	return r != nil && len(r.entries) > 0
}

// Names lists the registered providers.
func (r *Registry) Names() []models.Provider {
	var names []models.Provider
	for _, p := range []models.Provider{models.ProviderClaude, models.ProviderGPT} {
		if _, ok := r.entries[p]; ok {
			names = append(names, p)
		}
	}
	return names
}

// Resolve maps name to a known provider (falling back to the default) and
// returns it with its model.
func (r *Registry) Resolve(name models.Provider) (Provider, string, error) {
	resolved := models.ResolveProvider(name)
	if r != nil {
		if e, ok := r.entries[resolved]; ok {
			return e.provider, e.model, nil
		}
	}
	return nil, "", &errs.ProviderError{Provider: string(resolved), Err: ErrNotConfigured}
}

// Complete resolves name and sends req, filling in the model when unset.
func (r *Registry) Complete(ctx context.Context, name models.Provider, req Request) (string, models.Provider, error) {
	p, model, err := r.Resolve(name)
	if err != nil {
		return "", models.ResolveProvider(name), err
	}
	if req.Model == "" {
		req.Model = model
	}
	text, err := p.Complete(ctx, req)
	if err != nil {
		return "", p.Name(), providerError(p.Name(), err)
	}
	return text, p.Name(), nil
}

// String describes the registry for logs.
func (r *Registry) String() string {
	if !r.Configured() {
		return "no providers"
	}
	return fmt.Sprintf("providers %v", r.Names())
}
