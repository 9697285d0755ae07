// Package registry loads named debate persona presets so a debate can be
// started from the CLI without spelling out every participant.
package registry

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/parleylabs/parley/internal/model"
)

// Persona is a reusable participant preset.
type Persona struct {
	ID           string `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	Provider     string `yaml:"provider" json:"provider"`
	Model        string `yaml:"model" json:"model"`
	Role         string `yaml:"role" json:"role"`
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`
}

// PersonaRegistry indexes personas by id.
type PersonaRegistry struct {
	personas map[string]Persona
	order    []string
}

// NewPersonaRegistry builds a registry from the given personas. Later
// entries with the same id replace earlier ones.
func NewPersonaRegistry(personas []Persona) *PersonaRegistry {
	r := &PersonaRegistry{personas: make(map[string]Persona, len(personas))}
	for _, p := range personas {
		if _, seen := r.personas[p.ID]; !seen {
			r.order = append(r.order, p.ID)
		}
		r.personas[p.ID] = p
	}
	return r
}

// Get returns the persona with the given id.
func (r *PersonaRegistry) Get(id string) (Persona, bool) {
	p, ok := r.personas[id]
	return p, ok
}

// All returns every persona in load order.
func (r *PersonaRegistry) All() []Persona {
	out := make([]Persona, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.personas[id])
	}
	return out
}

// Participant converts a persona into a debate participant, attaching
// the credential for its provider.
func (p Persona) Participant(apiKey string) model.Participant {
	return model.Participant{
		ID:           p.ID,
		Name:         p.Name,
		Provider:     p.Provider,
		Model:        p.Model,
		Role:         p.Role,
		APIKey:       apiKey,
		SystemPrompt: p.SystemPrompt,
	}
}

// LoadPersonasFromFile reads a YAML list of personas from the given path.
func LoadPersonasFromFile(path string) (*PersonaRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read personas file")
	}

	var personas []Persona
	if err := yaml.Unmarshal(data, &personas); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal personas file")
	}
	for i, p := range personas {
		if strings.TrimSpace(p.ID) == "" {
			return nil, eris.Errorf("registry: persona %d has no id", i)
		}
		if p.Provider == "" || p.Model == "" {
			return nil, eris.Errorf("registry: persona %q needs provider and model", p.ID)
		}
	}

	return NewPersonaRegistry(personas), nil
}

// BuiltinPersonas returns the presets shipped with the binary, used when
// no persona file is configured.
func BuiltinPersonas() *PersonaRegistry {
	return NewPersonaRegistry([]Persona{
		{
			ID:           "proponent",
			Name:         "Proponent",
			Provider:     "anthropic",
			Model:        "claude-3-5-sonnet-20240620",
			Role:         "proponent",
			SystemPrompt: "Argue in favor of the proposal. Ground every claim in the discussion so far.",
		},
		{
			ID:           "critic",
			Name:         "Critic",
			Provider:     "openai",
			Model:        "gpt-4o",
			Role:         "critic",
			SystemPrompt: "Challenge the proposal. Surface risks, regressions, and weak assumptions.",
		},
		{
			ID:           "moderator",
			Name:         "Moderator",
			Provider:     "openai",
			Model:        "gpt-4o-mini",
			Role:         "moderator",
			SystemPrompt: "Keep the debate on topic and push both sides toward concrete trade-offs.",
		},
	})
}
