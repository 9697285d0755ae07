package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPersonasFromFile(t *testing.T) {
	t.Parallel()

	yaml := `
- id: optimist
  name: Optimist
  provider: openai
  model: gpt-4o
  role: proponent
  system_prompt: Look on the bright side.
- id: skeptic
  name: Skeptic
  provider: anthropic
  model: claude-3-5-sonnet-20240620
  role: critic
  system_prompt: Doubt everything.
`
	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	r, err := LoadPersonasFromFile(path)
	require.NoError(t, err)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "optimist", all[0].ID)
	assert.Equal(t, "skeptic", all[1].ID)

	p, ok := r.Get("skeptic")
	require.True(t, ok)
	assert.Equal(t, "anthropic", p.Provider)
	assert.Equal(t, "Doubt everything.", p.SystemPrompt)

	_, ok = r.Get("realist")
	assert.False(t, ok)
}

func TestLoadPersonasMissingID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: Nameless\n  provider: openai\n  model: gpt-4o\n"), 0644))

	_, err := LoadPersonasFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no id")
}

func TestLoadPersonasMissingProvider(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- id: ghost\n  model: gpt-4o\n"), 0644))

	_, err := LoadPersonasFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs provider and model")
}

func TestLoadPersonasFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadPersonasFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPersonaParticipant(t *testing.T) {
	t.Parallel()

	p := Persona{ID: "critic", Name: "Critic", Provider: "openai", Model: "gpt-4o", Role: "critic", SystemPrompt: "Doubt."}
	got := p.Participant("sk-test")

	assert.Equal(t, "critic", got.ID)
	assert.Equal(t, "openai", got.Provider)
	assert.Equal(t, "sk-test", got.APIKey)
	assert.Equal(t, "Doubt.", got.SystemPrompt)
}

func TestBuiltinPersonas(t *testing.T) {
	t.Parallel()

	r := BuiltinPersonas()
	require.Len(t, r.All(), 3)
	for _, p := range r.All() {
		assert.NotEmpty(t, p.Provider, "persona %s", p.ID)
		assert.NotEmpty(t, p.Model, "persona %s", p.ID)
		assert.NotEmpty(t, p.SystemPrompt, "persona %s", p.ID)
	}
}
