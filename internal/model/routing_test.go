package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTaskType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want TaskType
	}{
		{"code review", "code_review", TaskCodeReview},
		{"fast chat", "fast_chat", TaskFastChat},
		{"deep reasoning", "deep_reasoning", TaskDeepReasoning},
		{"default", "default", TaskDefault},
		{"unknown falls back to default", "image_generation", TaskDefault},
		{"empty falls back to default", "", TaskDefault},
		{"case sensitive", "Code_Review", TaskDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseTaskType(tt.in))
		})
	}
}

func TestUsageAdd(t *testing.T) {
	t.Parallel()

	total := Usage{}
	total.Add(Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120})
	total.Add(Usage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60})

	assert.Equal(t, 150, total.PromptTokens)
	assert.Equal(t, 30, total.CompletionTokens)
	assert.Equal(t, 180, total.TotalTokens)
}
