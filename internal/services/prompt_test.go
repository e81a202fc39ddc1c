package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parleyhq/parley-backend/internal/nlp"
)

func TestComposeSystemPromptBaseOnly(t *testing.T) {
	got := ComposeSystemPrompt("base text", nil, "")
	assert.Equal(t, "base text", got)
}

func TestComposeSystemPromptFragmentOrderIsFixed(t *testing.T) {
	forward := ComposeSystemPrompt("base", []Capability{CapabilityWebSearch, CapabilityCode}, "")
	reversed := ComposeSystemPrompt("base", []Capability{CapabilityCode, CapabilityWebSearch}, "")
	assert.Equal(t, forward, reversed, "caller order must not matter")

	searchIdx := strings.Index(forward, "Search results")
	codeIdx := strings.Index(forward, "runnable code")
	assert.GreaterOrEqual(t, searchIdx, 0)
	assert.Greater(t, codeIdx, searchIdx, "fragments concatenate in registry order")
}

func TestComposeSystemPromptExtraComesLast(t *testing.T) {
	got := ComposeSystemPrompt("base", []Capability{CapabilityCreative}, "answer in French")
	assert.True(t, strings.HasSuffix(got, "answer in French"))
	assert.True(t, strings.HasPrefix(got, "base"))
}

func TestComposeSystemPromptIgnoresUnknownCapability(t *testing.T) {
	got := ComposeSystemPrompt("base", []Capability{"never-registered"}, "")
	assert.Equal(t, "base", got)
}

func TestCapabilitiesFor(t *testing.T) {
	tests := []struct {
		intent nlp.Intent
		want   []Capability
	}{
		{nlp.IntentChat, nil},
		{nlp.IntentSearch, []Capability{CapabilityWebSearch}},
		{nlp.IntentResearch, []Capability{CapabilityWebSearch, CapabilityFetchURL}},
		{nlp.IntentStudy, []Capability{CapabilityStudy, CapabilityFetchURL}},
		{nlp.IntentCode, []Capability{CapabilityCode}},
		{nlp.IntentCreative, []Capability{CapabilityCreative}},
	}

	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			assert.Equal(t, tt.want, capabilitiesFor(tt.intent))
		})
	}
}
