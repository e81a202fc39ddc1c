package services

import (
	"strings"

	"github.com/parleyhq/parley-backend/internal/nlp"
)

// Capability is a named system-prompt fragment enabled by the classified
// intent of the current turn.
type Capability string

const (
	CapabilityWebSearch Capability = "web_search"
	CapabilityFetchURL  Capability = "fetch_url"
	CapabilityStudy     Capability = "study"
	CapabilityCode      Capability = "code"
	CapabilityCreative  Capability = "creative"
)

const baseSystemPrompt = `You are Parley, a conversational assistant. Answer directly and concisely, ask when the request is ambiguous, and keep code in fenced blocks.`

// capabilityFragments lists every fragment in its fixed concatenation
// order. Composition iterates this slice, not the caller's set, so the
// assembled prompt is deterministic for a given capability set.
var capabilityFragments = []struct {
	capability Capability
	text       string
}{
	{CapabilityWebSearch, "Search results may accompany the conversation. Prefer them over memory for anything time-sensitive and name the source next to each claim."},
	{CapabilityFetchURL, "Fetched page content may accompany the conversation. Quote it accurately and attribute facts to the page they came from."},
	{CapabilityStudy, "The user is studying. Explain step by step, check understanding before moving on, and prefer worked examples over bare definitions."},
	{CapabilityCode, "Prefer complete, runnable code samples. State your assumptions about language and versions, and call out edge cases."},
	{CapabilityCreative, "Follow the user's creative direction. Offer a distinct voice, vary rhythm, and avoid stock phrases."},
}

// ComposeSystemPrompt assembles the system prompt for a turn: the base
// text, then the fragment of every enabled capability in fixed order, then
// any extra instructions. Pure function of its inputs.
func ComposeSystemPrompt(base string, caps []Capability, extra string) string {
	enabled := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		enabled[c] = true
	}

	var b strings.Builder
	b.WriteString(base)
	for _, frag := range capabilityFragments {
		if enabled[frag.capability] {
			b.WriteString("\n\n")
			b.WriteString(frag.text)
		}
	}
	if extra != "" {
		b.WriteString("\n\n")
		b.WriteString(extra)
	}
	return b.String()
}

// capabilitiesFor maps a classified intent onto the capability set its
// system prompt should carry.
func capabilitiesFor(intent nlp.Intent) []Capability {
	switch intent {
	case nlp.IntentSearch:
		return []Capability{CapabilityWebSearch}
	case nlp.IntentResearch:
		return []Capability{CapabilityWebSearch, CapabilityFetchURL}
	case nlp.IntentStudy:
		return []Capability{CapabilityStudy, CapabilityFetchURL}
	case nlp.IntentCode:
		return []Capability{CapabilityCode}
	case nlp.IntentCreative:
		return []Capability{CapabilityCreative}
	default:
		return nil
	}
}
