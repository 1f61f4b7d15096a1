package budget

import (
	"encoding/json"
	"strings"
)

// ParsedTokenUsage is the token usage extracted from (or estimated for)
// agent output.
type ParsedTokenUsage struct {
	InputTokens  *uint64
	OutputTokens *uint64
	TotalTokens  *uint64
	IsActual     bool
	Source       string
}

// EmptyUsage returns a zero-value ParsedTokenUsage.
func EmptyUsage() ParsedTokenUsage {
	return ParsedTokenUsage{}
}

// ActualUsage constructs a ParsedTokenUsage from real input/output counts.
func ActualUsage(input, output uint64, source string) ParsedTokenUsage {
	total := input + output
	return ParsedTokenUsage{InputTokens: &input, OutputTokens: &output, TotalTokens: &total, IsActual: true, Source: source}
}

// EstimatedUsage constructs a ParsedTokenUsage tagged as an estimate.
func EstimatedUsage(input, output uint64) ParsedTokenUsage {
	total := input + output
	return ParsedTokenUsage{InputTokens: &input, OutputTokens: &output, TotalTokens: &total, IsActual: false, Source: "estimated"}
}

// Total returns the combined token count, preferring an explicit total,
// falling back to summing whichever of input/output are present.
func (u ParsedTokenUsage) Total() uint64 {
	if u.TotalTokens != nil {
		return *u.TotalTokens
	}
	var total uint64
	if u.InputTokens != nil {
		total += *u.InputTokens
	}
	if u.OutputTokens != nil {
		total += *u.OutputTokens
	}
	return total
}

// ToTokenCount converts to a TokenCount, treating absent fields as zero.
func (u ParsedTokenUsage) ToTokenCount() TokenCount {
	var in, out uint64
	if u.InputTokens != nil {
		in = *u.InputTokens
	}
	if u.OutputTokens != nil {
		out = *u.OutputTokens
	}
	return NewTokenCount(in, out)
}

// claudeUsage is the Anthropic-shaped usage object, matching
// github.com/anthropics/anthropic-sdk-go's Usage struct field names.
type claudeUsage struct {
	InputTokens  uint64 `json:"input_tokens"`
	OutputTokens uint64 `json:"output_tokens"`
}

// openAIUsage is the OpenAI-shaped usage object, matching
// github.com/openai/openai-go's CompletionUsage struct field names.
type openAIUsage struct {
	PromptTokens     uint64 `json:"prompt_tokens"`
	CompletionTokens uint64 `json:"completion_tokens"`
	TotalTokens      uint64 `json:"total_tokens"`
}

type usageWrapper struct {
	Usage json.RawMessage `json:"usage"`
}

// UsageParser extracts actual token usage from CLI agent output. Different
// agents emit usage in different shapes:
//
//   - Claude CLI / Anthropic API: {"usage": {"input_tokens": N, "output_tokens": N}}
//   - OpenAI/Codex:                {"usage": {"prompt_tokens": N, "completion_tokens": N}}
type UsageParser struct {
	Verbose bool
}

// NewUsageParser returns a parser with default settings.
func NewUsageParser() *UsageParser {
	return &UsageParser{}
}

// Parse scans output line-by-line for a JSON object carrying a "usage"
// field, then falls back to a whole-output brace-matching scan for usage
// objects embedded inside larger or multi-line JSON documents.
func (p *UsageParser) Parse(output string) *ParsedTokenUsage {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if usage := p.tryParseJSONLine(line); usage != nil {
			return usage
		}
	}

	return p.tryExtractUsageObject(output)
}

func (p *UsageParser) tryParseJSONLine(line string) *ParsedTokenUsage {
	var wrapper usageWrapper
	if err := json.Unmarshal([]byte(line), &wrapper); err != nil || wrapper.Usage == nil {
		return nil
	}
	return p.parseUsageValue(wrapper.Usage)
}

func (p *UsageParser) parseUsageValue(raw json.RawMessage) *ParsedTokenUsage {
	var claude claudeUsage
	if err := json.Unmarshal(raw, &claude); err == nil && (claude.InputTokens != 0 || claude.OutputTokens != 0) {
		usage := ActualUsage(claude.InputTokens, claude.OutputTokens, "anthropic")
		return &usage
	}

	var openai openAIUsage
	if err := json.Unmarshal(raw, &openai); err == nil && (openai.PromptTokens != 0 || openai.CompletionTokens != 0) {
		usage := ActualUsage(openai.PromptTokens, openai.CompletionTokens, "openai")
		return &usage
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err == nil {
		input, hasInput := extractUint(generic, "input_tokens", "prompt_tokens")
		output, hasOutput := extractUint(generic, "output_tokens", "completion_tokens")
		if hasInput && hasOutput {
			usage := ActualUsage(input, output, "parsed")
			return &usage
		}
	}

	return nil
}

func extractUint(m map[string]any, keys ...string) (uint64, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if f, ok := v.(float64); ok && f >= 0 {
				return uint64(f), true
			}
		}
	}
	return 0, false
}

// tryExtractUsageObject finds `"usage":` anywhere in output and manually
// brace-matches the object that follows, for agents that emit usage
// embedded inside a larger response document.
func (p *UsageParser) tryExtractUsageObject(output string) *ParsedTokenUsage {
	const marker = `"usage"`
	idx := strings.Index(output, marker)
	if idx < 0 {
		return nil
	}

	afterUsage := output[idx+len(marker):]
	colonIdx := strings.Index(afterUsage, ":")
	if colonIdx < 0 {
		return nil
	}

	afterColon := strings.TrimLeft(afterUsage[colonIdx+1:], " \t\n\r")
	if !strings.HasPrefix(afterColon, "{") {
		return nil
	}

	end := findMatchingBrace(afterColon)
	if end < 0 {
		return nil
	}

	usageJSON := afterColon[:end+1]
	return p.parseUsageValue(json.RawMessage(usageJSON))
}

// findMatchingBrace returns the index of the brace matching the opening
// brace at position 0, or -1 if unbalanced.
func findMatchingBrace(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ExtractOrEstimate parses actual usage from output, falling back to
// estimating both the prompt and the output text when no usage is found.
func ExtractOrEstimate(output, prompt string, estimator *TokenEstimator) ParsedTokenUsage {
	parser := NewUsageParser()
	if usage := parser.Parse(output); usage != nil {
		return *usage
	}

	inputEstimate := estimator.Estimate(prompt)
	outputEstimate := estimator.Estimate(output)
	return EstimatedUsage(inputEstimate, outputEstimate)
}
