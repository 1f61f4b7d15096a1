package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenEstimator_EmptyString(t *testing.T) {
	e := NewTokenEstimator()
	assert.Equal(t, uint64(0), e.Estimate(""))
}

func TestTokenEstimator_CharBased(t *testing.T) {
	e := NewTokenEstimator().WithMethod(EstimationCharBased)
	// 7 chars / 3.5 = 2.
	assert.Equal(t, uint64(2), e.Estimate("abcdefg"))
}

func TestTokenEstimator_WordBased(t *testing.T) {
	e := NewTokenEstimator().WithMethod(EstimationWordBased)
	// 2 words * 1.3 = 2.6 -> ceil 3.
	assert.Equal(t, uint64(3), e.Estimate("hello world"))
}

func TestTokenEstimator_Conservative_TakesMaxWithMargin(t *testing.T) {
	e := NewTokenEstimator()
	text := "a b c d e f g h i j"
	charEst := charEstimate(text)
	wordEst := wordEstimate(text)
	want := charEst
	if wordEst > want {
		want = wordEst
	}
	want = uint64(float64(want) * DefaultSafetyMargin)
	assert.Equal(t, want, e.Estimate(text))
}

type fakeEncoder struct {
	count int
	err   error
}

func (f fakeEncoder) Count(string) (int, error) { return f.count, f.err }

func TestTokenEstimator_Tiktoken_UsesEncoderWhenPresent(t *testing.T) {
	e := NewTokenEstimator().WithMethod(EstimationTiktoken).WithTiktokenEncoder(fakeEncoder{count: 42})
	assert.Equal(t, uint64(42), e.Estimate("anything"))
}

func TestTokenEstimator_Tiktoken_FallsBackOnError(t *testing.T) {
	e := NewTokenEstimator().WithMethod(EstimationTiktoken).WithTiktokenEncoder(fakeEncoder{err: assert.AnError})
	got := e.Estimate("fallback text here")
	require.Greater(t, got, uint64(0))
}

func TestTokenEstimator_EstimatePrompt_IncludesOverhead(t *testing.T) {
	e := NewTokenEstimator()
	base := e.EstimatePrompt("", "", 0)
	assert.Equal(t, uint64(PromptOverheadSystem+PromptOverheadFormatting), base)

	withTools := e.EstimatePrompt("", "", 3)
	assert.Equal(t, base+3*PromptOverheadPerTool, withTools)
}

func TestTokenCount_AddAndTotal(t *testing.T) {
	a := NewTokenCount(10, 20)
	b := NewTokenCount(5, 5)
	sum := a.Add(b)
	assert.Equal(t, uint64(15), sum.InputTokens)
	assert.Equal(t, uint64(25), sum.OutputTokens)
	assert.Equal(t, uint64(40), sum.Total())
}
