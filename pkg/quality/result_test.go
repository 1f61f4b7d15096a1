package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGateResult_Constructors(t *testing.T) {
	pass := Pass("tests", "all good")
	assert.True(t, pass.Passed)
	assert.Empty(t, pass.Failures)

	fail := Fail("tests", "bad", "details", []GateFailureDetail{NewGateFailureDetail(FailureTest, "boom")})
	assert.False(t, fail.Passed)
	assert.Len(t, fail.Failures, 1)

	skipped := Skipped("lint", "disabled")
	assert.True(t, skipped.Passed)
	assert.Equal(t, "Skipped: disabled", skipped.Message)
}

func TestGateFailureDetail_Builders(t *testing.T) {
	d := NewGateFailureDetail(FailureLint, "msg").
		WithLocation("a.go", 10, 5).
		WithErrorCode("E001").
		WithSuggestion("fix it").
		WithDocURL("http://example.com")

	assert.Equal(t, "a.go", d.File)
	assert.Equal(t, uint32(10), d.Line)
	assert.Equal(t, uint32(5), d.Column)
	assert.Equal(t, "E001", d.ErrorCode)
	assert.Equal(t, "fix it", d.Suggestion)
	assert.Equal(t, "http://example.com", d.DocURL)
}

func TestProgressUpdate_FormatDuration(t *testing.T) {
	under := passedUpdate("tests", 2500*time.Millisecond)
	assert.Equal(t, "2.5s", under.FormatDuration())

	over := passedUpdate("tests", 75*time.Second)
	assert.Equal(t, "1m15.0s", over.FormatDuration())
}

func TestProgressUpdate_IsCompleted(t *testing.T) {
	assert.False(t, runningUpdate("tests").IsCompleted())
	assert.True(t, passedUpdate("tests", time.Second).IsCompleted())
	assert.True(t, failedUpdate("tests", time.Second).IsCompleted())
}

func TestAllPassed(t *testing.T) {
	assert.True(t, AllPassed([]GateResult{Pass("a", ""), Skipped("b", "")}))
	assert.False(t, AllPassed([]GateResult{Pass("a", ""), Fail("b", "", "", nil)}))
}

func TestSummary(t *testing.T) {
	results := []GateResult{Pass("a", ""), Fail("b", "", "", nil), Fail("c", "", "", nil)}
	assert.Equal(t, "1/3 gates passed. Failed: b, c", Summary(results))

	allGood := []GateResult{Pass("a", ""), Pass("b", "")}
	assert.Equal(t, "All 2 gates passed", Summary(allGood))
}
