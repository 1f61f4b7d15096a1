package scheduler

import "fmt"

// CircuitBreaker counts non-transient failures across batches and trips once
// the cumulative count reaches threshold. Transient failures are never
// added; callers filter those out before calling Add.
type CircuitBreaker struct {
	threshold  int
	cumulative int
}

// NewCircuitBreaker returns a breaker that trips at threshold.
func NewCircuitBreaker(threshold int) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold}
}

// Add accumulates n additional non-transient failures.
func (b *CircuitBreaker) Add(n int) {
	b.cumulative += n
}

// Cumulative returns the total non-transient failures recorded so far.
func (b *CircuitBreaker) Cumulative() int {
	return b.cumulative
}

// Tripped reports whether the cumulative count has reached the threshold.
func (b *CircuitBreaker) Tripped() bool {
	return b.cumulative >= b.threshold
}

// TripMessage builds the error surfaced to the operator when the breaker
// trips, including the resume hint.
func (b *CircuitBreaker) TripMessage() string {
	base := fmt.Sprintf("Circuit breaker triggered: %d failures across batches (threshold: %d)", b.cumulative, b.threshold)
	return fmt.Sprintf("%s. Checkpoint saved. Resume with: ralph --resume", base)
}
