package main

import (
	"orchestrator/pkg/budget"
	"orchestrator/pkg/utils"
)

// tiktokenAdapter satisfies budget.TiktokenEncoder using the BPE codec from
// pkg/utils, letting the estimator count real tokens for the configured
// model instead of falling back to the conservative char/word heuristics.
type tiktokenAdapter struct {
	counter *utils.TokenCounter
}

// newTiktokenEncoder builds a budget.TiktokenEncoder for model, or nil if no
// codec could be constructed (the estimator falls back to heuristics).
func newTiktokenEncoder(model string) budget.TiktokenEncoder {
	counter, err := utils.NewTokenCounter(model)
	if err != nil {
		return nil
	}
	return tiktokenAdapter{counter: counter}
}

func (a tiktokenAdapter) Count(text string) (int, error) {
	return a.counter.CountTokens(text), nil
}
