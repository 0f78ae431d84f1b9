package orchestrator

import "strings"

// retryRule is one row of the error-signal classification table: a
// case-insensitive substring match against the step error.
type retryRule struct {
	signals       []string
	retryable     bool
	backoffFactor int
}

var retryTable = []retryRule{
	{signals: []string{"timeout", "timed out"}, retryable: true, backoffFactor: 2},
	{signals: []string{"network", "connection refused", "fetch"}, retryable: true, backoffFactor: 1},
	{signals: []string{"rate limit", "too many requests"}, retryable: true, backoffFactor: 5},
	{signals: []string{"unauthorized", "authentication"}, retryable: false, backoffFactor: 0},
	{signals: []string{"syntax error", "compile error"}, retryable: false, backoffFactor: 0},
}

// classify matches errMsg against retryTable, defaulting to retryable
// with a 1x backoff factor when nothing matches.
func classify(errMsg string) (retryable bool, backoffFactor int) {
	lower := strings.ToLower(errMsg)
	for _, rule := range retryTable {
		for _, signal := range rule.signals {
			if strings.Contains(lower, signal) {
				return rule.retryable, rule.backoffFactor
			}
		}
	}
	return true, 1
}

// criticalMarkers name the words that, if present in a non-first step's
// description, mark it critical.
var criticalMarkers = []string{"init", "setup", "bootstrap", "configure", "install"}

// isCritical reports whether step index i (0-based) in a plan is
// critical: the first step always is, or its description contains one
// of criticalMarkers.
func isCritical(i int, description string) bool {
	if i == 0 {
		return true
	}
	lower := strings.ToLower(description)
	for _, marker := range criticalMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
