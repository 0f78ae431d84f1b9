package consolidation

import (
	"sort"

	"github.com/evoagent/core/pkg/knowledge"
)

// aggregatedCandidate is a candidate pattern merged across every
// session it was independently observed in.
type aggregatedCandidate struct {
	Category    knowledge.Category
	Title       string
	Tokens      []string
	Occurrences int
	SessionIDs  []string
}

// aggregate groups candidates by (category, title), counting one
// occurrence per distinct session so a single chatty session cannot
// manufacture a crossing on its own.
func aggregate(candidates []candidate) []aggregatedCandidate {
	type key struct {
		category knowledge.Category
		title    string
	}
	byKey := make(map[key]*aggregatedCandidate)
	var order []key

	for _, c := range candidates {
		k := key{category: c.Category, title: c.Title}
		agg, ok := byKey[k]
		if !ok {
			agg = &aggregatedCandidate{Category: c.Category, Title: c.Title}
			byKey[k] = agg
			order = append(order, k)
		}
		if !containsString(agg.SessionIDs, c.SessionID) {
			agg.SessionIDs = append(agg.SessionIDs, c.SessionID)
			agg.Occurrences++
		}
		agg.Tokens = mergeTokens(agg.Tokens, c.Tokens)
	}

	out := make([]aggregatedCandidate, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Occurrences > out[j].Occurrences })
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func mergeTokens(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[t] = true
	}
	out := existing
	for _, t := range add {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
		if len(out) >= 10 {
			break
		}
	}
	return out
}
