package ingestor

import (
	"encoding/json"
	"fmt"
)

// Solution is the JSON payload attached to a node, usually carrying the
// objective domain and the ids of nodes whose nogoods were used.
type Solution struct {
	Fields     map[string]any
	Nogoods    []int64
	HasNogoods bool
}

// ParseSolution decodes a solution string. An empty string yields nil
// without error.
func ParseSolution(s string) (*Solution, error) {
	if s == "" {
		return nil, nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil, fmt.Errorf("invalid solution payload: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("invalid solution payload: not an object")
	}

	sol := &Solution{Fields: fields}
	if raw, ok := fields["nogoods"]; ok {
		sol.HasNogoods = true
		if list, ok := raw.([]any); ok {
			for _, v := range list {
				if f, ok := v.(float64); ok {
					sol.Nogoods = append(sol.Nogoods, int64(f))
				}
			}
		}
	}
	return sol, nil
}

// Domain returns the first [lo, hi] pair stored under key.
func (s *Solution) Domain(key string) (lo, hi float64, ok bool) {
	if s == nil {
		return 0, 0, false
	}
	outer, ok := s.Fields[key].([]any)
	if !ok || len(outer) == 0 {
		return 0, 0, false
	}
	pair, ok := outer[0].([]any)
	if !ok || len(pair) < 2 {
		return 0, 0, false
	}
	lo, okLo := pair[0].(float64)
	hi, okHi := pair[1].(float64)
	if !okLo || !okHi {
		return 0, 0, false
	}
	return lo, hi, true
}
