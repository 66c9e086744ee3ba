package variable

import "strings"

// NA marks a node that carries no decision variable, e.g. a restart marker.
const NA = "NA"

// Introduced is the group assigned to auxiliary variables that solvers add
// during encoding ("X_INTRODUCED_<n>").
const Introduced = "X_INTRODUCED"

// Operators lists the comparison operators stripped from a decision label.
// The order is part of the contract: each operator truncates the label at its
// first occurrence, so ">=" must be handled before ">" and "=".
var Operators = []string{"==", ">=", "<=", ">", "<", "!=", "="}

// Ref is the decision variable a search node branched on.
type Ref struct {
	Variable     string   `json:"variable"`
	Group        string   `json:"variableGroup"`
	Indices      []string `json:"indices,omitempty"`
	IsInt        bool     `json:"isInt"`
	IsIntroduced bool     `json:"isIntroduced"`
}

// Index returns the n-th (1-based) array index token, or "" when absent.
func (r Ref) Index(n int) string {
	if n < 1 || n > len(r.Indices) {
		return ""
	}
	return r.Indices[n-1]
}

// Defined reports whether the node is associated with a decision variable.
func (r Ref) Defined() bool {
	return r.Variable != NA
}

// ParseLabel derives the decision variable from a label such as "x_3_2 == 5".
func ParseLabel(label string) Ref {
	name := label
	for _, op := range Operators {
		if i := strings.Index(name, op); i >= 0 {
			name = name[:i]
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Ref{Variable: NA, Group: NA}
	}

	ref := Ref{}
	if strings.HasSuffix(name, "_i") {
		name = strings.TrimSuffix(name, "_i")
		ref.IsInt = true
		if name == "" {
			return Ref{Variable: NA, Group: NA}
		}
	}
	ref.Variable = name

	tokens := strings.Split(name, "_")
	ref.Group = tokens[0]
	if len(tokens) > 1 {
		ref.Indices = tokens[1:]
	}

	if ref.Group == "X" && ref.Index(1) == "INTRODUCED" {
		ref.Group = Introduced
		ref.Indices = ref.Indices[1:]
		if len(ref.Indices) == 0 {
			ref.Indices = nil
		}
		ref.IsIntroduced = true
	}
	return ref
}
