package variable

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidManifest is returned when a manifest does not split into the
// integer and boolean name lists.
var ErrInvalidManifest = errors.New("invalid variable manifest")

// ConfigError wraps a fatal configuration problem found while loading input.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Type is the declared domain of a solver variable.
type Type string

const (
	TypeInt   Type = "int"
	TypeBool  Type = "bool"
	TypeMixed Type = "mixed"
)

// Kind describes the shape of a variable group.
type Kind string

const (
	KindScalar Kind = "scalar"
	KindArray  Kind = "array"
	KindMix    Kind = "mix"
)

// Declared is one name from the manifest.
type Declared struct {
	Name    string `json:"name"`
	Base    string `json:"base"`
	Group   string `json:"group"`
	Indices []int  `json:"indices,omitempty"`
	Type    Type   `json:"type"`
}

// Group collects the declared variables sharing a variable group.
type Group struct {
	Name    string   `json:"name"`
	Type    Type     `json:"type"`
	Kind    Kind     `json:"kind"`
	Dims    []int    `json:"dims,omitempty"`
	Lows    []int    `json:"lows,omitempty"`
	Members []string `json:"members"`
}

// Rows returns the number of grid rows for the group. One-dimensional arrays
// are laid out as a single row.
func (g *Group) Rows() int {
	if len(g.Dims) < 2 {
		return 1
	}
	return g.Dims[0]
}

// Cols returns the number of grid columns for the group.
func (g *Group) Cols() int {
	switch len(g.Dims) {
	case 0:
		return 1
	case 1:
		return g.Dims[0]
	default:
		return g.Dims[1]
	}
}

// Catalogue is the parsed variable manifest.
type Catalogue struct {
	Variables []Declared        `json:"variables"`
	Groups    map[string]*Group `json:"groups"`
}

// GroupNames returns the group names in lexical order.
func (c *Catalogue) GroupNames() []string {
	names := make([]string, 0, len(c.Groups))
	for name := range c.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Group returns the named group, or nil.
func (c *Catalogue) Group(name string) *Group {
	if c == nil {
		return nil
	}
	return c.Groups[name]
}

// ParseManifest parses "<int names>;<bool names>" where each list is
// whitespace separated.
func ParseManifest(manifest string) (*Catalogue, error) {
	blobs := strings.Split(manifest, ";")
	if len(blobs) != 2 {
		return nil, &ConfigError{
			Source: "variable manifest",
			Err:    fmt.Errorf("%w: expected 2 semicolon separated lists, got %d", ErrInvalidManifest, len(blobs)),
		}
	}

	cat := &Catalogue{Groups: make(map[string]*Group)}
	for i, blob := range blobs {
		typ := TypeInt
		if i == 1 {
			typ = TypeBool
		}
		for _, token := range strings.Fields(blob) {
			decl := parseDeclared(token, typ)
			cat.Variables = append(cat.Variables, decl)
			cat.add(decl)
		}
	}
	for _, g := range cat.Groups {
		g.Kind = kindOf(cat.members(g.Name))
	}
	return cat, nil
}

// parseDeclared splits a manifest token into its base name and the trailing
// numeric index tuple.
func parseDeclared(token string, typ Type) Declared {
	name := token
	if strings.HasSuffix(name, "_i") {
		name = strings.TrimSuffix(name, "_i")
		typ = TypeBool
	}

	parts := strings.Split(name, "_")
	end := len(parts)
	for end > 1 {
		if _, err := strconv.Atoi(parts[end-1]); err != nil {
			break
		}
		end--
	}

	var indices []int
	for _, p := range parts[end:] {
		n, _ := strconv.Atoi(p)
		indices = append(indices, n)
	}

	return Declared{
		Name:    name,
		Base:    strings.Join(parts[:end], "_"),
		Group:   ParseLabel(name).Group,
		Indices: indices,
		Type:    typ,
	}
}

func (c *Catalogue) add(d Declared) {
	g, ok := c.Groups[d.Group]
	if !ok {
		g = &Group{Name: d.Group, Type: d.Type}
		c.Groups[d.Group] = g
	}
	if g.Type != d.Type {
		g.Type = TypeMixed
	}
	g.Members = append(g.Members, d.Name)

	for pos, idx := range d.Indices {
		if pos >= len(g.Dims) {
			g.Dims = append(g.Dims, 1)
			g.Lows = append(g.Lows, idx)
			continue
		}
		high := g.Lows[pos] + g.Dims[pos] - 1
		if idx < g.Lows[pos] {
			g.Lows[pos] = idx
		}
		if idx > high {
			high = idx
		}
		g.Dims[pos] = high - g.Lows[pos] + 1
	}
}

// Cell maps array index tokens to a (row, col) grid position. ok is false when
// the tokens are not numeric or fall outside the declared dims.
func (g *Group) Cell(indices []string) (row, col int, ok bool) {
	if len(indices) == 0 || len(g.Dims) == 0 {
		return 0, 0, false
	}
	pos := make([]int, 0, 2)
	for i, tok := range indices {
		if i >= 2 || i >= len(g.Dims) {
			break
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return 0, 0, false
		}
		n -= g.Lows[i]
		if n < 0 || n >= g.Dims[i] {
			return 0, 0, false
		}
		pos = append(pos, n)
	}
	if len(pos) == 1 {
		return 0, pos[0], true
	}
	return pos[0], pos[1], true
}

func (c *Catalogue) members(group string) []Declared {
	var out []Declared
	for _, d := range c.Variables {
		if d.Group == group {
			out = append(out, d)
		}
	}
	return out
}

func kindOf(members []Declared) Kind {
	if len(members) == 0 {
		return KindScalar
	}
	arity := len(members[0].Indices)
	for _, m := range members[1:] {
		if len(m.Indices) != arity {
			return KindMix
		}
	}
	if arity == 0 {
		return KindScalar
	}
	return KindArray
}
