package gamelog

import (
	"sort"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/sexp"
)

// Well-known parameter names.
const (
	ParamSimStep = "sim_step"
	ParamID      = "id"
)

// ParameterMap is a keyed table of string, number or boolean values as found
// in server_param, player_param and player_type records.
type ParameterMap struct {
	values map[string]any
}

// NewParameterMap creates an empty table.
func NewParameterMap() *ParameterMap {
	return &ParameterMap{values: make(map[string]any)}
}

// ParameterMapFromNode builds a table from the (key value) children of n.
// Children without a value are skipped.
func ParameterMapFromNode(n *sexp.Node) *ParameterMap {
	pm := NewParameterMap()
	for _, c := range n.Children {
		if len(c.Values) < 2 {
			continue
		}
		pm.Set(c.Values[0], ParseValue(c.Values[1]))
	}
	return pm
}

// ParseValue converts a wire token to a bool, float64 or string.
func ParseValue(token string) any {
	switch token {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f
	}
	return sexp.Unquote(token)
}

// Set stores a value. Integers are stored as float64.
func (p *ParameterMap) Set(key string, value any) {
	switch v := value.(type) {
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case float32:
		value = float64(v)
	}
	p.values[key] = value
}

// Len returns the number of entries.
func (p *ParameterMap) Len() int {
	if p == nil {
		return 0
	}
	return len(p.values)
}

// Keys returns the sorted keys.
func (p *ParameterMap) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the raw value.
func (p *ParameterMap) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

// GetNumber returns a numeric value; ok is false if missing or not a number.
func (p *ParameterMap) GetNumber(key string) (float64, bool) {
	v, _ := p.Get(key)
	f, ok := v.(float64)
	return f, ok
}

// GetNumberOr returns a numeric value or def.
func (p *ParameterMap) GetNumberOr(key string, def float64) float64 {
	if f, ok := p.GetNumber(key); ok {
		return f
	}
	return def
}

// GetInt returns a numeric value truncated to int.
func (p *ParameterMap) GetInt(key string) (int, bool) {
	f, ok := p.GetNumber(key)
	return int(f), ok
}

// GetString returns a string value; ok is false if missing or not a string.
func (p *ParameterMap) GetString(key string) (string, bool) {
	v, _ := p.Get(key)
	s, ok := v.(string)
	return s, ok
}

// GetBool returns a boolean value. Numeric 0/1 values are accepted because the
// 2D server writes flags that way.
func (p *ParameterMap) GetBool(key string) (bool, bool) {
	v, _ := p.Get(key)
	switch b := v.(type) {
	case bool:
		return b, true
	case float64:
		if b == 0 || b == 1 {
			return b == 1, true
		}
	}
	return false, false
}
