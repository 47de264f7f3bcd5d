package strategy

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"algotrader/internal/domain"
)

// Params are constructor arguments keyed by name. Values arrive either from
// the optimizer (int, float64, string) or from decoded json (float64, string).
type Params map[string]any

func (p Params) Float(name string) (float64, error) {
	switch v := p[name].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q is not a number", domain.ErrInvalidParams, name, v)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("%w: %s is missing", domain.ErrInvalidParams, name)
	default:
		return 0, fmt.Errorf("%w: %s has type %T", domain.ErrInvalidParams, name, v)
	}
}

func (p Params) Int(name string) (int, error) {
	f, err := p.Float(name)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s=%v is not an integer", domain.ErrInvalidParams, name, f)
	}
	return int(f), nil
}

func (p Params) String(name string) (string, error) {
	switch v := p[name].(type) {
	case string:
		return v, nil
	case nil:
		return "", fmt.Errorf("%w: %s is missing", domain.ErrInvalidParams, name)
	default:
		return fmt.Sprint(v), nil
	}
}

func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type ParamKind string

const (
	ParamInt         ParamKind = "int"
	ParamFloat       ParamKind = "float"
	ParamCategorical ParamKind = "categorical"
)

// ParamSpec declares one searchable constructor argument.
type ParamSpec struct {
	Name    string
	Kind    ParamKind
	Low     float64
	High    float64
	Step    float64
	Choices []string
	Default any
}

func IntParam(name string, low, high, def int) ParamSpec {
	return ParamSpec{Name: name, Kind: ParamInt, Low: float64(low), High: float64(high), Step: 1, Default: def}
}

func FloatParam(name string, low, high, step, def float64) ParamSpec {
	return ParamSpec{Name: name, Kind: ParamFloat, Low: low, High: high, Step: step, Default: def}
}

func ColumnParam(name string, choices ...string) ParamSpec {
	return ParamSpec{Name: name, Kind: ParamCategorical, Choices: choices, Default: choices[0]}
}

// normalize coerces raw into the declared kind so that descriptions do not
// depend on where the value came from.
func (s ParamSpec) normalize(raw any) (any, error) {
	p := Params{s.Name: raw}
	switch s.Kind {
	case ParamInt:
		return p.Int(s.Name)
	case ParamFloat:
		return p.Float(s.Name)
	default:
		return p.String(s.Name)
	}
}

// resolveParams fills defaults, coerces kinds and rejects unknown names.
func resolveParams(class string, specs []ParamSpec, in Params) (Params, error) {
	known := map[string]bool{}
	out := Params{}
	for _, spec := range specs {
		known[spec.Name] = true
		raw, ok := in[spec.Name]
		if !ok || raw == nil {
			raw = spec.Default
		}
		v, err := spec.normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", class, err)
		}
		out[spec.Name] = v
	}
	for name := range in {
		if !known[name] {
			return nil, fmt.Errorf("%w: %s does not accept %s", domain.ErrInvalidParams, class, name)
		}
	}
	return out, nil
}

// describe renders ClassName(k=v, ...) with keys sorted.
func describe(class string, params Params) string {
	parts := make([]string, 0, len(params))
	for _, k := range params.Keys() {
		parts = append(parts, k+"="+formatValue(params[k]))
	}
	return class + "(" + strings.Join(parts, ", ") + ")"
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return "'" + t + "'"
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		if t {
			return "True"
		}
		return "False"
	case []string:
		return "[" + strings.Join(t, ", ") + "]"
	default:
		return fmt.Sprint(t)
	}
}
