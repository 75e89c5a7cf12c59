package tool

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strings"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

// ToolFunc is the callable behind a registered tool. Any returned error marks
// the step as failed.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
	ParamObject  ParamType = "object"
	ParamAny     ParamType = "any"
)

func (t ParamType) supported() bool {
	switch t {
	case ParamString, ParamInteger, ParamNumber, ParamBoolean, ParamArray, ParamObject, ParamAny:
		return true
	default:
		return false
	}
}

// Matches reports whether a literal value fits the type tag. Values decoded
// from JSON arrive as float64, so integral floats count as integers.
func (t ParamType) Matches(value any) bool {
	switch t {
	case ParamAny:
		return true
	case ParamString:
		_, ok := value.(string)
		return ok
	case ParamBoolean:
		_, ok := value.(bool)
		return ok
	case ParamNumber:
		return isNumber(value)
	case ParamInteger:
		return isInteger(value)
	case ParamObject:
		if value == nil {
			return false
		}
		return reflect.TypeOf(value).Kind() == reflect.Map
	case ParamArray:
		if value == nil {
			return false
		}
		kind := reflect.TypeOf(value).Kind()
		return kind == reflect.Array || kind == reflect.Slice
	default:
		return false
	}
}

type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Default     any       `json:"default,omitempty"`
}

// Descriptor is immutable once registered.
type Descriptor struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	RequiredArgs []Param  `json:"required_args,omitempty"`
	OptionalArgs []Param  `json:"optional_args,omitempty"`
	ReturnType   string   `json:"return_type"`
	Invoke       ToolFunc `json:"-"`
}

func (d Descriptor) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: tool name is empty", contractx.ErrInvalidDescriptor)
	}
	if d.Invoke == nil {
		return fmt.Errorf("%w: tool=%s has no invoke function", contractx.ErrInvalidDescriptor, d.Name)
	}

	seen := make(map[string]struct{}, len(d.RequiredArgs)+len(d.OptionalArgs))
	check := func(p Param) error {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("%w: tool=%s has a parameter with empty name", contractx.ErrInvalidDescriptor, d.Name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: tool=%s declares parameter %q twice", contractx.ErrInvalidDescriptor, d.Name, name)
		}
		if !p.Type.supported() {
			return fmt.Errorf("%w: tool=%s parameter %q has unsupported type %q", contractx.ErrInvalidDescriptor, d.Name, name, p.Type)
		}
		seen[name] = struct{}{}
		return nil
	}
	for _, p := range d.RequiredArgs {
		if err := check(p); err != nil {
			return err
		}
	}
	for _, p := range d.OptionalArgs {
		if err := check(p); err != nil {
			return err
		}
		if p.Default != nil && !p.Type.Matches(p.Default) {
			return fmt.Errorf("%w: tool=%s default for %q is not %s", contractx.ErrInvalidDescriptor, d.Name, p.Name, p.Type)
		}
	}
	return nil
}

// Param looks up a declared parameter by name.
func (d Descriptor) Param(name string) (p Param, required bool, ok bool) {
	for _, p := range d.RequiredArgs {
		if p.Name == name {
			return p, true, true
		}
	}
	for _, p := range d.OptionalArgs {
		if p.Name == name {
			return p, false, true
		}
	}
	return Param{}, false, false
}

// ValidateArgs checks plan arguments against the descriptor. Back-references
// satisfy presence but their type is only known at execution time.
func ValidateArgs(d Descriptor, args map[string]contractx.Argument) error {
	for _, p := range d.RequiredArgs {
		if _, ok := args[p.Name]; !ok {
			return fmt.Errorf("tool=%s missing required argument %q", d.Name, p.Name)
		}
	}
	for name, arg := range args {
		p, _, ok := d.Param(name)
		if !ok {
			return fmt.Errorf("tool=%s has no argument %q", d.Name, name)
		}
		if arg.IsRef() {
			continue
		}
		if !p.Type.Matches(arg.Value) {
			return fmt.Errorf("tool=%s argument %q must be %s", d.Name, name, p.Type)
		}
	}
	return nil
}

// ApplyDefaults returns a copy of args with unset optional parameters filled
// from their declared defaults.
func ApplyDefaults(d Descriptor, args map[string]any) map[string]any {
	out := make(map[string]any, len(args)+len(d.OptionalArgs))
	for k, v := range args {
		out[k] = v
	}
	for _, p := range d.OptionalArgs {
		if _, ok := out[p.Name]; !ok && p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case float32, float64:
		return true
	default:
		return false
	}
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return v == math.Trunc(v) && !math.IsInf(v, 0)
	case float32:
		f := float64(v)
		return f == math.Trunc(f) && !math.IsInf(f, 0)
	default:
		return false
	}
}
