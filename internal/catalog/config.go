// Package catalog discovers user-authored refactoring scripts, statically
// extracts their declared configuration, and builds the ranked, filtered list
// of runnable script/variant combinations offered to the user.
package catalog

import (
	"errors"
	"fmt"
)

// DefaultVariant is the implicit variant every script has, whether or not its
// config declares a variants map.
const DefaultVariant = "default"

// RefactorConfig is the declarative metadata a script announces via its
// top-level configuration call.
type RefactorConfig struct {
	Name        string
	Description string
	EnabledWhen *Predicate
	Variants    []Variant // declared order; does not include the implicit default unless declared
	Options     []Option
}

// Variant is a named sub-mode of a script.
type Variant struct {
	ID    string
	Label string
}

// Option is a user-selectable toggle offered when launching a script.
type Option struct {
	ID                 string
	Label              string
	Description        string
	Default            bool
	ApplicableVariants []string // empty means applicable to every variant
}

// Predicate describes when a script is enabled. All supplied conditions must
// hold; a nil Predicate means always enabled.
type Predicate struct {
	HasSelection       *bool
	ActiveFileContains string
	ActiveLanguageIs   []string
	Expression         string
}

// VariantLabel returns the label declared for id, if any.
func (c *RefactorConfig) VariantLabel(id string) (string, bool) {
	for _, v := range c.Variants {
		if v.ID == id {
			return v.Label, true
		}
	}
	return "", false
}

// OptionsFor returns the options applicable to the given variant, in declared
// order. An option with no applicableVariants restriction applies everywhere.
func (c *RefactorConfig) OptionsFor(variant string) []Option {
	var out []Option
	for _, opt := range c.Options {
		if len(opt.ApplicableVariants) == 0 {
			out = append(out, opt)
			continue
		}
		for _, v := range opt.ApplicableVariants {
			if v == variant {
				out = append(out, opt)
				break
			}
		}
	}
	return out
}

func decodeConfig(obj *Object) (*RefactorConfig, error) {
	cfg := &RefactorConfig{}
	for _, key := range obj.Keys() {
		v, _ := obj.Get(key)
		switch key {
		case "name":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("field %q must be a string", key)
			}
			cfg.Name = s
		case "description":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("field %q must be a string", key)
			}
			cfg.Description = s
		case "enabledWhen":
			o, ok := v.(*Object)
			if !ok {
				return nil, fmt.Errorf("field %q must be an object", key)
			}
			pred, err := decodePredicate(o)
			if err != nil {
				return nil, err
			}
			cfg.EnabledWhen = pred
		case "variants":
			o, ok := v.(*Object)
			if !ok {
				return nil, fmt.Errorf("field %q must be an object", key)
			}
			for _, id := range o.Keys() {
				lv, _ := o.Get(id)
				label, ok := lv.(string)
				if !ok {
					return nil, fmt.Errorf("variant %q label must be a string", id)
				}
				cfg.Variants = append(cfg.Variants, Variant{ID: id, Label: label})
			}
		case "options":
			o, ok := v.(*Object)
			if !ok {
				return nil, fmt.Errorf("field %q must be an object", key)
			}
			for _, id := range o.Keys() {
				ov, _ := o.Get(id)
				oo, ok := ov.(*Object)
				if !ok {
					return nil, fmt.Errorf("option %q must be an object", id)
				}
				opt, err := decodeOption(id, oo)
				if err != nil {
					return nil, err
				}
				cfg.Options = append(cfg.Options, opt)
			}
		default:
			// Unknown keys are tolerated for forward compatibility.
		}
	}
	if cfg.Name == "" {
		return nil, errors.New("config requires a non-empty name")
	}
	return cfg, nil
}

func decodeOption(id string, obj *Object) (Option, error) {
	opt := Option{ID: id}
	for _, key := range obj.Keys() {
		v, _ := obj.Get(key)
		switch key {
		case "label":
			s, ok := v.(string)
			if !ok {
				return opt, fmt.Errorf("option %q: label must be a string", id)
			}
			opt.Label = s
		case "description":
			s, ok := v.(string)
			if !ok {
				return opt, fmt.Errorf("option %q: description must be a string", id)
			}
			opt.Description = s
		case "default":
			b, ok := v.(bool)
			if !ok {
				return opt, fmt.Errorf("option %q: default must be a boolean", id)
			}
			opt.Default = b
		case "applicableVariants":
			vs, ok := toStringSlice(v)
			if !ok {
				return opt, fmt.Errorf("option %q: applicableVariants must be an array of strings", id)
			}
			opt.ApplicableVariants = vs
		}
	}
	if opt.Label == "" {
		opt.Label = id
	}
	return opt, nil
}

func decodePredicate(obj *Object) (*Predicate, error) {
	pred := &Predicate{}
	for _, key := range obj.Keys() {
		v, _ := obj.Get(key)
		switch key {
		case "hasSelection":
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("enabledWhen.hasSelection must be a boolean")
			}
			pred.HasSelection = &b
		case "activeFileContains":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("enabledWhen.activeFileContains must be a string")
			}
			pred.ActiveFileContains = s
		case "activeLanguageIs":
			vs, ok := toStringSlice(v)
			if !ok {
				return nil, fmt.Errorf("enabledWhen.activeLanguageIs must be a string or array of strings")
			}
			pred.ActiveLanguageIs = vs
		case "expression":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("enabledWhen.expression must be a string")
			}
			pred.Expression = s
		default:
			return nil, fmt.Errorf("enabledWhen has unknown condition %q", key)
		}
	}
	return pred, nil
}

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case string:
		return []string{t}, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
