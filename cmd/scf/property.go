package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"go.eggybyte.com/scf/configx"
	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/typex"
)

// propertyOptions describes how a command binds its keys.
type propertyOptions struct {
	valueType    string
	defaultValue string
	required     bool
	doc          string
}

// valueTypes lists the accepted --type values.
var valueTypes = []string{"string", "int", "int64", "float", "bool", "duration", "list", "map"}

// bindProperty registers key on m with the value type named in opts.
func bindProperty(m *configx.Manager, key string, opts propertyOptions) (configx.AnyProperty, error) {
	switch opts.valueType {
	case "", "string":
		return bindTyped[string](m, key, nil, opts)
	case "int":
		return bindTyped[int](m, key, typex.StringToInt, opts)
	case "int64":
		return bindTyped[int64](m, key, typex.StringToInt64, opts)
	case "float":
		return bindTyped[float64](m, key, typex.StringToFloat64, opts)
	case "bool":
		return bindTyped[bool](m, key, typex.StringToBool, opts)
	case "duration":
		return bindTyped[time.Duration](m, key, typex.StringToDuration, opts)
	case "list":
		return bindTyped[[]string](m, key, typex.StringToList, opts)
	case "map":
		return bindTyped[map[string]string](m, key, typex.StringToMap, opts)
	default:
		return nil, errors.Newf(errors.CodeInvalidArgument, "unknown type %q, want one of %s", opts.valueType, strings.Join(valueTypes, ", "))
	}
}

func bindTyped[V any](m *configx.Manager, key string, conv typex.Converter, opts propertyOptions) (configx.AnyProperty, error) {
	spec := configx.PropertySpec[string, V]{
		Key:      key,
		Required: opts.required,
		Doc:      opts.doc,
	}
	if conv != nil {
		spec.ValueConverters = []typex.Converter{conv}
	}
	if opts.defaultValue != "" {
		def, err := parseDefault[V](conv, opts.defaultValue)
		if err != nil {
			return nil, err
		}
		spec.DefaultValue = def
	}
	cfg, err := configx.NewPropertyConfig(spec)
	if err != nil {
		return nil, err
	}
	p, err := configx.GetProperty(m, cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func parseDefault[V any](conv typex.Converter, raw string) (V, error) {
	var zero V
	var value any = raw
	if conv != nil {
		converted, err := conv.Convert(raw)
		if err != nil {
			return zero, errors.Wrapf(errors.CodeInvalidArgument, "scf.default", err, "invalid default %q", raw)
		}
		value = converted
	}
	v, ok := value.(V)
	if !ok {
		return zero, errors.Newf(errors.CodeInvalidArgument, "invalid default %q", raw)
	}
	return v, nil
}

// propertyView is the printable form of a resolved property.
type propertyView struct {
	Key    string `json:"key" yaml:"key"`
	Value  any    `json:"value" yaml:"value"`
	Source string `json:"source" yaml:"source"`
}

func viewOf(p configx.AnyProperty) propertyView {
	return newView(p.PropertyKey(), p.AnyValue(), p)
}

// changeViews returns the views before and after e.
func changeViews(e configx.ChangeEvent) (old, current propertyView) {
	return newView(e.Key(), e.Old(), nil), newView(e.Key(), e.New(), e.AnyProperty())
}

func newView(key, value any, p configx.AnyProperty) propertyView {
	v := propertyView{Key: fmt.Sprint(key), Value: value, Source: "<default>"}
	if p != nil && p.Source() != nil {
		v.Source = p.Source().Config().Name
	}
	if d, ok := v.Value.(time.Duration); ok {
		v.Value = d.String()
	}
	return v
}

// text renders the value the way it would be written in a properties file.
func (v propertyView) text() string {
	switch val := v.Value.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(val, ",")
	case map[string]string:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ":" + val[k]
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}
