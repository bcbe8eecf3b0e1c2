package typex

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Standard converters from string. Blank input converts to absent.
var (
	StringToInt      = fromString("string->int", strconv.Atoi)
	StringToInt64    = fromString("string->int64", func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
	StringToFloat32  = fromString("string->float32", parseFloat32)
	StringToFloat64  = fromString("string->float64", func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
	StringToBool     = fromString("string->bool", strconv.ParseBool)
	StringToDuration = fromString("string->duration", time.ParseDuration)
	StringToList     = NewStringToList[string](Identity[string]())
	StringToMap      = NewStringToMap[string, string](Identity[string](), Identity[string]())
)

const (
	listSeparator     = ","
	keyValueSeparator = ":"
)

func parseFloat32(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}

// fromString wraps fn so that input is trimmed and blank input is absent
// rather than the zero value of T.
func fromString[T any](name string, fn func(string) (T, error)) Converter {
	return blankAware{Converter: New(name, func(s string) (T, error) {
		return fn(strings.TrimSpace(s))
	})}
}

type blankAware struct {
	Converter
}

func (b blankAware) Convert(src any) (any, error) {
	if s, ok := src.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return b.Converter.Convert(src)
}

func (b blankAware) String() string {
	return b.Converter.(fmt.Stringer).String()
}

// NewStringToList builds a converter from a comma separated string to []V.
// Each trimmed, non-blank element is converted with elem; elements that fail
// conversion or convert to absent are dropped. An empty result is absent.
func NewStringToList[V any](elem Converter) Converter {
	name := "string->[]" + reflect.TypeFor[V]().String()
	return New(name, func(s string) ([]V, error) {
		var out []V
		for _, part := range strings.Split(s, listSeparator) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if v, ok := convertElement[V](elem, part); ok {
				out = append(out, v)
			}
		}
		return out, nil
	})
}

// NewStringToMap builds a converter from "k1:v1,k2:v2" to map[K]V.
// Entries without exactly one non-blank key and one non-blank value, or whose
// key or value fail conversion, are dropped. An empty result is absent.
func NewStringToMap[K comparable, V any](key, value Converter) Converter {
	name := "string->" + reflect.TypeFor[map[K]V]().String()
	return New(name, func(s string) (map[K]V, error) {
		out := make(map[K]V)
		for _, entry := range strings.Split(s, listSeparator) {
			kv := strings.Split(entry, keyValueSeparator)
			if len(kv) != 2 {
				continue
			}
			rawKey, rawValue := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
			if rawKey == "" || rawValue == "" {
				continue
			}
			k, ok := convertElement[K](key, rawKey)
			if !ok {
				continue
			}
			v, ok := convertElement[V](value, rawValue)
			if !ok {
				continue
			}
			out[k] = v
		}
		return out, nil
	})
}

func convertElement[T any](c Converter, raw string) (T, bool) {
	var zero T
	if c == nil {
		if v, ok := any(raw).(T); ok {
			return v, true
		}
		return zero, false
	}
	converted, err := c.Convert(raw)
	if err != nil || IsAbsent(converted) {
		return zero, false
	}
	v, ok := converted.(T)
	return v, ok
}
