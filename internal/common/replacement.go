// -----------------------------------------------------------------------
// Last Modified: Thursday, 16th April 2026 10:22:31 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

// Key/value reference replacement. Strings may embed {key} placeholders
// naming entries in the key/value store: prompt templates carry per-call
// inputs such as {input_claim} and {input_text}, config files reference
// stored secrets such as {gemini_api_key}.
//
// Replacement is case-sensitive. A placeholder with no matching key is
// left in place and logged once, so a missing secret degrades to a
// visible literal rather than an empty string.

package common

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/ternarybob/arbor"
)

// keyRefPattern matches {key} placeholders. Key names allow letters,
// digits, hyphens and underscores.
var keyRefPattern = regexp.MustCompile(`\{([a-zA-Z0-9_-]+)\}`)

// ReplaceKeyReferences substitutes every {key} placeholder in input with
// its value from kvMap. Unresolved placeholders stay as written.
func ReplaceKeyReferences(input string, kvMap map[string]string, logger arbor.ILogger) string {
	if input == "" {
		return input
	}

	var missing map[string]bool

	return keyRefPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := kvMap[name]; ok {
			return value
		}

		// One warning per key, however many times it appears.
		if !missing[name] {
			if missing == nil {
				missing = make(map[string]bool)
			}
			missing[name] = true
			logger.Warn().
				Str("key", name).
				Msg("Unresolved key reference left in place")
		}
		return match
	})
}

// ReplaceInMap walks a decoded map and substitutes placeholders in every
// string it holds, descending through nested maps and slices. The map is
// mutated in place.
func ReplaceInMap(m map[string]interface{}, kvMap map[string]string, logger arbor.ILogger) error {
	for key, value := range m {
		switch v := value.(type) {
		case string:
			m[key] = ReplaceKeyReferences(v, kvMap, logger)

		case map[string]interface{}:
			if err := ReplaceInMap(v, kvMap, logger); err != nil {
				return fmt.Errorf("key %q: %w", key, err)
			}

		case []interface{}:
			for i, elem := range v {
				switch e := elem.(type) {
				case string:
					v[i] = ReplaceKeyReferences(e, kvMap, logger)
				case map[string]interface{}:
					if err := ReplaceInMap(e, kvMap, logger); err != nil {
						return fmt.Errorf("key %q[%d]: %w", key, i, err)
					}
				}
			}
		}
	}

	return nil
}

// ReplaceInStruct substitutes placeholders in every settable string field
// of a struct, recursing through nested structs, non-nil struct pointers,
// string slices and string-keyed maps. v must be a struct pointer.
func ReplaceInStruct(v interface{}, kvMap map[string]string, logger arbor.ILogger) error {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr {
		return fmt.Errorf("expected a pointer, got %T", v)
	}

	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("expected a struct pointer, got pointer to %v", val.Kind())
	}

	return replaceStructFields(val, kvMap, logger)
}

func replaceStructFields(val reflect.Value, kvMap map[string]string, logger arbor.ILogger) error {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if !field.CanSet() {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			current := field.String()
			replaced := ReplaceKeyReferences(current, kvMap, logger)
			if replaced != current {
				field.SetString(replaced)
				logger.Debug().
					Str("field", typ.Field(i).Name).
					Msg("Substituted key reference in config field")
			}

		case reflect.Struct:
			if err := replaceStructFields(field, kvMap, logger); err != nil {
				return fmt.Errorf("field %s: %w", typ.Field(i).Name, err)
			}

		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				if err := replaceStructFields(field.Elem(), kvMap, logger); err != nil {
					return fmt.Errorf("field %s: %w", typ.Field(i).Name, err)
				}
			}

		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				for j := 0; j < field.Len(); j++ {
					elem := field.Index(j)
					elem.SetString(ReplaceKeyReferences(elem.String(), kvMap, logger))
				}
			}

		case reflect.Map:
			if field.Type().Key().Kind() != reflect.String {
				continue
			}
			switch field.Type().Elem().Kind() {
			case reflect.String:
				stringMap := field.Interface().(map[string]string)
				for key, value := range stringMap {
					stringMap[key] = ReplaceKeyReferences(value, kvMap, logger)
				}
			case reflect.Interface:
				anyMap := field.Interface().(map[string]interface{})
				if err := ReplaceInMap(anyMap, kvMap, logger); err != nil {
					return fmt.Errorf("field %s: %w", typ.Field(i).Name, err)
				}
			}
		}
	}

	return nil
}
