package tools

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// sanitizeArguments normalizes the raw JSON arguments the model produced
// for a tool. It never fails: input that is not a JSON object is returned as is
// and left for the decoder to reject.
func (r *Registry) sanitizeArguments(spec Spec, arguments string) string {
	if strings.TrimSpace(arguments) == "" {
		return "{}"
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		// keep original if not JSON
		return arguments
	}

	for name, p := range spec.Params {
		v, ok := m[name]
		if !ok {
			continue
		}
		if v == nil {
			delete(m, name)
			continue
		}
		if p.Type != schema.String {
			continue
		}
		var s string
		switch vv := v.(type) {
		case string:
			s = vv
		case float64:
			// JSON numbers decode as float64
			s = strconv.FormatFloat(vv, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(vv)
		default:
			s = fmt.Sprint(vv)
		}
		s = strings.TrimSpace(s)
		if slices.Contains(spec.DateParams, name) {
			s = PinYear(s, r.pinnedYear)
		}
		m[name] = s
	}

	b, err := json.Marshal(m)
	if err != nil {
		// fallback to original
		return arguments
	}
	return string(b)
}

// validateArguments checks required and enumerated parameters of sanitized arguments.
func validateArguments(spec Spec, arguments string) error {
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		return fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	for _, name := range spec.paramNames() {
		p := spec.Params[name]
		v, present := m[name]
		s, isString := v.(string)
		if p.Required && (!present || (isString && s == "")) {
			return fmt.Errorf("%w: %s", ErrMissingArgument, name)
		}
		if present && isString && len(p.Enum) > 0 && !slices.Contains(p.Enum, s) {
			return fmt.Errorf("invalid value %q for %s: must be one of %s", s, name, strings.Join(p.Enum, ", "))
		}
	}
	return nil
}
