package transport

import (
	"encoding/json"
	"errors"

	"github.com/iancoleman/strcase"
)

// ErrMalformedPayload marks an event body that could not be parsed. Such
// events are dropped with a log entry, never escalated.
var ErrMalformedPayload = errors.New("malformed event payload")

// NormalizeJSON parses a raw transport payload and rewrites every object key
// to lowerCamelCase, recursively. The runtime emits snake_case keys; the
// cloud document log and our typed models use camelCase.
func NormalizeJSON(payload []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, ErrMalformedPayload
	}
	normalized, _ := normalizeValue(data).(map[string]any)
	return normalized, nil
}

// DecodeNormalized parses a payload, normalizes its keys and decodes the
// result into out (whose JSON tags are camelCase).
func DecodeNormalized(payload []byte, out any) error {
	data, err := NormalizeJSON(payload)
	if err != nil {
		return err
	}
	round, err := json.Marshal(data)
	if err != nil {
		return ErrMalformedPayload
	}
	if err := json.Unmarshal(round, out); err != nil {
		return ErrMalformedPayload
	}
	return nil
}

// SnakeCaseKeys rewrites every object key to snake_case, recursively. Used
// for outbound command payloads.
func SnakeCaseKeys(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[strcase.ToSnake(k)] = denormalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[strcase.ToLowerCamel(k)] = normalizeValue(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalizeValue(child)
		}
		return out
	default:
		return v
	}
}

func denormalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return SnakeCaseKeys(val)
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = denormalizeValue(child)
		}
		return out
	default:
		return v
	}
}
