package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// parseFrame decodes one inbound frame into event objects. A frame is a
// single event object, an array of event objects, or an envelope
// {"type": ..., "data": [...]}. Non-object array elements are skipped.
func parseFrame(data []byte) ([]map[string]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedFrame)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch x := v.(type) {
	case map[string]any:
		if items, ok := x["data"].([]any); ok {
			if _, typed := x["type"]; typed {
				return objects(items), nil
			}
		}
		return []map[string]any{x}, nil
	case []any:
		return objects(x), nil
	default:
		return nil, fmt.Errorf("%w: unexpected %T", ErrMalformedFrame, v)
	}
}

func objects(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if obj, ok := it.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}
