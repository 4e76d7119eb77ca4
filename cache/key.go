package cache

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Key composes a cache key from a namespace and the call arguments.
// Serialization is canonical: map keys are emitted in sorted order, so
// logically identical argument sets always produce the same key.
func Key(namespace string, args any) string {
	data, err := stableJSONMarshal(args)
	if err != nil {
		// Arguments that cannot be serialized still need a usable key;
		// fall back to the fmt representation.
		return fmt.Sprintf("%s:%v", namespace, args)
	}
	return namespace + ":" + string(data)
}

// stableJSONMarshal marshals data to JSON with sorted map keys.
func stableJSONMarshal(v any) ([]byte, error) {
	// Round-trip through encoding/json to normalize structs, then
	// convert maps to sorted pair slices before the final marshal.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	return json.Marshal(toStableValue(decoded))
}

// toStableValue converts a value to a stable representation.
// Maps become ordered slices of key-value pairs.
func toStableValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]any, 0, len(val)*2)
		for _, k := range keys {
			pairs = append(pairs, k, toStableValue(val[k]))
		}
		return pairs

	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = toStableValue(item)
		}
		return result

	default:
		return val
	}
}
