// Package merge reconciles nested attribute maps arriving from multiple
// sources over time. Map values merge recursively; everything else is
// last-writer-wins.
package merge

// Merge combines base and incoming. When both are maps the merge recurses
// key-wise; for any other combination incoming replaces base entirely.
// Inputs are never mutated.
func Merge(base, incoming any) any {
	baseMap, baseOK := base.(map[string]any)
	incomingMap, incomingOK := incoming.(map[string]any)
	if !baseOK || !incomingOK {
		return cloneValue(incoming)
	}
	return MergeMaps(baseMap, incomingMap)
}

// MergeMaps deep-merges incoming into a copy of base. Keys present in both
// where both values are maps merge recursively; otherwise the incoming value
// wins.
func MergeMaps(base, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(incoming))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, v := range incoming {
		existing, ok := out[k]
		if ok {
			existingMap, em := existing.(map[string]any)
			incomingMap, im := v.(map[string]any)
			if em && im {
				out[k] = MergeMaps(existingMap, incomingMap)
				continue
			}
		}
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies maps and slices so callers can hold on to merge results
// without aliasing the inputs. Scalars pass through.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}
