package engine

// VariableStore implements the merge-overwrite semantics of the
// instance variable scope: keys in the patch replace existing keys
// wholesale, new keys are added, nested structures are not deep-merged.
// Applying the same patch twice is a no-op on the resulting state.
type VariableStore struct{}

func (VariableStore) Merge(scope map[string]any, patch map[string]any) map[string]any {
	if scope == nil {
		scope = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		scope[k] = v
	}
	return scope
}

// Snapshot returns a deep copy; callers never receive a live reference
// into engine-owned state.
func (VariableStore) Snapshot(scope map[string]any) map[string]any {
	out := make(map[string]any, len(scope))
	for k, v := range scope {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = copyValue(inner)
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, inner := range val {
			out = append(out, copyValue(inner))
		}
		return out
	default:
		return v
	}
}
