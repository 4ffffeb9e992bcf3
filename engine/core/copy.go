package core

// CloneMap returns a shallow copy of the provided metadata map. Values are
// shared; callers must not mutate nested structures through the clone.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	copied := make(map[string]any, len(m))
	for k, v := range m {
		copied[k] = v
	}
	return copied
}
