package utils

// ToStringSlice keeps the string members of a decoded JSON array.
func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0)
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// ContainsAll reports whether every member of want is in have.
func ContainsAll(have, want []string) bool {
	set := toSet(have)
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

// ContainsAny reports whether at least one member of want is in have.
func ContainsAny(have, want []string) bool {
	set := toSet(have)
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// CloneStrings copies a slice, preserving nil.
func CloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
