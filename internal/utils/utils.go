package utils

// NormalizeIdentifier converts the name of an identifier (a function name or
// an IR value name) to a valid one: only letters, digits, and underscores are
// allowed.
//
// Invalid characters are replaced with underscores.
// If the name starts with a digit, it is prefixed with an underscore.
func NormalizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	result := make([]rune, 0, len(name)+1)
	if name[0] >= '0' && name[0] <= '9' {
		result = append(result, '_')
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			result = append(result, r)
		} else {
			result = append(result, '_')
		}
	}
	return string(result)
}

// Set is a simple set of comparable elements.
type Set[T comparable] map[T]struct{}

// MakeSet returns a new Set with the given (optional) capacity hint.
func MakeSet[T comparable](capacity ...int) Set[T] {
	if len(capacity) > 0 {
		return make(Set[T], capacity[0])
	}
	return make(Set[T])
}

// Has returns whether the set contains the element.
func (s Set[T]) Has(element T) bool {
	_, ok := s[element]
	return ok
}

// Insert adds the elements to the set.
func (s Set[T]) Insert(elements ...T) {
	for _, element := range elements {
		s[element] = struct{}{}
	}
}
