package util

// StringSet is a set of strings, represented by the keys of a map.
type StringSet map[string]bool

// NewStringSet returns the given list(s) of strings as a StringSet.
func NewStringSet(lists ...[]string) StringSet {
	s := StringSet{}
	for _, list := range lists {
		for _, entry := range list {
			s[entry] = true
		}
	}
	return s
}

// Keys returns the keys of the StringSet, in no particular order.
func (s StringSet) Keys() []string {
	rv := make([]string, 0, len(s))
	for k := range s {
		rv = append(rv, k)
	}
	return rv
}
