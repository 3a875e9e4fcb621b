package cache

import (
	"fmt"
	"strings"
)

// Key identifies a cache entry. It is the collection name followed by the
// normalised parameters, joined with "/", so identical logical queries always
// produce the same Key.
type Key string

// NewKey builds a Key from a collection name and ordered parameters.
func NewKey(collection string, params ...any) Key {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, normalize(collection))
	for _, p := range params {
		parts = append(parts, normalize(fmt.Sprint(p)))
	}
	return Key(strings.Join(parts, "/"))
}

func normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "%", "%25")
	return strings.ReplaceAll(s, "/", "%2F")
}

// Collection returns the first segment of the key.
func (k Key) Collection() string {
	s := string(k)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i]
	}
	return s
}

// Segments splits the key into its parts.
func (k Key) Segments() []string {
	return strings.Split(string(k), "/")
}

// HasPrefix reports whether k starts with all segments of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if prefix == "" {
		return true
	}
	s, p := string(k), string(prefix)
	if !strings.HasPrefix(s, p) {
		return false
	}
	return len(s) == len(p) || s[len(p)] == '/'
}

// InCollection is a predicate matching every key of the given collections.
func InCollection(collections ...string) func(Key) bool {
	return func(k Key) bool {
		c := k.Collection()
		for _, want := range collections {
			if c == want {
				return true
			}
		}
		return false
	}
}
