package dagaz

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// MaxTags is the number of distinct tags a TagRegistry can hold.
const MaxTags = 64

// TagSet is a set of tags, one bit per tag registered in a TagRegistry.
type TagSet uint64

func (s TagSet) Set(t TagSet) TagSet {
	return s | t
}

func (s TagSet) Clear(t TagSet) TagSet {
	return s &^ t
}

// IsSet reports whether every tag of t is in the set.
func (s TagSet) IsSet(t TagSet) bool {
	return s&t == t
}

// IsAnySet reports whether the set shares at least one tag with t.
func (s TagSet) IsAnySet(t TagSet) bool {
	return s&t != 0
}

func (s TagSet) IsEmpty() bool {
	return s == 0
}

// filterByTags reports whether an object with the given tags is rejected by
// the include and exclude sets. An empty set does not filter.
func filterByTags(tags, include, exclude TagSet) bool {
	if !exclude.IsEmpty() && exclude.IsAnySet(tags) {
		return true
	}
	return !include.IsEmpty() && !include.IsAnySet(tags)
}

// TagRegistry assigns a bit to every tag name. It is safe for concurrent use.
type TagRegistry struct {
	mutex sync.RWMutex
	bits  map[string]TagSet
	names []string
}

func NewTagRegistry() *TagRegistry {
	return &TagRegistry{
		bits: make(map[string]TagSet),
	}
}

// Register returns the tag of the given name, assigning it the next free bit
// when the name is new.
func (r *TagRegistry) Register(name string) (TagSet, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if t, ok := r.bits[name]; ok {
		return t, nil
	}
	if len(r.names) == MaxTags {
		return 0, errors.New("too many tags").
			WithType(ErrTypeTooManyTags).
			WithTag("tag", name).
			WithTag("max", MaxTags)
	}

	t := TagSet(1) << len(r.names)
	r.bits[name] = t
	r.names = append(r.names, name)
	return t, nil
}

// Lookup returns the tag of the given name. ok is false when the name was
// never registered.
func (r *TagRegistry) Lookup(name string) (t TagSet, ok bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	t, ok = r.bits[name]
	return t, ok
}

// Parse registers every name and returns their union.
func (r *TagRegistry) Parse(names ...string) (TagSet, error) {
	var s TagSet
	for _, name := range names {
		t, err := r.Register(name)
		if err != nil {
			return 0, err
		}
		s = s.Set(t)
	}
	return s, nil
}

// Names returns the names of the tags in s, in registration order.
func (r *TagRegistry) Names(s TagSet) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var names []string
	for i, name := range r.names {
		if s.IsAnySet(TagSet(1) << i) {
			names = append(names, name)
		}
	}
	return names
}
