package experiments

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// unitSeparator joins identity material before hashing. It cannot appear in
// names or attribute values coming off the wire, so "ab"+"c" and "a"+"bc"
// cannot collide.
const unitSeparator = "\x1f"

// Context carries request-scoped attributes that experiments draw identity
// and targeting data from. It is owned by a single logical flow and is not
// safe for concurrent use; the engine only ever reads it synchronously.
type Context struct {
	attrs      map[string]any
	identities map[string]uint64
}

// NewContext builds a Context from the given attribute map. Nested
// map[string]any values are addressable through dotted keypaths.
func NewContext(attrs map[string]any) *Context {
	copied := make(map[string]any, len(attrs))
	for key, value := range attrs {
		copied[key] = value
	}
	return &Context{
		attrs:      copied,
		identities: map[string]uint64{},
	}
}

// Attrs returns a copy of the top-level attribute map, as exposed to audience
// rules.
func (c *Context) Attrs() map[string]any {
	if c == nil {
		return nil
	}
	out := make(map[string]any, len(c.attrs))
	for key, value := range c.attrs {
		out[key] = value
	}
	return out
}

// Value resolves a dotted keypath ("user.id") against the attributes.
func (c *Context) Value(keypath string) (any, bool) {
	if c == nil || keypath == "" {
		return nil, false
	}
	var current any = c.attrs
	for _, key := range strings.Split(keypath, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

// Identity computes the bucket position in [0, total) for the given keypath
// and seed. Buckets are cached per keypath/seed pair, so repeated lookups
// within one scope return the same position, including for IdentityRandom.
func (c *Context) Identity(keypath, seed string, total uint64) (uint64, error) {
	if c == nil {
		return 0, fmt.Errorf("%w: nil context", ErrIdentityNotFound)
	}
	if total == 0 {
		total = DefaultWeightTotal
	}
	cacheKey := keypath + unitSeparator + seed
	if bucket, ok := c.identities[cacheKey]; ok {
		return bucket, nil
	}
	bucket, err := c.computeIdentity(keypath, seed, total)
	if err != nil {
		return 0, err
	}
	c.identities[cacheKey] = bucket
	return bucket, nil
}

func (c *Context) computeIdentity(keypath, seed string, total uint64) (uint64, error) {
	if keypath == IdentityRandom {
		return rand.Uint64N(total), nil
	}
	value, ok := c.Value(keypath)
	if !ok {
		return 0, fmt.Errorf("%w: keypath %q", ErrIdentityNotFound, keypath)
	}
	input := fmt.Sprintf("%v", value) + unitSeparator + seed
	return xxhash.Sum64String(input) % total, nil
}

// IdentityContext builds a Context with value stored under the default
// identity keypath, the common case for compact-grammar experiments. Extra
// attributes, if any, are copied in alongside it.
func IdentityContext(value any, attrs map[string]any) *Context {
	ctx := NewContext(attrs)
	ctx.attrs[DefaultIdentityKeypath] = value
	return ctx
}

// TrackingKey returns an identifier for bucketing anonymous actors. Callers
// persist it (typically in a cookie) so assignments stay sticky across
// requests.
func TrackingKey() string {
	return uuid.NewString()
}
