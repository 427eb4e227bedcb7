package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Namespace partitions the GUID space by entity kind.
type Namespace string

// Known namespaces. Each maps onto exactly one RecordKind.
const (
	NamespacePost  Namespace = "post"
	NamespaceMedia Namespace = "media"
	NamespaceFeed  Namespace = "feed"
)

// guidSeparator separates the namespace from the hashed key.
const guidSeparator = ":"

// GUID is a stable, namespaced identifier of the form "<namespace>:<uuid>".
type GUID string

// NewGUID derives a GUID from a source-specific natural key.
// The same namespace and key always produce the same GUID. Keys in
// different namespaces never collide because each namespace seeds its own
// name-based UUID space.
func NewGUID(ns Namespace, naturalKey string) GUID {
	space := uuid.NewSHA1(uuid.NameSpaceURL, []byte("sercha:"+string(ns)))
	id := uuid.NewSHA1(space, []byte(naturalKey))
	return GUID(string(ns) + guidSeparator + id.String())
}

// PostKey builds the natural key of a feed item: the feed URL and the
// item's own identifier joined by '#'.
func PostKey(feedURL, itemID string) string {
	return feedURL + "#" + itemID
}

// ParseGUID validates s and returns it as a GUID.
func ParseGUID(s string) (GUID, error) {
	g := GUID(s)
	if !g.Valid() {
		return "", fmt.Errorf("%w: malformed guid %q", ErrInvalidInput, s)
	}
	return g, nil
}

// Namespace returns the namespace prefix of the GUID.
func (g GUID) Namespace() Namespace {
	ns, _, ok := strings.Cut(string(g), guidSeparator)
	if !ok {
		return ""
	}
	return Namespace(ns)
}

// Kind returns the record kind implied by the GUID's namespace.
func (g GUID) Kind() RecordKind {
	switch g.Namespace() {
	case NamespacePost:
		return KindPost
	case NamespaceMedia:
		return KindMedia
	case NamespaceFeed:
		return KindFeed
	default:
		return ""
	}
}

// Valid reports whether the GUID has a known namespace and a UUID body.
func (g GUID) Valid() bool {
	_, id, ok := strings.Cut(string(g), guidSeparator)
	if !ok || g.Kind() == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// String implements fmt.Stringer.
func (g GUID) String() string {
	return string(g)
}
