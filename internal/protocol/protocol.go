package protocol

import (
	"strings"
)

// Namespace is the short code inside a tag marker that tells who produced it.
type Namespace string

const (
	// NamespaceServer marks packets originated by the server side of the protocol.
	NamespaceServer Namespace = "QS"
	// NamespaceLocal marks packets written by this client.
	NamespaceLocal Namespace = "QP"
)

// namespaces is the scan order used when looking for a marker.
var namespaces = []Namespace{NamespaceServer, NamespaceLocal}

// Tag identifies a protocol command. The zero value means "no tag".
type Tag int

const (
	// TagNone is carried by malformed packets.
	TagNone Tag = iota
	// TagKeepAlive is sent periodically while connected to signal liveness.
	TagKeepAlive
	// TagEndServer is sent by the server before it ends the session.
	TagEndServer
	// TagEndSession is sent by the client before a graceful disconnect.
	TagEndSession
)

type tagEntry struct {
	tag   Tag
	name  string
	token string
}

// registry is the closed set of known tags, in scan order. Markers are
// disjoint, so the order only matters for fragments carrying several.
var registry = []tagEntry{
	{tag: TagKeepAlive, name: "KEEP_ALIVE", token: "KEEP_ALIVE"},
	{tag: TagEndServer, name: "END_SERVER", token: "END_SERVER"},
	{tag: TagEndSession, name: "END_SESSION", token: "ES"},
}

// Tags returns every registered tag in registry order.
func Tags() []Tag {
	out := make([]Tag, 0, len(registry))
	for _, e := range registry {
		out = append(out, e.tag)
	}
	return out
}

// LookupTag resolves a symbolic tag name such as "KEEP_ALIVE".
func LookupTag(name string) (Tag, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, e := range registry {
		if e.name == name {
			return e.tag, true
		}
	}
	return TagNone, false
}

func (t Tag) entry() (tagEntry, bool) {
	for _, e := range registry {
		if e.tag == t {
			return e, true
		}
	}
	return tagEntry{}, false
}

// String returns the symbolic name of the tag.
func (t Tag) String() string {
	if e, ok := t.entry(); ok {
		return e.name
	}
	return "NONE"
}

// Token returns the wire token of the tag, e.g. "ES" for TagEndSession.
func (t Tag) Token() string {
	if e, ok := t.entry(); ok {
		return e.token
	}
	return ""
}

// Marker renders the delimited wire marker for the tag in the given
// namespace, e.g. "{QP:KEEP_ALIVE}". Unknown tags render as "".
func (t Tag) Marker(ns Namespace) string {
	e, ok := t.entry()
	if !ok {
		return ""
	}
	return "{" + string(ns) + ":" + e.token + "}"
}

// Valid reports whether t is a registry member.
func (t Tag) Valid() bool {
	_, ok := t.entry()
	return ok
}

// matchTag finds the first registered marker contained in fragment.
func matchTag(fragment string) Tag {
	for _, e := range registry {
		for _, ns := range namespaces {
			if strings.Contains(fragment, e.tag.Marker(ns)) {
				return e.tag
			}
		}
	}
	return TagNone
}
