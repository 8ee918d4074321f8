package protocol

import (
	"fmt"
	"regexp"
	"strings"
)

// markerPattern matches any well-formed marker, registered or not. Payloads
// are split on it, so an unknown marker still terminates a payload.
var markerPattern = regexp.MustCompile(`\{Q[PS]:[A-Z_]+\}`)

// Packet is one decoded protocol unit. It is immutable once built.
type Packet struct {
	tag        Tag
	payload    string
	hasPayload bool
}

// NewPacket builds a packet directly. An empty payload is treated as absent.
func NewPacket(tag Tag, payload string) Packet {
	return Packet{tag: tag, payload: payload, hasPayload: payload != ""}
}

// Tag returns the packet's tag, TagNone when malformed.
func (p Packet) Tag() Tag { return p.tag }

// Payload returns the packet's payload and whether one was present.
func (p Packet) Payload() (string, bool) { return p.payload, p.hasPayload }

// Malformed reports whether no known marker was found.
func (p Packet) Malformed() bool { return p.tag == TagNone }

// Dataless reports whether the packet carries no payload.
func (p Packet) Dataless() bool { return !p.hasPayload }

func (p Packet) String() string {
	if p.Malformed() {
		return "Packet{malformed}"
	}
	if !p.hasPayload {
		return fmt.Sprintf("Packet{tag=%s}", p.tag)
	}
	return fmt.Sprintf("Packet{tag=%s payload=%q}", p.tag, p.payload)
}

// Decode parses one fragment into a packet. It never fails: input without a
// registered marker yields a malformed packet.
func Decode(fragment string) Packet {
	fragment = strings.TrimSuffix(fragment, "\n")
	fragment = strings.TrimSuffix(fragment, "\r")

	tag := matchTag(fragment)
	if tag == TagNone {
		return Packet{}
	}

	parts := markerPattern.Split(fragment, -1)
	if len(parts) < 2 || parts[1] == "" {
		return Packet{tag: tag}
	}
	return Packet{tag: tag, payload: parts[1], hasPayload: true}
}

// Encode renders a tag marker in ns followed by payload.
func Encode(ns Namespace, tag Tag, payload string) string {
	return tag.Marker(ns) + payload
}

// EncodeLine is Encode terminated by the newline frame delimiter.
func EncodeLine(ns Namespace, tag Tag, payload string) string {
	return Encode(ns, tag, payload) + "\n"
}
