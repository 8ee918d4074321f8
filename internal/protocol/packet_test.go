package protocol

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestDecodeScenarios(t *testing.T) {
	cases := []struct {
		name       string
		fragment   string
		tag        Tag
		payload    string
		hasPayload bool
	}{
		{name: "local keep-alive", fragment: "{QP:KEEP_ALIVE}\n", tag: TagKeepAlive},
		{name: "server keep-alive", fragment: "{QS:KEEP_ALIVE}", tag: TagKeepAlive},
		{name: "plain text", fragment: "hello world\n", tag: TagNone},
		{name: "end server with payload", fragment: "{QP:END_SERVER}bye\n", tag: TagEndServer, payload: "bye", hasPayload: true},
		{name: "end session", fragment: "{QP:ES}", tag: TagEndSession},
		{name: "crlf terminated", fragment: "{QS:END_SERVER}later\r\n", tag: TagEndServer, payload: "later", hasPayload: true},
		{name: "text before marker only", fragment: "prefix{QS:KEEP_ALIVE}", tag: TagKeepAlive},
		{name: "unknown token", fragment: "{QS:NOT_A_TAG}data", tag: TagNone},
		{name: "lowercase token", fragment: "{qs:keep_alive}", tag: TagNone},
		{name: "empty", fragment: "", tag: TagNone},
		{name: "second marker ends payload", fragment: "{QS:END_SERVER}one{QS:KEEP_ALIVE}two", tag: TagKeepAlive, payload: "one", hasPayload: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Decode(tc.fragment)
			require.Equal(t, tc.tag, p.Tag())
			require.Equal(t, tc.tag == TagNone, p.Malformed())

			payload, ok := p.Payload()
			require.Equal(t, tc.hasPayload, ok)
			require.Equal(t, tc.payload, payload)
			require.Equal(t, !tc.hasPayload, p.Dataless())
		})
	}
}

func TestMalformedPacketSkipsPayload(t *testing.T) {
	p := Decode("no marker {here} but text")
	require.True(t, p.Malformed())
	payload, ok := p.Payload()
	require.False(t, ok)
	require.Empty(t, payload)
	require.Equal(t, "Packet{malformed}", p.String())
}

func TestKeepAliveRoundTrip(t *testing.T) {
	line := EncodeLine(NamespaceLocal, TagKeepAlive, "")
	require.Equal(t, "{QP:KEEP_ALIVE}\n", line)

	p := Decode(line)
	require.Equal(t, TagKeepAlive, p.Tag())
	require.True(t, p.Dataless())
}

func TestEncodeWithPayload(t *testing.T) {
	require.Equal(t, "{QS:END_SERVER}bye", Encode(NamespaceServer, TagEndServer, "bye"))
	require.Equal(t, "", TagNone.Marker(NamespaceLocal))
	require.Equal(t, "bye", Encode(NamespaceLocal, TagNone, "bye"))
}

func TestNewPacketTreatsEmptyPayloadAsAbsent(t *testing.T) {
	p := NewPacket(TagKeepAlive, "")
	require.True(t, p.Dataless())
	require.Equal(t, "Packet{tag=KEEP_ALIVE}", p.String())

	p = NewPacket(TagEndServer, "bye")
	require.Equal(t, `Packet{tag=END_SERVER payload="bye"}`, p.String())
}

func TestDecodeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("decode yields a registered tag or a malformed packet", prop.ForAll(
		func(fragment string) bool {
			p := Decode(fragment)
			if p.Malformed() {
				_, ok := p.Payload()
				return !ok
			}
			return p.Tag().Valid()
		},
		gen.AnyString(),
	))

	tagGen := gen.OneConstOf(TagKeepAlive, TagEndServer, TagEndSession)
	nsGen := gen.OneConstOf(NamespaceServer, NamespaceLocal)

	properties.Property("encoded packets decode to the same tag and payload", prop.ForAll(
		func(tag Tag, ns Namespace, payload string) bool {
			p := Decode(EncodeLine(ns, tag, payload))
			got, ok := p.Payload()
			if payload == "" {
				return p.Tag() == tag && !ok
			}
			return p.Tag() == tag && ok && got == payload
		},
		tagGen,
		nsGen,
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
