package iface

import (
	"context"
	"net"

	"github.com/quilldev/quill-client/internal/protocol"
)

// Reporter is the side channel that receives decoded packets and notable
// lifecycle events.
type Reporter interface {
	Report(message string)
	ReportPacket(p protocol.Packet)
}

// Dialer opens the underlying stream. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}
