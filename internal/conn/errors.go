package conn

import (
	"errors"
	"io"
	"net"
	"syscall"
)

var (
	// ErrNotConnected is returned by reads attempted outside Connected.
	ErrNotConnected = errors.New("conn: not connected")
	// ErrClosed is returned when the socket was closed locally, either by
	// Disconnect or by Close. It never triggers a reconnect.
	ErrClosed = errors.New("conn: closed")
	// ErrConnectInProgress is returned by Connect while another dial is running.
	ErrConnectInProgress = errors.New("conn: connect already in progress")
)

// IsReset reports whether err means the peer or the network dropped the
// connection, as opposed to a transient or local failure.
func IsReset(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
