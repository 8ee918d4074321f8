package observability

import (
	"github.com/quilldev/quill-client/internal/protocol"
	"github.com/rs/zerolog"
)

// LogReporter is a Reporter that writes everything to a zerolog logger.
type LogReporter struct {
	logger zerolog.Logger
}

// NewLogReporter reports through logger, tagged with component=report.
func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger.With().Str("component", "report").Logger()}
}

// Report logs message at info level.
func (r *LogReporter) Report(message string) {
	r.logger.Info().Msg(message)
}

// ReportPacket logs the packet's tag and, when present, its payload.
func (r *LogReporter) ReportPacket(p protocol.Packet) {
	ev := r.logger.Info().Str("tag", p.Tag().String())
	if payload, ok := p.Payload(); ok {
		ev = ev.Str("payload", payload)
	}
	ev.Msg("Packet received")
}

// NopReporter discards everything.
type NopReporter struct{}

// Report discards message.
func (NopReporter) Report(string) {}

// ReportPacket discards p.
func (NopReporter) ReportPacket(protocol.Packet) {}
