package observer

import (
	"io"
	"log/slog"

	slogmulti "github.com/samber/slog-multi"
)

// NewFanoutLogger builds a single *slog.Logger that fans every record
// out to all of the given handlers. A client wires one handler for
// local stderr output and another for a remote log sink; the Hub only
// ever sees the one composed logger, so its own Emit path stays
// oblivious to how many real destinations exist downstream — mirroring
// the way Emit fans out to Observers without knowing their number.
func NewFanoutLogger(handlers ...slog.Handler) *slog.Logger {
	if len(handlers) == 0 {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}
	return slog.New(slogmulti.Fanout(handlers...))
}
