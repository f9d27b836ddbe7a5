package cliconfig

import (
	"os"

	"github.com/mattn/go-isatty"

	"github.com/bft-labs/framecast/pkg/log"
)

// Logger builds the process logger. Console output is used on a terminal,
// JSON lines otherwise.
func Logger(level string) *log.ZerologAdapter {
	opts := []log.AdapterOption{log.WithLevel(level)}
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		opts = append(opts, log.WithJSON())
	}
	return log.NewZerologAdapter(opts...)
}
