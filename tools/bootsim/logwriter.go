package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
)

// logWriter forwards complete lines written by the boot stage to a
// structured logger.
type logWriter struct {
	logger  *slog.Logger
	pending bytes.Buffer
}

// writer returns w as an io.Writer or nil if w is nil.
func (w *logWriter) writer() io.Writer {
	if w == nil {
		return nil
	}
	return w
}

// Write implements io.Writer.
func (w *logWriter) Write(p []byte) (int, error) {
	w.pending.Write(p)
	for {
		line, err := w.pending.ReadBytes('\n')
		if err != nil {
			// keep the partial line for the next write
			rest := append([]byte(nil), line...)
			w.pending.Reset()
			w.pending.Write(rest)
			return len(p), nil
		}

		if text := bytes.TrimRight(line, "\n"); len(text) != 0 {
			w.logger.Info("console", "line", string(text))
		}
	}
}

func hex(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}

func hex64(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}
