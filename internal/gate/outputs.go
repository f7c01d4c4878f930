package gate

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// OutputWriter emits machine-readable key/value outputs for downstream
// pipeline steps: appended to the GITHUB_OUTPUT file when configured,
// otherwise printed to the fallback writer.
type OutputWriter struct {
	path     string
	fallback io.Writer
}

// NewOutputWriter constructs an OutputWriter.
func NewOutputWriter(path string, fallback io.Writer) *OutputWriter {
	return &OutputWriter{path: strings.TrimSpace(path), fallback: fallback}
}

// Set records one output pair.
func (w *OutputWriter) Set(key, value string) error {
	if w == nil {
		return nil
	}
	line := fmt.Sprintf("%s=%s\n", key, value)
	if w.path == "" {
		if w.fallback != nil {
			_, err := io.WriteString(w.fallback, line)
			return err
		}
		return nil
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}
