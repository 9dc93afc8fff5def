package output

import (
	"fmt"
	"io"
)

// Supported format names.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Writer renders a command result in a specific format.
type Writer interface {
	Write(w io.Writer, v any) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case FormatText:
		return &TextWriter{}, nil
	case FormatJSON, "":
		return &JSONWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Print renders v to w in the given format.
func Print(w io.Writer, format string, v any) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}
	return writer.Write(w, v)
}
