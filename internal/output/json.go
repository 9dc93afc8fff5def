package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONWriter outputs results as indented JSON, one document per call.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}
