package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/viant/stepflow/model/instance"
)

// writeStatus prints an instance status in the requested format.
func writeStatus(w io.Writer, format string, status *instance.Status) error {
	if format == "json" {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "id:       %s\n", status.ID)
	fmt.Fprintf(w, "kind:     %s\n", status.Kind)
	fmt.Fprintf(w, "state:    %s\n", status.State)
	if status.LastStep != "" {
		fmt.Fprintf(w, "lastStep: %s\n", status.LastStep)
	}
	if status.Error != "" {
		fmt.Fprintf(w, "error:    %s (%s)\n", status.Error, status.ErrorKind)
	}
	return nil
}

func writeJSON(w io.Writer, value interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
