package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Output format names shared by the subcommands.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatPlot  = "plot"
	formatText  = "text"
)

// ErrUnknownFormat is returned when --format names an unsupported format.
var ErrUnknownFormat = errors.New("unknown output format")

// ErrInvalidTimeFormat is returned when a time flag cannot be parsed.
var ErrInvalidTimeFormat = errors.New("cannot parse time")

const shortHashLen = 8

// renderJSON writes the value as indented JSON.
func renderJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(value)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

// renderYAML writes the value as YAML.
func renderYAML(w io.Writer, value any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()

	err := encoder.Encode(value)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return nil
}

// parseTimeFlag parses a time flag value. Accepted forms: a duration
// relative to now ("24h", "30m"), a date ("2024-01-01") or RFC3339.
func parseTimeFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	if d, err := time.ParseDuration(value); err == nil {
		t := time.Now().Add(-d)

		return &t, nil
	}

	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}

	return nil, fmt.Errorf("%w: %q (want duration, YYYY-MM-DD or RFC3339)", ErrInvalidTimeFormat, value)
}

// shortHash abbreviates a commit hash for table display.
func shortHash(hash string) string {
	if len(hash) > shortHashLen {
		return hash[:shortHashLen]
	}

	return hash
}

// summaryLine returns the first line of a commit message.
func summaryLine(message string) string {
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		return message[:idx]
	}

	return message
}
