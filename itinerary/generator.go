// Package itinerary shells out to the external itinerary script.
package itinerary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrNotConfigured is returned when no script path has been set.
var ErrNotConfigured = errors.New("itinerary script not configured")

// Request is what the script receives on stdin, as JSON.
type Request struct {
	Destination string   `json:"destination"`
	Days        int      `json:"days"`
	Interests   []string `json:"interests,omitempty"`
}

// Generator runs the configured script once per request. The script reads a
// Request from stdin and prints a JSON document on stdout.
type Generator struct {
	Script  string
	Timeout time.Duration
}

func New(script string, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Generator{Script: script, Timeout: timeout}
}

// Generate runs the script and returns its stdout, which must be valid JSON.
func (g *Generator) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	if g.Script == "" {
		return nil, ErrNotConfigured
	}

	input, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.Script)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("itinerary script: %w: %s", err, stderr.String())
		}
		return nil, fmt.Errorf("itinerary script: %w", err)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if !json.Valid(out) {
		return nil, errors.New("itinerary script produced invalid JSON")
	}
	return json.RawMessage(out), nil
}
