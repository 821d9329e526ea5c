package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const streamBuffer = 16

// Streamer turns /api/generate NDJSON output into text deltas.
type Streamer struct {
	client *Client
}

func NewStreamer(client *Client) *Streamer {
	return &Streamer{client: client}
}

// StreamFromPrompt closes the delta channel when generation ends. The error
// channel receives at most one error and is closed afterwards. Cancelling ctx
// stops the stream.
func (s *Streamer) StreamFromPrompt(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	deltas := make(chan string, streamBuffer)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(deltas)

		if err := s.stream(ctx, prompt, deltas); err != nil {
			errs <- err
		}
	}()
	return deltas, errs
}

func (s *Streamer) stream(ctx context.Context, prompt string, deltas chan<- string) error {
	reqBody := map[string]any{
		"model":  s.client.genModel,
		"prompt": prompt,
		"stream": true,
	}
	resp, err := s.client.openStream(ctx, "/api/generate", reqBody, "generate")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk struct {
			Response string `json:"response"`
			Done     bool   `json:"done"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("decode generate chunk: %w", err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("ollama generate: %s", chunk.Error)
		}
		if chunk.Response != "" {
			select {
			case deltas <- chunk.Response:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("read generate stream: %w", err)
	}
	return errors.New("ollama generate stream ended before done")
}
