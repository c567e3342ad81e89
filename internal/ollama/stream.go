package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Chunk is one element of a streamed generation: either a Fragment or the
// terminal Done.
type Chunk interface {
	isChunk()
}

// Fragment carries an incremental piece of response text.
type Fragment struct {
	Text string
}

// Done is the last chunk of a stream.
type Done struct {
	Context       []int
	TotalDuration time.Duration
	EvalCount     int
}

func (Fragment) isChunk() {}
func (Done) isChunk()     {}

// GenerateStream performs a chunked (stream=true) generation. Nothing is sent
// until the sequence is ranged over. The sequence can be ranged over once;
// breaking out of the loop closes the connection without notifying the server.
func (c *Client) GenerateStream(ctx context.Context, req GenerateRequest) iter.Seq2[Chunk, error] {
	req.Stream = true
	var used atomic.Bool

	return func(yield func(Chunk, error) bool) {
		if used.Swap(true) {
			yield(nil, ErrStreamConsumed)
			return
		}

		body, err := json.Marshal(req)
		if err != nil {
			yield(nil, fmt.Errorf("failed to marshal request: %w", err))
			return
		}

		if err := c.wait(ctx); err != nil {
			yield(nil, err)
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var timer *time.Timer
		if c.timeout > 0 {
			timer = time.AfterFunc(c.timeout, cancel)
		}

		c.logger.Debug("generate stream", "model", req.Model, "prompt_bytes", len(req.Prompt))
		resp, err := c.send(ctx, http.MethodPost, generatePath, body)
		if timer != nil {
			timer.Stop()
		}
		if err != nil {
			c.logger.Warn("generate stream failed", "model", req.Model, "err", err)
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var part GenerateResponse
			if err := json.Unmarshal(line, &part); err != nil {
				yield(nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err))
				return
			}
			if part.Error != "" {
				yield(nil, fmt.Errorf("ollama: %s", part.Error))
				return
			}

			if part.Response != "" {
				if !yield(Fragment{Text: part.Response}, nil) {
					return
				}
			}

			if part.Done {
				yield(Done{
					Context:       part.Context,
					TotalDuration: time.Duration(part.TotalDuration),
					EvalCount:     part.EvalCount,
				}, nil)
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(nil, &TransportError{Op: "POST " + generatePath, Err: err})
			return
		}
		yield(nil, fmt.Errorf("%w: stream ended before done", ErrMalformedResponse))
	}
}

// Collect drains a stream and returns the accumulated text. onFragment, if
// set, sees every fragment as it arrives. On error the text received so far
// is returned alongside it.
func Collect(seq iter.Seq2[Chunk, error], onFragment func(string)) (string, error) {
	var b strings.Builder
	for chunk, err := range seq {
		if err != nil {
			return b.String(), err
		}
		if f, ok := chunk.(Fragment); ok {
			b.WriteString(f.Text)
			if onFragment != nil {
				onFragment(f.Text)
			}
		}
	}
	return b.String(), nil
}
