// Package replay posts recorded telemetry to a running API.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// maxLineSize bounds a single NDJSON line.
const maxLineSize = 1 << 20

// Channel holds the recorded lines of one rocket channel in file order.
type Channel struct {
	Name  string
	Lines [][]byte
}

// Read splits NDJSON telemetry by channel. Channels keep the order of their
// first appearance and lines keep file order. Blank lines are skipped.
func Read(r io.Reader) ([]Channel, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var channels []Channel
	index := make(map[string]int)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var head struct {
			Metadata struct {
				Channel string `json:"channel"`
			} `json:"metadata"`
		}
		if err := json.Unmarshal(line, &head); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		name := head.Metadata.Channel
		if name == "" {
			return nil, fmt.Errorf("line %d: metadata.channel is missing", lineNo)
		}

		i, ok := index[name]
		if !ok {
			i = len(channels)
			index[name] = i
			channels = append(channels, Channel{Name: name})
		}
		channels[i].Lines = append(channels[i].Lines, bytes.Clone(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read telemetry: %w", err)
	}
	return channels, nil
}

// Options control a replay run.
type Options struct {
	// Concurrency is the number of channels posted in parallel.
	Concurrency int
	// Shuffle permutes each channel's lines before posting.
	Shuffle bool
	// Rand is used for Shuffle. Nil uses the global source.
	Rand *rand.Rand
}

// Stats summarizes a replay run.
type Stats struct {
	Channels int
	Sent     int64
	Failed   int64
}

// Client posts telemetry to the /messages endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	log      *zap.Logger
}

// NewClient creates a client for the API at baseURL with a traced transport.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/messages",
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Post sends one telemetry message.
func (c *Client) Post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Run posts every channel, one goroutine per channel up to opt.Concurrency.
// Lines of a channel are posted sequentially. A failed post is logged and
// counted, the run continues; context cancellation stops it.
func (c *Client) Run(ctx context.Context, channels []Channel, opt Options) (Stats, error) {
	if opt.Concurrency <= 0 {
		opt.Concurrency = 1
	}
	if opt.Shuffle {
		channels = shuffled(channels, opt.Rand)
	}

	var sent, failed atomic.Int64
	p := pool.New().WithContext(ctx).WithMaxGoroutines(opt.Concurrency)
	for _, ch := range channels {
		p.Go(func(ctx context.Context) error {
			for _, line := range ch.Lines {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := c.Post(ctx, line); err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					failed.Add(1)
					c.log.Warn("post failed", zap.String("channel", ch.Name), zap.Error(err))
					continue
				}
				sent.Add(1)
			}
			return nil
		})
	}
	err := p.Wait()

	stats := Stats{Channels: len(channels), Sent: sent.Load(), Failed: failed.Load()}
	c.log.Info("replay finished",
		zap.Int("channels", stats.Channels), zap.Int64("sent", stats.Sent), zap.Int64("failed", stats.Failed))
	return stats, err
}

func shuffled(channels []Channel, rnd *rand.Rand) []Channel {
	perm := rand.Perm
	if rnd != nil {
		perm = rnd.Perm
	}
	return lo.Map(channels, func(ch Channel, _ int) Channel {
		lines := make([][]byte, len(ch.Lines))
		for i, j := range perm(len(ch.Lines)) {
			lines[i] = ch.Lines[j]
		}
		return Channel{Name: ch.Name, Lines: lines}
	})
}
