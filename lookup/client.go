package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"strconv"
	"strings"
	"time"

	eglog "github.com/anacrolix/log"
)

const (
	MaxAttempts  = 10
	RetryDelay   = 3000 * time.Millisecond
	SuccessDelay = 3000 * time.Millisecond
)

var (
	// ErrInvalidKey is returned on 403: the key in the request URL is wrong
	// and no further batch can succeed.
	ErrInvalidKey        = errors.New("invalid api key")
	ErrAttemptsExhausted = errors.New("attempts exhausted")
)

type State uint8

const (
	Sending State = iota
	Processing
	Done
	Failed
	Aborted
)

func (s State) String() string {
	switch s {
	case Sending:
		return "sending"
	case Processing:
		return "processing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// StatusError is an unexpected HTTP status from the service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Handler receives the decoded responses of a successful batch.
type Handler func(b Batch, resps []Response)

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Printer interface {
	Printf(format string, v ...interface{})
}

// Client runs batches against the JSON-RPC endpoint, one at a time.
type Client struct {
	// URL is the full request URL, api key included.
	URL  string
	HTTP Doer
	// Sleep blocks for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// Log receives progress and failures, Trace the raw wire bodies.
	Log   Printer
	Trace eglog.Logger
	now   func() time.Time
}

func NewClient(url string) *Client {
	return &Client{
		URL:   url,
		HTTP:  http.DefaultClient,
		Sleep: sleep,
		Log:   stdlog.Default(),
		Trace: eglog.Discard,
		now:   time.Now,
	}
}

type reply struct {
	status        int
	body          []byte
	retryAfter    time.Duration
	hasRetryAfter bool
}

// Execute drives one batch to a terminal state. handle is called once, only
// when the service answered 200 with a decodable body. Done and Failed end
// the batch; Aborted ends the run.
func (c *Client) Execute(ctx context.Context, b Batch, handle Handler) (State, error) {
	body, err := b.Body()
	if err != nil {
		return Failed, fmt.Errorf("batch %d: %w", b.Index, err)
	}
	c.Trace.Printf("batch %d request: %s", b.Index, body)

	var (
		state    = Sending
		attempts int
		resps    []Response
		lastErr  error
	)
	for {
		switch state {
		case Sending:
			c.Log.Printf("[batch %d] attempt %d, %d items", b.Index, attempts, len(b.Requests))
			r, err := c.send(ctx, body)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return Aborted, ctx.Err()
				}
				lastErr = err
			case r.status == http.StatusOK:
				c.Trace.Printf("batch %d response: %s", b.Index, r.body)
				resps = resps[:0]
				if err := json.Unmarshal(r.body, &resps); err != nil {
					lastErr = fmt.Errorf("decode response: %w", err)
					break
				}
				state = Processing
				continue
			case r.status == http.StatusServiceUnavailable && r.hasRetryAfter:
				c.Log.Printf("[batch %d] service unavailable, retry after %s", b.Index, r.retryAfter)
				if err := c.Sleep(ctx, r.retryAfter); err != nil {
					return Aborted, err
				}
				continue
			case r.status == http.StatusForbidden:
				c.Log.Printf("[batch %d] forbidden: %s", b.Index, strings.TrimSpace(string(r.body)))
				return Aborted, fmt.Errorf("batch %d: %w", b.Index, ErrInvalidKey)
			default:
				lastErr = &StatusError{Code: r.status, Body: strings.TrimSpace(string(r.body))}
			}

			attempts++
			c.Log.Printf("[batch %d] attempt %d failed: %v", b.Index, attempts, lastErr)
			if err := c.Sleep(ctx, RetryDelay); err != nil {
				return Aborted, err
			}
			if attempts >= MaxAttempts {
				state = Failed
			}

		case Processing:
			handle(b, resps)
			state = Done

		case Done:
			// courtesy gap before the next batch; a cancel here is seen by
			// the caller before it sends again
			_ = c.Sleep(ctx, SuccessDelay)
			return Done, nil

		case Failed:
			return Failed, fmt.Errorf("batch %d: %w after %d attempts: %v", b.Index, ErrAttemptsExhausted, attempts, lastErr)

		default:
			return state, fmt.Errorf("batch %d: unexpected state %s", b.Index, state)
		}
	}
}

func (c *Client) send(ctx context.Context, body []byte) (*reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	r := &reply{status: resp.StatusCode, body: data}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	r.retryAfter, r.hasRetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), now())
	return r, nil
}

// parseRetryAfter accepts both forms of the header, delay-seconds and
// HTTP-date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
