package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sucicfilip/ruby-lsp-rails/internal/core/errors"
	"github.com/sucicfilip/ruby-lsp-rails/internal/shared/observability"
	"github.com/sucicfilip/ruby-lsp-rails/internal/shared/util"
)

// Client talks to a Rails runner process over stdio. Requests are
// serialized: the runner answers one query at a time. A timed-out or
// stream-broken round trip kills the process so the next request
// starts on a fresh stream instead of reading a stale frame.
type Client struct {
	mu      sync.Mutex
	command []string
	dir     string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	timeout time.Duration
	limiter *util.Limiter
	started bool
}

// Options configures a Client.
type Options struct {
	// Command is the runner invocation, e.g. ["bin/rails", "runner", "-"].
	Command []string
	// Dir is the workspace root the runner starts in.
	Dir string
	// Timeout bounds a single round trip.
	Timeout time.Duration
	// Limiter throttles outgoing requests; nil means unlimited.
	Limiter *util.Limiter
}

func NewClient(opts Options) (*Client, error) {
	if len(opts.Command) == 0 {
		return nil, errors.New(errors.CodeValidationError, "runner command is empty")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		command: opts.Command,
		dir:     opts.Dir,
		timeout: timeout,
		limiter: opts.Limiter,
	}, nil
}

// Start launches the runner process. Calling it is optional; the first
// resolve call starts the process lazily.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked()
}

func (c *Client) startLocked() error {
	if c.started {
		return nil
	}

	cmd := exec.Command(c.command[0], c.command[1:]...)
	cmd.Dir = c.dir
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "failed to open runner stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "failed to open runner stdout")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, errors.CodeUnavailable, "failed to start runner process")
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = bufio.NewReader(stdout)
	c.started = true
	slog.Info("runner process started", "pid", cmd.Process.Pid)
	return nil
}

// stopLocked kills the runner process and discards the pipes. Killing
// the process also unblocks any round-trip goroutine still parked in a
// read on the old stream.
func (c *Client) stopLocked() error {
	if !c.started {
		return nil
	}
	c.stdin.Close()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	err := c.cmd.Wait()
	c.cmd = nil
	c.stdin = nil
	c.stdout = nil
	c.started = false
	return err
}

// Close terminates the runner process.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

// ResolveAssociation asks the runner where an association's target is
// declared. Empty string means the runner has no answer.
func (c *Client) ResolveAssociation(ctx context.Context, modelScope, association string) (string, error) {
	var result struct {
		Location string `json:"location"`
	}
	err := c.call(ctx, MethodResolveAssociation, map[string]any{
		"model_name":       modelScope,
		"association_name": association,
	}, &result)
	if err != nil {
		return "", err
	}
	return result.Location, nil
}

// ResolveRouteHelper resolves a route helper name to the route's
// declaration, if the application defines it.
func (c *Client) ResolveRouteHelper(ctx context.Context, helper string) (string, error) {
	var result struct {
		Location string `json:"location"`
	}
	err := c.call(ctx, MethodResolveRouteHelper, map[string]any{
		"route_name": helper,
	}, &result)
	if err != nil {
		return "", err
	}
	return result.Location, nil
}

// ResolveControllerAction resolves a controller path and action name to
// the action's definitions across the ancestor chain.
func (c *Client) ResolveControllerAction(ctx context.Context, controllerPath, action string) ([]string, error) {
	var result struct {
		Locations []string `json:"locations"`
	}
	err := c.call(ctx, MethodResolveControllerAction, map[string]any{
		"controller": controllerPath,
		"action":     action,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.Locations, nil
}

func (c *Client) call(ctx context.Context, method string, params map[string]any, result any) error {
	ctx, span := observability.Tracer.Start(ctx, "runner."+method,
		trace.WithAttributes(attribute.String("runner.method", method)))
	defer span.End()

	observability.RunnerRequests.WithLabelValues(method).Inc()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		observability.RunnerFailures.WithLabelValues(method).Inc()
		return errors.AddContext(
			errors.Wrap(err, errors.CodeUnavailable, "runner request rate limit exceeded"),
			errors.CtxMethod, method)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.startLocked(); err != nil {
		observability.RunnerFailures.WithLabelValues(method).Inc()
		return err
	}

	req := Request{ID: uuid.NewString(), Method: method, Params: params}

	type roundTrip struct {
		resp Response
		err  error
	}
	stdin, stdout := c.stdin, c.stdout
	done := make(chan roundTrip, 1)
	go func() {
		var rt roundTrip
		if rt.err = WriteMessage(stdin, req); rt.err == nil {
			rt.err = ReadMessage(stdout, &rt.resp)
		}
		done <- rt
	}()

	var resp Response
	select {
	case <-ctx.Done():
		// The goroutine is still blocked on the response. Kill the
		// process to unblock it and drop the stream; letting a later
		// request read alongside it would interleave frames.
		_ = c.stopLocked()
		observability.RunnerFailures.WithLabelValues(method).Inc()
		return errors.AddContext(
			errors.Wrap(ctx.Err(), errors.CodeUnavailable, "runner request timed out"),
			errors.CtxMethod, method)
	case rt := <-done:
		if rt.err != nil {
			// A failed write or a half-read frame leaves the stream in
			// an unknown state; start over next time.
			_ = c.stopLocked()
			observability.RunnerFailures.WithLabelValues(method).Inc()
			return rt.err
		}
		resp = rt.resp
	}

	if resp.ID != req.ID {
		observability.RunnerFailures.WithLabelValues(method).Inc()
		return errors.AddContext(
			errors.New(errors.CodeInternal, "runner response ID mismatch"),
			errors.CtxMethod, method)
	}
	if resp.Error != nil {
		observability.RunnerFailures.WithLabelValues(method).Inc()
		return errors.AddContext(
			errors.Wrap(resp.Error, errors.CodeUnavailable, "runner reported an error"),
			errors.CtxMethod, method)
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			observability.RunnerFailures.WithLabelValues(method).Inc()
			return errors.Wrap(err, errors.CodeValidationError, "failed to decode runner result")
		}
	}
	return nil
}
