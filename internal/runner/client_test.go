package runner

import (
	"context"
	"testing"
	"time"
)

// cat echoes request frames verbatim; the echoed request decodes as a
// response with a matching ID and no result, which is a valid empty
// answer.
func TestCallRoundTripOverEcho(t *testing.T) {
	client, err := NewClient(Options{Command: []string{"cat"}, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	location, err := client.ResolveRouteHelper(context.Background(), "users_path")
	if err != nil {
		t.Fatalf("ResolveRouteHelper() error = %v", err)
	}
	if location != "" {
		t.Errorf("location = %q, want empty", location)
	}
}

func TestCallTimeoutKillsRunnerProcess(t *testing.T) {
	// sleep never answers, so the round trip must time out, and the
	// abandoned read must not survive into the next request: the
	// process is killed and the stream discarded.
	client, err := NewClient(Options{Command: []string{"sleep", "60"}, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	if _, err := client.ResolveRouteHelper(context.Background(), "users_path"); err == nil {
		t.Fatal("expected a timeout error")
	}

	client.mu.Lock()
	started := client.started
	client.mu.Unlock()
	if started {
		t.Error("runner process still marked started after a timed-out round trip")
	}

	// The next call starts a fresh process rather than reusing the
	// poisoned stream; it times out the same way without deadlocking.
	doneCh := make(chan error, 1)
	go func() {
		_, err := client.ResolveRouteHelper(context.Background(), "users_path")
		doneCh <- err
	}()
	select {
	case err := <-doneCh:
		if err == nil {
			t.Fatal("expected a timeout error from the second call")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second call after timeout did not return")
	}
}

func TestCallStreamErrorKillsRunnerProcess(t *testing.T) {
	// true exits immediately, so the read fails with EOF and the
	// client must discard the process state.
	client, err := NewClient(Options{Command: []string{"true"}, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	if _, err := client.ResolveRouteHelper(context.Background(), "users_path"); err == nil {
		t.Fatal("expected a stream error")
	}

	client.mu.Lock()
	started := client.started
	client.mu.Unlock()
	if started {
		t.Error("runner process still marked started after a broken stream")
	}
}
