package studio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/reelforge/reelforge/internal/models"
)

func pollAgainst(t *testing.T, handler http.HandlerFunc) PollResult {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	poller := NewPoller(NewClient(srv.URL, "", 5*time.Second), 2*time.Second)
	return poller.Poll(context.Background(), "task-1")
}

func TestPollStatusMapping(t *testing.T) {
	cases := []struct {
		remote string
		want   models.TaskStatus
	}{
		{"pending", models.TaskStatusPending},
		{"queued", models.TaskStatusPending},
		{"running", models.TaskStatusRunning},
		{"processing", models.TaskStatusRunning},
		{"succeeded", models.TaskStatusSucceeded},
		{"completed", models.TaskStatusSucceeded},
		{"failed", models.TaskStatusFailed},
		{"error", models.TaskStatusFailed},
	}

	for _, tc := range cases {
		t.Run(tc.remote, func(t *testing.T) {
			res := pollAgainst(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(TaskResponse{TaskID: "task-1", Status: tc.remote})
			})
			if res.Status != tc.want {
				t.Errorf("remote %q mapped to %q, want %q", tc.remote, res.Status, tc.want)
			}
			if res.Transient {
				t.Errorf("remote %q should not be transient", tc.remote)
			}
		})
	}
}

func TestPollSucceededCarriesResult(t *testing.T) {
	res := pollAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TaskResponse{
			TaskID: "task-1",
			Status: "succeeded",
			Result: json.RawMessage(`[{"type":"shot","text":"open on beach"}]`),
		})
	})

	if res.Status != models.TaskStatusSucceeded {
		t.Fatalf("unexpected status: %s", res.Status)
	}
	if !strings.Contains(string(res.Result), "open on beach") {
		t.Errorf("result payload missing: %s", res.Result)
	}
}

func TestPollFailedCarriesError(t *testing.T) {
	res := pollAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TaskResponse{TaskID: "task-1", Status: "failed", Error: "no assets found"})
	})

	if res.Status != models.TaskStatusFailed || res.Transient {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Error != "no assets found" {
		t.Errorf("unexpected error message: %q", res.Error)
	}
}

func TestPollTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	poller := NewPoller(NewClient(srv.URL, "", time.Second), time.Second)
	res := poller.Poll(context.Background(), "task-1")

	if res.Status != models.TaskStatusFailed {
		t.Fatalf("unexpected status: %s", res.Status)
	}
	if !res.Transient {
		t.Fatal("transport failure must be transient")
	}
	if !strings.HasPrefix(res.Error, "transport:") {
		t.Errorf("unexpected error: %q", res.Error)
	}
}

func TestPollTimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	poller := NewPoller(NewClient(srv.URL, "", 5*time.Second), 50*time.Millisecond)
	res := poller.Poll(context.Background(), "task-1")

	if res.Status != models.TaskStatusFailed || !res.Transient {
		t.Fatalf("expected transient failure on timeout, got %+v", res)
	}
}

func TestPollUnknownStatusIsTransient(t *testing.T) {
	res := pollAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TaskResponse{TaskID: "task-1", Status: "paused"})
	})

	if res.Status != models.TaskStatusFailed || !res.Transient {
		t.Fatalf("expected transient failure for unknown status, got %+v", res)
	}
}
