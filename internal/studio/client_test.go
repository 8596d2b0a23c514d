package studio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSubmit(t *testing.T) {
	var gotAuth string
	var gotReq SubmitRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/generate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(SubmitResponse{TaskID: "task-123"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key-1", 5*time.Second)

	taskID, err := client.Submit(context.Background(), "storyboard", json.RawMessage(`{"topic":"coffee"}`))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if taskID != "task-123" {
		t.Errorf("unexpected task id: %q", taskID)
	}
	if gotAuth != "Bearer key-1" {
		t.Errorf("unexpected auth header: %q", gotAuth)
	}
	if gotReq.Kind != "storyboard" {
		t.Errorf("unexpected kind: %q", gotReq.Kind)
	}
}

func TestSubmitServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "overloaded"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 5*time.Second)

	if _, err := client.Submit(context.Background(), "storyboard", nil); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestSubmitMissingTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 5*time.Second)

	if _, err := client.Submit(context.Background(), "storyboard", nil); err == nil {
		t.Fatal("expected error for response without task_id")
	}
}

func TestSubmitUnreachable(t *testing.T) {
	// A closed server is the unreachable-service case
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, "", time.Second)

	if _, err := client.Submit(context.Background(), "storyboard", nil); err == nil {
		t.Fatal("expected error for unreachable service")
	}
}

func TestGetTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tasks/task-9" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(TaskResponse{TaskID: "task-9", Status: "running", Progress: 40})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 5*time.Second)

	resp, err := client.GetTask(context.Background(), "task-9")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if resp.Status != "running" || resp.Progress != 40 {
		t.Errorf("unexpected response: %+v", resp)
	}
}
