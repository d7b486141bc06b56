package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/taskmasterd/taskmasterd/internal/history"
)

func TestOpenSearchSink_Send(t *testing.T) {
	var receivedBody []byte
	var receivedURL string
	var receivedMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		receivedURL = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		receivedBody = body

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"test","_index":"test-index","result":"created"}`))
	}))
	defer server.Close()

	sink := New(server.URL, "test-index")

	testRecord := history.Record{
		Job:       "test-job",
		Instance:  0,
		SpawnID:   "spawn-1",
		PID:       12345,
		State:     "running",
		StartedAt: time.Now().Add(-time.Minute).UTC(),
	}

	event := history.Event{
		Type:       history.EventSpawn,
		OccurredAt: time.Now().UTC(),
		Record:     testRecord,
	}

	ctx := context.Background()
	err := sink.Send(ctx, event)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if receivedMethod != "POST" {
		t.Errorf("Expected POST method, got: %s", receivedMethod)
	}

	expectedPath := "/test-index/_doc"
	if receivedURL != expectedPath {
		t.Errorf("Expected URL path %s, got: %s", expectedPath, receivedURL)
	}

	var receivedEvent map[string]interface{}
	if err := json.Unmarshal(receivedBody, &receivedEvent); err != nil {
		t.Fatalf("Failed to parse received JSON: %v", err)
	}

	if receivedEvent["type"] != string(history.EventSpawn) {
		t.Errorf("Expected type %s, got: %v", history.EventSpawn, receivedEvent["type"])
	}

	record, ok := receivedEvent["record"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected record in event, got: %v", receivedEvent)
	}

	if record["Job"] != testRecord.Job {
		t.Errorf("Expected record job %s, got: %v", testRecord.Job, record["Job"])
	}

	if record["PID"] != float64(testRecord.PID) {
		t.Errorf("Expected record PID %d, got: %v", testRecord.PID, record["PID"])
	}
}

func TestOpenSearchSink_SendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer server.Close()

	sink := New(server.URL, "test-index")

	testRecord := history.Record{Job: "test-job", Instance: 0, SpawnID: "spawn-2", PID: 12345, State: "running"}

	event := history.Event{
		Type:       history.EventSpawn,
		OccurredAt: time.Now().UTC(),
		Record:     testRecord,
	}

	ctx := context.Background()
	err := sink.Send(ctx, event)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	if !strings.Contains(err.Error(), "opensearch sink status 400") {
		t.Errorf("Expected status error message, got: %v", err)
	}
}

func TestOpenSearchSink_URLConstruction(t *testing.T) {
	tests := []struct {
		name        string
		baseURL     string
		index       string
		expectedURL string
	}{
		{
			name:        "Basic URL",
			baseURL:     "http://localhost:9200",
			index:       "logs",
			expectedURL: "http://localhost:9200/logs/_doc",
		},
		{
			name:        "URL with trailing slash",
			baseURL:     "http://localhost:9200/",
			index:       "events",
			expectedURL: "http://localhost:9200/events/_doc",
		},
		{
			name:        "HTTPS URL",
			baseURL:     "https://opensearch.example.com",
			index:       "instance-history",
			expectedURL: "https://opensearch.example.com/instance-history/_doc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var receivedURL string

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				receivedURL = r.URL.String()
				w.WriteHeader(http.StatusCreated)
			}))
			defer server.Close()

			sink := New(tt.baseURL, tt.index)
			if got := sink.baseURL + "/" + sink.index + "/_doc"; got != tt.expectedURL {
				t.Errorf("Expected URL %s, got: %s", tt.expectedURL, got)
			}
			expectedPath := "/" + tt.index + "/_doc"

			sink.baseURL = server.URL

			testRecord := history.Record{Job: "test", Instance: 0, SpawnID: "spawn", PID: 1, State: "running"}
			event := history.Event{Type: history.EventSpawn, OccurredAt: time.Now().UTC(), Record: testRecord}

			_ = sink.Send(context.Background(), event)

			if receivedURL != expectedPath {
				t.Errorf("Expected URL path %s, got: %s", expectedPath, receivedURL)
			}
		})
	}
}
