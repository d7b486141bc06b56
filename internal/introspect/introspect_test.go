package introspect

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/taskmasterd/taskmasterd/internal/job"
	"github.com/taskmasterd/taskmasterd/internal/jobtable"
)

func TestServer_Status(t *testing.T) {
	tbl := jobtable.New(nil, nil)
	tbl.Reconcile(map[string]job.Spec{
		"web": {
			Command:      "sleep",
			Args:         []string{"60"},
			NumProcs:     1,
			AutoRestart:  job.AutoRestartNever,
			ExitCodes:    map[int]bool{0: true},
			StartRetries: 3,
			StopSignal:   15,
			StopWaitSecs: 1,
		},
	})
	defer tbl.StopAll()

	srv := NewServer(":0", tbl)

	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status code = %d", w.Code)
	}
	var body map[string][]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body["web"]) != 1 {
		t.Fatalf("expected 1 status line for web, got %v", body["web"])
	}
}

func TestServer_Metrics(t *testing.T) {
	tbl := jobtable.New(nil, nil)
	srv := NewServer(":0", tbl)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("status code = %d", w.Code)
	}
}
