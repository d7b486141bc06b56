package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncStart("web")
	IncStart("web")
	IncRestart("web")
	IncStop("web")
	IncFatal("web")
	RecordStateTransition("web", "starting", "running")
	SetCurrentState("web", "0", "running", true)
	ObserveTick(0.002)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantNames := map[string]bool{
		"taskmasterd_instance_starts_total":            false,
		"taskmasterd_instance_restarts_total":           false,
		"taskmasterd_instance_stops_total":              false,
		"taskmasterd_instance_fatal_total":              false,
		"taskmasterd_instance_state_transitions_total":  false,
		"taskmasterd_instance_current_state":            false,
		"taskmasterd_supervisor_tick_duration_seconds":  false,
	}
	for _, mf := range mfs {
		n := mf.GetName()
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
			if len(mf.GetMetric()) == 0 {
				t.Fatalf("metric %s has no samples", n)
			}
		}
	}
	for n, found := range wantNames {
		if !found {
			t.Fatalf("expected metric %s to be registered", n)
		}
	}
}

func TestHelpersNoopBeforeRegister(t *testing.T) {
	regOK.Store(false)
	defer regOK.Store(true)
	IncStart("ignored")
	IncStop("ignored")
}
