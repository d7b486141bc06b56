package job

import (
	"log/slog"
	"testing"
	"time"

	"github.com/taskmasterd/taskmasterd/internal/instance"
)

func testSpec(cmd string, args []string) Spec {
	return Spec{
		Command:      cmd,
		Args:         args,
		NumProcs:     1,
		AutoStart:    false,
		AutoRestart:  AutoRestartNever,
		ExitCodes:    map[int]bool{0: true},
		StartSecs:    0,
		StartRetries: 3,
		StopSignal:   15,
		StopWaitSecs: 1,
	}
}

func pollUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func tickUntil(t *testing.T, j *Job, timeout time.Duration, cond func() bool) {
	t.Helper()
	pollUntil(t, timeout, func() bool {
		j.Tick(time.Now())
		return cond()
	})
}

func TestJob_HappyStartStop(t *testing.T) {
	spec := testSpec("sleep", []string{"60"})
	spec.NumProcs = 2
	j := New("echo", spec, slog.Default(), nil)

	if err := j.Start(AllInstances()); err != nil {
		t.Fatalf("start: %v", err)
	}

	tickUntil(t, j, time.Second, func() bool {
		for _, in := range j.Instances() {
			if in.State() != instance.Running {
				return false
			}
		}
		return true
	})

	if err := j.Stop(AllInstances()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	tickUntil(t, j, 2*time.Second, func() bool {
		for _, in := range j.Instances() {
			if in.State() != instance.Stopped {
				return false
			}
		}
		return true
	})
}

func TestJob_BackoffThenFatal(t *testing.T) {
	spec := testSpec("/nonexistent-binary-xyz", nil)
	spec.StartRetries = 2
	spec.AutoStart = true
	j := New("bad", spec, slog.Default(), nil)

	if err := j.Start(AllInstances()); err != nil {
		t.Fatalf("start: %v", err)
	}

	tickUntil(t, j, 2*time.Second, func() bool {
		return j.Instances()[0].State() == instance.Fatal
	})

	lines, err := j.Status(AllInstances())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if lines[0] != "bad:0 fatal" {
		t.Errorf("status = %q, want %q", lines[0], "bad:0 fatal")
	}
}

func TestJob_UnexpectedExitRestart(t *testing.T) {
	spec := testSpec("sh", []string{"-c", "exit 7"})
	spec.ExitCodes = map[int]bool{0: true}
	spec.AutoRestart = AutoRestartUnexpectedExit
	spec.StartRetries = 5
	j := New("flap", spec, slog.Default(), nil)

	if err := j.Start(AllInstances()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Backoff waits 1+2+3+4 seconds across retries 1..4 before Fatal.
	tickUntil(t, j, 15*time.Second, func() bool {
		return j.Instances()[0].State() == instance.Fatal
	})
}

func TestJob_ExpectedExitNotRestarted(t *testing.T) {
	spec := testSpec("sh", []string{"-c", "exit 7"})
	spec.ExitCodes = map[int]bool{7: true}
	spec.AutoRestart = AutoRestartUnexpectedExit
	j := New("flap", spec, slog.Default(), nil)

	if err := j.Start(AllInstances()); err != nil {
		t.Fatalf("start: %v", err)
	}

	tickUntil(t, j, time.Second, func() bool {
		return j.Instances()[0].State() == instance.Exited
	})

	// stays Exited on further ticks
	for i := 0; i < 5; i++ {
		j.Tick(time.Now())
	}
	if got := j.Instances()[0].State(); got != instance.Exited {
		t.Errorf("state = %v, want Exited (must not restart)", got)
	}
}

func TestJob_GracefulThenForcedStop(t *testing.T) {
	spec := testSpec("sh", []string{"-c", "trap '' TERM; sleep 1000"})
	spec.StopWaitSecs = 1
	j := New("stubborn", spec, slog.Default(), nil)

	if err := j.Start(AllInstances()); err != nil {
		t.Fatalf("start: %v", err)
	}
	tickUntil(t, j, time.Second, func() bool {
		return j.Instances()[0].State() == instance.Running
	})

	if err := j.Stop(AllInstances()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	tickUntil(t, j, 3*time.Second, func() bool {
		return j.Instances()[0].State() == instance.Stopped
	})
}

func TestJob_StopOfStoppedIsNoOp(t *testing.T) {
	spec := testSpec("sleep", []string{"60"})
	j := New("idle", spec, slog.Default(), nil)

	before := j.Instances()[0].State()
	if err := j.Stop(AllInstances()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := j.Instances()[0].State(); got != before {
		t.Errorf("state changed on stop of Stopped instance: %v -> %v", before, got)
	}
}

func TestJob_StartOfRunningIsNoOp(t *testing.T) {
	spec := testSpec("sleep", []string{"60"})
	j := New("dup", spec, slog.Default(), nil)

	if err := j.Start(AllInstances()); err != nil {
		t.Fatalf("start: %v", err)
	}
	tickUntil(t, j, time.Second, func() bool {
		return j.Instances()[0].State() == instance.Running
	})
	spawnBefore := j.Instances()[0].SpawnID()

	if err := j.Start(AllInstances()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if got := j.Instances()[0].SpawnID(); got != spawnBefore {
		t.Errorf("start of Running instance spawned a new child")
	}

	_ = j.Stop(AllInstances())
	tickUntil(t, j, 2*time.Second, func() bool {
		return j.Instances()[0].State() == instance.Stopped
	})
}

func TestJob_BadIndex(t *testing.T) {
	spec := testSpec("sleep", []string{"60"})
	j := New("one", spec, slog.Default(), nil)

	if _, err := j.Status(OneInstance(5)); err == nil {
		t.Error("expected error for out-of-range index")
	}
}
