package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskmasterd/taskmasterd/internal/supervisor"
)

// installHangupHandler wires SIGHUP to the Supervisor Loop's reload flag
// (spec.md §5/§9): the handler goroutine logs the signal and then stores
// the single-word atomic boolean via loop.RequestReload; it never touches
// the Job Table itself.
func installHangupHandler(loop *supervisor.Loop, log *slog.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	go func() {
		for range ch {
			log.Info("SIGHUP received, config reload requested")
			loop.RequestReload()
		}
	}()
}

// installInterruptHandler asks the loop to stop gracefully (tearing down
// every Job synchronously, per spec.md §5 "Supervisor shutdown ... is
// expected to iterate all Jobs and call stop_job_now") on SIGINT/SIGTERM.
func installInterruptHandler(loop *supervisor.Loop, log *slog.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-ch
		log.Info("shutdown signal received, stopping all jobs", "signal", sig)
		loop.Stop()
	}()
}
