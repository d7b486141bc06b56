// Package introspect is a small read-only HTTP mirror of the control
// channel's status output and the Prometheus metrics endpoint, for humans
// and dashboards. It never accepts a write: the control channel (internal/
// control) remains the sole operator-facing write surface (spec.md §6).
package introspect

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskmasterd/taskmasterd/internal/job"
	"github.com/taskmasterd/taskmasterd/internal/jobtable"
	"github.com/taskmasterd/taskmasterd/internal/metrics"
)

// NewServer builds a gin *http.Server exposing GET /status and GET
// /metrics. table is read without locking: callers must only read from it
// concurrently with the supervisor loop's writes if the caller accepts
// spec.md's single-threaded ownership model being relaxed for this one
// read-only path (status lines are a point-in-time snapshot, never used
// for control decisions).
func NewServer(addr string, table *jobtable.Table) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/status", func(c *gin.Context) {
		jobs := table.All()
		out := make(map[string][]string, len(jobs))
		for _, j := range jobs {
			lines, _ := j.Status(job.AllInstances())
			out[j.Name] = lines
		}
		c.JSON(http.StatusOK, out)
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return &http.Server{Addr: addr, Handler: r}
}
