package controller

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/queue"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/repository"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/service"
)

// TickPublisher hands a tick job to the asynchronous worker path.
type TickPublisher interface {
	Publish(job queue.TickJob) error
}

// SchedulerController is the inbound trigger surface: an external
// workflow engine (webhook or cron) starts scheduler passes here. All
// endpoints are idempotent ticks; overlapping callers are safe because
// all claiming happens through database CAS updates.
type SchedulerController struct {
	Processor  *service.Processor
	Reconciler *service.Reconciler
	Publisher  TickPublisher
	Logger     *zap.Logger
}

// Tick runs one queue processor pass. The optional JSON body narrows the
// pass to a workspace and/or campaign; an empty body means a global
// sweep.
func (c *SchedulerController) Tick(w http.ResponseWriter, r *http.Request) {
	var scope repository.Scope
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&scope); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
	}

	result, err := c.Processor.Tick(r.Context(), scope)
	if err != nil {
		c.Logger.Error("scheduler tick failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// EnqueueTick publishes a tick job to the worker queue instead of
// running the pass in-process, for triggers that must not wait on a
// full pass.
func (c *SchedulerController) EnqueueTick(w http.ResponseWriter, r *http.Request) {
	if c.Publisher == nil {
		http.Error(w, "asynchronous trigger not configured", http.StatusServiceUnavailable)
		return
	}

	var scope repository.Scope
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&scope); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
	}

	if err := c.Publisher.Publish(queue.TickJob{Scope: scope}); err != nil {
		c.Logger.Error("tick publish failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{"enqueued": true, "scope": scope})
}

// Reconcile runs one reconciliation sweep.
func (c *SchedulerController) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := c.Reconciler.Sweep(r.Context())
	if err != nil {
		c.Logger.Error("reconciliation sweep failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
