package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/ratelimit"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/repository"
)

// OpsController exposes the read-only operational surface used by health
// check scripts: queue depth, per-account quota usage and stuck-item
// counts.
type OpsController struct {
	Queue           repository.QueueRepositoryInterface
	Accounts        repository.AccountRepositoryInterface
	Clock           ratelimit.Clock
	DispatchTimeout time.Duration
	Logger          *zap.Logger
}

// QueueDepth returns the number of queue items per status.
func (c *OpsController) QueueDepth(w http.ResponseWriter, r *http.Request) {
	depth, err := c.Queue.DepthByStatus(r.Context())
	if err != nil {
		c.Logger.Error("queue depth query failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"depth": depth})
}

// AccountQuotas returns daily quota consumption per sending account,
// optionally filtered by ?workspace_id=.
func (c *OpsController) AccountQuotas(w http.ResponseWriter, r *http.Request) {
	var workspaceID int64
	if v := r.URL.Query().Get("workspace_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid workspace_id", http.StatusBadRequest)
			return
		}
		workspaceID = id
	}

	usage, err := c.Accounts.QuotaUsage(r.Context(), workspaceID)
	if err != nil {
		c.Logger.Error("quota usage query failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"accounts": usage})
}

// StuckItems reports how many items have sat in dispatched past the
// dispatch timeout.
func (c *OpsController) StuckItems(w http.ResponseWriter, r *http.Request) {
	cutoff := c.Clock.Now().Add(-c.DispatchTimeout)
	count, err := c.Queue.CountStuck(r.Context(), cutoff)
	if err != nil {
		c.Logger.Error("stuck item query failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"stuck":  count,
		"cutoff": cutoff,
	})
}
