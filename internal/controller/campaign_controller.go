package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/errors"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/repository"
	"github.com/InnovareAI/Sam-Staging-Branch-sub003/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Logger          *zap.Logger
}

// PauseCampaign stops outreach for a campaign and cancels its pending
// queue items. Safe to call repeatedly.
func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	result, err := c.CampaignService.Pause(r.Context(), id)
	if err != nil {
		c.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// ResumeCampaign reactivates a paused campaign.
func (c *CampaignController) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	if err := c.CampaignService.Resume(r.Context(), id); err != nil {
		c.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign_id": id,
		"status":      "active",
	})
}

// UpdateCampaignMessage edits one slot of the campaign's sequence. Locked
// sequences (any prospect contacted) answer 409.
func (c *CampaignController) UpdateCampaignMessage(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil || slot < 0 {
		http.Error(w, "invalid message slot", http.StatusBadRequest)
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.Body == "" {
		http.Error(w, "message body is required", http.StatusBadRequest)
		return
	}

	if err := c.CampaignService.UpdateMessage(r.Context(), id, slot, req.Body); err != nil {
		c.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign_id": id,
		"slot":        slot,
	})
}

func (c *CampaignController) respondError(w http.ResponseWriter, err error) {
	var notFound *appErrors.ErrCampaignNotFound
	if errors.As(err, &notFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if errors.Is(err, appErrors.ErrIllegalTransition) || errors.Is(err, repository.ErrSequenceLocked) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	c.Logger.Error("campaign request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func campaignID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
