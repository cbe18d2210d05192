package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/clients/gamedata"
	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/http/response"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/queue"
	apperrors "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/errors"
)

type JobEnqueuer interface {
	Enqueue(ctx context.Context, clanTag, id string) (string, error)
	Entries() []queue.Entry
}

type JobReader interface {
	GetJob(ctx context.Context, id string) (*types.JobRecord, error)
}

type IngestionHandler struct {
	queue       JobEnqueuer
	jobs        JobReader
	homeClanTag string
}

func NewIngestionHandler(q JobEnqueuer, jobs JobReader, homeClanTag string) *IngestionHandler {
	return &IngestionHandler{queue: q, jobs: jobs, homeClanTag: gamedata.NormalizeTag(homeClanTag)}
}

type enqueueRequest struct {
	ClanTag string `json:"clanTag"`
	JobID   string `json:"jobId"`
}

// POST /api/ingestion/jobs
func (h *IngestionHandler) EnqueueJob(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	clanTag := gamedata.NormalizeTag(req.ClanTag)
	if clanTag == "" {
		clanTag = h.homeClanTag
	}
	id, err := h.queue.Enqueue(c.Request.Context(), clanTag, strings.TrimSpace(req.JobID))
	if err != nil {
		response.RespondServiceError(c, "enqueue_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"jobId": id, "clanTag": clanTag})
}

// GET /api/ingestion/jobs/:id
func (h *IngestionHandler) GetJob(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", apperrors.ErrInvalidArgument)
		return
	}
	job, err := h.jobs.GetJob(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, "job_lookup_failed", err)
		return
	}
	if job == nil {
		response.RespondError(c, http.StatusNotFound, "job_not_found", apperrors.ErrNotFound)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/ingestion/queue
func (h *IngestionHandler) ListQueue(c *gin.Context) {
	response.RespondOK(c, gin.H{"entries": h.queue.Entries()})
}
