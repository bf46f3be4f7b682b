package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/screener/internal/scheduler"
	"github.com/wonny/screener/pkg/logger"
)

// JobScheduler is the part of the scheduler the API exposes
type JobScheduler interface {
	GetJobStats() map[string]scheduler.JobStats
	RunJob(name string) error
}

// JobsHandler exposes scheduled jobs
type JobsHandler struct {
	scheduler JobScheduler
	logger    *logger.Logger
}

// NewJobsHandler creates a jobs handler
func NewJobsHandler(s JobScheduler, log *logger.Logger) *JobsHandler {
	return &JobsHandler{scheduler: s, logger: log}
}

// GetJobs returns per-job statistics
// GET /api/jobs
func (h *JobsHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.GetJobStats())
}

// RunJob triggers a job outside of its schedule
// POST /api/jobs/{name}/run
func (h *JobsHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.scheduler.RunJob(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.WithField("job", name).Info("Job triggered via API")
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "triggered", "job": name})
}
