package admin

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foodmart/foodmart-backend/api/responses"
	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"github.com/foodmart/foodmart-backend/pkg/logger"
)

// JobRunner triggers scheduled jobs on demand.
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
	Jobs() []string
}

type jobRunResponse struct {
	Job        string `json:"job"`
	DurationMS int64  `json:"duration_ms"`
}

func ListJobs(runner JobRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string][]string{"jobs": runner.Jobs()})
	}
}

// RunJob runs one job to completion under its cluster lock.
func RunJob(runner JobRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(chi.URLParam(r, "name"))
		if name == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "job name required"))
			return
		}
		start := time.Now()
		if err := runner.RunNow(r.Context(), name); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, jobRunResponse{Job: name, DurationMS: time.Since(start).Milliseconds()})
	}
}
