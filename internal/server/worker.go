package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"wasteflow/internal/domain"
	"wasteflow/internal/repo"
	"wasteflow/internal/workflow"
	"wasteflow/internal/workflow/auth"
)

func registerWorker(api huma.API, e workflow.Engine, guard auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "worker-list-jobs",
		Method:      http.MethodGet,
		Path:        "/worker/jobs",
		Summary:     "Open jobs plus the worker's own",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WorkerJobsResponse `json:"body"`
	}, error) {
		workerID, errStatus := requirePermission(ctx, guard, "job.work")
		if errStatus != nil {
			return nil, errStatus
		}
		open, err := e.Repo.ListOpenJobs(ctx, 0)
		if err != nil {
			return nil, handleError(err)
		}
		mine, err := e.Repo.ListJobs(ctx, repo.JobFilters{WorkerID: workerID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkerJobsResponse `json:"body"`
		}{Body: WorkerJobsResponse{Open: open, Mine: mine}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "worker-job-action",
		Method:      http.MethodPut,
		Path:        "/worker/jobs",
		Summary:     "Accept, start or complete a job",
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
			http.StatusConflict, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body WorkerJobActionRequest `json:"body"`
	}) (*struct {
		Body domain.Job `json:"body"`
	}, error) {
		workerID, errStatus := requirePermission(ctx, guard, "job.work")
		if errStatus != nil {
			return nil, errStatus
		}
		j, err := e.WorkJob(ctx, workflow.JobWorkOptions{
			JobID:           input.Body.JobID,
			Action:          input.Body.Action,
			WorkerID:        workerID,
			ExpectedVersion: input.Body.Version,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Job `json:"body"`
		}{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "worker-list-reports",
		Method:      http.MethodGet,
		Path:        "/worker/reports",
		Summary:     "Verified reports awaiting collection",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.WasteReport `json:"body"`
	}, error) {
		if _, errStatus := requirePermission(ctx, guard, "report.complete"); errStatus != nil {
			return nil, errStatus
		}
		reports, err := e.Repo.ListReports(ctx, repo.ReportFilters{Status: "verified"})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.WasteReport `json:"body"`
		}{Body: reports}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "worker-complete-report",
		Method:      http.MethodPost,
		Path:        "/worker/complete-report",
		Summary:     "Mark a verified report as collected",
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
			http.StatusConflict, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CompleteReportRequest `json:"body"`
	}) (*struct {
		Body domain.WasteReport `json:"body"`
	}, error) {
		workerID, errStatus := requirePermission(ctx, guard, "report.complete")
		if errStatus != nil {
			return nil, errStatus
		}
		rep, err := e.CompleteReport(ctx, workflow.ReportCompleteOptions{
			ReportID:        input.Body.ReportID,
			WorkerID:        workerID,
			ExpectedVersion: input.Body.Version,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WasteReport `json:"body"`
		}{Body: rep}, nil
	})
}
