package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"wasteflow/internal/domain"
	"wasteflow/internal/repo"
	"wasteflow/internal/stats"
	"wasteflow/internal/workflow"
	"wasteflow/internal/workflow/auth"
)

func registerAdminReports(api huma.API, e workflow.Engine, st stats.Service, guard auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-list-reports",
		Method:      http.MethodGet,
		Path:        "/admin/reports",
		Summary:     "List waste reports with aggregates",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status    string `query:"status" required:"false"`
		WasteType string `query:"wasteType" required:"false"`
		From      string `query:"from" required:"false"`
		To        string `query:"to" required:"false"`
	}) (*struct {
		Body AdminReportsResponse `json:"body"`
	}, error) {
		if _, errStatus := requirePermission(ctx, guard, "report.review"); errStatus != nil {
			return nil, errStatus
		}
		reports, err := e.Repo.ListReports(ctx, repo.ReportFilters{Status: input.Status, WasteType: input.WasteType})
		if err != nil {
			return nil, handleError(err)
		}
		filter := stats.Filter{From: input.From, To: input.To}
		reportStats, err := st.Reports(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		breakdown, err := st.ReportTypeBreakdown(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AdminReportsResponse `json:"body"`
		}{Body: AdminReportsResponse{
			Reports:       reports,
			Stats:         reportStats,
			TypeBreakdown: breakdown,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-review-report",
		Method:      http.MethodPut,
		Path:        "/admin/reports",
		Summary:     "Verify or reject a waste report",
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
			http.StatusConflict, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body AdminReportActionRequest `json:"body"`
	}) (*struct {
		Body domain.WasteReport `json:"body"`
	}, error) {
		actorID, errStatus := requirePermission(ctx, guard, "report.review")
		if errStatus != nil {
			return nil, errStatus
		}
		rep, err := e.ReviewReport(ctx, workflow.ReportReviewOptions{
			ReportID:        input.Body.ReportID,
			Action:          input.Body.Action,
			Points:          input.Body.Points,
			RejectionReason: input.Body.RejectionReason,
			ActorID:         actorID,
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

func registerAdminJobs(api huma.API, e workflow.Engine, guard auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-list-jobs",
		Method:      http.MethodGet,
		Path:        "/admin/jobs",
		Summary:     "List jobs",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status" required:"false"`
		Category string `query:"category" required:"false"`
	}) (*struct {
		Body []domain.Job `json:"body"`
	}, error) {
		if _, errStatus := requirePermission(ctx, guard, "job.review"); errStatus != nil {
			return nil, errStatus
		}
		jobs, err := e.Repo.ListJobs(ctx, repo.JobFilters{Status: input.Status, Category: input.Category})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Job `json:"body"`
		}{Body: jobs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-review-job",
		Method:      http.MethodPut,
		Path:        "/admin/jobs",
		Summary:     "Verify or reject a job",
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
			http.StatusConflict, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body AdminJobActionRequest `json:"body"`
	}) (*struct {
		Body domain.Job `json:"body"`
	}, error) {
		actorID, errStatus := requirePermission(ctx, guard, "job.review")
		if errStatus != nil {
			return nil, errStatus
		}
		action := "verify"
		if input.Body.Status == "rejected" {
			action = "reject"
		}
		j, err := e.ReviewJob(ctx, workflow.JobReviewOptions{
			JobID:           input.Body.JobID,
			Action:          action,
			AdminNotes:      input.Body.AdminNotes,
			RejectionReason: input.Body.RejectionReason,
			ScheduledDate:   input.Body.ScheduledDate,
			ActorID:         actorID,
			ExpectedVersion: input.Body.Version,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Job `json:"body"`
		}{Body: j}, nil
	})
}

func registerAdminMarketplace(api huma.API, e workflow.Engine, guard auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-list-marketplace",
		Method:      http.MethodGet,
		Path:        "/admin/marketplace",
		Summary:     "List marketplace items",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" required:"false"`
	}) (*struct {
		Body []domain.MarketplaceItem `json:"body"`
	}, error) {
		if _, errStatus := requirePermission(ctx, guard, "marketplace.review"); errStatus != nil {
			return nil, errStatus
		}
		items, err := e.Repo.ListItems(ctx, repo.ItemFilters{Status: input.Status})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.MarketplaceItem `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-verify-marketplace-item",
		Method:      http.MethodPut,
		Path:        "/admin/marketplace/{item_id}/verify",
		Summary:     "Approve or reject a marketplace item",
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
			http.StatusConflict, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ItemID string                   `path:"item_id"`
		Body   MarketplaceVerifyRequest `json:"body"`
	}) (*struct {
		Body domain.MarketplaceItem `json:"body"`
	}, error) {
		actorID, errStatus := requirePermission(ctx, guard, "marketplace.review")
		if errStatus != nil {
			return nil, errStatus
		}
		it, err := e.ReviewItem(ctx, workflow.ItemReviewOptions{
			ItemID:          input.ItemID,
			Action:          input.Body.Action,
			RejectionReason: input.Body.RejectionReason,
			ActorID:         actorID,
			ExpectedVersion: input.Body.Version,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MarketplaceItem `json:"body"`
		}{Body: it}, nil
	})
}

func registerAdminApplications(api huma.API, e workflow.Engine, guard auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-list-applications",
		Method:      http.MethodGet,
		Path:        "/admin/worker-applications",
		Summary:     "List worker applications",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" required:"false"`
	}) (*struct {
		Body []domain.WorkerApplication `json:"body"`
	}, error) {
		if _, errStatus := requirePermission(ctx, guard, "application.review"); errStatus != nil {
			return nil, errStatus
		}
		apps, err := e.Repo.ListApplications(ctx, repo.ApplicationFilters{Status: input.Status})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.WorkerApplication `json:"body"`
		}{Body: apps}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-get-application",
		Method:      http.MethodGet,
		Path:        "/admin/worker-applications/{application_id}",
		Summary:     "Fetch one worker application",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ApplicationID string `path:"application_id"`
	}) (*struct {
		Body domain.WorkerApplication `json:"body"`
	}, error) {
		if _, errStatus := requirePermission(ctx, guard, "application.review"); errStatus != nil {
			return nil, errStatus
		}
		app, err := e.Repo.GetApplication(ctx, input.ApplicationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkerApplication `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-review-application",
		Method:      http.MethodPut,
		Path:        "/admin/worker-applications/{application_id}",
		Summary:     "Verify or reject a worker application",
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
			http.StatusConflict, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ApplicationID string                   `path:"application_id"`
		Body          ApplicationActionRequest `json:"body"`
	}) (*struct {
		Body domain.WorkerApplication `json:"body"`
	}, error) {
		actorID, errStatus := requirePermission(ctx, guard, "application.review")
		if errStatus != nil {
			return nil, errStatus
		}
		app, err := e.ReviewApplication(ctx, workflow.ApplicationReviewOptions{
			ApplicationID:   input.ApplicationID,
			Action:          input.Body.Action,
			RejectionReason: input.Body.RejectionReason,
			ActorID:         actorID,
			ExpectedVersion: input.Body.Version,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkerApplication `json:"body"`
		}{Body: app}, nil
	})
}

func registerAdminEvents(api huma.API, e workflow.Engine, guard auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-list-events",
		Method:      http.MethodGet,
		Path:        "/admin/events",
		Summary:     "List community events",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" required:"false"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		if _, errStatus := requirePermission(ctx, guard, "event.manage"); errStatus != nil {
			return nil, errStatus
		}
		evs, err := e.Repo.ListEvents(ctx, repo.EventFilters{Status: input.Status})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: evs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-set-event-status",
		Method:      http.MethodPut,
		Path:        "/admin/events",
		Summary:     "Move an event along its lifecycle",
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
			http.StatusConflict, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body AdminEventStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Event `json:"body"`
	}, error) {
		actorID, errStatus := requirePermission(ctx, guard, "event.manage")
		if errStatus != nil {
			return nil, errStatus
		}
		ev, err := e.SetEventStatus(ctx, workflow.EventStatusOptions{
			EventID:         input.Body.EventID,
			Status:          input.Body.Status,
			ActorID:         actorID,
			ExpectedVersion: input.Body.Version,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Event `json:"body"`
		}{Body: ev}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-delete-event",
		Method:      http.MethodDelete,
		Path:        "/admin/events",
		Summary:     "Delete an event",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID string `query:"eventId"`
	}) (*struct{}, error) {
		actorID, errStatus := requirePermission(ctx, guard, "event.delete")
		if errStatus != nil {
			return nil, errStatus
		}
		if err := e.DeleteEvent(ctx, workflow.EventDeleteOptions{
			EventID: input.EventID,
			ActorID: actorID,
		}); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerAdminUsers(api huma.API, e workflow.Engine, guard auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-list-users",
		Method:      http.MethodGet,
		Path:        "/admin/users",
		Summary:     "List users",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Role string `query:"role" required:"false"`
	}) (*struct {
		Body []domain.User `json:"body"`
	}, error) {
		if _, errStatus := requirePermission(ctx, guard, "user.read"); errStatus != nil {
			return nil, errStatus
		}
		users, err := e.Repo.ListUsers(ctx, repo.UserFilters{Role: input.Role})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.User `json:"body"`
		}{Body: users}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-delete-user",
		Method:      http.MethodDelete,
		Path:        "/admin/users",
		Summary:     "Delete a user and everything they own",
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body DeleteUserRequest `json:"body"`
	}) (*struct{}, error) {
		actorID, errStatus := requirePermission(ctx, guard, "user.delete")
		if errStatus != nil {
			return nil, errStatus
		}
		if err := e.DeleteUser(ctx, workflow.UserDeleteOptions{
			UserID:  input.Body.UserID,
			ActorID: actorID,
		}); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerAdminStats(api huma.API, st stats.Service, guard auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-stats",
		Method:      http.MethodGet,
		Path:        "/admin/stats",
		Summary:     "Dashboard aggregates",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		From     string `query:"from" required:"false"`
		To       string `query:"to" required:"false"`
		Category string `query:"category" required:"false"`
	}) (*struct {
		Body stats.Overview `json:"body"`
	}, error) {
		if _, errStatus := requirePermission(ctx, guard, "stats.read"); errStatus != nil {
			return nil, errStatus
		}
		ov, err := st.Overview(ctx, stats.Filter{From: input.From, To: input.To, Category: input.Category})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body stats.Overview `json:"body"`
		}{Body: ov}, nil
	})
}
