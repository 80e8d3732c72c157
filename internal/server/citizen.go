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

// Owner-side surface: submissions and the actions owners take on their own
// entities.
func registerCitizen(api huma.API, e workflow.Engine, guard auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-report",
		Method:        http.MethodPost,
		Path:          "/reports",
		Summary:       "Submit a waste report",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateReportRequest `json:"body"`
	}) (*struct {
		Body domain.WasteReport `json:"body"`
	}, error) {
		reporterID, errStatus := requirePermission(ctx, guard, "report.create")
		if errStatus != nil {
			return nil, errStatus
		}
		rep, err := e.SubmitReport(ctx, workflow.ReportCreateOptions{
			ReporterID:  reporterID,
			WasteType:   input.Body.WasteType,
			Description: input.Body.Description,
			Location:    input.Body.Location,
			WeightKG:    input.Body.WeightKG,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WasteReport `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-my-reports",
		Method:      http.MethodGet,
		Path:        "/reports",
		Summary:     "List the caller's waste reports",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.WasteReport `json:"body"`
	}, error) {
		reporterID, errStatus := requirePermission(ctx, guard, "report.read")
		if errStatus != nil {
			return nil, errStatus
		}
		reports, err := e.Repo.ListReports(ctx, repo.ReportFilters{ReporterID: reporterID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.WasteReport `json:"body"`
		}{Body: reports}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-job",
		Method:        http.MethodPost,
		Path:          "/jobs",
		Summary:       "Post a collection job",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateJobRequest `json:"body"`
	}) (*struct {
		Body domain.Job `json:"body"`
	}, error) {
		clientID, errStatus := requirePermission(ctx, guard, "job.create")
		if errStatus != nil {
			return nil, errStatus
		}
		j, err := e.CreateJob(ctx, workflow.JobCreateOptions{
			ClientID:      clientID,
			Title:         input.Body.Title,
			Description:   input.Body.Description,
			Category:      input.Body.Category,
			Location:      input.Body.Location,
			ScheduledDate: input.Body.ScheduledDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Job `json:"body"`
		}{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-my-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List the caller's jobs",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Job `json:"body"`
	}, error) {
		clientID, errStatus := requirePermission(ctx, guard, "job.read")
		if errStatus != nil {
			return nil, errStatus
		}
		jobs, err := e.Repo.ListJobs(ctx, repo.JobFilters{ClientID: clientID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Job `json:"body"`
		}{Body: jobs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-my-job",
		Method:      http.MethodDelete,
		Path:        "/jobs/{job_id}",
		Summary:     "Delete one of the caller's jobs",
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
			http.StatusConflict, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		JobID string `path:"job_id"`
	}) (*struct{}, error) {
		clientID, errStatus := requirePermission(ctx, guard, "job.delete")
		if errStatus != nil {
			return nil, errStatus
		}
		principal, _ := principalFromContext(ctx)
		requireOwner := !hasPermission(principal.Permissions, "job.review")
		if requireOwner {
			if admin, err := guard.Repo.UserHasPermission(ctx, clientID, "job.review"); err == nil && admin {
				requireOwner = false
			}
		}
		if err := e.DeleteJob(ctx, workflow.JobDeleteOptions{
			JobID:        input.JobID,
			ActorID:      clientID,
			RequireOwner: requireOwner,
		}); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-marketplace-item",
		Method:        http.MethodPost,
		Path:          "/marketplace",
		Summary:       "List an item for sale",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateItemRequest `json:"body"`
	}) (*struct {
		Body domain.MarketplaceItem `json:"body"`
	}, error) {
		sellerID, errStatus := requirePermission(ctx, guard, "marketplace.create")
		if errStatus != nil {
			return nil, errStatus
		}
		it, err := e.ListItemForSale(ctx, workflow.ItemCreateOptions{
			SellerID:    sellerID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Category:    input.Body.Category,
			PriceCents:  input.Body.PriceCents,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MarketplaceItem `json:"body"`
		}{Body: it}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "browse-marketplace",
		Method:      http.MethodGet,
		Path:        "/marketplace",
		Summary:     "Browse approved listings",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Category string `query:"category" required:"false"`
	}) (*struct {
		Body []domain.MarketplaceItem `json:"body"`
	}, error) {
		if _, errStatus := userIDFromContext(ctx); errStatus != nil {
			return nil, errStatus
		}
		items, err := e.Repo.ListItems(ctx, repo.ItemFilters{Status: "approved", Category: input.Category})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.MarketplaceItem `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "view-marketplace-item",
		Method:      http.MethodGet,
		Path:        "/marketplace/{item_id}",
		Summary:     "View a listing",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ItemID string `path:"item_id"`
	}) (*struct {
		Body domain.MarketplaceItem `json:"body"`
	}, error) {
		if _, errStatus := userIDFromContext(ctx); errStatus != nil {
			return nil, errStatus
		}
		it, err := e.Repo.GetItem(ctx, input.ItemID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.BumpItemViews(ctx, it.ID); err != nil {
			return nil, handleError(err)
		}
		it.Views++
		return &struct {
			Body domain.MarketplaceItem `json:"body"`
		}{Body: it}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-item-sold",
		Method:      http.MethodPut,
		Path:        "/marketplace/{item_id}/sold",
		Summary:     "Mark one of the caller's listings as sold",
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
			http.StatusConflict, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ItemID string `path:"item_id"`
	}) (*struct {
		Body domain.MarketplaceItem `json:"body"`
	}, error) {
		sellerID, errStatus := requirePermission(ctx, guard, "marketplace.sell")
		if errStatus != nil {
			return nil, errStatus
		}
		it, err := e.MarkItemSold(ctx, workflow.ItemSellOptions{
			ItemID:   input.ItemID,
			SellerID: sellerID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MarketplaceItem `json:"body"`
		}{Body: it}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "apply-as-worker",
		Method:        http.MethodPost,
		Path:          "/worker-applications",
		Summary:       "Apply to become a worker",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateApplicationRequest `json:"body"`
	}) (*struct {
		Body domain.WorkerApplication `json:"body"`
	}, error) {
		applicantID, errStatus := requirePermission(ctx, guard, "application.create")
		if errStatus != nil {
			return nil, errStatus
		}
		app, err := e.SubmitApplication(ctx, workflow.ApplicationCreateOptions{
			ApplicantID: applicantID,
			FullName:    input.Body.FullName,
			Phone:       input.Body.Phone,
			Skills:      input.Body.Skills,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkerApplication `json:"body"`
		}{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-event",
		Method:        http.MethodPost,
		Path:          "/events",
		Summary:       "Schedule a community cleanup event",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateEventRequest `json:"body"`
	}) (*struct {
		Body domain.Event `json:"body"`
	}, error) {
		championID, errStatus := requirePermission(ctx, guard, "event.create")
		if errStatus != nil {
			return nil, errStatus
		}
		ev, err := e.CreateEvent(ctx, workflow.EventCreateOptions{
			ChampionID:  championID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Location:    input.Body.Location,
			StartsAt:    input.Body.StartsAt,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Event `json:"body"`
		}{Body: ev}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List community events",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" required:"false"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		if _, errStatus := requirePermission(ctx, guard, "event.read"); errStatus != nil {
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
		OperationID: "join-event",
		Method:      http.MethodPost,
		Path:        "/events/{event_id}/join",
		Summary:     "Join an event",
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*struct {
		Body domain.Event `json:"body"`
	}, error) {
		userID, errStatus := requirePermission(ctx, guard, "event.join")
		if errStatus != nil {
			return nil, errStatus
		}
		ev, err := e.JoinEvent(ctx, workflow.EventJoinOptions{
			EventID: input.EventID,
			UserID:  userID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Event `json:"body"`
		}{Body: ev}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-my-event",
		Method:      http.MethodDelete,
		Path:        "/events/{event_id}",
		Summary:     "Delete one of the caller's events",
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*struct{}, error) {
		championID, errStatus := requirePermission(ctx, guard, "event.delete")
		if errStatus != nil {
			return nil, errStatus
		}
		requireOwner := true
		if admin, err := guard.Repo.UserHasPermission(ctx, championID, "event.manage"); err == nil && admin {
			requireOwner = false
		}
		if err := e.DeleteEvent(ctx, workflow.EventDeleteOptions{
			EventID:      input.EventID,
			ActorID:      championID,
			RequireOwner: requireOwner,
		}); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
