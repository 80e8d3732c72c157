package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"wasteflow/internal/app"
	"wasteflow/internal/config"
	"wasteflow/internal/db"
	"wasteflow/internal/domain"
	"wasteflow/internal/metrics"
	"wasteflow/internal/migrate"
	"wasteflow/internal/repo"
	"wasteflow/internal/server"
	"wasteflow/internal/stats"
	"wasteflow/internal/workflow"
	"wasteflow/internal/workflow/auth"
)

var rootCmd = &cobra.Command{
	Use:   "wf",
	Short: "WasteFlow: waste report, job and marketplace workflow service",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	_ = godotenv.Load()
	initConfig()
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("WASTEFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-admin", "acting user identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(marketCmd())
	rootCmd.AddCommand(applicationCmd())
	rootCmd.AddCommand(eventCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var adminName, adminEmail string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the workspace, run migrations and seed roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				if err := app.SeedRBAC(ctx, e.DB, e.Config); err != nil {
					return err
				}
				if adminEmail == "" {
					return nil
				}
				u, err := app.EnsureAdmin(ctx, e, adminName, adminEmail)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&adminName, "admin-name", "Administrator", "admin display name")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "admin email (skip to not create one)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Print the default config YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateDefault())
			return nil
		},
	})
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Waste reports",
	}
	cmd.AddCommand(reportSubmitCmd(), reportListCmd(), reportReviewCmd(), reportCompleteCmd())
	return cmd
}

func reportSubmitCmd() *cobra.Command {
	var wasteType, description, location string
	var weight float64
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a waste report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				rep, err := e.SubmitReport(ctx, workflow.ReportCreateOptions{
					ReporterID:  viper.GetString("actor-id"),
					WasteType:   wasteType,
					Description: description,
					Location:    location,
					WeightKG:    weight,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(rep)
			})
		},
	}
	cmd.Flags().StringVar(&wasteType, "type", "mixed", "waste type")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&location, "location", "", "location")
	cmd.Flags().Float64Var(&weight, "weight", 0, "estimated weight in kg")
	return cmd
}

func reportListCmd() *cobra.Command {
	var status, wasteType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List waste reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				reports, err := r.ListReports(ctx, repo.ReportFilters{Status: status, WasteType: wasteType})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(reports)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Status", "Points", "Reporter"})
				for _, rep := range reports {
					points := "-"
					if rep.PointsAwarded != nil {
						points = fmt.Sprintf("%d", *rep.PointsAwarded)
					}
					tw.AppendRow(table.Row{rep.ID, rep.WasteType, rep.Status, points, rep.ReporterID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&wasteType, "type", "", "waste type filter")
	return cmd
}

func reportReviewCmd() *cobra.Command {
	var action, reason string
	var points int
	cmd := &cobra.Command{
		Use:   "review <report-id>",
		Short: "Verify or reject a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				opts := workflow.ReportReviewOptions{
					ReportID:        args[0],
					Action:          action,
					RejectionReason: reason,
					ActorID:         viper.GetString("actor-id"),
				}
				if cmd.Flags().Changed("points") {
					opts.Points = &points
				}
				rep, err := e.ReviewReport(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(rep)
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "verify", "verify or reject")
	cmd.Flags().IntVar(&points, "points", 0, "points to award (defaults per waste type)")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func reportCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <report-id>",
		Short: "Mark a verified report as collected",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				rep, err := e.CompleteReport(ctx, workflow.ReportCompleteOptions{
					ReportID: args[0],
					WorkerID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(rep)
			})
		},
	}
	return cmd
}

func jobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Collection jobs",
	}
	cmd.AddCommand(jobCreateCmd(), jobListCmd(), jobReviewCmd(), jobWorkCmd(), jobDeleteCmd())
	return cmd
}

func jobCreateCmd() *cobra.Command {
	var title, description, category, location, scheduled string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a collection job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				j, err := e.CreateJob(ctx, workflow.JobCreateOptions{
					ClientID:      viper.GetString("actor-id"),
					Title:         title,
					Description:   description,
					Category:      category,
					Location:      location,
					ScheduledDate: scheduled,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "job title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&location, "location", "", "location")
	cmd.Flags().StringVar(&scheduled, "scheduled", "", "scheduled date (RFC3339)")
	return cmd
}

func jobListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				jobs, err := r.ListJobs(ctx, repo.JobFilters{Status: status})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(jobs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Client", "Worker"})
				for _, j := range jobs {
					worker := "-"
					if j.WorkerID != nil {
						worker = *j.WorkerID
					}
					tw.AppendRow(table.Row{j.ID, j.Title, j.Status, j.ClientID, worker})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func jobReviewCmd() *cobra.Command {
	var action, notes, reason string
	cmd := &cobra.Command{
		Use:   "review <job-id>",
		Short: "Verify or reject a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				j, err := e.ReviewJob(ctx, workflow.JobReviewOptions{
					JobID:           args[0],
					Action:          action,
					AdminNotes:      notes,
					RejectionReason: reason,
					ActorID:         viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "verify", "verify or reject")
	cmd.Flags().StringVar(&notes, "notes", "", "admin notes")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func jobWorkCmd() *cobra.Command {
	var action string
	cmd := &cobra.Command{
		Use:   "work <job-id>",
		Short: "Accept, start or complete a job as the acting worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				j, err := e.WorkJob(ctx, workflow.JobWorkOptions{
					JobID:    args[0],
					Action:   action,
					WorkerID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "accept", "accept, start or complete")
	return cmd
}

func jobDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				return e.DeleteJob(ctx, workflow.JobDeleteOptions{
					JobID:   args[0],
					ActorID: viper.GetString("actor-id"),
				})
			})
		},
	}
	return cmd
}

func marketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marketplace",
		Short: "Marketplace listings",
	}
	cmd.AddCommand(marketCreateCmd(), marketListCmd(), marketReviewCmd(), marketSoldCmd())
	return cmd
}

func marketCreateCmd() *cobra.Command {
	var title, description, category string
	var priceCents int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "List an item for sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				it, err := e.ListItemForSale(ctx, workflow.ItemCreateOptions{
					SellerID:    viper.GetString("actor-id"),
					Title:       title,
					Description: description,
					Category:    category,
					PriceCents:  priceCents,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "listing title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().IntVar(&priceCents, "price-cents", 0, "price in cents")
	return cmd
}

func marketListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List marketplace items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListItems(ctx, repo.ItemFilters{Status: status})
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func marketReviewCmd() *cobra.Command {
	var action, reason string
	cmd := &cobra.Command{
		Use:   "review <item-id>",
		Short: "Approve or reject a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				it, err := e.ReviewItem(ctx, workflow.ItemReviewOptions{
					ItemID:          args[0],
					Action:          action,
					RejectionReason: reason,
					ActorID:         viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "approve", "approve or reject")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func marketSoldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sold <item-id>",
		Short: "Mark a listing as sold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				it, err := e.MarkItemSold(ctx, workflow.ItemSellOptions{
					ItemID:   args[0],
					SellerID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	return cmd
}

func applicationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "application",
		Short: "Worker applications",
	}
	var fullName, phone, skills string
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Apply to become a worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				wa, err := e.SubmitApplication(ctx, workflow.ApplicationCreateOptions{
					ApplicantID: viper.GetString("actor-id"),
					FullName:    fullName,
					Phone:       phone,
					Skills:      skills,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(wa)
			})
		},
	}
	submit.Flags().StringVar(&fullName, "name", "", "full name")
	submit.Flags().StringVar(&phone, "phone", "", "phone")
	submit.Flags().StringVar(&skills, "skills", "", "skills")

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				apps, err := r.ListApplications(ctx, repo.ApplicationFilters{Status: status})
				if err != nil {
					return err
				}
				return printJSONOrTable(apps)
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "status filter")

	var action, reason string
	review := &cobra.Command{
		Use:   "review <application-id>",
		Short: "Verify or reject an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				wa, err := e.ReviewApplication(ctx, workflow.ApplicationReviewOptions{
					ApplicationID:   args[0],
					Action:          action,
					RejectionReason: reason,
					ActorID:         viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(wa)
			})
		},
	}
	review.Flags().StringVar(&action, "action", "verify", "verify or reject")
	review.Flags().StringVar(&reason, "reason", "", "rejection reason")

	cmd.AddCommand(submit, list, review)
	return cmd
}

func eventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Community events",
	}
	var title, description, location, startsAt string
	create := &cobra.Command{
		Use:   "create",
		Short: "Schedule a cleanup event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				ev, err := e.CreateEvent(ctx, workflow.EventCreateOptions{
					ChampionID:  viper.GetString("actor-id"),
					Title:       title,
					Description: description,
					Location:    location,
					StartsAt:    startsAt,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	create.Flags().StringVar(&title, "title", "", "event title")
	create.Flags().StringVar(&description, "description", "", "description")
	create.Flags().StringVar(&location, "location", "", "location")
	create.Flags().StringVar(&startsAt, "starts-at", "", "start time (RFC3339)")

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				evs, err := r.ListEvents(ctx, repo.EventFilters{Status: status})
				if err != nil {
					return err
				}
				return printJSONOrTable(evs)
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "status filter")

	var newStatus string
	setStatus := &cobra.Command{
		Use:   "status <event-id>",
		Short: "Set event status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				ev, err := e.SetEventStatus(ctx, workflow.EventStatusOptions{
					EventID: args[0],
					Status:  newStatus,
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	setStatus.Flags().StringVar(&newStatus, "to", "ongoing", "target status")

	join := &cobra.Command{
		Use:   "join <event-id>",
		Short: "Join an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				ev, err := e.JoinEvent(ctx, workflow.EventJoinOptions{
					EventID: args[0],
					UserID:  viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <event-id>",
		Short: "Delete an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				return e.DeleteEvent(ctx, workflow.EventDeleteOptions{
					EventID: args[0],
					ActorID: viper.GetString("actor-id"),
				})
			})
		},
	}

	cmd.AddCommand(create, list, setStatus, join, del)
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Users",
	}
	var name, email, role string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				u, err := e.CreateUser(ctx, workflow.UserCreateOptions{
					Name:  name,
					Email: email,
					Role:  role,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().StringVar(&email, "email", "", "email")
	create.Flags().StringVar(&role, "role", "citizen", "role")

	var roleFilter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				users, err := r.ListUsers(ctx, repo.UserFilters{Role: roleFilter})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&roleFilter, "role", "", "role filter")

	del := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user and their content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e workflow.Engine) error {
				return e.DeleteUser(ctx, workflow.UserDeleteOptions{
					UserID:  args[0],
					ActorID: viper.GetString("actor-id"),
				})
			})
		},
	}

	cmd.AddCommand(create, list, del)
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "API keys",
	}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				raw := uuid.NewString()
				key := domain.APIKey{
					ID:      uuid.NewString(),
					UserID:  viper.GetString("actor-id"),
					Name:    name,
					KeyHash: repo.HashAPIKey(raw),
				}
				if err := r.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				fmt.Printf("api key (save it, it is not stored): %s\n", raw)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "key name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, "")
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(create, list, del)
	return cmd
}

func statsCmd() *cobra.Command {
	var from, to, category string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Dashboard aggregates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				ov, err := stats.New(r.DB).Overview(ctx, stats.Filter{From: from, To: to, Category: category})
				if err != nil {
					return err
				}
				return printJSONOrTable(ov)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "created-at lower bound (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "created-at upper bound (RFC3339)")
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	return cmd
}

func logCmd() *cobra.Command {
	var n int
	var entryType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Tail the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				entries, err := r.LatestAuditEntries(ctx, n, repo.AuditFilters{
					Type:       entryType,
					EntityKind: entityKind,
					EntityID:   entityID,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	cmd.Flags().StringVar(&entryType, "type", "", "entry type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if err := app.SeedRBAC(cmd.Context(), conn, cfg); err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.New(reg)

			e := workflow.New(conn, cfg)
			e.Metrics = m

			secret := os.Getenv("WASTEFLOW_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("WASTEFLOW_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				Engine:      e,
				Stats:       stats.New(conn),
				Guard:       auth.New(e.Repo),
				BasePath:    basePath,
				Auth:        server.AuthConfig{JWTSecret: secret, Logger: logger},
				CORSOrigins: cfg.Server.CORSOrigins,
				Metrics:     m,
				PromReg:     reg,
			})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(e, logger, m)

			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving WasteFlow API",
				zap.String("addr", addr),
				zap.String("base_path", basePath))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, workflow.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	return fn(ctx, workflow.New(conn, cfg))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
