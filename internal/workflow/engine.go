package workflow

import (
	"database/sql"
	"time"

	"wasteflow/internal/config"
	"wasteflow/internal/events"
	"wasteflow/internal/metrics"
	"wasteflow/internal/repo"
)

// Engine runs every entity mutation. Each operation is a single
// transaction: read the row, check the transition, write the new state and
// the audit entry, commit.
type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// checkVersion enforces optimistic concurrency when the caller supplied an
// expected version. Zero means the caller did not care.
func checkVersion(kind string, expected, actual int) error {
	if expected > 0 && expected != actual {
		return conflictf("%s version %d is stale, current is %d", kind, expected, actual)
	}
	return nil
}
