package workflow

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"wasteflow/internal/domain"
	"wasteflow/internal/events"
)

type UserCreateOptions struct {
	ID    string
	Name  string
	Email string
	Role  string
}

var knownRoles = map[string]bool{
	domain.RoleAdmin: true, domain.RoleWorker: true,
	domain.RoleCitizen: true, domain.RoleChampion: true,
}

// CreateUser registers a user and grants the role's permission set.
func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.User{}, validationf("name is required")
	}
	if strings.TrimSpace(opts.Email) == "" {
		return domain.User{}, validationf("email is required")
	}
	if opts.Role == "" {
		opts.Role = domain.RoleCitizen
	}
	if !knownRoles[opts.Role] {
		return domain.User{}, validationf("unknown role %q", opts.Role)
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	u := domain.User{
		ID:        id,
		Name:      opts.Name,
		Email:     opts.Email,
		Role:      opts.Role,
		CreatedAt: e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.Repo.AssignRole(ctx, tx, u.ID, u.Role); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, "user.create", domain.KindUser, u.ID, u.ID, events.Payload{
		"role": u.Role,
	}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

type UserDeleteOptions struct {
	UserID  string
	ActorID string
}

// DeleteUser removes a user and everything they own. Reports, jobs,
// listings, applications and events the user created go with them; worker
// assignments on other people's entities are detached instead.
func (e Engine) DeleteUser(ctx context.Context, opts UserDeleteOptions) error {
	if opts.UserID == opts.ActorID {
		return validationf("cannot delete your own account")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	u, err := e.Repo.GetUserTx(ctx, tx, opts.UserID)
	if err != nil {
		return err
	}
	counts, err := e.Repo.DeleteUserContent(ctx, tx, u.ID)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteUser(ctx, tx, u.ID); err != nil {
		return err
	}
	payload := events.Payload{"role": u.Role}
	for kind, n := range counts {
		payload["deleted_"+kind] = n
	}
	if err := e.Events.Append(ctx, tx, "user.delete", domain.KindUser, u.ID, opts.ActorID, payload); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.Metrics.Transition(domain.KindUser, "delete")
	return nil
}
