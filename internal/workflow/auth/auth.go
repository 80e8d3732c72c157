package auth

import (
	"context"
	"fmt"

	"wasteflow/internal/repo"
)

// ForbiddenError means the actor lacks the permission for an operation.
type ForbiddenError struct {
	ActorID    string
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s lacks permission %s", e.ActorID, e.Permission)
}

// Service answers permission questions from the roles tables. Permission
// checks run before any mutation is attempted.
type Service struct {
	Repo repo.Repo
}

func New(r repo.Repo) Service {
	return Service{Repo: r}
}

// Require returns ForbiddenError unless the actor holds the permission
// through one of their roles.
func (s Service) Require(ctx context.Context, actorID, permission string) error {
	if actorID == "" {
		return ForbiddenError{ActorID: actorID, Permission: permission}
	}
	ok, err := s.Repo.UserHasPermission(ctx, actorID, permission)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{ActorID: actorID, Permission: permission}
	}
	return nil
}

// RequireAny passes when the actor holds at least one of the permissions.
func (s Service) RequireAny(ctx context.Context, actorID string, permissions ...string) error {
	for _, p := range permissions {
		ok, err := s.Repo.UserHasPermission(ctx, actorID, p)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	perm := ""
	if len(permissions) > 0 {
		perm = permissions[0]
	}
	return ForbiddenError{ActorID: actorID, Permission: perm}
}

func (s Service) Roles(ctx context.Context, actorID string) ([]string, error) {
	return s.Repo.UserRoles(ctx, actorID)
}

func (s Service) Permissions(ctx context.Context, actorID string) ([]string, error) {
	return s.Repo.UserPermissions(ctx, actorID)
}
