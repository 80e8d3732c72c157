package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wasteflow/internal/config"
	"wasteflow/internal/domain"
	"wasteflow/internal/repo"
	"wasteflow/internal/workflow"
)

// SeedRBAC installs the configured roles and permission grants. Re-running
// it reconciles role_permissions with the config.
func SeedRBAC(ctx context.Context, db *sql.DB, cfg *config.Config) error {
	roles := cfg.RBAC.Roles
	if len(roles) == 0 {
		roles = config.Default().RBAC.Roles
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	r := repo.Repo{DB: db}
	for roleID, role := range roles {
		if err := r.InsertRole(ctx, tx, roleID, role.Description); err != nil {
			return fmt.Errorf("seed role %s: %w", roleID, err)
		}
		if err := r.ClearRolePermissions(ctx, tx, roleID); err != nil {
			return err
		}
		for _, permID := range role.Permissions {
			if err := r.InsertPermission(ctx, tx, permID, ""); err != nil {
				return fmt.Errorf("seed permission %s: %w", permID, err)
			}
			if err := r.AddRolePermission(ctx, tx, roleID, permID); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// EnsureAdmin creates the admin account if no user has it yet.
func EnsureAdmin(ctx context.Context, e workflow.Engine, name, email string) (domain.User, error) {
	existing, err := e.Repo.GetUserByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	return e.CreateUser(ctx, workflow.UserCreateOptions{
		Name:  name,
		Email: email,
		Role:  domain.RoleAdmin,
	})
}
