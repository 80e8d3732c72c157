package config_test

import (
	"testing"

	"wasteflow/internal/config"
)

func TestPointsForFallsBackToLowestTier(t *testing.T) {
	cfg := config.Default()
	if got := cfg.PointsFor("plastic"); got != 30 {
		t.Fatalf("plastic: expected 30, got %d", got)
	}
	// unknown types award the cheapest configured tier
	if got := cfg.PointsFor("unknown_stuff"); got != 15 {
		t.Fatalf("unknown: expected 15, got %d", got)
	}
}

func TestDefaultRoles(t *testing.T) {
	cfg := config.Default()
	admin, ok := cfg.RBAC.Roles["admin"]
	if !ok {
		t.Fatalf("default config must define an admin role")
	}
	adminSet := map[string]bool{}
	for _, p := range admin.Permissions {
		adminSet[p] = true
	}
	for _, p := range []string{"report.review", "job.review", "marketplace.review", "application.review", "user.delete", "stats.read"} {
		if !adminSet[p] {
			t.Fatalf("admin role missing permission %s", p)
		}
	}
	for _, role := range []string{"worker", "citizen", "champion"} {
		r, ok := cfg.RBAC.Roles[role]
		if !ok || len(r.Permissions) == 0 {
			t.Fatalf("default config must define role %s with permissions", role)
		}
	}
}

func TestFromYAMLRejectsNegativePoints(t *testing.T) {
	_, err := config.FromYAML([]byte("points:\n  defaults:\n    plastic: -1\n"))
	if err == nil {
		t.Fatalf("expected validation error for negative points")
	}
}
