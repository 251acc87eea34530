package main

import (
	"context"
	"testing"
	"time"

	"github.com/lysyi3m/content-hub/app/cfg"
	"github.com/lysyi3m/content-hub/app/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func TestSetupAuthBootstrapsAdmin(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	appCfg := &cfg.Cfg{
		AdminEmail: "Admin@Example.com",
		AdminPass:  "secret-password",
		SessionTTL: time.Hour,
	}

	authService, err := setupAuth(ctx, db, appCfg)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	session, err := authService.Login(ctx, "admin@example.com", "secret-password")
	if err != nil {
		t.Fatalf("Expected admin login to succeed, got %v", err)
	}

	user, err := authService.Authenticate(ctx, session.ID)
	if err != nil {
		t.Fatalf("Expected session to authenticate, got %v", err)
	}
	if !user.IsAdmin {
		t.Error("Expected bootstrap user to be an admin")
	}

	// A second start with a new password updates the same account
	appCfg.AdminPass = "rotated-password"
	if _, err := setupAuth(ctx, db, appCfg); err != nil {
		t.Fatalf("Expected no error on second bootstrap, got %v", err)
	}
	if _, err := authService.Login(ctx, "admin@example.com", "rotated-password"); err != nil {
		t.Errorf("Expected rotated password to work, got %v", err)
	}
}

func TestSetupAuthWithoutAdmin(t *testing.T) {
	db := newTestDB(t)

	authService, err := setupAuth(context.Background(), db, &cfg.Cfg{SessionTTL: time.Hour})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if authService == nil {
		t.Fatal("Expected auth service")
	}
}

func TestSetupAuthRequiresAdminPassword(t *testing.T) {
	db := newTestDB(t)

	_, err := setupAuth(context.Background(), db, &cfg.Cfg{AdminEmail: "admin@example.com", SessionTTL: time.Hour})
	if err == nil {
		t.Error("Expected error for admin without password")
	}
}
