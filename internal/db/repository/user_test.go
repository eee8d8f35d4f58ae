package repository

import (
	"errors"
	"testing"

	"github.com/pramothar/farmwith/internal/db"
	"github.com/pramothar/farmwith/internal/models"
)

func newTestRepo(t *testing.T) *UserRepository {
	t.Helper()

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.RunMigrations(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return NewUserRepository(database.DB)
}

func strptr(s string) *string { return &s }

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)

	user := &models.User{
		Email:        "a@x.com",
		PasswordHash: strptr("hash"),
	}
	if err := repo.Create(user); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected generated ID")
	}

	got, err := repo.GetByEmail("A@X.COM")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("ID mismatch: got %q want %q", got.ID, user.ID)
	}
	if got.AuthMethod != models.AuthMethodLocal {
		t.Fatalf("auth method: got %q want %q", got.AuthMethod, models.AuthMethodLocal)
	}
	if !got.HasPassword() {
		t.Fatalf("expected password hash to round-trip")
	}

	byID, err := repo.GetByID(user.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if byID.Email != "a@x.com" {
		t.Fatalf("email mismatch: got %q", byID.Email)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.Create(&models.User{Email: "dup@x.com", PasswordHash: strptr("h")}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	err := repo.Create(&models.User{Email: "DUP@x.com", PasswordHash: strptr("h2")})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	// The existing record must be untouched
	got, err := repo.GetByEmail("dup@x.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if *got.PasswordHash != "h" {
		t.Fatalf("existing record modified by failed insert")
	}
}

func TestGetMissing(t *testing.T) {
	repo := newTestRepo(t)

	if _, err := repo.GetByEmail("nobody@x.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoginTelemetry(t *testing.T) {
	repo := newTestRepo(t)

	user := &models.User{Email: "t@x.com", PasswordHash: strptr("h")}
	if err := repo.Create(user); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := repo.RecordFailedLogin(user.ID); err != nil {
			t.Fatalf("RecordFailedLogin error: %v", err)
		}
		got, err := repo.GetByID(user.ID)
		if err != nil {
			t.Fatalf("GetByID error: %v", err)
		}
		if got.LoginAttempts != i {
			t.Fatalf("attempts after %d failures: got %d", i, got.LoginAttempts)
		}
		if got.LastAttempt == nil {
			t.Fatalf("expected last_attempt to be set")
		}
	}

	if err := repo.RecordSuccessfulLogin(user.ID); err != nil {
		t.Fatalf("RecordSuccessfulLogin error: %v", err)
	}
	got, err := repo.GetByID(user.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.LoginAttempts != 0 {
		t.Fatalf("attempts after success: got %d want 0", got.LoginAttempts)
	}
	if got.LastLogin == nil {
		t.Fatalf("expected last_login to be set")
	}
}

func TestMFAAndPasswordUpdates(t *testing.T) {
	repo := newTestRepo(t)

	user := &models.User{Email: "mfa@x.com", PasswordHash: strptr("h")}
	if err := repo.Create(user); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := repo.SetTOTPSecret(user.ID, "SECRET"); err != nil {
		t.Fatalf("SetTOTPSecret error: %v", err)
	}
	got, _ := repo.GetByID(user.ID)
	if got.TOTPSecret == nil || *got.TOTPSecret != "SECRET" {
		t.Fatalf("TOTP secret not stored")
	}
	if got.MFAEnabled {
		t.Fatalf("storing a secret must not enable MFA")
	}

	if err := repo.EnableMFA(user.ID); err != nil {
		t.Fatalf("EnableMFA error: %v", err)
	}
	got, _ = repo.GetByID(user.ID)
	if !got.MFAEnabled {
		t.Fatalf("expected MFA enabled")
	}

	if err := repo.SetPasswordHash(user.ID, "newhash"); err != nil {
		t.Fatalf("SetPasswordHash error: %v", err)
	}
	got, _ = repo.GetByID(user.ID)
	if *got.PasswordHash != "newhash" {
		t.Fatalf("password hash not overwritten")
	}
}

func TestLinkOIDC(t *testing.T) {
	repo := newTestRepo(t)

	// SSO-provisioned account with no password at all
	user := &models.User{Email: "sso@x.com", AuthMethod: models.AuthMethodOIDC}
	if err := repo.Create(user); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := repo.LinkOIDC(user.ID, "Authentik", "subject-1"); err != nil {
		t.Fatalf("LinkOIDC error: %v", err)
	}

	got, err := repo.GetByID(user.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.HasPassword() {
		t.Fatalf("SSO account should have no password hash")
	}
	if got.OIDCProvider == nil || *got.OIDCProvider != "Authentik" {
		t.Fatalf("provider not linked")
	}
	if got.OIDCSubject == nil || *got.OIDCSubject != "subject-1" {
		t.Fatalf("subject not linked")
	}
	if got.AuthMethod != models.AuthMethodOIDC {
		t.Fatalf("auth method: got %q", got.AuthMethod)
	}
	if got.LastLogin == nil {
		t.Fatalf("expected last_login stamp on linkage")
	}
}

func TestUpdateMissingUser(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.RecordFailedLogin("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
