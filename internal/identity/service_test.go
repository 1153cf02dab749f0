package identity

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)

	ctx := context.Background()
	user, err := svc.Register(ctx, Credentials{Username: " alice ", Password: "correct horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("expected trimmed username, got %q", user.Username)
	}
	if string(user.PasswordHash) == "correct horse" {
		t.Fatal("password stored in clear")
	}

	authed, err := svc.Authenticate(ctx, Credentials{Username: "alice", Password: "correct horse"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, authed.ID)
	}

	profile, err := svc.Profile(ctx, user.ID)
	if err != nil || profile.Username != "alice" {
		t.Fatalf("profile: %+v %v", profile, err)
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Username: "bob", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, Credentials{Username: "bob", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for wrong password, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Username: "nobody", Password: "pw"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Username: "", Password: "pw"}); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
	if _, err := svc.Register(ctx, Credentials{Username: "carol", Password: "pw"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, Credentials{Username: "carol", Password: "other"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected duplicate username, got %v", err)
	}
}

func TestUpdateTokenVersion(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{Username: "dave", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := repo.UpdateTokenVersion(ctx, user.ID, 3); err != nil {
		t.Fatalf("update token version: %v", err)
	}
	got, err := repo.FindByID(ctx, user.ID)
	if err != nil || got.TokenVersion != 3 {
		t.Fatalf("expected version 3, got %+v %v", got, err)
	}
	if err := repo.UpdateTokenVersion(ctx, "missing", 1); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
