package service

import (
	"context"
	"testing"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/config"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/testutil"
)

func setupAuthTest(t *testing.T) (*repository.Repositories, *AuthService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	notifySvc := NewNotificationService(repos.Notification, repos.User, repos.Project, nil)
	cfg := &config.Config{}
	cfg.JWT.Secret = testutil.JWTSecret
	cfg.JWT.AccessTokenExpire = 2 * time.Hour
	cfg.JWT.RefreshTokenExpire = 168 * time.Hour
	cfg.JWT.Issuer = "design-park"
	return repos, NewAuthService(repos.User, notifySvc, nil, cfg)
}

// TestSignupApproveLogin drives the register → approve → login flow.
func TestSignupApproveLogin(t *testing.T) {
	_, svc := setupAuthTest(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, &SignupReq{
		Email:    "Tanaka@Example.com",
		Password: "secret-pass-1",
		Name:     "田中",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if user.Email != "tanaka@example.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}
	if user.IsApproved {
		t.Fatal("expected new user pending approval")
	}

	// 未批准时登录被拒
	if _, _, err := svc.Login(ctx, "tanaka@example.com", "secret-pass-1"); !IsValidationError(err) {
		t.Fatalf("expected validation error for unapproved login, got %v", err)
	}

	if _, err := svc.ApproveUser(ctx, user.ID, "admin-001"); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	logged, pair, err := svc.Login(ctx, "tanaka@example.com", "secret-pass-1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if logged.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, logged.ID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected token pair issued")
	}
}

// TestListPendingUsersPaged verifies pending users are paged and approved
// users drop out of the list.
func TestListPendingUsersPaged(t *testing.T) {
	_, svc := setupAuthTest(t)
	ctx := context.Background()

	emails := []string{"a@test.com", "b@test.com", "c@test.com"}
	ids := make([]string, 0, len(emails))
	for i, email := range emails {
		u, err := svc.Signup(ctx, &SignupReq{
			Email:    email,
			Password: "secret-pass-1",
			Name:     "user" + string(rune('A'+i)),
		})
		if err != nil {
			t.Fatalf("signup %s failed: %v", email, err)
		}
		ids = append(ids, u.ID)
	}

	users, total, err := svc.ListPendingUsers(ctx, 1, 2)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users on page 1, got %d", len(users))
	}

	users, _, err = svc.ListPendingUsers(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list pending page 2 failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user on page 2, got %d", len(users))
	}

	// 批准后退出待审批列表
	if _, err := svc.ApproveUser(ctx, ids[0], "admin-001"); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	_, total, err = svc.ListPendingUsers(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list pending after approve failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected total 2 after approve, got %d", total)
	}
}
