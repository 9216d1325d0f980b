package service

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"conviaq_backend/internal/auth/repository"
	"conviaq_backend/internal/auth/transport"
	"conviaq_backend/platform/apperr"
	"conviaq_backend/platform/logger"
)

type fakeStore struct {
	users   map[int64]repository.User
	byEmail map[string]int64
	tenants map[int64]bool
	touched []int64
}

func (f *fakeStore) GetByEmail(ctx context.Context, email string) (repository.User, error) {
	id, ok := f.byEmail[email]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return f.users[id], nil
}

func (f *fakeStore) GetByID(ctx context.Context, userID int64) (repository.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) TouchLastLogin(ctx context.Context, userID int64) error {
	f.touched = append(f.touched, userID)
	return nil
}

func (f *fakeStore) TenantActive(ctx context.Context, tenantID int64) (bool, error) {
	return f.tenants[tenantID], nil
}

type staticConfig struct{}

func (staticConfig) GetJWTAccessSecret() string        { return "access-secret" }
func (staticConfig) GetJWTRefreshSecret() string       { return "refresh-secret" }
func (staticConfig) GetAccessTokenTTL() time.Duration  { return 15 * time.Minute }
func (staticConfig) GetRefreshTokenTTL() time.Duration { return 24 * time.Hour }

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("correcthorse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	store := &fakeStore{
		users: map[int64]repository.User{
			1: {
				ID: 1, TenantID: 10, Name: "Ana", Email: "ana@example.com",
				PasswordHash: string(hash), Roles: []string{"admin"}, IsActive: true,
			},
		},
		byEmail: map[string]int64{"ana@example.com": 1},
		tenants: map[int64]bool{10: true},
	}
	return New(store, staticConfig{}, logger.New("test")), store
}

func TestLoginIssuesTokenPair(t *testing.T) {
	svc, store := newTestService(t)

	pair, err := svc.Login(context.Background(), transport.LoginRequest{
		Email: "ana@example.com", Password: "correcthorse",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty token pair: %+v", pair)
	}
	if pair.User.ID != 1 || pair.User.TenantID != 10 {
		t.Fatalf("user = %+v", pair.User)
	}
	if len(store.touched) != 1 || store.touched[0] != 1 {
		t.Fatalf("last login not touched: %v", store.touched)
	}
}

func TestLoginRejectsBadPasswordAndUnknownEmailAlike(t *testing.T) {
	svc, _ := newTestService(t)

	_, errBadPass := svc.Login(context.Background(), transport.LoginRequest{
		Email: "ana@example.com", Password: "wrongwrong",
	})
	_, errUnknown := svc.Login(context.Background(), transport.LoginRequest{
		Email: "nobody@example.com", Password: "whatever12",
	})

	if apperr.GetKind(errBadPass) != apperr.KindUnauthorized {
		t.Fatalf("bad password kind = %v", apperr.GetKind(errBadPass))
	}
	if apperr.GetKind(errUnknown) != apperr.KindUnauthorized {
		t.Fatalf("unknown email kind = %v", apperr.GetKind(errUnknown))
	}
	if errBadPass.Error() != errUnknown.Error() {
		t.Fatalf("responses differ: %q vs %q", errBadPass, errUnknown)
	}
}

func TestLoginRejectsSuspendedTenant(t *testing.T) {
	svc, store := newTestService(t)
	store.tenants[10] = false

	_, err := svc.Login(context.Background(), transport.LoginRequest{
		Email: "ana@example.com", Password: "correcthorse",
	})
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("kind = %v, want forbidden, err = %v", apperr.GetKind(err), err)
	}
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	svc, store := newTestService(t)
	u := store.users[1]
	u.IsActive = false
	store.users[1] = u

	_, err := svc.Login(context.Background(), transport.LoginRequest{
		Email: "ana@example.com", Password: "correcthorse",
	})
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("kind = %v, want forbidden, err = %v", apperr.GetKind(err), err)
	}
}

func TestRefreshRotatesPair(t *testing.T) {
	svc, _ := newTestService(t)

	pair, err := svc.Login(context.Background(), transport.LoginRequest{
		Email: "ana@example.com", Password: "correcthorse",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	rotated, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.AccessToken == "" || rotated.RefreshToken == "" {
		t.Fatalf("empty rotated pair: %+v", rotated)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _ := newTestService(t)

	pair, err := svc.Login(context.Background(), transport.LoginRequest{
		Email: "ana@example.com", Password: "correcthorse",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Access tokens carry type=access and are signed with a different secret.
	_, err = svc.Refresh(context.Background(), pair.AccessToken)
	if apperr.GetKind(err) != apperr.KindUnauthorized {
		t.Fatalf("kind = %v, want unauthorized, err = %v", apperr.GetKind(err), err)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Refresh(context.Background(), "not.a.token")
	if apperr.GetKind(err) != apperr.KindUnauthorized {
		t.Fatalf("kind = %v, want unauthorized, err = %v", apperr.GetKind(err), err)
	}
}
