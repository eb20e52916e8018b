package auth

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sbp-ops/sbp-ops/internal/shared"
)

type memUserStore struct {
	users  map[string]*User
	nextID int64
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: map[string]*User{}, nextID: 1}
}

func (m *memUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	user, ok := m.users[email]
	if !ok {
		return nil, shared.NotFoundf("user %s", email)
	}
	clone := *user
	return &clone, nil
}

func (m *memUserStore) Create(_ context.Context, namaLengkap, email, noHP, passwordHash string) (int64, error) {
	if _, exists := m.users[email]; exists {
		return 0, &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	}
	id := m.nextID
	m.nextID++
	m.users[email] = &User{
		ID:           id,
		NamaLengkap:  namaLengkap,
		Email:        email,
		NoHP:         noHP,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	return id, nil
}

func (m *memUserStore) seed(t *testing.T, email, password string, active bool) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	id := m.nextID
	m.nextID++
	m.users[email] = &User{
		ID:           id,
		NamaLengkap:  "Budi Santoso",
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     active,
	}
}

func newTestService(store *memUserStore) *Service {
	tokens := NewTokenManager("test-secret", time.Hour)
	return NewService(store, tokens)
}

func TestLoginSuccess(t *testing.T) {
	store := newMemUserStore()
	store.seed(t, "budi@example.com", "rahasia-123", true)
	svc := newTestService(store)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "budi@example.com", Password: "rahasia-123"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "Budi Santoso", resp.NamaLengkap)
	require.Equal(t, "budi@example.com", resp.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	store := newMemUserStore()
	store.seed(t, "budi@example.com", "rahasia-123", true)
	svc := newTestService(store)

	_, err := svc.Login(context.Background(), LoginRequest{Email: "budi@example.com", Password: "salah"})
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginUnknownEmailHidesExistence(t *testing.T) {
	svc := newTestService(newMemUserStore())

	_, err := svc.Login(context.Background(), LoginRequest{Email: "tidak-ada@example.com", Password: "apapun"})
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginInactiveAccount(t *testing.T) {
	store := newMemUserStore()
	store.seed(t, "nonaktif@example.com", "rahasia-123", false)
	svc := newTestService(store)

	_, err := svc.Login(context.Background(), LoginRequest{Email: "nonaktif@example.com", Password: "rahasia-123"})
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newMemUserStore()
	store.seed(t, "budi@example.com", "rahasia-123", true)
	svc := newTestService(store)

	err := svc.Register(context.Background(), RegisterRequest{
		NamaLengkap: "Budi Lagi",
		Email:       "budi@example.com",
		Password:    "rahasia-456",
	})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokenManager("test-secret", time.Hour)

	signed, err := tokens.Issue(42, "budi@example.com")
	require.NoError(t, err)

	claims, err := tokens.Verify(signed)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.SubjectID())
	require.Equal(t, "budi@example.com", claims.Email)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	signed, err := NewTokenManager("secret-a", time.Hour).Issue(1, "budi@example.com")
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", time.Hour).Verify(signed)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestTokenExpiredRejected(t *testing.T) {
	tokens := NewTokenManager("test-secret", -time.Minute)

	signed, err := tokens.Issue(1, "budi@example.com")
	require.NoError(t, err)

	_, err = tokens.Verify(signed)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
