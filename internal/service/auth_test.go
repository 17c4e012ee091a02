package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rifadigital/rifa-api/internal/domain"
	"github.com/rifadigital/rifa-api/internal/repository"
	"github.com/rifadigital/rifa-api/internal/service"
)

type fakeUserRepo struct {
	byEmail map[string]domain.User
	nextID  uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]domain.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	if _, ok := f.byEmail[user.Email]; ok {
		return domain.User{}, repository.ErrUserEmailExists
	}

	f.nextID++
	user.ID = f.nextID
	f.byEmail[user.Email] = user

	return user, nil
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (domain.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return domain.User{}, repository.ErrUserNotFound
	}

	return user, nil
}

func TestAuthService_Signup(t *testing.T) {
	t.Run("creates the user with a hashed password", func(t *testing.T) {
		repo := newFakeUserRepo()
		svc := service.NewAuthService(repo)

		created, err := svc.Signup(context.Background(), domain.User{
			Email:    "ana@example.com",
			Password: "hunter2abc",
			Name:     "Ana",
			Role:     domain.RoleUser,
		})

		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.NotEqual(t, "hunter2abc", created.Password)

		stored := repo.byEmail["ana@example.com"]
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("hunter2abc")))
	})

	t.Run("rejects a taken email", func(t *testing.T) {
		repo := newFakeUserRepo()
		svc := service.NewAuthService(repo)

		_, err := svc.Signup(context.Background(), domain.User{Email: "ana@example.com", Password: "hunter2abc"})
		require.NoError(t, err)

		_, err = svc.Signup(context.Background(), domain.User{Email: "ana@example.com", Password: "other1234"})

		assert.ErrorIs(t, err, service.ErrUserEmailExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	repo := newFakeUserRepo()
	svc := service.NewAuthService(repo)

	_, err := svc.Signup(context.Background(), domain.User{Email: "ana@example.com", Password: "hunter2abc"})
	require.NoError(t, err)

	t.Run("returns the user on correct credentials", func(t *testing.T) {
		user, err := svc.Login(context.Background(), "ana@example.com", "hunter2abc")

		require.NoError(t, err)
		assert.Equal(t, "ana@example.com", user.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(context.Background(), "ana@example.com", "wrong")

		assert.ErrorIs(t, err, service.ErrWrongPassword)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(context.Background(), "nobody@example.com", "hunter2abc")

		assert.ErrorIs(t, err, service.ErrUserNotFound)
	})
}
