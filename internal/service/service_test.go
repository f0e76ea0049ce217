package service

import (
	"context"
	"errors"
	"testing"

	"github.com/akazantsev/boostmart/internal/model"
	"github.com/akazantsev/boostmart/internal/repository"
)

type stubRepo struct {
	users  map[string]*model.User
	nextID int64

	profileSet bool
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: make(map[string]*model.User)}
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(_ context.Context, login string, passwordHash []byte, role model.Role) (int64, error) {
	if _, ok := s.users[login]; ok {
		return 0, repository.ErrUserExists
	}
	s.nextID++
	s.users[login] = &model.User{ID: s.nextID, Login: login, PasswordHash: passwordHash, Role: role}
	return s.nextID, nil
}

func (s *stubRepo) GetUserByLogin(_ context.Context, login string) (*model.User, error) {
	if u, ok := s.users[login]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (s *stubRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *stubRepo) SetBoosterProfile(_ context.Context, _ int64, _ bool, _ int64, _, _, _ int, _ []model.BoosterService) error {
	s.profileSet = true
	return nil
}

func (s *stubRepo) ListOrdersByCustomer(context.Context, int64) ([]model.Order, error) {
	return nil, nil
}

func TestRegisterAndAuthenticate(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo)

	id, err := svc.RegisterUser(context.Background(), "alice", "secret", model.RoleCustomer)
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Fatal("id must be assigned")
	}

	if _, err := svc.RegisterUser(context.Background(), "alice", "other", model.RoleCustomer); !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("err = %v, want ErrUserExists", err)
	}

	u, err := svc.AuthenticateUser(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != id || u.Role != model.RoleCustomer {
		t.Errorf("user = %+v", u)
	}

	if _, err := svc.AuthenticateUser(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.AuthenticateUser(context.Background(), "ghost", "secret"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestPasswordsHashedPerLogin(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo)

	if _, err := svc.RegisterUser(context.Background(), "alice", "secret", model.RoleCustomer); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RegisterUser(context.Background(), "bob", "secret", model.RoleCustomer); err != nil {
		t.Fatal(err)
	}

	aliceHash := repo.users["alice"].PasswordHash
	bobHash := repo.users["bob"].PasswordHash

	if string(aliceHash) == "secret" {
		t.Fatal("password must not be stored in plain text")
	}
	if string(aliceHash) == string(bobHash) {
		t.Error("same password must hash differently for different logins")
	}
}

func TestUpdateBoosterProfile(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo)

	boosterID, _ := svc.RegisterUser(context.Background(), "booster", "secret", model.RoleBooster)
	customerID, _ := svc.RegisterUser(context.Background(), "customer", "secret", model.RoleCustomer)

	services := []model.BoosterService{{FilterID: 7, Commission: 70, RankIDs: []int64{31}}}

	if err := svc.UpdateBoosterProfile(context.Background(), boosterID, true, 60, 3, 1, 1, services); err != nil {
		t.Fatal(err)
	}
	if !repo.profileSet {
		t.Fatal("profile must reach the repository")
	}

	if err := svc.UpdateBoosterProfile(context.Background(), customerID, true, 60, 3, 1, 1, services); err == nil {
		t.Error("customer must not get a booster profile")
	}
}
