// Package service реализует операции над учётными записями пользователей.
package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"

	"github.com/akazantsev/boostmart/internal/model"
	"github.com/akazantsev/boostmart/internal/repository"
)

// ErrInvalidCredentials возвращается при неверной паре логин-пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte, role model.Role) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	SetBoosterProfile(ctx context.Context, userID int64, assignable bool, commission int64, soloLimit, duoLimit, documents int, services []model.BoosterService) error
	ListOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error)
}

// Service содержит операции над пользователями и их заказами.
type Service struct {
	repo Repository
}

// NewService создаёт сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя с указанной ролью.
func (s *Service) RegisterUser(ctx context.Context, login, password string, role model.Role) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed, role)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль и возвращает пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (*model.User, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, err
	}

	hashed := hashPassword(login, password)
	if !hmac.Equal(hashed, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// UpdateBoosterProfile сохраняет настройки бустера: доступность, комиссию
// по умолчанию, лимиты одновременных заказов и покрываемые услуги.
func (s *Service) UpdateBoosterProfile(ctx context.Context, userID int64, assignable bool, commission int64, soloLimit, duoLimit, documents int, services []model.BoosterService) error {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.Role != model.RoleBooster {
		return repository.ErrUserNotFound
	}
	return s.repo.SetBoosterProfile(ctx, userID, assignable, commission, soloLimit, duoLimit, documents, services)
}

// ListOrders возвращает заказы покупателя.
func (s *Service) ListOrders(ctx context.Context, customerID int64) ([]model.Order, error) {
	return s.repo.ListOrdersByCustomer(ctx, customerID)
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}
