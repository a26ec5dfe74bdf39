package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tripdesk/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// TravelerCreator creates traveler profiles.
type TravelerCreator interface {
	Create(ctx context.Context, t types.Traveler) (types.Traveler, error)
}

// RegisterInput is a self-registration request.
type RegisterInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}

// UserService encapsulates registration and authentication.
type UserService struct {
	users     UserRepository
	travelers TravelerCreator
	tx        TxRunner
	logger    *slog.Logger
	opts      options
}

func NewUserService(users UserRepository, travelers TravelerCreator, tx TxRunner, logger *slog.Logger, opts ...Option) *UserService {
	return &UserService{
		users:     users,
		travelers: travelers,
		tx:        tx,
		logger:    logger,
		opts:      buildOptions(opts),
	}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.users.GetByID(ctx, id)
}

// Register creates a regular user together with its "self" traveler.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	v := &types.ValidationError{}
	types.ValidateName(v, "name", in.Name, true)
	types.ValidateEmail(v, in.Email, true)
	types.ValidatePassword(v, in.Password, in.PasswordConfirmation, true, true)
	if err := v.OrNil(); err != nil {
		return types.User{}, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return types.User{}, err
	}

	var user types.User
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		created, err := s.users.Create(ctx, types.User{
			Name:         strings.TrimSpace(in.Name),
			Email:        types.NormalizeEmail(in.Email),
			PasswordHash: hash,
		})
		if err != nil {
			return emailTaken(err)
		}
		if _, err := s.travelers.Create(ctx, types.Traveler{
			UserID:   created.ID,
			Name:     created.Name,
			IsActive: true,
		}); err != nil {
			return err
		}
		user = created
		return nil
	})
	if err != nil {
		return types.User{}, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Authenticate verifies credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	v := &types.ValidationError{}
	types.ValidateEmail(v, email, true)
	if password == "" {
		v.Add("password", "required", "password is required")
	}
	if err := v.OrNil(); err != nil {
		return types.User{}, err
	}

	user, err := s.users.GetByEmail(ctx, types.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.User{}, types.ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, types.ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	return hashPassword(password, s.opts.hashCost)
}

func hashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
