// Package seed loads the bootstrap administrator and the destination catalog.
// Every step is idempotent so the command can be rerun against a live database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tripdesk/apiserver/internal/services"
	"github.com/tripdesk/apiserver/types"
)

// Account describes a user to create when its email is unknown.
type Account struct {
	Name     string
	Email    string
	Password string
	IsAdmin  bool
}

// DefaultDestinations is the catalog loaded by a fresh install.
var DefaultDestinations = []types.Destination{
	{City: "São Paulo", State: "SP", Country: "Brazil"},
	{City: "Rio de Janeiro", State: "RJ", Country: "Brazil"},
	{City: "New York", State: "NY", Country: "USA"},
	{City: "San Francisco", State: "CA", Country: "USA"},
	{City: "Toronto", State: "ON", Country: "Canada"},
	{City: "London", Country: "United Kingdom"},
	{City: "Paris", Country: "France"},
	{City: "Lisbon", Country: "Portugal"},
	{City: "Tokyo", Country: "Japan"},
	{City: "Buenos Aires", Country: "Argentina"},
}

// Users finds and promotes accounts.
type Users interface {
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// Summary counts what a run created.
type Summary struct {
	Users        int
	Destinations int
}

type Seeder struct {
	registrar    *services.UserService
	users        Users
	destinations *services.DestinationService
	logger       *slog.Logger
}

func New(registrar *services.UserService, users Users, destinations *services.DestinationService, logger *slog.Logger) *Seeder {
	return &Seeder{registrar: registrar, users: users, destinations: destinations, logger: logger}
}

// Run ensures every account exists and, when an administrator is among them,
// loads the destinations missing from the catalog.
func (s *Seeder) Run(ctx context.Context, accounts []Account, catalog []types.Destination) (Summary, error) {
	var sum Summary
	var admin *types.Actor

	for _, a := range accounts {
		u, created, err := s.ensureAccount(ctx, a)
		if err != nil {
			return sum, fmt.Errorf("seed %s: %w", a.Email, err)
		}
		if created {
			sum.Users++
		}
		if u.IsAdmin && admin == nil {
			actor := u.Actor()
			admin = &actor
		}
	}

	if admin == nil || len(catalog) == 0 {
		return sum, nil
	}

	n, err := s.ensureDestinations(ctx, *admin, catalog)
	sum.Destinations = n
	return sum, err
}

func (s *Seeder) ensureAccount(ctx context.Context, a Account) (types.User, bool, error) {
	u, err := s.users.GetByEmail(ctx, types.NormalizeEmail(a.Email))
	created := false
	switch {
	case errors.Is(err, types.ErrNotFound):
		u, err = s.registrar.Register(ctx, services.RegisterInput{
			Name:                 a.Name,
			Email:                a.Email,
			Password:             a.Password,
			PasswordConfirmation: a.Password,
		})
		if err != nil {
			return types.User{}, false, err
		}
		created = true
		s.logger.InfoContext(ctx, "seeded user", "user_id", u.ID, "email", u.Email)
	case err != nil:
		return types.User{}, false, err
	}

	if a.IsAdmin && !u.IsAdmin {
		u.IsAdmin = true
		if u, err = s.users.Update(ctx, u); err != nil {
			return types.User{}, false, err
		}
		s.logger.InfoContext(ctx, "promoted user to admin", "user_id", u.ID)
	}
	return u, created, nil
}

func (s *Seeder) ensureDestinations(ctx context.Context, admin types.Actor, catalog []types.Destination) (int, error) {
	existing, _, err := s.destinations.List(ctx, types.DestinationFilter{Page: types.Page{All: true}})
	if err != nil {
		return 0, err
	}
	known := make(map[string]struct{}, len(existing))
	for _, d := range existing {
		known[d.FullLocation()] = struct{}{}
	}

	created := 0
	for _, d := range catalog {
		if _, ok := known[d.FullLocation()]; ok {
			continue
		}
		state := d.State
		if _, err := s.destinations.Create(ctx, admin, types.DestinationPatch{
			City:    &d.City,
			State:   &state,
			Country: &d.Country,
		}); err != nil {
			return created, fmt.Errorf("seed destination %s: %w", d.FullLocation(), err)
		}
		known[d.FullLocation()] = struct{}{}
		created++
	}
	return created, nil
}
