package server

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tripdesk/apiserver/config"
	"github.com/tripdesk/apiserver/internal/db"
	"github.com/tripdesk/apiserver/internal/services"
	"github.com/tripdesk/apiserver/internal/store"
	"github.com/tripdesk/apiserver/internal/store/memstore"
	"github.com/tripdesk/apiserver/types"
)

// NotificationStore is read by the API and written by the dispatcher.
type NotificationStore interface {
	services.NotificationRepository
	Create(ctx context.Context, n types.UserNotification) (types.UserNotification, error)
}

// Repositories is the persistence layer selected by the database driver.
type Repositories struct {
	Users         services.UserRepository
	Travelers     services.TravelerRepository
	Destinations  services.DestinationRepository
	TripRequests  services.TripRequestRepository
	Notifications NotificationStore
	Tx            services.TxRunner

	db *sql.DB
}

// OpenRepositories connects the configured driver. The memory driver keeps
// everything in process and is lost on exit.
func OpenRepositories(ctx context.Context, cfg config.Config) (Repositories, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Database.Driver)) {
	case "memory":
		s := memstore.New()
		return Repositories{
			Users:         s.Users(),
			Travelers:     s.Travelers(),
			Destinations:  s.Destinations(),
			TripRequests:  s.TripRequests(),
			Notifications: s.Notifications(),
			Tx:            s,
		}, nil
	case "", "postgres":
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return Repositories{}, fmt.Errorf("open database: %w", err)
		}
		return PostgresRepositories(conn), nil
	default:
		return Repositories{}, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// PostgresRepositories builds the SQL repositories on conn.
func PostgresRepositories(conn *sql.DB) Repositories {
	return Repositories{
		Users:         store.NewUserRepository(conn),
		Travelers:     store.NewTravelerRepository(conn),
		Destinations:  store.NewDestinationRepository(conn),
		TripRequests:  store.NewTripRequestRepository(conn),
		Notifications: store.NewNotificationRepository(conn),
		Tx:            store.NewTxManager(conn),
		db:            conn,
	}
}

// Ping checks the database; the memory driver is always reachable.
func (r Repositories) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

func (r Repositories) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
