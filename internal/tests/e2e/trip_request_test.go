//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/tripdesk/apiserver/config"
	"github.com/tripdesk/apiserver/internal/db"
	"github.com/tripdesk/apiserver/internal/logging"
	"github.com/tripdesk/apiserver/internal/server"
)

const (
	serverPort = 18080
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("tripdesk"),
		tcpostgres.WithUsername("tripdesk"),
		tcpostgres.WithPassword("tripdesk"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
		os.Exit(1)
	}
	teardown := func() { _ = testcontainers.TerminateContainer(container) }

	if err := configureDatabase(ctx, container); err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure database: %v\n", err)
		teardown()
		os.Exit(1)
	}

	cfg := config.LoadConfig()
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")
	if err := db.MigrateUp(migrationsURL, db.PostgresURL(cfg.Database)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		teardown()
		os.Exit(1)
	}

	srv, err := startServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		teardown()
		os.Exit(1)
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		teardown()
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	teardown()
	os.Exit(code)
}

func TestTripRequestLifecycle(t *testing.T) {
	suffix := time.Now().UnixNano()
	adminEmail := fmt.Sprintf("admin_%d@example.com", suffix)
	userEmail := fmt.Sprintf("user_%d@example.com", suffix)

	if _, err := registerUser(t, "Admin", adminEmail); err != nil {
		t.Fatalf("register admin: %v", err)
	}
	if err := promoteUserToAdmin(adminEmail); err != nil {
		t.Fatalf("promote user: %v", err)
	}
	adminToken, err := login(t, adminEmail)
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}
	userToken, err := registerUser(t, "Ana", userEmail)
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	var dest idResponse
	if err := call(t, http.MethodPost, "/destinations", adminToken, map[string]any{
		"city": "Lisbon", "country": "Portugal",
	}, http.StatusCreated, &dest); err != nil {
		t.Fatalf("create destination: %v", err)
	}

	departure := time.Now().Add(48 * time.Hour).UTC()
	var trip tripResponse
	if err := call(t, http.MethodPost, "/trip-requests", userToken, map[string]any{
		"destination_id":     dest.ID,
		"departure_datetime": departure.Format(time.RFC3339),
		"return_datetime":    departure.Add(72 * time.Hour).Format(time.RFC3339),
		"description":        "conference",
	}, http.StatusCreated, &trip); err != nil {
		t.Fatalf("create trip request: %v", err)
	}
	if trip.Status != "requested" {
		t.Fatalf("unexpected status: %q", trip.Status)
	}

	if err := call(t, http.MethodPatch, fmt.Sprintf("/trip-requests/%d/status", trip.ID), userToken,
		map[string]any{"status": "approved"}, http.StatusForbidden, nil); err != nil {
		t.Fatalf("user status change: %v", err)
	}

	var approved tripResponse
	if err := call(t, http.MethodPatch, fmt.Sprintf("/trip-requests/%d/status", trip.ID), adminToken,
		map[string]any{"status": "approved"}, http.StatusOK, &approved); err != nil {
		t.Fatalf("approve trip request: %v", err)
	}
	if approved.Status != "approved" {
		t.Fatalf("unexpected status after approval: %q", approved.Status)
	}

	if err := call(t, http.MethodDelete, fmt.Sprintf("/trip-requests/%d", trip.ID), userToken,
		nil, http.StatusUnprocessableEntity, nil); err != nil {
		t.Fatalf("cancel approved trip request: %v", err)
	}

	if err := call(t, http.MethodDelete, fmt.Sprintf("/destinations/%d", dest.ID), adminToken,
		nil, http.StatusUnprocessableEntity, nil); err != nil {
		t.Fatalf("delete referenced destination: %v", err)
	}

	if err := waitForNotification(t, userToken); err != nil {
		t.Fatalf("notification: %v", err)
	}
}

type idResponse struct {
	ID int `json:"id"`
}

type tripResponse struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
}

type notificationList struct {
	Items []struct {
		Message string `json:"message"`
	} `json:"items"`
	Total int `json:"total"`
}

const password = "testpass123!"

func registerUser(t *testing.T, name, email string) (string, error) {
	t.Helper()

	var parsed authResponse
	err := call(t, http.MethodPost, "/register", "", map[string]string{
		"name":                  name,
		"email":                 email,
		"password":              password,
		"password_confirmation": password,
	}, http.StatusCreated, &parsed)
	if err != nil {
		return "", err
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("missing token in register response")
	}
	return parsed.AccessToken, nil
}

func login(t *testing.T, email string) (string, error) {
	t.Helper()

	var parsed authResponse
	err := call(t, http.MethodPost, "/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK, &parsed)
	return parsed.AccessToken, err
}

func promoteUserToAdmin(email string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := config.LoadConfig()
	conn, err := db.OpenURL(ctx, db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, "UPDATE users SET is_admin = TRUE, updated_at = NOW() WHERE email = $1", email)
	return err
}

func waitForNotification(t *testing.T, token string) error {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		var list notificationList
		if err := call(t, http.MethodGet, "/notifications", token, nil, http.StatusOK, &list); err != nil {
			return err
		}
		if list.Total > 0 {
			want := "Your trip request to Lisbon, Portugal has been approved."
			if got := list.Items[0].Message; got != want {
				return fmt.Errorf("unexpected notification %q", got)
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("no notification delivered")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// call sends body as JSON and decodes the response into out when it is set.
func call(t *testing.T, method, path, token string, body any, wantStatus int, out any) error {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func configureDatabase(ctx context.Context, container *tcpostgres.PostgresContainer) error {
	host, err := container.Host(ctx)
	if err != nil {
		return err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return err
	}

	_ = os.Setenv("DB_DRIVER", "postgres")
	_ = os.Setenv("DB_HOST", host)
	_ = os.Setenv("DB_PORT", port.Port())
	_ = os.Setenv("DB_USER", "tripdesk")
	_ = os.Setenv("DB_PASSWORD", "tripdesk")
	_ = os.Setenv("DB_NAME", "tripdesk")
	_ = os.Setenv("DB_USE_SSL", "false")
	return nil
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func startServer(cfg config.Config) (*server.Server, error) {
	cfg.ServerPort = serverPort
	cfg.Auth.JWTSecret = "test-secret"
	cfg.MQ.Backend = "memory"
	cfg.Redis.URL = ""

	srv, err := server.New(context.Background(), cfg, logging.Discard())
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
