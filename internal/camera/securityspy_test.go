package camera

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nerrad567/sunspy/internal/infrastructure/config"
)

type recordedRequest struct {
	path      string
	cameraNum string
	user      string
	password  string
	hasAuth   bool
}

func newTestServer(t *testing.T, status int) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		reqs = append(reqs, recordedRequest{
			path:      r.URL.Path,
			cameraNum: r.URL.Query().Get("cameraNum"),
			user:      user,
			password:  pass,
			hasAuth:   ok,
		})
		w.WriteHeader(status)
		_, _ = w.Write([]byte("<ok/>"))
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestSecuritySpyClient_Apply(t *testing.T) {
	tests := []struct {
		name     string
		action   Action
		wantPath string
	}{
		{"activate", Activate, "/++ssControlActiveMode"},
		{"deactivate", Deactivate, "/++ssControlPassiveMode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, reqs := newTestServer(t, http.StatusOK)
			client := NewSecuritySpyClient(config.SecuritySpyConfig{
				URL: srv.URL + "/", User: "admin", Password: "pw",
			}, nil)

			status, err := client.Apply(context.Background(), 4, tt.action)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if status != StatusOK {
				t.Errorf("status = %d, want 200", status)
			}

			if len(*reqs) != 1 {
				t.Fatalf("server saw %d requests, want 1", len(*reqs))
			}
			got := (*reqs)[0]
			if got.path != tt.wantPath {
				t.Errorf("path = %q, want %q", got.path, tt.wantPath)
			}
			if got.cameraNum != "4" {
				t.Errorf("cameraNum = %q, want 4", got.cameraNum)
			}
			if !got.hasAuth || got.user != "admin" || got.password != "pw" {
				t.Errorf("basic auth = %v %q %q", got.hasAuth, got.user, got.password)
			}
		})
	}
}

func TestSecuritySpyClient_NoAuthWithoutPassword(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK)
	client := NewSecuritySpyClient(config.SecuritySpyConfig{URL: srv.URL, User: "admin"}, nil)

	if _, err := client.Apply(context.Background(), 1, Activate); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if (*reqs)[0].hasAuth {
		t.Error("basic auth sent without a password")
	}
}

func TestSecuritySpyClient_StatusPassthrough(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusUnauthorized)
	client := NewSecuritySpyClient(config.SecuritySpyConfig{URL: srv.URL}, nil)

	status, err := client.Apply(context.Background(), 2, Deactivate)
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
	if !errors.Is(err, ErrExecutionFailed) {
		t.Errorf("Apply() error = %v, want ErrExecutionFailed", err)
	}
}

func TestSecuritySpyClient_InvalidAction(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK)
	client := NewSecuritySpyClient(config.SecuritySpyConfig{URL: srv.URL}, nil)

	if _, err := client.Apply(context.Background(), 1, Action(9)); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("Apply() error = %v, want ErrInvalidAction", err)
	}
	if len(*reqs) != 0 {
		t.Error("invalid action reached the server")
	}
}

func TestSecuritySpyClient_TransportError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK)
	url := srv.URL
	srv.Close()

	client := NewSecuritySpyClient(config.SecuritySpyConfig{URL: url}, nil)
	status, err := client.Apply(context.Background(), 1, Activate)
	if err == nil {
		t.Fatal("Apply() expected transport error")
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
}

func TestSecuritySpyClient_CheckConnection(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		srv, reqs := newTestServer(t, http.StatusOK)
		client := NewSecuritySpyClient(config.SecuritySpyConfig{URL: srv.URL}, nil)
		if err := client.CheckConnection(context.Background()); err != nil {
			t.Fatalf("CheckConnection() error = %v", err)
		}
		if (*reqs)[0].path != "/++systemInfo" {
			t.Errorf("path = %q", (*reqs)[0].path)
		}
	})

	t.Run("forbidden", func(t *testing.T) {
		srv, _ := newTestServer(t, http.StatusForbidden)
		client := NewSecuritySpyClient(config.SecuritySpyConfig{URL: srv.URL}, nil)
		if err := client.CheckConnection(context.Background()); !errors.Is(err, ErrUnreachable) {
			t.Errorf("CheckConnection() error = %v, want ErrUnreachable", err)
		}
	})
}
