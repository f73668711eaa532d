package swarm

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/swarmroll/pkg/platform"
	"github.com/cuemby/swarmroll/pkg/types"
	dockerswarm "github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiVersion = "1.45"

func newTestSwarm(t *testing.T, handler http.HandlerFunc) *Swarm {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cli, err := client.NewClientWithOpts(
		client.WithHost("tcp://"+server.Listener.Addr().String()),
		client.WithVersion(apiVersion),
	)
	require.NoError(t, err)

	return NewWithClient(cli)
}

func apiService(id, name, image string) dockerswarm.Service {
	svc := dockerswarm.Service{ID: id}
	svc.Version = dockerswarm.Version{Index: 7}
	svc.UpdatedAt = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	svc.Spec.Name = name
	svc.Spec.TaskTemplate.ContainerSpec = &dockerswarm.ContainerSpec{Image: image}
	svc.Spec.TaskTemplate.ForceUpdate = 2
	return svc
}

func TestListServices(t *testing.T) {
	started := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)

	s := newTestSwarm(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v"+apiVersion+"/services", r.URL.Path)

		api := apiService("id-api", "api", "registry.local/api:v1")
		api.UpdateStatus = &dockerswarm.UpdateStatus{
			State:     dockerswarm.UpdateStateCompleted,
			StartedAt: &started,
			Message:   "update completed",
		}
		web := apiService("id-web", "web", "registry.local/web:v1")

		_ = json.NewEncoder(w).Encode([]dockerswarm.Service{api, web})
	})

	services, err := s.ListServices(t.Context())
	require.NoError(t, err)
	require.Len(t, services, 2)

	assert.Equal(t, "api", services[0].Name)
	assert.Equal(t, "id-api", services[0].ID)
	assert.Equal(t, "registry.local/api:v1", services[0].Image)
	assert.Equal(t, types.UpdateStateCompleted, services[0].UpdateState)
	assert.True(t, services[0].UpdatedAt.Equal(started), "update start time wins over spec update time")

	assert.Equal(t, "web", services[1].Name)
	assert.Equal(t, types.UpdateStateNone, services[1].UpdateState)
	assert.True(t, services[1].UpdatedAt.Equal(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)))
}

func TestToPlatformServiceConvergenceTime(t *testing.T) {
	specUpdated := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	started := specUpdated.Add(2 * time.Second)

	tests := []struct {
		name     string
		status   *dockerswarm.UpdateStatus
		expected time.Time
	}{
		{"no update status", nil, specUpdated},
		{"update not started yet", &dockerswarm.UpdateStatus{State: dockerswarm.UpdateStateUpdating}, specUpdated},
		{"update started", &dockerswarm.UpdateStatus{State: dockerswarm.UpdateStateUpdating, StartedAt: &started}, started},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := apiService("id-api", "api", "registry.local/api:v2")
			svc.UpdateStatus = tt.status

			ps := toPlatformService(svc)
			assert.True(t, ps.UpdatedAt.Equal(tt.expected), "got %v", ps.UpdatedAt)
		})
	}
}

func TestUpdateServiceForce(t *testing.T) {
	var updated dockerswarm.ServiceSpec
	var version string

	s := newTestSwarm(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/services/api"):
			_ = json.NewEncoder(w).Encode(apiService("id-api", "api", "registry.local/api:v1"))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/services/id-api/update"):
			version = r.URL.Query().Get("version")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&updated))
			_ = json.NewEncoder(w).Encode(dockerswarm.ServiceUpdateResponse{})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	err := s.UpdateService(t.Context(), "api", "registry.local/api:v2", true)
	require.NoError(t, err)

	assert.Equal(t, "7", version)
	require.NotNil(t, updated.TaskTemplate.ContainerSpec)
	assert.Equal(t, "registry.local/api:v2", updated.TaskTemplate.ContainerSpec.Image)
	assert.Equal(t, uint64(3), updated.TaskTemplate.ForceUpdate)
}

func TestGetImageNotFound(t *testing.T) {
	s := newTestSwarm(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"No such image: registry.local/api:v1"}`))
	})

	_, err := s.GetImage(t.Context(), "registry.local/api:v1")
	assert.ErrorIs(t, err, platform.ErrImageNotFound)
}

func TestInspectServiceAPIError(t *testing.T) {
	s := newTestSwarm(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"swarm is not healthy"}`))
	})

	_, err := s.InspectService(t.Context(), "api")
	require.Error(t, err)

	var apiErr *platform.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "inspect service", apiErr.Op)
}
