package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/swarmroll/pkg/deploy"
	"github.com/cuemby/swarmroll/pkg/metrics"
	"github.com/cuemby/swarmroll/pkg/platform/fake"
	"github.com/cuemby/swarmroll/pkg/security"
	"github.com/cuemby/swarmroll/pkg/storage"
	"github.com/cuemby/swarmroll/pkg/types"
	"github.com/cuemby/swarmroll/pkg/updater"
	"github.com/cuemby/swarmroll/pkg/wait"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const testSecret = "s3cr3t"

type testEnv struct {
	server   *httptest.Server
	api      *Server
	store    *storage.BoltStore
	platform *fake.Platform
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	var services []types.PlatformService
	for _, name := range []string{"api", "web"} {
		repo := "registry.local/" + name
		require.NoError(t, store.CreateService(ctx, &types.ServiceRef{Name: name, Repository: repo, Tag: "2"}))
		services = append(services, types.PlatformService{Name: name, Image: repo + ":1"})
	}
	p := fake.New(services...)
	p.AddLocalImages("registry.local/api:1", "registry.local/web:1")
	p.AddRegistryImages("registry.local/api:2", "registry.local/web:2")

	if cfg.Verifier == nil {
		cfg.Verifier, err = security.NewVerifier(testSecret)
		require.NoError(t, err)
	}

	d := deploy.NewDeployer(store, updater.NewUpdater(wait.NewWaiter(time.Second, time.Millisecond)), nil)
	s, err := NewServer(cfg, d, store, p, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, api: s, store: store, platform: p}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) deploy(t *testing.T, body []byte, signature string) *http.Response {
	t.Helper()
	header := http.Header{}
	if signature != "" {
		header.Set(security.SignatureHeader, signature)
	}
	return e.do(t, http.MethodPost, "/deploy", body, header)
}

func sign(t *testing.T, alg string, body []byte) string {
	t.Helper()
	sig, err := security.Sign(testSecret, alg, body)
	require.NoError(t, err)
	return sig
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestDeploySucceeds(t *testing.T) {
	for _, alg := range []string{security.AlgorithmSHA1, security.AlgorithmSHA256} {
		t.Run(alg, func(t *testing.T) {
			env := newTestEnv(t, Config{})
			body := []byte(`{"services":["api","web","ghost"]}`)

			resp := env.deploy(t, body, sign(t, alg, body))
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			got := decode[DeployResponse](t, resp)
			assert.Equal(t, "Successfully updated all services", got.Message)
			assert.Empty(t, got.Error)
			assert.NotEmpty(t, got.RolloutID)
			assert.Equal(t, []deploy.Skipped{{Service: "ghost", Reason: deploy.SkipNotRegistered}}, got.Skipped)
			assert.Len(t, env.platform.Updates(), 2)
		})
	}
}

func TestDeployEmptyBodyUpdatesEveryService(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.deploy(t, nil, sign(t, security.AlgorithmSHA1, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, env.platform.Updates(), 2)
}

func TestDeployRejectsSignature(t *testing.T) {
	body := []byte(`{"services":["api"]}`)

	tests := []struct {
		name      string
		signature string
		wantCode  int
		wantError string
	}{
		{"missing", "", http.StatusForbidden, "Forbidden"},
		{"mismatch", "sha1=0000000000000000000000000000000000000000", http.StatusForbidden, "Forbidden"},
		{"malformed", "garbage", http.StatusForbidden, "Forbidden"},
		{"unsupported algorithm", "md5=d41d8cd98f00b204e9800998ecf8427e", http.StatusNotImplemented, "Not implemented"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{})

			resp := env.deploy(t, body, tt.signature)
			assert.Equal(t, tt.wantCode, resp.StatusCode)

			got := decode[deploy.Payload](t, resp)
			assert.Equal(t, tt.wantError, got.Error)
			assert.NotEmpty(t, got.Message)
			assert.Empty(t, env.platform.Updates())
		})
	}
}

func TestDeployBadBody(t *testing.T) {
	env := newTestEnv(t, Config{})
	body := []byte(`{"services": "api"`)

	resp := env.deploy(t, body, sign(t, security.AlgorithmSHA1, body))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, env.platform.Updates())
}

func TestDeployRolledBack(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.platform.SetTerminalState("web", "registry.local/web:2", types.UpdateStatePaused)
	body := []byte(`{"services":["api","web"]}`)

	resp := env.deploy(t, body, sign(t, security.AlgorithmSHA1, body))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	got := decode[DeployResponse](t, resp)
	assert.Equal(t, "Stack update failed", got.Error)
	assert.Equal(t, "Service web failed to update. Stack reverted", got.Message)
}

func TestDeployListFailure(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.platform.SetListError(assert.AnError)

	resp := env.deploy(t, nil, sign(t, security.AlgorithmSHA1, nil))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestDeployConflict(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.platform.SetStuck("api", "registry.local/api:2")
	env.api.deployer = deploy.NewDeployer(env.store, updater.NewUpdater(wait.NewWaiter(300*time.Millisecond, 5*time.Millisecond)), nil)

	body := []byte(`{"services":["api"]}`)
	sig := sign(t, security.AlgorithmSHA1, body)

	done := make(chan int, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/deploy", bytes.NewReader(body))
		req.Header.Set(security.SignatureHeader, sig)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	require.Eventually(t, func() bool { return len(env.platform.Updates()) > 0 }, time.Second, time.Millisecond)

	resp := env.deploy(t, body, sig)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	select {
	case code := <-done:
		assert.Equal(t, http.StatusInternalServerError, code)
	case <-time.After(5 * time.Second):
		t.Fatal("first deploy did not finish")
	}
}

func TestDeployRateLimited(t *testing.T) {
	env := newTestEnv(t, Config{WebhookRate: rate.Every(time.Hour), WebhookBurst: 1})

	resp := env.deploy(t, nil, sign(t, security.AlgorithmSHA1, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.deploy(t, nil, sign(t, security.AlgorithmSHA1, nil))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestServiceCRUD(t *testing.T) {
	env := newTestEnv(t, Config{})

	// create
	resp := env.do(t, http.MethodPost, "/services", []byte(`{"name":"worker","repository":"registry.local/worker","tag":"1.0"}`), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[types.ServiceRef](t, resp)
	assert.Equal(t, "worker", created.Name)
	assert.False(t, created.CreatedAt.IsZero())

	// duplicate
	resp = env.do(t, http.MethodPost, "/services", []byte(`{"name":"worker","repository":"registry.local/worker","tag":"1.0"}`), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// list
	resp = env.do(t, http.MethodGet, "/services", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]types.ServiceRef](t, resp)
	assert.Len(t, list, 3)

	// get
	resp = env.do(t, http.MethodGet, "/services/worker", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.0", decode[types.ServiceRef](t, resp).Tag)

	// update
	resp = env.do(t, http.MethodPut, "/services/worker", []byte(`{"repository":"registry.local/worker","tag":"1.1"}`), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got, err := env.store.GetService(context.Background(), "worker")
	require.NoError(t, err)
	assert.Equal(t, "1.1", got.Tag)

	// delete
	resp = env.do(t, http.MethodDelete, "/services/worker", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodDelete, "/services/worker", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/services/worker", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServiceValidation(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"missing name", http.MethodPost, "/services", `{"repository":"registry.local/x","tag":"1"}`},
		{"repository with tag", http.MethodPost, "/services", `{"name":"x","repository":"registry.local/x:1","tag":"1"}`},
		{"reserved tag", http.MethodPost, "/services", `{"name":"x","repository":"registry.local/x","tag":"previous"}`},
		{"unknown field", http.MethodPost, "/services", `{"name":"x","repository":"registry.local/x","tag":"1","replicas":3}`},
		{"not json", http.MethodPost, "/services", `name=x`},
		{"name mismatch", http.MethodPut, "/services/api", `{"name":"web","repository":"registry.local/api","tag":"3"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{})
			resp := env.do(t, tt.method, tt.path, []byte(tt.body), nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestUpdateMissingService(t *testing.T) {
	env := newTestEnv(t, Config{})
	resp := env.do(t, http.MethodPut, "/services/ghost", []byte(`{"repository":"registry.local/ghost","tag":"1"}`), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServiceStatus(t *testing.T) {
	env := newTestEnv(t, Config{})
	require.NoError(t, env.store.CreateService(context.Background(), &types.ServiceRef{
		Name: "offline", Repository: "registry.local/offline", Tag: "1",
	}))

	resp := env.do(t, http.MethodGet, "/services/status", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	statuses := decode[[]types.ServiceStatus](t, resp)
	active := map[string]bool{}
	for _, s := range statuses {
		active[s.Name] = s.Active
	}
	assert.Equal(t, map[string]bool{"api": true, "offline": false, "web": true}, active)
}

func TestReady(t *testing.T) {
	env := newTestEnv(t, Config{})
	metrics.UpdateComponent(metrics.ComponentAPI, true, "")

	resp := env.do(t, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env.platform.SetPingError(assert.AnError)
	resp = env.do(t, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	got := decode[metrics.HealthStatus](t, resp)
	assert.Equal(t, "not_ready", got.Status)
	assert.Contains(t, got.Components[metrics.ComponentPlatform], "not ready")
}

func TestOperationalEndpoints(t *testing.T) {
	env := newTestEnv(t, Config{})

	for _, path := range []string{"/live", "/metrics"} {
		resp := env.do(t, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp := env.do(t, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not found", decode[deploy.Payload](t, resp).Error)

	resp = env.do(t, http.MethodPatch, "/deploy", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestNewServerRequiresVerifier(t *testing.T) {
	_, err := NewServer(Config{}, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestServeAndShutdown(t *testing.T) {
	env := newTestEnv(t, Config{Addr: "127.0.0.1:0"})

	errCh := make(chan error, 1)
	go func() { errCh <- env.api.Start() }()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.api.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
