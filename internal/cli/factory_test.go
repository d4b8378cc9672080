package cli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/menuflow/internal/config"
	"github.com/aretw0/menuflow/internal/logging"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/persistence/middleware"
	"github.com/aretw0/menuflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFlow = `
id: test
nodes:
  - id: ask
    type: input
    text: "Name?"
    variable: name
    o_connection: hello
  - id: hello
    type: message
    text: "Hello {{ name }}"
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testFlow), 0o644))

	cfg := config.Default()
	cfg.Flow.Path = path
	cfg.Store.Path = filepath.Join(dir, "sessions")
	return cfg
}

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func TestBuild_MemoryStore(t *testing.T) {
	ctx := context.Background()
	app, err := Build(ctx, testConfig(t), "test", logging.NewNop())
	require.NoError(t, err)
	defer app.Close(ctx)

	var got []string
	out := ports.MessengerFunc(func(_ context.Context, _, text string) error {
		got = append(got, text)
		return nil
	})
	_, err = app.Bot.Handle(ctx, domain.Inbound{UserID: "u", Body: "hi"}, out)
	require.NoError(t, err)
	_, err = app.Bot.Handle(ctx, domain.Inbound{UserID: "u", Body: "Ana"}, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name?", "Hello Ana"}, got)

	families, err := app.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "menuflow_engine_steps_total")
	assert.Contains(t, names, "go_goroutines")
}

func TestBuild_MissingFlow(t *testing.T) {
	cfg := testConfig(t)
	cfg.Flow.Path = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := Build(context.Background(), cfg, "test", logging.NewNop())
	assert.ErrorContains(t, err, "failed to load menu")
}

func TestOpenStore_FileWithEncryption(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store.Driver = config.DriverFile
	cfg.Store.EncryptionKey = testKey()

	b, err := OpenStore(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, b.Store.SaveVariable(ctx, "u", "card", "4111"))

	entries, err := os.ReadDir(cfg.Store.Path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	raw, err := os.ReadFile(filepath.Join(cfg.Store.Path, entries[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "4111")

	v, err := b.Store.LoadVariable(ctx, "u", "card")
	require.NoError(t, err)
	assert.Equal(t, "4111", v)
}

func TestOpenStore_RedisProvidesLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Store.Driver = config.DriverRedis
	cfg.Store.Redis.Addr = mr.Addr()

	ctx := context.Background()
	b, err := OpenStore(ctx, cfg)
	require.NoError(t, err)
	defer b.Close(ctx)

	assert.NotNil(t, b.Locker)
	require.NoError(t, b.Store.SaveSession(ctx, domain.NewSession("u", "ask")))
	assert.True(t, mr.Exists("menuflow:session:u"))
}

func TestOpenStore_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Driver = config.DriverRedis
	cfg.Store.Redis.Addr = "127.0.0.1:1"

	_, err := OpenStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestOpenInspector_MasksPII(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store.Driver = config.DriverFile
	cfg.Store.PIIPatterns = []string{"^name$"}

	b, err := OpenStore(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, b.Store.SaveVariable(ctx, "u", "name", "Ana"))

	masked, err := OpenInspector(ctx, cfg, false)
	require.NoError(t, err)
	v, err := masked.Store.LoadVariable(ctx, "u", "name")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, v)

	revealed, err := OpenInspector(ctx, cfg, true)
	require.NoError(t, err)
	v, err = revealed.Store.LoadVariable(ctx, "u", "name")
	require.NoError(t, err)
	assert.Equal(t, "Ana", v)
}

func TestEngineOptions(t *testing.T) {
	cfg := config.Default()
	assert.Len(t, EngineOptions(cfg, nil), 3)

	cfg.Engine.RateLimit = 5
	assert.Len(t, EngineOptions(cfg, nil), 4)
}

func TestServe_WebhookAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Flow.Watch = true
	cfg.Server.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Build(ctx, cfg, "test", logging.NewNop())
	require.NoError(t, err)
	defer app.Close(context.Background())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg, app, ln, "test", logging.NewNop()) }()

	url := fmt.Sprintf("http://%s/messages", ln.Addr().String())
	resp, err := http.Post(url, "application/json", strings.NewReader(`{"user_id":"u","room_id":"r","body":"hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Messages []struct {
			Text string `json:"text"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "Name?", body.Messages[0].Text)

	metricsResp, err := http.Get(fmt.Sprintf("http://%s/metrics", ln.Addr().String()))
	require.NoError(t, err)
	metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
