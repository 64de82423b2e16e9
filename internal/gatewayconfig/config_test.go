package gatewayconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultCacheFanoutK, cfg.CacheResponseFanout)
	// Unset passwords are generated, never left empty.
	assert.Len(t, cfg.Password, 64)
	assert.Len(t, cfg.AdminPassword, 64)
}

func TestLoadFileThenEnvOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"port": 9000,
		"password": "file-user",
		"admin_password": "file-admin",
		"rproxy": "https://mirror.example.com"
	}`), 0o644))

	t.Setenv("CLEWDR_PORT", "9100")
	t.Setenv("CLEWDR_PASSWORD", "env-user")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Env wins over file; file wins over defaults.
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "env-user", cfg.Password)
	assert.Equal(t, "file-admin", cfg.AdminPassword)
	assert.Equal(t, "https://mirror.example.com", cfg.Endpoint())
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestAuthConstantTimeCompare(t *testing.T) {
	cfg := &GatewayConfig{Password: "user-secret", AdminPassword: "admin-secret"}

	assert.True(t, cfg.UserAuth("user-secret"))
	assert.False(t, cfg.UserAuth("admin-secret"))
	assert.False(t, cfg.UserAuth(""))
	assert.False(t, cfg.UserAuth("user-secre"))

	assert.True(t, cfg.AdminAuth("admin-secret"))
	assert.False(t, cfg.AdminAuth("user-secret"))
}

func TestPublishAndCurrentRCU(t *testing.T) {
	old := Current()
	t.Cleanup(func() { Publish(old) })

	next := *old
	next.MaxRetries = 42
	Publish(&next)

	assert.Equal(t, 42, Current().MaxRetries)
	// The previously-read snapshot is unaffected by the swap.
	assert.NotEqual(t, 42, old.MaxRetries)
}

func TestVertexEnabled(t *testing.T) {
	assert.False(t, VertexConfig{}.Enabled())
	assert.True(t, VertexConfig{ProjectID: "proj"}.Enabled())
	assert.True(t, VertexConfig{CredentialJSON: []byte("{}")}.Enabled())
}

func TestCCClientIDFallback(t *testing.T) {
	assert.Equal(t, ClaudeCodeClientID, (&GatewayConfig{}).CCClientID())
	assert.Equal(t, "custom", (&GatewayConfig{ClaudeCodeClientID: "custom"}).CCClientID())
}
