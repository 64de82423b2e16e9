// Package gatewayconfig owns the process-wide configuration snapshot: a
// JSON file overlaid with CLEWDR_-prefixed environment variables, published
// through an atomic.Pointer so every request reads a consistent view while
// an admin reload swaps in a new one (read-copy-update).
package gatewayconfig

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"math/big"
	"net"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/Laisky/errors/v2"
	"github.com/joho/godotenv"

	"github.com/Laisky/llm-gateway/common/logger"
)

// Defaults applied when the config file and environment leave a field unset.
const (
	DefaultMaxRetries    = 5
	DefaultPort          = 8484
	DefaultUseRealRoles  = true
	DefaultCheckUpdate   = true
	DefaultSkipRateLimit = true
	DefaultCacheFanoutK  = 1

	// ClaudeEndpoint is the default upstream Claude Web/Code origin.
	ClaudeEndpoint = "https://api.anthropic.com"
	// GeminiEndpoint is the default upstream Gemini origin.
	GeminiEndpoint = "https://generativelanguage.googleapis.com"
	// ClaudeCodeClientID is the default OAuth client id for the Claude Code provider.
	ClaudeCodeClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	// ClaudeCodeTokenURL is the OAuth token endpoint used for exchange and refresh.
	ClaudeCodeTokenURL = "https://console.anthropic.com/v1/oauth/token"
	// ClaudeCodeRedirectURI is the fixed PKCE redirect target.
	ClaudeCodeRedirectURI = "https://console.anthropic.com/oauth/code/callback"
)

// VertexConfig configures the Gemini Vertex AI service-account auth path.
type VertexConfig struct {
	CredentialJSON []byte `json:"credential,omitempty"`
	ProjectID      string `json:"project_id,omitempty"`
	ModelID        string `json:"model_id,omitempty"`
}

// Enabled reports whether Vertex dispatch is configured. An explicit
// service-account credential is optional: with only a project id set, the
// provider falls back to application-default credentials.
func (v VertexConfig) Enabled() bool {
	return v.ProjectID != "" || len(v.CredentialJSON) > 0
}

// GatewayConfig is the full process-wide configuration snapshot: server
// bind settings (not hot-reloadable), app settings, network/auth settings,
// api settings, cookie policy flags, and prompt customization. All but the
// bind address are re-read from the current snapshot on every request.
type GatewayConfig struct {
	Vertex VertexConfig `json:"vertex"`

	IP   string `json:"ip"`
	Port int    `json:"port"`

	CheckUpdate bool `json:"check_update"`
	AutoUpdate  bool `json:"auto_update"`
	LogToFile   bool `json:"log_to_file"`

	Password      string `json:"password"`
	AdminPassword string `json:"admin_password"`
	Proxy         string `json:"proxy,omitempty"`
	Rproxy        string `json:"rproxy,omitempty"`

	MaxRetries    int  `json:"max_retries"`
	PreserveChats bool `json:"preserve_chats"`
	WebSearch     bool `json:"web_search"`

	SkipFirstWarning  bool `json:"skip_first_warning"`
	SkipSecondWarning bool `json:"skip_second_warning"`
	SkipRestricted    bool `json:"skip_restricted"`
	SkipNonPro        bool `json:"skip_non_pro"`
	SkipRateLimit     bool `json:"skip_rate_limit"`
	SkipNormalPro     bool `json:"skip_normal_pro"`

	UseRealRoles bool   `json:"use_real_roles"`
	CustomH      string `json:"custom_h,omitempty"`
	CustomA      string `json:"custom_a,omitempty"`
	CustomPrompt string `json:"custom_prompt,omitempty"`

	// PadTxt is the filler corpus sampled to pad short prompts up to
	// PadTxtLen characters before they are sent to Claude Web; zero
	// PadTxtLen disables padding.
	PadTxt    string `json:"padtxt,omitempty"`
	PadTxtLen int    `json:"padtxt_len,omitempty"`

	ClaudeCodeClientID string `json:"claude_code_client_id,omitempty"`
	CustomSystem       string `json:"custom_system,omitempty"`

	// CacheResponseFanout is K: on a cache miss the preprocessor spawns K-1
	// speculative background invocations to pre-populate the response cache.
	CacheResponseFanout int `json:"cache_response_fanout"`

	// PrometheusEnabled exposes /metrics for scraping.
	PrometheusEnabled bool `json:"prometheus_enabled"`

	// OpenTelemetryEnabled/Endpoint/etc configure the optional OTLP exporters.
	OpenTelemetryEnabled     bool   `json:"otel_enabled"`
	OpenTelemetryEndpoint    string `json:"otel_endpoint,omitempty"`
	OpenTelemetryInsecure    bool   `json:"otel_insecure"`
	OpenTelemetryServiceName string `json:"otel_service_name,omitempty"`
	OpenTelemetryEnvironment string `json:"otel_environment,omitempty"`
}

// Endpoint returns the configured Claude reverse-proxy override, or the default upstream.
func (c *GatewayConfig) Endpoint() string {
	if c.Rproxy != "" {
		return c.Rproxy
	}
	return ClaudeEndpoint
}

// CCClientID returns the configured Claude Code OAuth client id, or the default.
func (c *GatewayConfig) CCClientID() string {
	if c.ClaudeCodeClientID != "" {
		return c.ClaudeCodeClientID
	}
	return ClaudeCodeClientID
}

// UserAuth compares a bearer/X-API-Key credential against the configured
// user password in constant time.
func (c *GatewayConfig) UserAuth(key string) bool {
	return constantTimeEqual(key, c.Password)
}

// AdminAuth compares a bearer credential against the configured admin password.
func (c *GatewayConfig) AdminAuth(key string) bool {
	return constantTimeEqual(key, c.AdminPassword)
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func defaultConfig() *GatewayConfig {
	return &GatewayConfig{
		Port:                DefaultPort,
		CheckUpdate:         DefaultCheckUpdate,
		MaxRetries:          DefaultMaxRetries,
		SkipRateLimit:       DefaultSkipRateLimit,
		UseRealRoles:        DefaultUseRealRoles,
		CacheResponseFanout: DefaultCacheFanoutK,
	}
}

// snapshot holds the process-wide RCU pointer. Writers build a full copy,
// mutate it, and atomically publish it; readers always see a consistent view.
var snapshot atomic.Pointer[GatewayConfig]

// Current returns the active configuration snapshot. Safe for concurrent use.
func Current() *GatewayConfig {
	if c := snapshot.Load(); c != nil {
		return c
	}
	return defaultConfig()
}

// Publish atomically swaps in a new configuration snapshot.
func Publish(c *GatewayConfig) {
	snapshot.Store(c)
}

// Load reads a JSON config file (if present), overlays CLEWDR_-prefixed
// environment variables (loading a local .env first, for development),
// validates the result, and
// publishes it as the current snapshot.
func Load(path string) (*GatewayConfig, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config file %q", path)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "read config file %q", path)
		}
	}

	overlayEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}

	Publish(cfg)
	return cfg, nil
}

func overlayEnv(cfg *GatewayConfig) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv("CLEWDR_" + key); ok {
			*dst = v
		}
	}
	b := func(key string, dst *bool) {
		if v, ok := os.LookupEnv("CLEWDR_" + key); ok {
			*dst = v == "1" || v == "true"
		}
	}
	i := func(key string, dst *int) {
		if v, ok := os.LookupEnv("CLEWDR_" + key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("IP", &cfg.IP)
	i("PORT", &cfg.Port)
	str("PASSWORD", &cfg.Password)
	str("ADMIN_PASSWORD", &cfg.AdminPassword)
	str("PROXY", &cfg.Proxy)
	str("RPROXY", &cfg.Rproxy)
	i("MAX_RETRIES", &cfg.MaxRetries)
	b("PRESERVE_CHATS", &cfg.PreserveChats)
	b("WEB_SEARCH", &cfg.WebSearch)
	b("SKIP_FIRST_WARNING", &cfg.SkipFirstWarning)
	b("SKIP_SECOND_WARNING", &cfg.SkipSecondWarning)
	b("SKIP_RESTRICTED", &cfg.SkipRestricted)
	b("SKIP_NON_PRO", &cfg.SkipNonPro)
	b("SKIP_RATE_LIMIT", &cfg.SkipRateLimit)
	b("SKIP_NORMAL_PRO", &cfg.SkipNormalPro)
	b("USE_REAL_ROLES", &cfg.UseRealRoles)
	str("CUSTOM_H", &cfg.CustomH)
	str("CUSTOM_A", &cfg.CustomA)
	str("CUSTOM_PROMPT", &cfg.CustomPrompt)
	str("PADTXT", &cfg.PadTxt)
	i("PADTXT_LEN", &cfg.PadTxtLen)
	str("CLAUDE_CODE_CLIENT_ID", &cfg.ClaudeCodeClientID)
	str("CUSTOM_SYSTEM", &cfg.CustomSystem)

	if v, ok := os.LookupEnv("CLEWDR_VERTEX_CREDENTIAL"); ok {
		cfg.Vertex.CredentialJSON = []byte(v)
	}
	str("VERTEX_PROJECT_ID", &cfg.Vertex.ProjectID)
	str("VERTEX_MODEL_ID", &cfg.Vertex.ModelID)

	b("PROMETHEUS_ENABLED", &cfg.PrometheusEnabled)

	b("OTEL_ENABLED", &cfg.OpenTelemetryEnabled)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OpenTelemetryEndpoint)
	b("OTEL_INSECURE", &cfg.OpenTelemetryInsecure)
	str("OTEL_SERVICE_NAME", &cfg.OpenTelemetryServiceName)
	str("OTEL_ENVIRONMENT", &cfg.OpenTelemetryEnvironment)
}

// validate fills in generated defaults for unset fields, matching the
// generate-on-first-run behavior so the gateway never starts unprotected.
func validate(cfg *GatewayConfig) error {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.CacheResponseFanout == 0 {
		cfg.CacheResponseFanout = DefaultCacheFanoutK
	}
	if cfg.OpenTelemetryServiceName == "" {
		cfg.OpenTelemetryServiceName = "llm-gateway"
	}

	if cfg.Password == "" {
		pw, err := generatePassword()
		if err != nil {
			return errors.Wrap(err, "generate password")
		}
		cfg.Password = pw
		logger.Logger.Info("generated random API password")
	}
	if cfg.AdminPassword == "" {
		pw, err := generatePassword()
		if err != nil {
			return errors.Wrap(err, "generate admin password")
		}
		cfg.AdminPassword = pw
		logger.Logger.Info("generated random admin password")
	}

	if cfg.Proxy != "" {
		if _, _, err := net.SplitHostPort(cfg.Proxy); err != nil {
			// Not host:port shaped; allow full URLs (http(s)://, socks5://) through
			// unexamined here — providers parse and validate at dial time.
			_ = err
		}
	}

	return nil
}

const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz0123456789"

// generatePassword produces a random 64-character password, excluding
// visually similar characters, matching the upstream generator's shape.
func generatePassword() (string, error) {
	buf := make([]byte, 64)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if err != nil {
			return "", errors.Wrap(err, "read random bytes")
		}
		buf[i] = passwordAlphabet[n.Int64()]
	}
	return string(buf), nil
}
