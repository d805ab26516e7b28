package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvConfig holds environment variables shared by every Invested process.
type EnvConfig struct {
	Env string

	// Mock data provider
	FiMCPServerURL     string
	MCPAuthPhoneNumber string
	MCPFilePath        string
	TestDataDir        string
	MCPCacheTTL        time.Duration

	// LLM
	LLMProvider   string
	LLMModel      string
	LLMTimeout    time.Duration
	LLMDebug      bool
	GeminiAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Auth
	SecretKey                string
	AccessTokenExpireMinutes int

	// Firebase
	FirebaseCredentialsFile string
	FirebaseProjectID       string

	RedisURL string

	// Server ports
	AgentsPort  int
	BackendPort int
	MockPort    int
	GatewayPort int

	CORSOrigins []string

	LogLevel  string
	LogFormat string

	MetricsEnabled   bool
	TracesToStdout   bool
	AgentCatalogFile string
}

const defaultMCPServerURL = "http://localhost:8080"

// LoadEnv loads environment variables
func LoadEnv() (*EnvConfig, error) {
	// Try to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	cfg := &EnvConfig{
		Env:                getEnv("ENV", "development"),
		MCPAuthPhoneNumber: getEnv("MCP_AUTH_PHONE_NUMBER", "8888888888"),
		MCPFilePath:        getEnv("MCP_FILE_PATH", "."),

		LLMProvider:   strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		LLMModel:      getEnv("LLM_MODEL", "gemini-2.5-flash"),
		LLMDebug:      getEnvBool("LLM_DEBUG", false),
		GeminiAPIKey:  firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		SecretKey:                getEnv("SECRET_KEY", "supersecretkey"),
		AccessTokenExpireMinutes: getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60),

		FirebaseCredentialsFile: firstNonEmpty(os.Getenv("FIREBASE_CREDENTIALS_FILE"), os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),

		RedisURL: os.Getenv("REDIS_URL"),

		AgentsPort:  getEnvInt("AGENTS_PORT", 8000),
		BackendPort: getEnvInt("BACKEND_PORT", 8001),
		MockPort:    getEnvInt("PORT", 8080),
		GatewayPort: getEnvInt("GATEWAY_PORT", 9000),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),

		LogLevel:  getEnv("LOG_LEVEL", "INFO"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
		TracesToStdout:   getEnvBool("OTEL_TRACES_STDOUT", false),
		AgentCatalogFile: os.Getenv("AGENT_CATALOG_FILE"),
	}

	// The production deployment must name its data provider explicitly.
	if cfg.IsProduction() {
		cfg.FiMCPServerURL = os.Getenv("FI_MCP_SERVER_URL")
	} else {
		cfg.FiMCPServerURL = getEnv("FI_MCP_SERVER_URL", defaultMCPServerURL)
	}
	cfg.FiMCPServerURL = strings.TrimRight(cfg.FiMCPServerURL, "/")

	cfg.TestDataDir = getEnv("TEST_DATA_DIR", filepath.Join(cfg.MCPFilePath, "test_data_dir"))
	cfg.MCPCacheTTL = time.Duration(getEnvInt("MCP_CACHE_TTL_SECONDS", 300)) * time.Second
	cfg.LLMTimeout = time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 45)) * time.Second

	return cfg, nil
}

// IsProduction reports ENV=production.
func (c *EnvConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AccessTokenTTL is the lifetime of backend login tokens.
func (c *EnvConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// Validate returns an error for configurations that cannot run, and warnings
// for ones that run with features disabled.
func (c *EnvConfig) Validate() (warnings []string, err error) {
	var errs []error
	if c.IsProduction() && c.FiMCPServerURL == "" {
		errs = append(errs, errors.New("FI_MCP_SERVER_URL is required in production"))
	}
	if c.GeminiAPIKey == "" && c.OpenAIAPIKey == "" {
		warnings = append(warnings, "GEMINI_API_KEY not set. Gemini/Agent features will not work.")
	}
	if c.FirebaseCredentialsFile == "" {
		warnings = append(warnings, "Firebase credentials not set. Using in-memory user store and bridge tokens only.")
	}
	if c.SecretKey == "supersecretkey" && c.IsProduction() {
		warnings = append(warnings, "SECRET_KEY is the development default")
	}
	if len(errs) > 0 {
		return warnings, fmt.Errorf("configuration errors: %w", errors.Join(errs...))
	}
	return warnings, nil
}

// Summary returns the effective configuration with secrets reduced to yes/no.
func (c *EnvConfig) Summary() map[string]interface{} {
	return map[string]interface{}{
		"env":                 c.Env,
		"mcp_server":          c.FiMCPServerURL,
		"mcp_auth_phone":      c.MCPAuthPhoneNumber,
		"mcp_file_path":       c.MCPFilePath,
		"llm_provider":        c.LLMProvider,
		"llm_model":           c.LLMModel,
		"gemini_key_set":      c.GeminiAPIKey != "",
		"firebase_configured": c.FirebaseCredentialsFile != "",
		"redis_configured":    c.RedisURL != "",
		"cache_ttl":           c.MCPCacheTTL.String(),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "on", "yes":
		return true
	case "0", "false", "off", "no":
		return false
	default:
		return defaultValue
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// expandEnvVars replaces ${VAR} and $VAR references with environment values.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}
