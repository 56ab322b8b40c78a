package sync

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"
	defaultCollabURL    = "https://register-api.xonecloud.com/collaborators/api/v1"
	defaultDeptURL      = "https://register-api.xonecloud.com/departments/api/v1/"
	defaultBatchSize    = 5000
)

// Config aggregates everything a run needs. It is built once at process
// start and never mutated afterwards.
type Config struct {
	Azure  AzureConfig
	Xone   XoneConfig
	Run    RunConfig
	HTTP   HTTPConfig
	Logger LoggerConfig
}

// AzureConfig holds the Entra ID (Azure AD) application credentials.
type AzureConfig struct {
	TenantId     string
	ClientId     string
	ClientSecret string
	TokenURL     string
	GraphBaseURL string
}

// XoneConfig holds the XoneCloud API credential and endpoints.
type XoneConfig struct {
	APIToken        string
	CollaboratorURL string
	DepartmentURL   string
}

// RunConfig selects which collections are synchronized and how.
type RunConfig struct {
	SendDepartments   bool
	DeptDryRun        bool
	DeptPerRecord     bool
	SendCollaborators bool
	CollabDryRun      bool
	CollabPerRecord   bool
	CollabBatchSize   int

	// TestSingleUser, when non-empty, restricts the publish to the one
	// collaborator whose external id or username matches.
	TestSingleUser string

	OnlyEnabled              bool
	ExcludeServiceAccounts   bool
	ExcludeWithoutDepartment bool
}

// HTTPConfig bounds every outbound call.
type HTTPConfig struct {
	TimeoutSeconds   int
	RetryMaxAttempts int
	RetryBaseDelayMs int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying the same
// defaults the operational scripts used. A variable that is set but does not
// parse is a ConfigError: an operator typo must not silently flip a flag.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := &envReader{}
	tenant := os.Getenv("AZ_TENANT_ID")
	cfg := &Config{
		Azure: AzureConfig{
			TenantId:     tenant,
			ClientId:     os.Getenv("AZ_CLIENT_ID"),
			ClientSecret: os.Getenv("AZ_CLIENT_SECRET"),
			TokenURL:     getEnv("AZ_TOKEN_URL", fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenant)),
			GraphBaseURL: getEnv("GRAPH_BASE_URL", defaultGraphBaseURL),
		},
		Xone: XoneConfig{
			APIToken:        os.Getenv("XONE_API_TOKEN"),
			CollaboratorURL: getEnv("XONE_COLLAB_URL", defaultCollabURL),
			DepartmentURL:   getEnv("XONE_DEPT_URL", defaultDeptURL),
		},
		Run: RunConfig{
			SendDepartments:          env.boolVal("SEND_DEPARTMENTS", true),
			DeptDryRun:               env.boolVal("DEPT_DRY_RUN", false),
			DeptPerRecord:            env.boolVal("DEPT_PER_RECORD", false),
			SendCollaborators:        env.boolVal("SEND_COLLABORATORS", true),
			CollabDryRun:             env.boolVal("COLLAB_DRY_RUN", false),
			CollabPerRecord:          env.boolVal("COLLAB_PER_RECORD", false),
			CollabBatchSize:          env.intVal("COLLAB_BATCH_SIZE", defaultBatchSize),
			TestSingleUser:           os.Getenv("TEST_SINGLE_USER"),
			OnlyEnabled:              env.boolVal("ONLY_ENABLED", false),
			ExcludeServiceAccounts:   env.boolVal("EXCLUDE_SERVICE_ACCOUNTS", true),
			ExcludeWithoutDepartment: env.boolVal("EXCLUDE_WITHOUT_DEPARTMENT", true),
		},
		HTTP: HTTPConfig{
			TimeoutSeconds:   env.intVal("HTTP_TIMEOUT_SECONDS", 60),
			RetryMaxAttempts: env.intVal("RETRY_MAX_ATTEMPTS", 3),
			RetryBaseDelayMs: env.intVal("RETRY_BASE_DELAY_MS", 1500),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
	if env.err != nil {
		return nil, env.err
	}
	return cfg, nil
}

// Validate fails fast on missing credentials, before any network call.
func (c *Config) Validate() error {
	if c.Azure.TenantId == "" {
		return &ConfigError{Name: "AZ_TENANT_ID", Reason: "not set"}
	}
	if c.Azure.ClientId == "" {
		return &ConfigError{Name: "AZ_CLIENT_ID", Reason: "not set"}
	}
	if c.Azure.ClientSecret == "" {
		return &ConfigError{Name: "AZ_CLIENT_SECRET", Reason: "not set"}
	}
	if (c.Run.SendDepartments || c.Run.SendCollaborators) && c.Xone.APIToken == "" {
		return &ConfigError{Name: "XONE_API_TOKEN", Reason: "not set"}
	}
	if c.Run.CollabBatchSize < 1 {
		return &ConfigError{Name: "COLLAB_BATCH_SIZE", Reason: "must be at least 1"}
	}
	return nil
}

// Timeout returns the per-request HTTP timeout.
func (h HTTPConfig) Timeout() time.Duration {
	if h.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// Retry returns the bounded backoff policy shared by all outbound calls.
func (h HTTPConfig) Retry() RetryPolicy {
	p := DefaultRetryPolicy()
	if h.RetryMaxAttempts > 0 {
		p.MaxAttempts = uint64(h.RetryMaxAttempts)
	}
	if h.RetryBaseDelayMs > 0 {
		p.BaseDelay = time.Duration(h.RetryBaseDelayMs) * time.Millisecond
	}
	return p
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// envReader parses typed environment variables, keeping the first parse
// failure so Load can fail fast with the offending variable name.
type envReader struct {
	err error
}

func (r *envReader) intVal(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		r.setErr(key, "invalid integer "+strconv.Quote(val))
		return fallback
	}
	return parsed
}

func (r *envReader) boolVal(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		r.setErr(key, "invalid boolean "+strconv.Quote(val))
		return fallback
	}
	return parsed
}

func (r *envReader) setErr(key, reason string) {
	if r.err == nil {
		r.err = &ConfigError{Name: key, Reason: reason}
	}
}
