package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. INTAKE_SERVER_ADDR.
const EnvPrefix = "INTAKE_"

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from a YAML file layered over Default(). An empty path yields
// the defaults plus environment overrides.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(substituteEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// substituteEnv replaces ${NAME} with the environment value, leaving unknown names intact.
func substituteEnv(data string) string {
	return envVarRegex.ReplaceAllStringFunc(data, func(match string) string {
		envVar := match[2 : len(match)-1]
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}

func applyEnvOverrides(cfg *Config) {
	applyEnvOverridesRecursive(reflect.ValueOf(cfg).Elem(), strings.TrimSuffix(EnvPrefix, "_"))
}

func applyEnvOverridesRecursive(v reflect.Value, prefix string) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		tag := fieldType.Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		envKey := prefix + "_" + strings.ToUpper(strings.Split(tag, ",")[0])

		if field.Kind() == reflect.Struct {
			applyEnvOverridesRecursive(field, envKey)
			continue
		}
		if envValue, ok := os.LookupEnv(envKey); ok && envValue != "" {
			setFieldFromEnv(field, envValue)
		}
	}
}

func setFieldFromEnv(field reflect.Value, envValue string) {
	if !field.CanSet() {
		return
	}

	if field.Type() == durationType {
		if d, err := time.ParseDuration(envValue); err == nil {
			field.SetInt(int64(d))
		}
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int64:
		if val, err := strconv.ParseInt(strings.TrimSpace(envValue), 10, 64); err == nil {
			field.SetInt(val)
		}
	case reflect.Float64:
		if val, err := strconv.ParseFloat(strings.TrimSpace(envValue), 64); err == nil {
			field.SetFloat(val)
		}
	case reflect.Bool:
		if val, err := strconv.ParseBool(strings.TrimSpace(envValue)); err == nil {
			field.SetBool(val)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			field.Set(reflect.ValueOf(splitList(envValue)))
		}
	}
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// applyDefaults fills values that depend on other settings.
func applyDefaults(cfg *Config) {
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = ProviderNone
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = DefaultModel(cfg.AI.Provider)
	}
	if cfg.AI.SystemPrompt == "" {
		cfg.AI.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Monday.APIURL == "" {
		cfg.Monday.APIURL = DefaultMondayAPIURL
	}
	if cfg.Monday.ColumnMap == nil {
		cfg.Monday.ColumnMap = DefaultColumnMap()
	}
	for key, column := range DefaultColumnMap() {
		if _, ok := cfg.Monday.ColumnMap[key]; !ok {
			cfg.Monday.ColumnMap[key] = column
		}
	}
	if cfg.Session.Redis.Prefix == "" {
		cfg.Session.Redis.Prefix = "intake:session:"
	}
	if len(cfg.Server.CORSOrigins) == 1 && strings.Contains(cfg.Server.CORSOrigins[0], ",") {
		cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins[0])
	}
}

func validateConfig(cfg *Config) error {
	var errs []error

	if cfg.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if cfg.Server.AuthRateLimit <= 0 {
		errs = append(errs, errors.New("server.auth_rate_limit must be positive"))
	}
	if cfg.Server.AuthRateWindow <= 0 {
		errs = append(errs, errors.New("server.auth_rate_window must be positive"))
	}
	if cfg.Server.MaxMessageChars <= 0 {
		errs = append(errs, errors.New("server.max_message_chars must be positive"))
	}

	switch cfg.Session.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Session.Redis.Addr == "" {
			errs = append(errs, errors.New("session.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("session.backend must be %q or %q, got %q", BackendMemory, BackendRedis, cfg.Session.Backend))
	}
	if cfg.Session.TTL < 0 {
		errs = append(errs, errors.New("session.ttl cannot be negative"))
	}
	if cfg.Session.MaxSessions < 0 {
		errs = append(errs, errors.New("session.max_sessions cannot be negative"))
	}

	switch cfg.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be %q or %q, got %q", BackendMemory, BackendSQLite, cfg.Store.Backend))
	}

	switch cfg.AI.Provider {
	case ProviderNone, ProviderOllama:
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
	default:
		errs = append(errs, fmt.Errorf("ai.provider %q is not supported", cfg.AI.Provider))
	}
	if cfg.AI.MaxTokens < 0 {
		errs = append(errs, errors.New("ai.max_tokens cannot be negative"))
	}
	if cfg.AI.Temperature < 0 || cfg.AI.Temperature > 2 {
		errs = append(errs, errors.New("ai.temperature must be between 0 and 2"))
	}
	if cfg.AI.TokensPerMinute < 0 {
		errs = append(errs, errors.New("ai.tokens_per_minute cannot be negative"))
	}

	if cfg.Auth.TokenSecret == "" {
		errs = append(errs, errors.New("auth.token_secret is required"))
	}
	if cfg.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}

	return errors.Join(errs...)
}
