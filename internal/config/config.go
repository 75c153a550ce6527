package config

import (
	"strings"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Lookup    LookupConfig    `yaml:"lookup"`
	CDB       CDBConfig       `yaml:"cdb"`
	OAI       OAIConfig       `yaml:"oai"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Query     QueryConfig     `yaml:"query"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// LookupConfig holds settings for the institutional directory service.
type LookupConfig struct {
	Root           string        `yaml:"root"             env:"LOOKUP_ROOT"             env-default:"https://lookup.cam.ac.uk/api/v1/"`
	PeopleIDScheme string        `yaml:"people_id_scheme" env:"LOOKUP_PEOPLE_ID_SCHEME" env-default:"crsid"`
	CacheLifetime  time.Duration `yaml:"cache_lifetime"   env:"LOOKUP_CACHE_LIFETIME"   env-default:"30m"`
	RequestTimeout time.Duration `yaml:"request_timeout"  env:"LOOKUP_REQUEST_TIMEOUT"  env-default:"10s"`
	BearerToken    string        `yaml:"bearer_token"     env:"LOOKUP_BEARER_TOKEN"`
}

// CDBConfig holds settings for the content delivery backend management API.
type CDBConfig struct {
	BaseURL        string        `yaml:"base_url"        env:"CDB_BASE_URL"        env-required:"true"`
	ClientID       string        `yaml:"client_id"       env:"CDB_CLIENT_ID"       env-required:"true"`
	ClientSecret   string        `yaml:"client_secret"   env:"CDB_CLIENT_SECRET"   env-required:"true"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"CDB_REQUEST_TIMEOUT" env-default:"30s"`
	MaxRetries     int           `yaml:"max_retries"     env:"CDB_MAX_RETRIES"     env-default:"3"`
	PageSize       int           `yaml:"page_size"       env:"CDB_PAGE_SIZE"       env-default:"500"`

	// SyncItems is the process-wide default for propagating catalogue
	// mutations back to the delivery backend. Reconciliation overrides it
	// per task so cache-driven writes do not echo back upstream.
	SyncItems bool `yaml:"sync_items" env:"CDB_SYNC_ITEMS" env-default:"true"`
}

// OAIConfig holds settings for OAI-PMH harvesting.
type OAIConfig struct {
	HarvestInterval time.Duration `yaml:"harvest_interval" env:"OAI_HARVEST_INTERVAL" env-default:"15m"`
	RunDeadline     time.Duration `yaml:"run_deadline"     env:"OAI_RUN_DEADLINE"     env-default:"10m"`
	RequestTimeout  time.Duration `yaml:"request_timeout"  env:"OAI_REQUEST_TIMEOUT"  env-default:"60s"`

	// TrackTypesRaw is a comma-separated allow-list of mediapackage track
	// types which become media items.
	TrackTypesRaw string `yaml:"track_types" env:"OAI_TRACK_TYPES" env-default:"presentation/delivery"`

	// TrackTypes is parsed from TrackTypesRaw during validation.
	TrackTypes []string `yaml:"-" env:"-"`
}

// ReconcileConfig holds settings for the delivery backend reconciler.
type ReconcileConfig struct {
	Interval    time.Duration `yaml:"interval"     env:"RECONCILE_INTERVAL"     env-default:"10m"`
	RunDeadline time.Duration `yaml:"run_deadline" env:"RECONCILE_RUN_DEADLINE" env-default:"10m"`
}

// QueryConfig holds settings for listing queries.
type QueryConfig struct {
	PageSize    int `yaml:"page_size"     env:"QUERY_PAGE_SIZE"     env-default:"50"`
	MaxPageSize int `yaml:"max_page_size" env:"QUERY_MAX_PAGE_SIZE" env-default:"200"`
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
