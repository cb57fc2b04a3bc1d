// Package config loads runtime settings from an optional YAML file,
// environment variables, and command-line flags, in that order of
// precedence (later wins).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries every runtime setting for the crawler, workers, and CLI.
type Config struct {
	// Queue selection and backends.
	QueueType    string // file | servicebus | storage
	QueueDir     string // file queue directory
	QueueJournal string // JSONL operation journal path, empty disables

	ServiceBusNamespace        string // FQDN or bare namespace name
	ServiceBusConnectionString string // fallback when no namespace
	ServiceBusQueue            string

	StorageAccount          string
	StorageConnectionString string // fallback when no account; covers Azurite
	StorageQueue            string

	// Relational store selection and backends.
	DBType     string // sqlite | mysql
	DBPath     string // sqlite file path
	DBServer   string // mysql host[:port]
	DBDatabase string
	DBUsername string
	DBPassword string
	DBTLS      bool // require TLS on the mysql connection

	// Embeddings and vector index.
	OpenAIEndpoint      string
	OpenAIKey           string
	EmbeddingDeployment string

	SearchEndpoint string
	SearchKey      string
	SearchIndex    string

	// Loop tuning.
	SchedulerInterval    time.Duration
	DiscoveryConcurrency int
	WorkerCount          int
	StatusAddr           string

	// Worker policy and audit trails.
	NackOnIndexFailure bool
	FetchLogFile       string // JSONL fetch audit log, empty disables
	IndexLogFile       string // JSONL index audit log, empty disables
}

var v *viper.Viper

// Initialize sets up the viper singleton. configFile overrides discovery;
// when empty, SCOUT_CONFIG is consulted. Missing files are only an error
// when explicitly named.
func Initialize(configFile string) error {
	v = viper.New()
	v.SetConfigType("yaml")

	if configFile == "" {
		configFile = os.Getenv("SCOUT_CONFIG")
	}

	// Environment variables override file values. The replacer maps the
	// config key "queue_type" onto the env var QUEUE_TYPE.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("queue_type", "file")
	v.SetDefault("queue_dir", "queue_data")
	v.SetDefault("queue_journal", "")
	v.SetDefault("azure_servicebus_namespace", "")
	v.SetDefault("azure_servicebus_connection_string", "")
	v.SetDefault("azure_service_bus_queue_name", "crawler-jobs")
	v.SetDefault("azure_storage_account_name", "")
	v.SetDefault("azure_storage_connection_string", "")
	v.SetDefault("azure_storage_queue_name", "crawler-jobs")
	v.SetDefault("db_type", "sqlite")
	v.SetDefault("db_path", "schemascout.db")
	v.SetDefault("db_server", "")
	v.SetDefault("db_database", "schemascout")
	v.SetDefault("db_username", "")
	v.SetDefault("db_password", "")
	v.SetDefault("db_tls", false)
	v.SetDefault("azure_openai_endpoint", "")
	v.SetDefault("azure_openai_key", "")
	v.SetDefault("azure_openai_embedding_deployment", "text-embedding-ada-002")
	v.SetDefault("azure_search_endpoint", "")
	v.SetDefault("azure_search_key", "")
	v.SetDefault("azure_search_index_name", "schemascout-index")
	v.SetDefault("scheduler_interval", 60)
	v.SetDefault("discovery_concurrency", 5)
	v.SetDefault("worker_count", 4)
	v.SetDefault("status_addr", ":8080")
	v.SetDefault("index_failure_nack", false)
	v.SetDefault("fetch_log_file", "")
	v.SetDefault("vector_db_log_file", "")
}

// Load materializes a Config from the viper singleton, initializing it
// first if needed.
func Load() (*Config, error) {
	if v == nil {
		if err := Initialize(""); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		QueueType:    v.GetString("queue_type"),
		QueueDir:     v.GetString("queue_dir"),
		QueueJournal: v.GetString("queue_journal"),

		ServiceBusNamespace:        v.GetString("azure_servicebus_namespace"),
		ServiceBusConnectionString: v.GetString("azure_servicebus_connection_string"),
		ServiceBusQueue:            v.GetString("azure_service_bus_queue_name"),

		StorageAccount:          v.GetString("azure_storage_account_name"),
		StorageConnectionString: v.GetString("azure_storage_connection_string"),
		StorageQueue:            v.GetString("azure_storage_queue_name"),

		DBType:     v.GetString("db_type"),
		DBPath:     v.GetString("db_path"),
		DBServer:   v.GetString("db_server"),
		DBDatabase: v.GetString("db_database"),
		DBUsername: v.GetString("db_username"),
		DBPassword: v.GetString("db_password"),
		DBTLS:      v.GetBool("db_tls"),

		OpenAIEndpoint:      v.GetString("azure_openai_endpoint"),
		OpenAIKey:           v.GetString("azure_openai_key"),
		EmbeddingDeployment: v.GetString("azure_openai_embedding_deployment"),

		SearchEndpoint: v.GetString("azure_search_endpoint"),
		SearchKey:      v.GetString("azure_search_key"),
		SearchIndex:    v.GetString("azure_search_index_name"),

		SchedulerInterval:    time.Duration(v.GetInt("scheduler_interval")) * time.Second,
		DiscoveryConcurrency: v.GetInt("discovery_concurrency"),
		WorkerCount:          v.GetInt("worker_count"),
		StatusAddr:           v.GetString("status_addr"),

		NackOnIndexFailure: v.GetBool("index_failure_nack"),
		FetchLogFile:       v.GetString("fetch_log_file"),
		IndexLogFile:       v.GetString("vector_db_log_file"),
	}

	if cfg.SchedulerInterval <= 0 {
		cfg.SchedulerInterval = 60 * time.Second
	}
	if cfg.DiscoveryConcurrency <= 0 {
		cfg.DiscoveryConcurrency = 5
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	return cfg, nil
}

// Set overrides a single key in the singleton. Used by command flags;
// no-op before Initialize.
func Set(key string, value any) {
	if v == nil {
		return
	}
	v.Set(key, value)
}

// GetString returns a string setting, or "" before Initialize.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool returns a boolean setting, or false before Initialize.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt returns an integer setting, or 0 before Initialize.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}
