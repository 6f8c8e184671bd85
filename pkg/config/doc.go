// Package config loads flowindex configuration.
//
// Values come from defaults, then an optional YAML file, then environment
// variables, in that order of precedence (later wins).
//
// # YAML file
//
// Passed with --config or FLOWINDEX_CONFIG:
//
//	index:
//	  workflows_dir: ./workflows
//	  database_path: ./workflows.db
//	  workers: 8
//	cache:
//	  redis_url: redis://localhost:6379/0
//	  ttl: 10m
//	schedule:
//	  reindex_cron: "*/15 * * * *"
//	  watch: true
//
// # Environment
//
// Index settings:
//
//	FLOWINDEX_WORKFLOWS_DIR="workflows"
//	FLOWINDEX_DATABASE_PATH="workflows.db"
//	FLOWINDEX_EXTENSION=".json"
//	FLOWINDEX_WORKERS="4"
//	FLOWINDEX_PRUNE_MISSING="true"
//
// Server settings:
//
//	FLOWINDEX_HOST="127.0.0.1"
//	FLOWINDEX_PORT="8000"
//	FLOWINDEX_SHUTDOWN_TIMEOUT="30s"
//	FLOWINDEX_REINDEX_RATE_LIMIT="6"
//	FLOWINDEX_ALLOWED_ORIGINS="https://a.example,https://b.example"
//	FLOWINDEX_DOCS="true"
//
// Cache and schedule:
//
//	FLOWINDEX_CACHE_ENABLED="true"
//	FLOWINDEX_CACHE_TTL="5m"
//	FLOWINDEX_REDIS_URL="redis://localhost:6379"
//	FLOWINDEX_REINDEX_CRON="0 * * * *"
//	FLOWINDEX_WATCH="false"
//
// Observability:
//
//	FLOWINDEX_LOG_LEVEL="info"
//	FLOWINDEX_LOG_FORMAT="json"
//	FLOWINDEX_METRICS_ENABLED="true"
//	FLOWINDEX_OTEL_ENABLED="false"
//	FLOWINDEX_OTEL_ENDPOINT="localhost:4317"
package config
