// Package cli implements the flowindex command line.
//
//	flowindex index [--force] [--no-prune]
//	flowindex search [query...] [--trigger T] [--complexity C] [--active] [--page N] [--per-page N]
//	flowindex show FILENAME
//	flowindex stats
//	flowindex prune
//	flowindex check [--repair]
//	flowindex serve [--host H] [--port P] [--cron SPEC] [--watch]
//
// Every command accepts --config, --dir, --db, --log-level and --json.
package cli
