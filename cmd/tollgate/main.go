// Tollgate is a multi-tenant token bucket rate limiter.
//
// It keeps a registry of named token buckets, serves consume, refill and
// snapshot operations over HTTP, and persists the registry so balances
// survive restarts.
//
// Usage:
//
//	# Start the server with the default configuration file
//	tollgate run
//
//	# Start with a custom configuration file
//	tollgate run --config /etc/tollgate/config.yaml
//
//	# Check a configuration file without starting anything
//	tollgate validate --config config.yaml
//
//	# Inspect persisted snapshots
//	tollgate snapshot list
//	tollgate snapshot export --out registry.json
//
//	# Show version information
//	tollgate version
package main

import (
	"os"

	"mercator-hq/tollgate/pkg/cli"
)

func main() {
	os.Exit(cli.ExitCode(Execute()))
}
