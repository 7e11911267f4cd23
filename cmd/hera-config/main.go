// hera-config resolves HERA tenant configuration values from configuration
// rules.
//
// Usage:
//
//	# Serve the HTTP API with the configured rule store
//	hera-config serve --config /etc/hera/config.yaml
//
//	# Resolve one key from a rules file
//	hera-config evaluate --rules rules/ --tenant org-1 --key auto_journal.batch_threshold --context industry=restaurant
//
//	# Check rule files before they ship
//	hera-config lint --rules rules/
//
//	# Load rule files into the SQLite store
//	hera-config rules import --rules rules/ --db data/rules.db
package main

import "os"

func main() {
	os.Exit(Execute(os.Args[1:]))
}
