package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

const orgOneRules = `rules:
  - id: batch-default
    organization_id: org-1
    config_key: auto_journal.batch_threshold
    rule_type: default
    priority: 0
    value: 10
  - id: batch-restaurant
    organization_id: org-1
    config_key: auto_journal.batch_threshold
    rule_type: conditional
    priority: 100
    conditions:
      field: industry
      operator: equals
      value: restaurant
    value: 50
  - id: currency-default
    organization_id: org-1
    config_key: finance.currency
    rule_type: default
    priority: 0
    value: AED
`

const orgTwoRules = `[
  {"id": "other-default", "organization_id": "org-2", "config_key": "other", "rule_type": "default", "priority": 0, "value": 99}
]
`

// writeFile creates name below dir with content and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ruleDir returns a directory holding the org-1 and org-2 rule files.
func ruleDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "org-1.yaml", orgOneRules)
	writeFile(t, dir, "org-2.json", orgTwoRules)
	return dir
}

type result struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}
