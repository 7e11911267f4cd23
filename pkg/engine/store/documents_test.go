package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"hera-erp/configrules/pkg/rules"
)

const restaurantYAML = `
rules:
  - id: batch-default
    organization_id: org-1
    config_key: auto_journal.batch_threshold
    rule_type: default
    priority: 0
    value: 25
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
`

func TestParseRuleDocuments(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    string
		wantIDs []string
		wantErr string
	}{
		{
			name:    "yaml wrapped",
			file:    "rules.yaml",
			data:    restaurantYAML,
			wantIDs: []string{"batch-default", "batch-restaurant"},
		},
		{
			name: "yaml bare list",
			file: "rules.yml",
			data: `
- id: a
  organization_id: org-1
  config_key: k
  rule_type: default
  value: true
`,
			wantIDs: []string{"a"},
		},
		{
			name: "yaml multiple documents",
			file: "rules.yaml",
			data: `
- {id: a, organization_id: o, config_key: k, rule_type: default, value: 1}
---
rules:
  - {id: b, organization_id: o, config_key: k, rule_type: override, value: 2}
`,
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "empty yaml",
			file:    "rules.yaml",
			data:    "",
			wantIDs: nil,
		},
		{
			name:    "yaml unknown field",
			file:    "rules.yaml",
			data:    "rules:\n  - id: a\n    tenant: org-1\n",
			wantErr: "tenant",
		},
		{
			name:    "yaml scalar document",
			file:    "rules.yaml",
			data:    "just a string\n",
			wantErr: "expected a list of rules",
		},
		{
			name:    "json list",
			file:    "rules.json",
			data:    `[{"id":"a","organization_id":"o","config_key":"k","rule_type":"default","value":1}]`,
			wantIDs: []string{"a"},
		},
		{
			name:    "json wrapped",
			file:    "RULES.JSON",
			data:    `{"rules":[{"id":"a","organization_id":"o","config_key":"k","rule_type":"default","value":1}]}`,
			wantIDs: []string{"a"},
		},
		{
			name:    "json unknown field",
			file:    "rules.json",
			data:    `{"rules":[{"id":"a","colour":"red"}]}`,
			wantErr: "colour",
		},
		{
			name:    "invalid utf8",
			file:    "rules.yaml",
			data:    "\xff\xfe",
			wantErr: "UTF-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := ParseRuleDocuments([]byte(tt.data), tt.file)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var ids []string
			for _, d := range docs {
				ids = append(ids, d.ID)
			}
			if diff := cmp.Diff(tt.wantIDs, ids); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRuleDocuments_ConditionsDecode(t *testing.T) {
	docs, err := ParseRuleDocuments([]byte(restaurantYAML), "rules.yaml")
	if err != nil {
		t.Fatal(err)
	}
	r := rules.FromDocument(docs[1])
	if r.Malformed() {
		t.Fatalf("unexpected malformed conditions: %v", r.ConditionErr)
	}
	leaf, ok := r.Conditions.(*rules.LeafCondition)
	if !ok || leaf.Field != "industry" || !leaf.Value.Equal(rules.String("restaurant")) {
		t.Errorf("unexpected condition tree: %#v", r.Conditions)
	}
}

func TestReadRuleFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadRuleFile(filepath.Join(dir, "missing.yaml"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want LoadError wrapping ErrNotExist", err)
	}

	_, err = ReadRuleFile(dir)
	if !errors.As(err, &loadErr) || loadErr.Message != "not a regular file" {
		t.Errorf("directory error = %v, want not a regular file", err)
	}

	bad := writeFile(t, dir, "bad.yaml", "rules: [unclosed")
	_, err = ReadRuleFile(bad)
	if !errors.As(err, &loadErr) || loadErr.Message != "parse failed" {
		t.Errorf("parse error = %v, want parse failed", err)
	}
}

func TestReadRulePath_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", restaurantYAML)
	writeFile(t, dir, "nested/b.json", `[{"id":"json-rule","organization_id":"org-2","config_key":"k","rule_type":"default","value":1}]`)
	writeFile(t, dir, "broken.yml", "rules: [")
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, ".hidden/c.yaml", restaurantYAML)

	docs, errs, err := ReadRulePath(dir)
	if err != nil {
		t.Fatalf("ReadRulePath() error: %v", err)
	}
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "broken.yml") {
		t.Errorf("file errors = %v, want one for broken.yml", errs)
	}

	var ids []string
	for _, d := range docs {
		ids = append(ids, d.Document.ID)
	}
	if diff := cmp.Diff([]string{"batch-default", "batch-restaurant", "json-rule"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasSuffix(docs[1].Source, "a.yaml#1") {
		t.Errorf("source = %q, want suffix a.yaml#1", docs[1].Source)
	}
}

func TestReadRulePath_Missing(t *testing.T) {
	_, _, err := ReadRulePath(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist", err)
	}
}
