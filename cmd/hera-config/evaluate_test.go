package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"hera-erp/configrules/pkg/cli"
	"hera-erp/configrules/pkg/rules"
)

func TestEvaluate_Text(t *testing.T) {
	dir := ruleDir(t)

	tests := []struct {
		name    string
		args    []string
		wantIn  []string
		wantOut []string
	}{
		{
			name:   "condition matches",
			args:   []string{"--context", "industry=restaurant"},
			wantIn: []string{"auto_journal.batch_threshold", "50", "batch-restaurant", "condition_matched"},
		},
		{
			name:    "falls back to default",
			args:    []string{"--context", "industry=salon"},
			wantIn:  []string{"10", "batch-default", "default_fallback"},
			wantOut: []string{"batch-restaurant"},
		},
		{
			name:   "no context",
			wantIn: []string{"batch-default", "default_fallback"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"evaluate", "--rules", dir, "--tenant", "org-1", "--key", "auto_journal.batch_threshold"}, tt.args...)
			res := run(t, args...)
			if res.code != cli.ExitOK {
				t.Fatalf("exit = %d, stderr = %s", res.code, res.stderr)
			}
			for _, want := range tt.wantIn {
				if !strings.Contains(res.stdout, want) {
					t.Errorf("output missing %q:\n%s", want, res.stdout)
				}
			}
			for _, unwanted := range tt.wantOut {
				if strings.Contains(res.stdout, unwanted) {
					t.Errorf("output unexpectedly contains %q:\n%s", unwanted, res.stdout)
				}
			}
		})
	}
}

func TestEvaluate_JSON(t *testing.T) {
	dir := ruleDir(t)

	res := run(t, "evaluate", "-o", "json", "--rules", dir, "--tenant", "org-1",
		"--key", "auto_journal.batch_threshold", "--context", "industry=restaurant")
	if res.code != cli.ExitOK {
		t.Fatalf("exit = %d, stderr = %s", res.code, res.stderr)
	}

	var got rules.ResolvedConfiguration
	if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, res.stdout)
	}
	id := "batch-restaurant"
	want := rules.ResolvedConfiguration{
		ConfigKey:           "auto_journal.batch_threshold",
		Value:               float64(50),
		MatchedRuleID:       &id,
		TenantID:            "org-1",
		MatchReason:         rules.MatchReasonCondition,
		CandidatesEvaluated: 2,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resolved mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluate_SeveralKeysAndUnknownKey(t *testing.T) {
	dir := ruleDir(t)

	res := run(t, "evaluate", "-o", "json", "--rules", dir, "--tenant", "org-1",
		"--key", "finance.currency", "--key", "missing.key")
	if res.code != cli.ExitOK {
		t.Fatalf("exit = %d, stderr = %s", res.code, res.stderr)
	}

	var got []rules.ResolvedConfiguration
	if err := json.Unmarshal([]byte(res.stdout), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, res.stdout)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Value != "AED" {
		t.Errorf("finance.currency = %v, want AED", got[0].Value)
	}
	if got[1].Found() || got[1].MatchReason != rules.MatchReasonNoMatch {
		t.Errorf("missing.key = %+v, want no match", got[1])
	}
}

func TestEvaluate_TenantIsolation(t *testing.T) {
	dir := ruleDir(t)

	res := run(t, "evaluate", "--rules", dir, "--tenant", "org-2", "--key", "auto_journal.batch_threshold")
	if res.code != cli.ExitOK {
		t.Fatalf("exit = %d, stderr = %s", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, "no_match") {
		t.Errorf("expected no_match for another tenant's key:\n%s", res.stdout)
	}
}

func TestEvaluate_SkipsInvalidDocuments(t *testing.T) {
	dir := ruleDir(t)
	writeFile(t, dir, "broken.yaml", `rules:
  - id: ""
    organization_id: org-1
    config_key: finance.currency
    rule_type: default
    value: USD
`)

	res := run(t, "evaluate", "--rules", dir, "--tenant", "org-1", "--key", "finance.currency")
	if res.code != cli.ExitOK {
		t.Fatalf("exit = %d, stderr = %s", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, "AED") {
		t.Errorf("expected the valid default to resolve:\n%s", res.stdout)
	}
	if !strings.Contains(res.stderr, "skipping invalid rule") {
		t.Errorf("expected a warning for the invalid document, stderr:\n%s", res.stderr)
	}
}

func TestEvaluate_Errors(t *testing.T) {
	dir := ruleDir(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{
			name:     "missing tenant flag",
			args:     []string{"evaluate", "--rules", dir, "--key", "k"},
			wantCode: cli.ExitFailure,
			wantErr:  "tenant",
		},
		{
			name:     "bad context pair",
			args:     []string{"evaluate", "--rules", dir, "--tenant", "org-1", "--key", "k", "--context", "industry"},
			wantCode: cli.ExitUsage,
			wantErr:  "field=value",
		},
		{
			name:     "blank tenant",
			args:     []string{"evaluate", "--rules", dir, "--tenant", " ", "--key", "k"},
			wantCode: cli.ExitFailure,
			wantErr:  "organization_id",
		},
		{
			name:     "missing rule path",
			args:     []string{"evaluate", "--rules", dir + "/nope", "--tenant", "org-1", "--key", "k"},
			wantCode: cli.ExitFailure,
			wantErr:  "path not found",
		},
		{
			name:     "unknown output format",
			args:     []string{"evaluate", "-o", "xml", "--rules", dir, "--tenant", "org-1", "--key", "k"},
			wantCode: cli.ExitUsage,
			wantErr:  "xml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, tt.args...)
			if res.code != tt.wantCode {
				t.Errorf("exit = %d, want %d (stderr %s)", res.code, tt.wantCode, res.stderr)
			}
			if !strings.Contains(res.stderr, tt.wantErr) {
				t.Errorf("stderr missing %q:\n%s", tt.wantErr, res.stderr)
			}
		})
	}
}
