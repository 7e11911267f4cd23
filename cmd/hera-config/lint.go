package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"hera-erp/configrules/pkg/cli"
	"hera-erp/configrules/pkg/engine/store"
	"hera-erp/configrules/pkg/rules"
)

// Finding severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

type lintOptions struct {
	strict bool
}

func newLintCmd(global *globalOptions) *cobra.Command {
	opts := &lintOptions{}
	cmd := &cobra.Command{
		Use:   "lint PATH",
		Short: "Check rule files",
		Long: `Check a rule file, or every rule file below a directory.

Errors make a rule unusable or the selection ambiguous:
  - files that cannot be read or parsed
  - documents missing required fields or with unknown types
  - condition trees that cannot be decoded
  - duplicate rule ids within an organization
  - several active defaults at the same priority for one key

Warnings flag rules that will not behave as the author likely intended:
  - unknown condition operators (the leaf never matches)
  - condition trees deeper than the engine walks
  - keys with no active default
  - shadowed lower priority defaults
  - default rules that carry conditions (ignored)

Exit status is 3 when errors are found, or warnings with --strict.

Examples:
  hera-config lint ./rules
  hera-config lint rules/org-1.yaml --strict -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "treat warnings as errors")
	return cmd
}

// Finding is one lint result.
type Finding struct {
	Severity string `json:"severity"`
	Source   string `json:"source"`
	RuleID   string `json:"rule_id,omitempty"`
	Message  string `json:"message"`
}

// LintReport is the outcome of linting a rule path.
type LintReport struct {
	Path     string    `json:"path"`
	Rules    int       `json:"rules"`
	Errors   int       `json:"errors"`
	Warnings int       `json:"warnings"`
	Findings []Finding `json:"findings"`
}

// TableHeaders implements cli.Tabular.
func (r *LintReport) TableHeaders() []string {
	return []string{"SEVERITY", "SOURCE", "RULE", "MESSAGE"}
}

// TableRows implements cli.Tabular.
func (r *LintReport) TableRows() [][]string {
	rows := make([][]string, len(r.Findings))
	for i, f := range r.Findings {
		rule := f.RuleID
		if rule == "" {
			rule = "-"
		}
		rows[i] = []string{f.Severity, f.Source, rule, f.Message}
	}
	return rows
}

func (r *LintReport) add(severity, source, ruleID, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{
		Severity: severity,
		Source:   source,
		RuleID:   ruleID,
		Message:  fmt.Sprintf(format, args...),
	})
	if severity == SeverityError {
		r.Errors++
	} else {
		r.Warnings++
	}
}

func runLint(cmd *cobra.Command, global *globalOptions, opts *lintOptions, path string) error {
	out, err := formatter(global)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(global)
	if err != nil {
		return err
	}

	report := lintPath(path, cfg.Engine.MaxConditionDepth)

	if cli.OutputFormat(global.output) == cli.FormatText {
		if len(report.Findings) > 0 {
			if err := out.FormatTo(cmd.OutOrStdout(), report); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d rules checked: %d errors, %d warnings\n",
			report.Rules, report.Errors, report.Warnings)
	} else if err := out.FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}

	if report.Errors > 0 || (opts.strict && report.Warnings > 0) {
		return &cli.ExitError{Code: cli.ExitProblems}
	}
	return nil
}

// lintPath checks every rule document under path.
func lintPath(path string, maxDepth int) *LintReport {
	report := &LintReport{Path: path, Findings: []Finding{}}

	docs, loadErrs, err := store.ReadRulePath(path)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	for _, loadErr := range loadErrs {
		source := path
		var le *store.LoadError
		if errors.As(loadErr, &le) {
			source = le.Path
		}
		report.add(SeverityError, source, "", "%v", loadErr)
	}

	type sourcedRule struct {
		source string
		rule   rules.ConfigurationRule
	}
	var decoded []sourcedRule
	seen := make(map[string]string)

	for _, sd := range docs {
		report.Rules++
		if problems := rules.ValidateDocument(sd.Document); len(problems) > 0 {
			for _, problem := range problems {
				report.add(SeverityError, sd.Source, sd.Document.ID, "%s", problem)
			}
			continue
		}

		rule := rules.FromDocument(sd.Document)
		idKey := rule.TenantID + "\x00" + rule.ID
		if first, dup := seen[idKey]; dup {
			report.add(SeverityError, sd.Source, rule.ID, "duplicate rule id for organization %s (first defined at %s)", rule.TenantID, first)
			continue
		}
		seen[idKey] = sd.Source

		lintRule(report, sd.Source, &rule, maxDepth)
		decoded = append(decoded, sourcedRule{source: sd.Source, rule: rule})
	}

	// Default coverage is judged per (tenant, key) over active rules only.
	type group struct {
		source   string
		defaults []sourcedRule
	}
	groups := make(map[string]*group)
	var order []string
	for _, sr := range decoded {
		if !sr.rule.IsActive() {
			continue
		}
		key := sr.rule.TenantID + "\x00" + sr.rule.ConfigKey
		g, ok := groups[key]
		if !ok {
			g = &group{source: sr.source}
			groups[key] = g
			order = append(order, key)
		}
		if sr.rule.IsDefault() {
			g.defaults = append(g.defaults, sr)
		}
	}

	for _, key := range order {
		g := groups[key]
		tenant, configKey, _ := strings.Cut(key, "\x00")
		if len(g.defaults) == 0 {
			report.add(SeverityWarning, g.source, "", "no active default for %s in organization %s", configKey, tenant)
			continue
		}
		if len(g.defaults) == 1 {
			continue
		}

		sort.SliceStable(g.defaults, func(i, j int) bool {
			return g.defaults[i].rule.Priority > g.defaults[j].rule.Priority
		})
		top := g.defaults[0]
		if g.defaults[1].rule.Priority == top.rule.Priority {
			var ids []string
			for _, d := range g.defaults {
				if d.rule.Priority == top.rule.Priority {
					ids = append(ids, d.rule.ID)
				}
			}
			report.add(SeverityError, top.source, top.rule.ID, "ambiguous defaults for %s at priority %d: %s",
				configKey, top.rule.Priority, strings.Join(ids, ", "))
			continue
		}
		for _, d := range g.defaults[1:] {
			report.add(SeverityWarning, d.source, d.rule.ID, "default for %s is shadowed by %s (priority %d > %d)",
				configKey, top.rule.ID, top.rule.Priority, d.rule.Priority)
		}
	}
	return report
}

func lintRule(report *LintReport, source string, rule *rules.ConfigurationRule, maxDepth int) {
	if rule.Malformed() {
		report.add(SeverityError, source, rule.ID, "%v", rule.ConditionErr)
		return
	}
	if rule.Conditions == nil {
		return
	}
	if rule.IsDefault() {
		report.add(SeverityWarning, source, rule.ID, "conditions on a default rule are ignored")
		return
	}
	for _, op := range rules.UnknownOperators(rule.Conditions) {
		report.add(SeverityWarning, source, rule.ID, "unknown operator %q never matches", op)
	}
	if depth := rules.Depth(rule.Conditions); maxDepth > 0 && depth > maxDepth {
		report.add(SeverityWarning, source, rule.ID, "condition depth %d exceeds the limit of %d; the rule never matches", depth, maxDepth)
	}
}
