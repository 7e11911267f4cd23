package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"hera-erp/configrules/pkg/cli"
	"hera-erp/configrules/pkg/engine"
	"hera-erp/configrules/pkg/rules"
)

type evaluateOptions struct {
	rulesPath string
	tenant    string
	keys      []string
	context   []string
}

func newEvaluateCmd(global *globalOptions) *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Resolve configuration keys for a tenant",
		Long: `Resolve one or more configuration keys for a tenant and print the
resolved values.

Examples:
  # Evaluate against a rule directory
  hera-config evaluate --rules ./rules --tenant org-1 --key auto_journal.batch_threshold \
      --context industry=restaurant --context covers=120

  # Evaluate several keys against the configured store, as JSON
  hera-config evaluate -c config.yaml -o json --tenant org-1 \
      --key finance.currency --key auto_journal.batch_threshold`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.rulesPath, "rules", "r", "", "rule file or directory (configured store when empty)")
	cmd.Flags().StringVarP(&opts.tenant, "tenant", "t", "", "organization id")
	cmd.Flags().StringSliceVarP(&opts.keys, "key", "k", nil, "config key to resolve (repeatable)")
	cmd.Flags().StringArrayVar(&opts.context, "context", nil, "context field as field=value (repeatable)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func runEvaluate(cmd *cobra.Command, global *globalOptions, opts *evaluateOptions) error {
	out, err := formatter(global)
	if err != nil {
		return err
	}
	evalCtx, err := rules.ParseContextPairs(opts.context)
	if err != nil {
		return cli.NewConfigError("context", err.Error())
	}

	cfg, err := loadConfig(global)
	if err != nil {
		return err
	}
	logger := commandLogger(global, cmd.ErrOrStderr())

	src, err := openRuleSource(cmd.Context(), cfg, opts.rulesPath, logger)
	if err != nil {
		return err
	}
	defer src.close()

	eng, err := engine.NewEngine(engineConfig(&cfg.Engine), src.store, logger)
	if err != nil {
		return err
	}

	queries := make([]engine.Query, len(opts.keys))
	for i, key := range opts.keys {
		queries[i] = engine.Query{ConfigKey: key, Context: evalCtx}
	}
	results, err := eng.EvaluateBatch(cmd.Context(), opts.tenant, queries)
	if err != nil {
		return err
	}

	resolved := make([]*rules.ResolvedConfiguration, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			return fmt.Errorf("evaluate %s: %w", res.ConfigKey, res.Err)
		}
		resolved = append(resolved, res.Result)
	}

	if cli.OutputFormat(global.output) == cli.FormatJSON {
		if len(resolved) == 1 {
			return out.FormatTo(cmd.OutOrStdout(), resolved[0])
		}
		return out.FormatTo(cmd.OutOrStdout(), resolved)
	}
	return out.FormatTo(cmd.OutOrStdout(), resolvedTable(resolved))
}

func resolvedTable(resolved []*rules.ResolvedConfiguration) cli.Table {
	table := cli.Table{Headers: []string{"KEY", "VALUE", "RULE", "REASON", "CANDIDATES"}}
	for _, res := range resolved {
		rule := "-"
		if res.MatchedRuleID != nil {
			rule = *res.MatchedRuleID
		}
		table.Rows = append(table.Rows, []string{
			res.ConfigKey,
			renderValue(res.Value),
			rule,
			string(res.MatchReason),
			strconv.Itoa(res.CandidatesEvaluated),
		})
	}
	return table
}

// renderValue prints scalars as-is and structured values as compact JSON.
func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool, float64, int:
		return fmt.Sprint(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
