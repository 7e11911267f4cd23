package main

import (
	"context"
	"fmt"
	"log/slog"

	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/engine"
	"hera-erp/configrules/pkg/engine/store"
	"hera-erp/configrules/pkg/rules"
)

// ruleSource is where one-shot commands read rules from: a rule path given
// on the command line, or the store described by the configuration.
type ruleSource struct {
	store engine.RuleStore
	close func() error
}

// openRuleSource reads rulesPath into memory when it is set. Files that fail
// to load and documents that fail validation are skipped with a warning so
// one broken file does not hide the rest. Without a path the configured
// store is opened; its background maintenance is not started.
func openRuleSource(ctx context.Context, cfg *config.Config, rulesPath string, logger *slog.Logger) (*ruleSource, error) {
	if rulesPath != "" {
		list, err := readRules(rulesPath, logger)
		if err != nil {
			return nil, err
		}
		return &ruleSource{
			store: store.NewMemoryStore(list...),
			close: func() error { return nil },
		}, nil
	}

	stack, err := store.Open(ctx, &cfg.Store, logger, nil)
	if err != nil {
		return nil, fmt.Errorf("open rule store: %w", err)
	}
	return &ruleSource{store: stack.Store, close: stack.Close}, nil
}

func readRules(path string, logger *slog.Logger) ([]rules.ConfigurationRule, error) {
	docs, loadErrs, err := store.ReadRulePath(path)
	if err != nil {
		return nil, err
	}
	for _, loadErr := range loadErrs {
		logger.Warn("skipping rule file", "error", loadErr)
	}

	list := make([]rules.ConfigurationRule, 0, len(docs))
	for _, sd := range docs {
		if problems := rules.ValidateDocument(sd.Document); len(problems) > 0 {
			logger.Warn("skipping invalid rule",
				"source", sd.Source,
				"rule_id", sd.Document.ID,
				"problems", problems,
			)
			continue
		}
		list = append(list, rules.FromDocument(sd.Document))
	}
	return list, nil
}
