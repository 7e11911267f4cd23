package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"hera-erp/configrules/pkg/cli"
	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/engine"
	"hera-erp/configrules/pkg/engine/store"
	"hera-erp/configrules/pkg/rules"
)

func newRulesCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and manage configuration rules",
	}
	cmd.AddCommand(
		newRulesListCmd(global),
		newRulesImportCmd(global),
		newRulesDeleteCmd(global),
	)
	return cmd
}

type rulesListOptions struct {
	rulesPath string
	tenant    string
	key       string
}

func newRulesListCmd(global *globalOptions) *cobra.Command {
	opts := &rulesListOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the active rules of a tenant",
		Long: `List the active rules of a tenant, highest priority first within each key.

Examples:
  hera-config rules list --rules ./rules --tenant org-1
  hera-config rules list -c config.yaml --tenant org-1 --key finance.currency -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesList(cmd, global, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.rulesPath, "rules", "r", "", "rule file or directory (configured store when empty)")
	cmd.Flags().StringVarP(&opts.tenant, "tenant", "t", "", "organization id")
	cmd.Flags().StringVarP(&opts.key, "key", "k", "", "only rules for this config key")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func runRulesList(cmd *cobra.Command, global *globalOptions, opts *rulesListOptions) error {
	out, err := formatter(global)
	if err != nil {
		return err
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
	list, err := eng.ListRules(cmd.Context(), opts.tenant, opts.key)
	if err != nil {
		return err
	}
	sortForListing(list)

	if cli.OutputFormat(global.output) == cli.FormatJSON {
		return out.FormatTo(cmd.OutOrStdout(), list)
	}
	return out.FormatTo(cmd.OutOrStdout(), rulesTable(list))
}

// sortForListing groups rules by key, then orders them the way the selector
// considers them.
func sortForListing(list []rules.ConfigurationRule) {
	engine.SortRulesByPriority(list)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].ConfigKey < list[j].ConfigKey
	})
}

func rulesTable(list []rules.ConfigurationRule) cli.Table {
	table := cli.Table{Headers: []string{"ID", "KEY", "TYPE", "PRIORITY", "CONDITIONS", "VALUE"}}
	for i := range list {
		rule := &list[i]
		conditions := "-"
		switch {
		case rule.Malformed():
			conditions = "malformed"
		case rule.Conditions != nil:
			conditions = "yes"
		}
		table.Rows = append(table.Rows, []string{
			rule.ID,
			rule.ConfigKey,
			string(rule.RuleType),
			strconv.Itoa(rule.Priority),
			conditions,
			renderValue(rule.Value),
		})
	}
	return table
}

type rulesImportOptions struct {
	dbPath string
}

func newRulesImportCmd(global *globalOptions) *cobra.Command {
	opts := &rulesImportOptions{}
	cmd := &cobra.Command{
		Use:   "import PATH",
		Short: "Import rule files into a SQLite rule store",
		Long: `Import a rule file, or every rule file below a directory, into a SQLite
rule store. Rules are upserted by (organization_id, id).

Each file is imported in its own transaction. Import stops at the first file
that fails; files imported before it stay imported. Nothing is written when
any file cannot be read or parsed.

Examples:
  hera-config rules import ./rules --db data/rules.db
  hera-config rules import ./rules -c config.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesImport(cmd, global, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite database path (store.sqlite.path when empty)")
	return cmd
}

func runRulesImport(cmd *cobra.Command, global *globalOptions, opts *rulesImportOptions, path string) error {
	docs, loadErrs, err := store.ReadRulePath(path)
	if err != nil {
		return err
	}
	if len(loadErrs) > 0 {
		return fmt.Errorf("%d rule files failed to load: %w", len(loadErrs), errors.Join(loadErrs...))
	}

	files, byFile := groupBySourceFile(docs)
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No rules found")
		return nil
	}

	db, err := openSQLite(cmd, global, opts.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "import")
	progress.Start(int64(len(files)))

	imported := 0
	for i, file := range files {
		n, err := db.Import(cmd.Context(), byFile[file])
		if err != nil {
			progress.Error(err)
			return fmt.Errorf("import %s: %w", file, err)
		}
		imported += n
		progress.Update(int64(i + 1))
	}
	progress.Finish()

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rules from %d files\n", imported, len(files))
	return nil
}

// groupBySourceFile splits documents by the file they were read from,
// keeping file order.
func groupBySourceFile(docs []store.SourcedDocument) ([]string, map[string][]rules.RuleDocument) {
	var files []string
	byFile := make(map[string][]rules.RuleDocument)
	for _, sd := range docs {
		file := sd.Source
		if i := strings.LastIndex(file, "#"); i >= 0 {
			file = file[:i]
		}
		if _, ok := byFile[file]; !ok {
			files = append(files, file)
		}
		byFile[file] = append(byFile[file], sd.Document)
	}
	return files, byFile
}

type rulesDeleteOptions struct {
	dbPath string
	tenant string
	id     string
}

func newRulesDeleteCmd(global *globalOptions) *cobra.Command {
	opts := &rulesDeleteOptions{}
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a rule from a SQLite rule store",
		Example: `  hera-config rules delete --db data/rules.db --tenant org-1 --id batch-default`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesDelete(cmd, global, opts)
		},
	}
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite database path (store.sqlite.path when empty)")
	cmd.Flags().StringVarP(&opts.tenant, "tenant", "t", "", "organization id")
	cmd.Flags().StringVar(&opts.id, "id", "", "rule id")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func runRulesDelete(cmd *cobra.Command, global *globalOptions, opts *rulesDeleteOptions) error {
	db, err := openSQLite(cmd, global, opts.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Delete(cmd.Context(), opts.tenant, opts.id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %s for organization %s\n", opts.id, opts.tenant)
	return nil
}

// openSQLite opens the database named by --db, falling back to the
// configured SQLite path.
func openSQLite(cmd *cobra.Command, global *globalOptions, dbPath string) (*store.SQLiteStore, error) {
	sqliteCfg := config.SQLiteConfig{Path: dbPath}
	if dbPath == "" {
		cfg, err := loadConfig(global)
		if err != nil {
			return nil, err
		}
		sqliteCfg = cfg.Store.SQLite
	}
	return store.NewSQLiteStore(&sqliteCfg, commandLogger(global, cmd.ErrOrStderr()))
}
