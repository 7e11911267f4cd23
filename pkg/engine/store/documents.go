package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"hera-erp/configrules/pkg/rules"
)

// MaxRuleFileSize bounds a single rule file.
const MaxRuleFileSize = 10 * 1024 * 1024

// RuleFileExtensions lists the file extensions read from rule directories.
var RuleFileExtensions = []string{".yaml", ".yml", ".json"}

// ruleFile is the wrapped form of a rule file: {rules: [...]}. A bare list
// of rule documents is accepted as well.
type ruleFile struct {
	Rules []rules.RuleDocument `yaml:"rules" json:"rules"`
}

// SourcedDocument is a rule document together with where it was read from.
type SourcedDocument struct {
	Source   string
	Document rules.RuleDocument
}

// ParseRuleDocuments decodes rule documents from data. JSON is used when
// name ends in .json, YAML otherwise. Unknown fields are rejected.
func ParseRuleDocuments(data []byte, name string) ([]rules.RuleDocument, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("file contains invalid UTF-8 encoding")
	}
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return parseJSONDocuments(data)
	}
	return parseYAMLDocuments(data)
}

func parseJSONDocuments(data []byte) ([]rules.RuleDocument, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	if trimmed[0] == '[' {
		var docs []rules.RuleDocument
		if err := dec.Decode(&docs); err != nil {
			return nil, fmt.Errorf("invalid JSON rule list: %w", err)
		}
		return docs, nil
	}

	var file ruleFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("invalid JSON rule file: %w", err)
	}
	return file.Rules, nil
}

func parseYAMLDocuments(data []byte) ([]rules.RuleDocument, error) {
	var out []rules.RuleDocument

	dec := yaml.NewDecoder(bytes.NewReader(data))
	for i := 0; ; i++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("invalid YAML in document %d: %w", i, err)
		}

		docs, err := decodeYAMLNode(&node)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out = append(out, docs...)
	}
}

func decodeYAMLNode(node *yaml.Node) ([]rules.RuleDocument, error) {
	content := node
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, nil
		}
		content = node.Content[0]
	}

	// Re-encode the node so the strict decoder can reject unknown fields;
	// yaml.Node.Decode has no KnownFields switch.
	raw, err := yaml.Marshal(content)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	switch content.Kind {
	case yaml.SequenceNode:
		var docs []rules.RuleDocument
		if err := dec.Decode(&docs); err != nil {
			return nil, err
		}
		return docs, nil
	case yaml.MappingNode:
		var file ruleFile
		if err := dec.Decode(&file); err != nil {
			return nil, err
		}
		return file.Rules, nil
	case yaml.ScalarNode:
		if content.Tag == "!!null" {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected a list of rules or a mapping with a rules key")
}

// ReadRuleFile reads and parses one rule file.
func ReadRuleFile(path string) ([]rules.RuleDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: path, Message: "file not found", Cause: err}
		}
		return nil, &LoadError{Path: path, Message: "failed to access file", Cause: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{Path: path, Message: "not a regular file"}
	}
	if info.Size() > MaxRuleFileSize {
		return nil, &LoadError{
			Path:    path,
			Message: fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), MaxRuleFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "failed to read file", Cause: err}
	}

	docs, err := ParseRuleDocuments(data, path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "parse failed", Cause: err}
	}
	return docs, nil
}

// ReadRulePath reads a rule file, or every rule file below a directory.
// Directory entries that fail to load are returned in errs while the rest
// are kept; a single file that fails to load is returned as err.
func ReadRulePath(path string) (docs []SourcedDocument, errs []error, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, &LoadError{Path: path, Message: "path not found", Cause: err}
		}
		return nil, nil, &LoadError{Path: path, Message: "failed to access path", Cause: err}
	}

	if !info.IsDir() {
		list, err := ReadRuleFile(path)
		if err != nil {
			return nil, nil, err
		}
		return sourced(path, list), nil, nil
	}

	files, err := collectRuleFiles(path)
	if err != nil {
		return nil, nil, &LoadError{Path: path, Message: "failed to walk directory", Cause: err}
	}
	for _, file := range files {
		list, loadErr := ReadRuleFile(file)
		if loadErr != nil {
			errs = append(errs, loadErr)
			continue
		}
		docs = append(docs, sourced(file, list)...)
	}
	return docs, errs, nil
}

func sourced(path string, list []rules.RuleDocument) []SourcedDocument {
	out := make([]SourcedDocument, len(list))
	for i, doc := range list {
		out[i] = SourcedDocument{Source: fmt.Sprintf("%s#%d", path, i), Document: doc}
	}
	return out
}

// collectRuleFiles returns rule files below dir in lexical order, skipping
// hidden files and directories.
func collectRuleFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !hasRuleExtension(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	sort.Strings(files)
	return files, err
}

func hasRuleExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, valid := range RuleFileExtensions {
		if ext == valid {
			return true
		}
	}
	return false
}

// decodeDocuments converts documents into rules. Any structurally invalid
// document fails the whole set.
func decodeDocuments(docs []rules.RuleDocument, source string) ([]rules.ConfigurationRule, error) {
	list := make([]rules.ConfigurationRule, 0, len(docs))
	var errs []error
	for i, doc := range docs {
		if problems := rules.ValidateDocument(doc); len(problems) > 0 {
			errs = append(errs, &RuleError{Source: fmt.Sprintf("%s#%d", source, i), RuleID: doc.ID, Problems: problems})
			continue
		}
		list = append(list, rules.FromDocument(doc))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return list, nil
}
