package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"mercator-hq/sentinel/pkg/policy/rule"
)

// ParseResult holds the rules found in one document.
type ParseResult struct {
	// Rules are the admitted records in document order.
	Rules []rule.Rule

	// Skipped counts items that are not rule records (no rule_id, not a mapping).
	Skipped int

	// Errors are records that carried a rule_id but were rejected.
	Errors []error

	// Warnings are non-fatal findings on admitted rules.
	Warnings []string
}

// Parse decodes a document as a single rule record or a sequence of records.
//
// Documents ending in .json are decoded as JSON; everything else as YAML,
// including multi-document streams. A document that cannot be decoded yields
// a *ParseError and no rules. Individual records that fail validation are
// reported in the result and do not affect their siblings.
func Parse(doc Document) (*ParseResult, error) {
	if doc.Err != nil {
		return nil, doc.Err
	}
	if strings.EqualFold(filepath.Ext(doc.Path), ".json") {
		return parseJSON(doc)
	}
	return parseYAML(doc)
}

func parseYAML(doc Document) (*ParseResult, error) {
	res := &ParseResult{}
	dec := yaml.NewDecoder(bytes.NewReader(doc.Data))
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, newParseError(doc.Path, err)
		}

		root := &node
		if root.Kind == yaml.DocumentNode {
			if len(root.Content) == 0 {
				continue
			}
			root = root.Content[0]
		}

		switch root.Kind {
		case yaml.MappingNode:
			res.addNode(doc.Path, root)
		case yaml.SequenceNode:
			for _, item := range root.Content {
				if item.Kind != yaml.MappingNode {
					res.Skipped++
					continue
				}
				res.addNode(doc.Path, item)
			}
		case yaml.ScalarNode:
			if root.ShortTag() != "!!null" {
				res.Skipped++
			}
		default:
			res.Skipped++
		}
	}
	return res, nil
}

func (res *ParseResult) addNode(path string, n *yaml.Node) {
	id, ok := nodeRuleID(n)
	if !ok {
		res.Skipped++
		return
	}

	var r rule.Rule
	if err := n.Decode(&r); err != nil {
		res.Errors = append(res.Errors, &rule.ValidationError{
			RuleID:   id,
			Source:   path,
			Problems: []string{fmt.Sprintf("line %d: %v", n.Line, err)},
		})
		return
	}
	res.add(path, r)
}

func (res *ParseResult) add(path string, r rule.Rule) {
	r.Source = path
	if err := r.Validate(); err != nil {
		res.Errors = append(res.Errors, err)
		return
	}
	for _, w := range r.Warnings() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s: %s", path, r.RuleID, w))
	}
	res.Rules = append(res.Rules, r)
}

// nodeRuleID returns the rule_id scalar of a mapping node when it is non-empty.
func nodeRuleID(n *yaml.Node) (string, bool) {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value != "rule_id" {
			continue
		}
		v := n.Content[i+1]
		if v.Kind != yaml.ScalarNode || v.ShortTag() == "!!null" || v.Value == "" {
			return "", false
		}
		return v.Value, true
	}
	return "", false
}

func parseJSON(doc Document) (*ParseResult, error) {
	res := &ParseResult{}
	data := bytes.TrimSpace(doc.Data)
	if len(data) == 0 {
		return res, nil
	}

	var items []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, newParseError(doc.Path, err)
		}
	case '{':
		if !json.Valid(data) {
			var probe any
			return nil, newParseError(doc.Path, json.Unmarshal(data, &probe))
		}
		items = []json.RawMessage{data}
	default:
		var probe any
		if err := json.Unmarshal(data, &probe); err != nil {
			return nil, newParseError(doc.Path, err)
		}
		res.Skipped++
		return res, nil
	}

	for _, item := range items {
		var fields map[string]any
		if err := json.Unmarshal(item, &fields); err != nil || !rule.IsRuleLike(fields) {
			res.Skipped++
			continue
		}
		var r rule.Rule
		if err := json.Unmarshal(item, &r); err != nil {
			res.Errors = append(res.Errors, &rule.ValidationError{
				RuleID:   fmt.Sprint(fields["rule_id"]),
				Source:   doc.Path,
				Problems: []string{err.Error()},
			})
			continue
		}
		res.add(doc.Path, r)
	}
	return res, nil
}

var lineRe = regexp.MustCompile(`line (\d+)`)

func newParseError(path string, err error) *ParseError {
	pe := &ParseError{Path: path, Message: err.Error(), Cause: err}

	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		pe.Message = fmt.Sprintf("invalid JSON at offset %d: %v", syntax.Offset, err)
		return pe
	}

	if m := lineRe.FindStringSubmatch(err.Error()); m != nil {
		pe.Line, _ = strconv.Atoi(m[1])
	}
	pe.Message = strings.TrimPrefix(pe.Message, "yaml: ")
	return pe
}
