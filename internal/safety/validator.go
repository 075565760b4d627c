// Package safety implements the syntax gate: a rewritten candidate is
// only allowed onto disk if it still parses. Each supported file type
// gets the strongest available check; types without any checker are
// passed through.
package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"gopkg.in/yaml.v3"

	"refinery/internal/discovery"
	"refinery/internal/logging"
)

// Checker validates candidate content per file type.
type Checker struct {
	jsParser *sitter.Parser
}

// NewChecker creates a syntax checker with a shared JavaScript parser.
func NewChecker() *Checker {
	p := sitter.NewParser()
	p.SetLanguage(javascript.GetLanguage())
	return &Checker{jsParser: p}
}

// Close releases parser resources.
func (c *Checker) Close() {
	if c.jsParser != nil {
		c.jsParser.Close()
	}
}

// Validate returns nil if content is syntactically acceptable for the
// given file type. Types without an available checker (and unknown
// types from all-files mode) are treated as valid.
func (c *Checker) Validate(ft discovery.FileType, content []byte) error {
	var err error
	switch ft {
	case discovery.TypeGo:
		err = validateGo(content)
	case discovery.TypeJavaScript:
		err = c.validateJS(content)
	case discovery.TypeJSON:
		err = validateJSON(content)
	case discovery.TypeYAML:
		err = validateYAML(content)
	case discovery.TypeHTML:
		err = validateHTML(string(content))
	case discovery.TypeCSS:
		err = validateCSS(string(content))
	default:
		return nil
	}
	if err != nil {
		logging.Safety("Rejected %s candidate: %v", ft, err)
	}
	return err
}

func validateGo(content []byte) error {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "candidate.go", content, parser.ParseComments); err != nil {
		return fmt.Errorf("invalid Go syntax: %w", err)
	}
	return nil
}

func (c *Checker) validateJS(content []byte) error {
	tree, err := c.jsParser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return fmt.Errorf("javascript parse failed: %w", err)
	}
	defer tree.Close()
	if tree.RootNode().HasError() {
		return fmt.Errorf("invalid JavaScript syntax at %s", firstErrorLocation(tree.RootNode()))
	}
	return nil
}

func firstErrorLocation(root *sitter.Node) string {
	var loc string
	var walk func(n *sitter.Node) bool
	walk = func(n *sitter.Node) bool {
		if n.IsError() || n.IsMissing() {
			p := n.StartPoint()
			loc = fmt.Sprintf("line %d, column %d", p.Row+1, p.Column+1)
			return true
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if child := n.Child(i); child != nil && child.HasError() && walk(child) {
				return true
			}
		}
		return false
	}
	if !walk(root) {
		return "unknown position"
	}
	return loc
}

func validateJSON(content []byte) error {
	if !json.Valid(content) {
		return fmt.Errorf("invalid JSON")
	}
	return nil
}

func validateYAML(content []byte) error {
	var out interface{}
	if err := yaml.Unmarshal(content, &out); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	return nil
}

// Void elements never take a closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// validateHTML is a heuristic tag-balance check. No full HTML parser is
// wired in, so the gate only insists that non-void open tags have a
// matching close in well-nested order.
func validateHTML(content string) error {
	var stack []string
	i := 0
	for {
		open := strings.IndexByte(content[i:], '<')
		if open < 0 {
			break
		}
		open += i
		close := strings.IndexByte(content[open:], '>')
		if close < 0 {
			return fmt.Errorf("unterminated tag at offset %d", open)
		}
		close += open
		tag := content[open+1 : close]
		i = close + 1

		if tag == "" || strings.HasPrefix(tag, "!") || strings.HasPrefix(tag, "?") {
			continue
		}
		if strings.HasPrefix(tag, "!--") {
			continue
		}
		selfClosing := strings.HasSuffix(tag, "/")
		closing := strings.HasPrefix(tag, "/")
		fields := strings.Fields(strings.Trim(tag, "/"))
		if len(fields) == 0 {
			return fmt.Errorf("empty tag at offset %d", open)
		}
		name := strings.ToLower(fields[0])

		// Scripts and styles may contain literal angle brackets.
		if !closing && (name == "script" || name == "style") {
			end := strings.Index(strings.ToLower(content[i:]), "</"+name)
			if end < 0 {
				return fmt.Errorf("unclosed <%s>", name)
			}
			i += end
			continue
		}

		switch {
		case closing:
			if len(stack) == 0 {
				return fmt.Errorf("unexpected closing tag </%s>", name)
			}
			if stack[len(stack)-1] != name {
				return fmt.Errorf("mismatched closing tag </%s>, expected </%s>", name, stack[len(stack)-1])
			}
			stack = stack[:len(stack)-1]
		case selfClosing || voidElements[name]:
			// no close expected
		default:
			stack = append(stack, name)
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed tag <%s>", stack[len(stack)-1])
	}
	return nil
}

// validateCSS is a heuristic brace/string balance check.
func validateCSS(content string) error {
	depth := 0
	var inString byte
	for i := 0; i < len(content); i++ {
		ch := content[i]
		if inString != 0 {
			if ch == '\\' {
				i++
			} else if ch == inString {
				inString = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			inString = ch
		case '/':
			if i+1 < len(content) && content[i+1] == '*' {
				end := strings.Index(content[i+2:], "*/")
				if end < 0 {
					return fmt.Errorf("unterminated comment")
				}
				i += end + 3
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced braces: unexpected '}'")
			}
		}
	}
	if inString != 0 {
		return fmt.Errorf("unterminated string")
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced braces: %d unclosed", depth)
	}
	return nil
}
