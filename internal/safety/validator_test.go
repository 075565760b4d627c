package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"refinery/internal/discovery"
)

func TestValidate_Go(t *testing.T) {
	c := NewChecker()
	defer c.Close()

	assert.NoError(t, c.Validate(discovery.TypeGo, []byte("package main\n\nfunc main() {}\n")))
	assert.Error(t, c.Validate(discovery.TypeGo, []byte("package main\n\nfunc main() {\n")))
	assert.Error(t, c.Validate(discovery.TypeGo, []byte("this is not go")))
}

func TestValidate_JavaScript(t *testing.T) {
	c := NewChecker()
	defer c.Close()

	assert.NoError(t, c.Validate(discovery.TypeJavaScript, []byte("const x = 1;\nfunction f() { return x; }\n")))
	assert.Error(t, c.Validate(discovery.TypeJavaScript, []byte("function f( { return ;\n")))
}

func TestValidate_JSON(t *testing.T) {
	c := NewChecker()
	defer c.Close()

	assert.NoError(t, c.Validate(discovery.TypeJSON, []byte(`{"a": [1, 2, 3]}`)))
	assert.Error(t, c.Validate(discovery.TypeJSON, []byte(`{"a": [1, 2,}`)))
}

func TestValidate_YAML(t *testing.T) {
	c := NewChecker()
	defer c.Close()

	assert.NoError(t, c.Validate(discovery.TypeYAML, []byte("a: 1\nb:\n  - x\n  - y\n")))
	assert.Error(t, c.Validate(discovery.TypeYAML, []byte("a: 1\n  b: [unclosed\n")))
}

func TestValidate_HTML(t *testing.T) {
	c := NewChecker()
	defer c.Close()

	assert.NoError(t, c.Validate(discovery.TypeHTML,
		[]byte("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"></head><body><p>hi</p></body></html>")))
	assert.NoError(t, c.Validate(discovery.TypeHTML,
		[]byte("<div><script>if (a < b) { go() }</script></div>")))
	assert.Error(t, c.Validate(discovery.TypeHTML, []byte("<div><span>hi</div>")))
	assert.Error(t, c.Validate(discovery.TypeHTML, []byte("<div>unclosed")))
}

func TestValidate_HTMLEmptyTagIsSyntaxError(t *testing.T) {
	c := NewChecker()
	defer c.Close()

	// Nameless tags must come back as errors, never panic.
	for _, in := range []string{"<div></></div>", "< >", "</>", "<div>< /></div>"} {
		err := c.Validate(discovery.TypeHTML, []byte(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestValidate_CSS(t *testing.T) {
	c := NewChecker()
	defer c.Close()

	assert.NoError(t, c.Validate(discovery.TypeCSS, []byte("body { color: red; }\n.a > .b { margin: 0 }\n")))
	assert.NoError(t, c.Validate(discovery.TypeCSS, []byte("/* } in comment */ a { content: \"}\" }\n")))
	assert.Error(t, c.Validate(discovery.TypeCSS, []byte("body { color: red;\n")))
	assert.Error(t, c.Validate(discovery.TypeCSS, []byte("body } {")))
}

func TestValidate_UnknownTypePassesThrough(t *testing.T) {
	c := NewChecker()
	defer c.Close()

	// No checker exists for untyped files; the gate must not block them.
	assert.NoError(t, c.Validate(discovery.TypeUnknown, []byte("anything at all \x01\x02")))
}
