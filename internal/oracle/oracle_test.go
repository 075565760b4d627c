package oracle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFences(t *testing.T) {
	assert.Equal(t, "const x = 1;\n", stripFences("```js\nconst x = 1;\n```"))
	assert.Equal(t, "const x = 1;\n", stripFences("```\nconst x = 1;\n```\n"))

	// Unfenced content passes through untouched.
	assert.Equal(t, "plain content", stripFences("plain content"))

	// A fence that only opens is not stripped.
	in := "```js\nconst x = 1;"
	assert.Equal(t, in, stripFences(in))
}

func TestCostFor(t *testing.T) {
	// 1M input + 1M output at flash pricing.
	cost := costFor("gemini-3-flash-preview", 1_000_000, 1_000_000)
	assert.InDelta(t, 2.80, cost, 1e-9)

	// Unknown models use the conservative default, never zero.
	unknown := costFor("some-future-model", 1_000_000, 0)
	assert.Greater(t, unknown, 0.0)
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt(ImproveRequest{
		Path:       "/w/app.js",
		FileType:   "javascript",
		Content:    "const x = 1;",
		Pass:       3,
		Violations: "- line 1 [todo-marker]: unfinished-work marker\n",
	})
	assert.True(t, strings.Contains(p, "/w/app.js"))
	assert.True(t, strings.Contains(p, "pass 3"))
	assert.True(t, strings.Contains(p, "todo-marker"))
	assert.True(t, strings.HasSuffix(p, "const x = 1;"))

	// First-pass prompts carry no pass framing.
	first := buildPrompt(ImproveRequest{Path: "a.js", FileType: "javascript", Content: "x", Pass: 1})
	assert.False(t, strings.Contains(first, "rewrite pass"))
}
