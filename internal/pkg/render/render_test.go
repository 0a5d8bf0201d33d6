package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"no placeholders", "hello world", []string{}},
		{"single", "hello {{name}}", []string{"name"}},
		{"whitespace trimmed", "hi {{  name  }}", []string{"name"}},
		{"deduplicated", "{{name}} and {{ name }} and {{city}}", []string{"name", "city"}},
		{"empty string", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Vars(tt.input))
		})
	}
}

func TestRender(t *testing.T) {
	t.Run("substitutes values", func(t *testing.T) {
		out, err := Render("Hi {{name}}, order {{ id }} shipped", map[string]any{
			"name": "Ann",
			"id":   42,
		})
		require.NoError(t, err)
		assert.Equal(t, "Hi Ann, order 42 shipped", out)
	})

	t.Run("escapes html", func(t *testing.T) {
		out, err := Render("{{payload}}", map[string]any{"payload": `<b>&"x"</b>`})
		require.NoError(t, err)
		assert.Equal(t, "&lt;b&gt;&amp;&#34;x&#34;&lt;/b&gt;", out)
	})

	t.Run("missing variable fails loudly", func(t *testing.T) {
		_, err := Render("Hi {{name}}", map[string]any{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name")
	})

	t.Run("no placeholders passes through", func(t *testing.T) {
		out, err := Render("plain text", nil)
		require.NoError(t, err)
		assert.Equal(t, "plain text", out)
	})
}
