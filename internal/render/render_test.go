package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBasic(t *testing.T) {
	e, err := New(map[string]string{"greet": "hello {{.name}}"})
	require.NoError(t, err)

	out, err := e.Render("greet", map[string]any{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestRenderMissingKeyNamesIt(t *testing.T) {
	e, err := New(map[string]string{"greet": "hello {{.name}}"})
	require.NoError(t, err)

	_, err = e.Render("greet", map[string]any{"other": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestRenderUnknownTemplate(t *testing.T) {
	e, err := New(map[string]string{"a": "x"})
	require.NoError(t, err)

	_, err = e.Render("missing", map[string]any{})
	assert.Error(t, err)
}

func TestParseErrorNamesTemplate(t *testing.T) {
	_, err := New(map[string]string{"bad": "{{.unclosed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestFuncs(t *testing.T) {
	e, err := New(map[string]string{
		"dated":  `{{date "2006-01-02" .created}}`,
		"joined": `{{join ", " .tags}}`,
		"link":   `{{urlencodeSpaces .path}}`,
	})
	require.NoError(t, err)

	out, err := e.Render("dated", map[string]any{
		"created": time.Date(2020, 5, 4, 3, 2, 1, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "2020-05-04", out)

	out, err = e.Render("joined", map[string]any{"tags": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "a, b", out)

	out, err = e.Render("link", map[string]any{"path": "a b.md"})
	require.NoError(t, err)
	assert.Equal(t, "a%20b.md", out)
}

func TestNestedContext(t *testing.T) {
	e, err := New(map[string]string{"deep": "{{.outer.inner}}"})
	require.NoError(t, err)

	out, err := e.Render("deep", map[string]any{
		"outer": map[string]any{"inner": "value"},
	})
	require.NoError(t, err)
	assert.Equal(t, "value", out)
}
