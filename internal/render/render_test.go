package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	out, err := Render("Hi {username}", map[string]string{"username": "raoul"})
	assert.NoError(t, err)
	assert.Equal(t, "Hi raoul", out)
}

func TestRender_MultipleFields(t *testing.T) {
	fields := map[string]string{
		"username": "raoul",
		"title":    "Weekly digest",
	}

	out, err := Render("{title} for {username}: {username}, check your inbox", fields)
	assert.NoError(t, err)
	assert.Equal(t, "Weekly digest for raoul: raoul, check your inbox", out)
}

func TestRender_MissingField(t *testing.T) {
	out, err := Render("Hi {username}", map[string]string{})
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Empty(t, out)
}

func TestRender_NoPlaceholders(t *testing.T) {
	out, err := Render("plain text, no substitution", nil)
	assert.NoError(t, err)
	assert.Equal(t, "plain text, no substitution", out)
}

func TestRender_ExtraFieldsIgnored(t *testing.T) {
	out, err := Render("Hi {username}", map[string]string{"username": "raoul", "unused": "x"})
	assert.NoError(t, err)
	assert.Equal(t, "Hi raoul", out)
}
