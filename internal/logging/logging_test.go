package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestRedactString(t *testing.T) {
	got := RedactString("unsubscribed news@vendor.com and deals@shop.io")
	assert.Equal(t, "unsubscribed ne***@vendor.com and de***@shop.io", got)
}

func TestNew_JSONWithRedaction(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Redact: true}, &buf)
	require.NoError(t, err)

	l.WithField("email", "john.doe@example.com").
		WithError(errors.New("post to news@vendor.com failed")).
		Info("unsubscribe newsletter@vendor.com")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "unsubscribe ne***@vendor.com", entry["msg"])
	assert.Equal(t, "jo***@example.com", entry["email"])
	assert.Equal(t, "post to ne***@vendor.com failed", entry["error"])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_NoRedaction(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{}, &buf)
	require.NoError(t, err)
	l.WithField("email", "john.doe@example.com").Info("x")
	assert.Contains(t, buf.String(), "john.doe@example.com")
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Config{Level: "loud"}, nil)
	assert.Error(t, err)
	_, err = New(Config{Format: "xml"}, nil)
	assert.Error(t, err)
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)
	l.Info("hidden")
	assert.Empty(t, buf.String())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}
