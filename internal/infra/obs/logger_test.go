package obs

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "production").Info("booking created", "booking_id", "bk-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "booking created", line["msg"])
	assert.Equal(t, "bk-1", line["booking_id"])

	buf.Reset()
	newLogger(&buf, "test").Info("quiet")
	assert.Empty(t, buf.String())

	buf.Reset()
	newLogger(&buf, "dev").Debug("colourful", "k", "v")
	assert.Contains(t, buf.String(), "colourful")
	assert.False(t, json.Valid(buf.Bytes()))
}
