package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(Config{Level: "debug", Format: "json", Output: &buf})
		Component(l, "ledger").WithField("member_id", "M1").Debug("hello")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "hello", line["msg"])
		assert.Equal(t, "ledger", line["component"])
		assert.Equal(t, "M1", line["member_id"])
	})

	t.Run("bad level falls back to info", func(t *testing.T) {
		l := New(Config{Level: "chatty", Output: &bytes.Buffer{}})
		assert.Equal(t, logrus.InfoLevel, l.GetLevel())
		_, ok := l.Formatter.(*logrus.TextFormatter)
		assert.True(t, ok)
	})
}

func TestFromContext(t *testing.T) {
	l := New(Config{Output: &bytes.Buffer{}})
	entry := l.WithField("request_id", "abc")

	ctx := WithContext(context.Background(), entry)
	assert.Equal(t, entry, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
