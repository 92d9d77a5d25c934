package audit

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/pkg/log"
)

func TestLogWithDetail(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithLogger(t.Context(), log.New(log.Config{Level: "info", Output: &buf}))

	LogWithDetail(ctx, ActionReadMessages, "u1", "u1", "updated=3", "messages marked read")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, log.LogTypeAudit, entry[log.FieldLogType])
	assert.Equal(t, ActionReadMessages, entry[FieldAction])
	assert.Equal(t, "u1", entry[log.FieldUserID])
	assert.Equal(t, "updated=3", entry[FieldDetail])
	assert.Equal(t, "messages marked read", entry["message"])
}

func TestLogTarget(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.WithLogger(t.Context(), log.New(log.Config{Level: "info", Output: &buf}))

	LogTarget(ctx, ActionRemoveActor, "admin-1", "u9", "actor removed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "u9", entry[FieldTargetID])
	assert.NotContains(t, entry, FieldDetail)
}
