package message

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wrap(t *testing.T, detail any) string {
	t.Helper()
	inner, err := json.Marshal(detail)
	require.NoError(t, err)
	outer, err := json.Marshal(map[string]string{"Message": string(inner)})
	require.NoError(t, err)
	return string(outer)
}

func runDetail() map[string]any {
	return map[string]any{
		"action":       "run",
		"connectionId": "conn-1",
		"userId":       "user-1",
		"data": map[string]any{
			"provider":    "sagemaker",
			"modelName":   "idefics-9b",
			"mode":        "chain",
			"text":        "what is in the picture?",
			"sessionId":   "s-1",
			"modelKwargs": map[string]any{"temperature": 0.7},
			"attachments": []map[string]string{{"key": "a.png"}, {"key": "b.png"}},
		},
	}
}

func TestDecodeRecordRun(t *testing.T) {
	env, err := DecodeRecord(wrap(t, runDetail()))
	require.NoError(t, err)

	assert.Equal(t, ActionRun, env.Action)
	assert.Equal(t, "conn-1", env.ConnectionID)
	assert.Equal(t, "user-1", env.UserID)
	assert.Equal(t, "idefics-9b", env.Data.ModelName)
	assert.Equal(t, "what is in the picture?", env.Data.Text)
	assert.Equal(t, []AttachmentRef{{Key: "a.png"}, {Key: "b.png"}}, env.Data.Attachments)
	assert.Equal(t, 0.7, env.Data.ModelKwargs["temperature"])
	assert.Equal(t, Key{SessionID: "s-1", UserID: "user-1"}, env.Key())
}

func TestDecodeRecordUnknownActionIsNotAnError(t *testing.T) {
	env, err := DecodeRecord(wrap(t, map[string]any{"action": "heartbeat"}))
	require.NoError(t, err)
	assert.Equal(t, ActionUnknown, env.Action)
	assert.Equal(t, "heartbeat", env.ActionName)
}

func TestDecodeRecordMalformed(t *testing.T) {
	noText := runDetail()
	delete(noText["data"].(map[string]any), "text")

	cases := map[string]string{
		"not json":        "{",
		"no message":      `{"Type":"Notification"}`,
		"message not obj": `{"Message":"[1,2"}`,
		"no action":       wrap(t, map[string]any{"userId": "u"}),
		"no data":         wrap(t, map[string]any{"action": "run", "connectionId": "c", "userId": "u"}),
		"missing text":    wrap(t, noText),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRecord(body)
			var decodeErr *DecodeError
			assert.True(t, errors.As(err, &decodeErr), "got %v", err)
		})
	}
}

func TestSalvageRecord(t *testing.T) {
	got := SalvageRecord(wrap(t, runDetail()))
	assert.Equal(t, Addressing{ConnectionID: "conn-1", UserID: "user-1", SessionID: "s-1"}, got)

	noSession := runDetail()
	delete(noSession["data"].(map[string]any), "sessionId")
	got = SalvageRecord(wrap(t, noSession))
	assert.Equal(t, "", got.SessionID)
	assert.Equal(t, "conn-1", got.ConnectionID)

	assert.Equal(t, Addressing{}, SalvageRecord("garbage"))
	assert.Equal(t, Addressing{}, SalvageRecord(`{"Message":42}`))
	assert.Equal(t, Addressing{UserID: "u"}, SalvageRecord(wrap(t, map[string]any{"userId": "u", "connectionId": 7, "data": "x"})))
}
