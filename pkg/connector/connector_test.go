package connector

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkmarxDev/chatbot-worker/pkg/message"
	"github.com/checkmarxDev/chatbot-worker/pkg/role"
)

func exchange(user, ai string, meta map[string]any) []message.Entry {
	return []message.Entry{
		{Kind: message.EntryHuman, Content: user},
		{Kind: message.EntryMetadata, Metadata: meta},
		{Kind: message.EntryAI, Content: ai},
	}
}

// exerciseConnector runs the behaviour every Connector must share.
func exerciseConnector(t *testing.T, c Connector) {
	t.Helper()
	ctx := context.Background()
	key := message.Key{SessionID: "s-1", UserID: "u-1"}

	history, err := c.History(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, found, err := c.Recorded(ctx, key, "req-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Append(ctx, key, "req-1", exchange("hi", "hello", map[string]any{"modelId": "m"})))
	require.NoError(t, c.Append(ctx, key, "req-2", exchange("how are you", "fine", nil)))
	require.NoError(t, c.Append(ctx, key, "req-1", exchange("hi", "a different answer", map[string]any{"modelId": "m"})))

	answer, found, err := c.Recorded(ctx, key, "req-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", answer)

	answer, found, err = c.Recorded(ctx, key, "req-2")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "fine", answer)

	_, found, err = c.Recorded(ctx, message.Key{SessionID: "s-1", UserID: "u-2"}, "req-1")
	require.NoError(t, err)
	assert.False(t, found)

	history, err = c.History(ctx, key)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, role.Human, history[0].Role)
	assert.Equal(t, "hi", history[0].Content)
	assert.Equal(t, "m", history[0].Metadata["modelId"])
	assert.Equal(t, role.AI, history[1].Role)
	assert.Equal(t, "hello", history[1].Content)
	assert.Equal(t, "how are you", history[2].Content)
	assert.Equal(t, "fine", history[3].Content)

	other, err := c.History(ctx, message.Key{SessionID: "s-1", UserID: "u-2"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestFileSystemConnector(t *testing.T) {
	exerciseConnector(t, NewFileSystemConnector(t.TempDir()))
}

func TestFileSystemConnectorConcurrentAppends(t *testing.T) {
	c := NewFileSystemConnector(t.TempDir())
	key := message.Key{SessionID: "s", UserID: "u"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Append(context.Background(), key, string(rune('a'+i)), exchange("q", "a", nil)))
		}(i)
	}
	wg.Wait()

	history, err := c.History(context.Background(), key)
	require.NoError(t, err)
	assert.Len(t, history, 40)
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, role.Human, history[i].Role)
		assert.Equal(t, role.AI, history[i+1].Role)
	}
}

func TestSQLConnectorSQLite(t *testing.T) {
	c, err := OpenSQLConnector(DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer func() {
		_ = c.Close()
	}()
	require.NoError(t, c.Migrate(context.Background()))
	exerciseConnector(t, c)
}

func TestSQLConnectorConcurrentAppends(t *testing.T) {
	c, err := OpenSQLConnector(DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer func() {
		_ = c.Close()
	}()
	require.NoError(t, c.Migrate(context.Background()))
	key := message.Key{SessionID: "s", UserID: "u"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Append(context.Background(), key, string(rune('a'+i)), exchange("q", "a", nil)))
		}(i)
	}
	wg.Wait()

	history, err := c.History(context.Background(), key)
	require.NoError(t, err)
	assert.Len(t, history, 20)
}

func TestSessionLock(t *testing.T) {
	pg := &SQLConnector{driver: DriverPostgres}
	assert.Equal(t, "SELECT pg_advisory_xact_lock(hashtext($1))", pg.sessionLock())
	lite := &SQLConnector{driver: DriverSQLite}
	assert.Empty(t, lite.sessionLock())
}

func TestOpenSQLConnectorRejectsUnknownDriver(t *testing.T) {
	_, err := OpenSQLConnector("mysql", "dsn")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLConnector{driver: DriverPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))
	lite := &SQLConnector{driver: DriverSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestFoldEntries(t *testing.T) {
	turns := foldEntries([]message.Entry{
		{Kind: message.EntryMetadata, Metadata: map[string]any{"dropped": true}},
		{Kind: message.EntryHuman, Content: "q"},
		{Kind: message.EntryMetadata, Metadata: map[string]any{"a": 1}},
		{Kind: message.EntryAI, Content: "r"},
	})
	require.Len(t, turns, 2)
	assert.Equal(t, map[string]any{"a": 1}, turns[0].Metadata)
	assert.Nil(t, turns[1].Metadata)
}

func TestAnswerOf(t *testing.T) {
	assert.Equal(t, "r", answerOf(exchange("q", "r", nil)))
	assert.Empty(t, answerOf([]message.Entry{{Kind: message.EntryHuman, Content: "q"}}))
}
