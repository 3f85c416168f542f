package events

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rublocks/internal/model"
	"github.com/mcoot/rublocks/internal/services/stats"
	"github.com/mcoot/rublocks/internal/testutil"
)

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		data      string
		expected  string
	}{
		{
			name:      "single line data",
			eventName: "level-up",
			data:      `{"new_level":4}`,
			expected:  "event: level-up\ndata: {\"new_level\":4}\n\n",
		},
		{
			name:      "multi-line data",
			eventName: "note",
			data:      "line1\nline2",
			expected:  "event: note\ndata: line1\ndata: line2\n\n",
		},
		{
			name:      "empty data",
			eventName: "ping",
			data:      "",
			expected:  "event: ping\ndata: \n\n",
		},
		{
			name:      "carriage returns dropped",
			eventName: "note",
			data:      "line1\r\nline2\r\n",
			expected:  "event: note\ndata: line1\ndata: line2\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(formatMessage(tt.eventName, tt.data)))
		})
	}
}

func receive(t *testing.T, client *Client) string {
	t.Helper()
	select {
	case msg := <-client.send:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("client did not receive message")
		return ""
	}
}

func TestHubRegisterAndPublish(t *testing.T) {
	hub := NewHub("player-1", testutil.NopLogger())
	go hub.Run()
	defer hub.Close()

	first := NewClient("player-1")
	second := NewClient("player-1")
	hub.Register(first)
	hub.Register(second)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Publish("level-up", "x")

	assert.Equal(t, "event: level-up\ndata: x\n\n", receive(t, first))
	assert.Equal(t, "event: level-up\ndata: x\n\n", receive(t, second))
}

func TestHubUnregisterClosesStream(t *testing.T) {
	hub := NewHub("player-1", testutil.NopLogger())
	go hub.Run()
	defer hub.Close()

	client := NewClient("player-1")
	hub.Register(client)
	hub.Unregister(client)

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-client.send
	assert.False(t, ok)
}

func TestHubCloseEndsStreamsAndIgnoresLateCalls(t *testing.T) {
	hub := NewHub("player-1", testutil.NopLogger())
	go hub.Run()

	client := NewClient("player-1")
	hub.Register(client)
	hub.Close()

	_, ok := <-client.send
	assert.False(t, ok)

	// Neither call may block once the hub is closed
	late := NewClient("player-1")
	hub.Register(late)
	hub.Unregister(late)
	_, ok = <-late.send
	assert.False(t, ok)

	hub.Close()
}

func TestHubManagerGetOrCreateHub(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	defer manager.Close()

	assert.Nil(t, manager.GetHub("player-1"))

	hub := manager.GetOrCreateHub("player-1")
	assert.Same(t, hub, manager.GetOrCreateHub("player-1"))
	assert.Same(t, hub, manager.GetHub("player-1"))
	assert.NotSame(t, hub, manager.GetOrCreateHub("player-2"))
}

func TestHubManagerCleanupEmptyHubs(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	defer manager.Close()

	busy := manager.GetOrCreateHub("busy")
	manager.GetOrCreateHub("idle")

	client := NewClient("busy")
	busy.Register(client)
	require.Eventually(t, func() bool { return busy.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	manager.CleanupEmptyHubs()

	assert.NotNil(t, manager.GetHub("busy"))
	assert.Nil(t, manager.GetHub("idle"))
}

func TestHubManagerNotifyLevelUp(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	defer manager.Close()

	hub := manager.GetOrCreateHub("player-1")
	client := NewClient("player-1")
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	occurred := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	manager.NotifyLevelUp(context.Background(), stats.LevelUpEvent{
		PlayerID:      "player-1",
		PreviousLevel: 3,
		NewLevel:      4,
		Stats:         model.PlayerStats{Experience: 310, Level: 4},
		OccurredAt:    occurred,
	})

	msg := receive(t, client)
	require.True(t, strings.HasPrefix(msg, "event: level-up\ndata: "))

	var payload LevelUpPayload
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(msg, "event: level-up\ndata: "))), &payload))
	assert.Equal(t, LevelUpPayload{
		PlayerID:      "player-1",
		PreviousLevel: 3,
		NewLevel:      4,
		Experience:    310,
		OccurredAt:    occurred,
	}, payload)
}

func TestHubManagerNotifyWithoutStreamsIsNoop(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	defer manager.Close()

	manager.NotifyLevelUp(context.Background(), stats.LevelUpEvent{PlayerID: "nobody", NewLevel: 2})
	assert.Nil(t, manager.GetHub("nobody"))
}

func TestServeStreamsEvents(t *testing.T) {
	manager := NewHubManager(testutil.NopLogger())
	defer manager.Close()
	hub := manager.GetOrCreateHub("player-1")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Serve(w, r, hub, "player-1")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		var lines []string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if line == "\n" {
				return strings.Join(lines, "")
			}
			lines = append(lines, line)
		}
	}

	assert.Equal(t, "event: connected\ndata: {\"status\":\"connected\"}\n", readEvent())

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	manager.NotifyLevelUp(context.Background(), stats.LevelUpEvent{PlayerID: "player-1", PreviousLevel: 1, NewLevel: 2})

	assert.True(t, strings.HasPrefix(readEvent(), "event: level-up\n"))
}
