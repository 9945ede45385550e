package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"arbradar/internal/arbitrage"
	"arbradar/internal/model"
	"arbradar/internal/radar"
)

type MockCommander struct {
	mock.Mock
}

func (m *MockCommander) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCommander) Stop() {
	m.Called()
}

func (m *MockCommander) RefreshPairs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCommander) ApplyFilters(ctx context.Context, f model.FilterSettings) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockCommander) ToggleFavorite(ctx context.Context, pair string) (bool, error) {
	args := m.Called(ctx, pair)
	return args.Bool(0), args.Error(1)
}

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func testRow(pair string, profit float64) model.OpportunityRow {
	return model.OpportunityRow{
		Pair: pair, BuyVenue: "Poloniex", BuyPrice: 99, SellVenue: "Binance", SellPrice: 105,
		ProfitPct: profit, Volume24h: 250_000, Quality: model.QualityOK,
		Venues: map[string]model.VenuePrices{"Binance": {Bid: 105, Ask: 100}, "Poloniex": {Bid: 102, Ask: 99}},
	}
}

func startHub(t *testing.T, table *radar.Table, commander Commander) (*Hub, *websocket.Conn) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(logger, table, commander)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return hub, conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env received
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func readRows(t *testing.T, conn *websocket.Conn) rowsPayload {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, TypeRows, env.Type)
	var p rowsPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	return p
}

func TestHub_RowsResetThenDiff(t *testing.T) {
	table := radar.NewTable()
	table.Apply([]model.OpportunityRow{testRow("BTC/USDT", 6.06), testRow("ETH/USDT", 0.4)})
	hub, conn := startHub(t, table, nil)

	initial := readRows(t, conn)
	assert.True(t, initial.Reset)
	require.Len(t, initial.Rows, 2)
	assert.Equal(t, "BTC/USDT", initial.Rows[0].Pair)
	assert.Equal(t, "105.0000", initial.Rows[0].SellText)
	assert.Equal(t, "6.06%", initial.Rows[0].ProfitText)
	assert.Equal(t, "250.0k", initial.Rows[0].VolumeText)

	hub.UpdateRows([]model.OpportunityRow{testRow("BTC/USDT", 6.06), testRow("ETH/USDT", 0.9)})
	diff := readRows(t, conn)
	assert.False(t, diff.Reset)
	require.Len(t, diff.Rows, 1)
	assert.Equal(t, 1, diff.Rows[0].Index)
	assert.Equal(t, 0.9, diff.Rows[0].ProfitPct)

	hub.UpdateRows([]model.OpportunityRow{testRow("SOL/USDT", 1)})
	reset := readRows(t, conn)
	assert.True(t, reset.Reset)
	assert.Len(t, reset.Rows, 1)
}

func TestHub_UpdateAndEvent(t *testing.T) {
	hub, conn := startHub(t, radar.NewTable(), nil)
	readRows(t, conn)

	hub.OnUpdate(arbitrage.Update{
		Latency:     500 * time.Millisecond,
		PairCount:   120,
		SignalCount: 3,
		Statuses: map[string]model.VenueStatus{
			"Poloniex": {Venue: "Poloniex", State: model.Degraded, Latency: 450 * time.Millisecond},
			"Binance":  {Venue: "Binance", State: model.Connected, Latency: 120 * time.Millisecond},
		},
		Health: arbitrage.Health{Mode: model.ModeSimulator, QuoteAge: map[string]time.Duration{"Binance": time.Second}},
	})
	env := readEnvelope(t, conn)
	require.Equal(t, TypeUpdate, env.Type)
	var u updatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &u))
	assert.Equal(t, 0.5, u.LatencySec)
	assert.Equal(t, 120, u.PairCount)
	assert.Equal(t, 3, u.SignalCount)
	require.Len(t, u.Statuses, 2)
	assert.Equal(t, "Binance", u.Statuses[0].Venue)
	assert.Equal(t, int64(450), u.Statuses[1].LatencyMS)
	assert.Equal(t, 1.0, u.QuoteAgeSec["Binance"])

	ev := model.NewEvent(model.LevelSignal, "SIGNAL BTC/USDT", time.Now())
	hub.Emit(ev)
	env = readEnvelope(t, conn)
	require.Equal(t, TypeEvent, env.Type)
	var got model.Event
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, ev.ID, got.ID)
}

func TestHub_Commands(t *testing.T) {
	cmd := new(MockCommander)
	calls := make(chan string, 8)
	record := func(name string) func(mock.Arguments) {
		return func(mock.Arguments) { calls <- name }
	}
	filters := model.DefaultFilterSettings()
	filters.TopN = 10

	cmd.On("Start", mock.Anything).Return(nil).Run(record("start")).Once()
	cmd.On("Stop").Return().Run(record("stop")).Once()
	cmd.On("RefreshPairs", mock.Anything).Return(nil).Run(record("refresh")).Once()
	cmd.On("ApplyFilters", mock.Anything, filters).Return(nil).Run(record("filters")).Once()
	cmd.On("ToggleFavorite", mock.Anything, "btc/usdt").Return(true, nil).Run(record("favorite")).Once()

	_, conn := startHub(t, radar.NewTable(), cmd)
	readRows(t, conn)

	send := func(v any) {
		require.NoError(t, conn.WriteJSON(v))
	}
	send(map[string]any{"action": "start"})
	send(map[string]any{"action": "stop"})
	send(map[string]any{"action": "refresh"})
	send(map[string]any{"action": "filters", "filters": filters})
	send(map[string]any{"action": "favorite", "pair": "btc/usdt"})

	var got []string
	for range 5 {
		select {
		case name := <-calls:
			got = append(got, name)
		case <-time.After(5 * time.Second):
			t.Fatalf("commands dispatched so far: %v", got)
		}
	}
	assert.Equal(t, []string{"start", "stop", "refresh", "filters", "favorite"}, got)
	cmd.AssertExpectations(t)
}

func TestHub_RejectedCommands(t *testing.T) {
	cmd := new(MockCommander)
	cmd.On("Start", mock.Anything).Return(errors.New("scanning is not supported in Live mode")).Once()
	_, conn := startHub(t, radar.NewTable(), cmd)
	readRows(t, conn)

	cases := []struct {
		msg    any
		action string
		substr string
	}{
		{map[string]any{"action": "start"}, "start", "not supported"},
		{map[string]any{"action": "dance"}, "dance", "unknown action"},
		{map[string]any{"action": "filters"}, "filters", "missing settings"},
		{map[string]any{"action": "favorite"}, "favorite", "missing pair"},
	}
	for _, tc := range cases {
		require.NoError(t, conn.WriteJSON(tc.msg))
		env := readEnvelope(t, conn)
		require.Equal(t, TypeError, env.Type)
		var p errorPayload
		require.NoError(t, json.Unmarshal(env.Payload, &p))
		assert.Equal(t, tc.action, p.Action)
		assert.Contains(t, p.Message, tc.substr)
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	env := readEnvelope(t, conn)
	assert.Equal(t, TypeError, env.Type)
}

func TestHub_ConnectAfterShutdown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(logger, radar.NewTable(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(ran)
	}()
	require.Eventually(t, func() bool { return hub.baseContext() == ctx }, time.Second, time.Millisecond)
	cancel()
	<-ran

	handled := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(handled)
		hub.HandleWS(w, r)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("HandleWS blocked after the hub stopped")
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
