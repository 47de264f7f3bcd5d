package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"algotrader/internal/app"
	"algotrader/internal/domain"
	l1_service "algotrader/internal/service/l1"
	l2_service "algotrader/internal/service/l2"
	"algotrader/internal/stream"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type stubSession struct {
	app.MarketSessionApp
	phase app.SessionPhase
	holds l1_service.HoldRoster
}

func (s stubSession) Phase() app.SessionPhase {
	return s.phase
}

func (s stubSession) Holds() l1_service.HoldRoster {
	return s.holds
}

func payload(symbol string, close float64, entry domain.Signal) domain.SignalDataPayload {
	return domain.SignalDataPayload{
		Symbol:  symbol,
		Signals: map[string]domain.Signal{domain.ColEntrySignal: entry, domain.ColExitSignal: domain.SignalHold},
		PriceData: domain.EnrichedBar{
			Bar: domain.Bar{Symbol: symbol, Timestamp: time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC), Close: close},
		},
	}
}

func newTestHandler(t *testing.T) (ApiHandler, *stream.Roster) {
	gin.SetMode(gin.TestMode)
	roster := stream.NewRoster(nil)
	t.Cleanup(func() { require.NoError(t, roster.Shutdown(context.Background())) })
	return ApiHandler{
		Session: stubSession{
			phase: app.PhaseOpen,
			holds: l1_service.HoldRoster{"AAPL": domain.HoldSellOnly, "MSFT": domain.HoldStart},
		},
		Roster:           roster,
		StageDataService: l1_service.NewStageDataService(t.TempDir()),
	}, roster
}

func get(t *testing.T, router http.Handler, path string, out any) int {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && w.Code == 200 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func TestApiHandler_status(t *testing.T) {
	h, roster := newTestHandler(t)
	router := h.Router()

	t.Run("health", func(t *testing.T) {
		out := healthResponse{}
		require.Equal(t, 200, get(t, router, "/health", &out))
		require.Equal(t, healthResponse{Status: "ok", Phase: "open"}, out)
	})

	t.Run("holds", func(t *testing.T) {
		out := []holdResponse{}
		require.Equal(t, 200, get(t, router, "/holds", &out))
		require.Equal(t, []holdResponse{
			{Symbol: "AAPL", Status: string(domain.HoldSellOnly), CanBuy: false, CanSell: true},
			{Symbol: "MSFT", Status: string(domain.HoldStart), CanBuy: true, CanSell: true},
		}, out)
	})

	t.Run("roster", func(t *testing.T) {
		require.NoError(t, roster.Update(payload("MSFT", 410.5, domain.SignalBuy)))
		out := []rosterEntry{}
		require.Equal(t, 200, get(t, router, "/roster", &out))
		require.Len(t, out, 1)
		require.Equal(t, "MSFT", out[0].Symbol)
		require.Equal(t, 410.5, out[0].Close)
		require.Equal(t, string(domain.SignalBuy), out[0].Signals[domain.ColEntrySignal])
	})

	t.Run("summary", func(t *testing.T) {
		require.Equal(t, 404, get(t, router, "/summary", nil))

		written := domain.GlobalSummary{"AAPL": {Symbol: "AAPL", RecommendedStrategy: "Bollinger", IsViable: true}}
		key := l1_service.PathKey{Stage: domain.StageSignalOptimization}
		require.NoError(t, h.StageDataService.WriteJSON(key, l2_service.GlobalSummaryName, written))

		out := domain.GlobalSummary{}
		require.Equal(t, 200, get(t, router, "/summary", &out))
		require.Equal(t, "Bollinger", out["AAPL"].RecommendedStrategy)
	})

	t.Run("no session", func(t *testing.T) {
		router := ApiHandler{}.Router()
		require.Equal(t, 503, get(t, router, "/holds", nil))
		require.Equal(t, 503, get(t, router, "/roster", nil))
		out := healthResponse{}
		require.Equal(t, 200, get(t, router, "/health", &out))
		require.Equal(t, "none", out.Phase)
	})
}

func TestApiHandler_rosterFeed(t *testing.T) {
	h, roster := newTestHandler(t)
	require.NoError(t, roster.Update(payload("AAPL", 180, domain.SignalHold)))

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/roster"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	initial := []rosterEntry{}
	require.NoError(t, conn.ReadJSON(&initial))
	require.Len(t, initial, 1)
	require.Equal(t, "AAPL", initial[0].Symbol)

	// the subscription is registered after the initial write
	require.Eventually(t, func() bool {
		return roster.SubscriberCount() > 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, roster.Update(payload("MSFT", 410, domain.SignalBuy)))
	next := []rosterEntry{}
	require.NoError(t, conn.ReadJSON(&next))
	require.Equal(t, []string{"AAPL", "MSFT"}, []string{next[0].Symbol, next[1].Symbol})
}
