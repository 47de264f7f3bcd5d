package api

import (
	"errors"
	"os"

	"algotrader/internal/domain"
	l1_service "algotrader/internal/service/l1"
	l2_service "algotrader/internal/service/l2"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status string `json:"status"`
	Phase  string `json:"phase"`
}

func (h ApiHandler) health(c *gin.Context) {
	phase := "none"
	if h.Session != nil {
		phase = string(h.Session.Phase())
	}
	c.JSON(200, healthResponse{Status: "ok", Phase: phase})
}

type holdResponse struct {
	Symbol  string `json:"symbol"`
	Status  string `json:"status"`
	CanBuy  bool   `json:"canBuy"`
	CanSell bool   `json:"canSell"`
}

func (h ApiHandler) holds(c *gin.Context) {
	if h.Session == nil {
		returnErrorJsonCode(errors.New("no live session"), c, 503)
		return
	}
	roster := h.Session.Holds()
	out := []holdResponse{}
	for _, symbol := range roster.Symbols() {
		status := roster[symbol]
		out = append(out, holdResponse{
			Symbol:  symbol,
			Status:  string(status),
			CanBuy:  status.CanBuy(),
			CanSell: status.CanSell(),
		})
	}
	c.JSON(200, out)
}

type rosterEntry struct {
	Symbol    string            `json:"symbol"`
	Timestamp string            `json:"timestamp"`
	Close     float64           `json:"close"`
	Signals   map[string]string `json:"signals"`
}

func rosterEntries(snapshot map[string]domain.SignalDataPayload, symbols []string) []rosterEntry {
	out := make([]rosterEntry, 0, len(symbols))
	for _, symbol := range symbols {
		p := snapshot[symbol]
		signals := map[string]string{}
		for name, s := range p.Signals {
			signals[name] = string(s)
		}
		out = append(out, rosterEntry{
			Symbol:    symbol,
			Timestamp: p.PriceData.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			Close:     p.PriceData.Close,
			Signals:   signals,
		})
	}
	return out
}

func (h ApiHandler) roster(c *gin.Context) {
	if h.Roster == nil {
		returnErrorJsonCode(errors.New("no live session"), c, 503)
		return
	}
	snapshot := h.Roster.Snapshot()
	c.JSON(200, rosterEntries(snapshot, snapshot.Symbols()))
}

func (h ApiHandler) summary(c *gin.Context) {
	if h.StageDataService == nil {
		returnErrorJsonCode(errors.New("no data dir configured"), c, 503)
		return
	}
	summary := domain.GlobalSummary{}
	err := h.StageDataService.ReadJSON(l1_service.PathKey{Stage: domain.StageSignalOptimization}, l2_service.GlobalSummaryName, &summary)
	if errors.Is(err, os.ErrNotExist) {
		returnErrorJsonCode(errors.New("no evaluation has run yet"), c, 404)
		return
	}
	if err != nil {
		returnErrorJson(err, c)
		return
	}
	c.JSON(200, summary)
}
