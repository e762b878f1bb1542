package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rickgao/quotefeed/internal/cache"
	"github.com/rickgao/quotefeed/internal/connection"
	"github.com/rickgao/quotefeed/internal/model"
)

// DataPoint is one element of the /api/data response.
type DataPoint struct {
	Time   string  `json:"time"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// LatestPoint is one element of the /api/latest response.
type LatestPoint struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Time   string  `json:"time"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleData returns recent history for every symbol, merged by time.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	obs, err := s.deps.History.GetRecent(r.Context(), s.cfg.HistoryLimit)
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	points := make([]DataPoint, len(obs))
	for i, o := range obs {
		points[i] = DataPoint{
			Time:   o.ObservedAt.UTC().Format(model.TimeLayout),
			Symbol: o.Symbol,
			Price:  o.Price,
		}
	}
	writeJSON(w, http.StatusOK, points)
}

// handleLatest returns the cached latest price per symbol.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Cache.Latest(r.Context(), s.deps.Symbols.Symbols())
	if errors.Is(err, cache.ErrDisabled) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("latest query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	points := make([]LatestPoint, len(entries))
	for i, e := range entries {
		points[i] = LatestPoint{
			Symbol: e.Symbol,
			Price:  e.Price,
			Time:   e.ObservedAt.UTC().Format(model.TimeLayout),
		}
	}
	writeJSON(w, http.StatusOK, points)
}

// handleWS upgrades to a WebSocket and registers the subscriber until it leaves.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	if s.deps.OnConnect != nil {
		s.deps.OnConnect()
	}

	c := connection.New(ws, s.conn, s.logger)
	s.deps.Hub.Subscribe(c)
	defer s.deps.Hub.Unsubscribe(c.ID())

	s.logger.Info("subscriber connected",
		"conn_id", c.ID(),
		"remote", r.RemoteAddr,
		"subscribers", s.deps.Hub.Len(),
	)

	c.Run(r.Context())

	s.logger.Info("subscriber disconnected", "conn_id", c.ID())
}

// handleHealth reports component status. Returns 503 when the store is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	health := struct {
		Status     string         `json:"status"`
		Components map[string]any `json:"components"`
	}{
		Status:     "healthy",
		Components: make(map[string]any),
	}

	if err := s.deps.Store.Ping(ctx); err != nil {
		health.Status = "unhealthy"
		health.Components["store"] = map[string]string{
			"status": "disconnected",
			"error":  err.Error(),
		}
	} else {
		health.Components["store"] = "connected"
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Ping(ctx); err != nil {
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
			health.Components["cache"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["cache"] = "connected"
		}
	}

	hs := s.deps.Hub.Stats()
	health.Components["hub"] = map[string]any{
		"subscribers": hs.Subscribers,
		"published":   hs.Published,
		"delivered":   hs.Delivered,
		"dropped":     hs.Dropped,
	}

	if s.deps.Worker != nil {
		ws := s.deps.Worker.Stats()
		health.Components["worker"] = map[string]any{
			"started":   ws.Started,
			"cycles":    ws.Cycles,
			"fetched":   ws.Fetched,
			"no_data":   ws.NoData,
			"persisted": ws.Persisted,
			"errors":    ws.Errors,
		}
	}

	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
