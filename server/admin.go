package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tetriq/logger"
)

// ChannelInfo is the admin view of a channel.
type ChannelInfo struct {
	ID      uint64         `json:"id"`
	Members []uint64       `json:"members"`
	Running bool           `json:"running"`
	Metrics map[string]any `json:"metrics"`
}

// PlayerInfo is the admin view of a player.
type PlayerInfo struct {
	ID       uint64 `json:"id"`
	Addr     string `json:"addr"`
	Channel  uint64 `json:"channel"`
	InRound  bool   `json:"in_round"`
	Actions  uint64 `json:"actions"`
	GameOver bool   `json:"game_over"`
}

// NewAdminRouter exposes channel and player management, Prometheus metrics
// and a health check. Every state access goes through the loop inbox.
func NewAdminRouter(s *Server, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/channels", listChannels(s))
	r.Post("/channels", createChannel(s))
	r.Delete("/channels/{id}", deleteChannel(s))
	r.Get("/players", listPlayers(s))
	r.Post("/players/{id}/channel", movePlayer(s))
	r.Delete("/players/{id}", kickPlayer(s))
	return r
}

func listChannels(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := s.Exec(r.Context(), func(s *Server) (any, error) {
			infos := make([]ChannelInfo, 0, len(s.channels))
			for _, c := range s.channels {
				infos = append(infos, ChannelInfo{
					ID:      c.id,
					Members: c.Members(),
					Running: c.started,
					Metrics: c.metrics.Snapshot(),
				})
			}
			return infos, nil
		})
		respond(w, http.StatusOK, v, err)
	}
}

func createChannel(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := s.Exec(r.Context(), func(s *Server) (any, error) {
			return map[string]uint64{"id": s.CreateChannel()}, nil
		})
		respond(w, http.StatusCreated, v, err)
	}
}

func deleteChannel(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		_, err := s.Exec(r.Context(), func(s *Server) (any, error) {
			return nil, s.DeleteChannel(id)
		})
		respond(w, http.StatusNoContent, nil, err)
	}
}

func listPlayers(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := s.Exec(r.Context(), func(s *Server) (any, error) {
			infos := make([]PlayerInfo, 0, len(s.players))
			for _, c := range s.channels {
				c.each(func(p *Player) {
					info := PlayerInfo{
						ID:       p.id,
						Channel:  c.id,
						InRound:  p.inRound,
						Actions:  p.actions,
						GameOver: p.game.GameOver(),
					}
					if p.conn != nil {
						info.Addr = p.conn.RemoteAddr()
					}
					infos = append(infos, info)
				})
			}
			return infos, nil
		})
		respond(w, http.StatusOK, v, err)
	}
}

func movePlayer(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var body struct {
			Channel *uint64 `json:"channel"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Channel == nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		_, err := s.Exec(r.Context(), func(s *Server) (any, error) {
			return nil, s.MovePlayer(id, *body.Channel)
		})
		respond(w, http.StatusNoContent, nil, err)
	}
}

func kickPlayer(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		_, err := s.Exec(r.Context(), func(s *Server) (any, error) {
			return nil, s.Kick(id)
		})
		respond(w, http.StatusNoContent, nil, err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func respond(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		switch {
		case errors.Is(err, ErrPlayerNotFound), errors.Is(err, ErrChannelNotFound):
			status = http.StatusNotFound
		case errors.Is(err, ErrDefaultChannel):
			status = http.StatusConflict
		case errors.Is(err, ErrNotRunning):
			status = http.StatusServiceUnavailable
		default:
			status = http.StatusInternalServerError
		}
		logger.Log.Infof("admin request failed: %v", err)
		http.Error(w, err.Error(), status)
		return
	}
	if v == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
