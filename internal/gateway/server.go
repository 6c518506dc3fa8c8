// Package gateway is the boundary between the wire and the engine: it
// upgrades websocket connections, maps named client events to lifecycle
// and registry calls, and serves the read-only history projection.
package gateway

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/do"
	"github.com/zhulik/livepoll/internal/core"
	"github.com/zhulik/livepoll/internal/httpserver"
	"github.com/zhulik/livepoll/internal/hub"
	"github.com/zhulik/livepoll/internal/lifecycle"
	"github.com/zhulik/livepoll/internal/registry"
	"github.com/zhulik/livepoll/internal/tally"
	"github.com/zhulik/livepoll/pkg/json"
	"github.com/zhulik/livepoll/pkg/utils"
)

type Server struct {
	*httpserver.Server

	injector *do.Injector
	hub      *hub.Hub
	manager  *lifecycle.Manager
	registry *registry.Registry
	storage  core.Storage
}

// NewServer creates a new Server instance.
func NewServer(injector *do.Injector) (*Server, error) {
	config, err := do.Invoke[core.Config](injector)
	if err != nil {
		return nil, err
	}

	server, err := httpserver.NewServer(injector, "gateway.Server", config.HTTPPort())
	if err != nil {
		return nil, err
	}

	connHub, err := do.Invoke[*hub.Hub](injector)
	if err != nil {
		return nil, err
	}

	manager, err := do.Invoke[*lifecycle.Manager](injector)
	if err != nil {
		return nil, err
	}

	reg, err := do.Invoke[*registry.Registry](injector)
	if err != nil {
		return nil, err
	}

	storage, err := do.Invoke[core.Storage](injector)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		Server:   server,
		injector: injector,
		hub:      connHub,
		manager:  manager,
		registry: reg,
		storage:  storage,
	}

	srv.Router.GET("/ws", srv.WebsocketHandler)
	srv.Router.GET("/polls/history", srv.HistoryHandler)
	srv.Router.GET("/pulse", srv.PulseHandler)

	return srv, nil
}

func (s *Server) PulseHandler(c *gin.Context) {
	for _, err := range s.injector.HealthCheck() {
		if err != nil {
			c.Error(err)

			return
		}
	}

	c.Status(http.StatusNoContent)
}

// HistoryHandler projects completed polls with their final tallies.
// Read-only, implemented purely over the storage and the aggregator.
func (s *Server) HistoryHandler(c *gin.Context) {
	ctx := c.Request.Context()

	polls, err := s.storage.CompletedPolls(ctx)
	if err != nil {
		c.Error(err)

		return
	}

	history, err := utils.MapErr(polls, func(poll core.Poll) (core.HistoryEntry, error) {
		counts, err := s.storage.VoteCounts(ctx, poll.ID)
		if err != nil {
			return core.HistoryEntry{}, err
		}

		return core.HistoryEntry{
			Question:   poll.Question,
			Results:    tally.Compute(poll.Options, counts),
			TotalVotes: tally.TotalVotes(counts),
			StartedAt:  poll.StartedAt,
		}, nil
	})
	if err != nil {
		c.Error(err)

		return
	}

	c.JSON(http.StatusOK, history)
}

func (s *Server) WebsocketHandler(c *gin.Context) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.Error(err)

		return
	}

	connection := s.hub.Add(conn)

	s.Logger.WithField("connID", connection.ID()).Debug("Client connected")

	go s.handle(conn, connection)
}

// handle runs the per-connection read loop until the transport drops,
// then performs best-effort disconnect cleanup.
func (s *Server) handle(ws *websocket.Conn, conn *hub.Connection) {
	ctx := context.Background()

	defer s.disconnect(ctx, conn)

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			s.Logger.WithField("connID", conn.ID()).Debug("Client disconnected")

			return
		}

		envelope, err := json.Unmarshal[hub.Envelope](payload)
		if err != nil {
			s.Logger.WithError(err).Warn("Dropping malformed frame")

			continue
		}

		// A panicking handler must never take the process down, only
		// this one event.
		err = utils.Try0(func() error {
			return s.dispatch(ctx, conn, envelope)
		})
		if err != nil {
			s.Logger.WithError(err).WithField("event", envelope.Event).Error("Event handler failed")
		}
	}
}

// disconnect clears the student's connection handle and rebroadcasts
// the roster. Failures are swallowed: nobody is waiting on cleanup.
func (s *Server) disconnect(ctx context.Context, conn *hub.Connection) {
	s.hub.Remove(conn.ID())
	conn.Close() //nolint:errcheck

	if err := s.registry.ClearConnection(ctx, conn.ID()); err != nil {
		s.Logger.WithError(err).Warn("Failed to clear connection")
	}

	s.broadcastRoster(ctx)
}
