package collab

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/umeshinduranga/revit/backend/internal/auth"
	"go.uber.org/zap"
)

var errMissingHub = errors.New("collab: hub dependency required")

// SessionResolver resolves a web session cookie to validated claims.
type SessionResolver interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// GatewayConfig describes the dependencies for admitting websocket clients.
type GatewayConfig struct {
	Hub      *Hub
	Sessions SessionResolver
	Logger   *zap.Logger

	// CheckOrigin overrides the upgrader's origin policy. When nil, any
	// origin is accepted.
	CheckOrigin func(r *http.Request) bool
}

// Gateway upgrades HTTP requests to websocket connections and attaches
// identity metadata. Identity resolution is fail-open: a missing or invalid
// session never rejects the connection, it only leaves it anonymous.
type Gateway struct {
	hub      *Hub
	sessions SessionResolver
	logger   *zap.Logger
	upgrader websocket.Upgrader
	colorSeq atomic.Uint64
}

// NewGateway constructs a gateway with validated configuration.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if cfg.Hub == nil {
		return nil, errMissingHub
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Gateway{
		hub:      cfg.Hub,
		sessions: cfg.Sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}, nil
}

// ServeWS admits one websocket connection.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity := g.resolveIdentity(r)

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	participant := &Participant{
		ConnectionID: uuid.NewString(),
		Identity:     identity,
		Color:        colorForIndex(g.colorSeq.Add(1) - 1),
	}
	client := &Client{
		hub:         g.hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		participant: participant,
		logger:      g.logger,
	}

	g.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (g *Gateway) resolveIdentity(r *http.Request) Identity {
	if g.sessions == nil {
		return Identity{}
	}
	claims, err := g.sessions.ValidateRequest(r)
	if err != nil {
		// Fail open: presence and editing work without a login.
		return Identity{}
	}
	return Identity{
		UserID:    claims.UserID(),
		Username:  claims.Login,
		AvatarURL: claims.AvatarURL,
	}
}
