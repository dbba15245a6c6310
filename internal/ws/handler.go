// Package ws owns the websocket transport: the per-connection session state
// machine (identify → hello → serve → teardown) and the inbound payload
// router.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"concierge/internal/protocol"
	"concierge/internal/registry"
)

const writeTimeout = 5 * time.Second

// DefaultIdentifyTimeout bounds how long a connection may take to send its
// IDENTIFY payload.
const DefaultIdentifyTimeout = 5 * time.Second

// Config carries the identification policy for new sessions.
type Config struct {
	// VersionReq is the semver range an IDENTIFY version must satisfy.
	VersionReq *semver.Constraints
	// Secret is the shared secret; empty skips the check.
	Secret string
	// FSRoot is the file endpoint root; the user's subtree is removed
	// best-effort on teardown. Empty disables the cleanup.
	FSRoot string
	// IdentifyTimeout overrides DefaultIdentifyTimeout when positive.
	IdentifyTimeout time.Duration
}

// Handler owns websocket transport for the hub.
type Handler struct {
	registry *registry.Registry
	cfg      Config
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler bound to reg.
func NewHandler(reg *registry.Registry, cfg Config) *Handler {
	if cfg.IdentifyTimeout <= 0 {
		cfg.IdentifyTimeout = DefaultIdentifyTimeout
	}
	return &Handler{
		registry: reg,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{protocol.Subprotocol},
			CheckOrigin:  func(_ *http.Request) bool { return true },
		},
	}
}

// Register binds websocket routes on an Echo router.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades one request and serves it until disconnect.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	h.serveConn(conn)
	return nil
}

func (h *Handler) serveConn(conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(1 << 20)

	name, closeCode := h.identify(conn)
	if closeCode != 0 {
		slog.Warn("identification failed", "remote", conn.RemoteAddr(), "close_code", closeCode)
		writeClose(conn, closeCode)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	client, err := h.registry.Register(name)
	if err != nil {
		if errors.Is(err, registry.ErrDuplicateName) {
			slog.Warn("duplicate identification", "name", name, "remote", conn.RemoteAddr())
			writeClose(conn, protocol.CloseDuplicateAuth)
			return
		}
		slog.Error("register client", "name", name, "err", err)
		writeClose(conn, protocol.CloseAuthFailed)
		return
	}

	defer h.teardown(client)

	// Outbound dispatcher: the mailbox's only consumer. Closing the socket
	// on exit unblocks the read loop so either pump ending ends the session.
	go func() {
		defer conn.Close()
		for {
			frame, ok := client.Mailbox().Next()
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Debug("socket write failed", "uuid", client.UUID(), "err", err)
				return
			}
		}
	}()

	seq := 0
	for {
		msgType, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.route(client, seq, frame)
		seq++
	}
}

// identify performs the INIT → REGISTERED handshake checks. A zero return
// code means success; anything else is the close code to reject with.
func (h *Handler) identify(conn *websocket.Conn) (string, int) {
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.IdentifyTimeout))

	msgType, frame, err := conn.ReadMessage()
	if err != nil {
		return "", protocol.CloseAuthFailed
	}
	if msgType != websocket.TextMessage {
		return "", protocol.CloseFatalDecode
	}

	var p protocol.Packet
	if err := json.Unmarshal(frame, &p); err != nil {
		return "", protocol.CloseFatalDecode
	}
	if p.Type != protocol.TypeIdentify || strings.TrimSpace(p.Name) == "" {
		return "", protocol.CloseNoAuth
	}
	if h.cfg.Secret != "" && p.Secret != h.cfg.Secret {
		return "", protocol.CloseBadSecret
	}

	version, err := semver.NewVersion(p.Version)
	if err != nil {
		return "", protocol.CloseBadVersion
	}
	if h.cfg.VersionReq != nil && !h.cfg.VersionReq.Check(version) {
		return "", protocol.CloseBadVersion
	}
	return p.Name, 0
}

// teardown deregisters the client, announces CLIENT_LEFT to the remaining
// clients and removes the user's file subtree best-effort.
func (h *Handler) teardown(client *registry.Client) {
	removed, err := h.registry.Deregister(client.UUID())
	if err != nil {
		// A concurrent deregister already cleaned up.
		return
	}

	if frame, err := protocol.Encode(protocol.StatusBroadcast(protocol.ClientLeft(removed.Info()))); err == nil {
		h.registry.BroadcastAll(frame)
	}

	if h.cfg.FSRoot != "" {
		dir := filepath.Join(h.cfg.FSRoot, removed.Name())
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("remove user fs dir", "dir", dir, "err", err)
		}
	}
	slog.Debug("session ended", "uuid", client.UUID(), "name", client.Name())
}

func writeClose(conn *websocket.Conn, code int) {
	msg := websocket.FormatCloseMessage(code, "identification failed")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}
