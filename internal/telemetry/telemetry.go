// Package telemetry is an optional, control-thread-side observability
// surface: it mirrors a World's polled events to any connected websocket
// client as JSON, for external dashboards. It never touches the render
// thread, the frame ring, or the device callback, so it cannot violate any
// real-time constraint.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/tr-nc/petalsonic/internal/render"
)

const pollInterval = 20 * time.Millisecond

// Server hosts the telemetry endpoint. Construct with New and start with
// Start; Stop shuts it down gracefully.
type Server struct {
	addr string
	poll func() []render.Event

	echo     *echo.Echo
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New constructs a telemetry server that will poll for new events and
// broadcast them as JSON to every connected websocket client. World passes
// the Poll method of a bus reserved for telemetry, which its event fan-out
// fills alongside the bus PollEvents drains.
func New(addr string, poll func() []render.Event) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		addr:    addr,
		poll:    poll,
		echo:    e,
		clients: make(map[*websocket.Conn]struct{}),
		stop:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
	e.GET("/events", s.handleWebSocket)
	return s
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start begins serving HTTP in the background and starts the poll loop.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.echo.Start(s.addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(50 * time.Millisecond):
	}

	s.wg.Add(1)
	go s.pollLoop()
	return nil
}

// Stop closes every connected websocket and shuts the HTTP server down.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(ctx)
		s.wg.Wait()

		s.mu.Lock()
		for conn := range s.clients {
			conn.Close()
		}
		s.clients = nil
		s.mu.Unlock()
	})
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Debug("telemetry: websocket upgrade failed", "remote", c.RealIP(), "err", err)
		return nil
	}
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()
	slog.Debug("telemetry: client connected", "remote", c.RealIP())

	// Drain reads so the connection's close is observed promptly; clients
	// don't send anything meaningful on this endpoint.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

func (s *Server) pollLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			events := s.poll()
			if len(events) == 0 {
				continue
			}
			s.broadcast(events)
		}
	}
}

func (s *Server) broadcast(events []render.Event) {
	payload, err := json.Marshal(events)
	if err != nil {
		slog.Error("telemetry: marshal events", "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Debug("telemetry: write failed, dropping client", "err", err)
			delete(s.clients, conn)
			conn.Close()
		}
	}
}
