// Package gameserver runs the websocket acceptor, session hub, and fixed
// simulation loop that drive authoritative combat.
package gameserver

import (
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hexfray/hexfray/internal/config"
	"github.com/hexfray/hexfray/internal/game/ability"
	"github.com/hexfray/hexfray/internal/game/actor"
	"github.com/hexfray/hexfray/internal/game/attr"
	"github.com/hexfray/hexfray/internal/game/combat"
	"github.com/hexfray/hexfray/internal/game/hex"
	"github.com/hexfray/hexfray/internal/game/session"
	"github.com/hexfray/hexfray/internal/protocol"
	"github.com/hexfray/hexfray/internal/storage/sqlite"
)

// Server owns the authoritative combat engine and every connected
// session. All engine access happens under mu: the tick loop and the
// per-connection read loops serialize through it, which keeps the
// simulation deterministic for a given input order.
type Server struct {
	cfg       config.Config
	logger    *zap.Logger
	sessions  *session.Manager
	tickets   *TicketIssuer
	analytics *sqlite.Analytics

	mu     sync.Mutex
	engine *combat.Engine

	upgrader websocket.Upgrader
	httpSrv  *http.Server
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewServer wires a Server from configuration. analytics may be nil to
// disable persistence.
//
// Precondition: logger must be non-nil.
func NewServer(cfg config.Config, logger *zap.Logger, analytics *sqlite.Analytics) *Server {
	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	store := actor.NewStore()
	engine := combat.NewEngine(store, rand.New(rand.NewSource(seed)), logger)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		sessions: session.NewManager(),
		tickets:  NewTicketIssuer(cfg.Auth.Secret, cfg.Auth.TicketTTL),
		engine:   engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		analytics: analytics,
		stop:      make(chan struct{}),
	}
}

// Tickets exposes the ticket issuer so a lobby endpoint can mint join
// tickets.
func (s *Server) Tickets() *TicketIssuer { return s.tickets }

// SpawnHostile adds an NPC actor to the arena.
//
// Postcondition: The actor is registered and will attack on its cadence.
func (s *Server) SpawnHostile(name string, level int, loc hex.Hex, attrs attr.Attributes) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	a := actor.New(id, name, actor.FactionHostile, level, loc, attrs)
	if err := s.engine.Store().Add(a); err != nil {
		return "", err
	}
	s.logger.Info("spawned hostile",
		zap.String("actor", id),
		zap.String("name", name),
		zap.Int("level", level),
	)
	return id, nil
}

// Start binds the websocket listener and runs the simulation loop. It
// blocks until Stop is called or the listener fails.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/ticket", s.handleTicket)

	s.httpSrv = &http.Server{
		Addr:    s.cfg.Server.Addr(),
		Handler: mux,
	}

	s.wg.Add(1)
	go s.tickLoop()

	s.logger.Info("game server listening",
		zap.String("addr", s.cfg.Server.Addr()),
		zap.Duration("tick", s.cfg.Simulation.TickInterval),
	)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts down the listener and the simulation loop.
func (s *Server) Stop() {
	close(s.stop)
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
	}
	s.wg.Wait()
	for _, sess := range s.sessions.All() {
		_ = s.sessions.RemovePlayer(sess.UID)
	}
}

// tickLoop advances the engine on the fixed step and broadcasts whatever
// each pass produces.
func (s *Server) tickLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Simulation.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now

			s.mu.Lock()
			events := s.engine.Tick(dt)
			s.broadcast(events)
			s.mu.Unlock()
		}
	}
}

// broadcast encodes each event once and pushes it to every session. A
// full outbox drops the frame for that session; the next authoritative
// event for the same state resynchronizes it.
//
// Precondition: the caller holds mu. Outbox pushes never block, so the
// engine lock also serializes frame order: sessions observe events in
// the order the engine applied them.
func (s *Server) broadcast(events []protocol.Event) {
	if len(events) == 0 {
		return
	}
	sessions := s.sessions.All()
	for _, ev := range events {
		s.record(ev)
		frame, err := protocol.Pack(ev.EventType(), ev)
		if err != nil {
			s.logger.Error("encoding event", zap.String("type", ev.EventType()), zap.Error(err))
			continue
		}
		for _, sess := range sessions {
			if err := sess.Outbox.Push(frame); err != nil {
				s.logger.Warn("dropping frame",
					zap.String("session", sess.UID),
					zap.String("type", ev.EventType()),
				)
			}
		}
	}
}

// record feeds the analytics writer. No-op when analytics is disabled.
func (s *Server) record(ev protocol.Event) {
	if s.analytics == nil {
		return
	}
	switch ev := ev.(type) {
	case protocol.AbilityUsed:
		s.analytics.Track(sqlite.EventAbilityUsed, ev.Actor, "", ability.Type(ev.Ability).String(), 0)
	case protocol.AbilityFailed:
		s.analytics.Track(sqlite.EventAbilityFailed, ev.Actor, "", ability.Type(ev.Ability).String(), 0)
	case protocol.ApplyDamage:
		kind := sqlite.EventDamageDealt
		if ev.Evaded {
			kind = sqlite.EventDamageEvaded
		}
		s.analytics.Track(kind, ev.Actor, ev.Source, "", ev.Damage)
		if ev.Overflow {
			s.analytics.Track(sqlite.EventOverflow, ev.Actor, ev.Source, "", ev.Damage)
		}
		if !ev.Evaded && ev.Health <= 0 {
			s.analytics.Track(sqlite.EventDeath, ev.Actor, ev.Source, "", 0)
		}
	}
}

// handleTicket mints a join ticket for the requested name. In production
// this sits behind the lobby's own authentication; here it is an open
// endpoint for development and the simulation client.
func (s *Server) handleTicket(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}
	ticket, err := s.tickets.Issue(name)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, ticket)
}

// handleWS upgrades the connection and runs the join handshake. The
// first frame must be a valid join request; anything else closes the
// connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess, err := s.join(conn)
	if err != nil {
		s.logger.Warn("join rejected", zap.Error(err))
		_ = conn.Close()
		return
	}

	s.wg.Add(1)
	go s.writeLoop(conn, sess)
	s.readLoop(conn, sess)
}

// join consumes the handshake frame, validates the ticket, and registers
// the player actor and session.
func (s *Server) join(conn *websocket.Conn) (*session.PlayerSession, error) {
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading join frame: %w", err)
	}
	env, err := protocol.Unpack(frame)
	if err != nil {
		return nil, err
	}
	if env.T != protocol.MsgJoin {
		return nil, fmt.Errorf("expected %s, got %s", protocol.MsgJoin, env.T)
	}
	var req protocol.JoinRequest
	if err := protocol.Decode(env, &req); err != nil {
		return nil, err
	}
	name, err := s.tickets.Validate(req.Ticket)
	if err != nil {
		return nil, fmt.Errorf("validating ticket: %w", err)
	}
	if req.Name != "" {
		name = req.Name
	}

	actorID := uuid.NewString()
	player := actor.New(actorID, name, actor.FactionPlayer, defaultPlayerLevel, hex.Hex{}, defaultPlayerAttrs())

	// Registration and the welcome push happen under the engine lock so
	// no tick broadcast can reach the new outbox ahead of the welcome.
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.Store().Add(player); err != nil {
		return nil, err
	}

	sess, err := s.sessions.AddPlayer(uuid.NewString(), name, actorID, s.cfg.Server.SendBuffer)
	if err != nil {
		s.engine.Store().Remove(actorID)
		return nil, err
	}

	welcome, err := protocol.Pack(protocol.MsgWelcome, protocol.Welcome{
		ActorID:   actorID,
		Attrs:     player.Attrs,
		Level:     player.Level,
		Loc:       player.Loc,
		ElapsedMs: s.engine.Elapsed().Milliseconds(),
		TickEvery: s.cfg.Simulation.TickInterval,
	})
	if err != nil {
		s.engine.Store().Remove(actorID)
		_ = s.sessions.RemovePlayer(sess.UID)
		return nil, err
	}
	if err := sess.Outbox.Push(welcome); err != nil {
		s.engine.Store().Remove(actorID)
		_ = s.sessions.RemovePlayer(sess.UID)
		return nil, err
	}

	if s.analytics != nil {
		s.analytics.Track(sqlite.EventSessionStart, actorID, "", "", 0)
	}
	s.logger.Info("player joined",
		zap.String("actor", actorID),
		zap.String("name", name),
	)
	return sess, nil
}

// readLoop dispatches inbound frames until the connection drops.
func (s *Server) readLoop(conn *websocket.Conn, sess *session.PlayerSession) {
	defer s.leave(conn, sess)

	conn.SetReadDeadline(time.Now().Add(s.cfg.Server.PongTimeout))
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.Server.PongTimeout))

		env, err := protocol.Unpack(frame)
		if err != nil {
			s.logger.Debug("bad frame", zap.String("session", sess.UID), zap.Error(err))
			continue
		}
		switch env.T {
		case protocol.MsgUseAbility:
			s.handleUseAbility(sess, env)
		case protocol.MsgPing:
			s.handlePing(sess, env)
		default:
			s.logger.Debug("unknown message type",
				zap.String("session", sess.UID),
				zap.String("type", env.T),
			)
		}
	}
}

func (s *Server) handleUseAbility(sess *session.PlayerSession, env protocol.Envelope) {
	var req protocol.UseAbilityRequest
	if err := protocol.Decode(env, &req); err != nil {
		s.logger.Debug("bad use request", zap.String("session", sess.UID), zap.Error(err))
		return
	}

	s.mu.Lock()
	events := s.engine.UseAbility(sess.ActorID, ability.Type(req.Ability), req.TargetLoc)
	s.broadcast(events)
	s.mu.Unlock()
}

func (s *Server) handlePing(sess *session.PlayerSession, env protocol.Envelope) {
	var ping protocol.Ping
	if err := protocol.Decode(env, &ping); err != nil {
		return
	}
	s.mu.Lock()
	elapsed := s.engine.Elapsed()
	s.mu.Unlock()

	frame, err := protocol.Pack(protocol.MsgPong, protocol.Pong{
		SentMs:    ping.SentMs,
		ElapsedMs: elapsed.Milliseconds(),
	})
	if err != nil {
		return
	}
	_ = sess.Outbox.Push(frame)
}

// writeLoop drains the session outbox onto the wire.
func (s *Server) writeLoop(conn *websocket.Conn, sess *session.PlayerSession) {
	defer s.wg.Done()
	for frame := range sess.Outbox.Frames() {
		if s.cfg.Server.WriteTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(s.cfg.Server.WriteTimeout))
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			s.logger.Debug("write failed", zap.String("session", sess.UID), zap.Error(err))
			_ = conn.Close()
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
}

// leave tears down a disconnected session. The actor stays in the arena
// briefly dead or alive; removing it immediately keeps the arena simple.
func (s *Server) leave(conn *websocket.Conn, sess *session.PlayerSession) {
	_ = conn.Close()
	s.mu.Lock()
	s.engine.Store().Remove(sess.ActorID)
	s.mu.Unlock()
	if err := s.sessions.RemovePlayer(sess.UID); err == nil {
		if s.analytics != nil {
			s.analytics.Track(sqlite.EventSessionEnd, sess.ActorID, "", "", 0)
		}
		s.logger.Info("player left",
			zap.String("actor", sess.ActorID),
			zap.String("name", sess.Name),
		)
	}
}

const defaultPlayerLevel = 5

// defaultPlayerAttrs is the starting spread until loadout selection
// exists: a committed Focus line for queue depth with moderate Instinct.
func defaultPlayerAttrs() attr.Attributes {
	return attr.Attributes{
		Might:    30,
		Grace:    15,
		Vitality: 30,
		Focus:    45,
		Instinct: 20,
		Presence: 10,
	}
}
