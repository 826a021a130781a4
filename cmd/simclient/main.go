// Package main runs a headless simulation client against a running
// combat server: it joins, keeps a clock estimate alive with pings, runs
// the local predictor, and issues abilities on an interval.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hexfray/hexfray/internal/client"
	"github.com/hexfray/hexfray/internal/game/ability"
	"github.com/hexfray/hexfray/internal/game/actor"
	"github.com/hexfray/hexfray/internal/game/hex"
	"github.com/hexfray/hexfray/internal/protocol"
)

func main() {
	server := flag.String("server", "127.0.0.1:4750", "game server host:port")
	name := flag.String("name", "simbot", "player display name")
	duration := flag.Duration("duration", 30*time.Second, "how long to run")
	actEvery := flag.Duration("act-every", 2*time.Second, "interval between ability attempts")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ticket, err := fetchTicket(*server, *name)
	if err != nil {
		logger.Fatal("fetching ticket", zap.Error(err))
	}

	wsURL := url.URL{Scheme: "ws", Host: *server, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		logger.Fatal("dialing server", zap.Error(err))
	}
	defer conn.Close()

	join, err := protocol.Pack(protocol.MsgJoin, protocol.JoinRequest{Ticket: ticket, Name: *name})
	if err != nil {
		logger.Fatal("encoding join", zap.Error(err))
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, join); err != nil {
		logger.Fatal("sending join", zap.Error(err))
	}

	welcome, err := readWelcome(conn)
	if err != nil {
		logger.Fatal("join handshake", zap.Error(err))
	}
	logger.Info("joined",
		zap.String("actor", welcome.ActorID),
		zap.Duration("tick", welcome.TickEvery),
	)

	clock := client.NewClock(time.Duration(welcome.ElapsedMs) * time.Millisecond)

	// Mirror the local actor from the welcome snapshot.
	store := actor.NewStore()
	local := actor.New(welcome.ActorID, *name, actor.FactionPlayer, welcome.Level, welcome.Loc, welcome.Attrs)
	if err := store.Add(local); err != nil {
		logger.Fatal("mirroring local actor", zap.Error(err))
	}
	predictor := client.NewPredictor(welcome.ActorID, store, clock, logger)

	pings := newPingTracker()
	go readFrames(conn, predictor, clock, pings, logger)

	deadline := time.After(*duration)
	act := time.NewTicker(*actEvery)
	defer act.Stop()
	ping := time.NewTicker(2 * time.Second)
	defer ping.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	abilities := []ability.Type{
		ability.AutoAttack, ability.Overpower, ability.Lunge,
		ability.Knockback, ability.Counter, ability.Dodge, ability.Volley,
	}

	for {
		select {
		case <-deadline:
			logger.Info("run complete",
				zap.Duration("rtt", clock.RTT()),
				zap.Int("pending_predictions", predictor.PendingPredictions()),
			)
			return
		case <-ping.C:
			sent := time.Now()
			frame, err := protocol.Pack(protocol.MsgPing, protocol.Ping{SentMs: sent.UnixMilli()})
			if err == nil {
				pings.sent(sent)
				_ = conn.WriteMessage(websocket.BinaryMessage, frame)
			}
		case <-act.C:
			ab := abilities[rng.Intn(len(abilities))]
			var loc *hex.Hex
			if ab == ability.AutoAttack || ab == ability.Overpower ||
				ab == ability.Lunge || ab == ability.Volley {
				// Aim at an adjacent hex; the server rejects misses.
				n := (hex.Hex{}).Neighbors()
				target := n[rng.Intn(len(n))]
				loc = &target
			}
			predictor.PredictUseAbility(ab, loc)
			frame, err := protocol.Pack(protocol.MsgUseAbility, protocol.UseAbilityRequest{
				Ability:   int(ab),
				TargetLoc: loc,
			})
			if err != nil {
				logger.Warn("encoding use request", zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				logger.Fatal("connection lost", zap.Error(err))
			}
		}
	}
}

// pingTracker matches pongs to their send times for RTT sampling. The
// protocol echoes SentMs but local monotonic time is safer for deltas.
type pingTracker struct {
	ch chan time.Time
}

func newPingTracker() *pingTracker {
	return &pingTracker{ch: make(chan time.Time, 8)}
}

func (p *pingTracker) sent(at time.Time) {
	select {
	case p.ch <- at:
	default:
	}
}

func (p *pingTracker) match() (time.Time, bool) {
	select {
	case at := <-p.ch:
		return at, true
	default:
		return time.Time{}, false
	}
}

func fetchTicket(server, name string) (string, error) {
	resp, err := http.Get(fmt.Sprintf("http://%s/ticket?name=%s", server, url.QueryEscape(name)))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticket endpoint returned %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func readWelcome(conn *websocket.Conn) (protocol.Welcome, error) {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	_, frame, err := conn.ReadMessage()
	if err != nil {
		return protocol.Welcome{}, err
	}
	env, err := protocol.Unpack(frame)
	if err != nil {
		return protocol.Welcome{}, err
	}
	if env.T != protocol.MsgWelcome {
		return protocol.Welcome{}, fmt.Errorf("expected %s, got %s", protocol.MsgWelcome, env.T)
	}
	var welcome protocol.Welcome
	err = protocol.Decode(env, &welcome)
	return welcome, err
}

// readFrames applies every broadcast event to the predictor and feeds
// pongs into the clock estimator.
func readFrames(conn *websocket.Conn, predictor *client.Predictor, clock *client.Clock, pings *pingTracker, logger *zap.Logger) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			logger.Info("read loop ended", zap.Error(err))
			return
		}
		env, err := protocol.Unpack(frame)
		if err != nil {
			logger.Warn("bad frame", zap.Error(err))
			continue
		}
		if env.T == protocol.MsgPong {
			var pong protocol.Pong
			if err := protocol.Decode(env, &pong); err != nil {
				continue
			}
			if sentAt, ok := pings.match(); ok {
				clock.Observe(sentAt, time.Now(), time.Duration(pong.ElapsedMs)*time.Millisecond)
			}
			continue
		}
		ev, err := protocol.DecodeEvent(env)
		if err != nil {
			logger.Warn("decoding event", zap.String("type", env.T), zap.Error(err))
			continue
		}
		if ev != nil {
			predictor.Apply(ev)
		}
	}
}
