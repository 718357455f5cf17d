package gateway

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/g4klx/dapnetgateway/internal/downstream"
	"github.com/g4klx/dapnetgateway/internal/filter"
	"github.com/g4klx/dapnetgateway/internal/paging"
	"github.com/g4klx/dapnetgateway/internal/upstream"
)

// tickInterval is the event loop cadence. The loop is
// cooperative and single-threaded; apart from the published Status copy,
// no component it touches needs a mutex.
const tickInterval = 10 * time.Millisecond

// Config collects the pieces Gateway needs to dial and log in, beyond
// what the Link/Engine/Filter/Dispatcher types already hold.
type Config struct {
	Version  string
	Callsign string
	AuthKey  string
}

// Gateway is the supervisor: it owns the upstream and downstream links,
// the protocol engine, the filter, and the dispatcher, and drives them
// all from one goroutine.
type Gateway struct {
	cfg Config

	up     *upstream.Link
	engine *upstream.Engine
	down   *downstream.Link
	filt   *filter.Filter
	disp   *Dispatcher

	pendingSchedule paging.Schedule
	hasPending      bool

	statusMu sync.RWMutex
	status   Status
}

// Status is a point-in-time copy of gateway state, safe to read from
// outside the event loop. The loop publishes a fresh copy once per tick;
// everything else in the gateway stays single-threaded.
type Status struct {
	CurrentSlot   int
	HasSchedule   bool
	SentCodewords int
	ModemIdle     bool
	QueueDepth    int
	LoggedIn      bool
	FailCount     int
}

// New constructs a Gateway. now is injected so tests can control the slot
// clock; production callers pass time.Now.
func New(cfg Config, up *upstream.Link, down *downstream.Link, filt *filter.Filter, now func() time.Time) *Gateway {
	return &Gateway{
		cfg:    cfg,
		up:     up,
		engine: upstream.NewEngine(),
		down:   down,
		filt:   filt,
		disp:   NewDispatcher(NewSlotClock(now)),
	}
}

// Status returns the most recently published state copy.
func (g *Gateway) Status() Status {
	g.statusMu.RLock()
	defer g.statusMu.RUnlock()
	return g.status
}

// publishStatus snapshots the dispatcher and engine from inside the event
// loop, where reading them is safe, and stores the copy for Status.
func (g *Gateway) publishStatus() {
	snap := g.disp.Snapshot()
	st := Status{
		CurrentSlot:   snap.CurrentSlot,
		HasSchedule:   snap.HasSchedule,
		SentCodewords: snap.SentCodewords,
		ModemIdle:     snap.ModemIdle,
		QueueDepth:    snap.QueueDepth,
		LoggedIn:      g.engine.LoggedIn,
		FailCount:     g.engine.FailCount,
	}

	g.statusMu.Lock()
	g.status = st
	g.statusMu.Unlock()
}

// Run opens both links, logs into the upstream, and then drives the event
// loop until ctx is cancelled. A failure to resolve/open the downstream
// peer or to build a valid login line is fatal and returned immediately;
// everything past that point is handled by the reconnect supervisor and
// never returns an error on its own.
func (g *Gateway) Run(ctx context.Context) error {
	if _, err := upstream.LoginLine(g.cfg.Version, g.cfg.Callsign, g.cfg.AuthKey); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	if _, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", g.up.Address, g.up.Port)); err != nil {
		return fmt.Errorf("gateway: unable to resolve the DAPNET server address: %w", err)
	}

	if err := g.down.Open(); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	defer g.down.Close()

	if err := g.connectAndLogin(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer g.up.Close()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.tick(ctx)
		}
	}
}

// tick runs exactly one pass of the main loop, always in the same order:
// downstream beacon, upstream line, filter+enqueue, slot-clock advance,
// send decision.
func (g *Gateway) tick(ctx context.Context) {
	switch g.down.ReadBeacon(time.Now().Add(time.Millisecond)) {
	case downstream.BeaconIdle:
		g.disp.SetModemIdle(true)
	case downstream.BeaconBusy:
		g.disp.SetModemIdle(false)
	}

	line, status := g.up.ReadLine(time.Millisecond)
	switch status {
	case upstream.ReadLine:
		g.handleUpstreamLine(ctx, line)
	case upstream.ReadClosed, upstream.ReadError:
		log.Warn("Lost connection to DAPNET, reconnecting")
		g.up.Close()
		if err := g.connectAndLogin(ctx); err != nil {
			log.Errorf("Unable to reconnect to DAPNET: %v", err)
		}
		return
	}

	g.disp.AdvanceSlot(g.takePendingSchedule)

	g.disp.TrySend(func(msg paging.Message) {
		_ = g.down.Send(msg)
	})

	g.publishStatus()
}

func (g *Gateway) handleUpstreamLine(ctx context.Context, line string) {
	replies, event := g.engine.HandleLine(line)
	for _, reply := range replies {
		_ = g.up.WriteLine(reply)
	}

	switch event.Kind {
	case upstream.EventMessage:
		if ok, reason := g.filt.Accept(event.Message); ok {
			g.disp.Enqueue(event.Message)
			log.Debugf("Queued message to %07d, type %d", event.Message.RIC, event.Message.Type)
		} else {
			log.Debugf("Rejecting message to %07d: %s", event.Message.RIC, reason)
		}
	case upstream.EventSchedule:
		g.pendingSchedule = event.Schedule
		g.hasPending = true
	case upstream.EventLoginFailed:
		// The ack is already on the wire; nothing productive is possible
		// until the backoff has elapsed.
		g.sleepWithContext(ctx, event.Backoff)
	}
}

// takePendingSchedule is the one-shot handoff the dispatcher pulls from
// at each slot boundary.
func (g *Gateway) takePendingSchedule() (paging.Schedule, bool) {
	if !g.hasPending {
		return paging.Schedule{}, false
	}
	g.hasPending = false
	return g.pendingSchedule, true
}

// connectAndLogin is the supervisor-driven reconnect loop: dial, send the
// login line, and wait for the upstream to either confirm login (via a
// time-sync line) or report a login failure, sleeping the fixed backoff
// table between attempts. It only returns once logged in or ctx is
// cancelled.
func (g *Gateway) connectAndLogin(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := g.up.Open(); err != nil {
			log.Warnf("Unable to connect to DAPNET: %v", err)
			g.sleepWithContext(ctx, upstream.BackoffFor(g.engine.FailCount))
			continue
		}

		login, err := upstream.LoginLine(g.cfg.Version, g.cfg.Callsign, g.cfg.AuthKey)
		if err != nil {
			g.up.Close()
			return fmt.Errorf("gateway: %w", err)
		}

		if err := g.up.WriteLine(login); err != nil {
			g.up.Close()
			g.sleepWithContext(ctx, upstream.BackoffFor(g.engine.FailCount))
			continue
		}

		g.engine.LoggedIn = false
		if g.waitForLogin(ctx) {
			return nil
		}

		g.up.Close()
	}
}

// waitForLogin blocks, polling the upstream link, until the engine reports
// LoggedIn, the upstream refuses the login (the backoff is slept here
// before giving up on this attempt), or the connection drops.
func (g *Gateway) waitForLogin(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}

		line, status := g.up.ReadLine(100 * time.Millisecond)
		switch status {
		case upstream.ReadLine:
			replies, event := g.engine.HandleLine(line)
			for _, reply := range replies {
				_ = g.up.WriteLine(reply)
			}
			if event.Kind == upstream.EventLoginFailed {
				g.sleepWithContext(ctx, event.Backoff)
				return false
			}
			if g.engine.LoggedIn {
				return true
			}
		case upstream.ReadClosed, upstream.ReadError:
			return false
		}
	}
}

func (g *Gateway) sleepWithContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
