package game

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"runtime/debug"
	"time"

	"arena/internal/protocol"
	"arena/internal/store"
)

var (
	// ErrHubStopped is returned by entry points once Run has exited.
	ErrHubStopped = errors.New("hub stopped")
	// ErrJoinFailed is returned by Join when the join handler panicked. The
	// connection has been removed and closed.
	ErrJoinFailed = errors.New("join failed")
)

// StatsSink receives end-of-session stats. Submit must not block.
type StatsSink interface {
	Submit(userRef string, d store.Delta) bool
}

// HubConfig holds Hub dependencies. Zero values get defaults in NewHub.
type HubConfig struct {
	MaxPlayers   int
	RespawnDelay time.Duration
	Arena        Arena
	Stats        StatsSink // nil disables stats persistence
	Scheduler    Scheduler
	Rand         *rand.Rand
	EventLog     *EventLog
	Metrics      Metrics
	InboxSize    int
}

// Hub is the single owner of the arena state. Every mutation and the broadcasts
// it causes run inside one command handler on the Run goroutine, so other
// connections never observe a half-applied update.
type Hub struct {
	cfg      HubConfig
	registry *Registry
	fan      *fanout
	timers   map[string]Timer
	rng      *rand.Rand

	inbox chan any
	done  chan struct{}
}

// Commands posted to the inbox

type joinCmd struct {
	conn    Conn
	name    string
	userRef string
	reply   chan error
}

type moveCmd struct {
	id   string
	move protocol.PlayerMove
}

type shootCmd struct {
	shooterID string
	targetID  string
}

type respawnCmd struct {
	id  string
	req protocol.RespawnRequest
}

type scoreCmd struct {
	id    string
	score int
}

type leaveCmd struct {
	id string
}

// autoRespawnCmd is posted by the respawn timer. life is the victim's respawn
// generation at the time of death.
type autoRespawnCmd struct {
	id   string
	life uint64
}

type rosterCmd struct {
	reply chan protocol.Roster
}

// NewHub creates a hub. Call Run to start processing.
func NewHub(cfg HubConfig) *Hub {
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = 2
	}
	if cfg.RespawnDelay <= 0 {
		cfg.RespawnDelay = 3 * time.Second
	}
	if cfg.Arena.HalfExtent <= 0 {
		cfg.Arena = DefaultArena
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = RealScheduler
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}

	return &Hub{
		cfg:      cfg,
		registry: NewRegistry(cfg.MaxPlayers),
		fan:      newFanout(cfg.Metrics),
		timers:   make(map[string]Timer),
		rng:      cfg.Rand,
		inbox:    make(chan any, cfg.InboxSize),
		done:     make(chan struct{}),
	}
}

// MaxPlayers returns the configured capacity.
func (h *Hub) MaxPlayers() int {
	return h.registry.MaxPlayers()
}

// Run processes commands until ctx is cancelled. On exit every remaining
// player is torn down (stats flushed) and its connection closed.
func (h *Hub) Run(ctx context.Context) {
	log.Printf("🎮 Hub started (max players: %d, respawn delay: %v)", h.cfg.MaxPlayers, h.cfg.RespawnDelay)
	defer close(h.done)
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.inbox:
			h.dispatch(cmd)
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// dispatch runs one handler. A panic is logged and the hub keeps serving.
func (h *Hub) dispatch(cmd any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Hub handler panic on %T: %v\n%s", cmd, r, debug.Stack())
			if c, ok := cmd.(joinCmd); ok {
				h.abortJoin(c.conn)
				c.reply <- ErrJoinFailed
			}
		}
	}()

	switch c := cmd.(type) {
	case joinCmd:
		c.reply <- h.handleJoin(c)
	case moveCmd:
		h.handleMove(c)
	case shootCmd:
		h.handleShoot(c)
	case respawnCmd:
		h.handleRespawn(c)
	case scoreCmd:
		h.handleScore(c)
	case leaveCmd:
		h.handleLeave(c)
	case autoRespawnCmd:
		h.handleAutoRespawn(c)
	case rosterCmd:
		c.reply <- h.registry.Roster()
	default:
		log.Printf("⚠️ Hub: unknown command %T", cmd)
	}
}

// post enqueues cmd unless ctx is done or the hub has stopped.
func (h *Hub) post(ctx context.Context, cmd any) error {
	select {
	case h.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
}

// ============================================================================
// Entry points (safe for concurrent use)
// ============================================================================

// Join registers conn under name. It returns ErrCapacityExceeded after the
// connection has been sent maxPlayersReached and closed.
func (h *Hub) Join(ctx context.Context, conn Conn, name, userRef string) error {
	reply := make(chan error, 1)
	if err := h.post(ctx, joinCmd{conn: conn, name: name, userRef: userRef, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
}

// Move applies a client transform update.
func (h *Hub) Move(ctx context.Context, id string, m protocol.PlayerMove) error {
	return h.post(ctx, moveCmd{id: id, move: m})
}

// Shoot resolves one hit from shooterID on targetID.
func (h *Hub) Shoot(ctx context.Context, shooterID, targetID string) error {
	return h.post(ctx, shootCmd{shooterID: shooterID, targetID: targetID})
}

// Respawn handles a client-initiated respawn.
func (h *Hub) Respawn(ctx context.Context, id string, req protocol.RespawnRequest) error {
	return h.post(ctx, respawnCmd{id: id, req: req})
}

// UpdateScore stores the client-reported score.
func (h *Hub) UpdateScore(ctx context.Context, id string, score int) error {
	return h.post(ctx, scoreCmd{id: id, score: score})
}

// Leave runs disconnect cleanup for id. Unknown ids are ignored.
func (h *Hub) Leave(ctx context.Context, id string) error {
	return h.post(ctx, leaveCmd{id: id})
}

// Roster returns a snapshot of every player. Because it is served from the
// inbox it also observes every command posted before it.
func (h *Hub) Roster(ctx context.Context) (protocol.Roster, error) {
	reply := make(chan protocol.Roster, 1)
	if err := h.post(ctx, rosterCmd{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return nil, ErrHubStopped
	}
}

// ============================================================================
// Handlers (Run goroutine only)
// ============================================================================

func (h *Hub) handleJoin(c joinCmd) error {
	id := c.conn.ID()
	res, err := h.registry.Join(id, c.name, c.userRef)

	if res.Evicted != nil {
		log.Printf("🔁 %s reconnected, evicting stale connection %s", c.name, res.Evicted.ID)
		if old := h.fan.remove(res.Evicted.ID); old != nil {
			old.Close()
		}
		flushed := h.teardown(res.Evicted)
		h.cfg.EventLog.EmitSimple(EventTypeEvict, res.Evicted.ID, leavePayload(res.Evicted, flushed))
		h.fan.toAll(protocol.EventPlayerLeft, protocol.PlayerLeftPayload{
			PlayerID: res.Evicted.ID,
			Players:  h.registry.Roster(),
		})
	}
	if res.Replaced != nil {
		h.teardown(res.Replaced)
	}

	if err != nil {
		log.Printf("🚫 Join rejected for %s: %v (%d/%d)", c.name, err, h.registry.Len(), h.registry.MaxPlayers())
		h.cfg.Metrics.JoinRejected()
		h.cfg.EventLog.EmitSimple(EventTypeRejected, id, JoinPayload{PlayerID: id, Name: c.name, Players: h.registry.Len()})
		h.fan.remove(id)
		h.fan.toConn(c.conn, protocol.EventMaxPlayersReached, protocol.MaxPlayersPayload{MaxPlayers: h.registry.MaxPlayers()})
		c.conn.Close()
		h.cfg.Metrics.SetPlayers(h.registry.Len())
		return err
	}

	h.fan.add(c.conn)
	roster := h.registry.Roster()
	h.fan.toOne(id, protocol.EventPlayerInfo, protocol.PlayerInfoPayload{ID: id, Players: roster})
	h.fan.toAll(protocol.EventPlayerJoined, protocol.RosterPayload{Players: roster})

	h.cfg.Metrics.SetPlayers(h.registry.Len())
	h.cfg.EventLog.EmitSimple(EventTypeJoin, id, JoinPayload{PlayerID: id, Name: c.name, UserRef: c.userRef, Players: h.registry.Len()})
	log.Printf("👤 %s joined the arena (%d/%d)", c.name, h.registry.Len(), h.registry.MaxPlayers())
	return nil
}

// abortJoin undoes whatever a panicking join left behind. The player is
// dropped without a stats flush since it never finished joining.
func (h *Hub) abortJoin(conn Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Hub: cleanup after failed join panicked: %v", r)
		}
	}()

	id := conn.ID()
	h.fan.remove(id)
	h.cancelTimer(id)
	p := h.registry.Remove(id)
	h.cfg.Metrics.SetPlayers(h.registry.Len())
	conn.Close()

	if p != nil {
		h.fan.toAll(protocol.EventPlayerLeft, protocol.PlayerLeftPayload{
			PlayerID: id,
			Players:  h.registry.Roster(),
		})
	}
}

func (h *Hub) handleMove(c moveCmd) {
	p := h.registry.Get(c.id)
	if p == nil {
		return
	}
	p.ApplyMovement(c.move.Position, c.move.Rotation, c.move.Health)

	h.fan.toAllExcept(c.id, protocol.EventPlayerMoved, protocol.PlayerMovedPayload{
		ID:       p.ID,
		Name:     p.Name,
		Position: p.Position,
		Rotation: p.Rotation,
		Health:   p.Health,
	})
}

func (h *Hub) handleShoot(c shootCmd) {
	shooter := h.registry.Get(c.shooterID)
	if shooter == nil {
		return
	}

	// The muzzle flash is cosmetic and goes out whatever the shot resolves to.
	h.fan.toAllExcept(shooter.ID, protocol.EventPlayerShot, protocol.PlayerShotPayload{
		ShooterID: shooter.ID,
		Position:  shooter.Position,
	})

	res := ResolveShot(h.registry, c.shooterID, c.targetID)
	h.cfg.Metrics.ShotResolved(res.Outcome)
	if res.Outcome == ShotIgnored {
		return
	}
	victim := res.Victim

	h.cfg.EventLog.EmitSimple(EventTypeDamage, shooter.ID, DamagePayload{
		ShooterID: shooter.ID,
		VictimID:  victim.ID,
		Damage:    res.Damage,
		VictimHP:  victim.Health,
	})

	if res.Outcome == ShotKilled {
		log.Printf("💀 %s killed %s", shooter.Name, victim.Name)
		h.fan.toAll(protocol.EventPlayerDied, protocol.PlayerDiedPayload{VictimID: victim.ID})
		h.scheduleAutoRespawn(victim)
		h.cfg.EventLog.EmitSimple(EventTypeKill, shooter.ID, KillPayload{
			ShooterID:    shooter.ID,
			VictimID:     victim.ID,
			ShooterKills: shooter.Kills,
			VictimDeaths: victim.Deaths,
		})
	}

	h.fan.toOne(victim.ID, protocol.EventPlayerHit, protocol.PlayerHitPayload{
		VictimID:  victim.ID,
		ShooterID: shooter.ID,
		Health:    victim.Health,
		Damage:    res.Damage,
	})
	h.fan.toAll(protocol.EventStatsUpdate, protocol.RosterPayload{Players: h.registry.Roster()})
}

func (h *Hub) handleRespawn(c respawnCmd) {
	p := h.registry.Get(c.id)
	if p == nil {
		return
	}

	pos := h.cfg.Arena.RandomSpawn(h.rng)
	if c.req.Position != nil {
		pos = *c.req.Position
	}
	rot := h.cfg.Arena.RandomYaw(h.rng)
	if c.req.Rotation != nil {
		rot = *c.req.Rotation
	}

	h.cancelTimer(p.ID)
	p.Respawn(pos, rot)
	h.cfg.EventLog.EmitSimple(EventTypeRespawn, p.ID, RespawnPayload{PlayerID: p.ID, Position: p.Position})

	h.fan.toAll(protocol.EventPlayerRespawned, respawnedPayload(p))
	h.fan.toAll(protocol.EventStatsUpdate, protocol.RosterPayload{Players: h.registry.Roster()})
}

func (h *Hub) handleScore(c scoreCmd) {
	p := h.registry.Get(c.id)
	if p == nil {
		return
	}
	score := c.score
	p.Score = &score
	h.fan.toAll(protocol.EventScoreUpdate, protocol.RosterPayload{Players: h.registry.Roster()})
}

func (h *Hub) handleLeave(c leaveCmd) {
	// The connection is gone either way; forget it even if it never joined.
	h.fan.remove(c.id)

	p := h.registry.Remove(c.id)
	if p == nil {
		return
	}

	flushed := h.teardown(p)
	h.cfg.EventLog.EmitSimple(EventTypeLeave, p.ID, leavePayload(p, flushed))
	h.cfg.Metrics.SetPlayers(h.registry.Len())
	log.Printf("👋 %s left the arena after %v (%d/%d)", p.Name, time.Since(p.JoinedAt).Round(time.Second), h.registry.Len(), h.registry.MaxPlayers())

	h.fan.toAll(protocol.EventPlayerLeft, protocol.PlayerLeftPayload{
		PlayerID: p.ID,
		Players:  h.registry.Roster(),
	})
}

// handleAutoRespawn re-validates against the current state: the player must
// still be registered, still dead, and dead in the same life the timer was
// scheduled for.
func (h *Hub) handleAutoRespawn(c autoRespawnCmd) {
	p := h.registry.Get(c.id)
	if p == nil || !p.IsDead() || p.Life() != c.life {
		return
	}
	delete(h.timers, c.id)

	p.Respawn(h.cfg.Arena.RandomSpawn(h.rng), p.Rotation)
	h.cfg.Metrics.AutoRespawned()
	h.cfg.EventLog.EmitSimple(EventTypeAutoRespawn, p.ID, RespawnPayload{PlayerID: p.ID, Position: p.Position})
	log.Printf("♻️ Auto-respawned %s", p.Name)

	h.fan.toAll(protocol.EventPlayerRespawned, respawnedPayload(p))
	h.fan.toOne(p.ID, protocol.EventForceRespawn, protocol.ForceRespawnPayload{Position: p.Position})
}

// ============================================================================
// Helpers
// ============================================================================

func (h *Hub) scheduleAutoRespawn(p *Player) {
	h.cancelTimer(p.ID)
	cmd := autoRespawnCmd{id: p.ID, life: p.Life()}
	h.timers[p.ID] = h.cfg.Scheduler.AfterFunc(h.cfg.RespawnDelay, func() {
		// Nothing waits on the result; a stopped hub just drops it.
		_ = h.post(context.Background(), cmd)
	})
}

// cancelTimer is an optimization only; handleAutoRespawn never trusts it.
func (h *Hub) cancelTimer(id string) {
	if t, ok := h.timers[id]; ok {
		t.Stop()
		delete(h.timers, id)
	}
}

// teardown ends a removed player's session: its timer is cancelled and, for
// account-backed players, one stats increment is handed to the sink.
// It reports whether the increment was accepted.
func (h *Hub) teardown(p *Player) bool {
	h.cancelTimer(p.ID)
	if p.UserRef == "" || h.cfg.Stats == nil {
		return false
	}
	ok := h.cfg.Stats.Submit(p.UserRef, store.Delta{
		Kills:       p.Kills,
		Deaths:      p.Deaths,
		GamesPlayed: 1,
	})
	if !ok {
		log.Printf("⚠️ Stats for %s (%s) were not persisted", p.Name, p.UserRef)
	}
	return ok
}

func (h *Hub) shutdown() {
	roster := h.registry.Roster()
	for id := range roster {
		p := h.registry.Remove(id)
		h.teardown(p)
		if c := h.fan.remove(id); c != nil {
			c.Close()
		}
	}
	for id, c := range h.fan.conns {
		c.Close()
		delete(h.fan.conns, id)
	}
	h.cfg.Metrics.SetPlayers(0)
	log.Printf("🛑 Hub stopped, %d players flushed", len(roster))
}

func leavePayload(p *Player, flushed bool) LeavePayload {
	return LeavePayload{
		PlayerID: p.ID,
		Name:     p.Name,
		Kills:    p.Kills,
		Deaths:   p.Deaths,
		Flushed:  flushed,
		Seconds:  int64(time.Since(p.JoinedAt) / time.Second),
	}
}

func respawnedPayload(p *Player) protocol.PlayerRespawnedPayload {
	return protocol.PlayerRespawnedPayload{
		ID:       p.ID,
		Name:     p.Name,
		Position: p.Position,
		Health:   p.Health,
		Rotation: p.Rotation,
	}
}
