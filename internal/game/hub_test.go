package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"arena/internal/protocol"
	"arena/internal/store"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeConn struct {
	id string

	mu       sync.Mutex
	msgs     [][]byte
	closed   bool
	failSend bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("send buffer full")
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) envelopes(t *testing.T) []protocol.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(c.msgs))
	for _, m := range c.msgs {
		env, err := protocol.DecodeEnvelope(m)
		if err != nil {
			t.Fatalf("bad frame %q: %v", m, err)
		}
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) eventNames(t *testing.T) []string {
	t.Helper()
	var names []string
	for _, env := range c.envelopes(t) {
		names = append(names, env.Event)
	}
	return names
}

func (c *fakeConn) count(t *testing.T, event string) int {
	t.Helper()
	n := 0
	for _, env := range c.envelopes(t) {
		if env.Event == event {
			n++
		}
	}
	return n
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
}

// payloads decodes every message of one event type.
func payloads[T any](t *testing.T, c *fakeConn, event string) []T {
	t.Helper()
	var out []T
	for _, env := range c.envelopes(t) {
		if env.Event != event {
			continue
		}
		v, err := protocol.DecodePayload[T](env)
		if err != nil {
			t.Fatalf("decode %s: %v", event, err)
		}
		out = append(out, v)
	}
	return out
}

type fakeTimer struct {
	f       func()
	stopped bool
}

func (ft *fakeTimer) Stop() bool {
	was := !ft.stopped
	ft.stopped = true
	return was
}

// fakeScheduler records timers; tests fire them by hand.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
	delays []time.Duration
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	ft := &fakeTimer{f: f}
	s.timers = append(s.timers, ft)
	s.delays = append(s.delays, d)
	return ft
}

func (s *fakeScheduler) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// fire runs timer i even if it was stopped; correctness must not depend on Stop.
func (s *fakeScheduler) fire(i int) {
	s.mu.Lock()
	ft := s.timers[i]
	s.mu.Unlock()
	ft.f()
}

type submission struct {
	userRef string
	delta   store.Delta
}

type fakeSink struct {
	mu   sync.Mutex
	subs []submission
}

func (s *fakeSink) Submit(userRef string, d store.Delta) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, submission{userRef, d})
	return true
}

func (s *fakeSink) all() []submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]submission(nil), s.subs...)
}

// ============================================================================
// Helpers
// ============================================================================

type hubFixture struct {
	hub   *Hub
	sched *fakeScheduler
	sink  *fakeSink
}

func startHub(t *testing.T, maxPlayers int) *hubFixture {
	t.Helper()
	f := &hubFixture{sched: &fakeScheduler{}, sink: &fakeSink{}}
	f.hub = NewHub(HubConfig{
		MaxPlayers:   maxPlayers,
		RespawnDelay: 3 * time.Second,
		Arena:        DefaultArena,
		Stats:        f.sink,
		Scheduler:    f.sched,
		Rand:         rand.New(rand.NewSource(1)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go f.hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-f.hub.Done()
	})
	return f
}

// sync waits until every previously posted command has been handled.
func (f *hubFixture) sync(t *testing.T) protocol.Roster {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	roster, err := f.hub.Roster(ctx)
	if err != nil {
		t.Fatalf("Roster: %v", err)
	}
	return roster
}

func (f *hubFixture) join(t *testing.T, c *fakeConn, name, userRef string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return f.hub.Join(ctx, c, name, userRef)
}

func (f *hubFixture) mustJoin(t *testing.T, c *fakeConn, name, userRef string) {
	t.Helper()
	if err := f.join(t, c, name, userRef); err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
}

func (f *hubFixture) shoot(t *testing.T, shooter, target string) {
	t.Helper()
	if err := f.hub.Shoot(context.Background(), shooter, target); err != nil {
		t.Fatal(err)
	}
}

// ============================================================================
// Tests
// ============================================================================

// TestHubJoinBroadcasts tests playerInfo to the joiner and playerJoined to all
func TestHubJoinBroadcasts(t *testing.T) {
	f := startHub(t, 2)
	a, b := newFakeConn("a"), newFakeConn("b")

	f.mustJoin(t, a, "A", "")
	names := a.eventNames(t)
	if len(names) != 2 || names[0] != protocol.EventPlayerInfo || names[1] != protocol.EventPlayerJoined {
		t.Fatalf("Unexpected events for first joiner: %v", names)
	}
	info := payloads[protocol.PlayerInfoPayload](t, a, protocol.EventPlayerInfo)[0]
	if info.ID != "a" || len(info.Players) != 1 {
		t.Errorf("Unexpected playerInfo: %+v", info)
	}

	f.mustJoin(t, b, "B", "")
	joined := payloads[protocol.RosterPayload](t, a, protocol.EventPlayerJoined)
	if len(joined) != 2 || len(joined[1].Players) != 2 {
		t.Fatalf("A should see a two-player roster, got %+v", joined)
	}
	if st := joined[1].Players["b"]; st.Health != 100 || st.Position != DefaultSpawn {
		t.Errorf("New player not at default spawn: %+v", st)
	}
}

// TestHubCapacityRejects tests the third-join scenario at max=2
func TestHubCapacityRejects(t *testing.T) {
	f := startHub(t, 2)
	a, b, c := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")
	f.mustJoin(t, a, "A", "")
	f.mustJoin(t, b, "B", "")
	a.reset()

	err := f.join(t, c, "C", "")
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Expected ErrCapacityExceeded, got %v", err)
	}
	if names := c.eventNames(t); len(names) != 1 || names[0] != protocol.EventMaxPlayersReached {
		t.Errorf("Expected only maxPlayersReached, got %v", names)
	}
	if max := payloads[protocol.MaxPlayersPayload](t, c, protocol.EventMaxPlayersReached)[0]; max.MaxPlayers != 2 {
		t.Errorf("Expected maxPlayers 2, got %d", max.MaxPlayers)
	}
	if !c.isClosed() {
		t.Error("Rejected connection should be closed")
	}
	if roster := f.sync(t); len(roster) != 2 {
		t.Errorf("Expected 2 players, got %d", len(roster))
	}
	if n := len(a.eventNames(t)); n != 0 {
		t.Errorf("Existing players should not be notified of a rejected join, got %d events", n)
	}

	// The transport reports the close; cleanup for a never-joined id is a no-op.
	f.hub.Leave(context.Background(), "c")
	if roster := f.sync(t); len(roster) != 2 {
		t.Errorf("Expected 2 players after stray leave, got %d", len(roster))
	}
}

// TestHubSameNameEviction tests that a reconnect evicts the stale record first
func TestHubSameNameEviction(t *testing.T) {
	f := startHub(t, 2)
	old, b, fresh := newFakeConn("old"), newFakeConn("b"), newFakeConn("new")
	f.mustJoin(t, old, "A", "user-a")
	f.mustJoin(t, b, "B", "")
	b.reset()

	f.mustJoin(t, fresh, "A", "user-a")

	if !old.isClosed() {
		t.Error("Evicted connection should be closed")
	}
	names := b.eventNames(t)
	if len(names) != 2 || names[0] != protocol.EventPlayerLeft || names[1] != protocol.EventPlayerJoined {
		t.Fatalf("Expected playerLeft then playerJoined, got %v", names)
	}
	left := payloads[protocol.PlayerLeftPayload](t, b, protocol.EventPlayerLeft)[0]
	if left.PlayerID != "old" {
		t.Errorf("Expected departure of old, got %s", left.PlayerID)
	}
	if _, ok := left.Players["old"]; ok {
		t.Error("Departure roster still contains evicted player")
	}

	roster := f.sync(t)
	if len(roster) != 2 {
		t.Fatalf("Expected 2 players, got %d", len(roster))
	}
	if _, ok := roster["new"]; !ok {
		t.Error("Reconnected player missing")
	}

	subs := f.sink.all()
	if len(subs) != 1 || subs[0].userRef != "user-a" || subs[0].delta.GamesPlayed != 1 {
		t.Errorf("Expected one flush for the evicted session, got %+v", subs)
	}

	// The evicted transport's own close must not remove the new record.
	f.hub.Leave(context.Background(), "old")
	if roster := f.sync(t); len(roster) != 2 {
		t.Errorf("Late leave of evicted conn changed roster: %d", len(roster))
	}
	if len(f.sink.all()) != 1 {
		t.Error("Late leave of evicted conn flushed stats twice")
	}
}

// TestHubShootScenario tests four hits, one death and the auto-respawn
func TestHubShootScenario(t *testing.T) {
	f := startHub(t, 2)
	a, b := newFakeConn("a"), newFakeConn("b")
	f.mustJoin(t, a, "A", "")
	f.mustJoin(t, b, "B", "")
	a.reset()
	b.reset()

	for i := 0; i < 4; i++ {
		f.shoot(t, "a", "b")
	}
	roster := f.sync(t)

	var healths []int
	for _, hit := range payloads[protocol.PlayerHitPayload](t, b, protocol.EventPlayerHit) {
		healths = append(healths, hit.Health)
		if hit.ShooterID != "a" || hit.Damage != ShotDamage {
			t.Errorf("Unexpected hit payload: %+v", hit)
		}
	}
	want := []int{75, 50, 25, 0}
	if len(healths) != len(want) {
		t.Fatalf("Expected %v, got %v", want, healths)
	}
	for i := range want {
		if healths[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, healths)
		}
	}
	if a.count(t, protocol.EventPlayerHit) != 0 {
		t.Error("playerHit must go to the victim only")
	}
	if b.count(t, protocol.EventPlayerShot) != 4 || a.count(t, protocol.EventPlayerShot) != 0 {
		t.Error("playerShot must go to everyone but the shooter")
	}
	if a.count(t, protocol.EventPlayerDied) != 1 || b.count(t, protocol.EventPlayerDied) != 1 {
		t.Error("playerDied should reach all connections once")
	}
	if a.count(t, protocol.EventStatsUpdate) != 4 {
		t.Errorf("Expected 4 statsUpdate, got %d", a.count(t, protocol.EventStatsUpdate))
	}
	if roster["b"].Deaths != 1 || roster["a"].Kills != 1 {
		t.Errorf("Expected B.deaths=1 A.kills=1, got %+v %+v", roster["b"], roster["a"])
	}

	// Extra shots on the dead victim change nothing
	f.shoot(t, "a", "b")
	roster = f.sync(t)
	if roster["b"].Deaths != 1 || roster["a"].Kills != 1 || roster["b"].Health != 0 {
		t.Errorf("Dead victim was affected: %+v", roster["b"])
	}

	if f.sched.len() != 1 {
		t.Fatalf("Expected one respawn timer, got %d", f.sched.len())
	}
	if f.sched.delays[0] != 3*time.Second {
		t.Errorf("Expected 3s delay, got %v", f.sched.delays[0])
	}

	f.sched.fire(0)
	roster = f.sync(t)
	if roster["b"].Health != 100 || roster["b"].Deaths != 1 {
		t.Errorf("Expected B alive with deaths=1, got %+v", roster["b"])
	}
	if !DefaultArena.Contains(roster["b"].Position) {
		t.Errorf("Respawn outside arena: %+v", roster["b"].Position)
	}
	force := payloads[protocol.ForceRespawnPayload](t, b, protocol.EventForceRespawn)
	if len(force) != 1 || force[0].Position != roster["b"].Position {
		t.Errorf("Expected one forceRespawn at new position, got %+v", force)
	}
	if a.count(t, protocol.EventForceRespawn) != 0 {
		t.Error("forceRespawn must only reach the target")
	}
	if a.count(t, protocol.EventPlayerRespawned) != 1 {
		t.Error("playerRespawned should reach everyone")
	}
}

// TestHubAutoRespawnAfterSelfRespawn tests that a stale timer never overwrites newer state
func TestHubAutoRespawnAfterSelfRespawn(t *testing.T) {
	f := startHub(t, 2)
	a, b := newFakeConn("a"), newFakeConn("b")
	f.mustJoin(t, a, "A", "")
	f.mustJoin(t, b, "B", "")
	for i := 0; i < 4; i++ {
		f.shoot(t, "a", "b")
	}

	chosen := Vec3{X: 7, Y: 1.6, Z: -7}
	f.hub.Respawn(context.Background(), "b", protocol.RespawnRequest{Position: &chosen})
	f.sync(t)
	b.reset()

	f.sched.fire(0)
	roster := f.sync(t)
	if roster["b"].Position != chosen {
		t.Errorf("Auto-respawn overwrote self-respawn: %+v", roster["b"].Position)
	}
	if b.count(t, protocol.EventForceRespawn) != 0 {
		t.Error("Stale timer should not force a respawn")
	}
}

// TestHubAutoRespawnStaleLife tests that a timer from an earlier death is ignored
func TestHubAutoRespawnStaleLife(t *testing.T) {
	f := startHub(t, 2)
	a, b := newFakeConn("a"), newFakeConn("b")
	f.mustJoin(t, a, "A", "")
	f.mustJoin(t, b, "B", "")

	for i := 0; i < 4; i++ {
		f.shoot(t, "a", "b")
	}
	f.hub.Respawn(context.Background(), "b", protocol.RespawnRequest{})
	for i := 0; i < 4; i++ {
		f.shoot(t, "a", "b")
	}
	f.sync(t)
	if f.sched.len() != 2 {
		t.Fatalf("Expected 2 timers, got %d", f.sched.len())
	}

	f.sched.fire(0)
	if roster := f.sync(t); roster["b"].Health != 0 {
		t.Error("Timer from the first death revived the second one")
	}

	f.sched.fire(1)
	if roster := f.sync(t); roster["b"].Health != 100 || roster["b"].Deaths != 2 {
		t.Errorf("Expected revival after second death, got %+v", roster["b"])
	}
}

// TestHubAutoRespawnAfterLeave tests the timer firing for a departed player
func TestHubAutoRespawnAfterLeave(t *testing.T) {
	f := startHub(t, 2)
	a, b := newFakeConn("a"), newFakeConn("b")
	f.mustJoin(t, a, "A", "")
	f.mustJoin(t, b, "B", "")
	for i := 0; i < 4; i++ {
		f.shoot(t, "a", "b")
	}
	f.hub.Leave(context.Background(), "b")
	f.sync(t)
	a.reset()

	f.sched.fire(0)
	roster := f.sync(t)
	if _, ok := roster["b"]; ok {
		t.Error("Departed player reappeared")
	}
	if n := len(a.eventNames(t)); n != 0 {
		t.Errorf("Expected no broadcasts, got %v", a.eventNames(t))
	}
}

// TestHubLeaveFlushesStats tests exactly one increment for account players and none for anonymous ones
func TestHubLeaveFlushesStats(t *testing.T) {
	f := startHub(t, 2)
	a, b := newFakeConn("a"), newFakeConn("b")
	f.mustJoin(t, a, "A", "user-a")
	f.mustJoin(t, b, "B", "")
	for i := 0; i < 4; i++ {
		f.shoot(t, "a", "b")
	}

	f.hub.Leave(context.Background(), "b")
	roster := f.sync(t)
	if len(f.sink.all()) != 0 {
		t.Error("Anonymous player should not be persisted")
	}
	left := payloads[protocol.PlayerLeftPayload](t, a, protocol.EventPlayerLeft)
	if len(left) != 1 || left[0].PlayerID != "b" || len(left[0].Players) != 1 {
		t.Errorf("Unexpected playerLeft: %+v", left)
	}
	if len(roster) != 1 {
		t.Errorf("Expected 1 player, got %d", len(roster))
	}

	f.hub.Leave(context.Background(), "a")
	f.hub.Leave(context.Background(), "a")
	f.sync(t)

	subs := f.sink.all()
	if len(subs) != 1 {
		t.Fatalf("Expected exactly one submission, got %d", len(subs))
	}
	want := store.Delta{Kills: 1, Deaths: 0, GamesPlayed: 1}
	if subs[0].userRef != "user-a" || subs[0].delta != want {
		t.Errorf("Expected %+v for user-a, got %+v", want, subs[0])
	}
}

// TestHubMoveBroadcast tests playerMoved goes to everyone but the sender
func TestHubMoveBroadcast(t *testing.T) {
	f := startHub(t, 2)
	a, b := newFakeConn("a"), newFakeConn("b")
	f.mustJoin(t, a, "A", "")
	f.mustJoin(t, b, "B", "")
	a.reset()
	b.reset()

	hp := 60.0
	move := protocol.PlayerMove{
		Position: Vec3{X: 1, Y: 1.6, Z: 2},
		Rotation: Rotation{Y: 0.5},
		Health:   &hp,
	}
	f.hub.Move(context.Background(), "a", move)
	f.hub.Move(context.Background(), "ghost", move)
	roster := f.sync(t)

	if a.count(t, protocol.EventPlayerMoved) != 0 {
		t.Error("Sender should not receive its own move")
	}
	moved := payloads[protocol.PlayerMovedPayload](t, b, protocol.EventPlayerMoved)
	if len(moved) != 1 {
		t.Fatalf("Expected 1 playerMoved, got %d", len(moved))
	}
	if moved[0].ID != "a" || moved[0].Name != "A" || moved[0].Health != 60 || moved[0].Position != move.Position {
		t.Errorf("Unexpected playerMoved: %+v", moved[0])
	}
	if roster["a"].Health != 60 {
		t.Errorf("Client health not stored: %d", roster["a"].Health)
	}
}

// TestHubShootUnknownTarget tests the muzzle flash still goes out
func TestHubShootUnknownTarget(t *testing.T) {
	f := startHub(t, 2)
	a, b := newFakeConn("a"), newFakeConn("b")
	f.mustJoin(t, a, "A", "")
	f.mustJoin(t, b, "B", "")
	b.reset()

	f.shoot(t, "a", "nobody")
	f.shoot(t, "nobody", "b")
	f.sync(t)

	if names := b.eventNames(t); len(names) != 1 || names[0] != protocol.EventPlayerShot {
		t.Errorf("Expected only a muzzle flash, got %v", names)
	}
}

// TestHubRespawnDefaults tests a client respawn without position or rotation
func TestHubRespawnDefaults(t *testing.T) {
	f := startHub(t, 2)
	a := newFakeConn("a")
	f.mustJoin(t, a, "A", "")
	a.reset()

	f.hub.Respawn(context.Background(), "a", protocol.RespawnRequest{})
	roster := f.sync(t)

	if !DefaultArena.Contains(roster["a"].Position) {
		t.Errorf("Random respawn outside arena: %+v", roster["a"].Position)
	}
	names := a.eventNames(t)
	if len(names) != 2 || names[0] != protocol.EventPlayerRespawned || names[1] != protocol.EventStatsUpdate {
		t.Errorf("Expected playerRespawned then statsUpdate, got %v", names)
	}
}

// TestHubScoreUpdate tests the advisory score broadcast
func TestHubScoreUpdate(t *testing.T) {
	f := startHub(t, 2)
	a := newFakeConn("a")
	f.mustJoin(t, a, "A", "")

	f.hub.UpdateScore(context.Background(), "a", 42)
	f.sync(t)

	updates := payloads[protocol.RosterPayload](t, a, protocol.EventScoreUpdate)
	if len(updates) != 1 {
		t.Fatalf("Expected 1 scoreUpdate, got %d", len(updates))
	}
	if s := updates[0].Players["a"].Score; s == nil || *s != 42 {
		t.Errorf("Expected score 42, got %v", s)
	}
}

// TestHubSendFailureClosesConn tests that a failing connection is dropped from fanout
func TestHubSendFailureClosesConn(t *testing.T) {
	f := startHub(t, 2)
	a, b := newFakeConn("a"), newFakeConn("b")
	f.mustJoin(t, a, "A", "")
	f.mustJoin(t, b, "B", "")

	b.mu.Lock()
	b.failSend = true
	b.mu.Unlock()

	f.hub.UpdateScore(context.Background(), "a", 1)
	f.sync(t)
	if !b.isClosed() {
		t.Error("Connection with failing send should be closed")
	}

	// Cleanup runs when the transport reports the close
	f.hub.Leave(context.Background(), "b")
	if roster := f.sync(t); len(roster) != 1 {
		t.Errorf("Expected 1 player, got %d", len(roster))
	}
}

// TestHubSurvivesHandlerPanic tests recovery from a faulty command
func TestHubSurvivesHandlerPanic(t *testing.T) {
	f := startHub(t, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	// A nil connection panics inside the join handler.
	if err := f.hub.Join(ctx, nil, "X", ""); err == nil {
		t.Error("Expected the panicking join to fail")
	}

	a := newFakeConn("a")
	f.mustJoin(t, a, "A", "")
	if roster := f.sync(t); len(roster) != 1 {
		t.Errorf("Hub should keep serving after a panic, got %d players", len(roster))
	}
}

// panicConn blows up on the first message the hub sends it.
type panicConn struct {
	*fakeConn
}

func (c panicConn) Send([]byte) error {
	panic("send exploded")
}

// TestHubJoinPanicLeavesNoPlayer tests that a join which panics midway still
// answers the caller and leaves nothing behind
func TestHubJoinPanicLeavesNoPlayer(t *testing.T) {
	f := startHub(t, 2)
	a := newFakeConn("a")
	f.mustJoin(t, a, "A", "")

	b := panicConn{newFakeConn("b")}
	errc := make(chan error, 1)
	go func() { errc <- f.hub.Join(context.Background(), b, "B", "user-b") }()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrJoinFailed) {
			t.Errorf("Expected ErrJoinFailed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Join still blocked after a handler panic")
	}

	roster := f.sync(t)
	if len(roster) != 1 {
		t.Errorf("Expected only A in the roster, got %d players", len(roster))
	}
	if _, ok := roster["b"]; ok {
		t.Error("Failed join should not leave a player behind")
	}
	if !b.isClosed() {
		t.Error("Failed join should close the connection")
	}

	// The freed slot is usable again.
	c := newFakeConn("c")
	f.mustJoin(t, c, "C", "")
	if roster := f.sync(t); len(roster) != 2 {
		t.Errorf("Expected 2 players after rejoin, got %d", len(roster))
	}
}

// TestHubShutdownFlushes tests that stopping the hub flushes live sessions
func TestHubShutdownFlushes(t *testing.T) {
	sink := &fakeSink{}
	hub := NewHub(HubConfig{MaxPlayers: 2, Stats: sink, Scheduler: &fakeScheduler{}})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	a := newFakeConn("a")
	if err := hub.Join(context.Background(), a, "A", "user-a"); err != nil {
		t.Fatal(err)
	}
	cancel()
	<-hub.Done()

	if subs := sink.all(); len(subs) != 1 || subs[0].userRef != "user-a" {
		t.Errorf("Expected one flush on shutdown, got %+v", subs)
	}
	if !a.isClosed() {
		t.Error("Connections should be closed on shutdown")
	}
	if _, err := hub.Roster(context.Background()); !errors.Is(err, ErrHubStopped) {
		t.Errorf("Expected ErrHubStopped, got %v", err)
	}
}

// TestLeavePayloadSessionLength tests that leave records carry the session length
func TestLeavePayloadSessionLength(t *testing.T) {
	p := NewPlayer("a", "A", "user-a")
	p.JoinedAt = time.Now().Add(-90 * time.Second)
	p.Kills = 2

	got := leavePayload(p, true)
	if got.Seconds != 90 {
		t.Errorf("Expected 90 session seconds, got %d", got.Seconds)
	}
	if got.Kills != 2 || !got.Flushed {
		t.Errorf("Unexpected payload: %+v", got)
	}
}
