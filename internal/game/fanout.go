package game

import (
	"log"

	"arena/internal/protocol"
)

// Conn is the Hub's view of one client connection. Send must not block; a
// transport with a full outbound queue returns an error instead.
type Conn interface {
	ID() string
	Send(msg []byte) error
	Close() error
}

// fanout delivers encoded events to computed subsets of the live connections.
// It is owned by the Hub goroutine.
type fanout struct {
	conns   map[string]Conn
	metrics Metrics
}

func newFanout(m Metrics) *fanout {
	return &fanout{conns: make(map[string]Conn), metrics: m}
}

func (f *fanout) add(c Conn) {
	f.conns[c.ID()] = c
}

// remove forgets id without closing it.
func (f *fanout) remove(id string) Conn {
	c := f.conns[id]
	delete(f.conns, id)
	return c
}

func (f *fanout) toAll(event string, payload any) {
	f.toAllExcept("", event, payload)
}

func (f *fanout) toAllExcept(skipID, event string, payload any) {
	msg, ok := encode(event, payload)
	if !ok {
		return
	}
	for id, c := range f.conns {
		if id == skipID {
			continue
		}
		f.deliver(c, event, msg)
	}
}

func (f *fanout) toOne(id, event string, payload any) {
	c, found := f.conns[id]
	if !found {
		return
	}
	if msg, ok := encode(event, payload); ok {
		f.deliver(c, event, msg)
	}
}

// toConn sends to a connection that is not (or not yet) registered.
func (f *fanout) toConn(c Conn, event string, payload any) {
	if msg, ok := encode(event, payload); ok {
		f.deliver(c, event, msg)
	}
}

// deliver closes a connection whose send fails. The transport then reports the
// close through Hub.Leave, which runs the normal cleanup.
func (f *fanout) deliver(c Conn, event string, msg []byte) {
	if err := c.Send(msg); err != nil {
		log.Printf("⚠️ Send %s to %s failed, closing: %v", event, c.ID(), err)
		delete(f.conns, c.ID())
		c.Close()
		return
	}
	f.metrics.MessageSent(event)
}

func encode(event string, payload any) ([]byte, bool) {
	msg, err := protocol.Encode(event, payload)
	if err != nil {
		log.Printf("❌ Encode %s: %v", event, err)
		return nil, false
	}
	return msg, true
}
