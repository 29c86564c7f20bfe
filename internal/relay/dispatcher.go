package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrUnknownConn = errors.New("connection not attached")

// Conn is a live transport connection. Send must not block; a full outbound
// queue is reported as an error.
type Conn interface {
	ID() string
	Send(frame []byte) error
}

// Members is the part of the registry the dispatcher reads.
type Members interface {
	Members(room string) []string
}

// Fanout publishes encoded frames to peer processes.
type Fanout interface {
	Publish(ctx context.Context, room string, frame []byte) error
}

type Dispatcher struct {
	members Members
	fanout  Fanout

	mu    sync.RWMutex
	conns map[string]Conn
}

func NewDispatcher(members Members, fanout Fanout) *Dispatcher {
	return &Dispatcher{
		members: members,
		fanout:  fanout,
		conns:   make(map[string]Conn),
	}
}

func (d *Dispatcher) Attach(c Conn) {
	d.mu.Lock()
	d.conns[c.ID()] = c
	d.mu.Unlock()
}

func (d *Dispatcher) Detach(connID string) {
	d.mu.Lock()
	delete(d.conns, connID)
	d.mu.Unlock()
}

func (d *Dispatcher) lookup(connID string) (Conn, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.conns[connID]
	return c, ok
}

// Emit encodes ev once, delivers it to the current members of room and, when a
// Fanout is set, publishes it for other processes. It returns the number of
// local deliveries; only an encoding failure is returned as an error.
func (d *Dispatcher) Emit(ctx context.Context, room string, ev Event) (int, error) {
	frame, err := EncodeEvent(ev)
	if err != nil {
		return 0, err
	}

	n := d.Deliver(room, frame)

	if d.fanout != nil {
		if err := d.fanout.Publish(ctx, room, frame); err != nil {
			slog.Warn("dispatch.publish failed", "room", room, "err", err)
		}
	}

	return n, nil
}

// Deliver sends an encoded frame to local members of room only.
func (d *Dispatcher) Deliver(room string, frame []byte) int {
	delivered := 0
	for _, id := range d.members.Members(room) {
		c, ok := d.lookup(id)
		if !ok {
			slog.Debug("dispatch.miss", "room", room, "conn_id", id, "reason", "detached")
			continue
		}
		if err := c.Send(frame); err != nil {
			slog.Debug("dispatch.miss", "room", room, "conn_id", id, "err", err)
			continue
		}
		delivered++
	}

	return delivered
}

// SendTo delivers ev to a single connection regardless of room membership.
func (d *Dispatcher) SendTo(connID string, ev Event) error {
	c, ok := d.lookup(connID)
	if !ok {
		return ErrUnknownConn
	}
	frame, err := EncodeEvent(ev)
	if err != nil {
		return err
	}

	return c.Send(frame)
}

// Len is the number of attached connections.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}
