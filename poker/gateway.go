/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package poker

// Transport is the connection layer the core relies on. Rooms are keyed by
// session key. Send and Publish must not block: a connection that cannot take
// a message may be dropped, but the call returns immediately.
type Transport interface {
	// Subscribe adds a connection to a room.
	Subscribe(room, connID string)
	// Send delivers msg to one connection.
	Send(connID string, msg any)
	// Publish delivers msg to every connection in room, in call order.
	Publish(room string, msg any)
	// Close forgets a room. Connections stay open.
	Close(room string)
}

// gateway is the only part of the core that talks to the Transport.
type gateway struct {
	t Transport
}

func (g gateway) private(connID string, msg any) {
	g.t.Send(connID, msg)
}

func (g gateway) room(key string, msg any) {
	g.t.Publish(key, msg)
}

func (g gateway) subscribe(key, connID string) {
	g.t.Subscribe(key, connID)
}

func (g gateway) close(key string) {
	g.t.Close(key)
}
