/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/planningpoker/poker"
)

// Inbound event names.
const (
	eventJoinSession = "join-session"
	eventStartVoting = "start-voting"
	eventSubmitVote  = "submit-vote"
	eventRevealVotes = "reveal-votes"
	eventEndVoting   = "end-voting"
)

// ClientMessage is any message coming from a browser.
type ClientMessage struct {
	Type          string       `json:"type"`
	SessionID     string       `json:"sessionId,omitempty"`     // every event
	UserName      string       `json:"userName,omitempty"`      // join-session
	IsFacilitator bool         `json:"isFacilitator,omitempty"` // join-session
	StoryName     string       `json:"storyName,omitempty"`     // start-voting
	TimerDuration timerSeconds `json:"timerDuration,omitempty"` // start-voting, seconds
	Vote          poker.Value  `json:"vote,omitempty"`          // submit-vote
}

// timerSeconds accepts a number or a numeric string and truncates fractions.
// Anything else decodes as zero, which selects the default timer.
type timerSeconds int

func (t *timerSeconds) UnmarshalJSON(data []byte) error {
	*t = 0

	raw := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}

	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(n) || n < 1 {
		return nil
	}

	*t = timerSeconds(min(n, math.MaxInt32))
	return nil
}

type Client struct {
	id   string
	conn *websocket.Conn
	send chan any

	closeOnce sync.Once

	// member is set by a successful join and only touched by readPump.
	member *poker.Member
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Hub owns every open connection and the session rooms they joined. It is the
// poker.Transport for the service.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
}

func newHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.id] = c
}

// remove forgets c everywhere and closes its queue. Safe to call repeatedly.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	delete(h.clients, c.id)
	for key, members := range h.rooms {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, key)
		}
	}
	c.close()
}

func (h *Hub) Subscribe(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[connID] = c
}

func (h *Hub) Send(connID string, msg any) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	var slow []*Client
	if ok && !offer(c, msg) {
		slow = append(slow, c)
	}
	h.mu.RUnlock()

	h.drop(slow)
}

func (h *Hub) Publish(room string, msg any) {
	var slow []*Client

	h.mu.RLock()
	for _, c := range h.rooms[room] {
		if !offer(c, msg) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	h.drop(slow)
}

func (h *Hub) Close(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.rooms, room)
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// offer queues msg without blocking. The caller holds h.mu, which keeps c.send
// open for the duration.
func offer(c *Client, msg any) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// drop disconnects clients whose queue was full. Their read loop then sees the
// closed connection and runs the normal leave path.
func (h *Hub) drop(clients []*Client) {
	if len(clients) == 0 {
		return
	}

	h.mu.Lock()
	for _, c := range clients {
		h.removeLocked(c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
}

func newUpgrader(cfg *Config) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.allowAnyOrigin() {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(cfg.allowedOrigins, origin)
		},
	}
}

func serveWS(cfg *Config, hub *Hub, svc *poker.Service) httprouter.Handle {
	upgrader := newUpgrader(cfg)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SERVE: Websocket upgrade for %s failed: %v", realIP(r), err)
			return
		}

		conn.SetReadLimit(cfg.maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(cfg.pongWait()))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(cfg.pongWait()))
		})

		client := &Client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan any, cfg.sendBuffer),
		}

		hub.add(client)

		logf(cfg, "SERVE: Connection %s opened from %s", client.id, realIP(r))

		go client.writePump(cfg)
		client.readPump(cfg, hub, svc)
	}
}

func (c *Client) readPump(cfg *Config, h *Hub, svc *poker.Service) {
	defer func() {
		h.remove(c)
		svc.Leave(c.member)
		_ = c.conn.Close()

		logf(cfg, "SERVE: Connection %s closed", c.id)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.pongWait()))

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		c.dispatch(cfg, svc, msg)
	}
}

func (c *Client) dispatch(cfg *Config, svc *poker.Service, msg ClientMessage) {
	switch msg.Type {
	case eventJoinSession:
		// A connection whose session has ended may join another one.
		if c.member != nil && svc.Active(c.member) {
			return
		}
		c.member = nil

		m, err := svc.Join(c.id, msg.SessionID, msg.UserName, msg.IsFacilitator)
		if err != nil {
			logf(cfg, "SESSION: Connection %s refused: %v", c.id, err)
			return
		}
		c.member = m
	case eventStartVoting:
		svc.StartVoting(c.member, msg.SessionID, msg.StoryName, int(msg.TimerDuration))
	case eventSubmitVote:
		svc.SubmitVote(c.member, msg.SessionID, msg.Vote)
	case eventRevealVotes:
		svc.RevealVotes(c.member, msg.SessionID)
	case eventEndVoting:
		svc.EndVoting(c.member, msg.SessionID)
	default:
		// ignore unknown types
	}
}

func (c *Client) writePump(cfg *Config) {
	ticker := time.NewTicker(cfg.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
