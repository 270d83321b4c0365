package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"landing/internal/api"
	"landing/internal/logging"
)

// Conn is a live client connection. Implementations must make Send and Ping
// safe for concurrent use.
type Conn interface {
	ID() string
	Send(data []byte) error
	Ping() error
	Close() error
	Open() bool
}

// ErrClosed is returned when a connection is no longer open.
var ErrClosed = errors.New("connection closed")

type member struct {
	conn    Conn
	channel string
	alive   bool
	sendMu  sync.Mutex
}

func (m *member) send(data []byte) error {
	if !m.conn.Open() {
		return ErrClosed
	}
	m.sendMu.Lock()
	defer m.sendMu.Unlock()
	return m.conn.Send(data)
}

// Hub tracks channel membership for live connections.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*member]struct{}
	members  map[string]*member
	logger   *slog.Logger
}

// New constructs an empty hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		channels: make(map[string]map[*member]struct{}),
		members:  make(map[string]*member),
		logger:   logging.NewComponentLogger(logger, "hub"),
	}
}

// Subscribe moves conn onto channelID, leaving any previous channel, and
// acknowledges with a subscribed event.
func (h *Hub) Subscribe(conn Conn, channelID string) error {
	if conn == nil {
		return errors.New("connection is nil")
	}
	if _, _, err := ParseChannel(channelID); err != nil {
		return err
	}

	h.mu.Lock()
	m, ok := h.members[conn.ID()]
	if !ok {
		m = &member{conn: conn, alive: true}
		h.members[conn.ID()] = m
	}
	previous := m.channel
	if previous != "" && previous != channelID {
		h.leaveLocked(m)
	}
	m.channel = channelID
	set, ok := h.channels[channelID]
	if !ok {
		set = make(map[*member]struct{})
		h.channels[channelID] = set
	}
	set[m] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("connection subscribed",
		logging.String(logging.FieldConnID, conn.ID()),
		logging.String(logging.FieldChannelID, channelID),
		logging.String("previous_channel", previous),
	)
	return h.sendTo(m, api.SubscribedEvent(channelID))
}

// Unsubscribe removes conn from channelID, or from its current channel when
// channelID is empty. It reports whether membership changed.
func (h *Hub) Unsubscribe(conn Conn, channelID string) bool {
	if conn == nil {
		return false
	}
	h.mu.Lock()
	m, ok := h.members[conn.ID()]
	if !ok || m.channel == "" || (channelID != "" && m.channel != channelID) {
		h.mu.Unlock()
		return false
	}
	left := m.channel
	h.leaveLocked(m)
	h.mu.Unlock()

	h.logger.Debug("connection unsubscribed",
		logging.String(logging.FieldConnID, conn.ID()),
		logging.String(logging.FieldChannelID, left),
	)
	_ = h.sendTo(m, api.UnsubscribedEvent(left))
	return true
}

// Register tracks a connection for liveness before it subscribes anywhere.
func (h *Hub) Register(conn Conn) {
	if conn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.members[conn.ID()]; !ok {
		h.members[conn.ID()] = &member{conn: conn, alive: true}
	}
}

// Remove drops a disconnected connection from every channel.
func (h *Hub) Remove(conn Conn) {
	if conn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(conn.ID())
}

// MarkAlive records a liveness response from conn.
func (h *Hub) MarkAlive(conn Conn) {
	if conn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.members[conn.ID()]; ok {
		m.alive = true
	}
}

// Broadcast encodes event once and writes it to every open member of
// channelID in turn. It returns how many connections received it. Closed
// connections are skipped and pruned; zero subscribers is not an error.
func (h *Hub) Broadcast(channelID string, event any) (int, error) {
	data, err := sonic.Marshal(event)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	set := h.channels[channelID]
	targets := make([]*member, 0, len(set))
	for m := range set {
		targets = append(targets, m)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		h.logger.Debug("broadcast without subscribers",
			logging.String(logging.FieldChannelID, channelID),
			logging.String(logging.FieldEventType, "broadcast_no_subscribers"),
		)
		return 0, nil
	}

	delivered := 0
	var dead []*member
	for _, m := range targets {
		if err := m.send(data); err != nil {
			dead = append(dead, m)
			continue
		}
		delivered++
	}
	if len(dead) > 0 {
		h.mu.Lock()
		for _, m := range dead {
			if current, ok := h.members[m.conn.ID()]; ok && current == m {
				h.removeLocked(m.conn.ID())
			}
		}
		h.mu.Unlock()
		for _, m := range dead {
			_ = m.conn.Close()
		}
		h.logger.Debug("pruned closed connections",
			logging.String(logging.FieldChannelID, channelID),
			logging.Int("pruned", len(dead)),
		)
	}
	return delivered, nil
}

// LivenessSweep pings every connection. Connections that have not answered
// since the previous sweep are closed and removed instead.
func (h *Hub) LivenessSweep() (pinged, closed int) {
	h.mu.Lock()
	var stale, live []*member
	for id, m := range h.members {
		if !m.alive || !m.conn.Open() {
			stale = append(stale, m)
			h.removeLocked(id)
			continue
		}
		m.alive = false
		live = append(live, m)
	}
	h.mu.Unlock()

	for _, m := range stale {
		_ = m.conn.Close()
	}
	var failed []*member
	for _, m := range live {
		m.sendMu.Lock()
		err := m.conn.Ping()
		m.sendMu.Unlock()
		if err != nil {
			failed = append(failed, m)
			continue
		}
		pinged++
	}
	if len(failed) > 0 {
		h.mu.Lock()
		for _, m := range failed {
			if current, ok := h.members[m.conn.ID()]; ok && current == m {
				h.removeLocked(m.conn.ID())
			}
		}
		h.mu.Unlock()
		for _, m := range failed {
			_ = m.conn.Close()
		}
	}
	closed = len(stale) + len(failed)
	if closed > 0 {
		h.logger.Info("liveness sweep closed connections",
			logging.Int("closed", closed),
			logging.Int("pinged", pinged),
			logging.String(logging.FieldEventType, "hub_sweep"),
		)
	}
	return pinged, closed
}

// Run sweeps on interval until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.LivenessSweep()
		}
	}
}

// CloseAll closes every connection. Used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := make([]*member, 0, len(h.members))
	for id, m := range h.members {
		all = append(all, m)
		h.removeLocked(id)
	}
	h.mu.Unlock()
	for _, m := range all {
		_ = m.conn.Close()
	}
}

// Subscribers returns the number of connections on channelID.
func (h *Hub) Subscribers(channelID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channelID])
}

// ChannelOf returns the channel conn is subscribed to, if any.
func (h *Hub) ChannelOf(conn Conn) string {
	if conn == nil {
		return ""
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if m, ok := h.members[conn.ID()]; ok {
		return m.channel
	}
	return ""
}

// Stats summarizes membership.
func (h *Hub) Stats() api.HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return api.HubStats{Connections: len(h.members), Channels: len(h.channels)}
}

// SendError writes a landing_error event to a single connection.
func (h *Hub) SendError(conn Conn, message, code string) error {
	data, err := sonic.Marshal(api.LandingErrorEvent(message, code))
	if err != nil {
		return err
	}
	h.mu.RLock()
	m, ok := h.members[conn.ID()]
	h.mu.RUnlock()
	if ok {
		return m.send(data)
	}
	return conn.Send(data)
}

func (h *Hub) sendTo(m *member, event api.Event) error {
	data, err := sonic.Marshal(event)
	if err != nil {
		return err
	}
	if err := m.send(data); err != nil {
		h.mu.Lock()
		if current, ok := h.members[m.conn.ID()]; ok && current == m {
			h.removeLocked(m.conn.ID())
		}
		h.mu.Unlock()
		return err
	}
	return nil
}

func (h *Hub) leaveLocked(m *member) {
	if m.channel == "" {
		return
	}
	if set, ok := h.channels[m.channel]; ok {
		delete(set, m)
		if len(set) == 0 {
			delete(h.channels, m.channel)
		}
	}
	m.channel = ""
}

func (h *Hub) removeLocked(id string) {
	m, ok := h.members[id]
	if !ok {
		return
	}
	h.leaveLocked(m)
	delete(h.members, id)
}
