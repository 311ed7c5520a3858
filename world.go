package main

import (
	"sort"
	"sync"
)

// World is the registry of connected clients and active channels.
// Lock order everywhere is world before channel; a handler holding a
// channel's mutex must not take the world's.
type World struct {
	mu sync.RWMutex

	clients map[*Client]struct{}

	// Canonicalized nick to client.
	nicks map[string]*Client

	// Canonicalized channel name to channel.
	channels map[string]*Channel
}

func NewWorld() *World {
	return &World{
		clients:  make(map[*Client]struct{}),
		nicks:    make(map[string]*Client),
		channels: make(map[string]*Channel),
	}
}

func (w *World) AddClient(c *Client) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.clients[c] = struct{}{}
}

func (w *World) RemoveClient(c *Client) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.clients, c)
}

// AllClients returns a snapshot of every connection, registered or not.
func (w *World) AllClients() []*Client {
	w.mu.RLock()
	defer w.mu.RUnlock()

	clients := make([]*Client, 0, len(w.clients))
	for c := range w.clients {
		clients = append(clients, c)
	}
	return clients
}

// BindNick atomically moves a client from its old nick (if any) to the
// new one. It reports false when another client holds the nick.
func (w *World) BindNick(c *Client, nick string) bool {
	canon := canonicalizeNick(nick)

	w.mu.Lock()
	defer w.mu.Unlock()

	if holder, ok := w.nicks[canon]; ok && holder != c {
		return false
	}

	old := canonicalizeNick(c.Nick())
	if old != "" && old != canon {
		delete(w.nicks, old)
	}
	w.nicks[canon] = c

	return true
}

func (w *World) ReleaseNick(nick string) {
	if nick == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.nicks, canonicalizeNick(nick))
}

// ClientByNick finds a connected client by nick, or nil.
func (w *World) ClientByNick(nick string) *Client {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.nicks[canonicalizeNick(nick)]
}

// ChannelByName finds an active channel, or nil.
func (w *World) ChannelByName(name string) *Channel {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.channels[canonicalizeChannel(name)]
}

// GetOrCreateChannel returns the channel with the given name, creating
// it if absent. The returned channel may be concurrently destroyed;
// callers must check its dead flag under the channel's mutex and retry.
func (w *World) GetOrCreateChannel(name string) *Channel {
	canon := canonicalizeChannel(name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if ch, ok := w.channels[canon]; ok {
		return ch
	}

	ch := newChannel(canon)
	w.channels[canon] = ch

	return ch
}

// DropChannelIfEmpty destroys the channel if it has no members left.
// Emptiness is re-checked under both locks so a racing JOIN either
// lands before the drop or sees the dead flag and retries.
func (w *World) DropChannelIfEmpty(ch *Channel) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.dead || len(ch.members) > 0 {
		return
	}

	ch.dead = true
	delete(w.channels, ch.Name)
}

// Channels returns the active channels sorted by name.
func (w *World) Channels() []*Channel {
	w.mu.RLock()
	defer w.mu.RUnlock()

	channels := make([]*Channel, 0, len(w.channels))
	for _, ch := range w.channels {
		channels = append(channels, ch)
	}

	sort.Slice(channels, func(i, j int) bool {
		return channels[i].Name < channels[j].Name
	})

	return channels
}

// Counts reports totals for the LUSERS burst: registered users,
// operators, unregistered connections, and channels.
func (w *World) Counts() (users, opers, unknown, channels int) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for c := range w.clients {
		if !c.Registered() {
			unknown++
			continue
		}
		users++
		if c.isOper() {
			opers++
		}
	}

	return users, opers, unknown, len(w.channels)
}
