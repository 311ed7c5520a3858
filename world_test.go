package main

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malefirc/malefirc/irc"
)

func TestBindNickUniqueness(t *testing.T) {
	s := newTestServer()

	a := newTestClient(t, s)
	b := newTestClient(t, s)

	require.True(t, s.world.BindNick(a, "dave"))
	assert.False(t, s.world.BindNick(b, "dave"))
	assert.False(t, s.world.BindNick(b, "DAVE"),
		"nick comparison is case-insensitive")

	// Rebinding your own nick is fine.
	assert.True(t, s.world.BindNick(a, "Dave"))
}

func TestBindNickConcurrent(t *testing.T) {
	s := newTestServer()

	const contenders = 32
	var won atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < contenders; i++ {
		c := newTestClient(t, s)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.world.BindNick(c, "highlander") {
				won.Add(1)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), won.Load())
}

func TestBindNickRename(t *testing.T) {
	s := newTestServer()
	c := newTestClient(t, s)

	require.True(t, s.world.BindNick(c, "old"))
	c.mu.Lock()
	c.nick = "old"
	c.mu.Unlock()

	require.True(t, s.world.BindNick(c, "new"))

	assert.Nil(t, s.world.ClientByNick("old"))
	assert.Equal(t, c, s.world.ClientByNick("new"))
}

func TestChannelLifecycle(t *testing.T) {
	s := newTestServer()
	c := newTestClient(t, s)

	ch := s.world.GetOrCreateChannel("#Test")
	assert.Equal(t, "#test", ch.Name)
	assert.Same(t, ch, s.world.GetOrCreateChannel("#test"))

	ch.mu.Lock()
	ch.addMember(c)
	ch.mu.Unlock()

	// Not empty, so the drop is a no-op.
	s.world.DropChannelIfEmpty(ch)
	assert.Same(t, ch, s.world.ChannelByName("#test"))

	ch.mu.Lock()
	ch.removeMember(c)
	ch.mu.Unlock()

	s.world.DropChannelIfEmpty(ch)
	assert.Nil(t, s.world.ChannelByName("#test"))
	assert.True(t, ch.dead)
}

func TestFirstJoinerBecomesOperator(t *testing.T) {
	s := newTestServer()
	a := newTestClient(t, s)
	b := newTestClient(t, s)

	ch := s.world.GetOrCreateChannel("#ops")
	ch.mu.Lock()
	ch.addMember(a)
	ch.addMember(b)
	operA := ch.isOperator(a)
	operB := ch.isOperator(b)
	ch.mu.Unlock()

	assert.True(t, operA)
	assert.False(t, operB)
}

func TestMembershipSymmetry(t *testing.T) {
	s := newTestServer()

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = newTestClient(t, s)
		register(t, s, clients[i], fmt.Sprintf("user%d", i))
	}

	channels := []string{"#one", "#two", "#three"}

	// Everyone joins everything, then user0 leaves #one, user1 is
	// kicked from #two, and user2 quits.
	for _, c := range clients {
		for _, name := range channels {
			s.handleMessage(c, irc.Message{Command: irc.CmdJoin,
				Params: []string{name}})
		}
	}

	s.handleMessage(clients[0], irc.Message{Command: irc.CmdPart,
		Params: []string{"#one"}})
	s.handleMessage(clients[0], irc.Message{Command: irc.CmdKick,
		Params: []string{"#two", "user1"}})
	clients[2].quit("bye")

	for _, c := range clients {
		for _, name := range channels {
			ch := s.world.ChannelByName(name)
			require.NotNil(t, ch)

			ch.mu.Lock()
			inChannel := ch.isMember(c)
			ch.mu.Unlock()

			c.mu.Lock()
			_, inClient := c.channels[name]
			c.mu.Unlock()

			assert.Equal(t, inChannel, inClient,
				"%s membership of %s out of sync", c.Nick(), name)
		}
	}
}

func TestCounts(t *testing.T) {
	s := newTestServer()

	a := newTestClient(t, s)
	register(t, s, a, "alice")
	newTestClient(t, s)

	s.handleMessage(a, irc.Message{Command: irc.CmdOper,
		Params: []string{"admin", "adminpass"}})
	joinChannelFor(t, s, a, "#counted")

	users, opers, unknown, channels := s.world.Counts()
	assert.Equal(t, 1, users)
	assert.Equal(t, 1, opers)
	assert.Equal(t, 1, unknown)
	assert.Equal(t, 1, channels)
}
