package main

import (
	"io"
	"net"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/malefirc/malefirc/irc"
	"github.com/malefirc/malefirc/store"
)

func newTestServer() *Server {
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := Config{
		Port:         6667,
		ServerName:   "irc.test",
		OperName:     "admin",
		OperPassword: "adminpass",
		MOTD:         "test motd",
	}

	return newServer(cfg, store.NewMemory(), log)
}

// newTestClient makes a client over a pipe. Neither the read loop nor
// the write loop runs; tests feed handleMessage directly and read the
// queued output from writeChan.
func newTestClient(t *testing.T, s *Server) *Client {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	c := newClient(s, NewConn(remote))
	s.world.AddClient(c)

	return c
}

// register runs the NICK/USER handshake and discards the welcome
// burst.
func register(t *testing.T, s *Server, c *Client, nick string) {
	t.Helper()

	s.handleMessage(c, irc.Message{Command: irc.CmdNick,
		Params: []string{nick}})
	s.handleMessage(c, irc.Message{Command: irc.CmdUser,
		Params: []string{nick, "0", "*", "Real " + nick}})

	if !c.Registered() {
		t.Fatalf("client %s did not register", nick)
	}

	drain(c)
}

// drain returns everything queued for the client so far.
func drain(c *Client) []irc.Message {
	var msgs []irc.Message
	for {
		select {
		case m := <-c.writeChan:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func findCommand(msgs []irc.Message, command string) *irc.Message {
	for i := range msgs {
		if msgs[i].Command == command {
			return &msgs[i]
		}
	}
	return nil
}

func commandsOf(msgs []irc.Message) []string {
	commands := make([]string, len(msgs))
	for i, m := range msgs {
		commands[i] = m.Command
	}
	return commands
}

// requireReply fails unless the client's queued output contains the
// numeric, and returns that message.
func requireReply(t *testing.T, c *Client, numeric string) irc.Message {
	t.Helper()

	msgs := drain(c)
	m := findCommand(msgs, numeric)
	if m == nil {
		t.Fatalf("expected %s, got %v", numeric, commandsOf(msgs))
	}

	return *m
}

// requireSilence fails if anything is queued for the client.
func requireSilence(t *testing.T, c *Client) {
	t.Helper()

	if msgs := drain(c); len(msgs) != 0 {
		t.Fatalf("expected no messages, got %v", commandsOf(msgs))
	}
}

// joinChannelFor registers nothing; it just sends a JOIN and discards
// the output for this client.
func joinChannelFor(t *testing.T, s *Server, c *Client, name string) {
	t.Helper()

	s.handleMessage(c, irc.Message{Command: irc.CmdJoin,
		Params: []string{name}})

	msgs := drain(c)
	if findCommand(msgs, irc.CmdJoin) == nil {
		t.Fatalf("join of %s failed: %v", name, commandsOf(msgs))
	}
}

func enableCap(c *Client, name string) {
	c.mu.Lock()
	c.caps[name] = struct{}{}
	c.mu.Unlock()
}
