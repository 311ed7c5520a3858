package main

import (
	"bufio"
	"encoding/base64"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malefirc/malefirc/irc"
)

func TestCapNegotiation(t *testing.T) {
	s := newTestServer()
	c := newTestClient(t, s)

	s.handleMessage(c, irc.Message{Command: irc.CmdCap,
		Params: []string{"LS"}})
	ls := requireReply(t, c, irc.CmdCap)
	assert.Equal(t, "LS", ls.Params[1])
	assert.Equal(t, "sasl message-tags msgid", ls.Params[2])

	s.handleMessage(c, irc.Message{Command: irc.CmdCap,
		Params: []string{"REQ", "message-tags msgid"}})
	ack := requireReply(t, c, irc.CmdCap)
	assert.Equal(t, "ACK", ack.Params[1])
	assert.True(t, c.hasCap("message-tags"))
	assert.True(t, c.hasCap("msgid"))

	s.handleMessage(c, irc.Message{Command: irc.CmdCap,
		Params: []string{"REQ", "sasl bogus"}})
	nak := requireReply(t, c, irc.CmdCap)
	assert.Equal(t, "NAK", nak.Params[1])
	assert.False(t, c.hasCap("sasl"), "NAK applies nothing")

	s.handleMessage(c, irc.Message{Command: irc.CmdCap,
		Params: []string{"REQ", "-message-tags"}})
	requireReply(t, c, irc.CmdCap)
	assert.False(t, c.hasCap("message-tags"))

	s.handleMessage(c, irc.Message{Command: irc.CmdCap,
		Params: []string{"LIST"}})
	list := requireReply(t, c, irc.CmdCap)
	assert.Equal(t, "msgid", list.Params[2])

	s.handleMessage(c, irc.Message{Command: irc.CmdCap,
		Params: []string{"END"}})
	requireSilence(t, c)
}

func saslPayload(account, password string) string {
	return base64.StdEncoding.EncodeToString(
		[]byte("\x00" + account + "\x00" + password))
}

func TestSASLPlainSuccess(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.Store.CreateAccount("alice", "hunter2", ""))

	c := newTestClient(t, s)

	s.handleMessage(c, irc.Message{Command: irc.CmdAuthenticate,
		Params: []string{"PLAIN"}})
	prompt := requireReply(t, c, irc.CmdAuthenticate)
	assert.Equal(t, []string{"+"}, prompt.Params)

	s.handleMessage(c, irc.Message{Command: irc.CmdAuthenticate,
		Params: []string{saslPayload("alice", "hunter2")}})

	msgs := drain(c)
	require.NotNil(t, findCommand(msgs, irc.RplSaslsuccess))
	loggedIn := findCommand(msgs, irc.RplLoggedin)
	require.NotNil(t, loggedIn)
	assert.Equal(t, "alice", loggedIn.Params[2])

	assert.Equal(t, "alice", c.Account())

	// A second attempt is refused.
	s.handleMessage(c, irc.Message{Command: irc.CmdAuthenticate,
		Params: []string{"PLAIN"}})
	requireReply(t, c, irc.ErrSaslalready)
}

func TestSASLPlainFailure(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.Store.CreateAccount("alice", "hunter2", ""))

	c := newTestClient(t, s)

	s.handleMessage(c, irc.Message{Command: irc.CmdAuthenticate,
		Params: []string{"PLAIN"}})
	drain(c)

	s.handleMessage(c, irc.Message{Command: irc.CmdAuthenticate,
		Params: []string{saslPayload("alice", "wrong")}})
	requireReply(t, c, irc.ErrSaslfail)
	assert.Empty(t, c.Account())

	// Garbage that is not base64 also fails.
	s.handleMessage(c, irc.Message{Command: irc.CmdAuthenticate,
		Params: []string{"PLAIN"}})
	drain(c)
	s.handleMessage(c, irc.Message{Command: irc.CmdAuthenticate,
		Params: []string{"!!!not-base64!!!"}})
	requireReply(t, c, irc.ErrSaslfail)
}

func TestSASLAbort(t *testing.T) {
	s := newTestServer()
	c := newTestClient(t, s)

	s.handleMessage(c, irc.Message{Command: irc.CmdAuthenticate,
		Params: []string{"PLAIN"}})
	drain(c)

	s.handleMessage(c, irc.Message{Command: irc.CmdAuthenticate,
		Params: []string{"*"}})
	requireReply(t, c, irc.ErrSaslaborted)

	// Unknown mechanisms fail outright.
	s.handleMessage(c, irc.Message{Command: irc.CmdAuthenticate,
		Params: []string{"EXTERNAL"}})
	requireReply(t, c, irc.ErrSaslfail)
}

func TestSASLChunkedPayload(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.Store.CreateAccount("alice", "hunter2", ""))

	c := newTestClient(t, s)

	s.handleMessage(c, irc.Message{Command: irc.CmdAuthenticate,
		Params: []string{"PLAIN"}})
	drain(c)

	// A long authzid pushes the payload over one chunk. A chunk of
	// exactly saslChunkSize characters means more follow; the shorter
	// remainder ends the payload.
	authzid := strings.Repeat("z", 400)
	payload := base64.StdEncoding.EncodeToString(
		[]byte(authzid + "\x00alice\x00hunter2"))
	require.Greater(t, len(payload), saslChunkSize)

	s.handleMessage(c, irc.Message{Command: irc.CmdAuthenticate,
		Params: []string{payload[:saslChunkSize]}})
	requireSilence(t, c)

	s.handleMessage(c, irc.Message{Command: irc.CmdAuthenticate,
		Params: []string{payload[saslChunkSize:]}})
	msgs := drain(c)
	require.NotNil(t, findCommand(msgs, irc.RplSaslsuccess))
	assert.Equal(t, "alice", c.Account())
}

func TestWelcomeBurst(t *testing.T) {
	s := newTestServer()
	c := newTestClient(t, s)

	s.handleMessage(c, irc.Message{Command: irc.CmdNick,
		Params: []string{"alice"}})
	requireSilence(t, c)

	s.handleMessage(c, irc.Message{Command: irc.CmdUser,
		Params: []string{"alice", "0", "*", "Alice"}})

	msgs := drain(c)
	commands := commandsOf(msgs)

	want := []string{irc.RplWelcome, irc.RplYourhost, irc.RplCreated,
		irc.RplMyinfo, irc.RplIsupport}
	require.GreaterOrEqual(t, len(commands), len(want))
	assert.Equal(t, want, commands[:len(want)])

	welcome := msgs[0]
	assert.Equal(t, "irc.test", welcome.Prefix)
	assert.Equal(t, "alice", welcome.Params[0])
	assert.Contains(t, welcome.Params[1], "alice")

	require.NotNil(t, findCommand(msgs, irc.RplLuserclient))
	require.NotNil(t, findCommand(msgs, irc.RplMotdstart))
	motd := findCommand(msgs, irc.RplMotd)
	require.NotNil(t, motd)
	assert.Contains(t, motd.Params[1], "test motd")
	require.NotNil(t, findCommand(msgs, irc.RplEndofmotd))
}

func TestPassAuthentication(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.Store.CreateAccount("bob", "secret", ""))

	c := newTestClient(t, s)
	s.handleMessage(c, irc.Message{Command: irc.CmdPass,
		Params: []string{"secret"}})
	s.handleMessage(c, irc.Message{Command: irc.CmdNick,
		Params: []string{"bob"}})
	s.handleMessage(c, irc.Message{Command: irc.CmdUser,
		Params: []string{"bob", "0", "*", "Bob"}})

	msgs := drain(c)
	loggedIn := findCommand(msgs, irc.RplLoggedin)
	require.NotNil(t, loggedIn)
	assert.Equal(t, "bob", c.Account())

	// A wrong password is silent; the session continues
	// unauthenticated.
	c2 := newTestClient(t, s)
	s.handleMessage(c2, irc.Message{Command: irc.CmdPass,
		Params: []string{"wrong"}})
	s.handleMessage(c2, irc.Message{Command: irc.CmdNick,
		Params: []string{"bob2"}})
	s.handleMessage(c2, irc.Message{Command: irc.CmdUser,
		Params: []string{"bob", "0", "*", "Bob"}})

	msgs = drain(c2)
	assert.Nil(t, findCommand(msgs, irc.RplLoggedin))
	assert.True(t, c2.Registered())
	assert.Empty(t, c2.Account())

	// PASS after registration is rejected.
	s.handleMessage(c2, irc.Message{Command: irc.CmdPass,
		Params: []string{"again"}})
	requireReply(t, c2, irc.ErrAlreadyregistred)
}

// readLine reads one CRLF-terminated line from the far side of a pipe.
func readLine(t *testing.T, conn net.Conn, lines chan<- string) {
	t.Helper()

	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		close(lines)
		return
	}
	lines <- line
}

func TestWriteMessageTagStripping(t *testing.T) {
	s := newTestServer()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	c := newClient(s, NewConn(remote))
	tagged := irc.Message{
		Tags:    map[string]string{"msgid": "7"},
		Prefix:  "alice!alice@localhost",
		Command: irc.CmdPrivmsg,
		Params:  []string{"#t", "hi"},
	}

	lines := make(chan string, 1)

	// Without message-tags the tags are stripped at the boundary.
	go readLine(t, local, lines)
	require.NoError(t, c.writeMessage(tagged))
	line := <-lines
	assert.False(t, strings.HasPrefix(line, "@"))
	assert.True(t, strings.HasSuffix(line, "\r\n"))

	enableCap(c, "message-tags")
	go readLine(t, local, lines)
	require.NoError(t, c.writeMessage(tagged))
	line = <-lines
	assert.True(t, strings.HasPrefix(line, "@msgid=7 "))
}

func TestSendQueueOverflow(t *testing.T) {
	s := newTestServer()
	c := newTestClient(t, s)

	// Nothing consumes writeChan here, so filling it past its capacity
	// flags the client instead of blocking.
	m := irc.Message{Command: irc.CmdPing, Params: []string{"x"}}
	for i := 0; i < cap(c.writeChan)+10; i++ {
		c.maybeQueueMessage(m)
	}

	assert.True(t, c.sendQueueExceeded.Load())
	assert.Len(t, drain(c), cap(c.writeChan))
}
