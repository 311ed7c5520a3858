package main

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/malefirc/malefirc/irc"
)

// Client is a connection to the server. It may or may not have
// completed registration. Lock order is world, then channel, then the
// client's mu; the mu guards only the client's own fields and is never
// held across I/O or store calls.
type Client struct {
	server *Server
	conn   Conn

	// writeChan is consumed by the write loop alone. Producers that
	// would block instead set sendQueueExceeded.
	writeChan         chan irc.Message
	sendQueueExceeded atomic.Bool

	// done closes exactly once, during cleanup. Producers stop queueing
	// after it closes; the write loop drains and closes the socket.
	done     chan struct{}
	quitOnce sync.Once

	mu sync.Mutex

	nick     string
	user     string
	realName string

	registered bool

	// password supplied by PASS before registration.
	password string

	caps map[string]struct{}

	authenticated bool
	account       string

	// SASL PLAIN submode.
	saslStarted bool
	saslBuf     string

	modes map[byte]bool

	awayMessage string

	// channels is the set the client is a member of, keyed by
	// canonicalized name. Kept in step with each channel's member map.
	channels map[string]*Channel

	connectedAt  time.Time
	lastActivity time.Time
}

func newClient(s *Server, conn Conn) *Client {
	now := time.Now()
	return &Client{
		server:       s,
		conn:         conn,
		writeChan:    make(chan irc.Message, 512),
		done:         make(chan struct{}),
		caps:         make(map[string]struct{}),
		modes:        make(map[byte]bool),
		channels:     make(map[string]*Channel),
		connectedAt:  now,
		lastActivity: now,
	}
}

func (c *Client) String() string {
	return c.mask()
}

func (c *Client) Nick() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nick
}

// nickOrStar is the nick to address numerics to. Placeholder before a
// nick is known.
func (c *Client) nickOrStar() string {
	if nick := c.Nick(); nick != "" {
		return nick
	}
	return "*"
}

// mask is the client's nick!user@host.
func (c *Client) mask() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("%s!%s@%s", c.nick, c.user, c.conn.Hostname)
}

func (c *Client) Registered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}

func (c *Client) isOper() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modes['o']
}

// Away returns the away message, blank when not away.
func (c *Client) Away() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awayMessage
}

func (c *Client) hasCap(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.caps[name]
	return ok
}

// Account returns the account name, blank when not authenticated.
func (c *Client) Account() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account
}

// Channels returns the channels the client is in, sorted by name.
// Cross-channel sweeps lock them in this order.
func (c *Client) Channels() []*Channel {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool {
		return channels[i].Name < channels[j].Name
	})

	return channels
}

func (c *Client) touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now()
}

func (c *Client) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// maybeQueueMessage queues a message for the write loop. If the queue
// is full we flag the connection rather than block; the write loop
// tears it down.
func (c *Client) maybeQueueMessage(m irc.Message) {
	if c.sendQueueExceeded.Load() {
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.writeChan <- m:
	default:
		c.sendQueueExceeded.Store(true)
	}
}

// readLoop reads and dispatches messages until the connection drops.
func (c *Client) readLoop() {
	for {
		line, err := c.conn.Read()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.server.log.WithFields(logrus.Fields{
					"client": c.String(),
					"error":  err,
				}).Debug("read error")
			}
			c.quit("Connection closed")
			return
		}

		m, err := irc.ParseMessage(line)
		if err != nil {
			continue
		}

		c.touch()
		c.server.handleMessage(c, m)

		select {
		case <-c.done:
			return
		default:
		}
	}
}

// writeLoop is the sole consumer of writeChan. After done closes it
// drains what is buffered and closes the socket.
func (c *Client) writeLoop() {
	for {
		select {
		case m := <-c.writeChan:
			if err := c.writeMessage(m); err != nil {
				go c.quit("Connection closed")
				<-c.done
			}
		case <-c.done:
			for {
				select {
				case m := <-c.writeChan:
					_ = c.writeMessage(m)
				default:
					_ = c.conn.Close()
					return
				}
			}
		}

		if c.sendQueueExceeded.Load() {
			go c.quit("SendQ exceeded")
			<-c.done
		}
	}
}

// writeMessage serializes one message, stripping tags when the client
// did not negotiate message-tags.
func (c *Client) writeMessage(m irc.Message) error {
	if len(m.Tags) > 0 && !c.hasCap("message-tags") {
		m.Tags = nil
	}

	line, err := m.Encode()
	if err != nil {
		c.server.log.WithFields(logrus.Fields{
			"client": c.String(),
			"error":  err,
		}).Warn("dropping unencodable message")
		return nil
	}

	return c.conn.Write(line)
}

// quit tears the connection down. Safe to call from any goroutine and
// from any exit path; only the first call does anything.
func (c *Client) quit(reason string) {
	c.quitOnce.Do(func() {
		c.server.cleanupClient(c, reason)
	})
}

// maybeCompleteRegistration promotes the client to registered once both
// NICK and USER have arrived, then sends the welcome burst.
func (c *Client) maybeCompleteRegistration() {
	c.mu.Lock()
	if c.registered || c.nick == "" || c.user == "" {
		c.mu.Unlock()
		return
	}
	c.registered = true
	password := c.password
	username := c.user
	c.password = ""
	alreadyAuthed := c.authenticated
	c.mu.Unlock()

	// A PASS password is tried against the account matching the
	// username. Best effort; failure is silent.
	if password != "" && !alreadyAuthed {
		ok, err := c.server.Store.Authenticate(username, password)
		if err != nil {
			c.server.log.WithFields(logrus.Fields{
				"client": c.String(),
				"error":  err,
			}).Error("authentication lookup failed")
		}
		if ok && err == nil {
			c.mu.Lock()
			c.authenticated = true
			c.account = username
			c.mu.Unlock()
		}
	}

	s := c.server
	nick := c.Nick()

	// 001 RPL_WELCOME
	s.messageFromServer(c, irc.RplWelcome, []string{fmt.Sprintf(
		"Welcome to the Internet Relay Chat Network %s", nick)})

	// 002 RPL_YOURHOST
	s.messageFromServer(c, irc.RplYourhost, []string{fmt.Sprintf(
		"Your host is %s, running version %s", s.Config.ServerName,
		serverVersion)})

	// 003 RPL_CREATED
	s.messageFromServer(c, irc.RplCreated, []string{fmt.Sprintf(
		"This server was created %s", s.startTime.Format(time.RFC1123))})

	// 004 RPL_MYINFO
	s.messageFromServer(c, irc.RplMyinfo, []string{
		s.Config.ServerName, serverVersion, "iow", "biklmnopstv"})

	// 005 RPL_ISUPPORT
	s.messageFromServer(c, irc.RplIsupport, []string{
		"CHANTYPES=#", "PREFIX=(ov)@+", "CASEMAPPING=ascii",
		"are supported by this server"})

	if c.Account() != "" {
		// 900 RPL_LOGGEDIN
		s.messageFromServer(c, irc.RplLoggedin, []string{c.mask(),
			c.Account(), fmt.Sprintf("You are now logged in as %s",
				c.Account())})
	}

	s.lusersBurst(c)
	s.motdBurst(c)

	s.log.WithFields(logrus.Fields{
		"nick": nick,
		"host": c.conn.Hostname,
	}).Info("client registered")
}
