// malefirc is an IRC server. It speaks RFC 1459/2812 with a handful of
// IRCv3 extensions (CAP, SASL PLAIN, message-tags with msgid and
// +reply) and persists message history through a pluggable store.
package main

import (
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"github.com/malefirc/malefirc/irc"
	"github.com/malefirc/malefirc/store"
)

const serverVersion = "malefirc-1.0.0"

// How many departed nicks WHOWAS remembers.
const whowasSize = 64

// How often the history sweeper runs.
const sweepInterval = time.Hour

// Server ties together the listeners, the world, and the store.
type Server struct {
	Config Config
	Store  store.Store

	world *World
	log   *logrus.Logger

	wg *conc.WaitGroup

	listeners []net.Listener

	shutdownChan chan struct{}
	shutdownOnce sync.Once

	startTime time.Time

	whowasMu sync.Mutex
	whowas   []whowasEntry
}

type whowasEntry struct {
	nick     string
	user     string
	host     string
	realName string
	seen     time.Time
}

func newServer(cfg Config, st store.Store, log *logrus.Logger) *Server {
	return &Server{
		Config:       cfg,
		Store:        st,
		world:        NewWorld(),
		log:          log,
		wg:           conc.NewWaitGroup(),
		shutdownChan: make(chan struct{}),
		startTime:    time.Now(),
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		TimestampFormat: time.RFC3339,
	})
	if strings.EqualFold(os.Getenv("IRC_DEBUG"), "true") {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func openStore(cfg Config, log *logrus.Logger) (store.Store, error) {
	if cfg.Database == "" {
		log.Info("no database configured, using in-memory store")
		return store.NewMemory(), nil
	}
	return store.OpenSQL(cfg.Database)
}

func main() {
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		log.WithField("error", err).Fatal("configuration error")
	}

	st, err := openStore(cfg, log)
	if err != nil {
		log.WithField("error", err).Fatal("store error")
	}

	s := newServer(cfg, st, log)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		log.WithField("signal", sig.String()).Info("shutting down")
		s.Shutdown()
	}()

	if err := s.Run(); err != nil {
		log.WithField("error", err).Fatal("server error")
	}
}

// Run starts the listeners and background tasks and blocks until
// Shutdown. It returns once every connection task has finished.
func (s *Server) Run() error {
	if err := s.bindListeners(); err != nil {
		return err
	}

	s.wg.Go(s.pinger)
	s.wg.Go(s.historySweeper)

	<-s.shutdownChan

	for _, ln := range s.listeners {
		_ = ln.Close()
	}

	for _, c := range s.world.AllClients() {
		c.quit("Server shutting down")
	}

	s.wg.Wait()

	return s.Store.Close()
}

// Shutdown asks Run to stop. Safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
	})
}

func (s *Server) isShuttingDown() bool {
	select {
	case <-s.shutdownChan:
		return true
	default:
		return false
	}
}

// pinger sends a PING to clients that have been quiet for the
// configured interval. Idle clients are never disconnected.
func (s *Server) pinger() {
	if s.Config.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.Config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdownChan:
			return
		case now := <-ticker.C:
			for _, c := range s.world.AllClients() {
				if now.Sub(c.idleSince()) < s.Config.PingInterval {
					continue
				}
				s.messageFromServer(c, irc.CmdPing, []string{
					s.Config.ServerName})
			}
		}
	}
}

// historySweeper deletes history entries older than the retention
// window, when one is configured.
func (s *Server) historySweeper() {
	if s.Config.HistoryRetention <= 0 {
		return
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdownChan:
			return
		case now := <-ticker.C:
			cutoff := store.NowMs(now.Add(-s.Config.HistoryRetention))
			deleted, err := s.Store.CleanupOlderThan(cutoff)
			if err != nil {
				s.log.WithField("error", err).Error("history sweep failed")
				continue
			}
			if deleted > 0 {
				s.log.WithField("deleted", deleted).
					Info("swept old history")
			}
		}
	}
}

// cleanupClient is the single teardown path for a connection. Called
// exactly once, via Client.quit.
func (s *Server) cleanupClient(c *Client, reason string) {
	quitMsg := irc.Message{
		Prefix:  c.mask(),
		Command: irc.CmdQuit,
		Params:  []string{reason},
	}

	// Channels in lexical order; one QUIT per channel to the remaining
	// members.
	for _, ch := range c.Channels() {
		ch.mu.Lock()
		if ch.isMember(c) {
			ch.removeMember(c)
			ch.broadcast(quitMsg, nil)
		}
		empty := len(ch.members) == 0
		ch.mu.Unlock()

		if empty {
			s.world.DropChannelIfEmpty(ch)
		}
	}

	c.mu.Lock()
	c.channels = make(map[string]*Channel)
	nick := c.nick
	user := c.user
	realName := c.realName
	registered := c.registered
	c.mu.Unlock()

	s.world.ReleaseNick(nick)
	s.world.RemoveClient(c)

	if registered {
		s.rememberWhowas(whowasEntry{
			nick:     nick,
			user:     user,
			host:     c.conn.Hostname,
			realName: realName,
			seen:     time.Now(),
		})
	}

	close(c.done)

	s.log.WithFields(logrus.Fields{
		"nick":   nick,
		"reason": reason,
	}).Info("client disconnected")
}

// rememberWhowas records a departed client for WHOWAS, keeping the
// newest whowasSize entries.
func (s *Server) rememberWhowas(e whowasEntry) {
	s.whowasMu.Lock()
	defer s.whowasMu.Unlock()

	s.whowas = append(s.whowas, e)
	if len(s.whowas) > whowasSize {
		s.whowas = s.whowas[len(s.whowas)-whowasSize:]
	}
}

// whowasFor returns remembered entries for a nick, newest first.
func (s *Server) whowasFor(nick string) []whowasEntry {
	canon := canonicalizeNick(nick)

	s.whowasMu.Lock()
	defer s.whowasMu.Unlock()

	var entries []whowasEntry
	for i := len(s.whowas) - 1; i >= 0; i-- {
		if canonicalizeNick(s.whowas[i].nick) == canon {
			entries = append(entries, s.whowas[i])
		}
	}

	return entries
}
