package main

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/malefirc/malefirc/irc"
)

// Capabilities we advertise.
var supportedCaps = []string{"sasl", "message-tags", "msgid"}

// SASL payloads arrive in chunks of exactly this many base64
// characters; a shorter chunk ends the payload.
const saslChunkSize = 400

func isSupportedCap(name string) bool {
	for _, c := range supportedCaps {
		if c == name {
			return true
		}
	}
	return false
}

// capCommand implements CAP negotiation (LS, LIST, REQ, END).
func (s *Server) capCommand(c *Client, m irc.Message) {
	sub := strings.ToUpper(m.Param(0))

	reply := func(sub, caps string) {
		c.maybeQueueMessage(irc.Message{
			Prefix:  s.Config.ServerName,
			Command: irc.CmdCap,
			Params:  []string{c.nickOrStar(), sub, caps},
		})
	}

	switch sub {
	case "LS":
		reply("LS", strings.Join(supportedCaps, " "))

	case "LIST":
		c.mu.Lock()
		enabled := make([]string, 0, len(c.caps))
		for _, name := range supportedCaps {
			if _, ok := c.caps[name]; ok {
				enabled = append(enabled, name)
			}
		}
		c.mu.Unlock()
		reply("LIST", strings.Join(enabled, " "))

	case "REQ":
		requested := strings.Fields(m.Param(1))

		for _, name := range requested {
			if !isSupportedCap(strings.TrimPrefix(name, "-")) {
				reply("NAK", strings.Join(requested, " "))
				return
			}
		}

		c.mu.Lock()
		for _, name := range requested {
			if bare := strings.TrimPrefix(name, "-"); bare != name {
				delete(c.caps, bare)
			} else {
				c.caps[name] = struct{}{}
			}
		}
		c.mu.Unlock()

		reply("ACK", strings.Join(requested, " "))

	case "END":
		// Checkpoint only. Registration completes via NICK/USER.

	default:
		// Unknown subcommands are ignored.
	}
}

// authenticateCommand implements SASL PLAIN.
func (s *Server) authenticateCommand(c *Client, m irc.Message) {
	arg := m.Param(0)

	c.mu.Lock()
	started := c.saslStarted
	authed := c.authenticated
	c.mu.Unlock()

	if authed {
		// 907 ERR_SASLALREADY
		s.messageFromServer(c, irc.ErrSaslalready, []string{
			"You have already authenticated using SASL"})
		return
	}

	if !started {
		if strings.ToUpper(arg) != "PLAIN" {
			// 904 ERR_SASLFAIL
			s.messageFromServer(c, irc.ErrSaslfail, []string{
				"SASL authentication failed"})
			return
		}

		c.mu.Lock()
		c.saslStarted = true
		c.saslBuf = ""
		c.mu.Unlock()

		c.maybeQueueMessage(irc.Message{
			Prefix:  s.Config.ServerName,
			Command: irc.CmdAuthenticate,
			Params:  []string{"+"},
		})
		return
	}

	if arg == "*" {
		s.resetSASL(c)
		// 906 ERR_SASLABORTED
		s.messageFromServer(c, irc.ErrSaslaborted, []string{
			"SASL authentication aborted"})
		return
	}

	if len(arg) > saslChunkSize {
		s.resetSASL(c)
		// 905 ERR_SASLTOOLONG
		s.messageFromServer(c, irc.ErrSasltoolong, []string{
			"SASL message too long"})
		return
	}

	payload := arg
	if payload == "+" {
		payload = ""
	}

	c.mu.Lock()
	c.saslBuf += payload
	buffered := c.saslBuf
	c.mu.Unlock()

	// A full-size chunk means more are coming.
	if len(arg) == saslChunkSize {
		return
	}

	s.resetSASL(c)

	account, ok := s.checkSASLPlain(buffered)
	if !ok {
		// 904 ERR_SASLFAIL
		s.messageFromServer(c, irc.ErrSaslfail, []string{
			"SASL authentication failed"})
		return
	}

	c.mu.Lock()
	c.authenticated = true
	c.account = account
	c.mu.Unlock()

	// 903 RPL_SASLSUCCESS
	s.messageFromServer(c, irc.RplSaslsuccess, []string{
		"SASL authentication successful"})

	// 900 RPL_LOGGEDIN
	s.messageFromServer(c, irc.RplLoggedin, []string{c.mask(), account,
		fmt.Sprintf("You are now logged in as %s", account)})
}

func (s *Server) resetSASL(c *Client) {
	c.mu.Lock()
	c.saslStarted = false
	c.saslBuf = ""
	c.mu.Unlock()
}

// checkSASLPlain decodes a PLAIN payload (base64 of
// authzid\0authcid\0password) and verifies it against the store.
func (s *Server) checkSASLPlain(payload string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", false
	}

	parts := strings.Split(string(raw), "\x00")
	if len(parts) != 3 {
		return "", false
	}

	account := parts[1]
	password := parts[2]
	if account == "" {
		return "", false
	}

	ok, err := s.Store.Authenticate(account, password)
	if err != nil {
		s.log.WithField("error", err).Error("authentication lookup failed")
		return "", false
	}

	if !ok {
		return "", false
	}

	return account, true
}
