package main

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/malefirc/malefirc/irc"
)

// Commands honored before registration completes. Everything else is
// silently dropped until then.
var preRegistrationCommands = map[string]struct{}{
	irc.CmdPass:         {},
	irc.CmdCap:          {},
	irc.CmdAuthenticate: {},
	irc.CmdNick:         {},
	irc.CmdUser:         {},
	irc.CmdQuit:         {},
	irc.CmdPing:         {},
}

// handleMessage dispatches one inbound message.
func (s *Server) handleMessage(c *Client, m irc.Message) {
	if !c.Registered() {
		if _, ok := preRegistrationCommands[m.Command]; !ok {
			return
		}
	}

	s.log.WithFields(logrus.Fields{
		"client":  c.String(),
		"command": m.Command,
	}).Debug("dispatching")

	switch m.Command {
	case irc.CmdPass:
		s.passCommand(c, m)
	case irc.CmdCap:
		s.capCommand(c, m)
	case irc.CmdAuthenticate:
		s.authenticateCommand(c, m)
	case irc.CmdNick:
		s.nickCommand(c, m)
	case irc.CmdUser:
		s.userCommand(c, m)
	case irc.CmdJoin:
		s.joinCommand(c, m)
	case irc.CmdPart:
		s.partCommand(c, m)
	case irc.CmdPrivmsg, irc.CmdNotice:
		s.privmsgCommand(c, m)
	case irc.CmdTopic:
		s.topicCommand(c, m)
	case irc.CmdNames:
		s.namesCommand(c, m)
	case irc.CmdList:
		s.listCommand(c, m)
	case irc.CmdWho:
		s.whoCommand(c, m)
	case irc.CmdMode:
		s.modeCommand(c, m)
	case irc.CmdInvite:
		s.inviteCommand(c, m)
	case irc.CmdKick:
		s.kickCommand(c, m)
	case irc.CmdWhois:
		s.whoisCommand(c, m)
	case irc.CmdWhowas:
		s.whowasCommand(c, m)
	case irc.CmdAway:
		s.awayCommand(c, m)
	case irc.CmdOper:
		s.operCommand(c, m)
	case irc.CmdKill:
		s.killCommand(c, m)
	case irc.CmdPing:
		s.pingCommand(c, m)
	case irc.CmdPong:
		// Nothing beyond the activity timestamp the read loop took.
	case irc.CmdMotd:
		s.motdBurst(c)
	case irc.CmdLusers:
		s.lusersBurst(c)
	case irc.CmdVersion:
		s.versionCommand(c)
	case irc.CmdTime:
		s.timeCommand(c)
	case irc.CmdAdmin:
		s.adminCommand(c)
	case irc.CmdInfo:
		s.infoCommand(c)
	case irc.CmdUserhost:
		s.userhostCommand(c, m)
	case irc.CmdIson:
		s.isonCommand(c, m)
	case irc.CmdQuit:
		s.quitCommand(c, m)
	default:
		// 421 ERR_UNKNOWNCOMMAND
		s.messageFromServer(c, irc.ErrUnknowncommand, []string{m.Command,
			"Unknown command"})
	}
}

func (s *Server) passCommand(c *Client, m irc.Message) {
	if c.Registered() {
		// 462 ERR_ALREADYREGISTRED
		s.messageFromServer(c, irc.ErrAlreadyregistred, []string{
			"Unauthorized command (already registered)"})
		return
	}

	if m.Param(0) == "" {
		// 461 ERR_NEEDMOREPARAMS
		s.messageFromServer(c, irc.ErrNeedmoreparams, []string{irc.CmdPass,
			"Not enough parameters"})
		return
	}

	c.mu.Lock()
	c.password = m.Param(0)
	c.mu.Unlock()
}

func (s *Server) nickCommand(c *Client, m irc.Message) {
	nick := m.Param(0)

	if nick == "" {
		// 431 ERR_NONICKNAMEGIVEN
		s.messageFromServer(c, irc.ErrNonicknamegiven, []string{
			"No nickname given"})
		return
	}

	if !isValidNick(nick) {
		// 432 ERR_ERRONEUSNICKNAME
		s.messageFromServer(c, irc.ErrErroneusnickname, []string{nick,
			"Erroneous nickname"})
		return
	}

	oldMask := c.mask()

	if !s.world.BindNick(c, nick) {
		// 433 ERR_NICKNAMEINUSE
		s.messageFromServer(c, irc.ErrNicknameinuse, []string{nick,
			"Nickname is already in use"})
		return
	}

	c.mu.Lock()
	unchanged := c.nick == nick
	c.nick = nick
	c.mu.Unlock()

	if !c.Registered() {
		c.maybeCompleteRegistration()
		return
	}

	if unchanged {
		return
	}

	// Tell the client and everyone sharing a channel with it, once
	// each.
	change := irc.Message{
		Prefix:  oldMask,
		Command: irc.CmdNick,
		Params:  []string{nick},
	}

	notified := map[*Client]struct{}{c: {}}
	c.maybeQueueMessage(change)

	for _, ch := range c.Channels() {
		ch.mu.Lock()
		for member := range ch.members {
			if _, ok := notified[member]; ok {
				continue
			}
			notified[member] = struct{}{}
			member.maybeQueueMessage(change)
		}
		ch.mu.Unlock()
	}
}

func (s *Server) userCommand(c *Client, m irc.Message) {
	c.mu.Lock()
	alreadySet := c.user != ""
	c.mu.Unlock()

	if alreadySet {
		// 462 ERR_ALREADYREGISTRED
		s.messageFromServer(c, irc.ErrAlreadyregistred, []string{
			"Unauthorized command (already registered)"})
		return
	}

	if len(m.Params) < 4 {
		// 461 ERR_NEEDMOREPARAMS
		s.messageFromServer(c, irc.ErrNeedmoreparams, []string{irc.CmdUser,
			"Not enough parameters"})
		return
	}

	c.mu.Lock()
	c.user = m.Param(0)
	c.realName = m.Param(3)
	c.mu.Unlock()

	c.maybeCompleteRegistration()
}

// modeCommand splits MODE by target kind.
func (s *Server) modeCommand(c *Client, m irc.Message) {
	target := m.Param(0)
	if target == "" {
		// 461 ERR_NEEDMOREPARAMS
		s.messageFromServer(c, irc.ErrNeedmoreparams, []string{irc.CmdMode,
			"Not enough parameters"})
		return
	}

	if isChannelName(target) {
		s.channelModeCommand(c, m)
		return
	}

	s.userModeCommand(c, m)
}

func (s *Server) userModeCommand(c *Client, m irc.Message) {
	target := s.world.ClientByNick(m.Param(0))
	if target == nil {
		// 401 ERR_NOSUCHNICK
		s.messageFromServer(c, irc.ErrNosuchnick, []string{m.Param(0),
			"No such nick/channel"})
		return
	}

	if target != c && !c.isOper() {
		// 502 ERR_USERSDONTMATCH
		s.messageFromServer(c, irc.ErrUsersdontmatch, []string{
			"Cannot change mode for other users"})
		return
	}

	modeStr := m.Param(1)
	if modeStr == "" {
		target.mu.Lock()
		current := modesString(target.modes)
		target.mu.Unlock()
		if current == "" {
			current = "+"
		}
		// 221 RPL_UMODEIS
		s.messageFromServer(c, irc.RplUmodeis, []string{current})
		return
	}

	adding := true
	callerOper := c.isOper()
	unknownFlag := false
	var applied []byte

	target.mu.Lock()
	for i := 0; i < len(modeStr); i++ {
		switch letter := modeStr[i]; letter {
		case '+':
			adding = true
		case '-':
			adding = false
		case 'i', 'w':
			target.modes[letter] = adding
			applied = append(applied, directionByte(adding), letter)
		case 'o':
			// +o comes only from OPER; a server op may drop it here.
			if adding && !callerOper {
				continue
			}
			target.modes['o'] = adding
			applied = append(applied, directionByte(adding), 'o')
		default:
			unknownFlag = true
		}
	}
	target.mu.Unlock()

	if unknownFlag {
		// 501 ERR_UMODEUNKNOWNFLAG
		s.messageFromServer(c, irc.ErrUmodeunknownflag, []string{
			"Unknown MODE flag"})
	}

	if len(applied) == 0 {
		return
	}

	change := irc.Message{
		Prefix:  c.mask(),
		Command: irc.CmdMode,
		Params:  []string{target.Nick(), string(applied)},
	}
	target.maybeQueueMessage(change)
	if target != c {
		c.maybeQueueMessage(change)
	}
}

func directionByte(adding bool) byte {
	if adding {
		return '+'
	}
	return '-'
}

func (s *Server) whoisCommand(c *Client, m irc.Message) {
	// The first parameter is the target even when a server parameter
	// follows.
	nick := m.Param(0)
	if nick == "" {
		// 431 ERR_NONICKNAMEGIVEN
		s.messageFromServer(c, irc.ErrNonicknamegiven, []string{
			"No nickname given"})
		return
	}

	target := s.world.ClientByNick(nick)
	if target == nil {
		// 401 ERR_NOSUCHNICK
		s.messageFromServer(c, irc.ErrNosuchnick, []string{nick,
			"No such nick/channel"})
		return
	}

	target.mu.Lock()
	targetNick := target.nick
	user := target.user
	realName := target.realName
	away := target.awayMessage
	account := target.account
	oper := target.modes['o']
	target.mu.Unlock()

	// 311 RPL_WHOISUSER
	s.messageFromServer(c, irc.RplWhoisuser, []string{targetNick, user,
		target.conn.Hostname, "*", realName})

	var names []string
	for _, ch := range target.Channels() {
		ch.mu.Lock()
		if ch.isMember(target) {
			names = append(names, ch.nickWithPrefix(target))
		}
		ch.mu.Unlock()
	}
	if len(names) > 0 {
		// 319 RPL_WHOISCHANNELS
		s.messageFromServer(c, irc.RplWhoischannels, []string{targetNick,
			strings.Join(names, " ")})
	}

	// 312 RPL_WHOISSERVER
	s.messageFromServer(c, irc.RplWhoisserver, []string{targetNick,
		s.Config.ServerName, serverVersion})

	if oper {
		// 313 RPL_WHOISOPERATOR
		s.messageFromServer(c, irc.RplWhoisoperator, []string{targetNick,
			"is an IRC operator"})
	}

	if account != "" {
		// 330 RPL_WHOISACCOUNT
		s.messageFromServer(c, irc.RplWhoisaccount, []string{targetNick,
			account, "is logged in as"})
	}

	if away != "" {
		// 301 RPL_AWAY
		s.messageFromServer(c, irc.RplAway, []string{targetNick, away})
	}

	// 318 RPL_ENDOFWHOIS
	s.messageFromServer(c, irc.RplEndofwhois, []string{targetNick,
		"End of WHOIS list"})
}

func (s *Server) whowasCommand(c *Client, m irc.Message) {
	nick := m.Param(0)
	if nick == "" {
		// 431 ERR_NONICKNAMEGIVEN
		s.messageFromServer(c, irc.ErrNonicknamegiven, []string{
			"No nickname given"})
		return
	}

	entries := s.whowasFor(nick)
	if len(entries) == 0 {
		// 406 ERR_WASNOSUCHNICK
		s.messageFromServer(c, irc.ErrWasnosuchnick, []string{nick,
			"There was no such nickname"})
	}

	for _, e := range entries {
		// 314 RPL_WHOWASUSER
		s.messageFromServer(c, irc.RplWhowasuser, []string{e.nick, e.user,
			e.host, "*", e.realName})
	}

	// 369 RPL_ENDOFWHOWAS
	s.messageFromServer(c, irc.RplEndofwhowas, []string{nick,
		"End of WHOWAS"})
}

func (s *Server) awayCommand(c *Client, m irc.Message) {
	message := m.Param(0)

	c.mu.Lock()
	c.awayMessage = message
	c.mu.Unlock()

	if message == "" {
		// 305 RPL_UNAWAY
		s.messageFromServer(c, irc.RplUnaway, []string{
			"You are no longer marked as being away"})
		return
	}

	// 306 RPL_NOWAWAY
	s.messageFromServer(c, irc.RplNowaway, []string{
		"You have been marked as being away"})
}

func (s *Server) operCommand(c *Client, m irc.Message) {
	if len(m.Params) < 2 {
		// 461 ERR_NEEDMOREPARAMS
		s.messageFromServer(c, irc.ErrNeedmoreparams, []string{irc.CmdOper,
			"Not enough parameters"})
		return
	}

	nameOK := subtle.ConstantTimeCompare([]byte(m.Param(0)),
		[]byte(s.Config.OperName))
	passOK := subtle.ConstantTimeCompare([]byte(m.Param(1)),
		[]byte(s.Config.OperPassword))

	if nameOK&passOK != 1 {
		// 464 ERR_PASSWDMISMATCH
		s.messageFromServer(c, irc.ErrPasswdmismatch, []string{
			"Password incorrect"})
		return
	}

	c.mu.Lock()
	c.modes['o'] = true
	c.mu.Unlock()

	// 381 RPL_YOUREOPER
	s.messageFromServer(c, irc.RplYoureoper, []string{
		"You are now an IRC operator"})

	c.maybeQueueMessage(irc.Message{
		Prefix:  s.Config.ServerName,
		Command: irc.CmdMode,
		Params:  []string{c.Nick(), "+o"},
	})

	s.log.WithField("nick", c.Nick()).Info("operator granted")
}

func (s *Server) killCommand(c *Client, m irc.Message) {
	if !c.isOper() {
		// 481 ERR_NOPRIVILEGES
		s.messageFromServer(c, irc.ErrNoprivileges, []string{
			"Permission Denied- You're not an IRC operator"})
		return
	}

	target := s.world.ClientByNick(m.Param(0))
	if target == nil {
		// 401 ERR_NOSUCHNICK
		s.messageFromServer(c, irc.ErrNosuchnick, []string{m.Param(0),
			"No such nick/channel"})
		return
	}

	reason := m.Param(1)
	if reason == "" {
		reason = "Killed"
	}

	quitReason := fmt.Sprintf("Killed (%s (%s))", c.Nick(), reason)

	target.maybeQueueMessage(irc.Message{
		Prefix:  s.Config.ServerName,
		Command: irc.CmdError,
		Params:  []string{fmt.Sprintf("Closing Link: %s", quitReason)},
	})

	target.quit(quitReason)
}

func (s *Server) pingCommand(c *Client, m irc.Message) {
	token := m.Param(0)
	if token == "" {
		// 409 ERR_NOORIGIN
		s.messageFromServer(c, irc.ErrNoorigin, []string{
			"No origin specified"})
		return
	}

	c.maybeQueueMessage(irc.Message{
		Prefix:  s.Config.ServerName,
		Command: irc.CmdPong,
		Params:  []string{s.Config.ServerName, token},
	})
}

func (s *Server) versionCommand(c *Client) {
	// 351 RPL_VERSION
	s.messageFromServer(c, irc.RplVersion, []string{serverVersion,
		s.Config.ServerName, "https://github.com/malefirc/malefirc"})
}

func (s *Server) timeCommand(c *Client) {
	// 391 RPL_TIME
	s.messageFromServer(c, irc.RplTime, []string{s.Config.ServerName,
		time.Now().Format(time.RFC1123)})
}

func (s *Server) adminCommand(c *Client) {
	// 256 RPL_ADMINME
	s.messageFromServer(c, irc.RplAdminme, []string{s.Config.ServerName,
		"Administrative info"})
	// 257 RPL_ADMINLOC1
	s.messageFromServer(c, irc.RplAdminloc1, []string{fmt.Sprintf(
		"Name: %s", s.Config.ServerName)})
	// 258 RPL_ADMINLOC2
	s.messageFromServer(c, irc.RplAdminloc2, []string{fmt.Sprintf(
		"Running %s", serverVersion)})
	// 259 RPL_ADMINEMAIL
	s.messageFromServer(c, irc.RplAdminemail, []string{fmt.Sprintf(
		"admin@%s", s.Config.ServerName)})
}

func (s *Server) infoCommand(c *Client) {
	// 371 RPL_INFO
	s.messageFromServer(c, irc.RplInfo, []string{fmt.Sprintf(
		"%s running on %s", serverVersion, s.Config.ServerName)})
	s.messageFromServer(c, irc.RplInfo, []string{fmt.Sprintf(
		"Up since %s", s.startTime.Format(time.RFC1123))})
	// 374 RPL_ENDOFINFO
	s.messageFromServer(c, irc.RplEndofinfo, []string{"End of INFO list"})
}

func (s *Server) userhostCommand(c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		// 461 ERR_NEEDMOREPARAMS
		s.messageFromServer(c, irc.ErrNeedmoreparams, []string{
			irc.CmdUserhost, "Not enough parameters"})
		return
	}

	var replies []string
	for i, nick := range m.Params {
		if i >= 5 {
			break
		}

		target := s.world.ClientByNick(nick)
		if target == nil {
			continue
		}

		target.mu.Lock()
		oper := ""
		if target.modes['o'] {
			oper = "*"
		}
		sign := "+"
		if target.awayMessage != "" {
			sign = "-"
		}
		replies = append(replies, fmt.Sprintf("%s%s=%s%s@%s", target.nick,
			oper, sign, target.user, target.conn.Hostname))
		target.mu.Unlock()
	}

	// 302 RPL_USERHOST
	s.messageFromServer(c, irc.RplUserhost, []string{
		strings.Join(replies, " ")})
}

func (s *Server) isonCommand(c *Client, m irc.Message) {
	if len(m.Params) == 0 {
		// 461 ERR_NEEDMOREPARAMS
		s.messageFromServer(c, irc.ErrNeedmoreparams, []string{irc.CmdIson,
			"Not enough parameters"})
		return
	}

	var present []string
	for _, param := range m.Params {
		for _, nick := range strings.Fields(param) {
			if target := s.world.ClientByNick(nick); target != nil {
				present = append(present, target.Nick())
			}
		}
	}

	// 303 RPL_ISON
	s.messageFromServer(c, irc.RplIson, []string{
		strings.Join(present, " ")})
}

func (s *Server) quitCommand(c *Client, m irc.Message) {
	reason := m.Param(0)
	if reason == "" {
		reason = "Client quit"
	}

	c.maybeQueueMessage(irc.Message{
		Prefix:  s.Config.ServerName,
		Command: irc.CmdError,
		Params:  []string{fmt.Sprintf("Closing Link: %s", reason)},
	})

	c.quit(reason)
}
