package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/malefirc/malefirc/irc"
	"github.com/malefirc/malefirc/store"
)

func (s *Server) joinCommand(c *Client, m irc.Message) {
	if m.Param(0) == "" {
		// 461 ERR_NEEDMOREPARAMS
		s.messageFromServer(c, irc.ErrNeedmoreparams, []string{irc.CmdJoin,
			"Not enough parameters"})
		return
	}

	var keys []string
	if m.Param(1) != "" {
		keys = strings.Split(m.Param(1), ",")
	}

	for i, name := range strings.Split(m.Param(0), ",") {
		key := ""
		if i < len(keys) {
			key = keys[i]
		}
		s.joinChannel(c, name, key)
	}
}

func (s *Server) joinChannel(c *Client, name, key string) {
	if !isChannelName(name) {
		// 403 ERR_NOSUCHCHANNEL
		s.messageFromServer(c, irc.ErrNosuchchannel, []string{name,
			"No such channel"})
		return
	}

	canon := canonicalizeChannel(name)
	canonNick := canonicalizeNick(c.Nick())

	for {
		ch := s.world.GetOrCreateChannel(canon)

		ch.mu.Lock()
		if ch.dead {
			// Lost a race with the last member leaving. Go again.
			ch.mu.Unlock()
			continue
		}

		if ch.isMember(c) {
			ch.mu.Unlock()
			return
		}

		if ch.banned(c) {
			ch.mu.Unlock()
			// 474 ERR_BANNEDFROMCHAN
			s.messageFromServer(c, irc.ErrBannedfromchan, []string{canon,
				"Cannot join channel (+b)"})
			return
		}

		if _, invited := ch.invites[canonNick]; ch.modes['i'] && !invited {
			ch.mu.Unlock()
			// 473 ERR_INVITEONLYCHAN
			s.messageFromServer(c, irc.ErrInviteonlychan, []string{canon,
				"Cannot join channel (+i)"})
			return
		}

		if ch.key != "" && key != ch.key {
			ch.mu.Unlock()
			// 475 ERR_BADCHANNELKEY
			s.messageFromServer(c, irc.ErrBadchannelkey, []string{canon,
				"Cannot join channel (+k)"})
			return
		}

		if ch.limit > 0 && len(ch.members) >= ch.limit {
			ch.mu.Unlock()
			// 471 ERR_CHANNELISFULL
			s.messageFromServer(c, irc.ErrChannelisfull, []string{canon,
				"Cannot join channel (+l)"})
			return
		}

		ch.addMember(c)
		delete(ch.invites, canonNick)

		c.mu.Lock()
		c.channels[canon] = ch
		c.mu.Unlock()

		ch.broadcast(irc.Message{
			Prefix:  c.mask(),
			Command: irc.CmdJoin,
			Params:  []string{canon},
		}, nil)

		if ch.topic != "" {
			// 332 RPL_TOPIC
			s.messageFromServer(c, irc.RplTopic, []string{canon, ch.topic})
		} else {
			// 331 RPL_NOTOPIC
			s.messageFromServer(c, irc.RplNotopic, []string{canon,
				"No topic is set"})
		}

		s.namesReply(c, ch)
		ch.mu.Unlock()

		return
	}
}

// namesReply sends 353 and 366 for the channel. The caller holds the
// channel's mutex.
func (s *Server) namesReply(c *Client, ch *Channel) {
	names := make([]string, 0, len(ch.members))
	for _, member := range ch.memberList() {
		names = append(names, ch.nickWithPrefix(member))
	}

	// 353 RPL_NAMREPLY
	s.messageFromServer(c, irc.RplNamreply, []string{"=", ch.Name,
		strings.Join(names, " ")})

	// 366 RPL_ENDOFNAMES
	s.messageFromServer(c, irc.RplEndofnames, []string{ch.Name,
		"End of NAMES list"})
}

func (s *Server) partCommand(c *Client, m irc.Message) {
	name := m.Param(0)
	if name == "" {
		// 461 ERR_NEEDMOREPARAMS
		s.messageFromServer(c, irc.ErrNeedmoreparams, []string{irc.CmdPart,
			"Not enough parameters"})
		return
	}

	ch := s.world.ChannelByName(name)
	if ch == nil {
		// 403 ERR_NOSUCHCHANNEL
		s.messageFromServer(c, irc.ErrNosuchchannel, []string{name,
			"No such channel"})
		return
	}

	ch.mu.Lock()
	if ch.dead || !ch.isMember(c) {
		ch.mu.Unlock()
		// 442 ERR_NOTONCHANNEL
		s.messageFromServer(c, irc.ErrNotonchannel, []string{name,
			"You're not on that channel"})
		return
	}

	params := []string{ch.Name}
	if reason := m.Param(1); reason != "" {
		params = append(params, reason)
	}

	ch.broadcast(irc.Message{
		Prefix:  c.mask(),
		Command: irc.CmdPart,
		Params:  params,
	}, nil)

	ch.removeMember(c)
	c.mu.Lock()
	delete(c.channels, ch.Name)
	c.mu.Unlock()

	empty := len(ch.members) == 0
	ch.mu.Unlock()

	if empty {
		s.world.DropChannelIfEmpty(ch)
	}
}

// replyToTag extracts the +reply client tag, 0 when absent or
// malformed.
func replyToTag(m irc.Message) int64 {
	raw, ok := m.Tags["+reply"]
	if !ok {
		return 0
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0
	}

	return id
}

// privmsgCommand handles PRIVMSG and NOTICE. Routing is identical;
// only PRIVMSG generates away replies and mention notices.
func (s *Server) privmsgCommand(c *Client, m irc.Message) {
	target := m.Param(0)
	if target == "" {
		// 411 ERR_NORECIPIENT
		s.messageFromServer(c, irc.ErrNorecipient, []string{fmt.Sprintf(
			"No recipient given (%s)", m.Command)})
		return
	}

	if len(m.Params) < 2 {
		// 412 ERR_NOTEXTTOSEND
		s.messageFromServer(c, irc.ErrNotexttosend, []string{
			"No text to send"})
		return
	}

	if isChannelName(target) {
		s.messageToChannel(c, m)
		return
	}

	s.messageToUser(c, m)
}

// messageTags builds the outgoing tag map from the stored id and the
// reply threading tag.
func messageTags(id, replyTo int64) map[string]string {
	if id == 0 && replyTo == 0 {
		return nil
	}

	tags := make(map[string]string, 2)
	if id > 0 {
		tags["msgid"] = strconv.FormatInt(id, 10)
	}
	if replyTo > 0 {
		tags["+reply"] = strconv.FormatInt(replyTo, 10)
	}

	return tags
}

func (s *Server) messageToChannel(c *Client, m irc.Message) {
	name := m.Param(0)
	text := m.Param(1)

	ch := s.world.ChannelByName(name)
	if ch == nil {
		// 403 ERR_NOSUCHCHANNEL
		s.messageFromServer(c, irc.ErrNosuchchannel, []string{name,
			"No such channel"})
		return
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.dead {
		// 403 ERR_NOSUCHCHANNEL
		s.messageFromServer(c, irc.ErrNosuchchannel, []string{name,
			"No such channel"})
		return
	}

	member := ch.isMember(c)

	if ch.modes['n'] && !member {
		// 404 ERR_CANNOTSENDTOCHAN
		s.messageFromServer(c, irc.ErrCannotsendtochan, []string{ch.Name,
			"Cannot send to channel (+n)"})
		return
	}

	if ch.modes['m'] && !ch.isOperator(c) && !ch.isVoiced(c) {
		// 404 ERR_CANNOTSENDTOCHAN
		s.messageFromServer(c, irc.ErrCannotsendtochan, []string{ch.Name,
			"Cannot send to channel (+m)"})
		return
	}

	// Persisting under the channel lock keeps msgid order identical to
	// broadcast order.
	replyTo := replyToTag(m)
	id, err := s.Store.AppendHistory(store.HistoryEntry{
		Sender:    c.Nick(),
		Target:    ch.Name,
		Message:   text,
		Type:      m.Command,
		IsChannel: true,
		ReplyTo:   replyTo,
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"sender": c.Nick(),
			"target": ch.Name,
			"error":  err,
		}).Error("history append failed")
		id = 0
	}

	ch.broadcast(irc.Message{
		Tags:    messageTags(id, replyTo),
		Prefix:  c.mask(),
		Command: m.Command,
		Params:  []string{ch.Name, text},
	}, c)

	if m.Command != irc.CmdPrivmsg {
		return
	}

	sender := c.Nick()
	for _, nick := range mentionNicks(text) {
		mentioned := ch.memberByNick(nick)
		if mentioned == nil || mentioned == c {
			continue
		}
		s.noticeFromServer(mentioned, fmt.Sprintf(
			"%s mentioned you in %s: %s", sender, ch.Name, text))
	}
}

func (s *Server) messageToUser(c *Client, m irc.Message) {
	nick := m.Param(0)
	text := m.Param(1)

	target := s.world.ClientByNick(nick)
	if target == nil {
		// 401 ERR_NOSUCHNICK
		s.messageFromServer(c, irc.ErrNosuchnick, []string{nick,
			"No such nick/channel"})
		return
	}

	replyTo := replyToTag(m)
	id, err := s.Store.AppendHistory(store.HistoryEntry{
		Sender:  c.Nick(),
		Target:  target.Nick(),
		Message: text,
		Type:    m.Command,
		ReplyTo: replyTo,
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"sender": c.Nick(),
			"target": target.Nick(),
			"error":  err,
		}).Error("history append failed")
		id = 0
	}

	target.maybeQueueMessage(irc.Message{
		Tags:    messageTags(id, replyTo),
		Prefix:  c.mask(),
		Command: m.Command,
		Params:  []string{target.Nick(), text},
	})

	if m.Command == irc.CmdPrivmsg {
		if away := target.Away(); away != "" {
			// 301 RPL_AWAY
			s.messageFromServer(c, irc.RplAway, []string{target.Nick(),
				away})
		}
	}
}

func (s *Server) topicCommand(c *Client, m irc.Message) {
	name := m.Param(0)
	if name == "" {
		// 461 ERR_NEEDMOREPARAMS
		s.messageFromServer(c, irc.ErrNeedmoreparams, []string{
			irc.CmdTopic, "Not enough parameters"})
		return
	}

	ch := s.world.ChannelByName(name)
	if ch == nil {
		// 403 ERR_NOSUCHCHANNEL
		s.messageFromServer(c, irc.ErrNosuchchannel, []string{name,
			"No such channel"})
		return
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.dead {
		// 403 ERR_NOSUCHCHANNEL
		s.messageFromServer(c, irc.ErrNosuchchannel, []string{name,
			"No such channel"})
		return
	}

	if len(m.Params) < 2 {
		if ch.topic != "" {
			// 332 RPL_TOPIC
			s.messageFromServer(c, irc.RplTopic, []string{ch.Name,
				ch.topic})
		} else {
			// 331 RPL_NOTOPIC
			s.messageFromServer(c, irc.RplNotopic, []string{ch.Name,
				"No topic is set"})
		}
		return
	}

	if ch.modes['t'] && !ch.isOperator(c) {
		// 482 ERR_CHANOPRIVSNEEDED
		s.messageFromServer(c, irc.ErrChanoprivsneeded, []string{ch.Name,
			"You're not channel operator"})
		return
	}

	ch.topic = m.Param(1)

	ch.broadcast(irc.Message{
		Prefix:  c.mask(),
		Command: irc.CmdTopic,
		Params:  []string{ch.Name, ch.topic},
	}, nil)
}

func (s *Server) namesCommand(c *Client, m irc.Message) {
	name := m.Param(0)

	if name != "" {
		if ch := s.world.ChannelByName(name); ch != nil {
			ch.mu.Lock()
			if !ch.dead {
				s.namesReply(c, ch)
				ch.mu.Unlock()
				return
			}
			ch.mu.Unlock()
		}
	}

	if name == "" {
		name = "*"
	}

	// 366 RPL_ENDOFNAMES
	s.messageFromServer(c, irc.RplEndofnames, []string{name,
		"End of NAMES list"})
}

func (s *Server) listCommand(c *Client, m irc.Message) {
	// 321 RPL_LISTSTART
	s.messageFromServer(c, irc.RplListstart, []string{"Channel",
		"Users  Name"})

	for _, ch := range s.world.Channels() {
		ch.mu.Lock()
		if ch.dead || len(ch.members) == 0 ||
			(ch.modes['s'] && !ch.isMember(c)) {
			ch.mu.Unlock()
			continue
		}

		// Trailing topic is omitted entirely when unset.
		params := []string{ch.Name, strconv.Itoa(len(ch.members))}
		if ch.topic != "" {
			params = append(params, ch.topic)
		}
		ch.mu.Unlock()

		// 322 RPL_LIST
		s.messageFromServer(c, irc.RplList, params)
	}

	// 323 RPL_LISTEND
	s.messageFromServer(c, irc.RplListend, []string{"End of LIST"})
}

func (s *Server) whoCommand(c *Client, m irc.Message) {
	name := m.Param(0)

	if ch := s.world.ChannelByName(name); ch != nil {
		// Snapshot member details first; replies go out with no locks
		// held.
		var rows [][]string

		ch.mu.Lock()
		for _, member := range ch.memberList() {
			member.mu.Lock()
			flags := "H"
			if member.awayMessage != "" {
				flags = "G"
			}
			if member.modes['o'] {
				flags += "*"
			}
			rows = append(rows, []string{ch.Name, member.user,
				member.conn.Hostname, s.Config.ServerName, member.nick,
				flags, "0 " + member.realName})
			member.mu.Unlock()
		}
		ch.mu.Unlock()

		for _, row := range rows {
			// 352 RPL_WHOREPLY
			s.messageFromServer(c, irc.RplWhoreply, row)
		}
	}

	if name == "" {
		name = "*"
	}

	// 315 RPL_ENDOFWHO
	s.messageFromServer(c, irc.RplEndofwho, []string{name,
		"End of WHO list"})
}

func (s *Server) channelModeCommand(c *Client, m irc.Message) {
	name := m.Param(0)

	ch := s.world.ChannelByName(name)
	if ch == nil {
		// 403 ERR_NOSUCHCHANNEL
		s.messageFromServer(c, irc.ErrNosuchchannel, []string{name,
			"No such channel"})
		return
	}

	modeStr := m.Param(1)

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.dead {
		// 403 ERR_NOSUCHCHANNEL
		s.messageFromServer(c, irc.ErrNosuchchannel, []string{name,
			"No such channel"})
		return
	}

	if modeStr == "" {
		// 324 RPL_CHANNELMODEIS
		s.messageFromServer(c, irc.RplChannelmodeis,
			append([]string{ch.Name}, ch.modeSummary()...))
		return
	}

	if !ch.isOperator(c) {
		// 482 ERR_CHANOPRIVSNEEDED
		s.messageFromServer(c, irc.ErrChanoprivsneeded, []string{ch.Name,
			"You're not channel operator"})
		return
	}

	args := m.Params[2:]
	argi := 0
	nextArg := func() (string, bool) {
		if argi >= len(args) {
			return "", false
		}
		arg := args[argi]
		argi++
		return arg, true
	}

	adding := true
	var lastDir byte
	var applied []byte
	var appliedParams []string

	apply := func(letter byte, param string) {
		if dir := directionByte(adding); dir != lastDir {
			applied = append(applied, dir)
			lastDir = dir
		}
		applied = append(applied, letter)
		if param != "" {
			appliedParams = append(appliedParams, param)
		}
	}

	for i := 0; i < len(modeStr); i++ {
		switch letter := modeStr[i]; letter {
		case '+':
			adding = true
		case '-':
			adding = false

		case 'm', 's', 'i', 't', 'n':
			ch.modes[letter] = adding
			apply(letter, "")

		case 'k':
			if !adding {
				ch.key = ""
				apply('k', "")
				continue
			}
			key, ok := nextArg()
			if !ok {
				continue
			}
			ch.key = key
			apply('k', key)

		case 'l':
			if !adding {
				ch.limit = 0
				apply('l', "")
				continue
			}
			raw, ok := nextArg()
			if !ok {
				continue
			}
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 1 {
				continue
			}
			ch.limit = limit
			apply('l', raw)

		case 'o', 'v':
			nick, ok := nextArg()
			if !ok {
				continue
			}
			member := ch.memberByNick(nick)
			if member == nil {
				// 441 ERR_USERNOTINCHANNEL
				s.messageFromServer(c, irc.ErrUsernotinchannel,
					[]string{nick, ch.Name, "They aren't on that channel"})
				continue
			}
			set := ch.ops
			if letter == 'v' {
				set = ch.voiced
			}
			if adding {
				set[member] = struct{}{}
			} else {
				delete(set, member)
			}
			apply(letter, member.Nick())

		case 'b':
			if adding && argi >= len(args) {
				for _, ban := range ch.bans {
					// 367 RPL_BANLIST
					s.messageFromServer(c, irc.RplBanlist,
						[]string{ch.Name, ban})
				}
				// 368 RPL_ENDOFBANLIST
				s.messageFromServer(c, irc.RplEndofbanlist,
					[]string{ch.Name, "End of channel ban list"})
				continue
			}
			mask, ok := nextArg()
			if !ok {
				continue
			}
			if adding {
				ch.bans = append(ch.bans, mask)
			} else {
				kept := ch.bans[:0]
				for _, ban := range ch.bans {
					if !strings.EqualFold(ban, mask) {
						kept = append(kept, ban)
					}
				}
				ch.bans = kept
			}
			apply('b', mask)

		default:
			// 472 ERR_UNKNOWNMODE
			s.messageFromServer(c, irc.ErrUnknownmode,
				[]string{string(letter), "is unknown mode char to me"})
		}
	}

	if len(applied) == 0 {
		return
	}

	ch.broadcast(irc.Message{
		Prefix:  c.mask(),
		Command: irc.CmdMode,
		Params:  append([]string{ch.Name, string(applied)},
			appliedParams...),
	}, nil)
}

func (s *Server) inviteCommand(c *Client, m irc.Message) {
	nick := m.Param(0)
	name := m.Param(1)
	if nick == "" || name == "" {
		// 461 ERR_NEEDMOREPARAMS
		s.messageFromServer(c, irc.ErrNeedmoreparams, []string{
			irc.CmdInvite, "Not enough parameters"})
		return
	}

	ch := s.world.ChannelByName(name)
	if ch == nil {
		// 403 ERR_NOSUCHCHANNEL
		s.messageFromServer(c, irc.ErrNosuchchannel, []string{name,
			"No such channel"})
		return
	}

	// World lookup happens before taking the channel lock.
	target := s.world.ClientByNick(nick)

	ch.mu.Lock()

	if ch.dead || !ch.isMember(c) {
		ch.mu.Unlock()
		// 442 ERR_NOTONCHANNEL
		s.messageFromServer(c, irc.ErrNotonchannel, []string{name,
			"You're not on that channel"})
		return
	}

	if ch.modes['i'] && !ch.isOperator(c) {
		ch.mu.Unlock()
		// 482 ERR_CHANOPRIVSNEEDED
		s.messageFromServer(c, irc.ErrChanoprivsneeded, []string{ch.Name,
			"You're not channel operator"})
		return
	}

	if target == nil {
		ch.mu.Unlock()
		// 401 ERR_NOSUCHNICK
		s.messageFromServer(c, irc.ErrNosuchnick, []string{nick,
			"No such nick/channel"})
		return
	}

	if ch.isMember(target) {
		ch.mu.Unlock()
		// 443 ERR_USERONCHANNEL
		s.messageFromServer(c, irc.ErrUseronchannel, []string{
			target.Nick(), ch.Name, "is already on channel"})
		return
	}

	ch.invites[canonicalizeNick(target.Nick())] = struct{}{}
	ch.mu.Unlock()

	target.maybeQueueMessage(irc.Message{
		Prefix:  c.mask(),
		Command: irc.CmdInvite,
		Params:  []string{target.Nick(), ch.Name},
	})

	// 341 RPL_INVITING
	s.messageFromServer(c, irc.RplInviting, []string{target.Nick(),
		ch.Name})
}

func (s *Server) kickCommand(c *Client, m irc.Message) {
	name := m.Param(0)
	nick := m.Param(1)
	if name == "" || nick == "" {
		// 461 ERR_NEEDMOREPARAMS
		s.messageFromServer(c, irc.ErrNeedmoreparams, []string{irc.CmdKick,
			"Not enough parameters"})
		return
	}

	ch := s.world.ChannelByName(name)
	if ch == nil {
		// 403 ERR_NOSUCHCHANNEL
		s.messageFromServer(c, irc.ErrNosuchchannel, []string{name,
			"No such channel"})
		return
	}

	ch.mu.Lock()

	if ch.dead {
		ch.mu.Unlock()
		// 403 ERR_NOSUCHCHANNEL
		s.messageFromServer(c, irc.ErrNosuchchannel, []string{name,
			"No such channel"})
		return
	}

	if !ch.isOperator(c) {
		ch.mu.Unlock()
		// 482 ERR_CHANOPRIVSNEEDED
		s.messageFromServer(c, irc.ErrChanoprivsneeded, []string{ch.Name,
			"You're not channel operator"})
		return
	}

	target := ch.memberByNick(nick)
	if target == nil {
		ch.mu.Unlock()
		// 441 ERR_USERNOTINCHANNEL
		s.messageFromServer(c, irc.ErrUsernotinchannel, []string{nick,
			ch.Name, "They aren't on that channel"})
		return
	}

	reason := m.Param(2)
	if reason == "" {
		reason = c.Nick()
	}

	// Everyone sees the kick, the kicker and the kicked included.
	ch.broadcast(irc.Message{
		Prefix:  c.mask(),
		Command: irc.CmdKick,
		Params:  []string{ch.Name, target.Nick(), reason},
	}, nil)

	ch.removeMember(target)
	target.mu.Lock()
	delete(target.channels, ch.Name)
	target.mu.Unlock()

	empty := len(ch.members) == 0
	ch.mu.Unlock()

	if empty {
		s.world.DropChannelIfEmpty(ch)
	}
}
