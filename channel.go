package main

import (
	"strconv"
	"sync"

	"github.com/malefirc/malefirc/irc"
)

// Channel holds everything to do with a channel. All fields other than
// Name are guarded by mu; Name never changes after creation.
type Channel struct {
	mu sync.Mutex

	// Name is the canonicalized channel name.
	Name string

	// dead is set when the channel has been removed from the world.
	// A handler that finds it set must look the channel up again.
	dead bool

	// members in insertion order. order may contain clients that have
	// since left; members is authoritative.
	members map[*Client]struct{}
	order   []*Client

	topic string

	// Flag modes (m, s, i, t, n).
	modes map[byte]bool

	ops     map[*Client]struct{}
	voiced  map[*Client]struct{}
	bans    []string
	invites map[string]struct{}

	// key is the channel key, used while mode k is set.
	key string

	// limit is the member limit, used while mode l is set.
	limit int
}

func newChannel(name string) *Channel {
	return &Channel{
		Name:    name,
		members: make(map[*Client]struct{}),
		modes:   make(map[byte]bool),
		ops:     make(map[*Client]struct{}),
		voiced:  make(map[*Client]struct{}),
		invites: make(map[string]struct{}),
	}
}

// The caller must hold mu for all of the following.

func (ch *Channel) isMember(c *Client) bool {
	_, ok := ch.members[c]
	return ok
}

func (ch *Channel) isOperator(c *Client) bool {
	_, ok := ch.ops[c]
	return ok
}

func (ch *Channel) isVoiced(c *Client) bool {
	_, ok := ch.voiced[c]
	return ok
}

// addMember adds a client to the channel. The first member becomes a
// channel operator.
func (ch *Channel) addMember(c *Client) {
	if len(ch.members) == 0 {
		ch.ops[c] = struct{}{}
	}
	ch.members[c] = struct{}{}
	ch.order = append(ch.order, c)
}

// removeMember removes a client and its operator/voice entries.
func (ch *Channel) removeMember(c *Client) {
	delete(ch.members, c)
	delete(ch.ops, c)
	delete(ch.voiced, c)
}

// memberList returns the members in insertion order.
func (ch *Channel) memberList() []*Client {
	list := make([]*Client, 0, len(ch.members))
	for _, c := range ch.order {
		if ch.isMember(c) {
			list = append(list, c)
		}
	}
	return list
}

// memberByNick finds a member by nick.
func (ch *Channel) memberByNick(nick string) *Client {
	canon := canonicalizeNick(nick)
	for member := range ch.members {
		if canonicalizeNick(member.Nick()) == canon {
			return member
		}
	}
	return nil
}

// nickWithPrefix renders a member's nick with its @ or + prefix for
// NAMES and WHOIS replies.
func (ch *Channel) nickWithPrefix(c *Client) string {
	if ch.isOperator(c) {
		return "@" + c.Nick()
	}
	if ch.isVoiced(c) {
		return "+" + c.Nick()
	}
	return c.Nick()
}

// banned reports whether a mask in the ban list matches the client.
func (ch *Channel) banned(c *Client) bool {
	mask := c.mask()
	for _, ban := range ch.bans {
		if matchMask(ban, mask) {
			return true
		}
	}
	return false
}

// modeSummary renders the channel's modes as for a 324 reply. Key and
// limit values follow the letters as separate parameters.
func (ch *Channel) modeSummary() []string {
	flags := make(map[byte]bool, len(ch.modes)+2)
	for letter, on := range ch.modes {
		flags[letter] = on
	}

	var params []string
	if ch.key != "" {
		flags['k'] = true
		params = append(params, ch.key)
	}
	if ch.limit > 0 {
		flags['l'] = true
		params = append(params, strconv.Itoa(ch.limit))
	}

	letters := modesString(flags)
	if letters == "" {
		letters = "+"
	}

	return append([]string{letters}, params...)
}

// broadcast queues a message for every member except the given one.
// Pass nil to reach everyone.
func (ch *Channel) broadcast(m irc.Message, except *Client) {
	for member := range ch.members {
		if member == except {
			continue
		}
		member.maybeQueueMessage(m)
	}
}
