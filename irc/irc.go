// Package irc provides encoding and decoding of IRC protocol messages,
// including IRCv3 message tags. It is useful for implementing clients
// and servers.
package irc

import (
	"errors"
	"fmt"
	"strings"
)

// MaxLineLength is the maximum protocol message line length we will
// read without truncating. It includes CRLF. Encoding does not enforce
// it; handlers truncate where a command needs it.
const MaxLineLength = 512

var (
	errEmptyMessage = errors.New("empty message")
	errNoCommand    = errors.New("message has no command")
)

// Message holds a protocol message. See section 2.3.1 in RFC 1459/2812
// and the IRCv3 message-tags extension.
type Message struct {
	// Tags may be nil. Client-only tag names begin with '+'.
	Tags map[string]string

	// Prefix may be blank. It's optional.
	Prefix string

	// Command is the IRC command. For example, PRIVMSG. It may be a
	// numeric.
	Command string

	// Params holds the parameters. If the message has a trailing
	// parameter it is the last element, stored without the ':'.
	Params []string
}

func (m Message) String() string {
	return fmt.Sprintf("Tags %v Prefix [%s] Command [%s] Params%q", m.Tags,
		m.Prefix, m.Command, m.Params)
}

// Param returns the parameter at index i, or the empty string if the
// message does not have that many parameters.
func (m Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// SourceNick returns the nickname portion of the prefix.
func (m Message) SourceNick() string {
	idx := strings.IndexByte(m.Prefix, '!')
	if idx == -1 {
		return m.Prefix
	}
	return m.Prefix[:idx]
}

func word(s string) (w, rest string) {
	idx := strings.IndexByte(s, ' ')
	if idx == -1 {
		return s, ""
	}
	return s[:idx], s[idx+1:]
}

// ParseMessage parses a protocol message. The line may carry a single
// trailing CR, LF, or CRLF; a blank line (after stripping it) is an
// error, as is a line with no command.
func ParseMessage(line string) (Message, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	msg := Message{}

	rest := strings.TrimLeft(line, " ")
	if rest == "" {
		return Message{}, errEmptyMessage
	}

	if rest[0] == '@' {
		var rawTags string
		rawTags, rest = word(rest)
		msg.Tags = parseTags(rawTags[1:])
		rest = strings.TrimLeft(rest, " ")
	}

	if rest != "" && rest[0] == ':' {
		var prefix string
		prefix, rest = word(rest)
		msg.Prefix = prefix[1:]
		rest = strings.TrimLeft(rest, " ")
	}

	if rest == "" {
		return Message{}, errNoCommand
	}

	msg.Command, rest = word(rest)
	msg.Command = strings.ToUpper(msg.Command)

	for rest != "" {
		if rest[0] == ':' {
			msg.Params = append(msg.Params, rest[1:])
			break
		}

		var param string
		param, rest = word(rest)
		if param == "" {
			// Stray spaces before the line ending. Seen in the wild
			// (ratbox, quassel); accept and discard.
			continue
		}
		msg.Params = append(msg.Params, param)
	}

	return msg, nil
}

// Encode encodes the Message into a raw protocol message string with a
// trailing CRLF.
//
// A parameter containing a space, beginning with ':', or empty must be
// the last parameter; it is emitted as the trailing parameter with a
// ':' prefix. It does not enforce command specific semantics.
func (m Message) Encode() (string, error) {
	var sb strings.Builder

	if len(m.Tags) > 0 {
		sb.WriteByte('@')
		sb.WriteString(encodeTags(m.Tags))
		sb.WriteByte(' ')
	}

	if len(m.Prefix) > 0 {
		sb.WriteByte(':')
		sb.WriteString(m.Prefix)
		sb.WriteByte(' ')
	}

	if m.Command == "" {
		return "", errNoCommand
	}
	sb.WriteString(m.Command)

	for i, param := range m.Params {
		if strings.ContainsAny(param, " ") ||
			param == "" ||
			param[0] == ':' {
			if i+1 != len(m.Params) {
				return "", fmt.Errorf(
					"parameter problem: ':' or ' ' outside last parameter")
			}
			sb.WriteString(" :")
			sb.WriteString(param)
			break
		}

		sb.WriteByte(' ')
		sb.WriteString(param)
	}

	sb.WriteString("\r\n")

	return sb.String(), nil
}
