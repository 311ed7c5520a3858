package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		input   string
		output  Message
		success bool
	}{
		{
			"PING :irc.example.com\r\n",
			Message{Command: "PING", Params: []string{"irc.example.com"}},
			true,
		},
		{
			"PING :irc.example.com\n",
			Message{Command: "PING", Params: []string{"irc.example.com"}},
			true,
		},
		{
			"PING :irc.example.com",
			Message{Command: "PING", Params: []string{"irc.example.com"}},
			true,
		},
		{
			":nick!user@host PRIVMSG #test :hello there\r\n",
			Message{
				Prefix:  "nick!user@host",
				Command: "PRIVMSG",
				Params:  []string{"#test", "hello there"},
			},
			true,
		},
		{
			"privmsg #test :case\r\n",
			Message{Command: "PRIVMSG", Params: []string{"#test", "case"}},
			true,
		},
		{
			"@msgid=42 :nick!user@host PRIVMSG #test :hi\r\n",
			Message{
				Tags:    map[string]string{"msgid": "42"},
				Prefix:  "nick!user@host",
				Command: "PRIVMSG",
				Params:  []string{"#test", "hi"},
			},
			true,
		},
		{
			"@+reply=10;msgid=11 PRIVMSG #t :yo\r\n",
			Message{
				Tags:    map[string]string{"+reply": "10", "msgid": "11"},
				Command: "PRIVMSG",
				Params:  []string{"#t", "yo"},
			},
			true,
		},
		{
			"MODE #test +kl secret 5\r\n",
			Message{
				Command: "MODE",
				Params:  []string{"#test", "+kl", "secret", "5"},
			},
			true,
		},
		{
			"JOIN #a \r\n",
			Message{Command: "JOIN", Params: []string{"#a"}},
			true,
		},
		{
			"QUIT\r\n",
			Message{Command: "QUIT"},
			true,
		},
		// Trailing may be empty.
		{
			"TOPIC #test :\r\n",
			Message{Command: "TOPIC", Params: []string{"#test", ""}},
			true,
		},
		{"\r\n", Message{}, false},
		{"", Message{}, false},
		{"   \r\n", Message{}, false},
		{":prefixonly\r\n", Message{}, false},
		{"@tag=x\r\n", Message{}, false},
	}

	for _, test := range tests {
		msg, err := ParseMessage(test.input)
		if !test.success {
			assert.Error(t, err, "input %q", test.input)
			continue
		}

		require.NoError(t, err, "input %q", test.input)
		assert.Equal(t, test.output, msg, "input %q", test.input)
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		input   Message
		output  string
		success bool
	}{
		{
			Message{Command: "PING", Params: []string{"irc.example.com"}},
			"PING irc.example.com\r\n",
			true,
		},
		{
			Message{
				Prefix:  "malefirc.local",
				Command: "001",
				Params:  []string{"alice", "Welcome to the Internet Relay Network alice!alice@localhost"},
			},
			":malefirc.local 001 alice :Welcome to the Internet Relay Network alice!alice@localhost\r\n",
			true,
		},
		{
			Message{
				Tags:    map[string]string{"msgid": "11", "+reply": "10"},
				Prefix:  "bob!bob@localhost",
				Command: "PRIVMSG",
				Params:  []string{"#t", "yo"},
			},
			"@+reply=10;msgid=11 :bob!bob@localhost PRIVMSG #t yo\r\n",
			true,
		},
		// Empty last parameter gets a colon so it stays visible.
		{
			Message{Command: "TOPIC", Params: []string{"#test", ""}},
			"TOPIC #test :\r\n",
			true,
		},
		// Parameter starting with : must be trailing.
		{
			Message{Command: "PRIVMSG", Params: []string{"#t", ":)"}},
			"PRIVMSG #t ::)\r\n",
			true,
		},
		// Space outside the last parameter is an error.
		{
			Message{Command: "PRIVMSG", Params: []string{"a b", "c"}},
			"",
			false,
		},
		{
			Message{Params: []string{"x"}},
			"",
			false,
		},
	}

	for _, test := range tests {
		out, err := test.input.Encode()
		if !test.success {
			assert.Error(t, err, "input %s", test.input)
			continue
		}

		require.NoError(t, err, "input %s", test.input)
		assert.Equal(t, test.output, out, "input %s", test.input)
	}
}

// Any message whose middle params contain no whitespace and whose
// trailing has no CR/LF must round-trip through Encode and
// ParseMessage.
func TestRoundTrip(t *testing.T) {
	tests := []Message{
		{Command: "PING", Params: []string{"token"}},
		{Prefix: "nick!user@host", Command: "PRIVMSG", Params: []string{"#c", "hello world"}},
		{
			Tags:    map[string]string{"msgid": "7", "+reply": "3"},
			Prefix:  "a!b@c",
			Command: "NOTICE",
			Params:  []string{"#c", "multi word trailing"},
		},
		{Command: "MODE", Params: []string{"#c", "+kl", "secret", "10"}},
		{Command: "QUIT", Params: []string{"Client quit"}},
	}

	for _, msg := range tests {
		encoded, err := msg.Encode()
		require.NoError(t, err, "message %s", msg)

		parsed, err := ParseMessage(encoded)
		require.NoError(t, err, "encoded %q", encoded)

		assert.Equal(t, msg, parsed, "encoded %q", encoded)
	}
}

func TestTagEscaping(t *testing.T) {
	values := []string{
		"simple",
		"has space",
		"semi;colon",
		"back\\slash",
		"new\nline",
		"carriage\rreturn",
		"all of them; \\ \r \n together",
	}

	for _, value := range values {
		msg := Message{
			Tags:    map[string]string{"value": value},
			Command: "TAGMSG",
			Params:  []string{"#c"},
		}

		encoded, err := msg.Encode()
		require.NoError(t, err, "value %q", value)

		parsed, err := ParseMessage(encoded)
		require.NoError(t, err, "encoded %q", encoded)

		assert.Equal(t, value, parsed.Tags["value"], "encoded %q", encoded)
	}
}

func TestSourceNick(t *testing.T) {
	assert.Equal(t, "alice", Message{Prefix: "alice!alice@host"}.SourceNick())
	assert.Equal(t, "irc.example.com",
		Message{Prefix: "irc.example.com"}.SourceNick())
}
