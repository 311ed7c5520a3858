package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchMask(t *testing.T) {
	tests := []struct {
		mask    string
		input   string
		matched bool
	}{
		{"*!*@example.com", "bob!bob@example.com", true},
		{"*!*@example.com", "bob!bob@example.org", false},
		{"*!*@*.example.com", "bob!bob@host.example.com", true},
		{"alice!*@*", "ALICE!a@host", true},
		{"a?ice!*@*", "alice!x@y", true},
		{"a?ice!*@*", "ace!x@y", false},
		{"bob!bob@localhost", "bob!bob@localhost", true},
		{"bob!bob@localhost", "bob!bob@localhost2", false},
		{"*", "anything!at@all", true},
		// Regexp metacharacters in masks stay literal.
		{"a+b!*@*", "a+b!u@h", true},
		{"a+b!*@*", "ab!u@h", false},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("%s vs %s", test.mask, test.input),
			func(t *testing.T) {
				assert.Equal(t, test.matched,
					matchMask(test.mask, test.input))
			})
	}
}

func TestMentionNicks(t *testing.T) {
	tests := []struct {
		body  string
		nicks []string
	}{
		{"hi @alice and @bob", []string{"alice", "bob"}},
		{"@alice @Alice @ALICE", []string{"alice"}},
		{"no mentions here", nil},
		{"punctuation @carol, trailing", []string{"carol"}},
		{"@dave[away] hello", []string{"dave[away]"}},
		{"", nil},
	}

	for _, test := range tests {
		t.Run(test.body, func(t *testing.T) {
			assert.Equal(t, test.nicks, mentionNicks(test.body))
		})
	}
}

func TestIsValidNick(t *testing.T) {
	tests := []struct {
		nick  string
		valid bool
	}{
		{"alice", true},
		{"alice123", true},
		{"bob[away]", true},
		{"{braces}", true},
		{"with-dash", true},
		{"", false},
		{"3bob", false},
		{"-dash", false},
		{"with space", false},
		{"#channel", false},
		{"waaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaytoolong", false},
	}

	for _, test := range tests {
		t.Run(test.nick, func(t *testing.T) {
			assert.Equal(t, test.valid, isValidNick(test.nick))
		})
	}
}

func TestModesString(t *testing.T) {
	assert.Equal(t, "", modesString(map[byte]bool{}))
	assert.Equal(t, "", modesString(map[byte]bool{'o': false}))
	assert.Equal(t, "+io", modesString(map[byte]bool{'o': true, 'i': true}))
	assert.Equal(t, "+w", modesString(map[byte]bool{'w': true, 'i': false}))
}

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, "alice", canonicalizeNick("ALICE"))
	assert.Equal(t, "#test", canonicalizeChannel("#Test"))
	assert.True(t, isChannelName("#x"))
	assert.False(t, isChannelName("x"))
}
