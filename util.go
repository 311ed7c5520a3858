package main

import (
	"regexp"
	"sort"
	"strings"
)

const maxNickLength = 30

var nickRe = regexp.MustCompile(
	"^[A-Za-z\\[\\]\\\\`_^{}|][-A-Za-z0-9\\[\\]\\\\`_^{}|]*$")

// mentionRe finds @nick tokens in message bodies.
var mentionRe = regexp.MustCompile(`@([A-Za-z0-9_\-\[\]\\{}^|]+)`)

// canonicalizeNick converts the given nick to its canonical
// representation (which must be unique).
func canonicalizeNick(n string) string {
	return strings.ToLower(n)
}

// canonicalizeChannel converts the given channel to its canonical
// representation (which must be unique).
func canonicalizeChannel(c string) string {
	return strings.ToLower(c)
}

func isChannelName(name string) bool {
	return strings.HasPrefix(name, "#")
}

func isValidNick(n string) bool {
	if len(n) == 0 || len(n) > maxNickLength {
		return false
	}
	return nickRe.MatchString(n)
}

// matchMask reports whether the string matches a nick!user@host mask
// where * matches any run of characters and ? matches any single
// character. Matching is case-insensitive.
func matchMask(mask, s string) bool {
	pattern := regexp.QuoteMeta(mask)
	pattern = strings.ReplaceAll(pattern, `\*`, ".*")
	pattern = strings.ReplaceAll(pattern, `\?`, ".")

	re, err := regexp.Compile("(?i)^" + pattern + "$")
	if err != nil {
		return false
	}

	return re.MatchString(s)
}

// mentionNicks extracts the nicks mentioned as @nick in a message body,
// deduplicated case-insensitively, in order of first appearance.
func mentionNicks(body string) []string {
	var nicks []string
	seen := make(map[string]struct{})

	for _, match := range mentionRe.FindAllStringSubmatch(body, -1) {
		nick := match[1]
		canon := canonicalizeNick(nick)
		if _, ok := seen[canon]; ok {
			continue
		}
		seen[canon] = struct{}{}
		nicks = append(nicks, nick)
	}

	return nicks
}

// modesString renders a set of mode letters as +abc in sorted order.
// Blank when the set is empty.
func modesString(modes map[byte]bool) string {
	var letters []byte
	for letter, on := range modes {
		if on {
			letters = append(letters, letter)
		}
	}
	if len(letters) == 0 {
		return ""
	}

	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })

	return "+" + string(letters)
}
