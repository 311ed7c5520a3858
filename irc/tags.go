package irc

import (
	"sort"
	"strings"
)

// IRCv3 tag value escaping. ';', ' ', '\r', '\n', and '\' may not
// appear raw inside a tag value.

func escapeTagValue(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))

	for _, c := range raw {
		switch c {
		case ';':
			sb.WriteString(`\:`)
		case ' ':
			sb.WriteString(`\s`)
		case '\r':
			sb.WriteString(`\r`)
		case '\n':
			sb.WriteString(`\n`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			sb.WriteRune(c)
		}
	}

	return sb.String()
}

func tagEscape(c rune) rune {
	switch c {
	case ':':
		return ';'
	case 's':
		return ' '
	case 'r':
		return '\r'
	case 'n':
		return '\n'
	default:
		return c
	}
}

func unescapeTagValue(escaped string) string {
	var sb strings.Builder
	sb.Grow(len(escaped))
	escape := false

	for _, c := range escaped {
		if c == '\\' && !escape {
			escape = true
			continue
		}

		if escape {
			sb.WriteRune(tagEscape(c))
		} else {
			sb.WriteRune(c)
		}
		escape = false
	}

	return sb.String()
}

func parseTags(s string) map[string]string {
	tags := map[string]string{}

	for _, item := range strings.Split(s, ";") {
		if item == "" || item == "=" || item == "+" || item == "+=" {
			continue
		}

		kv := strings.SplitN(item, "=", 2)
		if len(kv) < 2 {
			tags[kv[0]] = ""
		} else {
			tags[kv[0]] = unescapeTagValue(kv[1])
		}
	}

	return tags
}

// encodeTags renders the tag map in a deterministic (sorted) order.
func encodeTags(tags map[string]string) string {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(name)
		if tags[name] != "" {
			sb.WriteByte('=')
			sb.WriteString(escapeTagValue(tags[name]))
		}
	}

	return sb.String()
}
