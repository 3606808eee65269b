package proto

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxNickLen is the longest nickname accepted.
const MaxNickLen = 30

var nickPattern = regexp.MustCompile("^[A-Za-z_\\[\\]\\\\^{}|`][A-Za-z0-9_\\-\\[\\]\\\\^{}|`]{0,29}$")

// Message is one protocol line split into prefix, verb and parameters.
type Message struct {
	Prefix  string
	Command string
	Params  []string
}

// Parse splits a raw line. The last parameter may start with ':' in which case
// it takes the rest of the line verbatim. Returns nil for blank lines.
func Parse(line string) *Message {
	line = strings.TrimRight(line, "\r\n")
	line = strings.TrimLeft(line, " ")
	if line == "" {
		return nil
	}

	msg := &Message{}

	if line[0] == ':' {
		parts := strings.SplitN(line[1:], " ", 2)
		if len(parts) < 2 {
			return nil
		}
		msg.Prefix = parts[0]
		line = strings.TrimLeft(parts[1], " ")
		if line == "" {
			return nil
		}
	}

	parts := strings.SplitN(line, " ", 2)
	msg.Command = strings.ToUpper(parts[0])
	if len(parts) == 1 {
		return msg
	}

	rest := parts[1]
	for rest != "" {
		if rest[0] == ' ' {
			rest = rest[1:]
			continue
		}
		if rest[0] == ':' {
			msg.Params = append(msg.Params, rest[1:])
			break
		}
		p := strings.SplitN(rest, " ", 2)
		msg.Params = append(msg.Params, p[0])
		if len(p) == 1 {
			break
		}
		rest = p[1]
	}

	return msg
}

// Param returns the i-th parameter or "" when absent.
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Trailing returns the last parameter or "".
func (m *Message) Trailing() string {
	if len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}

// IsNumeric reports whether the verb is a three digit reply code.
func (m *Message) IsNumeric() bool {
	if len(m.Command) != 3 {
		return false
	}
	for _, r := range m.Command {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Nick returns the nickname part of the prefix.
func (m *Message) Nick() string {
	nick, _, _ := ParseHostmask(m.Prefix)
	return nick
}

func (m *Message) String() string {
	var b strings.Builder

	if m.Prefix != "" {
		b.WriteByte(':')
		b.WriteString(m.Prefix)
		b.WriteByte(' ')
	}
	b.WriteString(m.Command)

	for i, p := range m.Params {
		b.WriteByte(' ')
		last := i == len(m.Params)-1
		if last && (p == "" || strings.Contains(p, " ") || strings.HasPrefix(p, ":")) {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}

	return b.String()
}

// Event formats ":<actor> <VERB> <args...>" with the last argument as trailing
// when it needs quoting.
func Event(actor, verb string, args ...string) string {
	return (&Message{Prefix: actor, Command: verb, Params: args}).String()
}

// Numeric formats ":<server> <ddd> <target> <text>". An empty target becomes
// "*". Text is appended as-is so callers control the ':' placement.
func Numeric(server string, code int, target, text string) string {
	if target == "" {
		target = "*"
	}
	return fmt.Sprintf(":%s %03d %s %s", server, code, target, text)
}

// Notice formats a server NOTICE to target.
func Notice(server, target, text string) string {
	if target == "" {
		target = "*"
	}
	return fmt.Sprintf(":%s NOTICE %s :%s", server, target, text)
}

// Hostmask formats nick!user@host.
func Hostmask(nick, user, host string) string {
	if user == "" {
		user = nick
	}
	return fmt.Sprintf("%s!%s@%s", nick, user, host)
}

// ParseHostmask splits nick!user@host. Missing parts are returned empty.
func ParseHostmask(mask string) (nick, user, host string) {
	nickParts := strings.SplitN(mask, "!", 2)
	nick = nickParts[0]
	if len(nickParts) < 2 {
		return nick, "", ""
	}
	userParts := strings.SplitN(nickParts[1], "@", 2)
	user = userParts[0]
	if len(userParts) == 2 {
		host = userParts[1]
	}
	return nick, user, host
}

// NormalizeChannel prepends '#' when missing.
func NormalizeChannel(name string) string {
	if strings.HasPrefix(name, "#") {
		return name
	}
	return "#" + name
}

// ValidNick reports whether nick is syntactically acceptable.
func ValidNick(nick string) bool {
	return nickPattern.MatchString(nick)
}
