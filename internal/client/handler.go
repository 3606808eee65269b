package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vovakirdan/ircchat/internal/proto"
)

// ErrQuit is returned by HandleInput after /quit.
var ErrQuit = errors.New("quit requested")

const (
	defaultChannel  = "#main"
	defaultPort     = "6667"
	listPageSize    = 10
	maxNickAttempts = 9
)

// Controller is the part of the connection manager the handler drives.
type Controller interface {
	Send(line string)
	SetToken(token string)
	SetNickname(nick string)
	Renamed(old, nick string)
	SwitchServer(ctx context.Context, addr string) error
	Close() error
}

type listEntry struct {
	name  string
	users string
	topic string
}

type helpEntry struct {
	syntax      string
	description string
}

var helpTable = map[string]helpEntry{
	"/help":     {"/help [command]", "Show commands or details for one command"},
	"/join":     {"/join #channel", "Join a channel, the # is optional"},
	"/part":     {"/part [#channel]", "Leave a channel, defaults to the current one"},
	"/msg":      {"/msg <target> <message>", "Send a message to a user or channel"},
	"/nick":     {"/nick <nickname>", "Change your nickname"},
	"/list":     {"/list [page]", "Fetch the channel list or show a page of it"},
	"/listnext": {"/listnext", "Show the next page of channels"},
	"/listprev": {"/listprev", "Show the previous page of channels"},
	"/listquit": {"/listquit", "Leave the channel list view"},
	"/whois":    {"/whois <nickname>", "Show information about a user"},
	"/topic":    {"/topic [#channel] [topic]", "Show or set a channel topic"},
	"/names":    {"/names [#channel]", "List users in a channel"},
	"/away":     {"/away [message]", "Set or clear your away message"},
	"/version":  {"/version", "Show client and server versions"},
	"/connect":  {"/connect <host> [port]", "Switch to another server"},
	"/quit":     {"/quit [message]", "Disconnect and exit"},
}

// Handler turns user input into protocol lines and keeps a client-side view
// of the session derived from server replies.
type Handler struct {
	ctrl    Controller
	version string

	outMu sync.Mutex
	out   io.Writer
	now   func() time.Time

	mu       sync.Mutex
	nick     string
	base     string
	attempts int
	current  string
	topics   map[string]string
	names    map[string]map[string]struct{}

	list       []listEntry
	collecting bool
	viewing    bool
	page       int
}

// NewHandler creates a handler printing to out.
func NewHandler(ctrl Controller, out io.Writer, nick, version string) *Handler {
	return &Handler{
		ctrl:    ctrl,
		version: version,
		out:     out,
		now:     time.Now,
		nick:    nick,
		current: defaultChannel,
		topics:  make(map[string]string),
		names:   make(map[string]map[string]struct{}),
	}
}

// Nickname returns the nickname as last confirmed by the server.
func (h *Handler) Nickname() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nick
}

// CurrentChannel returns the channel plain text is sent to.
func (h *Handler) CurrentChannel() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Topic returns the cached topic for channel.
func (h *Handler) Topic(channel string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	topic, ok := h.topics[channel]
	return topic, ok
}

// Names returns the cached member list for channel, sorted.
func (h *Handler) Names(channel string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return sortedNames(h.names[channel])
}

// Notify prints a status message.
func (h *Handler) Notify(msg string) {
	h.print(msg)
}

func (h *Handler) print(msg string) {
	h.outMu.Lock()
	defer h.outMu.Unlock()
	fmt.Fprintln(h.out, msg)
}

func (h *Handler) printf(format string, args ...any) {
	h.print(fmt.Sprintf(format, args...))
}

// HandleInput processes one line typed by the user.
func (h *Handler) HandleInput(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	if !strings.HasPrefix(input, "/") {
		h.ctrl.Send(fmt.Sprintf("%s %s :%s", proto.CmdPrivmsg, h.CurrentChannel(), input))
		return nil
	}

	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]
	rest := ""
	if i := strings.IndexByte(input, ' '); i >= 0 {
		rest = strings.TrimSpace(input[i+1:])
	}

	switch cmd {
	case "/connect":
		return h.connect(ctx, args)
	case "/quit":
		msg := rest
		if msg == "" {
			msg = "Goodbye!"
		}
		h.ctrl.Send(fmt.Sprintf("%s :%s", proto.CmdQuit, msg))
		_ = h.ctrl.Close()
		return ErrQuit
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch cmd {
	case "/help":
		h.help(args)
	case "/join":
		if len(args) == 0 {
			h.usage(cmd)
			return nil
		}
		h.exitList()
		h.ctrl.Send(fmt.Sprintf("%s %s", proto.CmdJoin, proto.NormalizeChannel(args[0])))
	case "/part":
		channel := h.current
		if len(args) > 0 {
			channel = proto.NormalizeChannel(args[0])
		}
		h.ctrl.Send(fmt.Sprintf("%s %s", proto.CmdPart, channel))
	case "/msg":
		if len(args) < 2 {
			h.usage(cmd)
			return nil
		}
		text := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
		h.ctrl.Send(fmt.Sprintf("%s %s :%s", proto.CmdPrivmsg, args[0], text))
	case "/nick":
		if len(args) == 0 {
			h.usage(cmd)
			return nil
		}
		h.attempts = 0
		h.ctrl.Send(fmt.Sprintf("%s %s", proto.CmdNick, args[0]))
	case "/list":
		h.listCommand(args)
	case "/listnext":
		h.nextPage()
	case "/listprev":
		h.prevPage()
	case "/listquit":
		h.exitList()
	case "/whois":
		if len(args) == 0 {
			h.usage(cmd)
			return nil
		}
		h.ctrl.Send(fmt.Sprintf("%s %s", proto.CmdWhois, args[0]))
	case "/topic":
		h.topicCommand(args, rest)
	case "/names":
		channel := h.current
		if len(args) > 0 {
			channel = proto.NormalizeChannel(args[0])
		}
		if members, ok := h.names[channel]; ok {
			h.printf("Users in %s: %s", channel, strings.Join(sortedNames(members), ", "))
			return nil
		}
		h.ctrl.Send(fmt.Sprintf("%s %s", proto.CmdNames, channel))
	case "/away":
		if rest == "" {
			h.ctrl.Send(proto.CmdAway)
		} else {
			h.ctrl.Send(fmt.Sprintf("%s :%s", proto.CmdAway, rest))
		}
	case "/version":
		h.printf("ircchat client %s", h.version)
		h.ctrl.Send(proto.CmdVersion)
	default:
		h.printf("Unknown command: %s", cmd)
	}
	return nil
}

func (h *Handler) connect(ctx context.Context, args []string) error {
	if len(args) == 0 {
		h.print("Usage: " + helpTable["/connect"].syntax)
		return nil
	}
	port := defaultPort
	if len(args) > 1 {
		port = args[1]
	}
	addr := net.JoinHostPort(args[0], port)

	h.printf("Connecting to %s", addr)
	if err := h.ctrl.SwitchServer(ctx, addr); err != nil {
		h.printf("Could not connect to %s: %v", addr, err)
	}
	return nil
}

func (h *Handler) usage(cmd string) {
	h.print("Usage: " + helpTable[cmd].syntax)
}

func (h *Handler) help(args []string) {
	if len(args) == 0 {
		cmds := make([]string, 0, len(helpTable))
		for cmd := range helpTable {
			cmds = append(cmds, cmd)
		}
		sort.Strings(cmds)

		var b strings.Builder
		b.WriteString("Available commands:\n")
		for _, cmd := range cmds {
			fmt.Fprintf(&b, "%-10s - %s\n", cmd, helpTable[cmd].description)
		}
		b.WriteString("Use /help <command> for details.")
		h.print(b.String())
		return
	}

	cmd := strings.ToLower(args[0])
	if !strings.HasPrefix(cmd, "/") {
		cmd = "/" + cmd
	}
	entry, ok := helpTable[cmd]
	if !ok {
		h.printf("No help available for: %s", cmd)
		return
	}
	h.printf("%s\n  %s", entry.syntax, entry.description)
}

func (h *Handler) topicCommand(args []string, rest string) {
	if len(args) == 0 {
		topic, ok := h.topics[h.current]
		if !ok {
			topic = "No topic set"
		}
		h.printf("Topic for %s: %s", h.current, topic)
		return
	}

	channel := proto.NormalizeChannel(args[0])
	if len(args) == 1 {
		h.ctrl.Send(fmt.Sprintf("%s %s", proto.CmdTopic, channel))
		return
	}
	text := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
	h.ctrl.Send(fmt.Sprintf("%s %s :%s", proto.CmdTopic, channel, text))
}

func (h *Handler) listCommand(args []string) {
	if len(args) == 0 {
		h.list = nil
		h.collecting = true
		h.viewing = true
		h.page = 0
		h.ctrl.Send(proto.CmdList)
		return
	}

	page, err := strconv.Atoi(args[0])
	if err != nil || page < 1 {
		h.print("Invalid page number")
		return
	}
	h.page = page - 1
	h.viewing = true
	h.showPage()
}

func (h *Handler) pages() int {
	return (len(h.list) + listPageSize - 1) / listPageSize
}

func (h *Handler) nextPage() {
	if !h.viewing {
		return
	}
	if h.page >= h.pages()-1 {
		h.print("Already at the last page.")
		return
	}
	h.page++
	h.showPage()
}

func (h *Handler) prevPage() {
	if !h.viewing {
		return
	}
	if h.page == 0 {
		h.print("Already at the first page.")
		return
	}
	h.page--
	h.showPage()
}

func (h *Handler) exitList() {
	if h.viewing {
		h.viewing = false
		h.print("Exited channel list view.")
	}
}

func (h *Handler) showPage() {
	if !h.viewing {
		return
	}
	if len(h.list) == 0 {
		h.print("No channels found.")
		return
	}
	start := h.page * listPageSize
	if start >= len(h.list) {
		h.print("Invalid page number.")
		return
	}
	end := min(start+listPageSize, len(h.list))

	var b strings.Builder
	fmt.Fprintf(&b, "Channel List (Page %d/%d):\n", h.page+1, h.pages())
	fmt.Fprintf(&b, "%-18s | %-5s | %s\n", "Channel", "Users", "Topic")
	for _, e := range h.list[start:end] {
		fmt.Fprintf(&b, "%-18s | %-5s | %s\n", e.name, e.users, e.topic)
	}
	fmt.Fprintf(&b, "Showing channels %d-%d of %d. Use /listnext, /listprev, /list <page> or /listquit.", start+1, end, len(h.list))
	h.print(b.String())
}

// HandleLine processes one line received from the server.
func (h *Handler) HandleLine(line string) {
	msg := proto.Parse(line)
	if msg == nil {
		return
	}

	if msg.Command == proto.CmdPing {
		h.ctrl.Send(fmt.Sprintf("%s :%s", proto.CmdPong, msg.Trailing()))
		return
	}

	if msg.Command == proto.CmdNotice && strings.HasPrefix(msg.Trailing(), proto.TokenNoticePrefix) {
		h.ctrl.SetToken(strings.TrimPrefix(msg.Trailing(), proto.TokenNoticePrefix))
		h.print("Session token received.")
		return
	}

	h.printf("%s <- %s", h.now().Format("15:04:05"), line)

	h.mu.Lock()
	defer h.mu.Unlock()

	if msg.IsNumeric() {
		code, _ := strconv.Atoi(msg.Command)
		h.numeric(code, msg)
		return
	}

	switch msg.Command {
	case proto.CmdPrivmsg:
		if strings.HasPrefix(msg.Param(0), "#") {
			h.current = msg.Param(0)
		}
	case proto.CmdJoin:
		channel := msg.Param(0)
		if msg.Nick() == h.nick {
			h.current = channel
			h.ctrl.Send(fmt.Sprintf("%s %s", proto.CmdTopic, channel))
			h.ctrl.Send(fmt.Sprintf("%s %s", proto.CmdNames, channel))
			return
		}
		h.addName(channel, msg.Nick())
	case proto.CmdPart, proto.CmdQuit:
		h.purge(msg.Nick())
	case proto.CmdNick:
		h.rename(msg.Nick(), msg.Trailing())
	}
}

func (h *Handler) numeric(code int, msg *proto.Message) {
	switch code {
	case proto.RplWelcome:
		h.attempts = 0
		if nick := msg.Param(0); nick != "" && nick != "*" {
			h.nick = nick
			h.ctrl.SetNickname(nick)
		}
		h.print("Successfully connected to server!")
	case proto.RplListStart:
		h.list = nil
		h.collecting = true
	case proto.RplList:
		if h.collecting && len(msg.Params) >= 3 {
			h.list = append(h.list, listEntry{
				name:  msg.Param(1),
				users: msg.Param(2),
				topic: msg.Param(3),
			})
		}
	case proto.RplListEnd:
		h.collecting = false
		h.showPage()
	case proto.RplTopic:
		h.topics[msg.Param(1)] = msg.Trailing()
	case proto.RplNamReply:
		channel := msg.Param(2)
		for _, name := range strings.Fields(msg.Trailing()) {
			h.addName(channel, strings.TrimLeft(name, "@+"))
		}
	case proto.RplEndOfNames:
		channel := msg.Param(1)
		h.printf("Users in %s: %s", channel, strings.Join(sortedNames(h.names[channel]), ", "))
	case proto.ErrNicknameInUse:
		h.nickInUse(msg.Param(1))
	}
}

// nickInUse retries with base_1 .. base_9 and then gives up.
func (h *Handler) nickInUse(rejected string) {
	if h.attempts >= maxNickAttempts {
		h.printf("Nickname %s is unavailable after %d attempts, use /nick to choose another.", h.base, maxNickAttempts)
		return
	}
	if h.attempts == 0 {
		h.base = rejected
	}
	h.attempts++

	suffix := "_" + strconv.Itoa(h.attempts)
	base := h.base
	if len(base)+len(suffix) > proto.MaxNickLen {
		base = base[:proto.MaxNickLen-len(suffix)]
	}
	candidate := base + suffix

	h.printf("Nickname %s is in use, trying %s", rejected, candidate)
	h.ctrl.Send(fmt.Sprintf("%s %s", proto.CmdNick, candidate))
}

func (h *Handler) addName(channel, nick string) {
	if channel == "" || nick == "" {
		return
	}
	members, ok := h.names[channel]
	if !ok {
		members = make(map[string]struct{})
		h.names[channel] = members
	}
	members[nick] = struct{}{}
}

func (h *Handler) purge(nick string) {
	for _, members := range h.names {
		delete(members, nick)
	}
}

func (h *Handler) rename(old, nick string) {
	if old == "" || nick == "" {
		return
	}
	for _, members := range h.names {
		if _, ok := members[old]; ok {
			delete(members, old)
			members[nick] = struct{}{}
		}
	}
	if old == h.nick {
		h.nick = nick
		h.ctrl.Renamed(old, nick)
		h.printf("You are now known as %s", nick)
	}
}

func sortedNames(members map[string]struct{}) []string {
	out := make([]string, 0, len(members))
	for name := range members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
