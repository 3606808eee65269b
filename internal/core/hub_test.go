package core

import (
	"strings"
	"testing"
	"time"
)

func TestChannelMessageReachesAllMembers(t *testing.T) {
	hub, _ := newTestHub(t, Options{})

	alice := login(t, hub, "alice")
	bob := login(t, hub, "bob")

	send(t, hub, alice, "JOIN #test")
	send(t, hub, bob, "JOIN #test")

	// Alice sees bob arrive, bob sees his own join.
	mustLine(t, alice, "bob!bob@127.0.0.1 JOIN #test")
	mustLine(t, bob, "bob!bob@127.0.0.1 JOIN #test")

	send(t, hub, alice, "PRIVMSG #test :hi")

	want := ":alice!alice@127.0.0.1 PRIVMSG #test :hi"
	if got := mustLine(t, bob, "PRIVMSG"); got != want {
		t.Fatalf("bob got %q, want %q", got, want)
	}
	if got := mustLine(t, alice, "PRIVMSG"); got != want {
		t.Fatalf("alice got %q, want %q", got, want)
	}
}

func TestNickCollisionKeepsIdentity(t *testing.T) {
	hub, _ := newTestHub(t, Options{})

	alice := login(t, hub, "alice")
	bob := login(t, hub, "bob")

	send(t, hub, bob, "NICK ALICE")
	line := mustLine(t, bob, " 433 ")
	if line != ":test.server 433 bob ALICE :Nickname is already in use" {
		t.Fatalf("unexpected reply %q", line)
	}
	if bob.Nickname() != "bob" || alice.Nickname() != "alice" {
		t.Fatalf("identities changed: bob=%s alice=%s", bob.Nickname(), alice.Nickname())
	}
}

func TestPartStopsDelivery(t *testing.T) {
	hub, _ := newTestHub(t, Options{})

	alice := login(t, hub, "alice")
	bob := login(t, hub, "bob")

	send(t, hub, alice, "JOIN #test")
	send(t, hub, bob, "JOIN test")
	send(t, hub, bob, "PART #test")

	mustLine(t, alice, "bob!bob@127.0.0.1 PART #test")
	mustLine(t, bob, "bob!bob@127.0.0.1 PART #test")
	if bob.InChannel("#test") {
		t.Fatal("session still records membership")
	}

	send(t, hub, alice, "PRIVMSG #test :hi")
	mustLine(t, alice, "PRIVMSG #test :hi")
	noLine(t, bob, "PRIVMSG")

	// Parting again is a no-op.
	send(t, hub, bob, "PART #test")
	noLine(t, bob, "PART")
}

func TestListReportsMemberCounts(t *testing.T) {
	hub, _ := newTestHub(t, Options{})
	hub.CreateChannel("#main", "Welcome to the main channel!")
	hub.CreateChannel("#help", "Get help with IRC commands and features")

	var sessions []*Session
	for _, nick := range []string{"alice", "bob", "carol"} {
		s := login(t, hub, nick)
		send(t, hub, s, "JOIN #main")
		sessions = append(sessions, s)
	}

	asker := sessions[0]
	drain(asker)
	send(t, hub, asker, "LIST")

	lines := drain(asker)
	want := []string{
		":test.server 321 alice Channel :Users Name",
		":test.server 322 alice #help 0 :Get help with IRC commands and features",
		":test.server 322 alice #main 3 :Welcome to the main channel!",
		":test.server 323 alice :End of /LIST",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %q, want %d", len(lines), lines, len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestListThrottleStillCompletes(t *testing.T) {
	hub, _ := newTestHub(t, Options{ListThrottle: 5 * time.Millisecond})
	hub.CreateChannel("#a", "")
	hub.CreateChannel("#b", "")

	s := login(t, hub, "alice")
	send(t, hub, s, "LIST")
	mustLine(t, s, "322 alice #a 0")
	mustLine(t, s, "322 alice #b 0")
	mustLine(t, s, "323 alice :End of /LIST")
}

func TestCommandsRequireAuthentication(t *testing.T) {
	hub, _ := newTestHub(t, Options{})
	s := connect(t, hub)

	for _, line := range []string{"JOIN #test", "NICK alice", "FOO bar", "PRIVMSG #x :hi"} {
		send(t, hub, s, line)
		if got := mustLine(t, s, " 484 "); got != ":test.server 484 * :Must authenticate first" {
			t.Fatalf("%s: unexpected reply %q", line, got)
		}
	}

	// Permitted before authentication.
	send(t, hub, s, "PING abc")
	mustLine(t, s, "PONG :abc")
	send(t, hub, s, "VERSION")
	mustLine(t, s, " 351 * 1.0.1 test.server :Running since ")
	send(t, hub, s, "USER alice 0 * :Alice Liddell")
	noLine(t, s, " 484 ")
}

func TestUnknownCommandIgnoredAfterAuth(t *testing.T) {
	hub, _ := newTestHub(t, Options{})
	s := login(t, hub, "alice")
	drain(s)

	send(t, hub, s, "FROBNICATE now")
	if lines := drain(s); len(lines) != 0 {
		t.Fatalf("expected silence, got %q", lines)
	}
}

func TestNotEnoughParameters(t *testing.T) {
	hub, _ := newTestHub(t, Options{})
	s := login(t, hub, "alice")

	tests := []struct {
		line string
		want string
	}{
		{"PRIVMSG #test", ":test.server 461 alice PRIVMSG :Not enough parameters"},
		{"JOIN", ":test.server 461 alice JOIN :Not enough parameters"},
		{"TOPIC", ":test.server 461 alice TOPIC :Not enough parameters"},
		{"WHOIS", ":test.server 461 alice WHOIS :Not enough parameters"},
		{"MODE", ":test.server 461 alice MODE :Not enough parameters"},
		{"USER alice", ":test.server 461 alice USER :Not enough parameters"},
		{"NICK", ":test.server 431 alice :No nickname given"},
		{"NICK 9lives", ":test.server 432 alice 9lives :Erroneous nickname"},
	}
	for _, tt := range tests {
		drain(s)
		send(t, hub, s, tt.line)
		lines := drain(s)
		if len(lines) != 1 || lines[0] != tt.want {
			t.Fatalf("%s: got %q, want %q", tt.line, lines, tt.want)
		}
	}
	if len(s.Channels()) != 0 {
		t.Fatal("malformed command had side effects")
	}
}

func TestAuthWhenNickHeldStaysUnregistered(t *testing.T) {
	hub, users := newTestHub(t, Options{})

	if _, err := users.Register(t.Context(), "alice", "secret1", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	holder := login(t, hub, "bob")
	send(t, hub, holder, "NICK alice")

	// Renaming bob's account onto alice's must fail at the store.
	mustLine(t, holder, "432 bob alice :Nickname change failed")

	send(t, hub, holder, "NICK carol")
	mustLine(t, holder, ":bob NICK :carol")

	s := connect(t, hub)
	send(t, hub, s, "AUTH alice wrong")
	mustLine(t, s, "NOTICE * :Authentication failed.")
	if s.Authenticated() {
		t.Fatal("failed auth changed state")
	}

	send(t, hub, s, "AUTH alice secret1")
	mustLine(t, s, "NOTICE * :You are now identified.")
	mustLine(t, s, "NOTICE * :TOKEN token-alice")
	mustLine(t, s, " 001 alice ")
	if !users.isOnline("alice") {
		t.Fatal("alice not marked online")
	}

	send(t, hub, s, "AUTH alice secret1")
	mustLine(t, s, "NOTICE alice :You are already identified.")
}

func TestAuthBindCollisionRequiresNick(t *testing.T) {
	hub, users := newTestHub(t, Options{})
	if _, err := users.Register(t.Context(), "alice", "secret1", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	first := connect(t, hub)
	send(t, hub, first, "AUTH alice secret1")
	mustLine(t, first, " 001 alice ")

	second := connect(t, hub)
	send(t, hub, second, "AUTH alice token-alice")
	mustLine(t, second, "433 * alice :Nickname is already in use")
	if !second.Authenticated() || second.Registered() {
		t.Fatal("expected authenticated but unregistered session")
	}

	send(t, hub, second, "JOIN #test")
	mustLine(t, second, "451 * :You have not registered")

	send(t, hub, second, "NICK alice_1")
	mustLine(t, second, " 001 alice_1 ")
	if !second.Registered() {
		t.Fatal("NICK should complete registration")
	}
	if u := second.User(); u == nil || u.Username != "alice" {
		t.Fatalf("fallback nick must not rename the account, got %+v", u)
	}

	third := connect(t, hub)
	send(t, hub, third, "AUTH alice secret1")
	mustLine(t, third, "NOTICE * :You are now identified.")
	mustLine(t, third, "433 * alice :Nickname is already in use")
	send(t, hub, third, "QUIT")

	send(t, hub, second, "NICK alice_2")
	mustLine(t, second, ":alice_1 NICK :alice_2")
	send(t, hub, first, "NICK alicia")
	mustLine(t, second, ":alice NICK :alicia")
	if _, err := users.Authenticate(t.Context(), "alicia", "secret1"); err != nil {
		t.Fatalf("account should follow the owning session's nick: %v", err)
	}
	if u := second.User(); u == nil || u.Username != "alicia" {
		t.Fatalf("peer session should see the new account name, got %+v", u)
	}

	send(t, hub, second, "QUIT")
	if !users.isOnline("alicia") {
		t.Fatal("account went offline while another session is logged in")
	}
	send(t, hub, first, "QUIT")
	if users.isOnline("alicia") {
		t.Fatal("account still online after its last session quit")
	}
}

func TestRegisterFailureKeepsState(t *testing.T) {
	hub, _ := newTestHub(t, Options{})
	login(t, hub, "alice")

	s := connect(t, hub)
	send(t, hub, s, "REGISTER alice secret1")
	mustLine(t, s, "NOTICE * :Registration failed. Username may be taken.")
	if s.Authenticated() {
		t.Fatal("failed registration authenticated the session")
	}
}

func TestNickChangeBroadcastsNetworkWide(t *testing.T) {
	hub, users := newTestHub(t, Options{})

	alice := login(t, hub, "alice")
	bob := login(t, hub, "bob")

	send(t, hub, alice, "NICK alicia")
	mustLine(t, bob, ":alice NICK :alicia")
	mustLine(t, alice, ":alice NICK :alicia")

	if alice.Nickname() != "alicia" || alice.User().Username != "alicia" {
		t.Fatalf("rename not applied: %s", alice.Nickname())
	}
	if _, err := users.Authenticate(t.Context(), "alicia", "secret1"); err != nil {
		t.Fatalf("rename not persisted: %v", err)
	}
}

func TestTopicNamesAndCreationTime(t *testing.T) {
	hub, _ := newTestHub(t, Options{})
	alice := login(t, hub, "alice")
	bob := login(t, hub, "bob")

	send(t, hub, alice, "JOIN #fresh")
	mustLine(t, alice, "332 alice #fresh :Welcome to #fresh")
	mustLine(t, alice, "353 alice = #fresh :alice")
	mustLine(t, alice, "366 alice #fresh :End of /NAMES list")
	mustLine(t, alice, "329 alice #fresh ")

	send(t, hub, bob, "JOIN #fresh")
	mustLine(t, bob, "353 bob = #fresh :alice bob")

	send(t, hub, bob, "TOPIC #fresh :new topic here")
	mustLine(t, alice, ":bob TOPIC #fresh :new topic here")

	send(t, hub, alice, "TOPIC #fresh")
	mustLine(t, alice, "332 alice #fresh :new topic here")

	send(t, hub, alice, "TOPIC #fresh :")
	send(t, hub, alice, "TOPIC #fresh")
	mustLine(t, alice, "331 alice #fresh :No topic is set")

	send(t, hub, alice, "TOPIC #nowhere")
	mustLine(t, alice, "403 alice #nowhere :No such channel")

	send(t, hub, alice, "NAMES #nowhere")
	if lines := drain(alice); len(lines) != 1 || !strings.Contains(lines[0], "366 alice #nowhere") {
		t.Fatalf("unexpected NAMES reply %q", lines)
	}

	send(t, hub, alice, "NAMES")
	mustLine(t, alice, "353 alice = #fresh :alice bob")
}

func TestJoinTwiceIsNoop(t *testing.T) {
	hub, _ := newTestHub(t, Options{})
	s := login(t, hub, "alice")

	send(t, hub, s, "JOIN #test")
	drain(s)
	send(t, hub, s, "JOIN #test")
	if lines := drain(s); len(lines) != 0 {
		t.Fatalf("second join produced %q", lines)
	}
	ch, _ := hub.Channels().Get("#test")
	if ch.Len() != 1 {
		t.Fatalf("expected 1 member, got %d", ch.Len())
	}
}

func TestPrivateMessageAndAway(t *testing.T) {
	hub, _ := newTestHub(t, Options{})
	alice := login(t, hub, "alice")
	bob := login(t, hub, "bob")

	send(t, hub, bob, "AWAY :lunch")
	mustLine(t, bob, "306 bob :You have been marked as away")

	send(t, hub, alice, "PRIVMSG bob :are you there")
	mustLine(t, bob, ":alice!alice@127.0.0.1 PRIVMSG bob :are you there")
	mustLine(t, alice, "301 alice bob :lunch")

	// Nick targets match exactly; unknown targets are dropped silently.
	drain(alice)
	send(t, hub, alice, "PRIVMSG BOB :hello")
	send(t, hub, alice, "PRIVMSG nobody :hello")
	if lines := drain(alice); len(lines) != 0 {
		t.Fatalf("expected silence, got %q", lines)
	}
	noLine(t, bob, "hello")

	send(t, hub, bob, "AWAY")
	mustLine(t, bob, "305 bob :You are no longer marked as away")

	send(t, hub, alice, "PRIVMSG #missing :hi")
	mustLine(t, alice, "403 alice #missing :No such channel")
}

func TestWhoisAndMode(t *testing.T) {
	hub, _ := newTestHub(t, Options{})
	alice := login(t, hub, "alice")
	bob := login(t, hub, "bob")

	send(t, hub, bob, "USER bobby 0 * :Bob Builder")
	send(t, hub, bob, "JOIN #a")
	send(t, hub, bob, "AWAY :busy")

	drain(alice)
	send(t, hub, alice, "WHOIS BOB")
	lines := drain(alice)
	codes := make([]string, 0, len(lines))
	for _, l := range lines {
		codes = append(codes, strings.Fields(l)[1])
	}
	if strings.Join(codes, ",") != "311,319,312,301,317,318" {
		t.Fatalf("unexpected whois bundle %q", lines)
	}
	if lines[0] != ":test.server 311 alice bob bobby 127.0.0.1 * :Bob Builder" {
		t.Fatalf("unexpected 311 %q", lines[0])
	}

	send(t, hub, alice, "WHOIS ghost")
	mustLine(t, alice, "401 alice ghost :No such nick/channel")

	send(t, hub, alice, "MODE #a")
	mustLine(t, alice, "324 alice #a +nt")
	send(t, hub, alice, "MODE #zzz")
	mustLine(t, alice, "403 alice #zzz :No such channel")
	send(t, hub, alice, "MODE alice")
	mustLine(t, alice, "221 alice +i")
	send(t, hub, alice, "MODE bob")
	mustLine(t, alice, "502 alice :Can't change mode for other users")
}

func TestCleanupIsIdempotentAndMirrorsMembership(t *testing.T) {
	hub, users := newTestHub(t, Options{})
	alice := login(t, hub, "alice")
	bob := login(t, hub, "bob")

	for _, name := range []string{"#a", "#b"} {
		send(t, hub, alice, "JOIN "+name)
		send(t, hub, bob, "JOIN "+name)
	}
	drain(alice)

	hub.Cleanup(bob, "test")
	hub.Cleanup(bob, "test again")

	parts := 0
	for _, line := range drain(alice) {
		if strings.Contains(line, "bob!bob@127.0.0.1 PART") {
			parts++
		}
	}
	if parts != 2 {
		t.Fatalf("expected one PART per channel, got %d", parts)
	}

	for _, name := range []string{"#a", "#b"} {
		ch, _ := hub.Channels().Get(name)
		if ch.Has(bob) {
			t.Fatalf("bob still in %s", name)
		}
	}
	if hub.Sessions().Contains(bob) || hub.Sessions().Len() != 1 {
		t.Fatal("bob still in session set")
	}
	if !bob.Closed() || users.isOnline("bob") {
		t.Fatal("bob not closed or still online")
	}
	if err := hub.Handle(bob, "JOIN #c"); err != ErrSessionClosed {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestQuitRunsCleanup(t *testing.T) {
	hub, _ := newTestHub(t, Options{})
	alice := login(t, hub, "alice")
	bob := login(t, hub, "bob")
	send(t, hub, alice, "JOIN #a")
	send(t, hub, bob, "JOIN #a")

	send(t, hub, bob, "QUIT :bye")
	mustLine(t, alice, "bob!bob@127.0.0.1 PART #a")
	if !bob.Closed() || len(bob.Channels()) != 0 {
		t.Fatal("quit did not clean up")
	}
}

func TestIdleSessionIsPingedOnceThenDropped(t *testing.T) {
	hub, _ := newTestHub(t, Options{
		PingInterval: 40 * time.Millisecond,
		PongTimeout:  40 * time.Millisecond,
	})
	alice := login(t, hub, "alice")
	bob := login(t, hub, "bob")
	send(t, hub, alice, "JOIN #test")
	send(t, hub, bob, "JOIN #test")
	drain(bob)

	go hub.Monitor(bob)

	select {
	case <-bob.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("idle session was not dropped")
	}

	pings := 0
	for _, line := range drain(bob) {
		if line == "PING :test.server" {
			pings++
		}
	}
	if pings != 1 {
		t.Fatalf("expected exactly one PING, got %d", pings)
	}
	if !bob.Liveness().AwaitingPong() {
		t.Fatal("expected the unanswered ping to be outstanding")
	}

	ch, _ := hub.Channels().Get("#test")
	if ch.Has(bob) || hub.Sessions().Contains(bob) {
		t.Fatal("timed out session still registered")
	}
	mustLine(t, alice, "bob!bob@127.0.0.1 PART #test")
}

func TestBlankLineCountsAsActivity(t *testing.T) {
	hub, _ := newTestHub(t, Options{})
	s := login(t, hub, "alice")

	s.Liveness().MarkPingSent(time.Now())
	before := s.Liveness().LastSeen()
	time.Sleep(5 * time.Millisecond)

	send(t, hub, s, "")
	if !s.Liveness().LastSeen().After(before) {
		t.Fatal("blank line did not refresh last seen")
	}
	if !s.Liveness().AwaitingPong() {
		t.Fatal("only PONG answers an outstanding ping")
	}
}

func TestPongKeepsSessionAlive(t *testing.T) {
	hub, _ := newTestHub(t, Options{
		PingInterval: 30 * time.Millisecond,
		PongTimeout:  60 * time.Millisecond,
	})
	s := login(t, hub, "alice")
	go hub.Monitor(s)

	for range 3 {
		mustLine(t, s, "PING :test.server")
		send(t, hub, s, "PONG :test.server")
	}
	if s.Closed() {
		t.Fatal("session closed despite answering pings")
	}
}

func TestSendQueueOverflowClosesSession(t *testing.T) {
	hub, _ := newTestHub(t, Options{SendQueue: 4})
	s := connect(t, hub)

	for range 10 {
		s.Deliver("NOTICE * :flood")
	}
	if !s.Closed() {
		t.Fatal("expected slow consumer to be closed")
	}
}
