package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomlink/bridge-client/internal/backoff"
	"github.com/roomlink/bridge-client/internal/wire"
)

// fakeBridge is a WebSocket peer speaking the controller protocol,
// driven entirely by the client under test.
type fakeBridge struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu          sync.Mutex
	conns       []*websocket.Conn
	counts      map[string]int
	discoveries int

	components          []wire.Component
	silentIdentify      bool
	emptyDiscovery      bool
	emptyFirstDiscovery bool
	rejects             map[string]string // controlID -> error message
	holds               map[string]bool   // controlID -> never ack
}

func defaultComponents() []wire.Component {
	return []wire.Component{
		{ID: "comp-1", Name: "Main Display", Controls: []wire.ControlInfo{
			{ID: "PowerState", Value: json.RawMessage(`true`)},
			{ID: "Volume", Value: json.RawMessage(`0.5`)},
		}},
		{ID: "comp-2", Name: "AV Decoder", Controls: []wire.ControlInfo{
			{ID: "ActiveInput", Value: json.RawMessage(`"hdmi1"`)},
		}},
		{ID: "comp-3", Name: "Lighting Zone A", Controls: []wire.ControlInfo{
			{ID: "LightLevel", Value: json.RawMessage(`0.8`)},
		}},
		{ID: "comp-4", Name: "Aux Panel"},
	}
}

func newFakeBridge(t *testing.T) *fakeBridge {
	fb := &fakeBridge{
		t:          t,
		counts:     make(map[string]int),
		components: defaultComponents(),
		rejects:    make(map[string]string),
		holds:      make(map[string]bool),
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	fb.server = httptest.NewServer(http.HandlerFunc(fb.handle))
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBridge) wsURL() string {
	return "ws" + strings.TrimPrefix(fb.server.URL, "http")
}

func (fb *fakeBridge) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := fb.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	fb.mu.Lock()
	fb.conns = append(fb.conns, conn)
	fb.mu.Unlock()
	go fb.serve(conn)
}

func (fb *fakeBridge) write(conn *websocket.Conn, typ string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		fb.t.Errorf("fakeBridge marshal %s: %v", typ, err)
		return
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	conn.WriteJSON(wire.Envelope{Type: typ, Payload: raw})
}

func (fb *fakeBridge) count(key string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.counts[key]
}

func (fb *fakeBridge) dropConnections() {
	fb.mu.Lock()
	conns := fb.conns
	fb.conns = nil
	fb.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

func (fb *fakeBridge) serve(conn *websocket.Conn) {
	for {
		var env wire.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}

		fb.mu.Lock()
		fb.counts[env.Type]++
		fb.mu.Unlock()

		switch env.Type {
		case wire.TypeIdentify:
			if fb.silentIdentify {
				continue
			}
			fb.write(conn, wire.TypeIdentifySuccess, map[string]any{
				"socketId":       "sock-1",
				"clientId":       "client-1",
				"serverTime":     time.Now().UnixMilli(),
				"connectionInfo": map[string]string{"transport": "websocket", "address": "127.0.0.1"},
			})

		case wire.TypeControllerSubscribe:
			fb.mu.Lock()
			fb.discoveries++
			n := fb.discoveries
			comps := fb.components
			if fb.emptyDiscovery || (fb.emptyFirstDiscovery && n == 1) {
				comps = nil
			}
			announceReady := fb.emptyFirstDiscovery && n == 1
			fb.mu.Unlock()

			fb.write(conn, wire.TypeControllerState, map[string]any{"components": comps})
			if announceReady {
				fb.write(conn, wire.TypeSystemReady, map[string]any{})
			}

		case wire.TypeComponentSubscribe:
			var req struct {
				ComponentID string `json:"componentId"`
			}
			json.Unmarshal(env.Payload, &req)
			fb.mu.Lock()
			fb.counts["component:subscribe:"+req.ComponentID]++
			var comp wire.Component
			for _, c := range fb.components {
				if c.ID == req.ComponentID {
					comp = c
				}
			}
			fb.mu.Unlock()
			fb.write(conn, wire.TypeComponentState, map[string]any{"component": comp})

		case wire.TypeControlSubscribe:
			var req struct {
				ControlID string `json:"controlId"`
			}
			json.Unmarshal(env.Payload, &req)
			fb.write(conn, wire.TypeControlUpdate, map[string]any{
				"controlId": req.ControlID,
				"control":   map[string]any{"id": req.ControlID},
			})

		case wire.TypeControlSet:
			var req struct {
				ControlID     string `json:"controlId"`
				TransactionID string `json:"transactionId"`
			}
			json.Unmarshal(env.Payload, &req)
			fb.mu.Lock()
			msg, rejected := fb.rejects[req.ControlID]
			held := fb.holds[req.ControlID]
			fb.mu.Unlock()
			if held {
				continue
			}
			if rejected {
				fb.write(conn, wire.TypeControlSetError, map[string]any{
					"transactionId": req.TransactionID,
					"message":       msg,
				})
				continue
			}
			fb.write(conn, wire.TypeControlSetSuccess, map[string]any{
				"transactionId": req.TransactionID,
			})

		case wire.TypePing:
			var req struct {
				Timestamp int64 `json:"timestamp"`
			}
			json.Unmarshal(env.Payload, &req)
			fb.write(conn, wire.TypePong, map[string]any{"clientTimestamp": req.Timestamp})
		}
	}
}

func testOptions(url string) Options {
	return Options{
		URL:                url,
		ControllerID:       "ctl-1",
		IdentifyTimeout:    300 * time.Millisecond,
		DiscoveryTimeout:   200 * time.Millisecond,
		SystemReadyTimeout: 300 * time.Millisecond,
		CommandTimeout:     300 * time.Millisecond,
		SubscribeTimeout:   300 * time.Millisecond,
		StateTTL:           100 * time.Millisecond,
		RefreshGrace:       60 * time.Millisecond,
		PingInterval:       time.Hour,
		CheckInterval:      time.Hour,
		PongTimeout:        time.Hour,
		MaxMissedPongs:     3,
		WatchdogInterval:   time.Hour,
		Reconnect:          backoff.Policy{Base: 20 * time.Millisecond, Cap: 100 * time.Millisecond, MaxAttempts: 5},
		Logger:             quietLogger(),
	}
}

func waitForState(t *testing.T, m *Manager, want ConnectionState, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", m.State(), want)
}

func TestConnectRunsHandshakeSequence(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()

	var mu sync.Mutex
	var transitions []ConnectionState
	m.OnStatusChange(func(s ConnectionState) {
		mu.Lock()
		transitions = append(transitions, s)
		mu.Unlock()
	})

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	mu.Lock()
	got := append([]ConnectionState(nil), transitions...)
	mu.Unlock()
	want := []ConnectionState{Connecting, Identifying, Discovering, Ready}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", got, want)
		}
	}

	id := m.Identity()
	if id == nil || id.SessionID != "sock-1" || id.ClientID != "client-1" {
		t.Errorf("identity = %+v", id)
	}
	if len(m.Components()) != 4 {
		t.Errorf("directory size = %d, want 4", len(m.Components()))
	}
	roles := m.Roles()
	if roles["display"] != "comp-1" || roles["decoder"] != "comp-2" || roles["lighting"] != "comp-3" {
		t.Errorf("roles = %v", roles)
	}
}

func TestIdentifyTimeoutFailsConnect(t *testing.T) {
	fb := newFakeBridge(t)
	fb.silentIdentify = true
	m := New(testOptions(fb.wsURL()))
	defer m.Close()

	err := m.Connect()
	if !errors.Is(err, ErrIdentifyTimeout) {
		t.Fatalf("Connect = %v, want ErrIdentifyTimeout", err)
	}
	if m.State() != Disconnected {
		t.Errorf("state = %v after identify timeout, want disconnected", m.State())
	}
}

func TestDialFailureIsTransportError(t *testing.T) {
	opts := testOptions("ws://127.0.0.1:1/never")
	m := New(opts)
	defer m.Close()

	err := m.Connect()
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Connect = %v, want ErrTransport", err)
	}
}

func TestEmptyDiscoveryEntersDegraded(t *testing.T) {
	fb := newFakeBridge(t)
	fb.emptyDiscovery = true
	m := New(testOptions(fb.wsURL()))
	defer m.Close()

	// system:ready never arrives; the connection still comes up, just
	// with nothing discovered.
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if m.State() != Degraded {
		t.Fatalf("state = %v, want degraded", m.State())
	}
	if len(m.Components()) != 0 {
		t.Errorf("directory size = %d, want 0", len(m.Components()))
	}

	// Commands against role names now fail per-command.
	if _, err := m.SendControl("display", "PowerState", true); !errors.Is(err, ErrComponentNotFound) {
		t.Errorf("SendControl = %v, want ErrComponentNotFound", err)
	}
}

func TestSystemReadyTriggersDiscoveryRetry(t *testing.T) {
	fb := newFakeBridge(t)
	fb.emptyFirstDiscovery = true
	m := New(testOptions(fb.wsURL()))
	defer m.Close()

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if m.State() != Ready {
		t.Fatalf("state = %v, want ready", m.State())
	}
	if got := fb.count(wire.TypeControllerSubscribe); got != 2 {
		t.Errorf("discovery requests = %d, want 2 (initial + post-ready retry)", got)
	}
}

func TestSendControlSuccess(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	tx, err := m.SendControl("display", "PowerState", true)
	if err != nil {
		t.Fatalf("SendControl failed: %v", err)
	}
	if tx == "" {
		t.Error("empty transaction id")
	}
	if m.txns.size() != 0 {
		t.Errorf("pending = %d after success, want 0", m.txns.size())
	}
}

func TestSendControlRejected(t *testing.T) {
	fb := newFakeBridge(t)
	fb.rejects["ActiveInput"] = "input locked by panel"
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	_, err := m.SendControl("decoder", "ActiveInput", "hdmi2")
	var rejected *CommandRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("SendControl = %v, want CommandRejectedError", err)
	}
	if rejected.Message != "input locked by panel" {
		t.Errorf("message = %q", rejected.Message)
	}
	if m.txns.size() != 0 {
		t.Errorf("pending = %d after rejection, want 0", m.txns.size())
	}
}

func TestSendControlBeforeConnect(t *testing.T) {
	m := New(testOptions("ws://127.0.0.1:1/never"))
	defer m.Close()

	if _, err := m.SendControl("display", "PowerState", true); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendControl = %v, want ErrNotConnected", err)
	}
}

func TestSendControlRawIDSkipsResolution(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// A separator-bearing target is trusted as a component id even if
	// the directory has never seen it.
	if _, err := m.SendControl("matrix:out4", "Volume", 0.3); err != nil {
		t.Fatalf("SendControl failed: %v", err)
	}
}

func TestConcurrentCommandsResolveIndependently(t *testing.T) {
	fb := newFakeBridge(t)
	fb.holds["Volume"] = true // Volume commands never acked
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	before := m.txns.size()

	var wg sync.WaitGroup
	var volumeErr, powerErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, volumeErr = m.SendControl("display", "Volume", 0.7)
	}()
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		_, powerErr = m.SendControl("display", "PowerState", false)
	}()
	wg.Wait()

	if !errors.Is(volumeErr, ErrCommandTimeout) {
		t.Errorf("held command = %v, want ErrCommandTimeout", volumeErr)
	}
	if powerErr != nil {
		t.Errorf("independent command failed: %v", powerErr)
	}
	if m.txns.size() != before {
		t.Errorf("pending = %d, want %d (no leaked listeners)", m.txns.size(), before)
	}
}

func TestSubscribeIdempotent(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	first, err := m.SubscribeToComponent("comp-4")
	if err != nil {
		t.Fatalf("first subscribe failed: %v", err)
	}
	second, err := m.SubscribeToComponent("comp-4")
	if err != nil {
		t.Fatalf("second subscribe failed: %v", err)
	}
	if first != second {
		t.Error("second subscribe did not return the cached record")
	}
	if got := fb.count("component:subscribe:comp-4"); got != 1 {
		t.Errorf("wire subscribes for comp-4 = %d, want 1", got)
	}
}

func TestSubscribeSurvivesStaleRefresh(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	first, err := m.SubscribeToComponent("comp-4")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// Let the cache go stale, then force the refresh round trip. The
	// snapshot that comes back must not forget live subscriptions.
	time.Sleep(150 * time.Millisecond)
	m.GetState()

	second, err := m.SubscribeToComponent("comp-4")
	if err != nil {
		t.Fatalf("re-subscribe failed: %v", err)
	}
	if first != second {
		t.Error("subscription record wiped by stale-cache refresh")
	}
	if got := fb.count("component:subscribe:comp-4"); got != 1 {
		t.Errorf("wire subscribes for comp-4 = %d, want 1", got)
	}
}

func TestSubscriptionsResetByReconnect(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if _, err := m.SubscribeToComponent("comp-4"); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if err := m.Reconnect(); err != nil {
		t.Fatalf("Reconnect failed: %v", err)
	}

	// The old connection's subscription is gone; a new one must go back
	// over the wire.
	if _, err := m.SubscribeToComponent("comp-4"); err != nil {
		t.Fatalf("re-subscribe failed: %v", err)
	}
	if got := fb.count("component:subscribe:comp-4"); got != 2 {
		t.Errorf("wire subscribes for comp-4 = %d across connections, want 2", got)
	}
}

func TestSubscribeUnknownComponent(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if _, err := m.SubscribeToComponent("comp-99"); !errors.Is(err, ErrComponentNotFound) {
		t.Errorf("subscribe = %v, want ErrComponentNotFound", err)
	}
}

func TestSubscribeToControl(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	rec, err := m.SubscribeToControl("comp-1", "Volume")
	if err != nil {
		t.Fatalf("SubscribeToControl failed: %v", err)
	}
	if rec.Key != "comp-1/Volume" {
		t.Errorf("key = %q", rec.Key)
	}
}

func TestGetStateTTL(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	discoverCount := fb.count(wire.TypeControllerSubscribe)

	// Fresh: two reads, no refresh traffic.
	first := m.GetState()
	second := m.GetState()
	if first["power"] != second["power"] || first["volume"] != second["volume"] {
		t.Errorf("fresh reads differ: %v vs %v", first, second)
	}
	if got := fb.count(wire.TypeControllerSubscribe); got != discoverCount {
		t.Errorf("refresh issued while fresh: %d -> %d", discoverCount, got)
	}

	// Stale: exactly one refresh.
	time.Sleep(150 * time.Millisecond)
	snap := m.GetState()
	if got := fb.count(wire.TypeControllerSubscribe); got != discoverCount+1 {
		t.Errorf("refreshes after TTL expiry = %d, want %d", got-discoverCount, 1)
	}
	if snap["power"] != true {
		t.Errorf("snapshot lost state: %v", snap)
	}
}

func TestStateListenerNotified(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()

	updates := make(chan map[string]any, 16)
	m.OnStateChange(func(snap map[string]any) {
		select {
		case updates <- snap:
		default:
		}
	})

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Role subscriptions answered with component:state trigger the
	// listener during connect.
	select {
	case snap := <-updates:
		if len(snap) == 0 {
			t.Error("listener got empty snapshot")
		}
	case <-time.After(time.Second):
		t.Fatal("state listener never notified")
	}
}

func TestPassiveDisconnectReconnects(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	fb.dropConnections()

	// The manager notices the drop asynchronously; wait for the second
	// handshake before asserting on the recovered session.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && fb.count(wire.TypeIdentify) < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := fb.count(wire.TypeIdentify); got < 2 {
		t.Fatalf("identify handshakes = %d, want re-identification after reconnect", got)
	}
	waitForState(t, m, Ready, 2*time.Second)

	if len(m.Components()) != 4 {
		t.Errorf("directory size = %d after reconnect, want 4", len(m.Components()))
	}
}

func TestExplicitDisconnectStaysDown(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if m.State() != Disconnected {
		t.Errorf("state = %v after explicit disconnect, want disconnected", m.State())
	}
}

func TestReconnectReestablishesSession(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	firstConnectedAt := m.Identity().ConnectedAt

	if err := m.Reconnect(); err != nil {
		t.Fatalf("Reconnect failed: %v", err)
	}
	if m.State() != Ready {
		t.Errorf("state = %v after forced reconnect, want ready", m.State())
	}
	if !m.Identity().ConnectedAt.After(firstConnectedAt) {
		t.Error("identity not refreshed by forced reconnect")
	}
}

func TestPendingCommandsFailOnDisconnect(t *testing.T) {
	fb := newFakeBridge(t)
	fb.holds["Volume"] = true
	opts := testOptions(fb.wsURL())
	opts.CommandTimeout = 2 * time.Second
	m := New(opts)
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := m.SendControl("display", "Volume", 0.9)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	m.Disconnect()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("pending command = %v, want ErrNotConnected", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending command not failed by disconnect")
	}
}

func TestPingPongOverWire(t *testing.T) {
	fb := newFakeBridge(t)
	opts := testOptions(fb.wsURL())
	opts.PingInterval = 20 * time.Millisecond
	opts.PongTimeout = 500 * time.Millisecond
	m := New(opts)
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		snap := m.Health()
		if !snap.LastPingSentAt.IsZero() && snap.LastPongReceivedAt.After(snap.LastPingSentAt) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no pong observed: %+v", m.Health())
}

func TestResolveTargetPrecedence(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	cases := []struct {
		target string
		wantID string
	}{
		{"display", "comp-1"},      // role alias
		{"comp-2", "comp-2"},       // exact id
		{"aux", "comp-4"},          // display-name substring
		{"matrix:out1", "matrix:out1"}, // separator, pre-resolved
	}
	for _, tc := range cases {
		got, err := m.resolveTarget(tc.target)
		if err != nil {
			t.Errorf("resolveTarget(%q) failed: %v", tc.target, err)
			continue
		}
		if got != tc.wantID {
			t.Errorf("resolveTarget(%q) = %q, want %q", tc.target, got, tc.wantID)
		}
	}

	if _, err := m.resolveTarget("projector"); !errors.Is(err, ErrComponentNotFound) {
		t.Errorf("resolveTarget(projector) = %v, want ErrComponentNotFound", err)
	}
}

func TestManyCommandsNoListenerLeak(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	before := m.txns.size()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := m.SendControl("display", "PowerState", i%2 == 0); err != nil {
				t.Errorf("command %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if m.txns.size() != before {
		t.Errorf("pending = %d after 20 commands, want %d", m.txns.size(), before)
	}
	if got := fb.count(wire.TypeControlSet); got != 20 {
		t.Errorf("control:set seen by bridge = %d, want 20", got)
	}
}

func TestConnectSerialized(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Connect()
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && !errors.Is(err, errConnectInProgress) {
			t.Errorf("unexpected connect error: %v", err)
		}
	}
	// However the racers interleave, only one handshake runs.
	if got := fb.count(wire.TypeIdentify); got != 1 {
		t.Errorf("identify requests = %d, want 1", got)
	}
	if m.State() != Ready {
		t.Errorf("state = %v, want ready", m.State())
	}
}

func TestStateStringCoverage(t *testing.T) {
	states := map[ConnectionState]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Identifying:  "identifying",
		Discovering:  "discovering",
		Ready:        "ready",
		Degraded:     "degraded",
	}
	for s, want := range states {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
	if got := ConnectionState(99).String(); got != "unknown" {
		t.Errorf("unknown state = %q", got)
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	fb.mu.Lock()
	conns := append([]*websocket.Conn(nil), fb.conns...)
	fb.mu.Unlock()
	for _, c := range conns {
		fb.write(c, "vendor:extension", map[string]any{"x": 1})
	}

	// Connection survives unknown traffic.
	time.Sleep(50 * time.Millisecond)
	if m.State() != Ready {
		t.Errorf("state = %v after unknown event, want ready", m.State())
	}
	if _, err := m.SendControl("display", "PowerState", true); err != nil {
		t.Errorf("command after unknown event failed: %v", err)
	}
}

func TestComponentsListedInDiscoveryOrder(t *testing.T) {
	fb := newFakeBridge(t)
	m := New(testOptions(fb.wsURL()))
	defer m.Close()
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	comps := m.Components()
	var names []string
	for _, c := range comps {
		names = append(names, c.DisplayName)
	}
	want := "Main Display,AV Decoder,Lighting Zone A,Aux Panel"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("components = %s, want %s", got, want)
	}
}
