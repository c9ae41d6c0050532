// Package bridge owns the persistent connection to the room-automation
// bridge: the identify/discover handshake, the cached view of remote
// state, command correlation, and recovery from disconnects.
package bridge

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/roomlink/bridge-client/internal/backoff"
	"github.com/roomlink/bridge-client/internal/wire"
)

// ConnectionState is the single lifecycle value for the connection.
// Only setState mutates it.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Identifying
	Discovering
	Ready
	// Degraded is Ready with an empty component directory: discovery
	// came up empty but commands against raw ids are still accepted.
	Degraded
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Identifying:
		return "identifying"
	case Discovering:
		return "discovering"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// ServerIdentity is the session established by a successful handshake,
// immutable until the next handshake.
type ServerIdentity struct {
	SessionID         string
	ClientID          string
	ServerClockOffset time.Duration
	Transport         string
	Address           string
	ConnectedAt       time.Time
}

// idSeparator marks targets that are already fully-qualified component
// ids and skip role/name resolution.
const idSeparator = ":"

// errConnectInProgress serializes connect attempts; a forced reconnect
// racing an in-flight connect becomes a no-op.
var errConnectInProgress = errors.New("connect already in progress")

// Options configures a Manager. Zero fields get defaults.
type Options struct {
	URL          string
	ControllerID string
	Identify     wire.IdentifyRequest

	IdentifyTimeout    time.Duration
	DiscoveryTimeout   time.Duration
	SystemReadyTimeout time.Duration
	CommandTimeout     time.Duration
	SubscribeTimeout   time.Duration

	StateTTL     time.Duration
	RefreshGrace time.Duration

	PingInterval   time.Duration
	CheckInterval  time.Duration
	PongTimeout    time.Duration
	MaxMissedPongs int

	// WatchdogInterval paces the opportunistic retry loop that runs
	// after a reconnect burst exhausts its attempts.
	WatchdogInterval time.Duration

	Reconnect backoff.Policy

	Logger *logrus.Logger
}

func (o *Options) withDefaults() {
	if o.ControllerID == "" {
		o.ControllerID = "main"
	}
	if o.IdentifyTimeout <= 0 {
		o.IdentifyTimeout = 10 * time.Second
	}
	if o.DiscoveryTimeout <= 0 {
		o.DiscoveryTimeout = 10 * time.Second
	}
	if o.SystemReadyTimeout <= 0 {
		o.SystemReadyTimeout = 30 * time.Second
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = 5 * time.Second
	}
	if o.SubscribeTimeout <= 0 {
		o.SubscribeTimeout = 5 * time.Second
	}
	if o.StateTTL <= 0 {
		o.StateTTL = 5 * time.Second
	}
	if o.RefreshGrace <= 0 {
		o.RefreshGrace = 100 * time.Millisecond
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.CheckInterval <= 0 {
		o.CheckInterval = 45 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 10 * time.Second
	}
	if o.MaxMissedPongs <= 0 {
		o.MaxMissedPongs = 3
	}
	if o.WatchdogInterval <= 0 {
		o.WatchdogInterval = 60 * time.Second
	}
	if o.Reconnect == (backoff.Policy{}) {
		o.Reconnect = backoff.DefaultPolicy()
	}
	if o.Logger == nil {
		o.Logger = logrus.New()
	}
}

// Manager owns one logical connection to the bridge. It is safe for
// concurrent use; construct one per bridge, never share as a global.
type Manager struct {
	opts Options
	log  *logrus.Logger

	txns   *txnTable
	cache  *stateCache
	dir    *directory
	health *healthMonitor

	writeChan chan wire.Envelope
	stopChan  chan struct{}
	stopOnce  sync.Once
	writeWg   sync.WaitGroup

	watchdogOnce sync.Once

	mu          sync.RWMutex
	state       ConnectionState
	identity    *ServerIdentity
	conn        *websocket.Conn
	connDone    chan struct{}
	epoch       uint64
	connecting  bool
	roles       map[string]string
	identifyCh  chan *wire.IdentifySuccess
	discoveryCh chan *wire.ControllerState
	systemReady chan struct{}
	subWaiters  map[string][]chan struct{}

	listenerMu      sync.Mutex
	stateListeners  []func(map[string]any)
	statusListeners []func(ConnectionState)
}

// New builds a Manager. Nothing is dialed until Connect.
func New(opts Options) *Manager {
	opts.withDefaults()

	m := &Manager{
		opts:       opts,
		log:        opts.Logger,
		txns:       newTxnTable(),
		cache:      newStateCache(opts.StateTTL),
		dir:        newDirectory(),
		writeChan:  make(chan wire.Envelope, 100),
		stopChan:   make(chan struct{}),
		state:      Disconnected,
		roles:      make(map[string]string),
		subWaiters: make(map[string][]chan struct{}),
	}
	m.health = newHealthMonitor(
		opts.PingInterval, opts.CheckInterval, opts.PongTimeout, opts.MaxMissedPongs,
		func(ts int64) { m.send(wire.Ping(ts)) },
		func() { go m.Reconnect() },
		m.log,
	)
	return m
}

// ReconnectPolicy returns the backoff policy automatic reconnects use,
// for callers driving ConnectWithRetry themselves.
func (m *Manager) ReconnectPolicy() backoff.Policy {
	return m.opts.Reconnect
}

// State returns the current lifecycle value.
func (m *Manager) State() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Identity returns the session from the last successful handshake, or
// nil before the first one.
func (m *Manager) Identity() *ServerIdentity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity
}

// Health reports heartbeat liveness and rolling latency.
func (m *Manager) Health() HealthSnapshot {
	return m.health.snapshot()
}

// Components lists the discovered directory in discovery order.
func (m *Manager) Components() []ComponentRecord {
	m.dir.mu.RLock()
	defer m.dir.mu.RUnlock()
	out := make([]ComponentRecord, 0, len(m.dir.order))
	for _, id := range m.dir.order {
		out = append(out, *m.dir.byID[id])
	}
	return out
}

// Roles returns the resolved role aliases from the last discovery.
func (m *Manager) Roles() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.roles))
	for k, v := range m.roles {
		out[k] = v
	}
	return out
}

// OnStateChange registers a callback invoked with a fresh state
// snapshot after every inbound update.
func (m *Manager) OnStateChange(fn func(map[string]any)) {
	m.listenerMu.Lock()
	m.stateListeners = append(m.stateListeners, fn)
	m.listenerMu.Unlock()
}

// OnStatusChange registers a callback invoked on every lifecycle
// transition.
func (m *Manager) OnStatusChange(fn func(ConnectionState)) {
	m.listenerMu.Lock()
	m.statusListeners = append(m.statusListeners, fn)
	m.listenerMu.Unlock()
}

// setState is the only mutation point for the lifecycle value.
func (m *Manager) setState(s ConnectionState) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()

	if !changed {
		return
	}
	m.log.WithField("state", s.String()).Debug("connection state changed")

	m.listenerMu.Lock()
	listeners := make([]func(ConnectionState), len(m.statusListeners))
	copy(listeners, m.statusListeners)
	m.listenerMu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}

func (m *Manager) notifyStateListeners() {
	m.listenerMu.Lock()
	listeners := make([]func(map[string]any), len(m.stateListeners))
	copy(listeners, m.stateListeners)
	m.listenerMu.Unlock()
	if len(listeners) == 0 {
		return
	}
	snap := m.cache.Snapshot()
	for _, fn := range listeners {
		fn(snap)
	}
}

// send enqueues an envelope for the write loop, dropping when the
// buffer is full rather than blocking an event handler.
func (m *Manager) send(env wire.Envelope) {
	select {
	case m.writeChan <- env:
	default:
		m.log.WithField("type", env.Type).Warn("write buffer full, dropping message")
	}
}

// Connect dials the bridge and runs the identify and discovery steps.
// On success the manager is Ready (or Degraded when discovery came up
// empty). Identify failure tears the connection back down; discovery
// failure does not.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.connecting {
		m.mu.Unlock()
		return errConnectInProgress
	}
	if m.state == Ready || m.state == Degraded {
		m.mu.Unlock()
		return nil
	}
	m.connecting = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.connecting = false
		m.mu.Unlock()
	}()

	m.watchdogOnce.Do(func() { go m.watchdogLoop() })

	m.setState(Connecting)
	m.log.WithField("url", m.opts.URL).Info("connecting to bridge")

	conn, _, err := websocket.DefaultDialer.Dial(m.opts.URL, nil)
	if err != nil {
		m.setState(Disconnected)
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	// Drain messages queued against the previous connection.
drain:
	for {
		select {
		case <-m.writeChan:
		default:
			break drain
		}
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.conn = conn
	m.connDone = done
	m.epoch++
	epoch := m.epoch
	m.identifyCh = make(chan *wire.IdentifySuccess, 1)
	m.discoveryCh = make(chan *wire.ControllerState, 1)
	m.systemReady = make(chan struct{})
	m.subWaiters = make(map[string][]chan struct{})
	identifyCh := m.identifyCh
	m.mu.Unlock()

	m.writeWg.Add(1)
	go m.writeLoop(conn, done)
	go m.readLoop(conn, epoch)

	// Identification: one-shot request, one matching success event.
	m.setState(Identifying)
	m.send(wire.Identify(m.opts.Identify))

	select {
	case id := <-identifyCh:
		now := time.Now()
		m.mu.Lock()
		m.identity = &ServerIdentity{
			SessionID:         id.SocketID,
			ClientID:          id.ClientID,
			ServerClockOffset: time.UnixMilli(id.ServerTime).Sub(now),
			Transport:         id.Connection.Transport,
			Address:           id.Connection.Address,
			ConnectedAt:       now,
		}
		m.mu.Unlock()
	case <-time.After(m.opts.IdentifyTimeout):
		m.teardown(ErrIdentifyTimeout)
		return ErrIdentifyTimeout
	case <-done:
		m.setState(Disconnected)
		return fmt.Errorf("%w: connection closed during identify", ErrTransport)
	case <-m.stopChan:
		m.teardown(ErrNotConnected)
		return ErrNotConnected
	}

	m.log.WithFields(logrus.Fields{
		"session": m.Identity().SessionID,
		"client":  m.Identity().ClientID,
	}).Info("identified with bridge")

	m.health.reset()
	m.health.start(done)

	// Discovery is best-effort: an empty directory degrades service
	// per-command instead of failing the connection.
	m.setState(Discovering)
	components, err := m.discover(done)
	if err != nil {
		if errors.Is(err, ErrTransport) {
			m.setState(Disconnected)
			return err
		}
		m.log.WithError(err).Warn("discovery incomplete, continuing with empty directory")
	}

	m.dir.replaceAll(components)
	roles := m.dir.resolveRoles()
	m.mu.Lock()
	m.roles = roles
	m.mu.Unlock()

	for _, comp := range components {
		m.cache.ApplyComponent(comp)
	}

	if len(components) == 0 {
		m.setState(Degraded)
	} else {
		m.setState(Ready)
	}

	// Watch every component a role resolved to.
	for role, componentID := range roles {
		if _, err := m.SubscribeToComponent(componentID); err != nil {
			m.log.WithError(err).WithField("role", role).Warn("role subscription failed")
		}
	}

	m.log.WithFields(logrus.Fields{
		"components": len(components),
		"roles":      len(roles),
	}).Info("bridge connection ready")
	return nil
}

// discover requests the component snapshot. A zero-component answer
// waits for the bridge's system:ready signal and retries exactly once.
func (m *Manager) discover(done <-chan struct{}) ([]wire.Component, error) {
	for attempt := 0; attempt < 2; attempt++ {
		m.mu.RLock()
		discoveryCh := m.discoveryCh
		systemReady := m.systemReady
		m.mu.RUnlock()

		m.send(wire.SubscribeController(m.opts.ControllerID))

		select {
		case st := <-discoveryCh:
			if len(st.Components) > 0 {
				return st.Components, nil
			}
		case <-time.After(m.opts.DiscoveryTimeout):
		case <-done:
			return nil, fmt.Errorf("%w: connection closed during discovery", ErrTransport)
		}

		if attempt > 0 {
			break
		}

		// Empty or absent snapshot: the bridge may still be booting
		// its component tree.
		m.log.Info("discovery returned no components, waiting for system ready")
		select {
		case <-systemReady:
		case <-time.After(m.opts.SystemReadyTimeout):
			return nil, ErrDiscoveryIncomplete
		case <-done:
			return nil, fmt.Errorf("%w: connection closed during discovery", ErrTransport)
		}
	}
	return nil, ErrDiscoveryIncomplete
}

// ConnectWithRetry drives Connect under the given backoff policy until
// it succeeds, the policy exhausts, or the manager closes.
func (m *Manager) ConnectWithRetry(policy backoff.Policy) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		select {
		case <-m.stopChan:
			return ErrNotConnected
		default:
		}

		err := m.Connect()
		if err == nil || errors.Is(err, errConnectInProgress) {
			return nil
		}
		lastErr = err

		if policy.Exhausted(attempt + 1) {
			m.log.WithError(err).Error("reconnect attempts exhausted")
			return lastErr
		}

		delay := policy.Delay(attempt)
		m.log.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"retry":   delay.Round(time.Millisecond).String(),
		}).WithError(err).Warn("connect failed, retrying")

		select {
		case <-time.After(delay):
		case <-m.stopChan:
			return lastErr
		}
	}
}

// Reconnect tears down the current connection, if any, and runs a full
// connect cycle. It is a no-op while a connect attempt is in flight, so
// the health monitor and the retry driver never race each other.
func (m *Manager) Reconnect() error {
	m.mu.RLock()
	inFlight := m.connecting
	m.mu.RUnlock()
	if inFlight {
		return nil
	}

	m.teardown(ErrNotConnected)
	return m.ConnectWithRetry(m.opts.Reconnect)
}

// Disconnect closes the connection without scheduling a reconnect.
func (m *Manager) Disconnect() error {
	m.teardown(ErrNotConnected)
	return nil
}

// Close shuts the manager down for good.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stopChan) })
	m.teardown(ErrNotConnected)
	return nil
}

// teardown closes the transport, cancels the per-connection loops and
// waiters, and rejects all in-flight commands. Idempotent.
func (m *Manager) teardown(cause error) {
	m.mu.Lock()
	conn := m.conn
	done := m.connDone
	waiters := m.subWaiters
	m.conn = nil
	m.connDone = nil
	m.subWaiters = make(map[string][]chan struct{})
	m.mu.Unlock()

	if done != nil {
		close(done)
	}
	if conn != nil {
		conn.Close()
		m.log.Info("disconnected from bridge")
	}

	// Late acks for these commands will find no entry and be dropped.
	m.txns.failAll(cause)
	m.dir.clearSubscriptions()
	for _, chans := range waiters {
		for _, ch := range chans {
			close(ch)
		}
	}

	if conn != nil || done != nil {
		m.writeWg.Wait()
	}
	m.setState(Disconnected)
}

// readLoop drains inbound events for one connection. All protocol
// dispatch is serialized here.
func (m *Manager) readLoop(conn *websocket.Conn, epoch uint64) {
	defer m.handleDisconnect(epoch)

	for {
		var env wire.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			m.mu.RLock()
			current := epoch == m.epoch && m.conn != nil
			m.mu.RUnlock()
			if current {
				m.log.WithError(err).Debug("read loop ended")
			}
			return
		}

		ev, err := wire.Decode(env)
		if err != nil {
			m.log.WithError(err).Debug("dropping undecodable event")
			continue
		}
		m.dispatch(ev)
	}
}

// handleDisconnect reacts to a passive connection loss: teardown, then
// an asynchronous reconnect burst. Stale epochs (a newer connection
// already exists) are ignored so old read loops cannot tear down their
// successor.
func (m *Manager) handleDisconnect(epoch uint64) {
	m.mu.RLock()
	current := epoch == m.epoch && m.conn != nil
	m.mu.RUnlock()
	if !current {
		return
	}

	m.teardown(ErrNotConnected)

	select {
	case <-m.stopChan:
		return
	default:
	}
	go m.ConnectWithRetry(m.opts.Reconnect)
}

// writeLoop owns all writes for one connection.
func (m *Manager) writeLoop(conn *websocket.Conn, done <-chan struct{}) {
	defer m.writeWg.Done()

	for {
		select {
		case env := <-m.writeChan:
			if err := conn.WriteJSON(env); err != nil {
				m.log.WithError(err).Debug("write loop ended")
				return
			}
		case <-done:
			return
		case <-m.stopChan:
			return
		}
	}
}

// dispatch routes one decoded inbound event. Events from a torn-down
// connection are harmless: their waiter channels are gone and their
// transactions already failed.
func (m *Manager) dispatch(ev any) {
	switch ev := ev.(type) {
	case *wire.IdentifySuccess:
		m.mu.RLock()
		ch := m.identifyCh
		m.mu.RUnlock()
		if ch != nil {
			select {
			case ch <- ev:
			default:
			}
		}

	case *wire.ControllerState:
		if m.State() == Discovering {
			m.mu.RLock()
			ch := m.discoveryCh
			m.mu.RUnlock()
			if ch != nil {
				select {
				case ch <- ev:
				default:
				}
			}
			return
		}
		// Unsolicited snapshot in steady state: authoritative
		// re-discovery, replace wholesale.
		m.dir.replaceAll(ev.Components)
		roles := m.dir.resolveRoles()
		m.mu.Lock()
		m.roles = roles
		m.mu.Unlock()
		for _, comp := range ev.Components {
			m.cache.ApplyComponent(comp)
		}
		m.notifyStateListeners()

	case *wire.ComponentState:
		m.cache.ApplyComponent(ev.Component)
		m.dir.markDelivered(ev.Component.ID)
		m.signalSubWaiters(ev.Component.ID)
		m.notifyStateListeners()

	case *wire.ControlUpdate:
		ctrl := ev.Control
		if ctrl.ID == "" {
			ctrl.ID = ev.ControlID
		}
		m.cache.ApplyControl(ctrl)
		m.signalSubWaiters("ctl:" + ev.ControlID)
		m.notifyStateListeners()

	case *wire.ControlSetSuccess:
		m.txns.resolve(ev.TransactionID, commandResult{TransactionID: ev.TransactionID})

	case *wire.ControlSetError:
		m.txns.resolve(ev.TransactionID, commandResult{
			TransactionID: ev.TransactionID,
			Err: &CommandRejectedError{
				TransactionID: ev.TransactionID,
				Message:       ev.Message,
			},
		})

	case *wire.Pong:
		m.health.handlePong(ev.ClientTimestamp)

	case *wire.SystemReady:
		m.mu.Lock()
		if m.systemReady != nil {
			select {
			case <-m.systemReady:
			default:
				close(m.systemReady)
			}
		}
		m.mu.Unlock()

	case *wire.DigitalTwinReady:
		m.log.WithFields(logrus.Fields{
			"controllers": ev.Controllers,
			"components":  ev.TotalComponents,
		}).Info("bridge digital twin ready")
	}
}

// SendControl issues a control:set against a target and blocks for its
// ack. Target is a role alias, a display-name fragment, or (when it
// contains the id separator) an already-resolved component id. Exactly
// one of success, rejection, or timeout resolves the command.
func (m *Manager) SendControl(target, controlID string, value any) (string, error) {
	switch m.State() {
	case Ready, Degraded:
	case Connecting, Identifying, Discovering:
		return "", ErrNotIdentified
	default:
		return "", ErrNotConnected
	}

	componentID, err := m.resolveTarget(target)
	if err != nil {
		return "", err
	}

	txID := uuid.New().String()
	ch := m.txns.register(txID, m.opts.CommandTimeout)
	m.send(wire.SetControl(m.opts.ControllerID, componentID, controlID, value, txID))

	m.log.WithFields(logrus.Fields{
		"component":   componentID,
		"control":     controlID,
		"transaction": txID,
	}).Debug("command sent")

	res := <-ch
	return txID, res.Err
}

// resolveTarget maps a caller-supplied target onto a component id.
func (m *Manager) resolveTarget(target string) (string, error) {
	if strings.Contains(target, idSeparator) {
		return target, nil
	}

	m.mu.RLock()
	id, ok := m.roles[strings.ToLower(target)]
	m.mu.RUnlock()
	if ok {
		return id, nil
	}

	if rec, ok := m.dir.get(target); ok {
		return rec.ID, nil
	}
	if rec, ok := m.dir.findByName(target); ok {
		return rec.ID, nil
	}
	return "", ErrComponentNotFound
}

// FindComponent resolves a display-name fragment against the directory.
func (m *Manager) FindComponent(name string) (*ComponentRecord, bool) {
	return m.dir.findByName(name)
}

// GetState returns the cached semantic state. A stale cache triggers
// one refresh request and a short grace wait; the caller always gets
// the best snapshot available, never a staleness error.
func (m *Manager) GetState() map[string]any {
	if m.cache.Fresh(time.Now()) {
		return m.cache.Snapshot()
	}

	switch m.State() {
	case Ready, Degraded:
		m.send(wire.SubscribeController(m.opts.ControllerID))
		time.Sleep(m.opts.RefreshGrace)
	}
	return m.cache.Snapshot()
}

// StateAge reports time since the last inbound state update.
func (m *Manager) StateAge() time.Duration {
	return m.cache.Age(time.Now())
}

// SubscribeToComponent ensures a standing subscription for a component.
// Idempotent: an existing record short-circuits without wire traffic.
// The wire wait is correlated by component id; this protocol path
// carries no transaction id.
func (m *Manager) SubscribeToComponent(componentID string) (*SubscriptionRecord, error) {
	if rec, ok := m.dir.subscription(componentID); ok {
		return rec, nil
	}
	if _, ok := m.dir.get(componentID); !ok {
		return nil, ErrComponentNotFound
	}

	wait := m.addSubWaiter(componentID)
	m.send(wire.SubscribeComponent(m.opts.ControllerID, componentID))

	select {
	case <-wait:
	case <-time.After(m.opts.SubscribeTimeout):
		m.removeSubWaiter(componentID, wait)
		return nil, ErrSubscribeTimeout
	}
	rec := m.dir.recordSubscription(componentID)
	m.dir.markDelivered(componentID)
	return rec, nil
}

// SubscribeToControl ensures a standing subscription for one control,
// correlated by control id.
func (m *Manager) SubscribeToControl(componentID, controlID string) (*SubscriptionRecord, error) {
	key := componentID + "/" + controlID
	if rec, ok := m.dir.subscription(key); ok {
		return rec, nil
	}
	if _, ok := m.dir.get(componentID); !ok {
		return nil, ErrComponentNotFound
	}

	wait := m.addSubWaiter("ctl:" + controlID)
	m.send(wire.SubscribeControl(m.opts.ControllerID, componentID, controlID))

	select {
	case <-wait:
	case <-time.After(m.opts.SubscribeTimeout):
		m.removeSubWaiter("ctl:"+controlID, wait)
		return nil, ErrSubscribeTimeout
	}
	return m.dir.recordSubscription(key), nil
}

func (m *Manager) addSubWaiter(key string) chan struct{} {
	ch := make(chan struct{})
	m.mu.Lock()
	m.subWaiters[key] = append(m.subWaiters[key], ch)
	m.mu.Unlock()
	return ch
}

func (m *Manager) removeSubWaiter(key string, ch chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chans := m.subWaiters[key]
	for i, c := range chans {
		if c == ch {
			m.subWaiters[key] = append(chans[:i], chans[i+1:]...)
			return
		}
	}
}

func (m *Manager) signalSubWaiters(key string) {
	m.mu.Lock()
	chans := m.subWaiters[key]
	delete(m.subWaiters, key)
	m.mu.Unlock()
	for _, ch := range chans {
		close(ch)
	}
}

// watchdogLoop opportunistically retries after a reconnect burst gave
// up, so a long outage eventually heals without caller involvement.
func (m *Manager) watchdogLoop() {
	ticker := time.NewTicker(m.opts.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.RLock()
			idle := m.state == Disconnected && !m.connecting
			m.mu.RUnlock()
			if idle {
				m.log.Info("watchdog retrying bridge connection")
				go m.ConnectWithRetry(m.opts.Reconnect)
			}
		case <-m.stopChan:
			return
		}
	}
}
