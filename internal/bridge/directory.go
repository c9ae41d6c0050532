package bridge

import (
	"strings"
	"sync"
	"time"

	"github.com/roomlink/bridge-client/internal/wire"
)

// ComponentRecord is the directory's view of one discovered component.
type ComponentRecord struct {
	ID          string
	DisplayName string
	Controls    map[string]wire.ControlInfo
}

// SubscriptionRecord tracks one active component or control
// subscription. Key is the component id, or "componentId/controlId"
// for a single control.
type SubscriptionRecord struct {
	Key           string
	SubscribedAt  time.Time
	LastDelivered time.Time
}

// rolePatterns resolves the semantic role names used by callers onto
// discovered components by case-insensitive display-name substring.
// First match in discovery order wins; when several components share a
// substring the result depends on the order the bridge returned them.
// Known limitation, kept deliberately.
var rolePatterns = []struct {
	Role    string
	Pattern string
}{
	{"display", "display"},
	{"decoder", "decoder"},
	{"lighting", "light"},
	{"audio", "gain"},
	{"shades", "shade"},
}

// directory holds the discovered component snapshot and the active
// subscriptions. Discovery responses are authoritative: replaceAll
// swaps the whole mapping, never merges.
type directory struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*ComponentRecord
	subs  map[string]*SubscriptionRecord
}

func newDirectory() *directory {
	return &directory{
		byID: make(map[string]*ComponentRecord),
		subs: make(map[string]*SubscriptionRecord),
	}
}

// replaceAll installs a fresh discovery snapshot. Subscriptions stay
// live on the connection that issued them, so records survive as long
// as their component is still in the snapshot; records for vanished
// components are pruned. clearSubscriptions handles connection death.
func (d *directory) replaceAll(components []wire.Component) {
	order := make([]string, 0, len(components))
	byID := make(map[string]*ComponentRecord, len(components))
	for _, comp := range components {
		rec := &ComponentRecord{
			ID:          comp.ID,
			DisplayName: comp.Name,
			Controls:    make(map[string]wire.ControlInfo, len(comp.Controls)),
		}
		for _, ctrl := range comp.Controls {
			rec.Controls[ctrl.ID] = ctrl
		}
		if _, dup := byID[comp.ID]; dup {
			continue
		}
		byID[comp.ID] = rec
		order = append(order, comp.ID)
	}

	d.mu.Lock()
	d.order = order
	d.byID = byID
	for key := range d.subs {
		root := key
		if i := strings.Index(key, "/"); i >= 0 {
			root = key[:i]
		}
		if _, ok := byID[root]; !ok {
			delete(d.subs, key)
		}
	}
	d.mu.Unlock()
}

// clearSubscriptions drops every subscription record; they do not
// survive the wire connection that created them.
func (d *directory) clearSubscriptions() {
	d.mu.Lock()
	d.subs = make(map[string]*SubscriptionRecord)
	d.mu.Unlock()
}

func (d *directory) get(id string) (*ComponentRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.byID[id]
	return rec, ok
}

// findByName matches a case-insensitive substring against discovered
// display names in discovery order, first match wins.
func (d *directory) findByName(name string) (*ComponentRecord, bool) {
	needle := strings.ToLower(name)

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, id := range d.order {
		rec := d.byID[id]
		if strings.Contains(strings.ToLower(rec.DisplayName), needle) {
			return rec, true
		}
	}
	return nil, false
}

// resolveRoles maps every role with a matching component to that
// component's id.
func (d *directory) resolveRoles() map[string]string {
	roles := make(map[string]string)
	for _, rp := range rolePatterns {
		if rec, ok := d.findByName(rp.Pattern); ok {
			roles[rp.Role] = rec.ID
		}
	}
	return roles
}

// subscription returns the cached record for key, if any.
func (d *directory) subscription(key string) (*SubscriptionRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.subs[key]
	return rec, ok
}

// recordSubscription stores a new active subscription.
func (d *directory) recordSubscription(key string) *SubscriptionRecord {
	rec := &SubscriptionRecord{Key: key, SubscribedAt: time.Now()}
	d.mu.Lock()
	d.subs[key] = rec
	d.mu.Unlock()
	return rec
}

// markDelivered stamps every subscription rooted at componentID.
func (d *directory) markDelivered(componentID string) {
	now := time.Now()
	prefix := componentID + "/"

	d.mu.Lock()
	for key, rec := range d.subs {
		if key == componentID || strings.HasPrefix(key, prefix) {
			rec.LastDelivered = now
		}
	}
	d.mu.Unlock()
}

func (d *directory) size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}
