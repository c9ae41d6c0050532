package bridge

import (
	"encoding/json"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/roomlink/bridge-client/internal/wire"
)

// controlFields maps wire control names onto the semantic field names
// served to callers. Controls outside this table are ignored.
var controlFields = map[string]string{
	"PowerState":       "power",
	"ActiveInput":      "input",
	"Volume":           "volume",
	"MuteState":        "mute",
	"LightLevel":       "light_level",
	"ScenePreset":      "scene",
	"ConnectedSources": "connected_sources",
}

// connectedSourcesControl carries a JSON-encoded payload inside its
// string value and needs defensive parsing.
const connectedSourcesControl = "ConnectedSources"

// stateCache is the TTL-bounded view of remote state. Values are kept
// in a go-cache store with no per-item expiry: staleness never deletes
// a value, it only marks the snapshot as needing a refresh, so callers
// always get the best-effort last-known state. Freshness is judged
// against a single shared timestamp updated by every inbound event.
type stateCache struct {
	store *gocache.Cache
	ttl   time.Duration

	mu         sync.Mutex
	lastUpdate time.Time
}

func newStateCache(ttl time.Duration) *stateCache {
	return &stateCache{
		store: gocache.New(gocache.NoExpiration, 0),
		ttl:   ttl,
	}
}

// ApplyControl folds a single-control delta into the cache. Returns
// false when the control is unmapped or its payload is malformed.
func (c *stateCache) ApplyControl(ctrl wire.ControlInfo) bool {
	field, ok := controlFields[ctrl.ID]
	if !ok {
		return false
	}

	value, ok := decodeControlValue(ctrl)
	if !ok {
		// Malformed payloads are dropped rather than corrupting the
		// cached view.
		return false
	}

	c.store.Set(field, value, gocache.NoExpiration)
	c.touch()
	return true
}

// ApplyComponent folds a full per-component snapshot into the cache.
func (c *stateCache) ApplyComponent(comp wire.Component) int {
	applied := 0
	for _, ctrl := range comp.Controls {
		if c.ApplyControl(ctrl) {
			applied++
		}
	}
	return applied
}

// Snapshot returns a copy of every cached field.
func (c *stateCache) Snapshot() map[string]any {
	items := c.store.Items()
	out := make(map[string]any, len(items))
	for field, item := range items {
		out[field] = item.Object
	}
	return out
}

// Fresh reports whether the cache was updated within the TTL.
func (c *stateCache) Fresh(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.lastUpdate.IsZero() && now.Sub(c.lastUpdate) <= c.ttl
}

// Age returns time since the last inbound update, or a very large
// duration when nothing has ever arrived.
func (c *stateCache) Age(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastUpdate.IsZero() {
		return time.Duration(1<<62 - 1)
	}
	return now.Sub(c.lastUpdate)
}

func (c *stateCache) touch() {
	c.mu.Lock()
	c.lastUpdate = time.Now()
	c.mu.Unlock()
}

// decodeControlValue turns a wire control into a cacheable Go value.
// ConnectedSources embeds a JSON document in its string value; anything
// that fails to parse is rejected.
func decodeControlValue(ctrl wire.ControlInfo) (any, bool) {
	if ctrl.ID == connectedSourcesControl {
		raw := ctrl.String
		if raw == "" && len(ctrl.Value) > 0 {
			// Some bridge firmwares put the encoded document in the
			// value slot instead.
			if err := json.Unmarshal(ctrl.Value, &raw); err != nil {
				return nil, false
			}
		}
		var sources []any
		if err := json.Unmarshal([]byte(raw), &sources); err != nil {
			return nil, false
		}
		return sources, true
	}

	if len(ctrl.Value) > 0 {
		var v any
		if err := json.Unmarshal(ctrl.Value, &v); err != nil {
			return nil, false
		}
		return v, true
	}
	if ctrl.String != "" {
		return ctrl.String, true
	}
	return ctrl.Position, true
}
