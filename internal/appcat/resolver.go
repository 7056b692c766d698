package appcat

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const resolveCacheSize = 512

// Resolver maps raw OS process names and notification app identifiers to
// stable logical app ids. Resolution is deterministic: the same raw input
// always yields the same id for the lifetime of the resolver.
type Resolver struct {
	selfProcess string // tracker's own process name, lowercased
	selfMark    string // product name; window titles containing it are excluded

	mu      sync.Mutex
	dynamic map[string]LogicalApp // key: lowercased raw process name
	titler  cases.Caser

	// cache memoizes rule evaluation for the 1s sampling hot path. Entries
	// are recomputable, so LRU eviction cannot change an answer.
	cache *lru.Cache[string, string]
}

// NewResolver creates a resolver that excludes the tracker's own process and
// windows whose title contains selfMark.
func NewResolver(selfProcess, selfMark string) *Resolver {
	cache, _ := lru.New[string, string](resolveCacheSize)
	return &Resolver{
		selfProcess: strings.ToLower(selfProcess),
		selfMark:    strings.ToLower(selfMark),
		dynamic:     make(map[string]LogicalApp),
		titler:      cases.Title(language.English),
		cache:       cache,
	}
}

// Resolve maps a foreground observation to a logical app id. ok is false when
// no time should be attributed: empty input, or the tracker observing itself.
func (r *Resolver) Resolve(process, windowTitle string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(process))
	if name == "" {
		return "", false
	}
	if name == r.selfProcess {
		return "", false
	}
	if r.selfMark != "" && strings.Contains(strings.ToLower(windowTitle), r.selfMark) {
		return "", false
	}

	if id, ok := r.cache.Get(name); ok {
		return id, true
	}

	for _, rule := range processRules {
		if rule.pattern.MatchString(name) {
			r.cache.Add(name, rule.appID)
			return rule.appID, true
		}
	}

	app := r.getOrCreate(name)
	r.cache.Add(name, app.ID)
	return app.ID, true
}

// ResolveNotification maps a raw notification app identifier to a logical app
// id, falling back to OtherAppID. It never fails.
func (r *Resolver) ResolveNotification(rawAppID string) string {
	raw := strings.ToLower(strings.TrimSpace(rawAppID))
	if raw == "" {
		return OtherAppID
	}
	for _, rule := range notificationRules {
		if rule.pattern.MatchString(raw) {
			return rule.appID
		}
	}
	return OtherAppID
}

// App returns the logical app for an id, checking the static catalog first
// and then the dynamic registry.
func (r *Resolver) App(id string) (LogicalApp, bool) {
	for _, app := range catalog {
		if app.ID == id {
			return app, true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, app := range r.dynamic {
		if app.ID == id {
			return app, true
		}
	}
	return LogicalApp{}, false
}

// Apps returns every known logical app whose id passes the filter.
func (r *Resolver) Apps(keep func(id string) bool) []LogicalApp {
	apps := make([]LogicalApp, 0)
	for _, app := range catalog {
		if keep(app.ID) {
			apps = append(apps, app)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, app := range r.dynamic {
		if keep(app.ID) {
			apps = append(apps, app)
		}
	}
	return apps
}

// getOrCreate is the single accessor through which dynamic identities come
// into existence. Repeated calls for the same name return the same entry.
func (r *Resolver) getOrCreate(name string) LogicalApp {
	r.mu.Lock()
	defer r.mu.Unlock()

	if app, ok := r.dynamic[name]; ok {
		return app
	}

	app := LogicalApp{
		ID:          "proc:" + name,
		DisplayName: r.displayName(name),
		Category:    CategoryOther,
		Color:       defaultColor,
	}
	r.dynamic[name] = app
	return app
}

// displayName derives a human-readable name from a raw process name:
// "my_custom-tool.exe" becomes "My Custom Tool".
func (r *Resolver) displayName(name string) string {
	base := strings.TrimSuffix(name, ".exe")
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return "Unknown"
	}
	return r.titler.String(base)
}
