package links

import (
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"github.com/retrylife/remoteplayers/internal/prefs"
)

const (
	// Domain prefixes every node name this application opens.
	Domain = "ca.retrylife.remoteplayers"

	integrationKey = "integrate_waypoints"

	// linkPrefix namespaces per-server keys. Server identifiers are appended
	// verbatim with no escaping: an identifier that violates a backend's key
	// rules fails in that backend, and identifiers are only distinguished by
	// the raw bytes that follow the prefix. integrationKey cannot collide
	// because it does not start with linkPrefix.
	linkPrefix = "dynmap_"
)

// NodeName is the preference node the Store reads and writes, derived from
// the Store's Go type name.
var NodeName = Domain + "." + reflect.TypeOf(Store{}).String()

// Link associates a Minecraft server with the URL of its Dynmap instance.
type Link struct {
	Server string `json:"server" yaml:"server"`
	URL    string `json:"url" yaml:"url"`
}

// Store persists per-server Dynmap links and the waypoint integration flag.
// Backend errors are returned unchanged; nothing is retried or cached.
type Store struct {
	backend prefs.Backend
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for the debug line emitted on each write.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a Store over backend.
func New(backend prefs.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open binds a Store to its node in root.
func Open(root prefs.Root, opts ...Option) *Store {
	s := New(root.Node(NodeName), opts...)
	s.logger.Debug("opened link preferences", "node", NodeName)
	return s
}

func keyForServer(server string) string {
	return linkPrefix + server
}

func encodeFlag(enabled bool) string {
	if enabled {
		return "T"
	}
	return "F"
}

func decodeFlag(v string) bool {
	return v == "T"
}

// SetIntegrationEnabled records whether waypoint integration is active.
func (s *Store) SetIntegrationEnabled(enabled bool) error {
	s.logger.Debug("waypoint integration set", "enabled", enabled)
	return s.backend.SetString(integrationKey, encodeFlag(enabled))
}

// IntegrationEnabled reports the waypoint integration flag. It is false
// unless explicitly enabled.
func (s *Store) IntegrationEnabled() (bool, error) {
	v, ok, err := s.backend.GetString(integrationKey)
	if err != nil || !ok {
		return false, err
	}
	return decodeFlag(v), nil
}

// LinkedServiceURL returns the Dynmap URL linked to server. ok is false when
// no link is configured.
func (s *Store) LinkedServiceURL(server string) (url string, ok bool, err error) {
	return s.backend.GetString(keyForServer(server))
}

// HasLinkedService reports whether server has a Dynmap URL.
func (s *Store) HasLinkedService(server string) (bool, error) {
	_, ok, err := s.LinkedServiceURL(server)
	return ok, err
}

// SetLinkedServiceURL links server to url, replacing any existing link.
func (s *Store) SetLinkedServiceURL(server, url string) error {
	s.logger.Debug("added dynmap to server", "server", server, "url", url)
	return s.backend.SetString(keyForServer(server), url)
}

// UnlinkService removes any link for server. Unlinking a server that has no
// link is not an error.
func (s *Store) UnlinkService(server string) error {
	s.logger.Debug("removed dynmap from server", "server", server)
	return s.backend.Delete(keyForServer(server))
}

// Links returns every stored link ordered by server.
func (s *Store) Links() ([]Link, error) {
	keys, err := s.backend.Keys()
	if err != nil {
		return nil, err
	}
	var result []Link
	for _, k := range keys {
		server, found := strings.CutPrefix(k, linkPrefix)
		if !found {
			continue
		}
		url, ok, err := s.backend.GetString(k)
		if err != nil {
			return nil, err
		}
		if !ok {
			// removed between Keys and GetString
			continue
		}
		result = append(result, Link{Server: server, URL: url})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Server < result[j].Server
	})
	return result, nil
}
