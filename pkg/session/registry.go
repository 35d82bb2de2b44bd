// ABOUTME: Registry of known jam servers
// ABOUTME: Get-or-create lookup keyed by host and port
package session

import (
	"net"
	"sort"
	"strconv"
	"sync"
)

// Registry holds every server seen during the process lifetime
type Registry struct {
	mu      sync.Mutex
	servers map[string]*Server
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{servers: make(map[string]*Server)}
}

// Key returns the registry key for an endpoint
func Key(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// GetOrCreate returns the server for host:port, creating it with default
// tempo on first use
func (r *Registry) GetOrCreate(host string, port int) *Server {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key(host, port)
	server, ok := r.servers[key]
	if !ok {
		server = newServer(host, port)
		r.servers[key] = server
	}
	return server
}

// Lookup returns a known server without creating one
func (r *Registry) Lookup(host string, port int) (*Server, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	server, ok := r.servers[Key(host, port)]
	return server, ok
}

// Activate marks host:port as the joined session and every other server as
// remembered
func (r *Registry) Activate(host string, port int) *Server {
	target := r.GetOrCreate(host, port)
	for _, server := range r.Servers() {
		server.SetActive(server == target)
	}
	return target
}

// Servers returns every known server sorted by key
func (r *Registry) Servers() []*Server {
	r.mu.Lock()
	servers := make([]*Server, 0, len(r.servers))
	for _, server := range r.servers {
		servers = append(servers, server)
	}
	r.mu.Unlock()

	sort.Slice(servers, func(i, j int) bool {
		return servers[i].Key() < servers[j].Key()
	})
	return servers
}
