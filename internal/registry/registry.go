// Package registry resolves business domain names to schemas and connections.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
)

// Registry is the immutable domain mapping shared by all requests.
type Registry struct {
	domains       map[string]domain.DomainDescriptor // keyed by lower-cased name
	defaultConn   string
	defaultSchema string
}

// New validates the configured domains and builds the registry.
// Validation failures surface at startup with ErrInvalidConfiguration:
// duplicate names (case-insensitive), missing schemas, and domains without
// a connection when no global default exists.
func New(gw domain.GatewayConfig, domains []domain.DomainDescriptor) (*Registry, error) {
	byName := make(map[string]domain.DomainDescriptor, len(domains))
	for _, d := range domains {
		if d.Name == "" {
			return nil, fmt.Errorf("%w: domain entry is missing a name", domain.ErrInvalidConfiguration)
		}
		if d.Schema == "" {
			return nil, fmt.Errorf("%w: domain %q is missing a schema", domain.ErrInvalidConfiguration, d.Name)
		}
		if d.ConnectionURI == "" && gw.DefaultConnectionURI == "" {
			return nil, fmt.Errorf("%w: domain %q has no connection_uri and no global default is set",
				domain.ErrInvalidConfiguration, d.Name)
		}
		key := strings.ToLower(d.Name)
		if _, exists := byName[key]; exists {
			return nil, fmt.Errorf("%w: duplicate domain %q", domain.ErrInvalidConfiguration, d.Name)
		}
		byName[key] = d
	}

	return &Registry{
		domains:       byName,
		defaultConn:   gw.DefaultConnectionURI,
		defaultSchema: gw.DefaultSchema,
	}, nil
}

// Resolve returns the descriptor for a domain name. The returned descriptor
// always carries a non-empty connection string.
//
// An empty name resolves to the synthetic "default" descriptor when a global
// default connection is configured, otherwise to the lexicographically first
// configured domain. With neither, resolution fails with ErrNoDefaultDomain.
func (r *Registry) Resolve(name string) (domain.DomainDescriptor, error) {
	if name != "" {
		d, ok := r.domains[strings.ToLower(name)]
		if !ok {
			return domain.DomainDescriptor{}, fmt.Errorf("%w: %s", domain.ErrUnknownDomain, name)
		}
		if d.ConnectionURI == "" {
			d.ConnectionURI = r.defaultConn
		}
		return d, nil
	}

	if r.defaultConn != "" {
		return domain.DomainDescriptor{
			Name:          "default",
			Schema:        r.defaultSchema,
			ConnectionURI: r.defaultConn,
			Description:   "default connection",
		}, nil
	}

	if len(r.domains) > 0 {
		keys := r.sortedKeys()
		d := r.domains[keys[0]]
		return d, nil
	}

	return domain.DomainDescriptor{}, fmt.Errorf(
		"%w: no domain given and none configured", domain.ErrNoDefaultDomain)
}

// Describe renders a multi-line summary of the configured domains for
// prompt conditioning, sorted by name. It returns "" when there is nothing
// to describe.
func (r *Registry) Describe() string {
	var lines []string
	for _, key := range r.sortedKeys() {
		d := r.domains[key]
		line := fmt.Sprintf("- %s: schema `%s`", d.Name, d.Schema)
		if d.Description != "" {
			line += " — " + d.Description
		}
		lines = append(lines, line)
	}

	if len(lines) == 0 && r.defaultConn != "" {
		lines = append(lines, fmt.Sprintf("- default: schema `%s` (default connection)", r.defaultSchema))
	}

	if len(lines) == 0 {
		return ""
	}

	return "Available query domains\n" + strings.Join(lines, "\n")
}

// Len returns the number of configured named domains.
func (r *Registry) Len() int {
	return len(r.domains)
}

// Names returns the configured domain names sorted alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.domains))
	for _, key := range r.sortedKeys() {
		names = append(names, r.domains[key].Name)
	}
	return names
}

func (r *Registry) sortedKeys() []string {
	keys := make([]string, 0, len(r.domains))
	for k := range r.domains {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
