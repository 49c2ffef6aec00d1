package platform

import (
	"net"

	"github.com/txn2/gamedna/pkg/configstore"
	"github.com/txn2/gamedna/pkg/health"
)

// Options configures the platform.
type Options struct {
	// Config is the service configuration.
	Config *Config

	// Store (optional, opened from Config.Database if not provided). The
	// platform takes ownership and closes it on Stop.
	Store configstore.Store

	// Probe reports reachability of Store for readiness (optional).
	Probe health.Probe

	// Listener (optional, created from Config.Server.Address if not provided).
	Listener net.Listener
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithStore sets the config store and its readiness probe.
func WithStore(store configstore.Store, probe health.Probe) Option {
	return func(o *Options) {
		o.Store = store
		o.Probe = probe
	}
}

// WithListener sets the listener the HTTP server accepts on.
func WithListener(ln net.Listener) Option {
	return func(o *Options) {
		o.Listener = ln
	}
}
