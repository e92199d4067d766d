// Package config holds the flag/env configuration surface of cmd/trace2ed,
// grouped the way gazette's mbp.AddressConfig/LogConfig split a process's
// flags into named, env-namespaced groups (go-flags `group`/`namespace`/
// `env-namespace` tags) — reimplemented here rather than imported, since
// go.gazette.dev/core's mainboilerplate package is not a dependency of this
// module.
package config

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mablr/trace2e/api"
	"github.com/mablr/trace2e/internal/peerdial"
)

// Config is the root flags object parsed by cmd/trace2ed via
// github.com/jessevdk/go-flags.
type Config struct {
	Node    NodeConfig    `group:"Node" namespace:"node" env-namespace:"NODE"`
	Peers   PeersConfig   `group:"Peers" namespace:"peers" env-namespace:"PEERS"`
	Metrics MetricsConfig `group:"Metrics" namespace:"metrics" env-namespace:"METRICS"`
	Log     LogConfig     `group:"Logging" namespace:"log" env-namespace:"LOG"`
}

// NodeConfig identifies this node and its P2M/M2M/O2M listen endpoint.
// spec.md §6: "Middleware listens on '[::]:8080' unless configured ...
// Implementers must make this configurable."
type NodeConfig struct {
	ID      string `long:"id" required:"true" description:"This node's identifier, as it appears in Ids exchanged with peers."`
	Address string `long:"address" default:"[::]:8080" description:"gRPC listen address for the P2M/M2M/O2M services."`
}

// PeersConfig lists the statically-known peer nodes this node may dial for
// M2M calls (spec.md §4.9: peer set is small and flag/config-provided, not
// distributed membership).
type PeersConfig struct {
	Peers []string `long:"peer" description:"Peer as id=host:port. Repeatable."`
}

// MetricsConfig controls the optional Prometheus scrape endpoint.
type MetricsConfig struct {
	Address string `long:"address" default:"[::]:9090" description:"HTTP listen address serving /metrics. Empty disables it."`
}

// LogConfig mirrors the shape (if not the full feature set) of gazette's
// mbp.LogConfig: a level and a format, applied once at process start.
type LogConfig struct {
	Level  string `long:"level" default:"info" description:"Logging level: debug, info, warn, error."`
	Format string `long:"format" default:"text" choice:"text" choice:"json" description:"Logging output format."`
}

// BuildLogger constructs the *log.Entry handed to every owned component,
// per cfg.
func BuildLogger(cfg LogConfig) (*log.Entry, error) {
	logger := log.New()

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing log level %q", cfg.Level)
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	return log.NewEntry(logger), nil
}

// BuildResolver parses cfg's "id=host:port" peer entries into a
// peerdial.Resolver closed over a fixed map, per spec.md §4.9's "small and
// flag/config-provided" peer set.
func BuildResolver(cfg PeersConfig) (peerdial.Resolver, error) {
	addrs := make(map[api.NodeID]string, len(cfg.Peers))
	for _, entry := range cfg.Peers {
		id, addr, ok := strings.Cut(entry, "=")
		if !ok || id == "" || addr == "" {
			return nil, errors.Errorf("config: malformed --peers.peer entry %q, want id=host:port", entry)
		}
		addrs[api.NodeID(id)] = addr
	}
	return func(id api.NodeID) (string, bool) {
		addr, ok := addrs[id]
		return addr, ok
	}, nil
}
