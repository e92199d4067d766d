package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/mablr/trace2e/api"
	"github.com/mablr/trace2e/internal/config"
	"github.com/mablr/trace2e/internal/consent"
	"github.com/mablr/trace2e/internal/kernel"
	"github.com/mablr/trace2e/internal/peerdial"
	"github.com/mablr/trace2e/internal/policy"
	"github.com/mablr/trace2e/internal/provenance"
	"github.com/mablr/trace2e/internal/registry"
	"github.com/mablr/trace2e/internal/sequencer"
	"github.com/mablr/trace2e/internal/server"
)

var Config = new(config.Config)

func main() {
	var parser = flags.NewParser(Config, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.WithError(err).Fatal("trace2ed: failed to parse arguments")
	}

	entry, err := config.BuildLogger(Config.Log)
	if err != nil {
		log.WithError(err).Fatal("trace2ed: invalid logging configuration")
	}

	resolve, err := config.BuildResolver(Config.Peers)
	if err != nil {
		entry.WithError(err).Fatal("trace2ed: invalid peer configuration")
	}

	self := api.NodeID(Config.Node.ID)
	reg := registry.New(self, entry)
	seq := sequencer.New(entry)
	prov := provenance.New(self, entry)
	pol := policy.New(entry)
	cons := consent.New(nil, entry)
	peers := peerdial.New(resolve, entry)

	node := kernel.New(self, reg, seq, prov, pol, cons, peers, entry)
	svc := server.NewService(node, Config.Node.Address, Config.Metrics.Address, entry)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entry.WithFields(log.Fields{
		"node_id": Config.Node.ID,
		"address": Config.Node.Address,
	}).Info("trace2ed: serving")

	if err := svc.Serve(ctx); err != nil {
		entry.WithError(err).Fatal("trace2ed: serve failed")
	}
}
