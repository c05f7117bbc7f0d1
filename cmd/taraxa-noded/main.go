// Command taraxa-noded wires a single Taraxa consensus node: storage,
// a dummy DPOS/mempool collaborator pair (real staking/mempool
// integration lives outside this module), and the proposer/DAG/PBFT
// pipeline, then runs until interrupted.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/config"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/crypto"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/executor"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/metrics"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/node"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/storage"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
)

func main() {
	dataDir := flag.String("datadir", "./taraxa-data", "directory for the node's pebble database")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on")
	flag.Parse()

	logger := log.NewLogger("taraxa-noded")

	db, err := storage.Open(*dataDir)
	if err != nil {
		logger.Error("failed to open storage", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	sk, err := crypto.GeneratePrivateKey()
	if err != nil {
		logger.Error("failed to generate node identity", "err", err)
		os.Exit(1)
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	met, err := metrics.New(reg)
	if err != nil {
		logger.Error("failed to register metrics", "err", err)
		os.Exit(1)
	}

	caps := node.Capabilities{
		Storage:  db,
		Executor: executor.NewFake(),
		Clock:    node.SystemClock,
		Metrics:  met,
	}

	genesis := types.Sha3([]byte("taraxa-genesis"))
	dpos := staticDpos{weightPerAddress: 1}
	mp := emptyMempool{}

	sup := node.New(cfg, caps, sk, genesis, dpos, mp, alwaysSynced{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{
		Addr:         *metricsAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "err", err)
		}
	}()

	logger.Info("starting taraxa-noded", "address", crypto.Address(sk.PublicKey()), "metrics", *metricsAddr)
	sup.Start(ctx)
	<-ctx.Done()
	sup.Stop()
	_ = metricsSrv.Close()
	logger.Info("taraxa-noded stopped")
}

// staticDpos is a placeholder DposReader until a real staking ledger
// is wired in: every address is eligible with a flat weight.
type staticDpos struct {
	weightPerAddress types.Weight
}

func (d staticDpos) TotalEligibleVotes() types.Weight             { return d.weightPerAddress }
func (d staticDpos) EligibleVotesForAddress(types.Address) types.Weight { return d.weightPerAddress }
func (d staticDpos) IsEligible(types.Address) bool                { return true }

// emptyMempool is a placeholder until a real mempool is wired in.
type emptyMempool struct{}

func (emptyMempool) PackTransactions(int) []types.Hash { return nil }
func (emptyMempool) Has(types.Hash) bool               { return true }

// alwaysSynced is a placeholder SyncChecker until real p2p sync status
// is wired in.
type alwaysSynced struct{}

func (alwaysSynced) IsSynced() bool { return true }
