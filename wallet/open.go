package wallet

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitfsorg/libwallet-go/config"
	"github.com/bitfsorg/libwallet-go/errs"
	"github.com/bitfsorg/libwallet-go/network"
	"github.com/bitfsorg/libwallet-go/secret"
)

// Open builds a wallet from cfg: it opens the configured storage and
// logger, and talks to the resolved node through a parameter cache. The
// secret manager must derive keys for the coin type of cfg.Network.
// Closing the wallet closes the storage and log file.
func Open(ctx context.Context, cfg config.Config, mgr secret.Manager, password string, reg prometheus.Registerer) (*Wallet, error) {
	const op = "wallet.Open"
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, errs.E(errs.KindValidation, op, err)
	}
	preset, err := config.Preset(cfg)
	if err != nil {
		return nil, errs.E(errs.KindValidation, op, err)
	}
	rpc, err := config.NodeRPC(cfg)
	if err != nil {
		return nil, errs.E(errs.KindValidation, op, err)
	}

	logger, logCloser, err := config.OpenLogger(cfg)
	if err != nil {
		return nil, errs.E(errs.KindStorage, op, err)
	}
	store, err := config.OpenStorage(ctx, cfg, logger)
	if err != nil {
		logCloser.Close()
		return nil, errs.E(errs.KindStorage, op, err)
	}

	w, err := New(ctx, Options{
		Client:                 network.NewCachedClient(network.NewRPCClient(*rpc), cfg.CacheTTL),
		Secret:                 mgr,
		Store:                  store,
		StoragePassword:        password,
		HRP:                    preset.HRP,
		CoinType:               preset.CoinType,
		Logger:                 logger,
		Registerer:             reg,
		LocalPoW:               cfg.LocalPoW,
		PoWWorkers:             cfg.PoWWorkers,
		PollInterval:           cfg.PollInterval,
		InclusionTimeout:       cfg.InclusionTimeout,
		ConsolidationThreshold: cfg.ConsolidationThreshold,
	})
	if err != nil {
		store.Close()
		logCloser.Close()
		return nil, err
	}
	w.closers = append(w.closers, store, logCloser)
	return w, nil
}
