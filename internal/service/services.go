package service

import (
	"github.com/itsDrac/e-auc-bidding/internal/repository"
	"github.com/itsDrac/e-auc-bidding/pkg/config"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
)

type Services struct {
	Arbitrator *Arbitrator
	Resolver   *ProxyResolver
	Bidding    *BiddingService
	SelfTest   *SelfTest
	Lifecycle  *Lifecycle
}

func NewServices(cfg config.Config, store repository.Store, events EventEmitter, cache LotCache, archiver LedgerArchiver, log *logger.Logger) *Services {
	softClose := NewSoftCloseController(cfg.SoftClose)
	arbitrator := NewArbitrator(store, softClose, events, log).WithCache(cache)
	resolver := NewProxyResolver(store, arbitrator, RetryPolicy{
		MaxAttempts: cfg.Proxy.MaxAttempts,
		Backoff:     cfg.Proxy.RetryBackoff,
	}, cfg.Proxy.MaxRounds, cfg.Proxy.ResolveTimeout, log)

	return &Services{
		Arbitrator: arbitrator,
		Resolver:   resolver,
		Bidding:    NewBiddingService(store, arbitrator, resolver, cache, log),
		SelfTest:   NewSelfTest(store, arbitrator, log),
		Lifecycle:  NewLifecycle(store, events, archiver, cache, log),
	}
}
