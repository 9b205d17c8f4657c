package main

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/fairjack/cmd/fairjack/shared"
	"github.com/lox/fairjack/internal/game"
	"github.com/lox/fairjack/internal/server"
)

// ServeCmd runs the dealer server
type ServeCmd struct {
	Config string `kong:"default='dealer.hcl',help='Path to the HCL configuration file'"`
	Addr   string `kong:"help='Listen address, overrides the config file'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func (c *ServeCmd) Run() error {
	logger := shared.SetupLogger(c.Debug)

	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	addr := cfg.ListenAddress()
	if c.Addr != "" {
		addr = c.Addr
	}

	dealer := server.NewDealerService(logger,
		server.WithRules(game.Rules{
			MaxHands:         cfg.Table.MaxHands,
			NoResplit:        cfg.Table.NoResplit,
			DealerHitsSoft17: cfg.Table.DealerHitsSoft17,
		}),
		server.WithLimits(cfg.Table),
		server.WithActionTimeout(cfg.ActionTimeout()),
	)
	srv := server.NewServer(addr, dealer, logger)

	logger.Info("starting dealer server",
		"addr", addr,
		"table", cfg.Table.Name,
		"minBet", cfg.Table.MinBet,
		"maxBet", cfg.Table.MaxBet,
		"maxHands", cfg.Table.MaxHands,
		"actionTimeout", cfg.ActionTimeout(),
	)

	ctx := shared.SetupSignalHandler(logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logger.Debug("open rounds", "count", dealer.RoundCount())
			case <-ctx.Done():
				return nil
			}
		}
	})
	return g.Wait()
}
