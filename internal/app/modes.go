package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oxgamehq/oxgame-backend/internal/game"
	"github.com/oxgamehq/oxgame-backend/internal/ledger"
	"github.com/oxgamehq/oxgame-backend/internal/pricefeed"
	"github.com/oxgamehq/oxgame-backend/internal/server"
	"github.com/oxgamehq/oxgame-backend/internal/server/handler"
	"github.com/oxgamehq/oxgame-backend/internal/server/ws"
)

// OracleMode runs the full game loop: the price stream, the settlement
// scheduler, the contract event poller, and the HTTP/WebSocket server.
func (a *App) OracleMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting oracle mode")

	g, ctx := errgroup.WithContext(ctx)

	broadcaster := game.NewBusBroadcaster(deps.SignalBus, a.logger)

	// Price path: stream -> ingester -> source.
	source := pricefeed.NewSource(a.cfg.Game.Freshness.Duration, deps.PriceCache, a.logger)

	feeds := make(map[string]string, len(a.cfg.Game.Channels))
	for _, ch := range a.cfg.Game.Channels {
		feeds[ch] = a.cfg.Datastreams.Feeds[ch]
	}
	stream := pricefeed.NewStream(pricefeed.StreamConfig{
		WSURL:     a.cfg.Datastreams.WsURL,
		APIKey:    a.cfg.Datastreams.ApiKey,
		APISecret: a.cfg.Datastreams.ApiSecret,
		Feeds:     feeds,
	}, a.logger)
	g.Go(func() error {
		return stream.Run(ctx)
	})

	ingester := pricefeed.NewIngester(source, broadcaster, a.logger)
	g.Go(func() error {
		return ingester.Run(ctx, stream.Observations())
	})

	// Settlement core.
	settler := game.NewSettler(
		game.SettlerConfig{
			Channels:      a.cfg.Game.Channels,
			RoundInterval: a.cfg.Game.RoundInterval.Duration,
			AllowStale:    a.cfg.Game.AllowStale,
		},
		source, deps.Ledger, deps.Journal, broadcaster, deps.Notifier, a.logger,
	)

	scheduler, err := game.NewScheduler(a.cfg.Game.CronSpec, settler, a.logger)
	if err != nil {
		return fmt.Errorf("oracle mode: scheduler: %w", err)
	}
	g.Go(func() error {
		return scheduler.Run(ctx)
	})

	// Roster changes arrive as contract events.
	poller := ledger.NewPoller(deps.Ledger, settler, a.cfg.Ledger.PollInterval.Duration, a.logger)
	g.Go(func() error {
		return poller.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, settler)
	}

	return g.Wait()
}

// MonitorMode serves the read-only API and WebSocket mirror without settling
// rounds. Useful as a fan-out tier next to a single oracle instance.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, nil)
	return g.Wait()
}

// startHTTPServer wires the handlers available for the current dependency set
// and runs the server until ctx is cancelled. gameState is nil in modes that
// do not settle rounds.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, gameState handler.GameState) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.cfg.Game.Channels),
		Status: handler.NewStatusHandler(a.cfg.Mode, a.cfg.Game.Channels, time.Now().UTC()),
		Prices: handler.NewPriceHandler(deps.PriceCache, a.cfg.Game.Channels, a.logger),
	}
	if deps.Ledger != nil {
		handlers.Pools = handler.NewPoolHandler(deps.Ledger, gameState, a.cfg.Game.Channels, a.logger)
	}
	if deps.Journal != nil {
		handlers.Rounds = handler.NewRoundHandler(deps.Journal, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
