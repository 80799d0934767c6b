package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"aave-hf-watcher/internal/alerting"
	"aave-hf-watcher/internal/chain"
	"aave-hf-watcher/internal/config"
	"aave-hf-watcher/internal/fetcher"
	"aave-hf-watcher/internal/format"
	"aave-hf-watcher/internal/logging"
	"aave-hf-watcher/internal/metrics"
	"aave-hf-watcher/internal/monitor"
	"aave-hf-watcher/internal/scheduler"
	"aave-hf-watcher/internal/service"
	"aave-hf-watcher/internal/storage"
	"aave-hf-watcher/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app")}
}

// readers bundles the chain-backed sources sharing one RPC connection.
type readers struct {
	network   chain.Network
	client    *chain.Client
	positions *fetcher.Pool
	prices    *fetcher.Chainlink
}

func (a *App) newReaders() (*readers, error) {
	network, err := a.Config.Network()
	if err != nil {
		return nil, err
	}

	client := chain.NewClient(network.RPCURL, a.Logger)
	timeout := a.Config.Ethereum.RequestTimeout
	return &readers{
		network: network,
		client:  client,
		positions: fetcher.NewPool(fetcher.PoolOptions{
			PoolAddress: network.PoolAddress,
			Timeout:     timeout,
		}, client, a.Logger),
		prices: fetcher.NewChainlink(client, timeout, a.Logger),
	}, nil
}

func (a *App) feeds(network chain.Network) fetcher.FeedPair {
	return fetcher.FeedPair{
		Primary: fetcher.Feed{
			Symbol:  a.Config.Prices.PrimarySymbol,
			Address: network.PrimaryFeed,
		},
		Secondary: fetcher.Feed{
			Symbol:  a.Config.Prices.SecondarySymbol,
			Address: network.SecondaryFeed,
		},
	}
}

func (a *App) wallet() common.Address {
	return common.HexToAddress(a.Config.Position.Wallet)
}

func (a *App) threshold() decimal.Decimal {
	return decimal.NewFromFloat(a.Config.Monitor.HFThreshold)
}

func (a *App) composer() alerting.Composer {
	return alerting.Composer{
		Retry:       a.Config.Alerting.Pushover.Retry,
		Expire:      a.Config.Alerting.Pushover.Expire,
		ActionURL:   a.Config.Alerting.ActionURL,
		ActionLabel: a.Config.Alerting.ActionLabel,
	}
}

func (a *App) newNotifier() (alerting.Notifier, error) {
	cfg := a.Config.Alerting
	targets := make([]alerting.Named, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		switch ch {
		case config.ChannelPushover:
			targets = append(targets, alerting.Named{
				Channel: ch,
				Notifier: alerting.NewPushoverNotifier(alerting.PushoverOptions{
					AppToken: cfg.Pushover.AppToken,
					UserKey:  cfg.Pushover.UserKey,
					Sound:    cfg.Pushover.Sound,
					APIURL:   cfg.Pushover.APIURL,
					Timeout:  cfg.Timeout,
				}, a.Logger),
			})
		case config.ChannelTelegram:
			targets = append(targets, alerting.Named{
				Channel:  ch,
				Notifier: alerting.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, cfg.Timeout, a.Logger),
			})
		default:
			return nil, fmt.Errorf("unknown alerting channel %q", ch)
		}
	}
	if len(targets) == 0 {
		return nil, errors.New("no alerting channels configured")
	}
	return alerting.NewFanout(a.Logger, targets...), nil
}

func (a *App) openStore(ctx context.Context, chainName string) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool, chainName)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r, err := a.newReaders()
	if err != nil {
		return err
	}
	defer r.client.Close()

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx, r.network.Name)
	if err != nil {
		return err
	}
	var hooks monitor.Hooks
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	} else {
		defer closeStore()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		unlock, proceed, err := a.acquireLock(ctx, store)
		if err != nil {
			return err
		}
		if !proceed {
			return fmt.Errorf("another instance holds advisory lock %d", a.Config.Scheduler.AdvisoryLockKey)
		}
		if unlock != nil {
			defer unlock()
		}
		hooks.Samples = store
		hooks.Notifications = store
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hooks.Metrics = metrics.New(reg)

	loc, err := a.Config.Location()
	if err != nil {
		return err
	}

	composer := a.composer()
	alerts := monitor.NewAlertEngine(monitor.AlertOptions{
		Wallet:    a.wallet(),
		Chain:     r.network.Name,
		Threshold: a.threshold(),
		Expire:    a.Config.Alerting.Pushover.Expire,
	}, r.positions, composer, notifier, &monitor.CooldownState{}, hooks, a.Logger)
	reports := monitor.NewReportEngine(monitor.ReportOptions{
		Wallet:      a.wallet(),
		Chain:       r.network.Name,
		Feeds:       a.feeds(r.network),
		MorningHour: a.Config.Schedule.MorningHour,
		EveningHour: a.Config.Schedule.EveningHour,
		Location:    loc,
	}, r.positions, r.prices, composer, notifier, &monitor.ScheduleState{}, hooks, a.Logger)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Monitor.PollInterval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)
	svc := service.New(sched, alerts, reports, hooks.Metrics, a.Logger)

	a.Logger.Info().
		Str("version", version.String()).
		Str("wallet", a.wallet().Hex()).
		Str("chain", r.network.Name).
		Str("pool", r.network.PoolAddress.Hex()).
		Str("threshold", format.FormatHealthFactor(a.threshold())).
		Dur("poll_interval", a.Config.Monitor.PollInterval).
		Str("timezone", loc.String()).
		Int("morning_hour", a.Config.Schedule.MorningHour).
		Int("evening_hour", a.Config.Schedule.EveningHour).
		Strs("channels", a.Config.Alerting.Channels).
		Msg("starting health factor monitor")

	g, gctx := errgroup.WithContext(ctx)
	if listen := a.Config.Metrics.Listen; listen != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, listen, reg, a.Logger)
		})
	}
	g.Go(func() error {
		err := svc.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("health factor monitor stopped")
	return nil
}

func (a *App) acquireLock(ctx context.Context, locker storage.AdvisoryLocker) (func(), bool, error) {
	key := a.Config.Scheduler.AdvisoryLockKey
	if key == 0 || locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := locker.TryAdvisoryLock(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit         int
	Notifications bool
}
