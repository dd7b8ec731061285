package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/dyluth/discgraph/internal/config"
	"github.com/dyluth/discgraph/internal/decoder"
	"github.com/dyluth/discgraph/internal/ingest"
	"github.com/dyluth/discgraph/internal/ledger"
	"github.com/dyluth/discgraph/internal/logging"
	"github.com/dyluth/discgraph/internal/metrics"
	"github.com/dyluth/discgraph/internal/printer"
	"github.com/dyluth/discgraph/internal/query"
	"github.com/dyluth/discgraph/pkg/graph"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// runtime holds the components a command needs, built from the loaded config.
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   graph.Store
	decoder *decoder.Decoder
	engine  *ingest.Engine

	// source is nil unless the command asked for the ledger.
	source *ledger.SolanaSource

	closers []func() error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if config.IsConfigError(err) {
			return nil, printer.Error(
				"invalid configuration",
				err.Error(),
				[]string{"Fix the value in discgraph.yml or the DISCGRAPH_* environment"},
			)
		}
		return nil, printer.Error(
			"failed to load configuration",
			err.Error(),
			[]string{fmt.Sprintf("Check the file exists and is valid YAML:\n  %s", configPath)},
		)
	}
	return cfg, nil
}

// newRuntime loads the config and connects to the store, and to the ledger
// when withLedger is set.
func newRuntime(ctx context.Context, withLedger bool) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	dec, err := decoder.New(cfg.DecoderLayout())
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, decoder: dec}
	rt.closers = append(rt.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	if err := rt.openStore(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	rt.engine = ingest.NewEngine(rt.store, logger)

	if withLedger {
		src, err := ledger.NewSolanaSource(ledger.SolanaOptions{
			Endpoint:           cfg.Ledger.Endpoint,
			Commitment:         cfg.Ledger.Commitment,
			Timeout:            cfg.Ledger.Timeout,
			ValidateProgramIDs: cfg.Ledger.ValidateProgramIDs,
		}, logger)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to create ledger client: %w", err)
		}
		rt.source = src
		rt.closers = append(rt.closers, src.Close)
	}

	return rt, nil
}

func (rt *runtime) openStore(ctx context.Context) error {
	switch rt.cfg.Store.Backend {
	case config.BackendPebble:
		store, err := graph.OpenPebbleStore(rt.cfg.Store.Path, &pebble.Options{})
		if err != nil {
			return printer.ErrorWithContext(
				"failed to open graph store",
				err.Error(),
				map[string]string{"Path": rt.cfg.Store.Path},
				[]string{"Check the directory is writable and not in use by another process"},
			)
		}

		// Collection fails harmlessly when a previous store in this process registered it.
		if err := prometheus.Register(metrics.NewPebbleCollector(store.DB())); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				rt.logger.Warn("pebble metrics not registered", zap.Error(err))
			}
		}

		rt.store = store
		rt.closers = append(rt.closers, store.Close)
		return nil

	default:
		redisOpts, err := redis.ParseURL(rt.cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}

		store, err := graph.NewRedisStore(redisOpts, rt.cfg.Namespace)
		if err != nil {
			return fmt.Errorf("failed to create graph store: %w", err)
		}
		rt.closers = append(rt.closers, store.Close)

		if err := store.Ping(ctx); err != nil {
			return printer.ErrorWithContext(
				"Redis connection failed",
				fmt.Sprintf("Could not connect to Redis at %s", rt.cfg.Redis.URL),
				map[string]string{"Namespace": rt.cfg.Namespace},
				[]string{
					"Start Redis locally:\n  docker run -p 6379:6379 redis:7-alpine",
					fmt.Sprintf("Point at another server:\n  export %s=redis://host:6379/0", config.EnvRedisURL),
				},
			)
		}

		rt.store = store
		return nil
	}
}

func (rt *runtime) queryService() *query.Service {
	var src ledger.Source
	if rt.source != nil {
		src = rt.source
	}
	return query.NewService(rt.store, src, rt.engine, query.Options{
		Decoder: rt.decoder,
		Policy:  rt.cfg.BatchPolicy(),
		Logger:  rt.logger,
	})
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i]()
	}
}

// queryFailure renders a query.Error for the terminal.
func queryFailure(err error, subject string) error {
	switch query.KindOf(err) {
	case query.KindInvalidInput:
		return printer.Error("invalid input", err.Error(), nil)
	case query.KindNotFound:
		return printer.Error(
			fmt.Sprintf("nothing found for '%s'", subject),
			"Neither the graph nor the ledger holds decodable records for it.",
			[]string{"Check the id is correct and the ledger endpoint is on the right cluster"},
		)
	case query.KindSourceUnavailable:
		return printer.Error(
			"ledger unavailable",
			err.Error(),
			[]string{fmt.Sprintf("Check the RPC endpoint, or override it:\n  export %s=<url>", config.EnvLedgerEndpoint)},
		)
	case query.KindStoreRead, query.KindStoreWrite:
		return printer.Error("graph store error", err.Error(), nil)
	}
	return err
}
