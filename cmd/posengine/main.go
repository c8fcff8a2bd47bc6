// Program posengine is the engine's main entrypoint: it wires persistence,
// messaging and the contract-rules cache from config, boots the engine
// facade, exposes an HTTP trade-submission endpoint plus Prometheus
// /metrics, and runs the coldpath consumer loop — the same
// load-config/wire/serve/run shape as the teacher's main.go, generalized
// from one broker+trader to the engine's full port set.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chidi150c/posengine/internal/config"
	"github.com/chidi150c/posengine/internal/contractrules"
	"github.com/chidi150c/posengine/internal/domain"
	"github.com/chidi150c/posengine/internal/engine"
	idempg "github.com/chidi150c/posengine/internal/idempotency/postgres"
	"github.com/chidi150c/posengine/internal/logging"
	"github.com/chidi150c/posengine/internal/messaging/kafka"
	"github.com/chidi150c/posengine/internal/persistence/pooled"
	"github.com/chidi150c/posengine/internal/persistence/postgres"
	"github.com/chidi150c/posengine/internal/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Two independently-sized pools back the hotpath and coldpath (spec.md
	// §5 "Connection pools"): a small pool with a short acquisition
	// timeout for the hotpath (reject fast on exhaustion), and a larger
	// pool with a longer timeout for the coldpath (queue on exhaustion).
	hotDB, hotPool, err := openPooledDB(context.Background(), cfg.PostgresDSN, cfg.HotpathPool)
	if err != nil {
		logger.Fatal("hotpath postgres pool", zap.Error(err))
	}
	defer hotPool.Close()

	coldDB, coldPool, err := openPooledDB(context.Background(), cfg.PostgresDSN, cfg.ColdpathPool)
	if err != nil {
		logger.Fatal("coldpath postgres pool", zap.Error(err))
	}
	defer coldPool.Close()

	hotEvents := postgres.NewEventStore(hotDB)
	hotSnaps := postgres.NewSnapshotStore(hotDB)
	upis := postgres.NewUPIStore(hotDB)
	idem := idempg.New(hotDB)
	for _, m := range []interface{ Migrate(context.Context) error }{hotEvents, hotSnaps, upis, idem} {
		if err := m.Migrate(context.Background()); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	coldEvents := postgres.NewEventStore(coldDB)
	coldSnaps := postgres.NewSnapshotStore(coldDB)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	rules := contractrules.NewCachedProvider(redisClient, contractrules.NewStatic(nil), cfg.RedisTTL)

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup)

	eng := engine.New(engine.Deps{
		Validator:         validator.New(cfg.FutureHorizon),
		Idempotency:       idem,
		ContractRules:     rules,
		HotpathEvents:     pooled.NewEventStore(hotEvents, cfg.HotpathPool.AcquireTimeout),
		HotpathSnapshots:  pooled.NewSnapshotStore(hotSnaps, cfg.HotpathPool.AcquireTimeout),
		ColdpathEvents:    pooled.NewEventStore(coldEvents, cfg.ColdpathPool.AcquireTimeout),
		ColdpathSnapshots: pooled.NewSnapshotStore(coldSnaps, cfg.ColdpathPool.AcquireTimeout),
		UPIs:              upis,
		Producer:          producer,
		Consumer:          consumer,
		RetryBaseDelay:    cfg.RetryBaseDelay,
		RetryMaxRetries:   cfg.RetryMaxRetries,
		MaxReplayAttempts: 5,
		Logger:            logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		err := eng.RunColdpathConsumer(ctx, decodeTrade)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("coldpath consumer stopped", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/trades", tradesHandler(eng, logger))
	mux.HandleFunc("/positions/reset-price", resetPriceHandler(eng, logger))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		logger.Info("serving", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
	_ = producer.Close()
}

// openPooledDB opens a pgxpool.Pool sized by pc and wraps it in a *gorm.DB
// via pgx's stdlib adapter, so the hotpath and coldpath can each run
// against a pool tuned for their own latency/exhaustion policy (spec.md
// §5 "Connection pools") while still sharing GORM's query layer.
func openPooledDB(ctx context.Context, dsn string, pc config.PoolConfig) (*gorm.DB, *pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, err
	}
	poolCfg.MaxConns = pc.MaxConns
	poolCfg.MinConns = pc.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, err
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(gormpg.New(gormpg.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return db, pool, nil
}

// tradeRequest is the wire shape accepted on POST /trades.
type tradeRequest struct {
	TradeID        string          `json:"trade_id"`
	PositionKey    string          `json:"position_key"`
	Account        string          `json:"account"`
	Instrument     string          `json:"instrument"`
	Currency       string          `json:"currency"`
	Direction      string          `json:"direction"`
	Type           string          `json:"type"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	EffectiveDate  time.Time       `json:"effective_date"`
	ContractID     string          `json:"contract_id"`
	CorrelationID  string          `json:"correlation_id"`
	CausationID    string          `json:"causation_id"`
	UserID         string          `json:"user_id"`
}

func tradesHandler(eng *engine.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req tradeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed json: "+err.Error(), http.StatusBadRequest)
			return
		}

		trade := domain.Trade{
			TradeID:       req.TradeID,
			PositionKey:   domain.PositionKey(req.PositionKey),
			Account:       req.Account,
			Instrument:    req.Instrument,
			Currency:      req.Currency,
			Direction:     domain.Direction(req.Direction),
			Type:          domain.TradeType(req.Type),
			Quantity:      req.Quantity,
			Price:         req.Price,
			EffectiveDate: req.EffectiveDate,
			ContractID:    req.ContractID,
			CorrelationID: req.CorrelationID,
			CausationID:   req.CausationID,
			UserID:        req.UserID,
		}

		if err := eng.SubmitTrade(r.Context(), trade); err != nil {
			logger.Warn("submit trade rejected", zap.String("trade_id", trade.TradeID), zap.Error(err))
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// resetPriceRequest is the wire shape accepted on POST /positions/reset-price.
type resetPriceRequest struct {
	PositionKey   string          `json:"position_key"`
	Price         decimal.Decimal `json:"price"`
	CorrelationID string          `json:"correlation_id"`
}

func resetPriceHandler(eng *engine.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req resetPriceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed json: "+err.Error(), http.StatusBadRequest)
			return
		}

		key := domain.PositionKey(req.PositionKey)
		if err := eng.ApplyPriceReset(r.Context(), key, req.Price, req.CorrelationID); err != nil {
			logger.Warn("price reset rejected", zap.String("position_key", req.PositionKey), zap.Error(err))
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func decodeTrade(value []byte) (domain.Trade, error) {
	// The hotpath publishes backdated trades as json.Marshal(domain.Trade).
	var trade domain.Trade
	if err := json.Unmarshal(value, &trade); err != nil {
		return domain.Trade{}, err
	}
	return trade, nil
}
