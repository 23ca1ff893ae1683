// order-consumer tails the order events topic and records each event once,
// deduplicating redeliveries by event_id the way downstream consumers are
// expected to.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"

	"github.com/LewiysArito/simple-ddd-order-flow/pkg/contracts"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/kafka"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/logging"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/metrics"
)

type config struct {
	Port         string `envconfig:"PORT" default:"8081"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	KafkaBrokers string `envconfig:"KAFKA_BROKERS" required:"true"`
	KafkaTopic   string `envconfig:"KAFKA_TOPIC" default:"orders.events"`
	GroupID      string `envconfig:"KAFKA_GROUP_ID" default:"order-consumer"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
}

// inbox remembers processed event ids; the pg variant survives restarts.
type inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

type pgInbox struct {
	pool *pgxpool.Pool
}

func (i *pgInbox) Seen(ctx context.Context, eventID string) (bool, error) {
	tag, err := i.pool.Exec(ctx,
		`INSERT INTO inbox(event_id, received_at) VALUES ($1, now()) ON CONFLICT (event_id) DO NOTHING`,
		eventID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 0, nil
}

type memInbox struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (i *memInbox) Seen(ctx context.Context, eventID string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.seen[eventID] {
		return true, nil
	}
	i.seen[eventID] = true
	return false, nil
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New("order-consumer")
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dedup inbox = &memInbox{seen: make(map[string]bool)}
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect error: %v", err)
		}
		defer pool.Close()
		dedup = &pgInbox{pool: pool}
	}

	srvMetrics := metrics.NewServerMetrics("order_consumer")

	client := kafka.NewClient(cfg.KafkaBrokers)
	go consume(ctx, client, cfg, dedup, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := http.StatusOK
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		} else {
			_, _ = w.Write([]byte(`{"status":"db_error"}`))
		}
		srvMetrics.Requests.WithLabelValues("health", strconv.Itoa(status)).Inc()
		srvMetrics.LatencyMS.WithLabelValues("health").Observe(float64(time.Since(start).Milliseconds()))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("order-consumer listening on :%s (topic=%s group=%s)", cfg.Port, cfg.KafkaTopic, cfg.GroupID)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}

func consume(ctx context.Context, client *kafka.Client, cfg config, dedup inbox, logger *logging.Logger) {
	reader := client.NewReader(cfg.KafkaTopic, cfg.GroupID)
	defer reader.Close()
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("kafka read failed", err, logging.Fields{Topic: cfg.KafkaTopic, Step: "consume"})
			time.Sleep(2 * time.Second)
			continue
		}
		event, err := contracts.DecodeEvent(msg.Value)
		if err != nil {
			logger.Error("event decode failed", err, logging.Fields{Topic: cfg.KafkaTopic, Step: "consume"})
			continue
		}
		seen, err := dedup.Seen(ctx, event.EventID)
		if err != nil {
			logger.Error("inbox check failed", err, logging.Fields{EventID: event.EventID, Step: "consume"})
			continue
		}
		if seen {
			logger.Info("duplicate event skipped", logging.Fields{
				OrderID: event.OrderID,
				EventID: event.EventID,
				Step:    "consume",
				Status:  "duplicate",
			})
			continue
		}
		logger.Info("event received", logging.Fields{
			OrderID:       event.OrderID,
			EventID:       event.EventID,
			CorrelationID: event.CorrelationID,
			Topic:         cfg.KafkaTopic,
			Step:          event.EventType,
			Status:        event.Status,
		})
	}
}
