package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	"github.com/LewiysArito/simple-ddd-order-flow/internal/order/domain"
	"github.com/LewiysArito/simple-ddd-order-flow/internal/order/service"
	"github.com/LewiysArito/simple-ddd-order-flow/internal/order/storage"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/idempotency"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/kafka"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/logging"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/metrics"
	"github.com/LewiysArito/simple-ddd-order-flow/pkg/outbox"
)

type config struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	DatabaseURL    string        `envconfig:"DATABASE_URL"`
	KafkaBrokers   string        `envconfig:"KAFKA_BROKERS"`
	KafkaTopic     string        `envconfig:"KAFKA_TOPIC" default:"orders.events"`
	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	OutboxInterval time.Duration `envconfig:"OUTBOX_INTERVAL" default:"1s"`
	OutboxBatch    int           `envconfig:"OUTBOX_BATCH" default:"100"`
	PublishTimeout time.Duration `envconfig:"PUBLISH_TIMEOUT" default:"5s"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New("order-service")
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		repo        domain.OrderRepository
		store       outbox.Store
		txr         service.TxRunner
		pool        *pgxpool.Pool
		healthCheck func(ctx context.Context) error
	)
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect error: %v", err)
		}
		defer pool.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Fatalf("db ping error: %v", err)
		}
		repo = storage.NewPgRepository(pool)
		store = storage.NewPgOutboxStore(pool)
		txr = storage.NewTxManager(pool)
		healthCheck = pool.Ping
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage", logging.Fields{Step: "startup"})
		repo = storage.NewMemRepository()
		store = outbox.NewMemStore()
	}

	var idemStore idempotency.Store
	if cfg.RedisAddr != "" {
		idemStore = idempotency.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		idemStore = idempotency.NewMemStore()
	}

	srvMetrics := metrics.NewServerMetrics("order_service")
	outboxMetrics := metrics.NewOutboxMetrics("order_service")

	kafkaClient := kafka.NewClient(cfg.KafkaBrokers)
	publisher := kafka.NewPublisher(kafkaClient)
	var dispatcher *outbox.Dispatcher
	if kafkaClient.Enabled() {
		if err := publisher.Connect(ctx); err != nil {
			log.Fatalf("kafka connect error: %v", err)
		}
		defer func() { _ = publisher.Disconnect(context.Background()) }()
		dispatcher = outbox.NewDispatcher(store, publisher, logger, outboxMetrics, outbox.DispatcherConfig{
			Interval:       cfg.OutboxInterval,
			PublishTimeout: cfg.PublishTimeout,
			BatchSize:      cfg.OutboxBatch,
		})
		go dispatcher.Run(ctx)
	} else {
		logger.Warn("KAFKA_BROKERS not set, events stay in the outbox", logging.Fields{Step: "startup"})
	}

	var waker service.Waker
	if dispatcher != nil {
		waker = dispatcher
	}
	orders := service.New(repo, store, txr, waker, cfg.KafkaTopic, logger)

	srv := &server{
		orders:      orders,
		idem:        idemStore,
		idemTTL:     cfg.IdempotencyTTL,
		publisher:   publisher,
		dbHealth:    healthCheck,
		log:         logger,
		metrics:     srvMetrics,
		kafkaEnable: kafkaClient.Enabled(),
	}

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Printf("order-service listening on :%s (topic=%s)", cfg.Port, cfg.KafkaTopic)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}

type server struct {
	orders      *service.OrderService
	idem        idempotency.Store
	idemTTL     time.Duration
	publisher   *kafka.Publisher
	dbHealth    func(ctx context.Context) error
	log         *logging.Logger
	metrics     *metrics.ServerMetrics
	kafkaEnable bool
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", s.instrument("create_order", s.handleCreateOrder))
	mux.HandleFunc("GET /orders/{id}", s.instrument("get_order", s.handleGetOrder))
	mux.HandleFunc("POST /orders/{id}/items", s.instrument("add_item", s.handleAddItem))
	mux.HandleFunc("POST /orders/{id}/status", s.instrument("change_status", s.handleChangeStatus))
	mux.HandleFunc("GET /users/{id}/orders", s.instrument("user_orders", s.handleUserOrders))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *server) instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.metrics.Requests.WithLabelValues(name, strconv.Itoa(rec.status)).Inc()
		s.metrics.LatencyMS.WithLabelValues(name).Observe(float64(time.Since(start).Milliseconds()))
	}
}

type itemRequest struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Quantity    int     `json:"quantity"`
}

type createOrderRequest struct {
	UserID string        `json:"user_id"`
	Items  []itemRequest `json:"items"`
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

type itemView struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Quantity    int     `json:"quantity"`
	Total       float64 `json:"total"`
}

type orderView struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Status      string     `json:"status"`
	TotalAmount float64    `json:"total_amount"`
	Currency    string     `json:"currency"`
	Items       []itemView `json:"items"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	Replayed    bool       `json:"replayed,omitempty"`
}

func viewOf(order *domain.Order) orderView {
	items := make([]itemView, 0, len(order.Items()))
	for _, it := range order.Items() {
		items = append(items, itemView{
			ProductID:   it.ProductID().String(),
			ProductName: it.ProductName(),
			Price:       it.UnitPrice().Amount().InexactFloat64(),
			Currency:    it.UnitPrice().Currency(),
			Quantity:    it.Quantity(),
			Total:       it.LineTotal().Amount().InexactFloat64(),
		})
	}
	return orderView{
		ID:          order.ID().String(),
		UserID:      order.UserID().String(),
		Status:      string(order.Status()),
		TotalAmount: order.TotalAmount().Amount().InexactFloat64(),
		Currency:    order.TotalAmount().Currency(),
		Items:       items,
		Version:     order.Version(),
		CreatedAt:   order.CreatedAt(),
	}
}

func (s *server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "user_id must be a uuid"})
		return
	}
	items, err := buildItems(req.Items)
	if err != nil {
		s.writeError(w, err)
		return
	}

	idemKey := idempotency.Key(r)
	if idemKey != "" {
		if existing, ok, err := s.idem.Lookup(r.Context(), idemKey); err == nil && ok {
			s.replay(w, r, existing)
			return
		}
	}

	order, err := s.orders.CreateOrder(r.Context(), userID, items, correlationID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if idemKey != "" {
		if bound, first, err := s.idem.Reserve(r.Context(), idemKey, order.ID().String(), s.idemTTL); err == nil && !first {
			s.replay(w, r, bound)
			return
		}
	}
	writeJSON(w, http.StatusCreated, viewOf(order))
}

// replay answers a repeated Idempotency-Key with the order the first
// request produced.
func (s *server) replay(w http.ResponseWriter, r *http.Request, orderID string) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "corrupt idempotency record"})
		return
	}
	order, err := s.orders.GetOrder(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	view := viewOf(order)
	view.Replayed = true
	writeJSON(w, http.StatusOK, view)
}

func (s *server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "order id must be a uuid"})
		return
	}
	order, err := s.orders.GetOrder(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(order))
}

func (s *server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "order id must be a uuid"})
		return
	}
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	items, err := buildItems([]itemRequest{req})
	if err != nil {
		s.writeError(w, err)
		return
	}
	order, err := s.orders.AddItem(r.Context(), id, items[0], correlationID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(order))
}

func (s *server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "order id must be a uuid"})
		return
	}
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	order, err := s.orders.ChangeStatus(r.Context(), id, status, correlationID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(order))
}

func (s *server) handleUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "user id must be a uuid"})
		return
	}
	orders, err := s.orders.GetUserOrders(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, viewOf(order))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": views})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.dbHealth != nil {
		if err := s.dbHealth(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
			return
		}
	}
	broker := "disabled"
	if s.kafkaEnable {
		if s.publisher.HealthCheck(r.Context()) {
			broker = "ok"
		} else {
			// A failed probe does not fail the service: the outbox keeps
			// events until the broker is back.
			broker = "unreachable"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "broker": broker})
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidValue), errors.Is(err, domain.ErrCurrencyMismatch):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrConcurrencyConflict):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
	default:
		s.log.Error("request failed", err, logging.Fields{})
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func buildItems(reqs []itemRequest) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(reqs))
	for _, req := range reqs {
		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			return nil, errors.Join(domain.ErrInvalidValue, err)
		}
		price, err := domain.NewMoneyFromFloat(req.Price, req.Currency)
		if err != nil {
			return nil, err
		}
		item, err := domain.NewOrderItem(productID, req.ProductName, price, req.Quantity)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func correlationID(r *http.Request) uuid.UUID {
	id, err := uuid.Parse(r.Header.Get("X-Correlation-ID"))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
