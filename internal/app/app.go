package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-service/internal/broker"
	"payment-service/internal/cache"
	"payment-service/internal/clock"
	"payment-service/internal/config"
	"payment-service/internal/idempotency"
	"payment-service/internal/lockmanager"
	"payment-service/internal/repositories/kafkarepo"
	"payment-service/internal/services"
	"payment-service/internal/store"
	"payment-service/internal/transport/http/handler"
	"payment-service/internal/worker"
)

type App struct {
	cfg        *config.Config
	httpServer *http.Server
	sweeper    *worker.Sweeper
}

func New() (*App, error) {
	a := new(App)

	// Initialize config
	a.cfg = config.New()

	// Connect to the store
	redis, err := cache.NewRedis(a.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis connection error: %w", err)
	}
	st := store.NewRedisStore(redis)

	// Connect to broker
	kafka, err := broker.NewKafkaWriter(a.cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("broker connection error: %w", err)
	}
	eventRepo := kafkarepo.NewEventRepository(kafka)

	clk := clock.New()

	// Initialize coordination components
	locks := lockmanager.New(st, clk, a.cfg.Lock.RetryDelay)
	idem := idempotency.New(st, clk, a.cfg.Idempotency.TTL)

	// Initialize services
	walletService := services.NewWalletService(st, clk, a.cfg.Payment.WalletMaxBalance)
	orderService := services.NewOrderService(st, locks, walletService, eventRepo, clk, a.cfg.Payment, a.cfg.Lock)

	// Initialize mux and handlers
	mux := http.NewServeMux()
	handler.NewPayment(mux, orderService, walletService, idem)

	a.httpServer = &http.Server{
		Addr:         a.cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	a.sweeper = worker.NewSweeper(orderService, idem, a.cfg.Worker.SweepInterval, a.cfg.Worker.ExpireBatchSize)

	return a, nil
}

func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	go a.sweeper.Run(ctx)

	fmt.Printf("Starting HTTP server on %s\n", a.cfg.Server.Port)
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}
