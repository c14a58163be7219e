package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/andikafs/go-shop-api/internal/catalog"
	"github.com/andikafs/go-shop-api/internal/config"
	"github.com/andikafs/go-shop-api/internal/httpx"
	kafkax "github.com/andikafs/go-shop-api/internal/kafka"
	"github.com/andikafs/go-shop-api/internal/orders"
	"github.com/andikafs/go-shop-api/internal/postgres"
	"github.com/andikafs/go-shop-api/internal/redisx"
	"github.com/andikafs/go-shop-api/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
	prod.Start(ctx)

	// Services & handlers
	svc := orders.NewService(orders.NewPgStore(db))
	router := httpx.NewRouter()

	oh := &httpx.OrdersHandler{
		Svc:      svc,
		Producer: prod,
		Idem:     &httpx.RedisIdemCache{R: rdb},
		Service:  cfg.ServiceName,
	}
	oh.Register(router)
	(&httpx.UsersHandler{Repo: &users.Repo{DB: db}}).Register(router)
	(&httpx.ProductsHandler{Repo: &catalog.Repo{DB: db}}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // close inbox -> flush & close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}
