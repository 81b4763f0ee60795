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
	"github.com/shoplite/orders-api/internal/config"
	"github.com/shoplite/orders-api/internal/httpx"
	kafkax "github.com/shoplite/orders-api/internal/kafka"
	"github.com/shoplite/orders-api/internal/logging"
	"github.com/shoplite/orders-api/internal/mongodb"
	"github.com/shoplite/orders-api/internal/notify"
	"github.com/shoplite/orders-api/internal/orders"
	"github.com/shoplite/orders-api/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		_ = mongodb.Disconnect(dctx, db)
	}()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pDeleted := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderDeleted, 1024)
	pDeleted.Start(ctx)

	// Engine & handlers
	svc := &orders.Service{
		Products:        mongodb.NewProductStore(db),
		Orders:          mongodb.NewOrderStore(db),
		Notifier:        &notify.RedisNotifier{Client: rdb},
		ProducerCreated: pCreated,
		ProducerDeleted: pDeleted,
		Name:            cfg.ServiceName,
		Log:             logger,
	}
	hub := notify.NewHub(rdb, logger)

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Service: svc,
		Auth:    &httpx.Auth{Key: []byte(cfg.JWTKey)},
		Log:     logger,
	}
	oh.Register(router)
	router.Get("/ws", hub.HandleWS)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pCreated.Close() // close inbox -> flush & close writer
	pDeleted.Close()
	cancel() // stop producer loops
	pCreated.WaitClosed()
	pDeleted.WaitClosed()
}
