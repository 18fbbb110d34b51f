package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vogiaan1904/ticketbottle-reservation/config"
	delivery "github.com/vogiaan1904/ticketbottle-reservation/internal/delivery/http"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/delivery/kafka/producer"
	mysqlRepo "github.com/vogiaan1904/ticketbottle-reservation/internal/repository/mysql"
	redisRepo "github.com/vogiaan1904/ticketbottle-reservation/internal/repository/redis"
	"github.com/vogiaan1904/ticketbottle-reservation/internal/service"
	pkgKafka "github.com/vogiaan1904/ticketbottle-reservation/pkg/kafka"
	"github.com/vogiaan1904/ticketbottle-reservation/pkg/lock"
	pkgLog "github.com/vogiaan1904/ticketbottle-reservation/pkg/logger"
	pkgRedis "github.com/vogiaan1904/ticketbottle-reservation/pkg/redis"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	redisCli, err := pkgRedis.NewClient(cfg.Redis)
	if err != nil {
		l.Fatalf(ctx, "Failed to create Redis client: %v", err)
	}
	if err := redisCli.Ping(ctx).Err(); err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer redisCli.Close()

	db, err := mysqlRepo.Open(cfg.MySQL)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to MySQL: %v", err)
	}
	defer db.Close()

	// Kafka is optional; without a broker events go to a no-op sink.
	prod := producer.NewNopProducer()
	if cfg.Kafka.Enabled {
		kafkaSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		prod = producer.NewProducer(kafkaSyncProd, l)
	}
	defer prod.Close()

	tokenRepo := redisRepo.NewRedisTokenRepository(redisCli, cfg.Queue.TokenTTL, l)
	seatRepo := mysqlRepo.NewMySQLSeatRepository(db, l)
	resvRepo := mysqlRepo.NewMySQLReservationRepository(db, l)
	paymentRepo := mysqlRepo.NewMySQLPaymentRepository(db, l)
	balanceRepo := mysqlRepo.NewMySQLBalanceRepository(db, l)
	userRepo := mysqlRepo.NewMySQLUserRepository(db, l)

	locker := lock.NewManager(redisCli, lock.Options{
		Lease:         cfg.Lock.Lease,
		Wait:          cfg.Lock.Wait,
		RetryInterval: cfg.Lock.RetryInterval,
	}, l)

	admissionSvc := service.NewAdmissionService(l, tokenRepo, locker, prod, cfg.Queue, cfg.JWT)
	reservationSvc := service.NewReservationService(l, seatRepo, resvRepo, admissionSvc, locker, prod, cfg.Reservation)
	balanceSvc := service.NewBalanceService(l, balanceRepo, userRepo)
	paymentSvc := service.NewPaymentService(l, paymentRepo, balanceRepo, reservationSvc, admissionSvc, locker, prod)

	sweeper := service.NewSweeper(l, admissionSvc, reservationSvc, locker, cfg.Queue.SweepInterval)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	handler := delivery.NewHandler(l, admissionSvc, reservationSvc, balanceSvc, paymentSvc, sweeper)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      delivery.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		l.Infof(ctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatalf(ctx, "Failed to serve HTTP: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info(ctx, "Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Errorf(ctx, "HTTP server shutdown: %v", err)
	}

	l.Info(ctx, "Server exited")
}
