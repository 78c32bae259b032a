package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/javeriana-dev/biblioteca-service/biblioteca/config"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/handler"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/repository"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/server"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/internal/service"
	"github.com/javeriana-dev/biblioteca-service/biblioteca/migrations"
	"github.com/javeriana-dev/biblioteca-service/pkg/kafka"
	"github.com/javeriana-dev/biblioteca-service/pkg/logger"
	"github.com/javeriana-dev/biblioteca-service/pkg/postgres"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "biblioteca")
	db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return fmt.Errorf("db init %v", err)
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return fmt.Errorf("repo init %v", err)
	}

	events := service.EventPublisher(service.NopPublisher{})
	if cfg.KafkaEnabled {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return fmt.Errorf("kafka producer %v", err)
		}
		defer producer.Close()
		events = service.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	}

	svc := service.NewService(repo, events, cfg.Policy, log)

	// the seeded status catalogs must match the closed sets the code knows
	if err := svc.VerifyCatalogs(context.Background()); err != nil {
		return fmt.Errorf("catalog check %v", err)
	}
	// correct any drift left by a crash between ledger write and loan write
	if _, err := svc.ReconcileAvailability(context.Background()); err != nil {
		return fmt.Errorf("reconcile %v", err)
	}

	h := handler.New(svc, log)

	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run()
	})
	g.Go(func() error {
		return sweepOverdue(ctx, svc, cfg.Sweep.OverdueInterval, log)
	})
	g.Go(func() error {
		return sweepExpired(ctx, svc, cfg.Sweep.ExpiryInterval, log)
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second*5)
	defer closeCancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.Error("srv.Stop", zap.Error(err))
	}
	if err := g.Wait(); err != nil {
		log.Error("workers", zap.Error(err))
	}
	db.Close()
	log.Info("Graceful shutdown finished")
	return nil
}

func sweepOverdue(ctx context.Context, svc *service.Service, interval time.Duration, log *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := svc.MarkOverdueLoans(ctx)
			if err != nil {
				log.Error("overdue sweep", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("loans marked overdue", zap.Int("count", n))
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func sweepExpired(ctx context.Context, svc *service.Service, interval time.Duration, log *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := svc.ExpireReservations(ctx)
			if err != nil {
				log.Error("expiry sweep", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("reservations expired", zap.Int("count", n))
			}
		case <-ctx.Done():
			return nil
		}
	}
}
