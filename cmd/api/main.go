package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/mechastore/mecha-backend/api/routes"
	"github.com/mechastore/mecha-backend/internal/addresses"
	cartsvc "github.com/mechastore/mecha-backend/internal/cart"
	"github.com/mechastore/mecha-backend/internal/catalog"
	checkoutsvc "github.com/mechastore/mecha-backend/internal/checkout"
	"github.com/mechastore/mecha-backend/internal/inventory"
	"github.com/mechastore/mecha-backend/internal/notifications"
	ordersvc "github.com/mechastore/mecha-backend/internal/orders"
	sepaysvc "github.com/mechastore/mecha-backend/internal/payments/sepay"
	"github.com/mechastore/mecha-backend/internal/users"
	"github.com/mechastore/mecha-backend/pkg/config"
	"github.com/mechastore/mecha-backend/pkg/db"
	"github.com/mechastore/mecha-backend/pkg/logger"
	"github.com/mechastore/mecha-backend/pkg/migrate"
	"github.com/mechastore/mecha-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	// Redis only backs the sweeper lock; the API stays up without it.
	var redisPinger db.Pinger
	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Warn(context.Background(), "redis unavailable, continuing without it")
	} else {
		redisPinger = redisClient
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	conn := dbClient.DB()
	addressesRepo := addresses.NewRepository(conn)
	catalogRepo := catalog.NewRepository(conn)
	cartRepo := cartsvc.NewRepository(conn)
	ordersRepo := ordersvc.NewRepository(conn)
	inventoryRepo := inventory.NewRepository(conn)
	sepayRepo := sepaysvc.NewRepository(conn)
	notificationsRepo := notifications.NewRepository(conn)
	usersRepo := users.NewRepository(conn)

	mailer, err := notifications.NewMailer(cfg.SMTP, usersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create mailer", err)
		os.Exit(1)
	}

	cartService, err := cartsvc.NewService(cartRepo, catalogRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	ordersService, err := ordersvc.NewService(ordersRepo, inventoryRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(cartRepo, catalogRepo, ordersRepo, inventoryRepo, addressesRepo, dbClient, mailer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	sepayService, err := sepaysvc.NewService(sepayRepo, ordersRepo, notificationsRepo, dbClient, cfg.Sepay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sepay service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DBPinger:      dbClient,
			RedisPinger:   redisPinger,
			Catalog:       catalogRepo,
			Cart:          cartService,
			Checkout:      checkoutService,
			Orders:        ordersService,
			Sepay:         sepayService,
			Notifications: notificationsRepo,
		}),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "error during shutdown", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
