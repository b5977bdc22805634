package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/httpserver"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/metrics"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/rabbitmq"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/redis"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/adapter/websocket"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/app"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/geolocation"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/platform/config"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/platform/logging"
	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/platform/version"
	"github.com/centrifugal/centrifuge"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
)

// locationBridge is a provider transport that needs a receive loop.
type locationBridge interface {
	domain.LocationProvider
	Run(ctx context.Context) error
}

type bridge struct {
	provider locationBridge
	checks   []httpserver.HealthCheck
	close    func()
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config, providerMetrics *metrics.ProviderMetrics, reg prometheus.Registerer) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL, providerMetrics, metrics.NewRedisMetrics(reg))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupBridge(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, redisClient *goredis.Client, redisMetrics *metrics.ProviderMetrics) bridge {
	if cfg.Provider == config.ProviderAMQP {
		conn, err := rabbitmq.Dial(ctx, cfg.AMQPURL)
		if err != nil {
			slog.Error("Failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		provider := rabbitmq.NewProvider(conn.Channel(), metrics.NewProviderMetrics(reg, config.ProviderAMQP))
		return bridge{
			provider: provider,
			checks: []httpserver.HealthCheck{{Name: "rabbitmq", Check: func(context.Context) error {
				if provider.IsBreakerOpen() {
					return errors.New("circuit breaker open")
				}
				return nil
			}}},
			close: func() { _ = conn.Close() },
		}
	}

	return bridge{
		provider: redis.NewProvider(redisClient, redisMetrics),
		close:    func() {},
	}
}

func setupWebSocket(cfg *config.Config, reg prometheus.Registerer) (*centrifuge.Node, *websocket.Publisher, http.Handler) {
	wsMetrics := metrics.NewWebSocketMetrics(reg)
	node, err := websocket.NewNode(wsMetrics, cfg.LogLevel)
	if err != nil {
		slog.Error("Failed to create centrifuge node", "error", err)
		os.Exit(1)
	}

	if cfg.WebSocketRedisBroker {
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err == nil {
			err = websocket.SetupRedis(node, opts.Addr)
		}
		if err != nil {
			slog.Error("Failed to set up centrifuge redis broker", "error", err)
			os.Exit(1)
		}
	}

	if err := node.Run(); err != nil {
		slog.Error("Failed to run centrifuge node", "error", err)
		os.Exit(1)
	}

	handler := centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		CheckOrigin: websocket.NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment()),
	})
	return node, websocket.NewPublisher(node, wsMetrics), handler
}

func runGracefulShutdown(srv *httpserver.Server, manager *geolocation.Manager, node *centrifuge.Node, stopBridge context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Stop cancels open provider subscriptions, so the bridge must still be up
		manager.Stop()
		stopBridge()

		if err := node.Shutdown(shutdownCtx); err != nil {
			slog.Error("Centrifuge shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "provider", cfg.Provider, "build", version.Get())

	settings, err := cfg.Settings()
	if err != nil {
		slog.Error("Invalid location settings", "error", err)
		os.Exit(1)
	}

	reg := metrics.NewRegistry()
	redisMetrics := metrics.NewProviderMetrics(reg, config.ProviderRedis)

	redisClient := setupRedis(context.Background(), cfg, redisMetrics, reg)
	defer func() { _ = redisClient.Close() }()

	b := setupBridge(context.Background(), cfg, reg, redisClient, redisMetrics)
	defer b.close()

	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	defer stopBridge()
	go func() {
		if err := b.provider.Run(bridgeCtx); err != nil {
			slog.Error("Location bridge stopped", "error", err)
		}
	}()

	node, publisher, wsHandler := setupWebSocket(cfg, reg)

	permissions := redis.NewPermissionStore(redisClient)
	manager, err := geolocation.NewManager(b.provider, permissions, publisher, clock, settings, metrics.NewLocationMetrics(reg))
	if err != nil {
		slog.Error("Failed to create session manager", "error", err)
		os.Exit(1)
	}
	plugin := app.NewPlugin(manager, permissions)

	healthChecks := []httpserver.HealthCheck{
		{Name: "redis", Check: func(ctx context.Context) error {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			return nil
		}},
	}
	healthChecks = append(healthChecks, b.checks...)

	srv := httpserver.NewServer(cfg, plugin, publisher, wsHandler, metrics.Handler(reg), metrics.NewHTTPMetrics(reg), healthChecks)

	done := runGracefulShutdown(srv, manager, node, stopBridge)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
