package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"property-catalog/internal/adapters/catalog_client"
	"property-catalog/internal/adapters/favorites_store"
	logger_adapter "property-catalog/internal/adapters/logger"
	postgres_adapter "property-catalog/internal/adapters/postgres"
	rabbitmq_adapter "property-catalog/internal/adapters/rabbitmq"
	"property-catalog/internal/adapters/rest"
	"property-catalog/internal/configs"
	"property-catalog/internal/contracts"
	"property-catalog/internal/core/domain"
	"property-catalog/internal/core/port"
	"property-catalog/internal/core/usecase"
	fluentlogger "property-catalog/pkg/fluent_logger"
	"property-catalog/pkg/postgres"
	"property-catalog/pkg/rabbitmq/rabbitmq_common"
	"property-catalog/pkg/rabbitmq/rabbitmq_consumer"
	"property-catalog/pkg/rabbitmq/rabbitmq_producer"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	shutdownTimeout  = 15 * time.Second
	janitorInterval  = time.Minute
	listingChangesRK = string(domain.ListingUpdated)
)

type App struct {
	config    *configs.AppConfig
	dbPool    *pgxpool.Pool
	apiServer *rest.Server
	sessions  *usecase.FavoritesSessions

	rabbitMQConnManager *rabbitmq_common.ConnectionManager
	eventsProducer      *rabbitmq_producer.Publisher
	changesConsumer     *rabbitmq_adapter.ListingChangesConsumerAdapter

	fluentClient *fluent.Fluent
	logger       port.LoggerPort
}

func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// --- 1. Loggers ---
	var activeLoggers []port.LoggerPort

	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Level:     logger_adapter.ParseLevel(appConfig.StdoutLogger.Level),
		IsJSON:    appConfig.StdoutLogger.JSON,
		UseColor:  appConfig.StdoutLogger.Color,
		AddSource: appConfig.StdoutLogger.Source,
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
			Async:     appConfig.FluentBit.Async,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, logger_adapter.ParseLevel(appConfig.FluentBit.Level))
		if err != nil {
			fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	baseLogger := multiLogger.WithFields(port.Fields{
		"service_name": appConfig.AppName,
		"instance_id":  uuid.NewString(),
	})
	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	application := &App{
		config:       appConfig,
		fluentClient: fluentClient,
		logger:       appLogger,
	}
	if err := application.wire(baseLogger); err != nil {
		application.closeResources()
		return nil, err
	}
	return application, nil
}

// wire builds adapters, use cases and the REST server. Resources already
// opened are recorded on a so a failure can release them.
func (a *App) wire(baseLogger port.LoggerPort) error {
	cfg := a.config

	// --- 2. Remote catalog ---
	catalog := catalog_client.NewCatalogAPIClient(catalog_client.Config{
		BaseURL: cfg.Catalog.BaseURL,
		CategoryPaths: map[domain.Category]string{
			domain.CategoryBuy:  cfg.Catalog.BuyPath,
			domain.CategoryRent: cfg.Catalog.RentPath,
			domain.CategorySell: cfg.Catalog.SellPath,
		},
		FavoritesPath: cfg.Catalog.FavoritesPath,
		LookupPath:    cfg.Catalog.LookupPath,
		Timeout:       cfg.Catalog.RequestTimeout,
		APIKey:        cfg.Catalog.APIKey,
	})

	// --- 3. Favorites slots ---
	slots, err := a.newSlotProvider()
	if err != nil {
		return err
	}

	// --- 4. Catalog change events ---
	var events port.CatalogEventsPort = rabbitmq_adapter.NoopCatalogEvents{}
	if cfg.RabbitMQ.Enabled {
		pub, err := a.newEventsPublisher(baseLogger)
		if err != nil {
			return err
		}
		events = pub
	} else {
		a.logger.Warn("RabbitMQ disabled: catalog events are not published and snapshots refresh only on sync", nil)
	}

	// --- 5. Use cases ---
	validator, err := contracts.NewDraftValidator()
	if err != nil {
		return fmt.Errorf("failed to compile listing draft schema: %w", err)
	}
	browseUC := usecase.NewBrowseListingsUseCase(catalog)
	a.sessions = usecase.NewFavoritesSessions(catalog, slots)
	adminUC := usecase.NewAdminCatalog(catalog, validator, events)

	if cfg.RabbitMQ.Enabled {
		changesUC := usecase.NewListingChangesUseCase(catalog, a.sessions)
		a.changesConsumer, err = rabbitmq_adapter.NewListingChangesConsumerAdapter(
			rabbitmq_consumer.ConsumerConfig{
				Config:                 rabbitmq_common.Config{URL: cfg.RabbitMQ.URL},
				ExclusiveQueue:         true,
				AutoDeleteQueue:        true,
				ExchangeNameForBind:    cfg.RabbitMQ.Exchange,
				DeclareExchangeForBind: true,
				ExchangeTypeForBind:    "topic",
				DurableExchangeForBind: true,
				RoutingKeysForBind:     []string{listingChangesRK},
				PrefetchCount:          10,
				ConsumerTag:            cfg.AppName + "-listing-changes",
			},
			changesUC,
			baseLogger.WithFields(port.Fields{"component": "ListingChangesConsumer"}),
			a.rabbitMQConnManager,
		)
		if err != nil {
			return err
		}
	}
	a.logger.Info("Use cases initialized", nil)

	// --- 6. REST ---
	a.apiServer = rest.NewServer(
		rest.ServerConfig{
			Port:           cfg.Rest.PORT,
			AllowedOrigins: cfg.Rest.AllowedOrigins,
			AdminKey:       cfg.Rest.AdminKey,
		},
		rest.NewListingsHandler(browseUC, adminUC),
		rest.NewFavoritesHandler(a.sessions),
		rest.NewAdminHandler(adminUC),
		baseLogger,
	)
	a.logger.Info("REST API server configured", nil)
	return nil
}

func (a *App) newSlotProvider() (port.FavoritesSlotProvider, error) {
	cfg := a.config
	if cfg.Favorites.StoreDriver != configs.StoreDriverPostgres {
		provider, err := favorites_store.NewFileSlotProvider(cfg.Favorites.Dir, cfg.Favorites.Namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to open favorites directory: %w", err)
		}
		a.logger.Info("Favorites are stored in files", port.Fields{"dir": cfg.Favorites.Dir})
		return provider, nil
	}

	dbPool, err := postgres.NewClient(context.Background(), postgres.Config{
		DatabaseURL:     cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		a.logger.Error("Failed to connect to PostgreSQL", err, nil)
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	a.dbPool = dbPool
	a.logger.Info("Successfully connected to PostgreSQL pool!", nil)

	repo, err := postgres_adapter.NewFavoritesSlotRepository(dbPool, cfg.Favorites.Namespace)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (a *App) newEventsPublisher(baseLogger port.LoggerPort) (*rabbitmq_adapter.CatalogEventsPublisher, error) {
	cfg := a.config
	rmqCfg := rabbitmq_common.Config{URL: cfg.RabbitMQ.URL}

	connManager, err := rabbitmq_common.NewConnectionManager(rmqCfg,
		rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_connection"})))
	if err != nil {
		a.logger.Error("Failed to connect to RabbitMQ", err, nil)
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	a.rabbitMQConnManager = connManager

	producer, err := rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
		Config:                   rmqCfg,
		ExchangeName:             cfg.RabbitMQ.Exchange,
		ExchangeType:             "topic",
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
		Logger:                   rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"})),
	}, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ publisher: %w", err)
	}
	a.eventsProducer = producer

	return rabbitmq_adapter.NewCatalogEventsPublisher(producer)
}

// Run starts every component and blocks until a signal or a fatal component
// error arrives.
func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	var wg sync.WaitGroup
	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)
		cancelApp()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if a.apiServer != nil {
			if err := a.apiServer.Stop(shutdownCtx); err != nil {
				a.logger.Error("Error during API server shutdown", err, nil)
			}
		}
		wg.Wait()
		a.closeResources()
	}()

	a.logger.Info("Application is starting...", nil)

	componentErrors := make(chan error, 2)

	go func() {
		if err := a.apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			componentErrors <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.changesConsumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.logger.Info("Starting listing changes consumer...", nil)
			if err := a.changesConsumer.Start(appCtx); err != nil && appCtx.Err() == nil {
				componentErrors <- fmt.Errorf("listing changes consumer: %w", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.evictIdleSessions(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	a.logger.Info("Application running. Waiting for signals or component error...", nil)
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
		return nil
	case err := <-componentErrors:
		a.logger.Error("Component failed, shutting down", err, nil)
		return err
	}
}

// evictIdleSessions drops device sessions nobody used for the configured
// idle timeout. Their slots stay in the store.
func (a *App) evictIdleSessions(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.sessions.EvictIdle(a.config.Favorites.SessionIdleTimeout); n > 0 {
				a.logger.Debug("Evicted idle favorites sessions", port.Fields{"evicted": n, "live": a.sessions.Len()})
			}
		}
	}
}

func (a *App) closeResources() {
	if a.changesConsumer != nil {
		if err := a.changesConsumer.Close(); err != nil {
			a.logger.Error("Error closing listing changes consumer", err, nil)
		}
	}
	if a.eventsProducer != nil {
		if err := a.eventsProducer.Close(); err != nil {
			a.logger.Error("Error closing RabbitMQ publisher", err, nil)
		}
	}
	if a.rabbitMQConnManager != nil {
		if err := a.rabbitMQConnManager.Close(); err != nil {
			a.logger.Error("Error closing RabbitMQ connection", err, nil)
		}
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.logger.Info("PostgreSQL pool closed.", nil)
	}

	a.logger.Info("Application shut down gracefully.", nil)

	if a.fluentClient != nil {
		if err := a.fluentClient.Close(); err != nil {
			// fluent may already be gone, so stdout only
			fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
		}
	}
}
