package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/boltdb/bolt"
	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type AppProvider interface {
	Run() error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
}

type App struct {
	logger         *zap.Logger
	config         *Config
	server         *http.Server
	closers        []func() error
	cleanups       []func()
	queueConsumers []func(context.Context) error
}

// domainStores groups the collections used by the services.
type domainStores struct {
	authors   Store[Author]
	books     Store[Book]
	borrowers Store[Borrower]
	loans     Store[Loan]
	journal   Store[StockEvent]
}

// NewApp provides an instance of App.
func NewApp() (AppProvider, error) {
	config, err := LoadAndInitConfigs(GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, fmt.Errorf("failed to setup app configuration: %s", err)
	}

	clock := NewClock(config.IsProduction)
	logWriter := NewRSyncWriter(config, clock)
	logger, flusher := SetupLogging(config, logWriter, NewTickClock(clock))

	app := &App{
		logger: logger,
		config: config,
		cleanups: []func(){
			func() {
				if err := flusher(); err != nil {
					fmt.Println("error during logs flushing: ", err)
				}
			},
			func() {
				if err := logWriter.Close(); err != nil {
					fmt.Println("error during closing of log file: ", err)
				}
			},
		},
	}

	ids := NewIDsHandler()
	stores, auditor, err := app.setupStorage(ids)
	if err != nil {
		app.close()
		app.Clean()
		return nil, err
	}

	catalog := NewCatalogService(logger, clock, stores.authors, stores.books)
	borrowers := NewBorrowerService(logger, clock, stores.borrowers)
	loans := NewLoanService(logger, clock, stores.loans, catalog, borrowers, auditor)

	apiService := NewAPIHandler(
		logger,
		config,
		&Statistics{
			version:   config.GitTag,
			container: IsAppRunningInDocker(),
			started:   clock.Now(),
			runtime:   runtime.Version(),
			platform:  runtime.GOOS + "/" + runtime.GOARCH,
		},
		clock,
		ids,
		&Services{
			Catalog:   catalog,
			Borrowers: borrowers,
			Loans:     loans,
			Audit:     NewAuditService(stores.journal, catalog),
		},
	)

	// Use git commit in case the tag is not set.
	if config.GitTag == "" {
		apiService.stats.version = config.GitCommit
	}

	middlewaresPublic, middlewaresOps := apiService.MiddlewaresStacks()
	router := apiService.SetupRoutes(httprouter.New(),
		&MiddlewareMap{
			public: middlewaresPublic.Chain,
			ops:    middlewaresOps.Chain,
		},
	)
	routerWithTimeout := http.TimeoutHandler(
		router,
		config.Server.RequestTimeout,
		"Timeout. Processing taking too long. Please reach out to support.")

	app.server = &http.Server{
		Addr:           net.JoinHostPort(config.Server.Host, config.Server.Port),
		Handler:        routerWithTimeout,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
		ConnContext:    SaveConnInContext,
	}

	return app, nil
}

// setupStorage opens the configured database and builds the domain stores
// and the stock auditor. With the audit enabled, stock events are queued on
// redis and journaled into boltdb by a background consumer. Otherwise they
// are written directly next to the domain documents.
func (app *App) setupStorage(ids UIDHandler) (*domainStores, Auditor, error) {
	var (
		redisClient *redis.Client
		boltClient  *bolt.DB
		sqlClient   *sql.DB
		err         error
	)
	config, logger := app.config, app.logger

	if config.NeedsRedis() {
		redisClient, err = GetRedisClient(config)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis server: %s", err)
		}
		app.closers = append(app.closers, redisClient.Close)
	}

	if config.NeedsBoltDB() {
		buckets := []string{StockEventsCollection.Name}
		if config.Storage.Driver == DriverBolt {
			buckets = collectionNames(append(DomainCollections(), StockEventsCollection)...)
		}
		boltClient, err = GetBoltDBClient(config, buckets...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open boltdb database: %s", err)
		}
		app.closers = append(app.closers, boltClient.Close)
	}

	stores := &domainStores{}
	switch config.Storage.Driver {
	case DriverRedis:
		stores.authors = NewRedisStore[Author](logger, redisClient, AuthorsCollection, ids)
		stores.books = NewRedisStore[Book](logger, redisClient, BooksCollection, ids)
		stores.borrowers = NewRedisStore[Borrower](logger, redisClient, BorrowersCollection, ids)
		stores.loans = NewRedisStore[Loan](logger, redisClient, LoansCollection, ids)
		stores.journal = NewRedisStore[StockEvent](logger, redisClient, StockEventsCollection, ids)
	case DriverBolt:
		stores.authors = NewBoltStore[Author](logger, boltClient, AuthorsCollection, ids)
		stores.books = NewBoltStore[Book](logger, boltClient, BooksCollection, ids)
		stores.borrowers = NewBoltStore[Borrower](logger, boltClient, BorrowersCollection, ids)
		stores.loans = NewBoltStore[Loan](logger, boltClient, LoansCollection, ids)
		stores.journal = NewBoltStore[StockEvent](logger, boltClient, StockEventsCollection, ids)
	case DriverSQLite:
		sqlClient, err = GetSQLiteClient(config, collectionNames(append(DomainCollections(), StockEventsCollection)...)...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %s", err)
		}
		app.closers = append(app.closers, sqlClient.Close)
		stores.authors = NewSQLiteStore[Author](logger, sqlClient, AuthorsCollection, ids)
		stores.books = NewSQLiteStore[Book](logger, sqlClient, BooksCollection, ids)
		stores.borrowers = NewSQLiteStore[Borrower](logger, sqlClient, BorrowersCollection, ids)
		stores.loans = NewSQLiteStore[Loan](logger, sqlClient, LoansCollection, ids)
		stores.journal = NewSQLiteStore[StockEvent](logger, sqlClient, StockEventsCollection, ids)
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", config.Storage.Driver)
	}

	if !config.Audit.Enable {
		return stores, NewJournalAuditor(stores.journal), nil
	}

	stores.journal = NewBoltStore[StockEvent](logger, boltClient, StockEventsCollection, ids)
	queue := NewRedisQueue(redisClient)
	consumer := NewJournalConsumer(logger, queue, stores.journal)
	app.queueConsumers = append(app.queueConsumers, func(ctx context.Context) error {
		return consumer.Consume(ctx, config.Audit.Queue)
	})
	return stores, NewQueueAuditor(queue, config.Audit.Queue), nil
}

// Run starts the api web server and a goroutine which is responsible to stop it.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)

	g.Go(app.ConsumeQueues(gCtx, g))
	g.Go(app.Serve())
	g.Go(app.Stop(nCtx, gCtx))

	err := g.Wait()
	app.logger.Info("api server stopped",
		zap.String("app.host", app.config.Server.Host),
		zap.String("app.port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// Clean calls all registered cleanups functions.
func (app *App) Clean() {
	for _, f := range app.cleanups {
		f()
	}
}

// close releases the databases connections.
func (app *App) close() {
	for _, c := range app.closers {
		if err := c(); err != nil {
			app.logger.Error("failed to close storage client", zap.Error(err))
		}
	}
}

// Serve starts the api web server. It returned error
// will be caught by the errorgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.logger.Info("api server starting",
			zap.String("app.host", app.config.Server.Host),
			zap.String("app.port", app.config.Server.Port),
			zap.String("app.storage", app.config.Storage.Driver),
			zap.Bool("app.audit", app.config.Audit.Enable),
		)
		err := app.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// the graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` method result.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("api server stopping. reason: requested to stop")
		} else {
			app.logger.Info("api server stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		err := app.server.Shutdown(sCtx)
		switch {
		case err == nil, errors.Is(err, http.ErrServerClosed):
			app.logger.Info("api server graceful shutdown succeeded")
		case errors.Is(err, context.DeadlineExceeded):
			app.logger.Info("api server graceful shutdown timed out")
		default:
			app.logger.Info("api server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Info("api server going to force shutdown", zap.Error(app.server.Close()))
		}
		app.close()
		return nil
	}
}

// ConsumeQueues runs all queue consumers into separate controlled goroutines.
func (app *App) ConsumeQueues(gCtx context.Context, g *errgroup.Group) func() error {
	return func() error {
		for _, consume := range app.queueConsumers {
			consume := consume
			g.Go(func() error {
				return consume(gCtx)
			})
		}
		return nil
	}
}
