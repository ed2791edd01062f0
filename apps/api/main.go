package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	companieshandler "github.com/amianGO/Store-Application/domains/companies/be/handler"
	companiesrepo "github.com/amianGO/Store-Application/domains/companies/be/repo"
	companiesservice "github.com/amianGO/Store-Application/domains/companies/be/service"
	employeeshandler "github.com/amianGO/Store-Application/domains/employees/be/handler"
	employeesrepo "github.com/amianGO/Store-Application/domains/employees/be/repo"
	employeesservice "github.com/amianGO/Store-Application/domains/employees/be/service"
	platformauth "github.com/amianGO/Store-Application/platform/go/auth"
	platformlogging "github.com/amianGO/Store-Application/platform/go/logging"
	platformmiddleware "github.com/amianGO/Store-Application/platform/go/middleware"
	"github.com/amianGO/Store-Application/platform/go/persistence"
	tenantmiddleware "github.com/amianGO/Store-Application/platform/go/tenant/middleware"
)

const (
	companyAuthBase = "/api/auth/company"
	memberLoginPath = "/api/auth/login"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	JWTSecret       string        `env:"JWT_SECRET,required"`
	JWTIssuer       string        `env:"JWT_ISSUER" envDefault:"store-api"`
	JWTTTL          time.Duration `env:"JWT_TTL" envDefault:"8h"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	SkipBootstrap   bool          `env:"SKIP_BOOTSTRAP" envDefault:"false"`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	if !cfg.SkipBootstrap {
		if err := persistence.Bootstrap(ctx, pool); err != nil {
			logger.Fatal("bootstrap database", zap.Error(err))
		}
	}

	tokenService, err := platformauth.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		logger.Fatal("init token service", zap.Error(err))
	}

	companyStore, err := persistence.NewCompanyStore(pool)
	if err != nil {
		logger.Fatal("init company store", zap.Error(err))
	}

	provisioner := persistence.NewProvisioner(pool, logger)
	broker := persistence.NewBroker(pool, logger)

	companyRepo := companiesrepo.NewPostgresRepository(companyStore)
	companyService := companiesservice.New(companyRepo, provisioner, tokenService, logger)
	companyHTTPHandler, err := companieshandler.New(companyService, logger)
	if err != nil {
		logger.Fatal("init companies handler", zap.Error(err))
	}

	employeeRepo := employeesrepo.NewBrokerRepository(broker)
	employeeService := employeesservice.New(employeeRepo, companyLookup{store: companyStore}, tokenService, logger)
	employeeHTTPHandler := employeeshandler.New(employeeService, logger)

	rootRouter := chi.NewRouter()
	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.CORS(cfg.AllowedOrigins),
	)
	rootRouter.Use(platformlogging.RequestLogger(logger))
	rootRouter.Use(platformauth.Middleware(tokenService))
	rootRouter.Use(tenantmiddleware.WithTenantResolution(companyStore, tenantmiddleware.Config{
		PublicPaths: []string{
			"/healthz",
			"/readyz",
			companyAuthBase + "/register",
			companyAuthBase + "/login",
		},
		MemberLoginPath: memberLoginPath,
	}))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	rootRouter.Mount(companyAuthBase, companyHTTPHandler.PublicRoutes())
	rootRouter.Post(memberLoginPath, employeeHTTPHandler.LoginHandler())
	rootRouter.Mount("/api/companies", companyHTTPHandler.AdminRoutes())
	rootRouter.Mount("/api/employees", employeeHTTPHandler.Routes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// companyLookup bridges the directory store to the employees service so
// member tokens carry the company identity for the resolved schema.
type companyLookup struct {
	store *persistence.CompanyStore
}

func (c companyLookup) FindBySchema(ctx context.Context, schema string) (int64, string, error) {
	rec, err := c.store.FindBySchemaName(ctx, schema)
	if err != nil {
		return 0, "", err
	}
	return rec.ID, rec.TenantKey, nil
}
