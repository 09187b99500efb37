package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wolfeidau/peopleops/internal/auth"
	httpmiddleware "github.com/wolfeidau/peopleops/internal/http"
	"github.com/wolfeidau/peopleops/internal/identity"
	memoryidentity "github.com/wolfeidau/peopleops/internal/identity/memory"
	"github.com/wolfeidau/peopleops/internal/logger"
	"github.com/wolfeidau/peopleops/internal/provisioning"
	"github.com/wolfeidau/peopleops/internal/server"
	"github.com/wolfeidau/peopleops/internal/store"
	"github.com/wolfeidau/peopleops/internal/telemetry"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"PEOPLEOPS_LISTEN"`
	Cert   string `help:"path to TLS cert file, serves plain HTTP when unset" default:"" env:"PEOPLEOPS_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"PEOPLEOPS_TLS_KEY"`

	// Browser access
	CORSOrigins    []string `help:"allowed CORS origins for admin API requests" default:"http://localhost:3000" env:"PEOPLEOPS_CORS_ORIGINS"`
	TrustedOrigins []string `help:"origins exempt from cross-origin request checks" env:"PEOPLEOPS_TRUSTED_ORIGINS"`

	// Provisioning
	TenantLabel              string        `help:"tenant label stamped on every employee record" env:"PEOPLEOPS_TENANT_LABEL"`
	StepTimeout              time.Duration `help:"timeout applied to each remote call" default:"10s" env:"PEOPLEOPS_STEP_TIMEOUT"`
	IdempotencyTTL           time.Duration `help:"how long idempotency keys are remembered" default:"24h" env:"PEOPLEOPS_IDEMPOTENCY_TTL"`
	IdempotencyPurgeInterval time.Duration `help:"how often expired idempotency keys are deleted, zero disables" default:"10m" env:"PEOPLEOPS_IDEMPOTENCY_PURGE_INTERVAL"`

	Tracing          bool    `help:"enable tracing" default:"false" env:"PEOPLEOPS_TRACING"`
	TraceSampleRatio float64 `help:"fraction of root traces sampled" default:"1" env:"PEOPLEOPS_TRACE_SAMPLE_RATIO"`

	Identity      IdentityFlags      `embed:"" prefix:"identity-"`
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"PEOPLEOPS_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Dev           DevFlags           `embed:"" prefix:"dev-"`
}

type IdentityFlags struct {
	URL         string `help:"identity service admin API base URL" env:"PEOPLEOPS_IDENTITY_URL"`
	Secret      string `help:"identity service role key" env:"PEOPLEOPS_IDENTITY_SECRET"`
	JWTSecret   string `help:"session token signing secret, verifies tokens locally when set" env:"PEOPLEOPS_IDENTITY_JWT_SECRET"`
	JWTAudience string `help:"expected session token audience" default:"authenticated" env:"PEOPLEOPS_IDENTITY_JWT_AUDIENCE"`
	Memory      bool   `help:"use an in-process identity service (development only)" default:"false" env:"PEOPLEOPS_IDENTITY_MEMORY"`
}

// DevFlags seed a development deployment.
type DevFlags struct {
	AdminEmail    string `help:"seed an administrator with this email (in-process identity only)" env:"PEOPLEOPS_DEV_ADMIN_EMAIL"`
	AdminPassword string `help:"password for the seeded administrator" default:"change-me-now" env:"PEOPLEOPS_DEV_ADMIN_PASSWORD"`
}

func (c *ServerCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "peopleops-server",
			Version:     globals.Version,
			TenantLabel: c.TenantLabel,
			SampleRatio: c.TraceSampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	st, err := c.openStores(ctx, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if purger, ok := st.idempotency.(store.ExpiredKeyPurger); ok && c.IdempotencyPurgeInterval > 0 {
		go purgeExpiredKeys(ctx, log, purger, c.IdempotencyPurgeInterval)
	}

	api, err := c.buildAPI(ctx, log, st)
	if err != nil {
		return err
	}

	handler, err := c.buildHandler(log, api.Handler())
	if err != nil {
		return err
	}

	return c.serve(ctx, log, handler)
}

// buildAPI wires the provisioning saga. Missing deployment settings are not
// fatal: the server starts and answers every admin request with a 500 so the
// problem is visible to operators without crash-looping.
func (c *ServerCmd) buildAPI(ctx context.Context, log zerolog.Logger, st *stores) (*server.Server, error) {
	if missing := c.missingSettings(); len(missing) > 0 {
		configErr := &provisioning.ConfigurationError{Missing: missing}
		log.Warn().Strs("missing", missing).Msg("Provisioning is not configured, admin endpoints will fail")
		return server.NewMisconfiguredServer(configErr), nil
	}

	svc, tokens, err := c.identityService(log)
	if err != nil {
		return nil, err
	}

	gate := provisioning.NewGate(tokens, st.directory, c.TenantLabel, c.StepTimeout)

	orchestrator, err := provisioning.NewOrchestrator(provisioning.Config{
		TenantLabel:    c.TenantLabel,
		StepTimeout:    c.StepTimeout,
		IdempotencyTTL: c.IdempotencyTTL,
		Identity:       svc,
		Directory:      st.directory,
		Orphans:        st.orphans,
		Idempotency:    st.idempotency,
	}, provisioning.WithAuthorizer(gate))
	if err != nil {
		var configErr *provisioning.ConfigurationError
		if errors.As(err, &configErr) {
			log.Warn().Err(err).Msg("Provisioning is not configured, admin endpoints will fail")
			return server.NewMisconfiguredServer(configErr), nil
		}
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	if mem, ok := svc.(*memoryidentity.Service); ok && c.Dev.AdminEmail != "" {
		if err := seedAdmin(ctx, log, mem, st.directory, c.TenantLabel, c.Dev.AdminEmail, c.Dev.AdminPassword); err != nil {
			return nil, fmt.Errorf("failed to seed development admin: %w", err)
		}
	}

	log.Info().
		Str("tenant", c.TenantLabel).
		Dur("step_timeout", c.StepTimeout).
		Dur("idempotency_ttl", c.IdempotencyTTL).
		Msg("Provisioning configured")

	return server.NewServer(c.TenantLabel, orchestrator, gate, st.orphans), nil
}

func (c *ServerCmd) missingSettings() []string {
	var missing []string

	if c.TenantLabel == "" {
		missing = append(missing, "PEOPLEOPS_TENANT_LABEL")
	}
	if !c.Identity.Memory {
		if c.Identity.URL == "" {
			missing = append(missing, "PEOPLEOPS_IDENTITY_URL")
		}
		if c.Identity.Secret == "" {
			missing = append(missing, "PEOPLEOPS_IDENTITY_SECRET")
		}
	}

	return missing
}

// identityService returns the identity backend and the resolver used to
// authenticate callers. A JWT secret enables local verification, otherwise
// every token is resolved by the identity service.
func (c *ServerCmd) identityService(log zerolog.Logger) (provisioning.IdentityService, provisioning.TokenResolver, error) {
	var (
		svc    provisioning.IdentityService
		tokens provisioning.TokenResolver
	)

	if c.Identity.Memory {
		log.Warn().Msg("Using in-process identity service. This should only be used in development!")
		mem := memoryidentity.NewService()
		svc, tokens = mem, mem
	} else {
		client, err := identity.NewClient(identity.Config{
			BaseURL:     c.Identity.URL,
			AdminSecret: c.Identity.Secret,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create identity client: %w", err)
		}
		svc, tokens = client, client
		log.Info().Str("url", c.Identity.URL).Msg("Using identity service")
	}

	if c.Identity.JWTSecret != "" && !c.Identity.Memory {
		resolver, err := auth.NewJWTResolver(c.Identity.JWTSecret, c.Identity.JWTAudience)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create JWT resolver: %w", err)
		}
		tokens = resolver
		log.Info().Str("audience", c.Identity.JWTAudience).Msg("Verifying session tokens locally")
	}

	return svc, tokens, nil
}

func (c *ServerCmd) buildHandler(log zerolog.Logger, api http.Handler) (http.Handler, error) {
	crossOrigin, err := httpmiddleware.CrossOriginMiddleware(c.TrustedOrigins)
	if err != nil {
		return nil, fmt.Errorf("failed to configure cross-origin protection: %w", err)
	}

	middleware := []httpmiddleware.Middleware{
		httpmiddleware.ClientIPMiddleware(),
		logger.NewHTTPRequests(log),
		httpmiddleware.CORSMiddleware(c.CORSOrigins),
		crossOrigin,
		httpmiddleware.GzipMiddleware(),
	}

	handler := httpmiddleware.Chain(api, middleware...)

	if c.Tracing {
		handler = otelhttp.NewHandler(handler, "peopleops-admin")
	}

	return handler, nil
}

func (c *ServerCmd) serve(ctx context.Context, log zerolog.Logger, handler http.Handler) error {
	if (c.Cert == "") != (c.Key == "") {
		return errors.New("TLS certificate and key must be provided together (--cert and --key)")
	}

	srv := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		if c.Cert != "" {
			log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
			errCh <- srv.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
