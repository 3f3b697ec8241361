// Package runtime assembles the application from configuration and manages
// the HTTP server lifecycle.
package runtime

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"github.com/OpenCustody-Network/vault_layer/internal/app"
	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
	"github.com/OpenCustody-Network/vault_layer/internal/app/httpapi"
	ledgerpg "github.com/OpenCustody-Network/vault_layer/internal/app/ledger/postgres"
	vaultsvc "github.com/OpenCustody-Network/vault_layer/internal/app/services/vault"
	"github.com/OpenCustody-Network/vault_layer/internal/app/storage/postgres"
	"github.com/OpenCustody-Network/vault_layer/internal/config"
	"github.com/OpenCustody-Network/vault_layer/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	store      *postgres.Store
}

// NewApplication constructs an application instance from configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	params, pgStore, err := buildParams(cfg, log)
	if err != nil {
		return nil, err
	}

	application, err := app.New(params)
	if err != nil {
		return nil, err
	}

	auth := httpapi.NewAuthMiddleware(cfg.Auth.JWTSecret, log.WithField("component", "auth"))
	if cfg.Auth.JWTSecret == "" {
		log.Warn("JWT_SECRET not set; HTTP authentication disabled")
	}
	router := httpapi.NewRouter(application.Vault, httpapi.RouterConfig{
		Auth:           auth,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	}, log.WithField("component", "httpapi"))

	return &Application{
		cfg: cfg,
		log: log,
		app: application,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		store: pgStore,
	}, nil
}

// Run starts background components and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server and background components.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping background components")
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return nil
}

func buildParams(cfg *config.Config, log *logger.Logger) (app.Params, *postgres.Store, error) {
	vaultAddr, err := vault.ParseAddress(cfg.Vault.Address)
	if err != nil {
		return app.Params{}, nil, fmt.Errorf("vault address: %w", err)
	}

	fees := vault.FeeConfig{RateBps: cfg.Vault.FeeRateBps}
	if cfg.Vault.Treasury != "" {
		if fees.Treasury, err = vault.ParseAddress(cfg.Vault.Treasury); err != nil {
			return app.Params{}, nil, fmt.Errorf("treasury address: %w", err)
		}
	}

	grants := make(map[vault.Address][]vault.Capability)
	for _, set := range []struct {
		addrs []string
		cap   vault.Capability
	}{
		{cfg.Vault.Administrators, vault.CapabilityAdminister},
		{cfg.Vault.WithdrawalSigners, vault.CapabilityAuthorizeWithdrawal},
		{cfg.Vault.TreasuryManagers, vault.CapabilityManageTreasury},
	} {
		for _, raw := range set.addrs {
			addr, err := vault.ParseAddress(raw)
			if err != nil {
				return app.Params{}, nil, fmt.Errorf("capability grant address %q: %w", raw, err)
			}
			grants[addr] = append(grants[addr], set.cap)
		}
	}

	params := app.Params{
		Config: vaultsvc.Config{
			Context: vault.SigningContext{
				Name:         cfg.Vault.Name,
				Version:      cfg.Vault.Version,
				ChainID:      new(big.Int).SetUint64(cfg.Vault.ChainID),
				VaultAddress: vaultAddr,
			},
			Fees: fees,
		},
		Grants:            grants,
		ReconcileSchedule: cfg.Vault.ReconcileSchedule,
		Log:               log,
	}

	if cfg.Database.DSN == "" {
		log.Warn("DATABASE_DSN not set; using in-memory store and ledgers")
		return params, nil, nil
	}

	store, err := postgres.Open(cfg.Database.DSN)
	if err != nil {
		return app.Params{}, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx); err != nil {
		return app.Params{}, nil, err
	}

	native := ledgerpg.New(store.DB(), "native_balances")
	token := ledgerpg.New(store.DB(), "token_balances")
	for _, l := range []*ledgerpg.Ledger{native, token} {
		if err := l.EnsureSchema(ctx); err != nil {
			return app.Params{}, nil, err
		}
	}

	params.Store = store
	params.Native = native
	params.Token = token
	return params, store, nil
}
