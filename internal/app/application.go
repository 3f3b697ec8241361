// Package app wires the vault service, its stores and ledgers, and the
// background components into one lifecycle-managed application.
package app

import (
	"context"
	"fmt"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/ledger"
	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
	ledgermem "github.com/OpenCustody-Network/vault_layer/internal/app/ledger/memory"
	vaultsvc "github.com/OpenCustody-Network/vault_layer/internal/app/services/vault"
	"github.com/OpenCustody-Network/vault_layer/internal/app/storage"
	"github.com/OpenCustody-Network/vault_layer/internal/app/storage/memory"
	"github.com/OpenCustody-Network/vault_layer/internal/app/system"
	"github.com/OpenCustody-Network/vault_layer/pkg/logger"
)

// Params collects the application dependencies. Nil stores and ledgers
// default to the in-memory implementations.
type Params struct {
	Config            vaultsvc.Config
	Grants            map[vault.Address][]vault.Capability
	Store             storage.VaultStore
	Native            ledger.NativeLedger
	Token             ledger.TokenLedger
	ReconcileSchedule string
	Log               *logger.Logger
}

// Application ties the vault service together with its background
// components and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	grants  map[vault.Address][]vault.Capability

	Vault *vaultsvc.Service
}

// New builds a fully initialised application.
func New(params Params) (*Application, error) {
	log := params.Log
	if log == nil {
		log = logger.NewDefault("app")
	}

	if params.Store == nil {
		params.Store = memory.New()
	}
	if params.Native == nil {
		params.Native = ledgermem.New()
	}
	if params.Token == nil {
		params.Token = ledgermem.New()
	}

	svc, err := vaultsvc.New(params.Config, params.Store, params.Native, params.Token, log.WithField("component", "vault"))
	if err != nil {
		return nil, fmt.Errorf("construct vault service: %w", err)
	}

	manager := system.NewManager()
	reconciler := vaultsvc.NewReconciler(svc, params.ReconcileSchedule, log.WithField("component", "vault-reconciler"))
	if err := manager.Register(reconciler); err != nil {
		return nil, fmt.Errorf("register reconciler: %w", err)
	}

	return &Application{
		manager: manager,
		log:     log,
		grants:  params.Grants,
		Vault:   svc,
	}, nil
}

// Start seeds the initial capability assignments and launches background
// components.
func (a *Application) Start(ctx context.Context) error {
	if err := a.Vault.Bootstrap(ctx, a.grants); err != nil {
		return err
	}
	if err := a.manager.StartAll(ctx); err != nil {
		return err
	}
	a.log.Info("application started")
	return nil
}

// Stop shuts the background components down in reverse order.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.StopAll(ctx)
}
