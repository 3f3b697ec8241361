// Package vault implements the custodial funds-intake and authorized-release
// service: fee-skimming deposits of both asset classes into a pooled custody
// account, and releases gated by signed, nonce-sequenced, deadline-bound
// authorizations.
package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/ledger"
	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
	"github.com/OpenCustody-Network/vault_layer/internal/app/metrics"
	"github.com/OpenCustody-Network/vault_layer/internal/app/storage"
	"github.com/OpenCustody-Network/vault_layer/pkg/logger"
)

// Config fixes a vault instance's identity and fee policy at construction.
type Config struct {
	Context vault.SigningContext
	Fees    vault.FeeConfig
}

// Validate checks the configuration is complete enough to run.
func (c Config) Validate() error {
	if c.Context.Name == "" || c.Context.Version == "" {
		return fmt.Errorf("signing context name and version are required")
	}
	if c.Context.ChainID == nil || c.Context.ChainID.Sign() <= 0 {
		return fmt.Errorf("signing context chain id is required")
	}
	if c.Context.VaultAddress.IsZero() {
		return fmt.Errorf("vault address is required")
	}
	return c.Fees.Validate()
}

// Service is the pooled custody vault. All mutating operations execute
// strictly serialized and commit or discard their effects as one unit.
type Service struct {
	cfg      Config
	store    storage.VaultStore
	native   ledger.NativeLedger
	token    ledger.TokenLedger
	verifier *Verifier
	log      *logger.Logger

	mu  sync.Mutex
	now func() time.Time
}

type guardKey struct{}

// New constructs the vault service.
func New(cfg Config, store storage.VaultStore, native ledger.NativeLedger, token ledger.TokenLedger, log *logger.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("vault config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("vault store is required")
	}
	if native == nil || token == nil {
		return nil, fmt.Errorf("both ledger collaborators are required")
	}
	if log == nil {
		log = logger.NewDefault("vault")
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		native:   native,
		token:    token,
		verifier: NewVerifier(cfg.Context),
		log:      log,
		now:      time.Now,
	}, nil
}

// Bootstrap seeds the initial capability assignments if the store holds no
// state yet. Later grants go through Grant.
func (s *Service) Bootstrap(ctx context.Context, grants map[vault.Address][]vault.Capability) error {
	initial := vault.NewState()
	for account, caps := range grants {
		for _, c := range caps {
			if !vault.KnownCapability(c) {
				return fmt.Errorf("unknown capability %q", c)
			}
			initial.Grant(account, c)
		}
	}
	if _, err := s.store.EnsureState(ctx, initial); err != nil {
		return fmt.Errorf("bootstrap vault state: %w", err)
	}
	return nil
}

// enter acquires the vault's execution slot. The returned context is marked
// so any nested call arriving through an outbound ledger transfer is
// rejected instead of deadlocking; the release func must run on every exit
// path.
func (s *Service) enter(ctx context.Context) (context.Context, func(), error) {
	if owner, ok := ctx.Value(guardKey{}).(*Service); ok && owner == s {
		return nil, nil, vault.ErrReentrantCall
	}
	s.mu.Lock()
	return context.WithValue(ctx, guardKey{}, s), s.mu.Unlock, nil
}

// SigningContext returns the execution-context binding used by the verifier.
func (s *Service) SigningContext() vault.SigningContext {
	return s.verifier.Context()
}

// FeeConfig returns the fixed fee configuration.
func (s *Service) FeeConfig() vault.FeeConfig { return s.cfg.Fees }

// CurrentNonce returns the next nonce a withdrawal authorization must carry.
func (s *Service) CurrentNonce(ctx context.Context) (uint64, error) {
	state, err := s.store.State(ctx)
	if err != nil {
		return 0, err
	}
	return state.Nonce, nil
}

// Paused reports the pause switch state.
func (s *Service) Paused(ctx context.Context) (bool, error) {
	state, err := s.store.State(ctx)
	if err != nil {
		return false, err
	}
	return state.Paused, nil
}

// HasCapability reports whether the account holds the capability.
func (s *Service) HasCapability(ctx context.Context, account vault.Address, c vault.Capability) (bool, error) {
	state, err := s.store.State(ctx)
	if err != nil {
		return false, err
	}
	return state.Has(account, c), nil
}

// CustodyBalances returns the pooled holdings of each asset class as
// reported by the ledger collaborators.
func (s *Service) CustodyBalances(ctx context.Context) (native, token *big.Int, err error) {
	native, err = s.native.BalanceOf(ctx, s.cfg.Context.VaultAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("native custody balance: %w", err)
	}
	token, err = s.token.BalanceOf(ctx, s.cfg.Context.VaultAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("token custody balance: %w", err)
	}
	return native, token, nil
}

// Events returns the most recent committed operations, newest first.
func (s *Service) Events(ctx context.Context, limit int) ([]vault.Event, error) {
	return s.store.ListEvents(ctx, limit)
}

// DepositNative accepts a native-asset deposit from the caller. The fee
// portion is forwarded to treasury immediately; the net remains in custody.
func (s *Service) DepositNative(ctx context.Context, caller vault.Address, amount *big.Int) (vault.Event, error) {
	evt, err := s.deposit(ctx, caller, amount, vault.EventDepositNative)
	if err != nil {
		metrics.RecordFailure("deposit_native", failureReason(err))
		return vault.Event{}, err
	}
	metrics.RecordDeposit("native")
	return evt, nil
}

// DepositAsset accepts a fungible-asset deposit, pulling the net into
// custody and the fee into treasury through the ledger's transfer-on-behalf
// primitive.
func (s *Service) DepositAsset(ctx context.Context, caller vault.Address, amount *big.Int) (vault.Event, error) {
	evt, err := s.deposit(ctx, caller, amount, vault.EventDepositAsset)
	if err != nil {
		metrics.RecordFailure("deposit_asset", failureReason(err))
		return vault.Event{}, err
	}
	metrics.RecordDeposit("token")
	return evt, nil
}

func (s *Service) deposit(ctx context.Context, caller vault.Address, amount *big.Int, kind vault.EventKind) (vault.Event, error) {
	ctx, release, err := s.enter(ctx)
	if err != nil {
		return vault.Event{}, err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return vault.Event{}, vault.ErrInvalidAmount
	}

	var evt vault.Event
	err = s.store.Atomically(ctx, func(tx storage.VaultTx) error {
		if tx.State().Paused {
			return vault.ErrPaused
		}

		net, fee := s.cfg.Fees.Split(amount)
		if err := s.collect(ctx, kind, caller, net, fee); err != nil {
			return err
		}

		evt = vault.Event{
			Kind:    kind,
			Account: caller,
			Amount:  net.String(),
			Fee:     fee.String(),
		}
		tx.AppendEvent(evt)
		return nil
	})
	if err != nil {
		return vault.Event{}, err
	}

	s.log.WithField("account", caller.Hex()).
		WithField("net", evt.Amount).
		WithField("fee", evt.Fee).
		Infof("%s committed", kind)
	return evt, nil
}

// collect moves the deposit through the appropriate ledger. Both asset
// classes land as two movements (net to custody, fee to treasury); if the
// second movement fails the first is compensated before the operation
// aborts, so a failed deposit leaves both ledgers untouched.
func (s *Service) collect(ctx context.Context, kind vault.EventKind, caller vault.Address, net, fee *big.Int) error {
	custody := s.cfg.Context.VaultAddress
	treasury := s.cfg.Fees.Treasury

	switch kind {
	case vault.EventDepositNative:
		amount := new(big.Int).Add(net, fee)
		if err := s.native.Transfer(ctx, caller, custody, amount); err != nil {
			return fmt.Errorf("%w: native deposit: %v", vault.ErrTransferFailed, err)
		}
		if fee.Sign() > 0 {
			if err := s.native.Transfer(ctx, custody, treasury, fee); err != nil {
				if rbErr := s.native.Transfer(ctx, custody, caller, amount); rbErr != nil {
					s.log.WithError(rbErr).Error("compensating native deposit refund failed")
				}
				return fmt.Errorf("%w: forward fee to treasury: %v", vault.ErrTransferFailed, err)
			}
		}
	case vault.EventDepositAsset:
		if err := s.token.TransferFrom(ctx, caller, custody, net); err != nil {
			return fmt.Errorf("%w: pull deposit: %v", vault.ErrTransferFailed, err)
		}
		if fee.Sign() > 0 {
			if err := s.token.TransferFrom(ctx, caller, treasury, fee); err != nil {
				if rbErr := s.token.Transfer(ctx, custody, caller, net); rbErr != nil {
					s.log.WithError(rbErr).Error("compensating token deposit refund failed")
				}
				return fmt.Errorf("%w: pull fee to treasury: %v", vault.ErrTransferFailed, err)
			}
		}
	default:
		return fmt.Errorf("unsupported deposit kind %q", kind)
	}
	return nil
}

// Withdraw releases amount from custody to the caller against a signed
// authorization. Validation order is fixed: amount, deadline, pause state,
// nonce consumption, signature recovery, signer capability, transfer. Any
// failure discards every tentative effect, including the consumed nonce.
func (s *Service) Withdraw(ctx context.Context, caller vault.Address, amount *big.Int, deadline time.Time, signature []byte) (vault.Event, error) {
	evt, err := s.withdraw(ctx, caller, amount, deadline, signature)
	if err != nil {
		metrics.RecordFailure("withdraw", failureReason(err))
		return vault.Event{}, err
	}
	metrics.RecordWithdrawal(*evt.Nonce)
	return evt, nil
}

func (s *Service) withdraw(ctx context.Context, caller vault.Address, amount *big.Int, deadline time.Time, signature []byte) (vault.Event, error) {
	ctx, release, err := s.enter(ctx)
	if err != nil {
		return vault.Event{}, err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return vault.Event{}, vault.ErrInvalidAmount
	}
	if s.now().After(deadline) {
		return vault.Event{}, vault.ErrDeadlineExpired
	}

	var evt vault.Event
	err = s.store.Atomically(ctx, func(tx storage.VaultTx) error {
		state := tx.State()
		if state.Paused {
			return vault.ErrPaused
		}

		// Tentative nonce consumption. Discarded with the rest of the
		// staged state on any later failure.
		nonce := state.Nonce
		state.Nonce = nonce + 1

		signer, err := s.verifier.Recover(vault.Authorization{
			Requester: caller,
			Amount:    amount,
			Deadline:  deadline,
			Nonce:     nonce,
		}, signature)
		if err != nil {
			return err
		}
		if !state.Has(signer, vault.CapabilityAuthorizeWithdrawal) {
			return fmt.Errorf("%w: signer %s lacks withdrawal authority", vault.ErrInvalidSignature, signer)
		}

		if err := s.token.Transfer(ctx, s.cfg.Context.VaultAddress, caller, amount); err != nil {
			return fmt.Errorf("%w: release to %s: %v", vault.ErrTransferFailed, caller, err)
		}

		evt = vault.Event{
			Kind:    vault.EventWithdrawal,
			Account: caller,
			Amount:  amount.String(),
			Nonce:   &nonce,
		}
		tx.AppendEvent(evt)
		return nil
	})
	if err != nil {
		return vault.Event{}, err
	}

	s.log.WithField("account", caller.Hex()).
		WithField("amount", evt.Amount).
		WithField("nonce", *evt.Nonce).
		Info("withdrawal committed")
	return evt, nil
}

// TreasurySweep moves native custody to the treasury account. Requires the
// ManageTreasury capability and is independent of the withdrawal nonce and
// signature machinery.
func (s *Service) TreasurySweep(ctx context.Context, caller vault.Address, amount *big.Int) (vault.Event, error) {
	ctx, release, err := s.enter(ctx)
	if err != nil {
		metrics.RecordFailure("treasury_sweep", failureReason(err))
		return vault.Event{}, err
	}
	defer release()

	fail := func(err error) (vault.Event, error) {
		metrics.RecordFailure("treasury_sweep", failureReason(err))
		return vault.Event{}, err
	}

	if amount == nil || amount.Sign() <= 0 {
		return fail(vault.ErrInvalidAmount)
	}

	var evt vault.Event
	err = s.store.Atomically(ctx, func(tx storage.VaultTx) error {
		if !tx.State().Has(caller, vault.CapabilityManageTreasury) {
			return vault.ErrUnauthorized
		}
		if err := s.native.Transfer(ctx, s.cfg.Context.VaultAddress, s.cfg.Fees.Treasury, amount); err != nil {
			return fmt.Errorf("%w: sweep to treasury: %v", vault.ErrTransferFailed, err)
		}
		evt = vault.Event{
			Kind:    vault.EventTreasurySweep,
			Account: caller,
			Amount:  amount.String(),
		}
		tx.AppendEvent(evt)
		return nil
	})
	if err != nil {
		return fail(err)
	}

	s.log.WithField("account", caller.Hex()).
		WithField("amount", evt.Amount).
		Info("treasury sweep committed")
	return evt, nil
}

// Pause halts every deposit and withdrawal operation. Idempotent.
func (s *Service) Pause(ctx context.Context, caller vault.Address) error {
	return s.setPaused(ctx, caller, true)
}

// Unpause re-activates the vault. Idempotent.
func (s *Service) Unpause(ctx context.Context, caller vault.Address) error {
	return s.setPaused(ctx, caller, false)
}

func (s *Service) setPaused(ctx context.Context, caller vault.Address, paused bool) error {
	ctx, release, err := s.enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	err = s.store.Atomically(ctx, func(tx storage.VaultTx) error {
		state := tx.State()
		if !state.Has(caller, vault.CapabilityAdminister) {
			return vault.ErrUnauthorized
		}
		state.Paused = paused
		return nil
	})
	if err != nil {
		metrics.RecordFailure("set_paused", failureReason(err))
		return err
	}

	s.log.WithField("account", caller.Hex()).Infof("pause switch set to %t", paused)
	return nil
}

// Grant assigns a capability to an account. Administer-gated.
func (s *Service) Grant(ctx context.Context, caller, account vault.Address, c vault.Capability) error {
	return s.mutateCapability(ctx, caller, account, c, true)
}

// Revoke removes a capability from an account. Administer-gated.
func (s *Service) Revoke(ctx context.Context, caller, account vault.Address, c vault.Capability) error {
	return s.mutateCapability(ctx, caller, account, c, false)
}

func (s *Service) mutateCapability(ctx context.Context, caller, account vault.Address, c vault.Capability, grant bool) error {
	ctx, release, err := s.enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if !vault.KnownCapability(c) {
		return fmt.Errorf("unknown capability %q", c)
	}
	if account.IsZero() {
		return fmt.Errorf("cannot assign capabilities to the zero address")
	}

	err = s.store.Atomically(ctx, func(tx storage.VaultTx) error {
		state := tx.State()
		if !state.Has(caller, vault.CapabilityAdminister) {
			return vault.ErrUnauthorized
		}
		if grant {
			state.Grant(account, c)
		} else {
			state.Revoke(account, c)
		}
		return nil
	})
	if err != nil {
		metrics.RecordFailure("capability", failureReason(err))
		return err
	}

	verb := "revoked from"
	if grant {
		verb = "granted to"
	}
	s.log.WithField("admin", caller.Hex()).
		WithField("account", account.Hex()).
		Infof("capability %s %s account", c, verb)
	return nil
}

// failureReason maps a taxonomy error onto its metrics label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, vault.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, vault.ErrDeadlineExpired):
		return "deadline_expired"
	case errors.Is(err, vault.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, vault.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, vault.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, vault.ErrPaused):
		return "paused"
	case errors.Is(err, vault.ErrReentrantCall):
		return "reentrant_call"
	default:
		return "internal"
	}
}
