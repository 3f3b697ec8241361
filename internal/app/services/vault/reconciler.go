package vault

import (
	"context"
	"math/big"

	"github.com/robfig/cron/v3"

	"github.com/OpenCustody-Network/vault_layer/internal/app/metrics"
	"github.com/OpenCustody-Network/vault_layer/internal/app/system"
	"github.com/OpenCustody-Network/vault_layer/pkg/logger"
)

// Reconciler periodically republishes custody balances and the nonce gauge
// from the authoritative sources. It observes only; the ledgers stay the
// single source of truth for balances.
type Reconciler struct {
	svc      *Service
	schedule string
	log      *logger.Logger
	cron     *cron.Cron
}

var _ system.Service = (*Reconciler)(nil)

// NewReconciler builds a reconciler on a cron schedule ("@every 30s" when
// empty).
func NewReconciler(svc *Service, schedule string, log *logger.Logger) *Reconciler {
	if schedule == "" {
		schedule = "@every 30s"
	}
	if log == nil {
		log = logger.NewDefault("vault-reconciler")
	}
	return &Reconciler{svc: svc, schedule: schedule, log: log}
}

func (r *Reconciler) Name() string { return "vault-reconciler" }

func (r *Reconciler) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() { r.tick(ctx) }); err != nil {
		return err
	}
	c.Start()
	r.cron = c
	r.log.Infof("custody reconciler started (%s)", r.schedule)
	return nil
}

func (r *Reconciler) Stop(context.Context) error {
	if r.cron != nil {
		<-r.cron.Stop().Done()
		r.cron = nil
	}
	return nil
}

func (r *Reconciler) tick(ctx context.Context) {
	native, token, err := r.svc.CustodyBalances(ctx)
	if err != nil {
		r.log.WithError(err).Warn("custody reconciliation failed")
		return
	}
	metrics.SetCustodyBalance("native", approximate(native))
	metrics.SetCustodyBalance("token", approximate(token))
}

func approximate(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
