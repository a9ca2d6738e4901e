package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/lendaround/lendaround-backend/internal/contracts"
	"github.com/lendaround/lendaround-backend/pkg/db/models"
	pkgerrors "github.com/lendaround/lendaround-backend/pkg/errors"
	"github.com/lendaround/lendaround-backend/pkg/logger"
)

type overdueContractReader interface {
	FindActiveWithPaymentDueBefore(ctx context.Context, cutoff time.Time) ([]models.RTOContract, error)
}

type nextDueReader interface {
	NextDue(ctx context.Context, contractID uuid.UUID) (*models.RTOPayment, error)
}

type contractDefaulter interface {
	MarkDefaulted(ctx context.Context, contractID uuid.UUID) (*contracts.View, error)
}

// ContractDefaultJobParams configure the overdue contract sweep.
type ContractDefaultJobParams struct {
	Logger    *logger.Logger
	Contracts overdueContractReader
	Ledger    nextDueReader
	Defaulter contractDefaulter
}

// NewContractDefaultJob builds the cron job that defaults contracts whose
// next installment sat unpaid past the grace window.
func NewContractDefaultJob(params ContractDefaultJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Contracts == nil {
		return nil, fmt.Errorf("contract reader required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger reader required")
	}
	if params.Defaulter == nil {
		return nil, fmt.Errorf("contract defaulter required")
	}
	return &contractDefaultJob{
		logg:      params.Logger,
		contracts: params.Contracts,
		ledger:    params.Ledger,
		defaulter: params.Defaulter,
		now:       time.Now,
	}, nil
}

type contractDefaultJob struct {
	logg      *logger.Logger
	contracts overdueContractReader
	ledger    nextDueReader
	defaulter contractDefaulter
	now       func() time.Time
}

func (j *contractDefaultJob) Name() string { return "contract-default" }

// Run scans active contracts with any overdue installment, then applies each
// contract's own grace window before defaulting it. The grace period was
// snapshotted on the contract at creation, so the cutoff is per contract.
func (j *contractDefaultJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	candidates, err := j.contracts.FindActiveWithPaymentDueBefore(ctx, now)
	if err != nil {
		return fmt.Errorf("query overdue contracts: %w", err)
	}

	var errs []error
	defaulted := 0
	for _, contract := range candidates {
		ok, err := j.sweepContract(ctx, contract, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("contract %s: %w", contract.ID, err))
			continue
		}
		if ok {
			defaulted++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"defaulted":  defaulted,
	})
	j.logg.Info(logCtx, "contract default sweep complete")
	return multierr.Combine(errs...)
}

func (j *contractDefaultJob) sweepContract(ctx context.Context, contract models.RTOContract, now time.Time) (bool, error) {
	next, err := j.ledger.NextDue(ctx, contract.ID)
	if err != nil {
		return false, err
	}
	if next == nil {
		return false, nil
	}
	deadline := next.DueDate.Add(time.Duration(contract.GracePeriodDays) * 24 * time.Hour)
	if !now.After(deadline) {
		return false, nil
	}
	if _, err := j.defaulter.MarkDefaulted(ctx, contract.ID); err != nil {
		// A concurrent pay or cancel resolved the contract first.
		if pkgerrors.Is(err, pkgerrors.CodeInvalidState) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
