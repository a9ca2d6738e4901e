package rto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lendaround/lendaround-backend/pkg/enums"
	pkgerrors "github.com/lendaround/lendaround-backend/pkg/errors"
)

// Installment is one row of a computed amortization schedule.
type Installment struct {
	Number      int
	DueDate     time.Time
	AmountCents int64
	EquityCents int64
	RentalCents int64
}

// Terms are the immutable contract inputs the calculator works from.
type Terms struct {
	PurchasePriceCents int64
	RentalCreditPct    int
	TotalPayments      int
	PaymentFrequency   enums.PaymentFrequency
	FirstPaymentDate   time.Time
}

var hundred = decimal.NewFromInt(100)

func validateTerms(purchasePriceCents int64, rentalCreditPct, totalPayments int) error {
	if purchasePriceCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidTerms, "purchase price must be positive")
	}
	if rentalCreditPct <= 0 || rentalCreditPct > 100 {
		return pkgerrors.New(pkgerrors.CodeInvalidTerms, "rental credit percent must be between 1 and 100")
	}
	if totalPayments <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidTerms, "total payments must be positive")
	}
	return nil
}

// ComputePaymentAmountCents derives the uniform per-payment amount:
// equityPerPayment = purchasePrice / totalPayments, then grossed up by the
// rental credit percent. Division is done in decimal and banker-rounded to a
// whole cent at the very end.
func ComputePaymentAmountCents(purchasePriceCents int64, rentalCreditPct, totalPayments int) (int64, error) {
	if err := validateTerms(purchasePriceCents, rentalCreditPct, totalPayments); err != nil {
		return 0, err
	}
	amount := decimal.NewFromInt(purchasePriceCents).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(rentalCreditPct)).Mul(decimal.NewFromInt(int64(totalPayments)))).
		RoundBank(0)
	return amount.IntPart(), nil
}

// SplitPayment divides one payment into its equity and rental portions. The
// equity portion is rounded down so it never exceeds the stated percent; the
// residual cent always lands on the rental side.
func SplitPayment(paymentAmountCents int64, rentalCreditPct int) (equityCents, rentalCents int64, err error) {
	if paymentAmountCents <= 0 {
		return 0, 0, pkgerrors.New(pkgerrors.CodeInvalidTerms, "payment amount must be positive")
	}
	if rentalCreditPct <= 0 || rentalCreditPct > 100 {
		return 0, 0, pkgerrors.New(pkgerrors.CodeInvalidTerms, "rental credit percent must be between 1 and 100")
	}
	equity := decimal.NewFromInt(paymentAmountCents).
		Mul(decimal.NewFromInt(int64(rentalCreditPct))).
		Div(hundred).
		RoundDown(0).
		IntPart()
	return equity, paymentAmountCents - equity, nil
}

// BuildSchedule generates totalPayments due dates anchored on the first
// payment date. Weekly and biweekly cadences advance by a fixed day count;
// monthly preserves the anchor's day-of-month, clamped when the target month
// is shorter (Jan 31 -> Feb 28 -> Mar 31).
func BuildSchedule(first time.Time, frequency enums.PaymentFrequency, totalPayments int) ([]time.Time, error) {
	if totalPayments <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTerms, "total payments must be positive")
	}
	if !frequency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTerms, "invalid payment frequency")
	}

	dates := make([]time.Time, 0, totalPayments)
	for i := 0; i < totalPayments; i++ {
		if frequency == enums.PaymentFrequencyMonthly {
			dates = append(dates, addMonthsClamped(first, i))
			continue
		}
		dates = append(dates, first.AddDate(0, 0, i*frequency.Days()))
	}
	return dates, nil
}

// addMonthsClamped adds months without the day-overflow normalization of
// time.AddDate: the anchor's day-of-month is kept and clamped to the target
// month's last day.
func addMonthsClamped(anchor time.Time, months int) time.Time {
	year, month, day := anchor.Date()
	target := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, anchor.Location())
	if last := daysInMonth(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day,
		anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), anchor.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Amortize produces the full installment schedule for the given terms. Every
// installment carries the same total amount; the first n-1 carry a uniform
// equity portion and the final installment absorbs the rounding residual so
// equity reconciles to the purchase price exactly.
func Amortize(terms Terms) ([]Installment, error) {
	if err := validateTerms(terms.PurchasePriceCents, terms.RentalCreditPct, terms.TotalPayments); err != nil {
		return nil, err
	}

	amount, err := ComputePaymentAmountCents(terms.PurchasePriceCents, terms.RentalCreditPct, terms.TotalPayments)
	if err != nil {
		return nil, err
	}
	dates, err := BuildSchedule(terms.FirstPaymentDate, terms.PaymentFrequency, terms.TotalPayments)
	if err != nil {
		return nil, err
	}

	equityPer := decimal.NewFromInt(terms.PurchasePriceCents).
		Div(decimal.NewFromInt(int64(terms.TotalPayments))).
		RoundBank(0).
		IntPart()

	n := terms.TotalPayments
	installments := make([]Installment, 0, n)
	for i := 1; i <= n; i++ {
		equity := equityPer
		if i == n {
			equity = terms.PurchasePriceCents - equityPer*int64(n-1)
		}
		installments = append(installments, Installment{
			Number:      i,
			DueDate:     dates[i-1],
			AmountCents: amount,
			EquityCents: equity,
			RentalCents: amount - equity,
		})
	}
	return installments, nil
}
