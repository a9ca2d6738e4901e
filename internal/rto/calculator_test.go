package rto

import (
	"testing"
	"time"

	"github.com/lendaround/lendaround-backend/pkg/enums"
	pkgerrors "github.com/lendaround/lendaround-backend/pkg/errors"
)

func TestComputePaymentAmountEvenSplit(t *testing.T) {
	// 1200.00 at 50% over 12 payments: 100.00 equity per payment grossed
	// up to a 200.00 payment.
	amount, err := ComputePaymentAmountCents(120000, 50, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 20000 {
		t.Fatalf("amount = %d, want 20000", amount)
	}
}

func TestComputePaymentAmountInvalidTerms(t *testing.T) {
	cases := []struct {
		name  string
		price int64
		pct   int
		n     int
	}{
		{"zero price", 0, 50, 12},
		{"negative price", -100, 50, 12},
		{"zero percent", 120000, 0, 12},
		{"percent over 100", 120000, 101, 12},
		{"zero payments", 120000, 50, 0},
		{"negative payments", 120000, 50, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ComputePaymentAmountCents(tc.price, tc.pct, tc.n); !pkgerrors.Is(err, pkgerrors.CodeInvalidTerms) {
				t.Fatalf("expected invalid terms error, got %v", err)
			}
		})
	}
}

func TestSplitPaymentEven(t *testing.T) {
	equity, rental, err := SplitPayment(20000, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if equity != 10000 || rental != 10000 {
		t.Fatalf("split = %d/%d, want 10000/10000", equity, rental)
	}
}

func TestSplitPaymentResidualGoesToRental(t *testing.T) {
	// 66.67 at 50%: the half cent cannot go to equity.
	equity, rental, err := SplitPayment(6667, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if equity != 3333 {
		t.Errorf("equity = %d, want 3333", equity)
	}
	if rental != 3334 {
		t.Errorf("rental = %d, want 3334", rental)
	}
	if equity+rental != 6667 {
		t.Errorf("split does not reconcile: %d + %d", equity, rental)
	}
}

func TestBuildScheduleFixedGaps(t *testing.T) {
	first := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	weekly, err := BuildSchedule(first, enums.PaymentFrequencyWeekly, 6)
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}
	if len(weekly) != 6 {
		t.Fatalf("weekly len = %d, want 6", len(weekly))
	}
	for i := 1; i < len(weekly); i++ {
		if gap := weekly[i].Sub(weekly[i-1]); gap != 7*24*time.Hour {
			t.Errorf("weekly gap %d = %s", i, gap)
		}
	}

	biweekly, err := BuildSchedule(first, enums.PaymentFrequencyBiweekly, 4)
	if err != nil {
		t.Fatalf("biweekly: %v", err)
	}
	for i := 1; i < len(biweekly); i++ {
		if gap := biweekly[i].Sub(biweekly[i-1]); gap != 14*24*time.Hour {
			t.Errorf("biweekly gap %d = %s", i, gap)
		}
	}
}

func TestBuildScheduleMonthlyPreservesDayOfMonth(t *testing.T) {
	first := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	dates, err := BuildSchedule(first, enums.PaymentFrequencyMonthly, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, d := range dates {
		if d.Day() != 15 {
			t.Errorf("date %d = %s, want day 15", i, d)
		}
		want := time.March + time.Month(i)
		if d.Month() != want {
			t.Errorf("date %d month = %s, want %s", i, d.Month(), want)
		}
	}
}

func TestBuildScheduleMonthlyClampsShortMonths(t *testing.T) {
	// Jan 31 anchor: February clamps to its last day, March recovers the 31st.
	first := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
	dates, err := BuildSchedule(first, enums.PaymentFrequencyMonthly, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Time{
		time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.April, 30, 0, 0, 0, 0, time.UTC),
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Errorf("date %d = %s, want %s", i, dates[i], want[i])
		}
	}
}

func TestAmortizeEvenScenario(t *testing.T) {
	terms := Terms{
		PurchasePriceCents: 120000,
		RentalCreditPct:    50,
		TotalPayments:      12,
		PaymentFrequency:   enums.PaymentFrequencyMonthly,
		FirstPaymentDate:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	}
	rows, err := Amortize(terms)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 12 {
		t.Fatalf("len = %d, want 12", len(rows))
	}
	for _, row := range rows {
		if row.AmountCents != 20000 || row.EquityCents != 10000 || row.RentalCents != 10000 {
			t.Errorf("row %d = %d/%d/%d, want 20000/10000/10000",
				row.Number, row.AmountCents, row.EquityCents, row.RentalCents)
		}
	}
}

func TestAmortizeResidualScenario(t *testing.T) {
	// 100.00 over 3 payments at 50%: 33.33 + 33.33 + 33.34 equity.
	terms := Terms{
		PurchasePriceCents: 10000,
		RentalCreditPct:    50,
		TotalPayments:      3,
		PaymentFrequency:   enums.PaymentFrequencyWeekly,
		FirstPaymentDate:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	}
	rows, err := Amortize(terms)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantEquity := []int64{3333, 3333, 3334}
	var sum int64
	for i, row := range rows {
		if row.EquityCents != wantEquity[i] {
			t.Errorf("row %d equity = %d, want %d", row.Number, row.EquityCents, wantEquity[i])
		}
		if row.AmountCents != 6667 {
			t.Errorf("row %d amount = %d, want 6667", row.Number, row.AmountCents)
		}
		sum += row.EquityCents
	}
	if sum != terms.PurchasePriceCents {
		t.Errorf("equity sum = %d, want %d", sum, terms.PurchasePriceCents)
	}
}

func TestAmortizeReconciliation(t *testing.T) {
	cases := []struct {
		price int64
		pct   int
		n     int
	}{
		{120000, 50, 12},
		{10000, 50, 3},
		{99999, 33, 7},
		{123457, 17, 11},
		{50, 100, 3},
	}
	first := time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC)
	for _, tc := range cases {
		terms := Terms{
			PurchasePriceCents: tc.price,
			RentalCreditPct:    tc.pct,
			TotalPayments:      tc.n,
			PaymentFrequency:   enums.PaymentFrequencyBiweekly,
			FirstPaymentDate:   first,
		}
		rows, err := Amortize(terms)
		if err != nil {
			t.Fatalf("amortize %+v: %v", tc, err)
		}
		var equitySum, amountSum, splitSum int64
		for i, row := range rows {
			equitySum += row.EquityCents
			amountSum += row.AmountCents
			splitSum += row.EquityCents + row.RentalCents
			if i > 0 && !rows[i].DueDate.After(rows[i-1].DueDate) {
				t.Errorf("%+v: due dates not strictly increasing at %d", tc, i)
			}
		}
		if equitySum != tc.price {
			t.Errorf("%+v: equity sum = %d, want %d", tc, equitySum, tc.price)
		}
		if amountSum != splitSum {
			t.Errorf("%+v: amount sum %d != split sum %d", tc, amountSum, splitSum)
		}
	}
}
