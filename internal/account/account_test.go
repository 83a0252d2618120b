package account

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"papertrade/internal/cost"
	"papertrade/internal/domain"
)

// zeroFees is a schedule with every rate and floor at zero.
var zeroFees = cost.Schedule{}

func newTestAccount(t *testing.T, balance float64, s cost.Schedule) *Account {
	t.Helper()
	return New("test", balance, cost.NewCalculator(s))
}

// checkInvariant verifies available == balance − frozen.
func checkInvariant(t *testing.T, a *Account) {
	t.Helper()
	info := a.Snapshot()
	if math.Abs(info.Available-(info.Balance-info.Frozen)) > 1e-9 {
		t.Fatalf("invariant broken: available %v != balance %v - frozen %v", info.Available, info.Balance, info.Frozen)
	}
}

func TestFreezeAndRelease(t *testing.T) {
	a := newTestAccount(t, 10000, zeroFees)

	if err := a.Freeze(4000); err != nil {
		t.Fatalf("Freeze(4000) error: %v", err)
	}
	if got := a.Available(); got != 6000 {
		t.Errorf("Available = %v, want 6000", got)
	}
	checkInvariant(t, a)

	if err := a.Freeze(7000); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Freeze(7000) error = %v, want ErrInsufficientFunds", err)
	}

	a.Release(4000)
	if got := a.Available(); got != 10000 {
		t.Errorf("Available after release = %v, want 10000", got)
	}
	checkInvariant(t, a)
}

func TestRoundTripAtSamePriceZeroFees(t *testing.T) {
	a := newTestAccount(t, 100000, zeroFees)

	if err := a.Freeze(10 * 100); err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.ApplyFill("600519", domain.VenueSSE, domain.DirectionLong, domain.OffsetOpen, 10, 100); err != nil {
		t.Fatal(err)
	}
	if _, pnl, err := a.ApplyFill("600519", domain.VenueSSE, domain.DirectionShort, domain.OffsetClose, 10, 100); err != nil {
		t.Fatal(err)
	} else if pnl != 0 {
		t.Errorf("pnl = %v, want 0", pnl)
	}

	if got := a.Balance(); math.Abs(got-100000) > 1e-9 {
		t.Errorf("Balance after zero-fee round trip = %v, want 100000", got)
	}
	checkInvariant(t, a)
}

func TestScenarioBuyThenSell(t *testing.T) {
	// Initial 100,000; buy 100 @ 10.00 with only the 5.00 minimum commission;
	// available must be 100,000 − 1,000 − 5 = 98,995. Then sell 100 @ 12.00:
	// realized P&L 200 before fees.
	s := cost.Schedule{CommissionRate: 0.0003, MinCommission: 5.0, TaxRate: 0.001}
	a := newTestAccount(t, 100000, s)

	if err := a.Freeze(1000); err != nil {
		t.Fatal(err)
	}
	buy, _, err := a.ApplyFill("000001", domain.VenueSZSE, domain.DirectionLong, domain.OffsetOpen, 10, 100)
	if err != nil {
		t.Fatal(err)
	}
	if buy.Commission != 5 {
		t.Errorf("buy commission = %v, want 5 (minimum)", buy.Commission)
	}
	if got := a.Available(); math.Abs(got-98995) > 1e-9 {
		t.Errorf("Available after buy = %v, want 98995", got)
	}
	checkInvariant(t, a)

	sell, pnl, err := a.ApplyFill("000001", domain.VenueSZSE, domain.DirectionShort, domain.OffsetClose, 12, 100)
	if err != nil {
		t.Fatal(err)
	}
	if pnl != 200 {
		t.Errorf("realized pnl = %v, want 200", pnl)
	}

	wantBalance := 100000 - 1000 - buy.TotalCost + 1200 - sell.TotalCost
	if got := a.Balance(); math.Abs(got-wantBalance) > 1e-9 {
		t.Errorf("Balance = %v, want %v", got, wantBalance)
	}
	checkInvariant(t, a)

	info := a.Snapshot()
	if info.RealizedPnL != 200 {
		t.Errorf("RealizedPnL = %v, want 200", info.RealizedPnL)
	}
	if info.CommissionPaid != buy.Commission+sell.Commission {
		t.Errorf("CommissionPaid = %v, want %v", info.CommissionPaid, buy.Commission+sell.Commission)
	}
}

func TestWeightedAveragePriceProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 20; run++ {
		a := newTestAccount(t, 1e9, zeroFees)

		var totalAmount float64
		var totalVolume int64
		fills := 2 + rng.Intn(8)
		for i := 0; i < fills; i++ {
			price := 5 + rng.Float64()*45
			volume := int64(100 * (1 + rng.Intn(10)))

			if err := a.Freeze(price * float64(volume)); err != nil {
				t.Fatal(err)
			}
			if _, _, err := a.ApplyFill("600000", domain.VenueSSE, domain.DirectionLong, domain.OffsetOpen, price, volume); err != nil {
				t.Fatal(err)
			}
			totalAmount += price * float64(volume)
			totalVolume += volume
		}

		pos, ok := a.Position("600000")
		if !ok {
			t.Fatal("position not found after opening fills")
		}
		want := totalAmount / float64(totalVolume)
		if math.Abs(pos.AvgPrice-want) > 1e-9 {
			t.Errorf("run %d: AvgPrice = %v, want %v", run, pos.AvgPrice, want)
		}
		checkInvariant(t, a)
	}
}

func TestCloseMoreThanHeld(t *testing.T) {
	a := newTestAccount(t, 100000, zeroFees)

	if err := a.Freeze(1000); err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.ApplyFill("600000", domain.VenueSSE, domain.DirectionLong, domain.OffsetOpen, 10, 100); err != nil {
		t.Fatal(err)
	}

	before := a.Snapshot()
	_, _, err := a.ApplyFill("600000", domain.VenueSSE, domain.DirectionShort, domain.OffsetClose, 10, 200)
	if !errors.Is(err, ErrInsufficientPosition) {
		t.Fatalf("error = %v, want ErrInsufficientPosition", err)
	}
	after := a.Snapshot()
	if before.Balance != after.Balance || before.Frozen != after.Frozen {
		t.Error("rejected close mutated the ledger")
	}
}

func TestPositionZeroedAfterFullClose(t *testing.T) {
	a := newTestAccount(t, 100000, zeroFees)

	if err := a.Freeze(1000); err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.ApplyFill("600000", domain.VenueSSE, domain.DirectionLong, domain.OffsetOpen, 10, 100); err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.ApplyFill("600000", domain.VenueSSE, domain.DirectionShort, domain.OffsetClose, 11, 100); err != nil {
		t.Fatal(err)
	}

	if _, ok := a.Position("600000"); ok {
		t.Error("Position still reported after full close")
	}
	if got := a.Snapshot().PositionCount; got != 0 {
		t.Errorf("PositionCount = %d, want 0", got)
	}
}

func TestDepositWithdrawDividend(t *testing.T) {
	a := newTestAccount(t, 1000, zeroFees)

	if err := a.Deposit(500); err != nil {
		t.Fatal(err)
	}
	if got := a.Balance(); got != 1500 {
		t.Errorf("Balance after deposit = %v, want 1500", got)
	}

	if err := a.Withdraw(2000); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Withdraw(2000) error = %v, want ErrInsufficientFunds", err)
	}
	if err := a.Withdraw(300); err != nil {
		t.Fatal(err)
	}
	if err := a.Dividend("600519", 50); err != nil {
		t.Fatal(err)
	}
	if got := a.Balance(); got != 1250 {
		t.Errorf("Balance = %v, want 1250", got)
	}

	if err := a.Deposit(-1); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Deposit(-1) error = %v, want ErrInvalidAmount", err)
	}

	history := a.History()
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[0].Type != "deposit" || history[1].Type != "withdraw" || history[2].Type != "dividend" {
		t.Errorf("history types = %v %v %v", history[0].Type, history[1].Type, history[2].Type)
	}
	checkInvariant(t, a)
}

func TestUpdatePriceMarksPosition(t *testing.T) {
	a := newTestAccount(t, 100000, zeroFees)

	if err := a.Freeze(1000); err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.ApplyFill("600000", domain.VenueSSE, domain.DirectionLong, domain.OffsetOpen, 10, 100); err != nil {
		t.Fatal(err)
	}

	a.UpdatePrice("600000", 12.5)
	pos, _ := a.Position("600000")
	if pos.CurrentPrice != 12.5 {
		t.Errorf("CurrentPrice = %v, want 12.5", pos.CurrentPrice)
	}
	if pos.Profit != 250 {
		t.Errorf("Profit = %v, want 250", pos.Profit)
	}
	if math.Abs(pos.ProfitRatio-0.25) > 1e-9 {
		t.Errorf("ProfitRatio = %v, want 0.25", pos.ProfitRatio)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(cost.NewCalculator(zeroFees))

	if _, err := r.Create("alpha", 100000); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Create("alpha", 50000); err == nil {
		t.Error("duplicate Create succeeded, want error")
	}
	if _, err := r.Create("beta", -1); err == nil {
		t.Error("Create with negative balance succeeded, want error")
	}

	if r.Get("alpha") == nil {
		t.Error("Get(alpha) = nil")
	}
	if r.Get("missing") != nil {
		t.Error("Get(missing) != nil")
	}

	if _, err := r.Create("beta", 50000); err != nil {
		t.Fatal(err)
	}
	ids := r.List()
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "beta" {
		t.Errorf("List = %v, want [alpha beta]", ids)
	}

	if !r.Remove("beta") {
		t.Error("Remove(beta) = false")
	}
	if r.Remove("beta") {
		t.Error("second Remove(beta) = true")
	}
}
