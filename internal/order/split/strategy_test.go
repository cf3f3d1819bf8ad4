package split

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tablepay/pkg/apperr"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s got %s", want, got)
}

// table: pizza shared by diners 1 and 2, pasta for 2, wine for 3 (paid)
func sampleLedger() Ledger {
	return Ledger{
		Total:     d("73.00"),
		Remaining: d("55.00"),
		Items: []Item{
			{ID: 10, UnitPrice: d("12.50"), Quantity: 2, OwnerIDs: []int64{1, 2}},
			{ID: 11, UnitPrice: d("9.00"), Quantity: 1, OwnerIDs: []int64{2},
				Modifiers: []Modifier{{Price: d("1.50"), Quantity: 2}}},
			{ID: 12, UnitPrice: d("18.00"), Quantity: 1, OwnerIDs: []int64{3}, Paid: true},
			{ID: 13, UnitPrice: d("7.00"), Quantity: 1},
		},
	}
}

func TestFactoryCreate(t *testing.T) {
	f := NewFactory()
	for _, typ := range []Type{TypeFullBill, TypePerDish, TypePerPerson, TypeEqualParts, TypeCustom} {
		s, err := f.Create(typ)
		require.NoError(t, err)
		assert.Equal(t, typ, s.Type())
	}

	_, err := f.CreateFromString("HALF")
	require.ErrorIs(t, err, ErrUnknownType)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLineTotalIncludesModifiers(t *testing.T) {
	item := Item{UnitPrice: d("9.00"), Quantity: 2, Modifiers: []Modifier{{Price: d("1.50"), Quantity: 2}, {Price: d("0.25"), Quantity: 1}}}
	assertAmount(t, "21.25", item.LineTotal())
}

func TestFullBillUsesRemainingBalance(t *testing.T) {
	amount, err := (&FullBillStrategy{}).Calculate(sampleLedger(), Input{Amount: dp("1.00")})
	require.NoError(t, err)
	assertAmount(t, "55.00", amount)
}

func TestPerDish(t *testing.T) {
	s := &PerDishStrategy{}

	t.Run("sums stored prices", func(t *testing.T) {
		amount, err := s.Calculate(sampleLedger(), Input{ItemIDs: []int64{10, 11}})
		require.NoError(t, err)
		// 12.50×2 + 9.00 + 1.50×2
		assertAmount(t, "37.00", amount)
	})

	t.Run("duplicate ids count once", func(t *testing.T) {
		amount, err := s.Calculate(sampleLedger(), Input{ItemIDs: []int64{13, 13}})
		require.NoError(t, err)
		assertAmount(t, "7.00", amount)
	})

	t.Run("empty selection", func(t *testing.T) {
		_, err := s.Calculate(sampleLedger(), Input{})
		require.ErrorIs(t, err, ErrNothingSelected)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := s.Calculate(sampleLedger(), Input{ItemIDs: []int64{10, 99}})
		require.ErrorIs(t, err, ErrUnknownItem)
	})

	t.Run("paid item", func(t *testing.T) {
		_, err := s.Calculate(sampleLedger(), Input{ItemIDs: []int64{12}})
		require.ErrorIs(t, err, ErrItemAlreadyPaid)
	})
}

func TestSharesSplitSharedDishEvenly(t *testing.T) {
	shares := Shares([]Item{{ID: 1, UnitPrice: d("20.00"), Quantity: 1, OwnerIDs: []int64{1, 2}}})
	assertAmount(t, "10.00", shares[1])
	assertAmount(t, "10.00", shares[2])
}

func TestSharesConservation(t *testing.T) {
	items := []Item{
		{ID: 1, UnitPrice: d("10.00"), Quantity: 1, OwnerIDs: []int64{3, 1, 2}},
		{ID: 2, UnitPrice: d("0.05"), Quantity: 1, OwnerIDs: []int64{1, 2}},
		{ID: 3, UnitPrice: d("7.77"), Quantity: 3, OwnerIDs: []int64{2, 3}},
		{ID: 4, UnitPrice: d("4.10"), Quantity: 1, OwnerIDs: []int64{3},
			Modifiers: []Modifier{{Price: d("0.33"), Quantity: 1}}},
	}
	shares := Shares(items)

	sumShares := decimal.Zero
	for _, v := range shares {
		sumShares = sumShares.Add(v)
	}
	sumLines := decimal.Zero
	for _, it := range items {
		sumLines = sumLines.Add(it.LineTotal())
	}
	assertAmount(t, sumLines.String(), sumShares)
}

func TestSharesLeftoverCentsGoToLowestIDs(t *testing.T) {
	shares := Shares([]Item{{ID: 1, UnitPrice: d("10.00"), Quantity: 1, OwnerIDs: []int64{3, 1, 2}}})
	assertAmount(t, "3.34", shares[1])
	assertAmount(t, "3.33", shares[2])
	assertAmount(t, "3.33", shares[3])
}

func TestPerPerson(t *testing.T) {
	s := &PerPersonStrategy{}

	amount, err := s.Calculate(sampleLedger(), Input{DinerIDs: []int64{2}})
	require.NoError(t, err)
	// half of the pizza (12.50) + pasta with modifiers (12.00)
	assertAmount(t, "24.50", amount)

	amount, err = s.Calculate(sampleLedger(), Input{DinerIDs: []int64{1, 2, 1}})
	require.NoError(t, err)
	assertAmount(t, "37.00", amount)

	// diner 3 only owns a paid item
	amount, err = s.Calculate(sampleLedger(), Input{DinerIDs: []int64{3}})
	require.NoError(t, err)
	assert.True(t, amount.IsZero())

	_, err = s.Calculate(sampleLedger(), Input{})
	require.ErrorIs(t, err, ErrNothingSelected)
}

func TestEqualParts(t *testing.T) {
	s := &EqualPartsStrategy{}
	ledger := Ledger{Total: d("100.00"), Remaining: d("60.00")}

	amount, err := s.Calculate(ledger, Input{PersonCount: 3, PayingFor: 1})
	require.NoError(t, err)
	assertAmount(t, "33.33", amount)

	amount, err = s.Calculate(ledger, Input{PersonCount: 3, PayingFor: 2})
	require.NoError(t, err)
	assertAmount(t, "66.67", amount)

	amount, err = s.Calculate(ledger, Input{PersonCount: 4, PayingFor: 4})
	require.NoError(t, err)
	assertAmount(t, "60.00", amount)

	_, err = s.Calculate(ledger, Input{PersonCount: 2, PayingFor: 3})
	require.ErrorIs(t, err, ErrInvalidPayingFor)

	_, err = s.Calculate(ledger, Input{PersonCount: 2, PayingFor: 0})
	require.ErrorIs(t, err, ErrInvalidPayingFor)

	_, err = s.Calculate(ledger, Input{PersonCount: 0, PayingFor: 0})
	require.ErrorIs(t, err, ErrInvalidPersonCount)
}

func TestCustom(t *testing.T) {
	s := &CustomStrategy{}

	amount, err := s.Calculate(sampleLedger(), Input{Amount: dp("20.005")})
	require.NoError(t, err)
	assertAmount(t, "20.01", amount)

	_, err = s.Calculate(sampleLedger(), Input{})
	require.ErrorIs(t, err, ErrMissingAmount)

	_, err = s.Calculate(sampleLedger(), Input{Amount: dp("0")})
	require.ErrorIs(t, err, ErrNonPositiveAmount)
}

func TestTipCompute(t *testing.T) {
	tip, err := Tip{Percentage: dp("10")}.Compute(d("300"))
	require.NoError(t, err)
	assertAmount(t, "30", tip)

	tip, err = Tip{Percentage: dp("10"), Amount: dp("5")}.Compute(d("300"))
	require.NoError(t, err)
	assertAmount(t, "5", tip)

	tip, err = Tip{}.Compute(d("300"))
	require.NoError(t, err)
	assert.True(t, tip.IsZero())

	_, err = Tip{Percentage: dp("120")}.Compute(d("300"))
	require.ErrorIs(t, err, ErrInvalidTipPercentage)

	_, err = Tip{Amount: dp("-1")}.Compute(d("300"))
	require.ErrorIs(t, err, ErrNegativeTip)
}

func TestUniqueKeepsFirstSeenOrder(t *testing.T) {
	assert.Equal(t, []int64{3, 1, 2}, Unique([]int64{3, 1, 3, 2, 1}))
	assert.Empty(t, Unique(nil))
}
