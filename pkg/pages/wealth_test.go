package pages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/driver/mock"
	"github.com/whiteswan/mobile-e2e/pkg/interact"
)

func TestDatePicker_Dates(t *testing.T) {
	f := newFixture()
	page := NewDatePickerPage(f.in, f.sc)

	assert.Equal(t, "~15.01.2024", page.CurrentDateSelector())
	assert.Equal(t, 16, page.NextDay())

	f.clock.Advance(16 * 24 * time.Hour)
	assert.Equal(t, "~31.01.2024", page.CurrentDateSelector())
	assert.Equal(t, 1, page.NextDay(), "last day of the month wraps")
}

func TestDatePicker_PickDateThreeMonthsAgo(t *testing.T) {
	f := newFixture()
	page := NewDatePickerPage(f.in, f.sc)
	today := f.session.AddElement("~15.01.2024", mock.Ready())
	prev := f.session.AddElement(datePickerSelectors["previousMonthButton"], mock.Ready())
	day := f.session.AddElement(CalendarDaySelector(16), mock.Ready())
	ok := f.session.AddElement(datePickerSelectors["okButton"], mock.Ready())

	require.NoError(t, page.PickDateThreeMonthsAgo(context.Background()))

	assert.Equal(t, 1, today.Clicks())
	assert.Equal(t, 3, prev.Clicks())
	assert.Equal(t, 1, day.Clicks())
	assert.Equal(t, 1, ok.Clicks())
	assert.Contains(t, f.clock.Sleeps(), monthSwitchPause)
}

func TestDatePicker_PickDateThreeYearsAhead(t *testing.T) {
	f := newFixture()
	page := NewDatePickerPage(f.in, f.sc)
	f.session.AddElement("~15.01.2024", mock.Ready())
	header := f.session.AddElement(datePickerSelectors["datePickerYearHeader"], mock.Ready())
	year := f.session.AddElement(YearOptionSelector(2027), mock.Ready())
	f.session.AddElement(datePickerSelectors["okButton"], mock.Ready())

	require.NoError(t, page.PickDateThreeYearsAhead(context.Background()))

	assert.Equal(t, 1, header.Clicks())
	assert.Equal(t, 1, year.Clicks())
	assert.Zero(t, f.session.Gestures(), "a visible year needs no scrolling")
}

func TestDatePicker_MissingDayFails(t *testing.T) {
	f := newFixture()
	page := NewDatePickerPage(f.in, f.sc)
	f.session.AddElement("~15.01.2024", mock.Ready())
	f.session.AddElement(datePickerSelectors["previousMonthButton"], mock.Ready())

	err := page.PickDateThreeMonthsAgo(context.Background())
	var ie *interact.InteractionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, CalendarDaySelector(16), ie.Selector)
}

func TestWealth_Taps(t *testing.T) {
	f := newFixture()
	for _, sel := range wealthSelectors {
		f.session.AddElement(sel, mock.Ready())
	}
	page := NewWealthPage(f.in, f.sc)
	ctx := context.Background()

	taps := map[string]func(context.Context) error{
		"rectView":            page.TapRectView,
		"incomeEntry":         page.TapIncomeEntryButton,
		"accountButton":       page.TapAccountButton,
		"typeInput":           page.TapTypeInput,
		"bankType":            page.TapBankType,
		"bankInput":           page.TapBankInput,
		"sberbankButton":      page.TapSberbank,
		"createAccount":       page.TapCreateAccount,
		"obligationType":      page.TapObligationType,
		"investmentTypeInput": page.TapInvestmentType,
		"autoLoanCategory":    page.TapAutoLoanCategory,
		"loanCategory":        page.TapLoanCategory,
		"depositAccountInput": page.TapDepositAccount,
		"debitAccountInput":   page.TapDebitAccount,
		"paymentTypeInput":    page.TapPaymentType,
		"periodicPaymentType": page.TapPeriodicPaymentType,
		"frequencyInput":      page.TapFrequency,
		"monthlyFrequency":    page.TapMonthlyFrequency,
		"startDateTimeInput":  page.TapStartDateTime,
		"endDateTimeInput":    page.TapEndDateTime,
		"assetButton":         page.TapAssetButton,
		"mainAccount":         page.TapMainAccount,
	}
	for name, tap := range taps {
		require.NoError(t, tap(ctx), name)
		assert.Equal(t, 1, f.session.Lookup(wealthSelectors[name]).Clicks(), name)
	}
}

func TestWealth_Choices(t *testing.T) {
	f := newFixture()
	for _, sel := range wealthSelectors {
		f.session.AddElement(sel, mock.Ready())
	}
	page := NewWealthPage(f.in, f.sc)
	ctx := context.Background()

	choices := []struct {
		fn            func(context.Context) error
		input, option string
	}{
		{page.ChooseApartment, "investmentTypeInput", "apartmentOption"},
		{page.ChooseRealEstate, "investmentGroupInput", "realEstateOption"},
		{page.ChoosePersonalAsset, "assetTypeInput", "personalAssetOption"},
		{page.ChoosePurchase, "acquisitionMethodInput", "purchaseOption"},
		{page.ChooseMainPurchaseAccount, "purchaseAccountInput", "mainAccount"},
	}
	for _, c := range choices {
		require.NoError(t, c.fn(ctx), c.option)
		assert.Equal(t, 1, f.session.Lookup(wealthSelectors[c.input]).Clicks(), c.input)
		assert.Equal(t, 1, f.session.Lookup(wealthSelectors[c.option]).Clicks(), c.option)
	}
}

func TestWealth_AccountForm(t *testing.T) {
	f := newFixture()
	name := f.session.AddElement(wealthSelectors["accountName"], mock.Ready())
	sub := f.session.AddElement(wealthSelectors["subAccountName"], mock.Ready())
	f.session.AddElement(wealthSelectors["balanceInput"], mock.Ready())
	page := NewWealthPage(f.in, f.sc)
	ctx := context.Background()

	require.NoError(t, page.SetAccountName(ctx, "СберБанкЗП"))
	require.NoError(t, page.SetSubAccountName(ctx, "Основной"))
	assert.Equal(t, []string{"СберБанкЗП"}, name.Values())
	assert.Equal(t, []string{"Основной"}, sub.Values())

	before := len(keys(f.session))
	require.NoError(t, page.SetBalance(ctx, 10000))
	assert.Equal(t, []string{"1", "0", "0", "0", "0", "Enter"}, keys(f.session)[before:])
}

func TestWealth_ObligationAmounts(t *testing.T) {
	f := newFixture()
	f.session.AddElement(wealthSelectors["creditAmount"], mock.Ready())
	f.session.AddElement(wealthSelectors["paymentAmount"], mock.Ready())
	comment := f.session.AddElement(wealthSelectors["comment"], mock.Ready())
	page := NewWealthPage(f.in, f.sc)
	ctx := context.Background()

	require.NoError(t, page.SetCreditAmount(ctx, 15))
	require.NoError(t, page.SetPaymentAmount(ctx, 42))
	assert.Equal(t, []string{"1", "5", "Enter", "4", "2", "Enter"}, keys(f.session))

	require.NoError(t, page.SetObligationDescription(ctx, "Машина"))
	assert.Equal(t, []string{"Машина"}, comment.Values())
}

func TestWealth_SetAssetName(t *testing.T) {
	f := newFixture()
	container := f.session.AddElement(wealthSelectors["assetNameContainer"], mock.Ready())
	input := mock.Ready()
	input.Label = "Квартира"
	f.session.AddElement(assetNameInputs[0], input)
	page := NewWealthPage(f.in, f.sc)

	require.NoError(t, page.SetAssetName(context.Background(), "Квартира"))

	assert.Equal(t, 1, container.Clicks())
	assert.Equal(t, []string{"Квартира"}, input.Values())
	assert.Equal(t, []string{"Enter"}, keys(f.session), "a field that reads back needs no retyping")
}

func TestWealth_SetPurchasePrice(t *testing.T) {
	t.Run("formatted read back is accepted", func(t *testing.T) {
		f := newFixture()
		f.session.AddElement(wealthSelectors["purchasePrice"], mock.Ready())
		input := mock.Ready()
		input.Label = "10 000 000 ₽"
		f.session.AddElement(purchasePriceInputs[0], input)
		page := NewWealthPage(f.in, f.sc)

		require.NoError(t, page.SetPurchasePrice(context.Background(), 10000000))
		assert.Equal(t, []string{"10000000"}, input.Values())
		assert.Equal(t, []string{"Enter"}, keys(f.session))
	})

	t.Run("focused input is retyped when the value is lost", func(t *testing.T) {
		f := newFixture()
		f.session.AddElement(wealthSelectors["purchasePrice"], mock.Ready())
		focused := f.session.AddElement(focusedInput, mock.Ready())
		page := NewWealthPage(f.in, f.sc)

		require.NoError(t, page.SetPurchasePrice(context.Background(), 500))
		assert.Equal(t, []string{"500"}, focused.Values())
		assert.Equal(t, []string{"Enter", "5", "0", "0", "Enter"}, keys(f.session))
	})

	t.Run("no input", func(t *testing.T) {
		f := newFixture()
		f.session.AddElement(wealthSelectors["purchasePrice"], mock.Ready())
		page := NewWealthPage(f.in, f.sc)

		err := page.SetPurchasePrice(context.Background(), 500)
		assert.ErrorIs(t, err, core.ErrElementNotFound)
	})
}

func TestWealth_SetDates(t *testing.T) {
	f := newFixture()
	start := f.session.AddElement(wealthSelectors["startDateTimeInput"], mock.Ready())
	purchase := f.session.AddElement(wealthSelectors["purchaseDateTimeInput"], mock.Ready())
	f.session.AddElement("~15.01.2024", mock.Ready())
	f.session.AddElement(datePickerSelectors["previousMonthButton"], mock.Ready())
	f.session.AddElement(CalendarDaySelector(16), mock.Ready())
	f.session.AddElement(datePickerSelectors["okButton"], mock.Ready())
	done := f.session.AddElement(incomeExpenseSelectors["doneButton"], mock.Ready())
	page := NewWealthPage(f.in, f.sc)
	ctx := context.Background()

	require.NoError(t, page.SetStartDateThreeMonthsAgo(ctx))
	require.NoError(t, page.SetPurchaseDateThreeMonthsAgo(ctx))

	assert.Equal(t, 1, start.Clicks())
	assert.Equal(t, 1, purchase.Clicks())
	assert.Equal(t, 2, done.Clicks())

	err := page.SetEndDateThreeYearsAhead(ctx)
	var ie *interact.InteractionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, wealthSelectors["endDateTimeInput"], ie.Selector)
}

func accountCard(name string, values ...string) *mock.Element {
	card := mock.Ready()
	card.Children = texts(values...)
	card.Children[`android=new UiSelector().text("`+name+`")`] = []*mock.Element{mock.Ready()}
	return card
}

func TestWealth_VerifyAccountDisplayed(t *testing.T) {
	ctx := context.Background()

	t.Run("shows name and balance", func(t *testing.T) {
		f := newFixture()
		f.session.AddElement(AccountSelector("СберБанкЗП"), accountCard("СберБанкЗП", "СберБанкЗП", "10 000 ₽"))
		page := NewWealthPage(f.in, f.sc)

		require.NoError(t, page.VerifyAccountDisplayed(ctx, "СберБанкЗП", 10000))
	})

	t.Run("wrong balance", func(t *testing.T) {
		f := newFixture()
		f.session.AddElement(AccountSelector("СберБанкЗП"), accountCard("СберБанкЗП", "СберБанкЗП", "100 000 ₽"))
		page := NewWealthPage(f.in, f.sc)

		err := page.VerifyAccountDisplayed(ctx, "СберБанкЗП", 10000)
		assert.ErrorIs(t, err, core.ErrAmountMismatch)
	})

	t.Run("name missing", func(t *testing.T) {
		f := newFixture()
		card := mock.Ready()
		card.Children = texts("10 000 ₽")
		f.session.AddElement(AccountSelector("СберБанкЗП"), card)
		page := NewWealthPage(f.in, f.sc)

		err := page.VerifyAccountDisplayed(ctx, "СберБанкЗП", 10000)
		assert.ErrorIs(t, err, core.ErrElementNotFound)
	})
}

func TestIsRubAmount(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"10 000 ₽", true},
		{"10 000 Р", true},
		{"10000P", true},
		{"10 000", false},
		{"100 000 ₽", false},
		{"СберБанкЗП", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRubAmount(tt.text, 10000), tt.text)
	}
}

func TestWealth_VerifyAutoLoanObligation(t *testing.T) {
	ctx := context.Background()
	record := func(desc string) *mock.Element {
		el := mock.Ready()
		el.Attrs = map[string]string{"content-desc": desc}
		return el
	}

	t.Run("balance and counter match", func(t *testing.T) {
		f := newFixture()
		f.session.AddElement(wealthSelectors["autoLoanRecord"], record("Автокредит, - 1 428 000 ₽, 2 / 38"))
		page := NewWealthPage(f.in, f.sc)

		require.NoError(t, page.VerifyAutoLoanObligation(ctx, 1512000, 42000, 2, 38))
	})

	t.Run("counter mismatch", func(t *testing.T) {
		f := newFixture()
		f.session.AddElement(wealthSelectors["autoLoanRecord"], record("Автокредит, - 1 428 000 ₽, 1 / 38"))
		page := NewWealthPage(f.in, f.sc)

		err := page.VerifyAutoLoanObligation(ctx, 1512000, 42000, 2, 38)
		assert.ErrorIs(t, err, core.ErrAmountMismatch)
		assert.Contains(t, err.Error(), "2 / 38")
	})

	t.Run("record missing", func(t *testing.T) {
		f := newFixture()
		page := NewWealthPage(f.in, f.sc)

		assert.Error(t, page.VerifyAutoLoanObligation(ctx, 1512000, 42000, 2, 38))
	})
}
