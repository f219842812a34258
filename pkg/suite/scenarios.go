package suite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/gesture"
)

// Amounts the built-in scenarios book and expect on the dashboard. The
// wealth block starts from the balance of the bank account created by
// "Create bank account", which runs first.
const (
	AccountAmount int64 = 10000
	IncomeAmount  int64 = 100000
	ExpenseAmount int64 = 7500
)

// Bank account created by "Create bank account".
const (
	AccountName    = "СберБанкЗП"
	SubAccountName = "Основной"
)

// Auto loan booked by "Periodic obligation". Its start lies three months
// back, so two monthly payments are already counted.
const (
	CreditAmount      int64 = 1512000
	PaymentAmount     int64 = 42000
	PaidPayments            = 2
	ScheduledPayments       = 38
)

// Personal asset booked by "Personal asset: apartment".
const (
	AssetName              = "Квартира"
	AssetDescription       = "Долгожданная"
	PurchasePrice    int64 = 10000000
)

const (
	afterBackPause   = 3 * time.Second
	afterLogoutPause = 3 * time.Second
	afterCreatePause = 3 * time.Second
	edgeSwipes       = 10
	formSwipes       = 3
)

// Scenarios returns the built-in tests in run order.
func Scenarios() []Test {
	return []Test{
		{Name: "Owner login", Feature: "auth", Body: ownerLogin},
		{Name: "Create bank account", Feature: "wealth", Body: createBankAccount},
		{Name: "Add income", Feature: "income", Body: addIncome},
		{Name: "Add expense", Feature: "expense", Body: addExpense},
		{Name: "Periodic obligation", Feature: "wealth", Body: periodicObligation},
		{Name: "Personal asset: apartment", Feature: "wealth", Body: personalAsset},
	}
}

// Select keeps the tests whose names contain one of filters, ignoring
// case. No filters keeps everything.
func Select(tests []Test, filters []string) ([]Test, error) {
	if len(filters) == 0 {
		return tests, nil
	}
	var out []Test
	for _, tc := range tests {
		for _, f := range filters {
			if strings.Contains(strings.ToLower(tc.Name), strings.ToLower(f)) {
				out = append(out, tc)
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no test matches %q", strings.Join(filters, ", "))
	}
	return out, nil
}

func requireOwner(t *T) error {
	if t.Config.Owner.Email == "" || t.Config.Owner.Password == "" {
		return core.ErrMissingRequired.WithMessage("owner credentials are not configured (OWNER_EMAIL, OWNER_PASSWORD)")
	}
	return nil
}

func prepareAndLogin(ctx context.Context, t *T) error {
	if err := requireOwner(t); err != nil {
		return err
	}
	if _, err := t.Prepare(ctx); err != nil {
		return fmt.Errorf("prepare app: %w", err)
	}
	return t.Step(`Enter email and password and tap "Log in"`, func() error {
		return t.Login.LoginWithCredentials(ctx, t.Config.Owner.Email, t.Config.Owner.Password)
	})
}

func logout(ctx context.Context, t *T) error {
	return t.Step("Log out", func() error {
		if err := t.Login.TapBackButton(ctx); err != nil {
			return err
		}
		if err := t.In.Pause(ctx, afterBackPause); err != nil {
			return err
		}
		if err := t.Login.ScrollToEdge(ctx, gesture.Up, edgeSwipes); err != nil {
			return err
		}
		if err := t.Login.TapLogoutButton(ctx); err != nil {
			return err
		}
		return t.In.Pause(ctx, afterLogoutPause)
	})
}

func ownerLogin(ctx context.Context, t *T) error {
	if err := prepareAndLogin(ctx, t); err != nil {
		return err
	}
	return logout(ctx, t)
}

type step struct {
	name string
	fn   func(context.Context) error
}

func runSteps(ctx context.Context, t *T, steps []step) error {
	for _, s := range steps {
		s := s
		if err := t.Step(s.name, func() error { return s.fn(ctx) }); err != nil {
			return err
		}
	}
	return nil
}

func addIncome(ctx context.Context, t *T) error {
	if err := prepareAndLogin(ctx, t); err != nil {
		return err
	}
	form := t.IncomeExpense
	err := runSteps(ctx, t, []step{
		{"Open the income form", t.Dashboard.TapIncomeRectView},
		{"Open the date picker", form.TapPurchaseAmountInput},
		{"Confirm the date", form.TapDoneButton},
		{"Enter the income amount", func(ctx context.Context) error { return form.SetIncomeAmount(ctx, IncomeAmount) }},
		{"Open the category list", form.TapOperationTypeInput},
		{"Choose the salary category", form.TapSalaryCategory},
		{"Open the receiving account list", form.TapIncomeAccountInput},
		{"Choose the main account", form.TapMainAccountItem},
		{`Tick "Main income"`, form.ToggleMainIncomeCheckbox},
		{`Tap "Create"`, func(ctx context.Context) error {
			if err := form.TapCreateButton(ctx); err != nil {
				return err
			}
			return t.In.Pause(ctx, afterCreatePause)
		}},
		{"Check the income amount", func(ctx context.Context) error { return t.Dashboard.VerifyIncomeAmount(ctx, IncomeAmount) }},
		{"Check the wealth amount", func(ctx context.Context) error {
			return t.Dashboard.VerifyWealthAmount(ctx, AccountAmount+IncomeAmount)
		}},
	})
	if err != nil {
		return err
	}
	return logout(ctx, t)
}

func addExpense(ctx context.Context, t *T) error {
	if err := prepareAndLogin(ctx, t); err != nil {
		return err
	}
	form := t.IncomeExpense
	err := runSteps(ctx, t, []step{
		{"Open the income and expense form", t.Dashboard.TapIncomeRectView},
		{`Tap "Expense"`, form.TapExpenseType},
		{"Open the date picker", form.TapPurchaseAmountInput},
		{"Confirm the date", form.TapDoneButton},
		{"Enter the expense amount", func(ctx context.Context) error { return form.SetExpenseAmount(ctx, ExpenseAmount) }},
		{"Open the category list", form.TapOperationTypeInput},
		{"Choose the products category", form.TapProductsCategory},
		{"Open the paying account list", form.TapExpenseAccountInput},
		{"Choose the main account", form.TapMainAccountItem},
		{`Tap "Create"`, func(ctx context.Context) error {
			if err := form.TapCreateButton(ctx); err != nil {
				return err
			}
			return t.In.Pause(ctx, afterCreatePause)
		}},
		{"Check the expense amount", func(ctx context.Context) error { return t.Dashboard.VerifyExpenseAmount(ctx, ExpenseAmount) }},
		{"Check the wealth amount", func(ctx context.Context) error {
			return t.Dashboard.VerifyWealthAmount(ctx, AccountAmount+IncomeAmount-ExpenseAmount)
		}},
	})
	if err != nil {
		return err
	}
	return logout(ctx, t)
}

func createBankAccount(ctx context.Context, t *T) error {
	if err := prepareAndLogin(ctx, t); err != nil {
		return err
	}
	w := t.Wealth
	err := runSteps(ctx, t, []step{
		{`Tap "Add"`, t.Dashboard.TapAddButton},
		{"Open the wealth form", w.TapRectView},
		{`Choose "Account"`, w.TapAccountButton},
		{"Open the account type list", w.TapTypeInput},
		{`Choose "Bank"`, w.TapBankType},
		{"Enter the account name", func(ctx context.Context) error { return w.SetAccountName(ctx, AccountName) }},
		{"Open the bank list", w.TapBankInput},
		{"Choose Sberbank", w.TapSberbank},
		{"Enter the sub-account name", func(ctx context.Context) error { return w.SetSubAccountName(ctx, SubAccountName) }},
		{"Enter the balance", func(ctx context.Context) error { return w.SetBalance(ctx, AccountAmount) }},
		{`Tap "Create account"`, func(ctx context.Context) error {
			if err := w.TapCreateAccount(ctx); err != nil {
				return err
			}
			return t.In.Pause(ctx, afterCreatePause)
		}},
		{"Check the account card", func(ctx context.Context) error {
			return w.VerifyAccountDisplayed(ctx, AccountName, AccountAmount)
		}},
		{"Back to the dashboard", w.TapIncomeEntryButton},
		{"Check the wealth amount", func(ctx context.Context) error { return t.Dashboard.VerifyWealthAmount(ctx, AccountAmount) }},
	})
	if err != nil {
		return err
	}
	return logout(ctx, t)
}

func periodicObligation(ctx context.Context, t *T) error {
	if err := prepareAndLogin(ctx, t); err != nil {
		return err
	}
	w := t.Wealth
	checkChart := func(ctx context.Context) error {
		if err := t.Dashboard.TapPreviousMonthOnChart(ctx); err != nil {
			return err
		}
		return t.Dashboard.VerifyChartExpenseAmount(ctx, PaymentAmount)
	}
	err := runSteps(ctx, t, []step{
		{"Open the wealth section", t.Dashboard.TapWealthSection},
		{"Open the wealth form", w.TapRectView},
		{`Choose "Obligation"`, w.TapObligationType},
		{"Open the investment type list", w.TapInvestmentType},
		{`Choose "Car loan"`, w.TapAutoLoanCategory},
		{"Open the receiving account list", w.TapDepositAccount},
		{"Choose the main account", w.TapMainAccount},
		{"Open the paying account list", w.TapDebitAccount},
		{"Choose the main account", w.TapMainAccount},
		{"Enter the credit amount", func(ctx context.Context) error { return w.SetCreditAmount(ctx, CreditAmount) }},
		{"Open the payment type list", w.TapPaymentType},
		{`Choose "Periodic"`, w.TapPeriodicPaymentType},
		{"Scroll the form", func(ctx context.Context) error { return w.ScrollBySteps(ctx, gesture.Up, formSwipes) }},
		{"Enter the payment amount", func(ctx context.Context) error { return w.SetPaymentAmount(ctx, PaymentAmount) }},
		{"Open the frequency list", w.TapFrequency},
		{`Choose "Month"`, w.TapMonthlyFrequency},
		{"Set the start date three months back", w.SetStartDateThreeMonthsAgo},
		{"Set the end date three years ahead", w.SetEndDateThreeYearsAhead},
		{`Tap "Create"`, func(ctx context.Context) error {
			if err := w.TapCreateButton(ctx); err != nil {
				return err
			}
			return t.In.Pause(ctx, afterCreatePause)
		}},
		{"Scroll to the obligation", func(ctx context.Context) error { return w.ScrollBySteps(ctx, gesture.Up, formSwipes) }},
		{"Check the car loan record", func(ctx context.Context) error {
			return w.VerifyAutoLoanObligation(ctx, CreditAmount, PaymentAmount, PaidPayments, ScheduledPayments)
		}},
		{"Scroll back", func(ctx context.Context) error { return w.ScrollBySteps(ctx, gesture.Down, formSwipes) }},
		{"Back to the dashboard", w.TapIncomeEntryButton},
		{"Check last month's payment on the chart", checkChart},
		{"Check the payment the month before", checkChart},
	})
	if err != nil {
		return err
	}
	return logout(ctx, t)
}

func personalAsset(ctx context.Context, t *T) error {
	if err := prepareAndLogin(ctx, t); err != nil {
		return err
	}
	w := t.Wealth
	err := runSteps(ctx, t, []step{
		{"Open the wealth section", t.Dashboard.TapWealthSection},
		{"Open the wealth form", w.TapRectView},
		{`Choose "Asset"`, w.TapAssetButton},
		{`Choose "Apartment"`, w.ChooseApartment},
		{`Choose "Real estate"`, w.ChooseRealEstate},
		{`Choose "Personal asset"`, w.ChoosePersonalAsset},
		{`Choose "Purchase"`, w.ChoosePurchase},
		{"Enter the asset name", func(ctx context.Context) error { return w.SetAssetName(ctx, AssetName) }},
		{"Enter the description", func(ctx context.Context) error { return w.SetAssetDescription(ctx, AssetDescription) }},
		{"Choose the main account for the purchase", w.ChooseMainPurchaseAccount},
		{"Scroll the form", func(ctx context.Context) error { return w.ScrollBySteps(ctx, gesture.Up, formSwipes) }},
		{"Enter the purchase price", func(ctx context.Context) error { return w.SetPurchasePrice(ctx, PurchasePrice) }},
		{"Set the purchase date three months back", w.SetPurchaseDateThreeMonthsAgo},
		{`Tap "Create"`, func(ctx context.Context) error {
			if err := w.TapCreateAssetButton(ctx); err != nil {
				return err
			}
			return t.In.Pause(ctx, afterCreatePause)
		}},
		{"Scroll to the top", func(ctx context.Context) error { return w.ScrollBySteps(ctx, gesture.Up, formSwipes) }},
	})
	if err != nil {
		return err
	}
	return logout(ctx, t)
}
