package pages

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/gesture"
	"github.com/whiteswan/mobile-e2e/pkg/interact"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

var wealthSelectors = map[string]string{
	"rectView":       `(//android.widget.ScrollView)[2]//android.view.ViewGroup/android.view.ViewGroup/android.view.ViewGroup[3]`,
	"incomeEntry":    `-android uiautomator: new UiSelector().className("android.view.ViewGroup").instance(11)`,
	"mainAccount":    `//android.view.ViewGroup[contains(@content-desc, "Основной")]`,
	"createButton":   `~Создать`,
	"createAccount":  `~Создать счет`,
	"comment":        `android=new UiSelector().resourceId("comment")`,
	"autoLoanRecord": `android=new UiSelector().descriptionStartsWith("Автокредит")`,

	// Bank account
	"accountButton":  `-android uiautomator: new UiSelector().text("Счёт")`,
	"typeInput":      `~Тип счёта`,
	"bankType":       `~Банковский`,
	"accountName":    `-android uiautomator: new UiSelector().resourceId("undefined").instance(0)`,
	"bankInput":      `~Название банка`,
	"sberbankButton": `~СберБанк`,
	"subAccountName": `-android uiautomator: new UiSelector().resourceId("undefined").instance(1)`,
	"balanceInput":   `-android uiautomator: new UiSelector().text("0")`,

	// Obligation
	"obligationType":      `android=new UiSelector().description("Обязательство")`,
	"investmentTypeInput": `~Тип инвестиции`,
	"autoLoanCategory":    `~Автокредит`,
	"loanCategory":        `~Займ`,
	"depositAccountInput": `~Счёт зачисления средств`,
	"debitAccountInput":   `~Счёт списания средств`,
	"creditAmount":        `~Сумма кредита`,
	"paymentTypeInput":    `~Тип выплат`,
	"periodicPaymentType": `~Периодичный`,
	"paymentAmount":       `~Сумма платежа`,
	"frequencyInput":      `~Периодичность`,
	"monthlyFrequency":    `~Месяц`,
	"startDateTimeInput":  `~Дата и время начала`,
	"endDateTimeInput":    `~Дата и время завершения`,

	// Personal asset
	"assetButton":            `android=new UiSelector().description("Актив")`,
	"investmentGroupInput":   `~Группа инвестиции`,
	"assetTypeInput":         `~Тип актива`,
	"acquisitionMethodInput": `~Способ приобретения актива`,
	"apartmentOption":        `android=new UiSelector().description("Квартира")`,
	"realEstateOption":       `android=new UiSelector().description("Недвижимость")`,
	"personalAssetOption":    `android=new UiSelector().description("Личный актив")`,
	"purchaseOption":         `android=new UiSelector().description("Покупка")`,
	"assetNameContainer":     `android=new UiSelector().description("Название")`,
	"assetDescription":       `android=new UiSelector().description("Описание")`,
	"purchaseAccountInput":   `android=new UiSelector().description("Счёт покупки")`,
	"purchasePrice":          `android=new UiSelector().description("Цена покупки")`,
	"purchaseDateTimeInput":  `~Дата и время покупки`,
}

// focusedInput is the edit text that received focus after its container
// was tapped.
const focusedInput = `android=new UiSelector().className("android.widget.EditText").focused(true)`

// Inputs tried, in order, after tapping an asset form container.
var (
	assetNameInputs = []string{
		`android=new UiSelector().resourceIdMatches(".*name.*")`,
		focusedInput,
	}
	assetDescriptionInputs = []string{
		`android=new UiSelector().resourceIdMatches(".*comment.*")`,
		focusedInput,
	}
	purchasePriceInputs = []string{
		`android=new UiSelector().resourceId("buy_sum")`,
		focusedInput,
	}
)

const (
	accountWait    = 15 * time.Second
	inputWait      = 5 * time.Second
	obligationWait = 15 * time.Second
)

// WealthPage is the wealth section: bank accounts, obligations and
// personal assets. Date fields delegate to the date picker; the "Done"
// confirmation lives on the income/expense form.
type WealthPage struct {
	Base
	DatePicker *DatePickerPage
	Form       *IncomeExpensePage
}

// NewWealthPage creates the wealth page.
func NewWealthPage(in *interact.Interactor, sc *gesture.Scroller) *WealthPage {
	return &WealthPage{
		Base:       newBase(in, sc, wealthSelectors),
		DatePicker: NewDatePickerPage(in, sc),
		Form:       NewIncomeExpensePage(in, sc),
	}
}

// AccountSelector addresses the account card named name.
func AccountSelector(name string) string {
	return "~Account " + name
}

func (p *WealthPage) TapRectView(ctx context.Context) error {
	return p.tap(ctx, "rectView")
}

func (p *WealthPage) TapIncomeEntryButton(ctx context.Context) error {
	return p.tap(ctx, "incomeEntry")
}

func (p *WealthPage) TapMainAccount(ctx context.Context) error {
	return p.tap(ctx, "mainAccount")
}

func (p *WealthPage) TapCreateButton(ctx context.Context) error {
	return p.tap(ctx, "createButton")
}

func (p *WealthPage) TapAccountButton(ctx context.Context) error {
	return p.tap(ctx, "accountButton")
}

func (p *WealthPage) TapTypeInput(ctx context.Context) error {
	return p.tap(ctx, "typeInput")
}

func (p *WealthPage) TapBankType(ctx context.Context) error {
	return p.tap(ctx, "bankType")
}

func (p *WealthPage) TapBankInput(ctx context.Context) error {
	return p.tap(ctx, "bankInput")
}

func (p *WealthPage) TapSberbank(ctx context.Context) error {
	return p.tap(ctx, "sberbankButton")
}

func (p *WealthPage) SetAccountName(ctx context.Context, name string) error {
	return p.set(ctx, "accountName", name)
}

func (p *WealthPage) SetSubAccountName(ctx context.Context, name string) error {
	return p.set(ctx, "subAccountName", name)
}

// SetBalance types the opening balance key by key.
func (p *WealthPage) SetBalance(ctx context.Context, amount int64) error {
	return p.typeDigits(ctx, "balanceInput", strconv.FormatInt(amount, 10))
}

func (p *WealthPage) TapCreateAccount(ctx context.Context) error {
	return p.tap(ctx, "createAccount")
}

func (p *WealthPage) TapObligationType(ctx context.Context) error {
	return p.tap(ctx, "obligationType")
}

func (p *WealthPage) TapInvestmentType(ctx context.Context) error {
	return p.tap(ctx, "investmentTypeInput")
}

func (p *WealthPage) TapAutoLoanCategory(ctx context.Context) error {
	return p.tap(ctx, "autoLoanCategory")
}

func (p *WealthPage) TapLoanCategory(ctx context.Context) error {
	return p.tap(ctx, "loanCategory")
}

func (p *WealthPage) TapDepositAccount(ctx context.Context) error {
	return p.tap(ctx, "depositAccountInput")
}

func (p *WealthPage) TapDebitAccount(ctx context.Context) error {
	return p.tap(ctx, "debitAccountInput")
}

func (p *WealthPage) TapPaymentType(ctx context.Context) error {
	return p.tap(ctx, "paymentTypeInput")
}

func (p *WealthPage) TapPeriodicPaymentType(ctx context.Context) error {
	return p.tap(ctx, "periodicPaymentType")
}

func (p *WealthPage) TapFrequency(ctx context.Context) error {
	return p.tap(ctx, "frequencyInput")
}

func (p *WealthPage) TapMonthlyFrequency(ctx context.Context) error {
	return p.tap(ctx, "monthlyFrequency")
}

func (p *WealthPage) TapStartDateTime(ctx context.Context) error {
	return p.tap(ctx, "startDateTimeInput")
}

func (p *WealthPage) TapEndDateTime(ctx context.Context) error {
	return p.tap(ctx, "endDateTimeInput")
}

// SetCreditAmount types the loan principal.
func (p *WealthPage) SetCreditAmount(ctx context.Context, amount int64) error {
	return p.typeDigits(ctx, "creditAmount", strconv.FormatInt(amount, 10))
}

// SetPaymentAmount types the periodic payment.
func (p *WealthPage) SetPaymentAmount(ctx context.Context, amount int64) error {
	return p.typeDigits(ctx, "paymentAmount", strconv.FormatInt(amount, 10))
}

func (p *WealthPage) SetObligationDescription(ctx context.Context, text string) error {
	return p.set(ctx, "comment", text)
}

// SetStartDateThreeMonthsAgo fills the obligation start with a date three
// months back.
func (p *WealthPage) SetStartDateThreeMonthsAgo(ctx context.Context) error {
	return p.pickDate(ctx, "startDateTimeInput", p.DatePicker.PickDateThreeMonthsAgo)
}

// SetEndDateThreeYearsAhead fills the obligation end with a date three
// years ahead.
func (p *WealthPage) SetEndDateThreeYearsAhead(ctx context.Context) error {
	return p.pickDate(ctx, "endDateTimeInput", p.DatePicker.PickDateThreeYearsAhead)
}

// SetPurchaseDateThreeMonthsAgo fills the asset purchase date.
func (p *WealthPage) SetPurchaseDateThreeMonthsAgo(ctx context.Context) error {
	return p.pickDate(ctx, "purchaseDateTimeInput", p.DatePicker.PickDateThreeMonthsAgo)
}

// pickDate opens a date field, runs pick on the dialog and confirms the
// time sheet that follows it.
func (p *WealthPage) pickDate(ctx context.Context, field string, pick func(context.Context) error) error {
	if err := p.tap(ctx, field); err != nil {
		return err
	}
	if err := pick(ctx); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return p.Form.TapDoneButton(ctx)
}

func (p *WealthPage) TapAssetButton(ctx context.Context) error {
	return p.tap(ctx, "assetButton")
}

// ChooseApartment picks "Квартира" as the investment type.
func (p *WealthPage) ChooseApartment(ctx context.Context) error {
	return p.choose(ctx, "investmentTypeInput", "apartmentOption")
}

// ChooseRealEstate picks "Недвижимость" as the investment group.
func (p *WealthPage) ChooseRealEstate(ctx context.Context) error {
	return p.choose(ctx, "investmentGroupInput", "realEstateOption")
}

// ChoosePersonalAsset picks "Личный актив" as the asset type.
func (p *WealthPage) ChoosePersonalAsset(ctx context.Context) error {
	return p.choose(ctx, "assetTypeInput", "personalAssetOption")
}

// ChoosePurchase picks "Покупка" as the acquisition method.
func (p *WealthPage) ChoosePurchase(ctx context.Context) error {
	return p.choose(ctx, "acquisitionMethodInput", "purchaseOption")
}

// ChooseMainPurchaseAccount opens the purchase account list and picks the
// main account.
func (p *WealthPage) ChooseMainPurchaseAccount(ctx context.Context) error {
	return p.choose(ctx, "purchaseAccountInput", "mainAccount")
}

func (p *WealthPage) choose(ctx context.Context, input, option string) error {
	if err := p.tap(ctx, input); err != nil {
		return err
	}
	return p.tap(ctx, option)
}

func (p *WealthPage) SetAssetName(ctx context.Context, name string) error {
	return p.fill(ctx, "assetNameContainer", assetNameInputs, name, sameText)
}

func (p *WealthPage) SetAssetDescription(ctx context.Context, text string) error {
	return p.fill(ctx, "assetDescription", assetDescriptionInputs, text, sameText)
}

// SetPurchasePrice enters the price; the field's formatting is ignored
// when checking what landed.
func (p *WealthPage) SetPurchasePrice(ctx context.Context, amount int64) error {
	return p.fill(ctx, "purchasePrice", purchasePriceInputs, strconv.FormatInt(amount, 10), sameDigits)
}

func (p *WealthPage) TapCreateAssetButton(ctx context.Context) error {
	return p.tap(ctx, "createButton")
}

// fill taps container, then sets value on the first candidate input that
// exists. When the field does not read back value it is retyped key by key.
func (p *WealthPage) fill(ctx context.Context, container string, candidates []string, value string, match func(got, want string) bool) error {
	if err := p.tap(ctx, container); err != nil {
		return err
	}
	input, err := p.firstInput(ctx, candidates)
	if err != nil {
		return fmt.Errorf("%s: %w", container, err)
	}
	if err := p.in.SetValue(ctx, interact.Handle(input), value, 0); err != nil {
		return err
	}
	got, err := input.Text()
	if err == nil && match(got, value) {
		return nil
	}
	logger.Debug("[wealth] %s reads %q after set, retyping", container, got)
	return p.in.TypeDigits(ctx, interact.Handle(input), value, 0)
}

func (p *WealthPage) firstInput(ctx context.Context, candidates []string) (core.Element, error) {
	for _, sel := range candidates {
		if p.in.IsElementDisplayed(ctx, sel, inputWait) {
			return p.in.Session().Element(sel), nil
		}
	}
	return nil, core.ErrElementNotFound.WithMessage(fmt.Sprintf("no input among %q", candidates))
}

func sameText(got, want string) bool {
	return strings.TrimSpace(got) == want
}

func sameDigits(got, want string) bool {
	return digitsOf(got) == digitsOf(want)
}

func digitsOf(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// VerifyAccountDisplayed checks that the account card named name is shown
// with its name and a text reading amount in roubles.
func (p *WealthPage) VerifyAccountDisplayed(ctx context.Context, name string, amount int64) error {
	sel := AccountSelector(name)
	card, err := p.in.WaitForDisplayed(ctx, sel, accountWait, p.in.Settings().PresenceInterval)
	if err != nil {
		return fmt.Errorf("account %s: %w", name, err)
	}
	named, err := card.Elements(fmt.Sprintf(`android=new UiSelector().text("%s")`, name))
	if err != nil {
		return fmt.Errorf("account %s name: %w", name, err)
	}
	if len(named) == 0 {
		return core.ErrElementNotFound.WithMessage(fmt.Sprintf("account %s does not show its name", name))
	}
	views, err := card.Elements(textViewClass)
	if err != nil {
		return fmt.Errorf("account %s text views: %w", name, err)
	}
	var found []string
	for _, v := range views {
		t, err := v.Text()
		if err != nil {
			return fmt.Errorf("account %s text: %w", name, err)
		}
		found = append(found, t)
		if isRubAmount(t, amount) {
			return nil
		}
	}
	return core.ErrAmountMismatch.
		WithMessage(fmt.Sprintf("account %s does not show %s", name, FormatRub(amount))).
		WithDetails(map[string]interface{}{
			"account":  name,
			"expected": FormatRub(amount),
			"found":    found,
		})
}

// isRubAmount accepts the amount followed by any rendering of the rouble
// sign, ignoring spacing.
func isRubAmount(text string, amount int64) bool {
	s := normalize(text)
	for _, sign := range []string{"₽", "Р", "P"} {
		if rest, ok := strings.CutSuffix(s, sign); ok {
			return rest == strconv.FormatInt(amount, 10)
		}
	}
	return false
}

// VerifyAutoLoanObligation checks the auto loan record: the outstanding
// balance after paid payments and the paid/total counter.
func (p *WealthPage) VerifyAutoLoanObligation(ctx context.Context, credit, payment int64, paid, total int) error {
	el, err := p.in.WaitForDisplayed(ctx, p.loc.Selector("autoLoanRecord"), obligationWait, p.in.Settings().PresenceInterval)
	if err != nil {
		return fmt.Errorf("auto loan record: %w", err)
	}
	attrs, err := el.Attributes()
	if err != nil {
		return fmt.Errorf("auto loan description: %w", err)
	}
	desc := attrs["content-desc"]
	logger.Debug("[wealth] auto loan record %q", desc)

	balance := "- " + FormatRub(credit-int64(paid)*payment)
	counter := fmt.Sprintf("%d / %d", paid, total)
	for _, want := range []string{balance, counter} {
		if !strings.Contains(normalize(desc), normalize(want)) {
			return core.ErrAmountMismatch.
				WithMessage(fmt.Sprintf("auto loan record lacks %q", want)).
				WithDetails(map[string]interface{}{
					"expected":    want,
					"description": desc,
				})
		}
	}
	return nil
}
