package pages

import (
	"context"
	"strconv"

	"github.com/whiteswan/mobile-e2e/pkg/gesture"
	"github.com/whiteswan/mobile-e2e/pkg/interact"
)

var incomeExpenseSelectors = map[string]string{
	"expenseTypeButton":      `~Расход`,
	"purchaseAmountInput":    `~Дата`,
	"doneButton":             `~Готово`,
	"incomeAmountInput":      `~Сумма дохода`,
	"expenseAmountInput":     `~Сумма расхода`,
	"operationTypeInput":     `~Категория`,
	"salaryCategoryItem":     `~Заработная плата`,
	"productsCategoryButton": `~Продукты`,
	"incomeAccountInput":     `~Счет зачисления`,
	"expenseAccountInput":    `~Счет списания`,
	"commentContainer":       `~Описание`,
	"mainIncomeCheckbox":     `~Основной доход`,
	"mainAccountItem":        `//android.view.ViewGroup[contains(@content-desc, "Основной")]`,
	"createButton":           `~Создать`,
	"okButton":               `//android.widget.Button[@resource-id="android:id/button1"]`,
	"datePickerYearHeader":   `//android.widget.TextView[@resource-id="android:id/date_picker_header_year"]`,
}

// IncomeExpensePage is the form for creating an income or expense record.
type IncomeExpensePage struct {
	Base
}

// NewIncomeExpensePage creates the income/expense form page.
func NewIncomeExpensePage(in *interact.Interactor, sc *gesture.Scroller) *IncomeExpensePage {
	return &IncomeExpensePage{Base: newBase(in, sc, incomeExpenseSelectors)}
}

func (p *IncomeExpensePage) TapExpenseType(ctx context.Context) error {
	return p.tap(ctx, "expenseTypeButton")
}

func (p *IncomeExpensePage) TapDoneButton(ctx context.Context) error {
	return p.tap(ctx, "doneButton")
}

func (p *IncomeExpensePage) TapCreateButton(ctx context.Context) error {
	return p.tap(ctx, "createButton")
}

func (p *IncomeExpensePage) TapProductsCategory(ctx context.Context) error {
	return p.tap(ctx, "productsCategoryButton")
}

func (p *IncomeExpensePage) TapSalaryCategory(ctx context.Context) error {
	return p.tap(ctx, "salaryCategoryItem")
}

func (p *IncomeExpensePage) TapOperationTypeInput(ctx context.Context) error {
	return p.tap(ctx, "operationTypeInput")
}

func (p *IncomeExpensePage) TapExpenseAccountInput(ctx context.Context) error {
	return p.tap(ctx, "expenseAccountInput")
}

func (p *IncomeExpensePage) TapIncomeAccountInput(ctx context.Context) error {
	return p.tap(ctx, "incomeAccountInput")
}

func (p *IncomeExpensePage) TapPurchaseAmountInput(ctx context.Context) error {
	return p.tap(ctx, "purchaseAmountInput")
}

// TapMainAccountItem picks the main account in the account catalog.
func (p *IncomeExpensePage) TapMainAccountItem(ctx context.Context) error {
	return p.tap(ctx, "mainAccountItem")
}

func (p *IncomeExpensePage) TapOK(ctx context.Context) error {
	return p.tap(ctx, "okButton")
}

func (p *IncomeExpensePage) ToggleMainIncomeCheckbox(ctx context.Context) error {
	return p.tap(ctx, "mainIncomeCheckbox")
}

// SetIncomeAmount types amount into the income field key by key.
func (p *IncomeExpensePage) SetIncomeAmount(ctx context.Context, amount int64) error {
	return p.typeDigits(ctx, "incomeAmountInput", strconv.FormatInt(amount, 10))
}

// SetExpenseAmount types amount into the expense field.
func (p *IncomeExpensePage) SetExpenseAmount(ctx context.Context, amount int64) error {
	return p.typeDigits(ctx, "expenseAmountInput", strconv.FormatInt(amount, 10))
}
