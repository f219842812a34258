package pages

import (
	"context"
	"fmt"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/gesture"
	"github.com/whiteswan/mobile-e2e/pkg/interact"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

var dashboardSelectors = map[string]string{
	"addButton":            `~Добавить`,
	"wealthSection":        `android=new UiSelector().descriptionStartsWith("Благосостояние")`,
	"incomeRectView":       `//android.view.ViewGroup[contains(@content-desc, "Доходы и расходы")]/android.view.ViewGroup[1]/com.horcrux.svg.SvgView`,
	"incomeExpenseSection": `android=new UiSelector().descriptionStartsWith("Доходы и расходы")`,
	"previousMonthButton":  `~Previous month`,
	"chartPreviousMonth":   `//android.view.ViewGroup[contains(@content-desc, "Доходы и расходы")]/android.view.ViewGroup[2]`,
}

const (
	monthSwitchPause = time.Second
	chartWait        = 10 * time.Second
	chartRefresh     = 10 * time.Second
)

// DashboardPage is the main screen with the wealth and income/expense blocks.
type DashboardPage struct {
	Base
	Amounts AmountReader
}

// NewDashboardPage creates the dashboard page. Amounts are read through
// element queries unless Amounts is replaced.
func NewDashboardPage(in *interact.Interactor, sc *gesture.Scroller) *DashboardPage {
	return &DashboardPage{
		Base:    newBase(in, sc, dashboardSelectors),
		Amounts: NewElementReader(in),
	}
}

func (p *DashboardPage) TapAddButton(ctx context.Context) error {
	return p.tap(ctx, "addButton")
}

func (p *DashboardPage) TapIncomeRectView(ctx context.Context) error {
	return p.tap(ctx, "incomeRectView")
}

func (p *DashboardPage) TapIncomeExpenseSection(ctx context.Context) error {
	return p.tap(ctx, "incomeExpenseSection")
}

func (p *DashboardPage) TapWealthSection(ctx context.Context) error {
	return p.tap(ctx, "wealthSection")
}

// TapPreviousMonthThreeTimes steps the period back three months.
func (p *DashboardPage) TapPreviousMonthThreeTimes(ctx context.Context) error {
	for i := 0; i < 3; i++ {
		if err := p.tap(ctx, "previousMonthButton"); err != nil {
			return err
		}
		if err := p.in.Pause(ctx, monthSwitchPause); err != nil {
			return err
		}
	}
	return nil
}

// TapPreviousMonthOnChart switches the chart to the previous month and waits
// for it to redraw.
func (p *DashboardPage) TapPreviousMonthOnChart(ctx context.Context) error {
	if err := p.waitVisible(ctx, "chartPreviousMonth", chartWait); err != nil {
		return err
	}
	if err := p.tap(ctx, "chartPreviousMonth"); err != nil {
		return err
	}
	return p.in.Pause(ctx, chartRefresh)
}

// VerifyIncomeAmount checks that the income row shows "+ amount ₽".
func (p *DashboardPage) VerifyIncomeAmount(ctx context.Context, amount int64) error {
	return p.verify(ctx, IncomeExpenseBlock, IncomeLabel, "+ "+FormatRub(amount))
}

// VerifyExpenseAmount checks that the expense row shows "- amount ₽".
func (p *DashboardPage) VerifyExpenseAmount(ctx context.Context, amount int64) error {
	return p.verify(ctx, IncomeExpenseBlock, ExpenseLabel, "- "+FormatRub(amount))
}

// VerifyWealthAmount checks that any text in the wealth block shows amount.
func (p *DashboardPage) VerifyWealthAmount(ctx context.Context, amount int64) error {
	return p.verify(ctx, WealthBlock, "", FormatRub(amount))
}

// VerifyChartExpenseAmount checks the expense row after the chart switched
// months.
func (p *DashboardPage) VerifyChartExpenseAmount(ctx context.Context, amount int64) error {
	return p.VerifyExpenseAmount(ctx, amount)
}

func (p *DashboardPage) verify(ctx context.Context, block Block, label, expected string) error {
	found, err := p.Amounts.Find(ctx, block, label)
	if err != nil {
		return err
	}
	logger.Debug("[dashboard] %s %q candidates: %q", block.Name, label, found)
	if containsAmount(found, expected) {
		return nil
	}
	return core.ErrAmountMismatch.
		WithMessage(fmt.Sprintf("amount %q not found in block %s", expected, block.Name)).
		WithDetails(map[string]interface{}{
			"block":    block.Name,
			"label":    label,
			"expected": expected,
			"found":    found,
		})
}
