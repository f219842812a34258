package pages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/driver/mock"
	"github.com/whiteswan/mobile-e2e/pkg/gesture"
	"github.com/whiteswan/mobile-e2e/pkg/interact"
)

type fixture struct {
	session *mock.Session
	clock   *mock.Clock
	in      *interact.Interactor
	sc      *gesture.Scroller
}

func newFixture() *fixture {
	clock := mock.NewClock()
	s := mock.NewSession(clock)
	in := interact.New(s, clock, interact.DefaultSettings())
	return &fixture{session: s, clock: clock, in: in, sc: gesture.New(in, gesture.DefaultOptions())}
}

func texts(values ...string) map[string][]*mock.Element {
	var els []*mock.Element
	for _, v := range values {
		els = append(els, &mock.Element{Present: true, Visible: true, Label: v})
	}
	return map[string][]*mock.Element{textViewClass: els}
}

func keys(s *mock.Session) []string {
	var out []string
	for _, c := range s.Calls("Keys") {
		for _, a := range c.Args {
			out = append(out, a.(string))
		}
	}
	return out
}

func TestLocators(t *testing.T) {
	f := newFixture()
	loc := NewLocators(f.session, map[string]string{"b": "~B", "a": "~A"})

	assert.Equal(t, "~A", loc.Selector("a"))
	assert.Equal(t, []string{"a", "b"}, loc.Names())
	assert.Equal(t, "~B", loc.Target("b").Name())

	// Handles are resolved on every access, so late registrations are seen.
	assert.False(t, mustDisplayed(t, loc.Get("a")))
	f.session.AddElement("~A", mock.Ready())
	assert.True(t, mustDisplayed(t, loc.Get("a")))

	assert.Panics(t, func() { loc.Selector("missing") })
}

func mustDisplayed(t *testing.T, el core.Element) bool {
	t.Helper()
	ok, err := el.Displayed()
	require.NoError(t, err)
	return ok
}

func TestFormatRub(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "0 ₽"},
		{999, "999 ₽"},
		{1500, "1\u00a0500 ₽"},
		{150000, "150\u00a0000 ₽"},
		{1234567, "1\u00a0234\u00a0567 ₽"},
		{-2500, "-2\u00a0500 ₽"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRub(tt.amount), "amount %d", tt.amount)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "+15000₽", normalize("+ 15\u00a0000 ₽"))
	assert.Equal(t, "+15000₽", normalize("+ 15\u202f000\t₽"))
}

func TestSelectTexts(t *testing.T) {
	all := []string{"Дох.", "+ 1 ₽", "Расх.", "- 2 ₽", "Дох."}
	assert.Equal(t, []string{"+ 1 ₽"}, selectTexts(all, IncomeLabel))
	assert.Equal(t, []string{"- 2 ₽"}, selectTexts(all, ExpenseLabel))
	assert.Equal(t, all, selectTexts(all, ""))
	assert.Empty(t, selectTexts([]string{"Дох."}, IncomeLabel))
}

func TestDashboard_VerifyIncomeAndExpense(t *testing.T) {
	f := newFixture()
	block := mock.Ready()
	block.Children = texts("Доходы и расходы", " Дох. ", "+ 15 000 ₽", "Расх.", "- 2\u00a0500 ₽")
	f.session.AddElement(IncomeExpenseBlock.Selector, block)

	page := NewDashboardPage(f.in, f.sc)
	require.NoError(t, page.VerifyIncomeAmount(context.Background(), 15000))
	require.NoError(t, page.VerifyExpenseAmount(context.Background(), 2500))
	require.NoError(t, page.VerifyChartExpenseAmount(context.Background(), 2500))

	err := page.VerifyIncomeAmount(context.Background(), 2500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrAmountMismatch))
	var execErr *core.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "+ 2\u00a0500 ₽", execErr.Details["expected"])
	assert.Equal(t, []string{"+ 15 000 ₽"}, execErr.Details["found"])
}

func TestDashboard_VerifyWealth(t *testing.T) {
	f := newFixture()
	block := mock.Ready()
	block.Children = texts("Благосостояние", "1 234 567 ₽")
	f.session.AddElement(WealthBlock.Selector, block)

	page := NewDashboardPage(f.in, f.sc)
	require.NoError(t, page.VerifyWealthAmount(context.Background(), 1234567))
	assert.ErrorIs(t, page.VerifyWealthAmount(context.Background(), 1), core.ErrAmountMismatch)
}

func TestDashboard_BlockMissing(t *testing.T) {
	f := newFixture()
	page := NewDashboardPage(f.in, f.sc)

	err := page.VerifyWealthAmount(context.Background(), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrWaitTimeout)
	assert.Equal(t, blockWait, f.clock.Elapsed())
}

const dashboardSource = `<?xml version="1.0" encoding="UTF-8"?>
<hierarchy rotation="0">
  <android.widget.FrameLayout class="android.widget.FrameLayout" bounds="[0,0][1080,2400]">
    <android.view.ViewGroup class="android.view.ViewGroup" content-desc="Благосостояние, 10 000 ₽" bounds="[0,100][1080,400]">
      <android.widget.TextView class="android.widget.TextView" text="Благосостояние" bounds="[0,100][500,150]"/>
      <android.widget.TextView class="android.widget.TextView" text="10 000 ₽" bounds="[0,150][500,200]"/>
    </android.view.ViewGroup>
    <android.view.ViewGroup class="android.view.ViewGroup" content-desc="Доходы и расходы" bounds="[0,400][1080,900]">
      <android.view.ViewGroup class="android.view.ViewGroup" bounds="[0,400][1080,600]">
        <android.widget.TextView class="android.widget.TextView" text="Дох." bounds="[0,400][200,450]"/>
        <android.widget.TextView class="android.widget.TextView" text="+ 3 000 ₽" bounds="[200,400][500,450]"/>
      </android.view.ViewGroup>
      <android.widget.TextView class="android.widget.TextView" text="Расх." bounds="[0,600][200,650]"/>
      <android.widget.TextView class="android.widget.TextView" text="- 700 ₽" bounds="[200,600][500,650]"/>
    </android.view.ViewGroup>
  </android.widget.FrameLayout>
</hierarchy>`

func TestSourceReader(t *testing.T) {
	f := newFixture()
	f.session.SourceFunc = func(*mock.Session) (string, error) { return dashboardSource, nil }

	page := NewDashboardPage(f.in, f.sc)
	page.Amounts = NewSourceReader(f.session)

	ctx := context.Background()
	require.NoError(t, page.VerifyIncomeAmount(ctx, 3000))
	require.NoError(t, page.VerifyExpenseAmount(ctx, 700))
	require.NoError(t, page.VerifyWealthAmount(ctx, 10000))
	assert.ErrorIs(t, page.VerifyExpenseAmount(ctx, 3000), core.ErrAmountMismatch)

	_, err := page.Amounts.Find(ctx, Block{Name: "Цели", Description: "Цели"}, "")
	assert.ErrorIs(t, err, core.ErrElementNotFound)
}

func TestDashboard_TapPreviousMonthThreeTimes(t *testing.T) {
	f := newFixture()
	btn := f.session.AddElement(dashboardSelectors["previousMonthButton"], mock.Ready())

	page := NewDashboardPage(f.in, f.sc)
	require.NoError(t, page.TapPreviousMonthThreeTimes(context.Background()))
	assert.Equal(t, 3, btn.Clicks())

	var pauses int
	for _, d := range f.clock.Sleeps() {
		if d == monthSwitchPause {
			pauses++
		}
	}
	assert.Equal(t, 3, pauses)
}

func TestDashboard_TapPreviousMonthOnChart(t *testing.T) {
	f := newFixture()
	btn := f.session.AddElement(dashboardSelectors["chartPreviousMonth"], mock.Ready())

	page := NewDashboardPage(f.in, f.sc)
	require.NoError(t, page.TapPreviousMonthOnChart(context.Background()))
	assert.Equal(t, 1, btn.Clicks())
	sleeps := f.clock.Sleeps()
	assert.Equal(t, chartRefresh, sleeps[len(sleeps)-1])
}

func TestLoginPage_FindStartButton(t *testing.T) {
	f := newFixture()
	page := NewLoginPage(f.in, f.sc)
	page.StartButtonCandidates = []string{"~A", "~B", "~C"}

	assert.False(t, page.FindStartButton(context.Background(), 15*time.Second))
	assert.Equal(t, 15*time.Second, f.clock.Elapsed())

	f.session.AddElement("~C", mock.Ready())
	assert.True(t, page.FindStartButton(context.Background(), 15*time.Second))
}

func TestLoginPage_TapStartButton_SecondCandidate(t *testing.T) {
	f := newFixture()
	b := f.session.AddElement("~B", mock.Ready())
	page := NewLoginPage(f.in, f.sc)
	page.StartButtonCandidates = []string{"~A", "~B", "~C"}

	require.NoError(t, page.TapStartButton(context.Background()))
	assert.Equal(t, 1, b.Clicks())
	assert.Empty(t, f.session.Calls("~C.Displayed"))
	assert.Empty(t, f.session.Calls("Swipe"))
}

func TestLoginPage_TapStartButton_SwipesUntilEnabled(t *testing.T) {
	f := newFixture()
	b := f.session.AddElement(StartButtonSelectors[0], &mock.Element{Present: true, Visible: true})
	f.session.OnGesture = func(n int) {
		if n == 2 {
			b.Active = true
		}
	}
	page := NewLoginPage(f.in, f.sc)

	require.NoError(t, page.TapStartButton(context.Background()))
	assert.Equal(t, 1, b.Clicks())

	swipes := f.session.Calls("Swipe")
	require.Len(t, swipes, 2)
	assert.Equal(t, core.Point{X: 864, Y: 1200}, swipes[0].Args[0])
	assert.Equal(t, core.Point{X: 216, Y: 1200}, swipes[0].Args[1])
}

func TestLoginPage_TapStartButton_CoordinateFallback(t *testing.T) {
	f := newFixture()
	b := f.session.AddElement(StartButtonSelectors[0], &mock.Element{
		Present: true,
		Visible: true,
		Bounds:  core.Bounds{X: 100, Y: 2000, Width: 880, Height: 120},
	})
	page := NewLoginPage(f.in, f.sc)

	require.NoError(t, page.TapStartButton(context.Background()))
	assert.Zero(t, b.Clicks())
	assert.Len(t, f.session.Calls("Swipe"), onboardingSwipes)

	taps := f.session.Calls("Tap")
	require.Len(t, taps, 1)
	assert.Equal(t, core.Point{X: 540, Y: 2060}, taps[0].Args[0])
}

func TestLoginPage_TapStartButton_NotFound(t *testing.T) {
	f := newFixture()
	page := NewLoginPage(f.in, f.sc)

	err := page.TapStartButton(context.Background())
	assert.ErrorIs(t, err, core.ErrElementNotFound)
	assert.Equal(t, time.Duration(len(StartButtonSelectors))*startButtonProbe, f.clock.Elapsed())
}

func TestLoginPage_LoginWithCredentials(t *testing.T) {
	f := newFixture()
	email := f.session.AddElement(loginSelectors["emailInputField"], mock.Ready())
	password := f.session.AddElement(loginSelectors["passwordInputLogin"], mock.Ready())
	submit := f.session.AddElement(loginSelectors["loginButton"], mock.Ready())
	page := NewLoginPage(f.in, f.sc)

	require.NoError(t, page.LoginWithCredentials(context.Background(), "qa@whiteswan.fin", "secret"))
	assert.Equal(t, []string{"qa@whiteswan.fin"}, email.Values())
	assert.Equal(t, []string{"secret"}, password.Values())
	assert.Equal(t, 1, submit.Clicks())

	sleeps := f.clock.Sleeps()
	assert.Equal(t, afterLoginPause, sleeps[len(sleeps)-1])
}

func TestLoginPage_SetEmailFailure(t *testing.T) {
	f := newFixture()
	el := f.session.AddElement(loginSelectors["emailInput"], mock.Ready())
	el.Errors = map[string]error{"SetValue": errors.New("stale element")}
	page := NewLoginPage(f.in, f.sc)

	err := page.SetEmail(context.Background(), "qa@whiteswan.fin")
	var ie *interact.InteractionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, interact.MethodSetValue, ie.Method)
	assert.Equal(t, "qa@whiteswan.fin", ie.Value)
}

func TestLoginPage_EnvironmentSteps(t *testing.T) {
	f := newFixture()
	for _, name := range []string{"actionButton", "productionServerEnvironment", "testServer", "complexButton", "registrationButton"} {
		f.session.AddElement(loginSelectors[name], mock.Ready())
	}
	page := NewLoginPage(f.in, f.sc)
	ctx := context.Background()

	assert.True(t, page.ActionButtonDisplayed(ctx))
	require.NoError(t, page.OpenSettings(ctx))
	require.NoError(t, page.ChooseEnvironmentTier(ctx))
	require.NoError(t, page.ChooseTestServer(ctx))
	require.NoError(t, page.ConfirmEnvironment(ctx))
	for _, name := range []string{"actionButton", "productionServerEnvironment", "testServer", "complexButton"} {
		assert.Equal(t, 1, f.session.Lookup(loginSelectors[name]).Clicks(), name)
	}
}

func TestLoginPage_EnvironmentStepGated(t *testing.T) {
	f := newFixture()
	f.session.AddElement(loginSelectors["productionServerEnvironment"], mock.Ready())
	page := NewLoginPage(f.in, f.sc)

	err := page.ChooseEnvironmentTier(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrWaitTimeout)
	assert.Contains(t, err.Error(), "testServer not displayed")
}

func TestLoginPage_ScrollAndTapLogout(t *testing.T) {
	f := newFixture()
	logout := f.session.AddElement(loginSelectors["logoutButton"], mock.Ready())
	f.session.AddElement(loginSelectors["registrationButton"], mock.Ready())
	page := NewLoginPage(f.in, f.sc)

	require.NoError(t, page.ScrollAndTapLogout(context.Background(), ""))
	assert.Equal(t, 1, logout.Clicks())
}

func TestLoginPage_ScrollAndTapLogout_Unconfirmed(t *testing.T) {
	f := newFixture()
	logout := f.session.AddElement(loginSelectors["logoutButton"], mock.Ready())
	page := NewLoginPage(f.in, f.sc)

	require.NoError(t, page.ScrollAndTapLogout(context.Background(), gesture.Down))
	assert.Equal(t, 1, logout.Clicks())
}

func TestIncomeExpense_SetAmounts(t *testing.T) {
	f := newFixture()
	f.session.AddElement(incomeExpenseSelectors["incomeAmountInput"], mock.Ready())
	page := NewIncomeExpensePage(f.in, f.sc)

	require.NoError(t, page.SetIncomeAmount(context.Background(), 15000))
	assert.Equal(t, []string{"1", "5", "0", "0", "0", "Enter"}, keys(f.session))

	err := page.SetExpenseAmount(context.Background(), 10)
	var ie *interact.InteractionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, interact.MethodTypeDigits, ie.Method)
}

func TestIncomeExpense_Taps(t *testing.T) {
	f := newFixture()
	for _, sel := range incomeExpenseSelectors {
		f.session.AddElement(sel, mock.Ready())
	}
	page := NewIncomeExpensePage(f.in, f.sc)
	ctx := context.Background()

	steps := []func(context.Context) error{
		page.TapExpenseType,
		page.TapOperationTypeInput,
		page.TapProductsCategory,
		page.TapExpenseAccountInput,
		page.TapCreateButton,
		page.TapOK,
	}
	for _, step := range steps {
		require.NoError(t, step(ctx))
	}
	assert.Equal(t, 1, f.session.Lookup(incomeExpenseSelectors["createButton"]).Clicks())
	assert.Equal(t, 1, f.session.Lookup(incomeExpenseSelectors["okButton"]).Clicks())
}

func TestDashboard_Taps(t *testing.T) {
	f := newFixture()
	for _, sel := range dashboardSelectors {
		f.session.AddElement(sel, mock.Ready())
	}
	page := NewDashboardPage(f.in, f.sc)
	ctx := context.Background()

	taps := map[string]func(context.Context) error{
		"addButton":            page.TapAddButton,
		"incomeExpenseSection": page.TapIncomeExpenseSection,
		"wealthSection":        page.TapWealthSection,
	}
	for name, tap := range taps {
		require.NoError(t, tap(ctx), name)
		assert.Equal(t, 1, f.session.Lookup(dashboardSelectors[name]).Clicks(), name)
	}
}

func TestLoginPage_Forms(t *testing.T) {
	f := newFixture()
	for _, sel := range loginSelectors {
		f.session.AddElement(sel, mock.Ready())
	}
	page := NewLoginPage(f.in, f.sc)
	ctx := context.Background()

	taps := map[string]func(context.Context) error{
		"registrationButton":       page.TapRegistrationButton,
		"submitRegistrationButton": page.TapSubmitRegistrationButton,
		"confirmButton":            page.TapConfirmButton,
		"forgotPasswordLink":       page.TapForgotPasswordLink,
		"sendCodeButton":           page.TapSendCodeButton,
		"saveButtonNext":           page.TapSaveButton,
	}
	for name, tap := range taps {
		require.NoError(t, tap(ctx), name)
		assert.Equal(t, 1, f.session.Lookup(loginSelectors[name]).Clicks(), name)
	}

	inputs := map[string]func(context.Context, string) error{
		"passwordInput":           page.SetPassword,
		"confirmPasswordInput":    page.SetConfirmPassword,
		"confirmationCodeInput":   page.SetConfirmationCode,
		"emailInputFieldForgot":   page.SetEmailForgot,
		"verificationCodeInput":   page.SetVerificationCode,
		"newPasswordInput":        page.SetNewPassword,
		"confirmNewPasswordInput": page.SetConfirmNewPassword,
	}
	for name, set := range inputs {
		require.NoError(t, set(ctx, name+"-value"), name)
		assert.Equal(t, []string{name + "-value"}, f.session.Lookup(loginSelectors[name]).Values(), name)
	}
}

func TestBase_ScrollToEdge(t *testing.T) {
	t.Run("small budget swipes a fixed number of times", func(t *testing.T) {
		f := newFixture()
		f.session.SourceFunc = func(*mock.Session) (string, error) { return "<hierarchy/>", nil }
		page := NewDashboardPage(f.in, f.sc)

		require.NoError(t, page.ScrollToEdge(context.Background(), gesture.Up, 3))
		assert.Equal(t, 3, f.session.Gestures())
		assert.Empty(t, f.session.Calls("Source"))
	})

	t.Run("large budget stops at a stable edge", func(t *testing.T) {
		f := newFixture()
		f.session.SourceFunc = func(*mock.Session) (string, error) { return "<hierarchy/>", nil }
		page := NewDashboardPage(f.in, f.sc)

		require.NoError(t, page.ScrollToEdge(context.Background(), gesture.Down, 0))
		assert.Equal(t, 2, f.session.Gestures())
	})

	t.Run("large budget is honoured when the page keeps moving", func(t *testing.T) {
		f := newFixture()
		page := NewDashboardPage(f.in, f.sc)

		require.NoError(t, page.ScrollToEdge(context.Background(), gesture.Down, 8))
		assert.Equal(t, 8, f.session.Gestures())
	})
}
