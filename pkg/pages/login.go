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

var loginSelectors = map[string]string{
	// Server environment selection
	"actionButton":                `-android uiautomator: new UiSelector().className("com.horcrux.svg.SvgView").instance(0)`,
	"productionServerEnvironment": `//android.view.ViewGroup[@content-desc="Окружение"]`,
	"testServer":                  `~Тестовый сервер`,
	"complexButton":               `(//android.widget.ScrollView)[2]//android.view.ViewGroup/android.view.ViewGroup/android.view.ViewGroup[2]`,

	// Registration, login, password reset, onboarding
	"registrationButton":       `~Регистрация`,
	"emailInput":               `//*[@content-desc="Введите Email"]//android.widget.EditText`,
	"passwordInput":            `//*[@content-desc="Пароль"]//android.widget.EditText`,
	"confirmPasswordInput":     `//*[@content-desc="Подтвердите пароль"]//android.widget.EditText`,
	"submitRegistrationButton": `~Зарегистрироваться`,
	"confirmationCodeInput":    `//*[@content-desc="Введите код"]//android.widget.EditText`,
	"confirmButton":            `~Подтвердить`,
	"emailInputField":          `//android.view.ViewGroup[@content-desc="Введите Email"]/android.widget.EditText`,
	"passwordInputLogin":       `//android.view.ViewGroup[@content-desc="Пароль"]/android.widget.EditText`,
	"loginButton":              `//android.view.ViewGroup[@content-desc="Войти"]`,
	"forgotPasswordLink":       `-android uiautomator: new UiSelector().text("Забыли пароль?")`,
	"emailInputFieldForgot":    `//android.view.ViewGroup[@content-desc="Введите Email"]/android.widget.EditText`,
	"sendCodeButton":           `~Отправить код`,
	"verificationCodeInput":    `//android.view.ViewGroup[@content-desc="Введите код"]/android.widget.EditText`,
	"newPasswordInput":         `//android.view.ViewGroup[@content-desc="Новый пароль"]/android.widget.EditText`,
	"confirmNewPasswordInput":  `//android.view.ViewGroup[@content-desc="Подтвердите новый пароль"]/android.widget.EditText`,
	"saveButtonNext":           `~Сохранить`,
	"backButtonIcon":           `android=new UiSelector().className("android.view.ViewGroup").instance(13)`,
	"logoutButton":             `~Выйти`,
	"startButton":              `//android.view.ViewGroup[@content-desc="Начать"]`,
}

// StartButtonSelectors are the known identities of the onboarding "Начать"
// button across app builds, in preference order.
var StartButtonSelectors = []string{
	`//android.view.ViewGroup[@content-desc="Начать"]`,
	`~Начать`,
	`-android uiautomator: new UiSelector().description("Начать")`,
}

// Onboarding timings.
const (
	startButtonProbe     = 3 * time.Second
	onboardingSwipes     = 5
	onboardingSwipePause = 800 * time.Millisecond
	startEnabledTimeout  = 10 * time.Second
	startEnabledPoll     = 500 * time.Millisecond
	environmentStepWait  = 15 * time.Second
	afterLoginPause      = 5 * time.Second
	logoutConfirmTimeout = 8 * time.Second
	logoutConfirmPoll    = 400 * time.Millisecond
)

// LoginPage covers onboarding, environment selection, registration, login
// and password recovery.
type LoginPage struct {
	Base

	// StartButtonCandidates overrides StartButtonSelectors when set.
	StartButtonCandidates []string
}

// NewLoginPage creates the login page.
func NewLoginPage(in *interact.Interactor, sc *gesture.Scroller) *LoginPage {
	return &LoginPage{Base: newBase(in, sc, loginSelectors)}
}

func (p *LoginPage) candidates() []string {
	if len(p.StartButtonCandidates) > 0 {
		return p.StartButtonCandidates
	}
	return StartButtonSelectors
}

// Environment selection

func (p *LoginPage) TapActionButton(ctx context.Context) error {
	return p.tap(ctx, "actionButton")
}

func (p *LoginPage) TapProductionServerEnvironment(ctx context.Context) error {
	return p.tap(ctx, "productionServerEnvironment")
}

func (p *LoginPage) TapTestServer(ctx context.Context) error {
	return p.tap(ctx, "testServer")
}

func (p *LoginPage) TapComplexButton(ctx context.Context) error {
	return p.tap(ctx, "complexButton")
}

// ActionButtonDisplayed checks the settings button once.
func (p *LoginPage) ActionButtonDisplayed(ctx context.Context) bool {
	ok, err := p.loc.Get("actionButton").Displayed()
	return err == nil && ok
}

// OpenSettings opens the environment settings.
func (p *LoginPage) OpenSettings(ctx context.Context) error {
	return p.TapActionButton(ctx)
}

// ChooseEnvironmentTier opens the environment list.
func (p *LoginPage) ChooseEnvironmentTier(ctx context.Context) error {
	if err := p.TapProductionServerEnvironment(ctx); err != nil {
		return err
	}
	return p.waitVisible(ctx, "testServer", environmentStepWait)
}

// ChooseTestServer selects the test backend.
func (p *LoginPage) ChooseTestServer(ctx context.Context) error {
	if err := p.TapTestServer(ctx); err != nil {
		return err
	}
	return p.waitVisible(ctx, "complexButton", environmentStepWait)
}

// ConfirmEnvironment leaves the settings back to the welcome screen.
func (p *LoginPage) ConfirmEnvironment(ctx context.Context) error {
	if err := p.TapComplexButton(ctx); err != nil {
		return err
	}
	return p.waitVisible(ctx, "registrationButton", environmentStepWait)
}

// Registration, login and recovery taps

func (p *LoginPage) TapRegistrationButton(ctx context.Context) error {
	return p.tap(ctx, "registrationButton")
}

func (p *LoginPage) TapSubmitRegistrationButton(ctx context.Context) error {
	return p.tap(ctx, "submitRegistrationButton")
}

func (p *LoginPage) TapConfirmButton(ctx context.Context) error {
	return p.tap(ctx, "confirmButton")
}

func (p *LoginPage) TapBackButton(ctx context.Context) error {
	return p.tap(ctx, "backButtonIcon")
}

func (p *LoginPage) TapLogoutButton(ctx context.Context) error {
	return p.tap(ctx, "logoutButton")
}

func (p *LoginPage) TapForgotPasswordLink(ctx context.Context) error {
	return p.tap(ctx, "forgotPasswordLink")
}

func (p *LoginPage) TapSendCodeButton(ctx context.Context) error {
	return p.tap(ctx, "sendCodeButton")
}

func (p *LoginPage) TapSaveButton(ctx context.Context) error {
	return p.tap(ctx, "saveButtonNext")
}

// Input

func (p *LoginPage) SetEmail(ctx context.Context, email string) error {
	return p.set(ctx, "emailInput", email)
}

func (p *LoginPage) SetPassword(ctx context.Context, password string) error {
	return p.set(ctx, "passwordInput", password)
}

func (p *LoginPage) SetConfirmPassword(ctx context.Context, password string) error {
	return p.set(ctx, "confirmPasswordInput", password)
}

func (p *LoginPage) SetConfirmationCode(ctx context.Context, code string) error {
	return p.set(ctx, "confirmationCodeInput", code)
}

func (p *LoginPage) SetEmailForgot(ctx context.Context, email string) error {
	return p.set(ctx, "emailInputFieldForgot", email)
}

func (p *LoginPage) SetVerificationCode(ctx context.Context, code string) error {
	return p.set(ctx, "verificationCodeInput", code)
}

func (p *LoginPage) SetNewPassword(ctx context.Context, password string) error {
	return p.set(ctx, "newPasswordInput", password)
}

func (p *LoginPage) SetConfirmNewPassword(ctx context.Context, password string) error {
	return p.set(ctx, "confirmNewPasswordInput", password)
}

// WaitForEmailInput waits for the registration form.
func (p *LoginPage) WaitForEmailInput(ctx context.Context) error {
	return p.waitVisible(ctx, "emailInput", environmentStepWait)
}

// WaitForConfirmationCodeInput waits for the code screen after registering.
func (p *LoginPage) WaitForConfirmationCodeInput(ctx context.Context) error {
	return p.waitVisible(ctx, "confirmationCodeInput", environmentStepWait)
}

// LoginWithCredentials fills the login form, submits it and waits for the
// dashboard to load.
func (p *LoginPage) LoginWithCredentials(ctx context.Context, email, password string) error {
	if err := p.set(ctx, "emailInputField", email); err != nil {
		return err
	}
	if err := p.set(ctx, "passwordInputLogin", password); err != nil {
		return err
	}
	if err := p.tap(ctx, "loginButton"); err != nil {
		return err
	}
	return p.in.Pause(ctx, afterLoginPause)
}

// FindStartButton reports whether any start button candidate becomes
// visible. The timeout is split evenly across candidates.
func (p *LoginPage) FindStartButton(ctx context.Context, timeout time.Duration) bool {
	candidates := p.candidates()
	slice := timeout / time.Duration(len(candidates))
	for _, sel := range candidates {
		if p.in.IsElementDisplayed(ctx, sel, slice) {
			logger.Info("[login] start button found with %s", sel)
			return true
		}
	}
	return false
}

// TapStartButton dismisses onboarding. The button stays disabled until the
// intro pages are swiped through, so it swipes right to left until the
// button is enabled, and taps its centre by coordinates if it never is.
func (p *LoginPage) TapStartButton(ctx context.Context) error {
	var button core.Element
	for _, sel := range p.candidates() {
		el, err := p.in.WaitForDisplayed(ctx, sel, startButtonProbe, p.in.Settings().PresenceInterval)
		if err != nil {
			logger.Debug("[login] start button candidate %s: %v", sel, err)
			continue
		}
		logger.Info("[login] using start button selector %s", sel)
		button = el
		break
	}
	if button == nil {
		return core.ErrElementNotFound.WithMessage("start button not found with any selector")
	}

	p.swipeUntilEnabled(ctx, button)

	err := p.in.WaitUntil(ctx, button.Enabled, startEnabledTimeout, startEnabledPoll,
		"start button not enabled after onboarding swipes")
	if err == nil {
		if err := button.Click(); err != nil {
			return fmt.Errorf("tap start button: %w", err)
		}
		return nil
	}

	logger.Warn("[login] %v; tapping by coordinates", err)
	rect, rerr := button.Rect()
	if rerr != nil {
		return fmt.Errorf("start button bounds: %w", rerr)
	}
	x, y := rect.Center()
	return p.in.Session().Tap(core.Point{X: x, Y: y})
}

func (p *LoginPage) swipeUntilEnabled(ctx context.Context, button core.Element) {
	for i := 1; i <= onboardingSwipes; i++ {
		if enabled, err := button.Enabled(); err == nil && enabled {
			logger.Debug("[login] start button enabled after %d swipes", i-1)
			return
		}
		if err := p.scroller.SwipeHorizontal(ctx, 0.8, 0.2); err != nil {
			logger.Warn("[login] onboarding swipe %d: %v", i, err)
			return
		}
		if err := p.in.Pause(ctx, onboardingSwipePause); err != nil {
			return
		}
	}
}

// ScrollAndTapLogout scrolls to the logout button, taps it and waits for
// the welcome screen. An empty dir means up.
func (p *LoginPage) ScrollAndTapLogout(ctx context.Context, dir gesture.Direction) error {
	if dir == "" {
		dir = gesture.Up
	}
	if err := p.ScrollAndClick(ctx, p.loc.Selector("logoutButton"), dir); err != nil {
		return err
	}

	registration := p.loc.Get("registrationButton")
	login := p.loc.Get("loginButton")
	err := p.in.WaitUntil(ctx, func() (bool, error) {
		if ok, err := registration.Displayed(); err == nil && ok {
			return true, nil
		}
		return login.Displayed()
	}, logoutConfirmTimeout, logoutConfirmPoll, "logout not confirmed")
	if err != nil {
		logger.Warn("[login] %v", err)
	}
	return nil
}
