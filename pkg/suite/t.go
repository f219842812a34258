package suite

import (
	"context"

	"github.com/whiteswan/mobile-e2e/pkg/config"
	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/gesture"
	"github.com/whiteswan/mobile-e2e/pkg/interact"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
	"github.com/whiteswan/mobile-e2e/pkg/pages"
	"github.com/whiteswan/mobile-e2e/pkg/prepare"
	"github.com/whiteswan/mobile-e2e/pkg/runstate"
)

// T is handed to a test body: the session, the interaction layers, page
// objects bound to them and the run flags.
type T struct {
	Name     string
	Session  core.Session
	In       *interact.Interactor
	Scroller *gesture.Scroller
	Flags    *runstate.Flags
	Config   *config.Config

	Login         *pages.LoginPage
	Dashboard     *pages.DashboardPage
	IncomeExpense *pages.IncomeExpensePage
	Wealth        *pages.WealthPage

	suite *Suite
}

func (s *Suite) newT(name string) *T {
	return &T{
		Name:          name,
		Session:       s.deps.Session,
		In:            s.in,
		Scroller:      s.scroller,
		Flags:         s.deps.Flags,
		Config:        s.opts.Config,
		Login:         pages.NewLoginPage(s.in, s.scroller),
		Dashboard:     pages.NewDashboardPage(s.in, s.scroller),
		IncomeExpense: pages.NewIncomeExpensePage(s.in, s.scroller),
		Wealth:        pages.NewWealthPage(s.in, s.scroller),
		suite:         s,
	}
}

// Step runs fn as a named report step. With inline step screenshots on,
// a screenshot is attached after the step, marked FAILED when it failed.
func (t *T) Step(name string, fn func() error) error {
	return t.suite.deps.Reporter.Step(name, func() error {
		err := fn()
		if t.Config.InlineStepScreenshots {
			label := name
			if err != nil {
				label = "FAILED " + name
			}
			t.Screenshot(label)
		}
		return err
	})
}

// Screenshot attaches the current screen under name. Failures are logged.
func (t *T) Screenshot(name string) {
	png, err := t.Session.Screenshot()
	if err != nil {
		logger.Warn("[suite] screenshot %q: %v", name, err)
		return
	}
	t.suite.deps.Reporter.Attach(name, core.ContentTypePNG, png)
}

// Attach adds an attachment to the current step or test.
func (t *T) Attach(name, contentType string, body []byte) {
	t.suite.deps.Reporter.Attach(name, contentType, body)
}

// Prepare runs the onboarding and environment sequence on the login screen,
// each sub-step reported as a step.
func (t *T) Prepare(ctx context.Context) (prepare.Result, error) {
	p := prepare.New(t.In, t.Login, t.Flags, t.suite.opts.Prepare)
	p.Step = t.Step
	return p.Prepare(ctx)
}
