package pages

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/gesture"
	"github.com/whiteswan/mobile-e2e/pkg/interact"
)

var datePickerSelectors = map[string]string{
	"okButton":             `//android.widget.Button[@resource-id="android:id/button1"]`,
	"datePickerYearHeader": `//android.widget.TextView[@resource-id="android:id/date_picker_header_year"]`,
	"previousMonthButton":  `~Previous month`,
}

// Years added by SelectYearPlusThree.
const yearsAhead = 3

// DatePickerPage drives the native Android date picker dialog. "Today" is
// taken from the interactor's clock.
type DatePickerPage struct {
	Base
}

// NewDatePickerPage creates the date picker page.
func NewDatePickerPage(in *interact.Interactor, sc *gesture.Scroller) *DatePickerPage {
	return &DatePickerPage{Base: newBase(in, sc, datePickerSelectors)}
}

func (p *DatePickerPage) today() time.Time {
	return p.in.Clock().Now()
}

// CurrentDateSelector addresses the field showing today's date as dd.MM.yyyy.
func (p *DatePickerPage) CurrentDateSelector() string {
	return "~" + p.today().Format("02.01.2006")
}

// NextDay is tomorrow's day of month, wrapping to 1 on the last day.
func (p *DatePickerPage) NextDay() int {
	return p.today().AddDate(0, 0, 1).Day()
}

// CalendarDaySelector addresses a clickable day cell in the month view.
func CalendarDaySelector(day int) string {
	return fmt.Sprintf(`//android.view.View[@resource-id="android:id/month_view"]//android.view.View[@text="%d" and @clickable="true"]`, day)
}

// YearOptionSelector addresses a year in the year list.
func YearOptionSelector(year int) string {
	return fmt.Sprintf(`//android.widget.TextView[@resource-id="android:id/text1" and @text="%s"]`, strconv.Itoa(year))
}

// SelectCurrentDate opens the picker from the field showing today's date.
func (p *DatePickerPage) SelectCurrentDate(ctx context.Context) error {
	return p.in.Click(ctx, interact.By(p.CurrentDateSelector()), 0)
}

// TapPreviousMonthThreeTimes steps the calendar back three months.
func (p *DatePickerPage) TapPreviousMonthThreeTimes(ctx context.Context) error {
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

// SelectDayInCalendar taps tomorrow's day number in the visible month.
func (p *DatePickerPage) SelectDayInCalendar(ctx context.Context) error {
	return p.in.Click(ctx, interact.By(CalendarDaySelector(p.NextDay())), 0)
}

func (p *DatePickerPage) TapOK(ctx context.Context) error {
	return p.tap(ctx, "okButton")
}

func (p *DatePickerPage) TapYearHeader(ctx context.Context) error {
	return p.tap(ctx, "datePickerYearHeader")
}

// SelectYearPlusThree picks the year three years from now, scrolling the
// year list down until it shows.
func (p *DatePickerPage) SelectYearPlusThree(ctx context.Context) error {
	return p.ScrollAndClick(ctx, YearOptionSelector(p.today().Year()+yearsAhead), gesture.Down)
}

// PickDateThreeMonthsAgo selects tomorrow's day number three months back
// and confirms the dialog.
func (p *DatePickerPage) PickDateThreeMonthsAgo(ctx context.Context) error {
	for _, fn := range []func(context.Context) error{
		p.SelectCurrentDate,
		p.TapPreviousMonthThreeTimes,
		p.SelectDayInCalendar,
		p.TapOK,
	} {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// PickDateThreeYearsAhead moves the year three years forward and confirms
// the dialog.
func (p *DatePickerPage) PickDateThreeYearsAhead(ctx context.Context) error {
	for _, fn := range []func(context.Context) error{
		p.SelectCurrentDate,
		p.TapYearHeader,
		p.SelectYearPlusThree,
		p.TapOK,
	} {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}
