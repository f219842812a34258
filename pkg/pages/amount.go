package pages

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/driver/appium"
	"github.com/whiteswan/mobile-e2e/pkg/interact"
)

const textViewClass = "android.widget.TextView"

// blockWait bounds how long a dashboard block may take to render.
const blockWait = 15 * time.Second

// Block identifies a dashboard section by its content description.
type Block struct {
	Name        string
	Selector    string
	Description string
}

// Dashboard blocks.
var (
	IncomeExpenseBlock = Block{
		Name:        "Доходы и расходы",
		Selector:    `android=new UiSelector().descriptionContains("Доходы и расходы")`,
		Description: "Доходы и расходы",
	}
	WealthBlock = Block{
		Name:        "Благосостояние",
		Selector:    `android=new UiSelector().descriptionStartsWith("Благосостояние")`,
		Description: "Благосостояние",
	}
)

// Row labels inside the income/expense block.
const (
	IncomeLabel  = "Дох."
	ExpenseLabel = "Расх."
)

// AmountReader returns the texts shown in a block. With a label it returns
// the texts that directly follow each occurrence of that label; without one
// it returns every text in the block.
type AmountReader interface {
	Find(ctx context.Context, block Block, label string) ([]string, error)
}

// ElementReader reads text views through element queries.
type ElementReader struct {
	in *interact.Interactor
}

// NewElementReader creates a reader bound to in.
func NewElementReader(in *interact.Interactor) *ElementReader {
	return &ElementReader{in: in}
}

// Find implements AmountReader.
func (r *ElementReader) Find(ctx context.Context, block Block, label string) ([]string, error) {
	el, err := r.in.WaitForDisplayed(ctx, block.Selector, blockWait, r.in.Settings().PresenceInterval)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", block.Name, err)
	}
	views, err := el.Elements(textViewClass)
	if err != nil {
		return nil, fmt.Errorf("block %s text views: %w", block.Name, err)
	}
	texts := make([]string, 0, len(views))
	for _, v := range views {
		t, err := v.Text()
		if err != nil {
			return nil, fmt.Errorf("block %s text: %w", block.Name, err)
		}
		texts = append(texts, t)
	}
	return selectTexts(texts, label), nil
}

// SourceReader reads text views from a single page source snapshot, which
// costs one round trip instead of one per text view.
type SourceReader struct {
	session core.Session
}

// NewSourceReader creates a reader bound to session.
func NewSourceReader(session core.Session) *SourceReader {
	return &SourceReader{session: session}
}

// Find implements AmountReader.
func (r *SourceReader) Find(ctx context.Context, block Block, label string) ([]string, error) {
	src, err := r.session.Source()
	if err != nil {
		return nil, fmt.Errorf("page source: %w", err)
	}
	h, err := appium.ParsePageSource(src)
	if err != nil {
		return nil, err
	}
	nodes := h.Find(func(n *appium.Node) bool {
		return strings.Contains(n.ContentDesc, block.Description)
	})
	if len(nodes) == 0 {
		return nil, core.ErrElementNotFound.WithMessage(fmt.Sprintf("block %s not in page source", block.Name))
	}
	var texts []string
	for _, n := range nodes[0].DescendantsOfClass(textViewClass) {
		texts = append(texts, n.Text)
	}
	return selectTexts(texts, label), nil
}

func selectTexts(texts []string, label string) []string {
	if label == "" {
		return texts
	}
	var out []string
	for i := 0; i < len(texts)-1; i++ {
		if strings.TrimSpace(texts[i]) == label {
			out = append(out, texts[i+1])
		}
	}
	return out
}

// FormatRub formats an amount the way the app renders roubles: groups of
// three digits separated by a no-break space, followed by " ₽".
func FormatRub(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	b.WriteString(sign)
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteRune('\u00a0')
		}
		b.WriteRune(r)
	}
	b.WriteString(" ₽")
	return b.String()
}

// normalize drops all whitespace, including no-break spaces.
func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func containsAmount(candidates []string, expected string) bool {
	want := normalize(expected)
	for _, c := range candidates {
		if normalize(c) == want {
			return true
		}
	}
	return false
}
