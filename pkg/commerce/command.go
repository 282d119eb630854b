package commerce

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/worldofchami/ucpchat/pkg/models"
)

const (
	MinQty = 1
	MaxQty = 3
)

// Command is the interpreted intent of a chat message: *SearchCommand or
// *CheckoutCommand.
type Command interface {
	Meta() *models.CommandMeta
	isCommand()
}

type SearchCommand struct {
	Query string
}

// CheckoutCommand addresses an item of the last search by its 1-based
// position.
type CheckoutCommand struct {
	ItemNumber int
	Qty        int
}

func (*SearchCommand) isCommand()   {}
func (*CheckoutCommand) isCommand() {}

func (c *SearchCommand) Meta() *models.CommandMeta {
	return &models.CommandMeta{Type: "search", Query: c.Query}
}

func (c *CheckoutCommand) Meta() *models.CommandMeta {
	return &models.CommandMeta{Type: "checkout", ItemNumber: c.ItemNumber, Qty: c.Qty}
}

var (
	checkoutIntentRe = regexp.MustCompile(`(?i)\b(?:checkout|check out|buy|purchase|order)\b`)
	searchIntentRe   = regexp.MustCompile(`(?i)\b(?:search|find|show|browse|look up)\b`)

	ordinalRe   = regexp.MustCompile(`(?i)\b(first|second|third)\b`)
	itemRe      = regexp.MustCompile(`(?i)\bitem\s*#?\s*(\d+)\b`)
	hashRe      = regexp.MustCompile(`#\s*(\d+)\b`)
	afterVerbRe = regexp.MustCompile(`(?i)\b(?:checkout|check out|buy|purchase|order)\s+(?:number\s+|no\.?\s*)?(\d+)\b`)
	leadingRe   = regexp.MustCompile(`^\s*(\d+)\b`)
	trailingRe  = regexp.MustCompile(`\b(\d+)\s*$`)

	qtyRe   = regexp.MustCompile(`(?i)\b(?:qty|quantity)\s*[:=]?\s*(\d+)\b`)
	timesRe = regexp.MustCompile(`(?i)\b(\d+)\s*x\b|\bx\s*(\d+)\b`)

	leadingVerbRe = regexp.MustCompile(`(?i)^(?:search|find|show|browse|look up|buy|purchase|order)\b\s*`)
	fillerRe      = regexp.MustCompile(`(?i)^(?:for|a|an|the|me)(?:\s+|$)`)
)

var ordinals = map[string]int{"first": 1, "second": 2, "third": 3}

// ParseCommand interprets free text. Checkout wins when an item number can
// be found; otherwise the text degrades to a search. Empty text, or text too
// short to search for, yields nil.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if checkoutIntentRe.MatchString(text) {
		if item := extractItemNumber(text); item > 0 {
			return &CheckoutCommand{ItemNumber: item, Qty: extractQty(text)}
		}
	}

	if searchIntentRe.MatchString(text) || len([]rune(text)) > 2 {
		return &SearchCommand{Query: searchQuery(text)}
	}
	return nil
}

// ClampQty forces qty into [MinQty, MaxQty].
func ClampQty(qty int) int {
	if qty < MinQty {
		return MinQty
	}
	if qty > MaxQty {
		return MaxQty
	}
	return qty
}

func extractItemNumber(text string) int {
	if m := ordinalRe.FindStringSubmatch(text); m != nil {
		return ordinals[strings.ToLower(m[1])]
	}
	if n, ok := firstNumber(itemRe, text); ok {
		return n
	}
	if n, ok := firstNumber(hashRe, text); ok {
		return n
	}

	// Quantity clauses would otherwise be mistaken for the item number.
	rest := qtyRe.ReplaceAllString(text, " ")
	rest = timesRe.ReplaceAllString(rest, " ")
	for _, re := range []*regexp.Regexp{afterVerbRe, leadingRe, trailingRe} {
		if n, ok := firstNumber(re, rest); ok {
			return n
		}
	}
	return 0
}

func extractQty(text string) int {
	if n, ok := firstNumber(qtyRe, text); ok {
		return ClampQty(n)
	}
	if n, ok := firstNumber(timesRe, text); ok {
		return ClampQty(n)
	}
	return MinQty
}

// firstNumber returns the first non-empty capture group of re in text.
func firstNumber(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	for _, g := range m[min(1, len(m)):] {
		if g == "" {
			continue
		}
		n, err := strconv.Atoi(g)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func searchQuery(text string) string {
	q := strings.TrimSpace(leadingVerbRe.ReplaceAllString(text, ""))
	q = NormalizeQuery(q)
	if q == "" {
		return text
	}
	return q
}

// NormalizeQuery strips leading filler words ("for", "a", "an", "the",
// "me") and surrounding whitespace.
func NormalizeQuery(q string) string {
	q = strings.TrimSpace(q)
	for {
		stripped := strings.TrimSpace(fillerRe.ReplaceAllString(q, ""))
		if stripped == q {
			return q
		}
		q = stripped
	}
}
