package commerce

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/worldofchami/ucpchat/pkg/models"
)

func TestExtractCheckoutURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"top level url", `{"url":"https://pay.example/abc"}`, "https://pay.example/abc"},
		{"camel case", `{"checkoutUrl":"https://pay.example/c"}`, "https://pay.example/c"},
		{"snake case", `{"checkout_url":"http://pay.example/s"}`, "http://pay.example/s"},
		{"order of keys", `{"checkout_url":"https://b","url":"https://a"}`, "https://a"},
		{"nested result", `{"result":{"checkoutUrl":"https://pay.example/n"}}`, "https://pay.example/n"},
		{"text wrapped", `{"content":[{"type":"text","text":"{\"url\":\"https://pay.example/t\"}"}]}`, "https://pay.example/t"},
		{"raw payload beside content", `{"content":[{"type":"text","text":"{\"id\":\"cs_1\"}"}],"url":"https://pay.example/r"}`, "https://pay.example/r"},
		{"rejects non http", `{"url":"ftp://pay.example","checkoutUrl":"/relative"}`, ""},
		{"missing", `{"id":"cs_1"}`, ""},
		{"not an object", `"https://pay.example/string"`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCheckoutURL(json.RawMessage(tt.raw)))
		})
	}
}

func TestCheckoutArgs(t *testing.T) {
	item := models.NormalizedSearchItem{Title: "Hoodie", Price: "49.00", VariantID: "v1"}

	assert.Equal(t, map[string]any{
		"title": "Hoodie", "price": "49.00", "variantId": "v1", "quantity": 3,
	}, CheckoutArgs(ParamsItem, item, 7))

	assert.Equal(t, map[string]any{
		"items": []any{map[string]any{"title": "Hoodie", "price": "49.00", "variantId": "v1", "quantity": 1}},
	}, CheckoutArgs(ParamsItems, item, 0))
}

func TestCanonicalLink(t *testing.T) {
	assert.Equal(t, "[Open Stripe Checkout](https://pay.example/abc)", CanonicalLink(LinkMarkdown, "https://pay.example/abc"))
	assert.Equal(t, `<a href="https://pay.example/a?x=1&amp;y=2" target="_blank" rel="noopener noreferrer">Open Stripe Checkout</a>`,
		CanonicalLink(LinkHTML, "https://pay.example/a?x=1&y=2"))
}

func TestComposeConfirmationShape(t *testing.T) {
	const url = "https://pay.example/abc"
	item := models.NormalizedSearchItem{Title: "Classic Hoodie", Price: "49.00", VariantID: "v1"}

	drafts := map[string]string{
		"empty":          "",
		"omits link":     "Great choice! Your hoodie is on its way to checkout.",
		"bare url":       "Here you go: " + url,
		"markdown twice": "Done! [Pay now](" + url + ")\n\nAgain: [Open Stripe Checkout](" + url + ")",
		"html anchor":    `Ready: <a href="` + url + `">pay</a>`,
		"echoes framing": StatusLine + "\n\nAll set, pay at " + url + "\n\n" + Disclaimer,
		"angle brackets": "Checkout: <" + url + ">",
		"only the link":  url,
	}
	for _, style := range []LinkStyle{LinkMarkdown, LinkHTML} {
		for name, draft := range drafts {
			t.Run(string(style)+"/"+name, func(t *testing.T) {
				out := ComposeConfirmation(draft, url, item, 2, style)
				link := CanonicalLink(style, url)

				assert.True(t, strings.HasPrefix(out, StatusLine), out)
				assert.True(t, strings.HasSuffix(out, Disclaimer), out)
				assert.Equal(t, 1, strings.Count(out, url), out)
				assert.Equal(t, 1, strings.Count(out, link), out)
				assert.Equal(t, 1, strings.Count(out, StatusLine), out)
				assert.Equal(t, 1, strings.Count(out, Disclaimer), out)
			})
		}
	}
}

func TestComposeConfirmationKeepsModelBody(t *testing.T) {
	const url = "https://pay.example/abc"
	draft := "Nice pick, that cap suits you! Pay here: " + url + " when ready. It ships in 2.5 days."
	out := ComposeConfirmation(draft, url, models.NormalizedSearchItem{Title: "Cap"}, 1, LinkMarkdown)
	assert.Equal(t, StatusLine+"\n\nNice pick, that cap suits you! It ships in 2.5 days.\n\n[Open Stripe Checkout]("+url+")\n\n"+Disclaimer, out)
}

func TestComposeConfirmationDropsLinkSentences(t *testing.T) {
	const url = "https://pay.example/abc"
	item := models.NormalizedSearchItem{Title: "Cap"}
	synthesized := "Your checkout for Cap (qty 1) is ready."

	for name, tt := range map[string]struct {
		draft string
		body  string
	}{
		"link ends sentence":   {draft: "Here: " + url + ".", body: synthesized},
		"two markdown links":   {draft: "[a](" + url + ") and [b](" + url + ")", body: synthesized},
		"longer url variant":   {draft: "Pay at " + url + " or " + url + "def", body: synthesized},
		"escaped anchor":       {draft: `Tap <a href="` + url + `?a=1&amp;b=2">here</a> to pay.`, body: synthesized},
		"short leftover":       {draft: "Thanks! Pay: " + url, body: synthesized},
		"keeps other lines":    {draft: "That cap is a great pick.\nCheckout: " + url + "\nEnjoy it!", body: "That cap is a great pick.\nEnjoy it!"},
		"keeps same-line rest": {draft: "Great pick, it will keep you warm. Pay here: " + url + ". Enjoy!", body: "Great pick, it will keep you warm. Enjoy!"},
	} {
		t.Run(name, func(t *testing.T) {
			out := ComposeConfirmation(tt.draft, url, item, 1, LinkMarkdown)
			assert.Equal(t, StatusLine+"\n\n"+tt.body+"\n\n[Open Stripe Checkout]("+url+")\n\n"+Disclaimer, out)
			assert.Equal(t, 1, strings.Count(out, url), out)
		})
	}
}

func TestComposeConfirmationHTMLEscapesURL(t *testing.T) {
	const url = "https://pay.example/s?id=1&sig=abc"
	out := ComposeConfirmation("Pay here: "+url, url, models.NormalizedSearchItem{Title: "Cap"}, 1, LinkHTML)

	assert.Equal(t, 1, strings.Count(out, `href="https://pay.example/s?id=1&amp;sig=abc"`), out)
	assert.Equal(t, 0, strings.Count(out, url), out)
	assert.True(t, strings.HasSuffix(out, Disclaimer), out)
}

func TestComposeConfirmationSynthesizesWithoutLink(t *testing.T) {
	const url = "https://pay.example/abc"
	out := ComposeConfirmation("Sure, anything else?", url, models.NormalizedSearchItem{Title: "Cap"}, 5, LinkMarkdown)
	assert.Equal(t, StatusLine+"\n\nYour checkout for Cap (qty 3) is ready.\n\n[Open Stripe Checkout]("+url+")\n\n"+Disclaimer, out)
	assert.NotContains(t, out, "anything else")
}
