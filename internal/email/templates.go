package email

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names an embedded email
type Template string

const (
	TemplateWelcome         Template = "welcome"
	TemplateAuctionWon      Template = "auction_won"
	TemplateAuctionSold     Template = "auction_sold"
	TemplateAuctionUnsold   Template = "auction_unsold"
	TemplateListingApproved Template = "listing_approved"
	TemplateListingRejected Template = "listing_rejected"
	TemplateOfferReceived   Template = "offer_received"
	TemplateOfferAccepted   Template = "offer_accepted"
)

// AllTemplates lists every embedded email
var AllTemplates = []Template{
	TemplateWelcome,
	TemplateAuctionWon,
	TemplateAuctionSold,
	TemplateAuctionUnsold,
	TemplateListingApproved,
	TemplateListingRejected,
	TemplateOfferReceived,
	TemplateOfferAccepted,
}

// Data is the view model shared by all templates. Amount is in cents.
type Data struct {
	Name         string
	ListingTitle string
	Amount       int64
	Feedback     string
	ActionURL    string
}

// Renderer renders embedded templates into subject and HTML body
type Renderer struct {
	sets map[Template]*template.Template
}

var funcs = template.FuncMap{
	"money": FormatCents,
}

// NewRenderer parses every embedded template against the shared layout
func NewRenderer() (*Renderer, error) {
	r := &Renderer{sets: make(map[Template]*template.Template, len(AllTemplates))}
	for _, name := range AllTemplates {
		t, err := template.New(string(name)).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+string(name)+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.sets[name] = t
	}
	return r, nil
}

// Render returns the subject line and HTML body for name
func (r *Renderer) Render(name Template, data Data) (string, string, error) {
	t, ok := r.sets[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}

	var subject, body bytes.Buffer
	if err := t.ExecuteTemplate(&subject, "subject", data); err != nil {
		return "", "", fmt.Errorf("failed to render %s subject: %w", name, err)
	}
	if err := t.ExecuteTemplate(&body, "layout", data); err != nil {
		return "", "", fmt.Errorf("failed to render %s body: %w", name, err)
	}
	return strings.TrimSpace(html.UnescapeString(subject.String())), body.String(), nil
}

// FormatCents formats an amount in cents as dollars, e.g. 125000 -> "$1,250"
func FormatCents(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	dollars := cents / 100
	rem := cents % 100

	s := fmt.Sprintf("%d", dollars)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := "$" + b.String()
	if rem != 0 {
		out += fmt.Sprintf(".%02d", rem)
	}
	if neg {
		out = "-" + out
	}
	return out
}
