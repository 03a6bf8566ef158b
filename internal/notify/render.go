package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"

	"homepay/internal/amqp"
	"homepay/internal/analytics"
	"homepay/internal/core"
	"homepay/web"
)

// Renderer turns analytics results into messages.
type Renderer struct {
	tmpl *template.Template
}

var funcs = template.FuncMap{
	"money": core.FormatCurrency,
	"signed": func(d decimal.Decimal) string {
		if d.IsNegative() {
			return "-" + core.FormatCurrency(d.Abs())
		}
		return "+" + core.FormatCurrency(d)
	},
	"monthName": func(m int) string { return time.Month(m).String() },
	// Narratives come from our own model prompt and are already HTML.
	"safe": func(s string) template.HTML { return template.HTML(s) },
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("mail").Funcs(funcs).ParseFS(web.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) render(name string, data any) (string, error) {
	var b bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}

// Reminder renders the monthly balance notice.
func (r *Renderer) Reminder(rem *analytics.Reminder) (Message, error) {
	html, err := r.render("reminder", rem)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: amqp.KindBalanceReminder, To: rem.Recipients, Subject: rem.Subject, HTML: html}, nil
}

// Insights renders the monthly insights email.
func (r *Renderer) Insights(rep *analytics.MonthlyReport) (Message, error) {
	html, err := r.render("insights", rep)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: amqp.KindMonthlyInsights, To: rep.Recipients, Subject: rep.Subject, HTML: html}, nil
}

// FileReady renders the notice sent when a new document or report exists.
func (r *Renderer) FileReady(kind, name, url, notes string, to []string) (Message, error) {
	html, err := r.render("file_ready", struct{ Name, URL, Notes string }{name, url, notes})
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: kind, To: to, Subject: fmt.Sprintf("Your File %s is ready", name), HTML: html}, nil
}
