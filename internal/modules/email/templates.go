package email

import (
	htmltemplate "html/template"
	texttemplate "text/template"

	"shirly.shop/app/pkg/view"
)

var funcs = map[string]any{
	"money": view.MoneyFromCents,
}

type template struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

func mustTemplate(name, subject, text, html string) template {
	return template{
		subject: texttemplate.Must(texttemplate.New(name + ".subject").Funcs(funcs).Parse(subject)),
		text:    texttemplate.Must(texttemplate.New(name + ".txt").Funcs(funcs).Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(name + ".html").Funcs(funcs).Parse(html)),
	}
}

const layoutOpen = `<html><body style="font-family: sans-serif; color: #222;">`
const layoutClose = `<p style="color:#888">Shirly Shop</p></body></html>`

var orderConfirmationTmpl = mustTemplate("order_confirmation",
	`Order {{.ShortID}} confirmed`,
	`Hi {{.Name}},

We received your payment for order {{.ShortID}}.
{{range .Items}}
  {{.Quantity}} x {{.ProductName}}  {{money .LineTotalCents .Currency}}{{end}}

Subtotal: {{money .Order.SubtotalCents .Order.Currency}}
Shipping: {{money .Order.ShippingCents .Order.Currency}}
Total:    {{money .Order.TotalCents .Order.Currency}}

Track your order: {{.Link}}
`,
	layoutOpen+`
<h2>Thanks for your order</h2>
<p>Hi {{.Name}},</p>
<p>We received your payment for order <strong>{{.ShortID}}</strong>.</p>
<table cellpadding="4">
{{range .Items}}<tr><td>{{.Quantity}} &times;</td><td>{{.ProductName}}</td><td align="right">{{money .LineTotalCents .Currency}}</td></tr>
{{end}}<tr><td></td><td>Shipping</td><td align="right">{{money .Order.ShippingCents .Order.Currency}}</td></tr>
<tr><td></td><td><strong>Total</strong></td><td align="right"><strong>{{money .Order.TotalCents .Order.Currency}}</strong></td></tr>
</table>
<p><a href="{{.Link}}">Track your order</a></p>
`+layoutClose)

var statusChangedTmpl = mustTemplate("status_changed",
	`Order {{.ShortID}}: {{.Headline}}`,
	`Hi {{.Name}},

{{.Message}}

Order: {{.ShortID}}
Status: {{.To}}{{if .Refunded}}
Refunded so far: {{money .Order.RefundedCents .Order.Currency}}{{end}}

{{.Link}}
`,
	layoutOpen+`
<h2>{{.Headline}}</h2>
<p>Hi {{.Name}},</p>
<p>{{.Message}}</p>
<p><strong>Order:</strong> {{.ShortID}}<br><strong>Status:</strong> {{.To}}{{if .Refunded}}<br><strong>Refunded so far:</strong> {{money .Order.RefundedCents .Order.Currency}}{{end}}</p>
<p><a href="{{.Link}}">View order</a></p>
`+layoutClose)

var welcomeTmpl = mustTemplate("welcome",
	`Welcome to Shirly Shop`,
	`Hi {{.Name}},

Thanks for creating an account. Start browsing: {{.Link}}
`,
	layoutOpen+`
<h2>Welcome!</h2>
<p>Hi {{.Name}},</p>
<p>Thanks for creating an account. <a href="{{.Link}}">Start browsing</a>.</p>
`+layoutClose)
