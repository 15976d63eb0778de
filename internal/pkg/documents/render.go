package documents

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// FinalDocument carries everything the rendered artifact shows. Content
// is the contract body with placeholders already resolved; it is trusted
// HTML authored by the contractor.
type FinalDocument struct {
	Title          string
	ContractUUID   string
	ContractorName string
	BusinessName   string
	ClientName     string
	Content        template.HTML

	TotalCents     int64
	DepositCents   int64
	RemainingCents int64

	SignerName       string
	SignedAt         time.Time
	ContentHash      string
	SignatureImage   string
	ReceiptReference string

	CompletedAt time.Time
}

var finalDocumentTmpl = template.Must(template.New("final-document").Funcs(template.FuncMap{
	"money": formatCents,
	"date":  formatDate,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Georgia, serif; max-width: 48rem; margin: 2rem auto; color: #1a1a1a; }
h1 { border-bottom: 2px solid #1a1a1a; padding-bottom: .5rem; }
table.summary { border-collapse: collapse; margin: 1rem 0; }
table.summary td { border: 1px solid #999; padding: .4rem .8rem; }
.signature-block { margin-top: 2rem; border-top: 1px solid #999; padding-top: 1rem; }
.meta { color: #555; font-size: .85rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Contract {{.ContractUUID}} &middot; completed {{date .CompletedAt}}</p>

<table class="summary">
<tr><td>Contractor</td><td>{{.ContractorName}}{{if .BusinessName}} ({{.BusinessName}}){{end}}</td></tr>
<tr><td>Client</td><td>{{.ClientName}}</td></tr>
<tr><td>Total</td><td>{{money .TotalCents}}</td></tr>
<tr><td>Deposit</td><td>{{money .DepositCents}}</td></tr>
<tr><td>Remaining</td><td>{{money .RemainingCents}}</td></tr>
{{if .ReceiptReference}}<tr><td>Payment receipt</td><td>{{.ReceiptReference}}</td></tr>{{end}}
</table>

<div class="contract-body">
{{.Content}}
</div>

<div class="signature-block">
<p>Signed by <strong>{{.SignerName}}</strong> on {{date .SignedAt}}</p>
{{if .SignatureImage}}<p><img src="{{.SignatureImage}}" alt="signature" style="max-height:6rem"></p>{{end}}
<p class="meta">Content integrity: {{.ContentHash}}</p>
</div>
</body>
</html>
`))

// RenderFinalDocument produces the immutable final artifact body.
func RenderFinalDocument(doc FinalDocument) ([]byte, error) {
	var buf bytes.Buffer
	if err := finalDocumentTmpl.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("final document render: %w", err)
	}
	return buf.Bytes(), nil
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func formatDate(t time.Time) string {
	return t.UTC().Format("January 2, 2006")
}
