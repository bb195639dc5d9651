package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// ReceiptLine is one priced row: the plan or an add-on.
type ReceiptLine struct {
	Name   string
	Rate   string
	Amount string
}

// Receipt holds display-ready values; amounts are already formatted.
type Receipt struct {
	OrderID      string
	CustomerName string
	PlanName     string
	Minutes      int
	FileName     string
	Lines        []ReceiptLine
	Subtotal     string
	PromoCode    string
	Discount     string
	Total        string
	Currency     string
	// Guest receipts explain how to look the order up later.
	Guest bool
}

func (r Receipt) HasDiscount() bool {
	return r.PromoCode != "" && r.Discount != "" && r.Discount != "0.00"
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #1f3a5f; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Thanks for your order</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">Hi {{.CustomerName}}, we have received your payment and your transcription is in the queue.</p>

		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">{{.OrderID}}</p>
		</div>

		<p>{{.PlanName}} transcription of <strong>{{.FileName}}</strong> ({{.Minutes}} min)</p>

		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left;">Item</th>
					<th style="padding: 12px; text-align: right;">Per minute</th>
					<th style="padding: 12px; text-align: right;">Amount</th>
				</tr>
			</thead>
			<tbody>
				{{range .Lines}}<tr>
					<td style="padding: 12px; border-bottom: 1px solid #eee;">{{.Name}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{.Rate}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{.Amount}}</td>
				</tr>
				{{end}}
			</tbody>
		</table>

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<p style="margin: 0;">Subtotal: {{.Subtotal}} {{.Currency}}</p>
			{{if .HasDiscount}}<p style="margin: 0;">Discount ({{.PromoCode}}): -{{.Discount}} {{.Currency}}</p>{{end}}
			<p style="margin: 10px 0 0 0; font-size: 24px; font-weight: bold;">Total: {{.Total}} {{.Currency}}</p>
		</div>

		{{if .Guest}}<p>You checked out as a guest. To check on this order later, use the order lookup page with your order number and this e-mail address.</p>{{end}}

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This message was sent automatically. Reply to this e-mail if you have any questions.
		</p>
	</div>
</body>
</html>`))

// BuildReceiptBody renders the HTML receipt. Customer-supplied values are escaped.
func BuildReceiptBody(r Receipt) (string, error) {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.String(), nil
}
