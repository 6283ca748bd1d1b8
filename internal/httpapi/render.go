package httpapi

import (
	"bytes"
	"encoding/csv"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"habibdukan/backend/internal/domain"
)

// dailySalesToCSV writes one row per day plus a closing total row.
func dailySalesToCSV(report []domain.DailySales) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"date", "total_sales", "total_profit"}); err != nil {
		return nil, err
	}
	sales, profit := decimal.Zero, decimal.Zero
	for _, day := range report {
		sales = sales.Add(day.TotalSales)
		profit = profit.Add(day.TotalProfit)
		if err := writer.Write([]string{day.Date, day.TotalSales.StringFixed(2), day.TotalProfit.StringFixed(2)}); err != nil {
			return nil, err
		}
	}
	if err := writer.Write([]string{"total", sales.StringFixed(2), profit.StringFixed(2)}); err != nil {
		return nil, err
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func reportFilename(startDate string, endDate string) string {
	startDate, endDate = strings.TrimSpace(startDate), strings.TrimSpace(endDate)
	if startDate == "" || endDate == "" {
		return "sales-report.csv"
	}
	return "sales-report-" + startDate + "_" + endDate + ".csv"
}

// invoiceHTMLTmpl renders a printable invoice. html/template escapes every
// product name and shop field.
var invoiceHTMLTmpl = template.Must(template.New("invoice").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Sale.ID}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; max-width: 640px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border-bottom: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num, th.num { text-align: right; }
    .totals td { border: none; }
    @media print { button { display: none; } }
  </style>
</head>
<body>
  <h2>{{.ShopName}}</h2>
  <p>Invoice: {{.Sale.ID}}<br />Date: {{.IssuedAt}}<br />Payment: {{.Sale.PaymentMethod}}</p>
  <table>
    <thead><tr><th>Item</th><th class="num">Qty</th><th class="num">Price</th><th class="num">Amount</th></tr></thead>
    <tbody>{{range .Lines}}<tr><td>{{.Name}}</td><td class="num">{{.Quantity}}</td><td class="num">{{.Price}}</td><td class="num">{{.LineTotal}}</td></tr>{{end}}</tbody>
  </table>
  <table class="totals">
    <tr><td>Subtotal</td><td class="num">{{.Subtotal}}</td></tr>
    <tr><td>Tax (10%)</td><td class="num">{{.Tax}}</td></tr>
    <tr><td>Discount</td><td class="num">{{.Discount}}</td></tr>
    <tr><td><strong>Total</strong></td><td class="num"><strong>{{.Total}}</strong></td></tr>
  </table>
  <p>Thank you for shopping with us</p>
  <button onclick="window.print()">Print</button>
</body>
</html>
`))

func invoiceToPrintableHTML(invoice domain.Invoice, logger *zap.Logger) string {
	var buf bytes.Buffer
	if err := invoiceHTMLTmpl.Execute(&buf, invoice); err != nil {
		logger.Error("invoice rendering failed", zap.String("sale_id", invoice.Sale.ID), zap.Error(err))
		return "<!doctype html><html><body><p>Invoice rendering error.</p></body></html>"
	}
	return buf.String()
}
