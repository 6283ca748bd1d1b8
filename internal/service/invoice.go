package service

import (
	"context"
	"fmt"
	"strings"

	"habibdukan/backend/internal/domain"
	"habibdukan/backend/internal/money"
)

// BuildInvoice renders a committed sale for printing. Times are shown in the
// shop timezone.
func (s *Service) BuildInvoice(ctx context.Context, saleID string) (domain.Invoice, error) {
	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		return domain.Invoice{}, err
	}

	invoice := domain.Invoice{
		Sale:     sale,
		ShopName: s.shopName,
		IssuedAt: sale.CreatedAt.In(s.loc).Format("2006-01-02 15:04"),
		Lines:    make([]domain.InvoiceLine, 0, len(sale.Items)),
		Subtotal: money.Format(sale.Subtotal),
		Tax:      money.Format(sale.Tax),
		Discount: money.Format(sale.Discount),
		Total:    money.Format(sale.TotalAmount),
	}

	text := []string{
		s.shopName,
		"================================",
		"Invoice: " + sale.ID,
		"Date: " + invoice.IssuedAt,
		"Payment: " + string(sale.PaymentMethod),
		"--------------------------------",
	}
	for _, item := range sale.Items {
		line := domain.InvoiceLine{
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     money.Format(item.Price),
			LineTotal: money.Format(item.LineTotal()),
		}
		invoice.Lines = append(invoice.Lines, line)
		text = append(text,
			fmt.Sprintf("%s x%d @ %s", line.Name, line.Quantity, money.Amount(item.Price)),
			fmt.Sprintf("  %s", line.LineTotal),
		)
	}
	text = append(text,
		"--------------------------------",
		fmt.Sprintf("Subtotal : %s", invoice.Subtotal),
		fmt.Sprintf("Tax 10%%  : %s", invoice.Tax),
		fmt.Sprintf("Discount : %s", invoice.Discount),
		fmt.Sprintf("Total    : %s", invoice.Total),
		"================================",
		"Thank you for shopping with us",
		"",
	)
	invoice.PreviewText = strings.Join(text, "\n")
	return invoice, nil
}
