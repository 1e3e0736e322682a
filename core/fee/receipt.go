package fee

import (
	"fmt"
	"net/mail"

	"github.com/divan/num2words"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

const receiptTemplate = "receipt"

type (
	ReceiptItem struct {
		Name   string
		Amount string
	}

	ReceiptData struct {
		StudentName   string
		GuardianName  string
		ReceiptNumber string
		PaymentDate   string
		PaymentMode   string
		Items         []ReceiptItem
		Discount      string
		Fine          string
		Total         string
		AmountInWords string
	}
)

// ReceiptNumber formats the receipt number of the seq-th payment of a school in year, eg. RCT-2024-000042.
func ReceiptNumber(year, seq int) string {
	return fmt.Sprintf("RCT-%d-%06d", year, seq)
}

// AmountInWords spells the whole part of amount, eg. "two thousand eight hundred and 50/100".
func AmountInWords(amount decimal.Decimal) string {
	units := amount.Truncate(0)
	words := num2words.Convert(int(units.IntPart()))
	if cents := amount.Sub(units).Shift(2).Round(0).IntPart(); cents != 0 {
		if cents < 0 {
			cents = -cents
		}
		words += fmt.Sprintf(" and %02d/100", cents)
	}
	return words
}

// NewReceiptMessage returns the receipt email of p, or nil when the student has no guardian email.
func NewReceiptMessage(std student.Student, p Payment) *core.EmailMessage {
	if std.GuardianEmail == "" {
		return nil
	}

	items := make([]ReceiptItem, 0, len(p.PaidFor))
	for _, pf := range p.PaidFor {
		items = append(items, ReceiptItem{Name: pf.FeeHeadName, Amount: pf.Amount.StringFixed(2)})
	}
	guardian := std.GuardianName
	if guardian == "" {
		guardian = "Parent/Guardian"
	}
	return &core.EmailMessage{
		To:           []mail.Address{{Name: std.GuardianName, Address: std.GuardianEmail}},
		Subject:      "Payment receipt " + p.ReceiptNumber,
		TemplateName: receiptTemplate,
		TemplateData: ReceiptData{
			StudentName:   std.Name,
			GuardianName:  guardian,
			ReceiptNumber: p.ReceiptNumber,
			PaymentDate:   p.PaymentDate.Format("2006-01-02"),
			PaymentMode:   p.PaymentMode,
			Items:         items,
			Discount:      p.Discount.StringFixed(2),
			Fine:          p.Fine.StringFixed(2),
			Total:         p.TotalAmount.StringFixed(2),
			AmountInWords: AmountInWords(p.TotalAmount),
		},
	}
}
