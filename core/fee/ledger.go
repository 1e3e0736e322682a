package fee

import (
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
)

// money is kept in whole cents: apportioned shares and accepted amounts
const moneyPlaces = 2

// ComputeFeeStatus reconciles a student's payments against the class fee structure.
//
// Lines follow the structure order. Payments against heads missing from the structure
// accumulate on retired lines appended in first-seen order, so no money is dropped.
// Each payment's discount and fine are apportioned pro-rata to its paid amounts.
// Neither affects due, which is max(0, payable - paid). Lines paid beyond payable are flagged overpaid.
//
// The inputs are never modified and the function never fails: missing data contributes zero.
func ComputeFeeStatus(structure []StructureEntry, headNames map[string]string, payments []Payment) []LedgerLine {
	lines := make([]*LedgerLine, 0, len(structure))
	index := make(map[string]*LedgerLine, len(structure))

	for _, entry := range structure {
		if line, ok := index[entry.FeeHeadID]; ok {
			line.TotalPayable = line.TotalPayable.Add(entry.Amount)
			continue
		}
		line := &LedgerLine{
			FeeHeadID:    entry.FeeHeadID,
			FeeHeadName:  headNames[entry.FeeHeadID],
			TotalPayable: entry.Amount,
		}
		index[entry.FeeHeadID] = line
		lines = append(lines, line)
	}

	retired := make([]*LedgerLine, 0)
	for _, p := range payments {
		weights := make([]decimal.Decimal, 0, len(p.PaidFor))
		for _, pf := range p.PaidFor {
			weights = append(weights, pf.Amount)
		}
		discounts := core.Apportion(p.Discount, weights, moneyPlaces)
		fines := core.Apportion(p.Fine, weights, moneyPlaces)

		for i, pf := range p.PaidFor {
			line, ok := index[pf.FeeHeadID]
			if !ok {
				line = &LedgerLine{
					FeeHeadID:   pf.FeeHeadID,
					FeeHeadName: headNames[pf.FeeHeadID],
					Retired:     true,
				}
				index[pf.FeeHeadID] = line
				retired = append(retired, line)
			}
			if line.FeeHeadName == "" {
				line.FeeHeadName = pf.FeeHeadName
			}
			line.TotalPaid = line.TotalPaid.Add(pf.Amount)
			line.TotalDiscount = line.TotalDiscount.Add(discounts[i])
			line.TotalFine = line.TotalFine.Add(fines[i])
		}
	}

	lines = append(lines, retired...)
	result := make([]LedgerLine, 0, len(lines))
	for _, line := range lines {
		if line.FeeHeadName == "" {
			line.FeeHeadName = line.FeeHeadID
		}
		line.Due = core.NonNegative(line.TotalPayable.Sub(line.TotalPaid))
		line.Overpaid = line.TotalPaid.GreaterThan(line.TotalPayable)
		result = append(result, *line)
	}
	return result
}

// Summarize totals the ledger lines.
func Summarize(lines []LedgerLine) Totals {
	var t Totals
	for _, l := range lines {
		t.Payable = t.Payable.Add(l.TotalPayable)
		t.Paid = t.Paid.Add(l.TotalPaid)
		t.Discount = t.Discount.Add(l.TotalDiscount)
		t.Fine = t.Fine.Add(l.TotalFine)
		t.Due = t.Due.Add(l.Due)
		t.Overpaid = t.Overpaid || l.Overpaid
	}
	return t
}
