package fee

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
)

var (
	headTypeTag  = "fee_head_type"
	headTypeText = "invalid fee head type"

	paymentModeTag  = "payment_mode"
	paymentModeText = "invalid payment mode"

	conservationTag  = "conservation"
	conservationText = "total amount must equal the paid amounts plus fine minus discount"

	duplicateHeadTag  = "duplicate_head"
	duplicateHeadText = "fee head appears more than once"

	moneyScaleTag  = "money_scale"
	moneyScaleText = "must have at most 2 decimal places"
)

// InitValidators registers the fee validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(headTypeTag, oneOfValidation(HeadTypes))
	core.RegisterCustomTranslation(validate, translator, headTypeTag, headTypeText)

	_ = validate.RegisterValidation(paymentModeTag, oneOfValidation(PaymentModes))
	core.RegisterCustomTranslation(validate, translator, paymentModeTag, paymentModeText)

	validate.RegisterStructValidation(paymentStructValidation, NewPayment{})
	core.RegisterCustomTranslation(validate, translator, conservationTag, conservationText)

	validate.RegisterStructValidation(structureStructValidation, NewStructure{})
	core.RegisterCustomTranslation(validate, translator, duplicateHeadTag, duplicateHeadText)
	core.RegisterCustomTranslation(validate, translator, moneyScaleTag, moneyScaleText)
}

// Custom Validators

func oneOfValidation(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, a := range allowed {
			if val == a {
				return true
			}
		}
		return false
	}
}

// reportInvalidAmount reports negative amounts and amounts finer than a cent, which
// storage would round.
func reportInvalidAmount(sl validator.StructLevel, val decimal.Decimal, field, structField string) {
	switch {
	case val.IsNegative():
		sl.ReportError(val.String(), field, structField, core.NonNegativeTag, "")
	case !val.Equal(val.Round(moneyPlaces)):
		sl.ReportError(val.String(), field, structField, moneyScaleTag, "")
	}
}

// paymentStructValidation checks that amounts are non-negative whole cents and that the payment balances.
func paymentStructValidation(sl validator.StructLevel) {
	np, ok := sl.Current().Interface().(NewPayment)
	if !ok {
		return
	}

	reportInvalidAmount(sl, np.Discount, "discount", "Discount")
	reportInvalidAmount(sl, np.Fine, "fine", "Fine")
	reportInvalidAmount(sl, np.TotalAmount, "total_amount", "TotalAmount")
	for i, pf := range np.PaidFor {
		reportInvalidAmount(sl, pf.Amount, fmt.Sprintf("paid_for[%d].amount", i), fmt.Sprintf("PaidFor[%d].Amount", i))
	}

	if !np.TotalAmount.Equal(ExpectedTotal(np.PaidFor, np.Discount, np.Fine)) {
		sl.ReportError(np.TotalAmount.String(), "total_amount", "TotalAmount", conservationTag, "")
	}
}

// structureStructValidation checks that amounts are non-negative whole cents and that heads are unique.
func structureStructValidation(sl validator.StructLevel) {
	ns, ok := sl.Current().Interface().(NewStructure)
	if !ok {
		return
	}

	seen := make(map[string]bool, len(ns.Entries))
	for i, e := range ns.Entries {
		reportInvalidAmount(sl, e.Amount, fmt.Sprintf("entries[%d].amount", i), fmt.Sprintf("Entries[%d].Amount", i))
		if seen[e.FeeHeadID] {
			sl.ReportError(e.FeeHeadID, fmt.Sprintf("entries[%d].fee_head_id", i), fmt.Sprintf("Entries[%d].FeeHeadID", i), duplicateHeadTag, "")
		}
		seen[e.FeeHeadID] = true
	}
}
