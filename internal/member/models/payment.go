package models

// PaymentStatus is em_dia (current) or em_debito (delinquent).
type PaymentStatus string

const (
	PaymentCurrent    PaymentStatus = "em_dia"
	PaymentDelinquent PaymentStatus = "em_debito"
)

func (s PaymentStatus) IsValid() bool {
	return s == PaymentCurrent || s == PaymentDelinquent
}

// Toggled flips current and delinquent. Anything that is not current becomes
// current.
func (s PaymentStatus) Toggled() PaymentStatus {
	if s == PaymentCurrent {
		return PaymentDelinquent
	}
	return PaymentCurrent
}
