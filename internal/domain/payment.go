package domain

// PaymentState of a checkpoint event. The only legal transition is
// PENDING -> PAID, performed at most once per event.
type PaymentState string

const (
	PaymentPending PaymentState = "PENDING"
	PaymentPaid    PaymentState = "PAID"
)
