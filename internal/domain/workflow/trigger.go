package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerSubmit         Trigger = "SUBMIT"
	TriggerWithdraw       Trigger = "WITHDRAW"
	TriggerFinanceApprove Trigger = "FINANCE_APPROVE"
	TriggerFinanceReject  Trigger = "FINANCE_REJECT"
	TriggerManagerApprove Trigger = "MANAGER_APPROVE"
	TriggerManagerReject  Trigger = "MANAGER_REJECT"
	TriggerPay            Trigger = "PAY"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
