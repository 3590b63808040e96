package workflow

import "sync"

var (
	formMachineOnce sync.Once
	formMachine     *Machine
)

func newFormMachine() (*Machine, error) {
	return newTableBuilder().
		permit(StateDraft, TriggerSubmit, StateSubmitted).
		permit(StateSubmitted, TriggerWithdraw, StateDraft).
		permit(StateSubmitted, TriggerFinanceApprove, StateFinanceApproved).
		permit(StateSubmitted, TriggerFinanceReject, StateFinanceRejected).
		permit(StateFinanceApproved, TriggerManagerApprove, StateManagerApproved).
		permit(StateFinanceApproved, TriggerManagerReject, StateManagerRejected).
		permit(StateManagerApproved, TriggerPay, StatePaid).
		// a rejected form is resubmitted only while it is unlocked
		permitUnlocked(StateFinanceRejected, TriggerSubmit, StateSubmitted).
		permitUnlocked(StateManagerRejected, TriggerSubmit, StateSubmitted).
		build()
}

// FormMachine returns the shared form lifecycle table. It is built on first
// use, after package variables such as the state sets are initialized.
func FormMachine() *Machine {
	formMachineOnce.Do(func() {
		m, err := newFormMachine()
		if err != nil {
			panic(err)
		}
		formMachine = m
	})
	return formMachine
}

// Next computes the state reached by firing trigger on a form in current
func Next(current State, trigger Trigger, locked bool) (State, error) {
	return FormMachine().Next(current, trigger, locked)
}
