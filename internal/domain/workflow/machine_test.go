package workflow

import (
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateDraft, false},
		{StateSubmitted, false},
		{StateFinanceApproved, false},
		{StateFinanceRejected, false},
		{StateManagerApproved, false},
		{StateManagerRejected, false},
		{StatePaid, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"draft", StateDraft, true},
		{"paid", StatePaid, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_Label(t *testing.T) {
	if got := StateFinanceRejected.Label(); got != "财务已驳回" {
		t.Errorf("Label() = %v, want 财务已驳回", got)
	}
	if got := State("other").Label(); got != "other" {
		t.Errorf("Label() = %v, want other", got)
	}
}

func TestNormalizeFormStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want State
		ok   bool
	}{
		{"draft", StateDraft, true},
		{"  SUBMITTED ", StateSubmitted, true},
		{"草稿", StateDraft, true},
		{"待财务审核", StateSubmitted, true},
		{"财务已审核", StateFinanceApproved, true},
		{"财务已通过", StateFinanceApproved, true},
		{"财务已驳回", StateFinanceRejected, true},
		{"总经理已审批", StateManagerApproved, true},
		{"总经理已通过", StateManagerApproved, true},
		{"总经理已驳回", StateManagerRejected, true},
		{"已打款", StatePaid, true},
		{"已驳回", StateFinanceRejected, true},
		{"Rejected", StateFinanceRejected, true},
		{"whatever", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeFormStatus(tt.raw)
			if got != tt.want || ok != tt.ok {
				t.Errorf("NormalizeFormStatus(%q) = %v, %v; want %v, %v", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNormalizeRecordStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want RecordStatus
	}{
		{"", RecordPending},
		{"pending", RecordPending},
		{"待审核", RecordPending},
		{"财务已通过", RecordFinanceApproved},
		{"总经理已驳回", RecordManagerRejected},
		{"已驳回", RecordFinanceRejected},
		{"PAID", RecordPaid},
	}

	for _, tt := range tests {
		got, ok := NormalizeRecordStatus(tt.raw)
		if !ok || got != tt.want {
			t.Errorf("NormalizeRecordStatus(%q) = %v, %v; want %v", tt.raw, got, ok, tt.want)
		}
	}

	if _, ok := NormalizeRecordStatus("nonsense"); ok {
		t.Error("NormalizeRecordStatus() should reject unknown values")
	}
}

func TestRecordStatus_Predicates(t *testing.T) {
	if !RecordManagerRejected.IsRejected() || RecordPending.IsRejected() {
		t.Error("IsRejected() mismatch")
	}
	if !RecordFinanceApproved.IsApproved() || RecordPending.IsApproved() {
		t.Error("IsApproved() mismatch")
	}
	if RecordFinanceRejected.InReviewScope() || RecordPaid.InReviewScope() || !RecordFinanceApproved.InReviewScope() {
		t.Error("InReviewScope() mismatch")
	}
}

func TestStageFor(t *testing.T) {
	st, ok := StageFor(StateSubmitted)
	if !ok || st != StageFinance {
		t.Errorf("StageFor(submitted) = %v, %v", st, ok)
	}
	st, ok = StageFor(StateFinanceApproved)
	if !ok || st != StageManager {
		t.Errorf("StageFor(finance_approved) = %v, %v", st, ok)
	}
	if _, ok := StageFor(StateDraft); ok {
		t.Error("StageFor(draft) should not resolve a stage")
	}

	if StageManager.ApprovedState() != StateManagerApproved || StageFinance.RejectedState() != StateFinanceRejected {
		t.Error("stage target states mismatch")
	}
	if StageManager.RejectedRecord() != RecordManagerRejected || StageFinance.ApprovedRecord() != RecordFinanceApproved {
		t.Error("stage record statuses mismatch")
	}
}

func TestTrigger_String(t *testing.T) {
	if got := TriggerSubmit.String(); got != "SUBMIT" {
		t.Errorf("Trigger.String() = %v, want %v", got, "SUBMIT")
	}
}

func TestFormMachine_Builds(t *testing.T) {
	m, err := newFormMachine()
	if err != nil {
		t.Fatalf("newFormMachine() error = %v", err)
	}
	if m == nil {
		t.Fatal("newFormMachine() returned nil machine")
	}

	first := FormMachine()
	if first == nil {
		t.Fatal("FormMachine() returned nil")
	}
	if second := FormMachine(); second != first {
		t.Error("FormMachine() should return the same table on every call")
	}
}

func TestTableBuilder_RejectsInvalidState(t *testing.T) {
	if _, err := newTableBuilder().permit(State("unknown"), TriggerSubmit, StateSubmitted).build(); err == nil {
		t.Error("expected error for invalid source state")
	}
	if _, err := newTableBuilder().permit(StateDraft, TriggerSubmit, State("unknown")).build(); err == nil {
		t.Error("expected error for invalid target state")
	}
}

func TestTableBuilder_RejectsDuplicate(t *testing.T) {
	_, err := newTableBuilder().
		permit(StateDraft, TriggerSubmit, StateSubmitted).
		permitUnlocked(StateDraft, TriggerSubmit, StateSubmitted).
		build()
	if err == nil {
		t.Error("expected error for duplicate transition")
	}
}

func TestTableBuilder_BuildCopiesEdges(t *testing.T) {
	b := newTableBuilder().permit(StateDraft, TriggerSubmit, StateSubmitted)
	m, err := b.build()
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}

	b.permit(StateSubmitted, TriggerWithdraw, StateDraft)
	if _, err := m.Next(StateSubmitted, TriggerWithdraw, false); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("machine should not see edges added after build, got %v", err)
	}
}

func TestFormMachine_HappyPath(t *testing.T) {
	steps := []struct {
		trigger Trigger
		want    State
	}{
		{TriggerSubmit, StateSubmitted},
		{TriggerFinanceApprove, StateFinanceApproved},
		{TriggerManagerApprove, StateManagerApproved},
		{TriggerPay, StatePaid},
	}

	state := StateDraft
	for _, step := range steps {
		next, err := Next(state, step.trigger, false)
		if err != nil {
			t.Fatalf("Next(%s, %s) error = %v", state, step.trigger, err)
		}
		if next != step.want {
			t.Fatalf("Next(%s, %s) = %s, want %s", state, step.trigger, next, step.want)
		}
		state = next
	}
}

func TestFormMachine_InvalidTransitions(t *testing.T) {
	tests := []struct {
		from    State
		trigger Trigger
	}{
		{StateDraft, TriggerPay},
		{StateDraft, TriggerFinanceApprove},
		{StateSubmitted, TriggerManagerApprove},
		{StateFinanceApproved, TriggerWithdraw},
		{StateManagerApproved, TriggerSubmit},
		{StatePaid, TriggerSubmit},
	}

	for _, tt := range tests {
		next, err := Next(tt.from, tt.trigger, false)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Next(%s, %s) error = %v, want ErrInvalidTransition", tt.from, tt.trigger, err)
		}
		if next != tt.from {
			t.Errorf("Next(%s, %s) = %s, state should be unchanged", tt.from, tt.trigger, next)
		}
	}
}

func TestFormMachine_RejectionAndResubmit(t *testing.T) {
	for _, rejected := range []State{StateFinanceRejected, StateManagerRejected} {
		next, err := Next(rejected, TriggerSubmit, false)
		if err != nil || next != StateSubmitted {
			t.Errorf("Next(%s, SUBMIT, unlocked) = %s, %v; want submitted", rejected, next, err)
		}

		next, err = Next(rejected, TriggerSubmit, true)
		if !errors.Is(err, ErrLocked) {
			t.Errorf("Next(%s, SUBMIT, locked) error = %v, want ErrLocked", rejected, err)
		}
		if next != rejected {
			t.Errorf("locked resubmit moved %s to %s", rejected, next)
		}
	}

	next, err := Next(StateSubmitted, TriggerFinanceReject, true)
	if err != nil || next != StateFinanceRejected {
		t.Errorf("rejecting a locked form should still work, got %s, %v", next, err)
	}
}

func TestFormMachine_Withdraw(t *testing.T) {
	next, err := Next(StateSubmitted, TriggerWithdraw, false)
	if err != nil || next != StateDraft {
		t.Errorf("Next(submitted, WITHDRAW) = %s, %v; want draft", next, err)
	}

	if _, err := Next(StateDraft, TriggerWithdraw, false); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("withdrawing a draft should fail, got %v", err)
	}
}
