package nursery

import "testing"

func TestFailedSwapUpdateEvents(t *testing.T) {
	for _, s := range []Status{TransactionFailed, InvoiceFailedToPay, SwapExpired, TransactionRefunded, InvoiceExpired} {
		if !IsFailedSwapUpdateEvent(s) {
			t.Errorf("%s should be a failed swap update event", s)
		}
	}
	if IsFailedSwapUpdateEvent(TransactionClaimed) {
		t.Error("TransactionClaimed should not be a failed swap update event")
	}
}

func TestSubmarineTransitions(t *testing.T) {
	ok, err := CanTransition(KindSubmarine, SwapCreated, TransactionMempool)
	if err != nil || !ok {
		t.Fatalf("expected legal transition, got ok=%v err=%v", ok, err)
	}
	ok, err = CanTransition(KindSubmarine, TransactionClaimed, TransactionMempool)
	if err != nil {
		t.Fatalf("CanTransition: %v", err)
	}
	if ok {
		t.Error("expected no transition out of terminal TransactionClaimed")
	}
}

func TestUnknownKind(t *testing.T) {
	_, err := CanTransition(Kind("unknown"), SwapCreated, TransactionMempool)
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(KindReverse, TransactionClaimed) {
		t.Error("TransactionClaimed should be terminal for reverse swaps")
	}
	if IsTerminal(KindReverse, InvoicePending) {
		t.Error("InvoicePending should not be terminal")
	}
}
