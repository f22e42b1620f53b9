package host

import "testing"

func TestBusTrigger(t *testing.T) {
	b := NewBus()

	var got []any
	b.On(EventTTSStart, func(p any) { got = append(got, p) })
	b.On(EventTTSStart, func(p any) { got = append(got, p) })
	b.On(EventTTSEnd, func(any) { t.Error("wrong event delivered") })

	b.Trigger(EventTTSStart, "payload")
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0] != "payload" {
		t.Errorf("expected payload, got %v", got[0])
	}
}

func TestBusOff(t *testing.T) {
	b := NewBus()

	calls := 0
	id := b.On(EventTTSEnd, func(any) { calls++ })
	b.Trigger(EventTTSEnd, nil)
	b.Off(EventTTSEnd, id)
	b.Trigger(EventTTSEnd, nil)

	if calls != 1 {
		t.Errorf("expected 1 call after Off, got %d", calls)
	}
}

func TestBusSubscribeDuringDispatch(t *testing.T) {
	b := NewBus()

	late := 0
	b.On(EventTriggerFired, func(any) {
		b.On(EventTriggerFired, func(any) { late++ })
	})
	b.Trigger(EventTriggerFired, nil)
	if late != 0 {
		t.Error("handler added during dispatch must not run in the same dispatch")
	}
	b.Trigger(EventTriggerFired, nil)
	if late != 1 {
		t.Errorf("expected late handler to run once, got %d", late)
	}
}
