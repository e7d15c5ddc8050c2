package core

import "testing"

func TestKeyMask_SetAndPressed(t *testing.T) {
	var m KeyMask

	m = m.Set(KeyUp, true)
	m = m.Set(KeyAction1, true)

	if !m.Pressed(KeyUp) {
		t.Error("expected up to be pressed")
	}
	if !m.Pressed(KeyAction1) {
		t.Error("expected action1 to be pressed")
	}
	if m.Pressed(KeyDown) {
		t.Error("expected down to be released")
	}

	m = m.Set(KeyUp, false)
	if m.Pressed(KeyUp) {
		t.Error("expected up to be released after clearing")
	}
	if !m.Pressed(KeyAction1) {
		t.Error("clearing up must not touch action1")
	}
}

func TestKeyMask_ClearingReleasedKeyIsNoOp(t *testing.T) {
	var m KeyMask
	if got := m.Set(KeyMap, false); got != 0 {
		t.Errorf("expected zero mask, got %b", got)
	}
}

func TestKeys_CoversEveryBitInOrder(t *testing.T) {
	keys := Keys()
	if len(keys) != NumKeys {
		t.Fatalf("expected %d keys, got %d", NumKeys, len(keys))
	}
	for i, k := range keys {
		if int(k) != i {
			t.Errorf("key %d out of order: %v", i, k)
		}
	}
}

func TestKey_String(t *testing.T) {
	if KeyTaunts.String() != "taunts" {
		t.Errorf("unexpected name %q", KeyTaunts.String())
	}
	if Key(200).String() != "unknown" {
		t.Errorf("out-of-range key should be unknown, got %q", Key(200).String())
	}
}
