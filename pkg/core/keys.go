package core

// Key is one recognized control key.
type Key uint8

// Control keys recorded per tick. The bit positions are part of the wire
// format and must not be reordered.
const (
	KeyUp Key = iota
	KeyDown
	KeyLeft
	KeyRight
	KeyAction1
	KeyAction2
	KeyAction3
	KeyUse
	KeyInventory
	KeyPickup
	KeyMap
	KeyTaunts

	NumKeys = 12
)

var keyNames = [NumKeys]string{
	"up", "down", "left", "right",
	"action1", "action2", "action3",
	"use", "inventory", "pickup", "map", "taunts",
}

func (k Key) String() string {
	if int(k) < len(keyNames) {
		return keyNames[k]
	}
	return "unknown"
}

// Keys returns every recognized key in bit order.
func Keys() []Key {
	keys := make([]Key, NumKeys)
	for i := range keys {
		keys[i] = Key(i)
	}
	return keys
}

// KeyMask is the per-tick pressed-key bitmask, one bit per recognized key.
type KeyMask uint16

// Pressed reports whether the bit for k is set.
func (m KeyMask) Pressed(k Key) bool {
	return m&(1<<k) != 0
}

// Set returns the mask with the bit for k set or cleared.
func (m KeyMask) Set(k Key, pressed bool) KeyMask {
	if pressed {
		return m | 1<<k
	}
	return m &^ (1 << k)
}
