package device

import "fmt"

// Key is a closed enumeration of the system keys a controller can press.
// Providers map each key to their native keycode; unknown strings are
// rejected at the boundary instead of being passed through.
type Key int

const (
	KeyHome Key = iota
	KeyBack
	KeyEnter
	KeyDelete
	KeyRecents
	KeyPower
	KeyVolumeUp
	KeyVolumeDown
)

var keyNames = map[Key]string{
	KeyHome:       "home",
	KeyBack:       "back",
	KeyEnter:      "enter",
	KeyDelete:     "delete",
	KeyRecents:    "recents",
	KeyPower:      "power",
	KeyVolumeUp:   "volume_up",
	KeyVolumeDown: "volume_down",
}

// String returns the canonical name of the key
func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKey parses a key name into a Key
func ParseKey(s string) (Key, error) {
	for k, name := range keyNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown key %q (valid: home, back, enter, delete, recents, power, volume_up, volume_down)", s)
}

// Keys returns all supported keys in a stable order
func Keys() []Key {
	return []Key{KeyHome, KeyBack, KeyEnter, KeyDelete, KeyRecents, KeyPower, KeyVolumeUp, KeyVolumeDown}
}
