package db

import "testing"

func TestValidIdentifier(t *testing.T) {
	for _, name := range []string{"i2b2", "_private", "Public"} {
		if !ValidIdentifier(name) {
			t.Errorf("expected %q to be valid", name)
		}
	}
	for _, name := range []string{"", "1table", "a-b", `a"b`, "a.b"} {
		if ValidIdentifier(name) {
			t.Errorf("expected %q to be invalid", name)
		}
	}
}
