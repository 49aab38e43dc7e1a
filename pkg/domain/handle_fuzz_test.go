//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseHandle checks that parsing never panics and that accepted handles are stable.
func FuzzParseHandle(f *testing.F) {
	f.Add("")
	f.Add("@alice")
	f.Add("ALICE")
	f.Add("'; DROP TABLE nodes;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("alice\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		h, err := ParseHandle(input)
		if err != nil {
			return
		}

		roundTrip, err := ParseHandle(h.Display())
		if err != nil {
			t.Errorf("accepted handle failed round-trip: %v", err)
		}
		if roundTrip != h {
			t.Error("round-trip changed handle value")
		}
		if !utf8.ValidString(h.String()) {
			t.Error("non-UTF8 handle was accepted")
		}
	})
}
