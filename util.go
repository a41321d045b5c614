package codec

import (
	"strings"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func must2[T1, T2 any](v1 T1, v2 T2, err error) (T1, T2) {
	if err != nil {
		panic(err)
	}
	return v1, v2
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func nonNil[T any](v *T) *T {
	if v == nil {
		panic("nil")
	}
	return v
}

// splitByte splits the authentication tag off the wire payload: "HEX|PAYLOAD"
// becomes ("HEX", "PAYLOAD", true); a bare payload with no separator comes
// back as (s, "", false).
func splitByte(s string, sep byte) (string, string, bool) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return s, "", false
	} else {
		return s[:i], s[i+1:], true
	}
}

func rpad(s string, n int, pad rune) string {
	rem := n - len(s)
	if rem <= 0 {
		return s
	}
	return s + strings.Repeat(string(pad), rem)
}
