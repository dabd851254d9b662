package codes

import (
	"math/rand"
	"regexp"
	"strings"
)

const (
	// Alphabet is the character set used for room codes. It avoids
	// visually ambiguous characters (I, L, O, U, 0, 1).
	Alphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"

	// DefaultLength is the default room code length.
	DefaultLength = 6

	// RoutePattern is the regexp fragment describing a routable code.
	// The HTTP route embeds it, so the route and Valid cannot drift.
	// It is wider than the generated alphabet: hand-typed codes that
	// were never generated by this process still route.
	RoutePattern = `[A-Z0-9]{4,12}`
)

var codePattern = regexp.MustCompile(`^` + RoutePattern + `$`)

// Generate returns a random room code of length n. Codes are not
// guaranteed collision-free; a collision resolves to the existing
// room, which is acceptable for ephemeral sessions.
func Generate(n int) string {
	if n <= 0 {
		n = DefaultLength
	}
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(Alphabet[rand.Intn(len(Alphabet))])
	}
	return b.String()
}

// Valid reports whether code is routable as a room code.
func Valid(code string) bool {
	return codePattern.MatchString(code)
}
