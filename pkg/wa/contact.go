package wa

import "strings"

// namePlaceholder is shown when the upstream has neither a saved name nor a
// push name for a contact.
const namePlaceholder = "Sem Nome"

// Contact is the canonical contact record. Photo is nil until (and unless)
// enrichment resolves a locally cached profile image.
type Contact struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Number string  `json:"number"`
	Photo  *string `json:"photo"`
}

// RawContact is an upstream contact before filtering and enrichment.
type RawContact struct {
	ID       string
	Name     string
	PushName string
	Number   string
	IsGroup  bool
}

// DisplayName resolves the name fallback chain: saved name, push name,
// fixed placeholder.
func (rc RawContact) DisplayName() string {
	if rc.Name != "" {
		return rc.Name
	}
	if rc.PushName != "" {
		return rc.PushName
	}
	return namePlaceholder
}

// NumberScheme is the addressing predicate deciding which contact numbers
// are in scope: normalized digits must carry the country prefix and have
// the exact expected length.
type NumberScheme struct {
	Prefix string
	Length int
}

// Valid reports whether a raw number matches the scheme.
func (s NumberScheme) Valid(number string) bool {
	d := Digits(number)
	return strings.HasPrefix(d, s.Prefix) && len(d) == s.Length
}

// Digits strips every non-digit rune from s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ChatID normalizes a destination address to the upstream chat identifier
// scheme. Addresses already carrying a server suffix pass through unchanged;
// bare numbers are reduced to digits and suffixed with the user server.
func ChatID(to string) string {
	if strings.Contains(to, "@") {
		return to
	}
	return Digits(to) + "@c.us"
}
