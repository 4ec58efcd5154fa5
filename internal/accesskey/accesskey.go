// Package accesskey derives the customer-facing identifier for a rental.
// The key is a bearer capability for self-service status and checkout, not a
// secret-strength token.
package accesskey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// Derive builds the deterministic access key for a rental: the last 5 hex
// characters of the rental id, the customer name, and the unit name, joined
// with dashes, whitespace stripped, uppercased.
func Derive(rentalID int64, customerName, unitName string) string {
	idHex := fmt.Sprintf("%x", rentalID)
	if len(idHex) > 5 {
		idHex = idHex[len(idHex)-5:]
	}
	key := idHex + "-" + customerName + "-" + unitName
	return strings.ToUpper(stripWhitespace(key))
}

// Salt appends a short random hex suffix, used when a derived key collides
// with an existing rental's key.
func Salt(key string) string {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to
		// a fixed suffix rather than panic.
		return key + "-X"
	}
	return key + "-" + strings.ToUpper(hex.EncodeToString(b))
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
