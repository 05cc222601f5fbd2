// Package qrcode builds and parses the text payload encoded in a box's QR symbol.
package qrcode

import (
	"strings"

	"github.com/gofrs/uuid/v5"
)

// Prefix is prepended verbatim to the box id. Printed labels depend on it; never change it.
const Prefix = "BinQR:"

// Encode returns the QR payload for a box id.
func Encode(boxID uuid.UUID) string {
	return Prefix + boxID.String()
}

// Parse extracts the box id from a scanned payload. Surrounding whitespace is ignored,
// the prefix is matched exactly.
func Parse(payload string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(payload), Prefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.FromString(rest)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
