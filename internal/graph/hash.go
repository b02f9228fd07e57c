package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DomainTarget is the hash domain for target vertex ids.
const DomainTarget = "pipemap/target/v1"

// targetIDLength is the number of hex characters kept from the digest.
const targetIDLength = 12

// hashWithDomain computes SHA256(domain + 0x00 + data) as hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TargetID returns the stable diagram id of a target descriptor.
// Ids start with a letter so they are valid PlantUML identifiers.
func TargetID(target string) string {
	return "h" + hashWithDomain(DomainTarget, []byte(target))[:targetIDLength]
}

// SanitizeID keeps only ASCII letters, digits and underscores.
func SanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return -1
	}, s)
}
