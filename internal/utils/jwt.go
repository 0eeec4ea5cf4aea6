package utils // package utils provides helper functions for token creation

import (
	"crypto/rand"  // secure random number generation
	"encoding/hex" // hex encoding of random bytes
	"time"         // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// StaffToken represents a signed JWT for a staff member along with its
// expiry.  Staff tokens are issued by the venue back office; this service
// only verifies them, so NewStaffToken exists for tooling and tests.
type StaffToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewStaffToken builds and signs an HS256 JWT.  The claims carry the staff
// ID as subject, the role (STAFF or OWNER) and the venue the staff member
// works for.
func NewStaffToken(secret, staffID, role, venueID string, ttl time.Duration) (StaffToken, error) {
	exp := time.Now().UTC().Add(ttl)
	claims := jwt.MapClaims{
		"sub":   staffID,
		"role":  role,
		"venue": venueID,
		"exp":   exp.Unix(),
		"iat":   time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return StaffToken{}, err
	}
	return StaffToken{Token: signed, Exp: exp}, nil
}

// RandomToken returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.  It backs guest session tokens.
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
