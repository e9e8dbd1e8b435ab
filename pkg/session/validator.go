package session

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// DefaultSkew is the safety margin subtracted from a token's expiry so a
// token that is valid at check-time cannot expire mid-flight.
const DefaultSkew = 30 * time.Second

// Claims holds the decoded payload of a token. All values are opaque
// except exp, which ExpiresAt interprets.
type Claims map[string]interface{}

// DecodeClaims parses the payload segment of a three-part dot-separated
// token. Returns nil on any malformation: wrong segment count, payload
// that is not base64, or content that is not a JSON object. Never panics.
func DecodeClaims(token string) Claims {
	if token == "" {
		return nil
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil
	}
	return claims
}

// ExpiresAt returns the expiry time carried in the exp claim.
// The second return is false when exp is missing or non-numeric.
func (c Claims) ExpiresAt() (time.Time, bool) {
	if c == nil {
		return time.Time{}, false
	}
	exp, ok := c["exp"].(float64)
	if !ok {
		return time.Time{}, false
	}
	sec := int64(exp)
	nsec := int64((exp - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec), true
}

// IsExpired reports whether the token is expired relative to the current
// time, with a skew safety margin. Tokens whose claims cannot be decoded
// or that carry no usable exp claim are treated as expired.
func IsExpired(token string, skew time.Duration) bool {
	return IsExpiredAt(token, skew, time.Now())
}

// IsExpiredAt is IsExpired against an explicit clock reading.
// The boundary is inclusive: at exactly exp minus skew the token is expired.
func IsExpiredAt(token string, skew time.Duration, now time.Time) bool {
	exp, ok := DecodeClaims(token).ExpiresAt()
	if !ok {
		return true
	}
	return !now.Before(exp.Add(-skew))
}
