package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the client reads from a token. The signature is not
// verified; the server remains the authority.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// DecodeToken extracts the user id (from "sub", falling back to "id") and
// the expiry of a JWT.
func DecodeToken(token string) (Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Claims{}, fmt.Errorf("decode token: %w", err)
	}

	var out Claims
	for _, name := range []string{"sub", "id"} {
		if v, ok := claims[name]; ok {
			if out.UserID = idString(v); out.UserID != "" {
				break
			}
		}
	}
	if out.UserID == "" {
		return Claims{}, fmt.Errorf("decode token: no subject")
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case fmt.Stringer:
		return id.String()
	default:
		return ""
	}
}
