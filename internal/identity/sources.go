package identity

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Cookie names used by the portal front-end.
const (
	PrimaryCookie  = "user_data"
	FallbackCookie = "authUser"
	TokenCookie    = "auth_token"
)

// CookieSource reads a JSON record stored in the named cookie. The value may
// be URL-escaped or base64 encoded, as the portal front-end has written both.
func CookieSource(r *http.Request, name string) Source {
	return FromJSON(func() ([]byte, bool) {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			return nil, false
		}
		return decodeCookieValue(c.Value)
	})
}

func decodeCookieValue(v string) ([]byte, bool) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "{") {
		return []byte(v), true
	}
	if unescaped, err := url.PathUnescape(v); err == nil && strings.HasPrefix(strings.TrimSpace(unescaped), "{") {
		return []byte(unescaped), true
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(v); err == nil {
			return b, true
		}
	}
	return nil, false
}

// FileSource reads a JSON record from a file. A missing or unreadable file
// counts as "not present".
func FileSource(path string) Source {
	return FromJSON(func() ([]byte, bool) {
		if path == "" {
			return nil, false
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, false
		}
		return b, true
	})
}

// TokenSource reads email and role claims from a JWT. The signature is not
// verified: the token is only used to label the UI and the backend
// validates it on every call.
func TokenSource(token string) Source {
	return func() (Record, bool) {
		token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
		if token == "" {
			return Record{}, false
		}
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return Record{}, false
		}
		rec := recordFromMap(claims)
		if rec.Email == "" {
			if sub, err := claims.GetSubject(); err == nil && strings.Contains(sub, "@") {
				rec.Email = sub
			}
		}
		return rec, rec.Email != "" || rec.Role != ""
	}
}

// RequestSources returns the web precedence chain for r: primary record,
// fallback record, then the in-memory auth token.
func RequestSources(r *http.Request) []Source {
	token := ""
	if c, err := r.Cookie(TokenCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	return []Source{
		CookieSource(r, PrimaryCookie),
		CookieSource(r, FallbackCookie),
		TokenSource(token),
	}
}

// FromRequest resolves the acting identity for an HTTP request.
func FromRequest(r *http.Request) Identity {
	return Resolve(RequestSources(r)...)
}
