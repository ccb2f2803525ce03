package identity

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsecure/portal/internal/models"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestDecodeRecordVariants(t *testing.T) {
	rec, ok := DecodeRecord([]byte(`{"user_email":"a@x.com","user_role":"Admin"}`))
	require.True(t, ok)
	assert.Equal(t, Record{Email: "a@x.com", Role: "Admin"}, rec)

	rec, ok = DecodeRecord([]byte(`{"token":"t","user":{"email":"b@x.com","role":"subuser"}}`))
	require.True(t, ok)
	assert.Equal(t, Record{Email: "b@x.com", Role: "subuser"}, rec)

	for _, raw := range []string{"", "null", "{", `["a"]`, `{"email":42}`, `{"other":"x"}`} {
		_, ok := DecodeRecord([]byte(raw))
		assert.False(t, ok, "input %q", raw)
	}
}

func TestResolveDefaultsToUser(t *testing.T) {
	id := Resolve()
	assert.Equal(t, models.RoleUser, id.Role)
	assert.False(t, id.Authenticated())
	assert.False(t, id.CanViewAllLogs)
}

func TestResolvePrecedence(t *testing.T) {
	primary := Static(Record{Email: "primary@x.com"})
	fallback := Static(Record{Email: "fallback@x.com", Role: "superadmin"})
	memory := Static(Record{Email: "memory@x.com", Role: "user"})

	id := Resolve(primary, fallback, memory)
	assert.Equal(t, "primary@x.com", id.Email)
	assert.Equal(t, models.RoleSuperAdmin, id.Role)
	assert.True(t, id.CanViewAllLogs)
}

func TestResolveSkipsBrokenSources(t *testing.T) {
	broken := FromJSON(func() ([]byte, bool) { return []byte("{not json"), true })
	missing := FromJSON(func() ([]byte, bool) { return nil, false })
	id := Resolve(broken, missing, nil, Static(Record{Email: "ok@x.com", Role: "subuser"}))
	assert.Equal(t, "ok@x.com", id.Email)
	assert.True(t, id.IsSubuser)
}

func TestFromRequestCookiesAndToken(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"email": "jwt@x.com", "role": "admin", "exp": time.Now().Add(time.Hour).Unix()})

	r := httptest.NewRequest(http.MethodGet, "/admin/logs", nil)
	r.AddCookie(&http.Cookie{Name: FallbackCookie, Value: url.PathEscape(`{"email":"fallback@x.com"}`)})
	r.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})

	id := FromRequest(r)
	assert.Equal(t, "fallback@x.com", id.Email)
	assert.Equal(t, models.RoleAdmin, id.Role)
	assert.True(t, id.CanViewAllLogs)

	r = httptest.NewRequest(http.MethodGet, "/admin/logs", nil)
	r.AddCookie(&http.Cookie{Name: PrimaryCookie, Value: base64.StdEncoding.EncodeToString([]byte(`{"email":"primary@x.com","role":"manager"}`))})
	r.Header.Set("Authorization", "Bearer "+token)

	id = FromRequest(r)
	assert.Equal(t, "primary@x.com", id.Email)
	assert.Equal(t, models.RoleManager, id.Role)
	assert.False(t, id.CanViewAllLogs)
}

func TestTokenSourceUsesEmailSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "sub@x.com"})
	rec, ok := TokenSource(token)()
	require.True(t, ok)
	assert.Equal(t, "sub@x.com", rec.Email)

	_, ok = TokenSource("garbage")()
	assert.False(t, ok)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"email":"file@x.com","role":"admin"}`), 0o600))

	rec, ok := FileSource(path)()
	require.True(t, ok)
	assert.Equal(t, "file@x.com", rec.Email)

	_, ok = FileSource(filepath.Join(dir, "missing.json"))()
	assert.False(t, ok)
}

// **Feature: admin-log-explorer, Property: First Defined Source Wins**
// *For any* ordered list of optional records, each resolved field equals the
// field of the first record that defines it.
func TestPropertyFirstDefinedWins(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	genField := gen.OneGenOf(gen.Const(""), gen.Identifier())

	properties.Property("email and role come from the first defining source", prop.ForAll(
		func(emails, roles []string) bool {
			n := len(emails)
			if len(roles) < n {
				n = len(roles)
			}
			sources := make([]Source, n)
			wantEmail, wantRole := "", ""
			for i := 0; i < n; i++ {
				sources[i] = Static(Record{Email: emails[i], Role: roles[i]})
				if wantEmail == "" {
					wantEmail = emails[i]
				}
				if wantRole == "" {
					wantRole = roles[i]
				}
			}
			got := FirstDefined(sources...)
			return got.Email == wantEmail && got.Role == wantRole
		},
		gen.SliceOfN(4, genField),
		gen.SliceOfN(4, genField),
	))

	properties.Property("only admin and superadmin can view all logs", prop.ForAll(
		func(role string) bool {
			id := Resolve(Static(Record{Email: "a@x.com", Role: role}))
			want := id.Role == models.RoleAdmin || id.Role == models.RoleSuperAdmin
			return id.CanViewAllLogs == want
		},
		gen.OneConstOf("admin", "superadmin", "user", "subuser", "manager", "ADMIN", "", "root"),
	))

	properties.TestingRun(t)
}
