package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

var testTokens = TokenService{Secret: []byte("test-secret"), Issuer: "movierec", Duration: time.Hour}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(OptionalIdentity(testTokens))
	r.GET("/whoami", func(c *gin.Context) {
		ident := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"user_id": ident.UserID, "authenticated": ident.Authenticated})
	})
	r.GET("/me", RequireIdentity(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/admin", RequireStaff(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func do(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOptionalIdentity(t *testing.T) {
	r := newTestRouter()
	tok, _, err := testTokens.Sign("u-1", false)
	if err != nil {
		t.Fatal(err)
	}

	if w := do(r, "/whoami", tok); w.Body.String() != `{"authenticated":true,"user_id":"u-1"}` {
		t.Fatalf("body = %s", w.Body.String())
	}
	if w := do(r, "/whoami", ""); w.Body.String() != `{"authenticated":false,"user_id":""}` {
		t.Fatalf("anonymous body = %s", w.Body.String())
	}
	if w := do(r, "/whoami", "garbage"); w.Body.String() != `{"authenticated":false,"user_id":""}` {
		t.Fatalf("bad token should be anonymous, body = %s", w.Body.String())
	}
}

func TestRequireIdentityAndStaff(t *testing.T) {
	r := newTestRouter()
	user, _, _ := testTokens.Sign("u-1", false)
	staff, _, _ := testTokens.Sign("ops", true)

	cases := []struct {
		path  string
		token string
		want  int
	}{
		{"/me", "", http.StatusUnauthorized},
		{"/me", user, http.StatusNoContent},
		{"/admin", "", http.StatusUnauthorized},
		{"/admin", user, http.StatusForbidden},
		{"/admin", staff, http.StatusNoContent},
	}
	for _, tc := range cases {
		if w := do(r, tc.path, tc.token); w.Code != tc.want {
			t.Errorf("%s with %q: status = %d, want %d", tc.path, tc.token, w.Code, tc.want)
		}
	}
}

func TestParseRejectsForeignIssuerAndSecret(t *testing.T) {
	other := TokenService{Secret: []byte("test-secret"), Issuer: "someone-else"}
	tok, _, _ := other.Sign("u-1", false)
	if _, err := testTokens.Parse(tok); err == nil {
		t.Fatal("expected issuer mismatch")
	}

	forged := TokenService{Secret: []byte("wrong"), Issuer: "movierec"}
	tok, _, _ = forged.Sign("u-1", true)
	if _, err := testTokens.Parse(tok); err == nil {
		t.Fatal("expected signature failure")
	}
}
