package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := IssueSessionToken(testSecret, "session-1", time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	id, err := ParseSessionToken(testSecret, token)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if id != "session-1" {
		t.Fatalf("unexpected session id: %s", id)
	}
}

func TestParseSessionTokenRejectsForgedAndExpired(t *testing.T) {
	forged, err := IssueSessionToken("other-secret", "session-1", time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	if _, err := ParseSessionToken(testSecret, forged); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}

	expired, err := IssueSessionToken(testSecret, "session-1", -time.Minute)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	if _, err := ParseSessionToken(testSecret, expired); err == nil {
		t.Fatal("expected expired token to be rejected")
	}

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "x", Issuer: "someone-else"})
	signed, err := foreign.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	if _, err := ParseSessionToken(testSecret, signed); err == nil {
		t.Fatal("expected token from another issuer to be rejected")
	}
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SessionMiddleware(testSecret, time.Hour, zap.NewNop()))
	router.GET("/whoami", func(c *gin.Context) {
		id, ok := GetSessionID(c.Request.Context())
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id)
	})
	return router
}

func TestSessionMiddlewareIssuesCookie(t *testing.T) {
	router := newRouter()

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	if resp.Code != http.StatusOK || resp.Body.String() == "" {
		t.Fatalf("unexpected response: %d %q", resp.Code, resp.Body.String())
	}
	cookies := resp.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || !cookies[0].HttpOnly {
		t.Fatalf("expected an http-only session cookie, got %+v", cookies)
	}

	id, err := ParseSessionToken(testSecret, cookies[0].Value)
	if err != nil || id != resp.Body.String() {
		t.Fatalf("cookie does not name the session: %s %v", id, err)
	}
}

func TestSessionMiddlewareReusesValidCookie(t *testing.T) {
	router := newRouter()
	token, err := IssueSessionToken(testSecret, "existing", time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Body.String() != "existing" {
		t.Fatalf("expected existing session, got %q", resp.Body.String())
	}
	if len(resp.Result().Cookies()) != 0 {
		t.Fatal("expected no new cookie for a valid session")
	}
}

func TestSessionMiddlewareReplacesInvalidCookie(t *testing.T) {
	router := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Body.String() == "garbage" || resp.Body.String() == "" {
		t.Fatalf("unexpected session id %q", resp.Body.String())
	}
	if len(resp.Result().Cookies()) != 1 {
		t.Fatal("expected a replacement cookie")
	}
}
