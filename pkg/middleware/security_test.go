package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestHTTPSRedirectMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("redirects non-https request", func(t *testing.T) {
		router := gin.New()
		router.Use(HTTPSRedirectMiddleware())
		router.GET("/health", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "http://example.com/health", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusPermanentRedirect, w.Code)
		assert.Equal(t, "https://example.com/health", w.Header().Get("Location"))
	})

	t.Run("allows request when forwarded proto is https", func(t *testing.T) {
		router := gin.New()
		router.Use(HTTPSRedirectMiddleware())
		router.GET("/health", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "http://example.com/health", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

type stubValidator struct {
	gotURL    string
	gotParams map[string]string
	gotSig    string
	ok        bool
}

func (v *stubValidator) Validate(url string, params map[string]string, signature string) bool {
	v.gotURL = url
	v.gotParams = params
	v.gotSig = signature
	return v.ok
}

func signatureRouter(v SignatureValidator, publicURL string) *gin.Engine {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.POST("/sms", TwilioSignatureMiddleware(v, publicURL), func(c *gin.Context) {
		c.String(http.StatusOK, c.PostForm("Body"))
	})
	return router
}

func formRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestTwilioSignatureMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	form := url.Values{"From": {"+15551234567"}, "Body": {"hello"}}

	t.Run("valid signature passes form through", func(t *testing.T) {
		v := &stubValidator{ok: true}
		req := formRequest("http://example.com/sms", form)
		req.Header.Set("X-Twilio-Signature", "sig")
		w := httptest.NewRecorder()

		signatureRouter(v, "").ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hello", w.Body.String())
		assert.Equal(t, "http://example.com/sms", v.gotURL)
		assert.Equal(t, map[string]string{"From": "+15551234567", "Body": "hello"}, v.gotParams)
		assert.Equal(t, "sig", v.gotSig)
	})

	t.Run("public URL overrides request URL", func(t *testing.T) {
		v := &stubValidator{ok: true}
		req := formRequest("http://internal:8080/sms", form)
		w := httptest.NewRecorder()

		signatureRouter(v, "https://sms.example.com/sms").ServeHTTP(w, req)

		assert.Equal(t, "https://sms.example.com/sms", v.gotURL)
	})

	t.Run("forwarded https is honoured", func(t *testing.T) {
		v := &stubValidator{ok: true}
		req := formRequest("http://example.com/sms", form)
		req.Header.Set("X-Forwarded-Proto", "https")
		w := httptest.NewRecorder()

		signatureRouter(v, "").ServeHTTP(w, req)

		assert.Equal(t, "https://example.com/sms", v.gotURL)
	})

	t.Run("invalid signature is forbidden", func(t *testing.T) {
		v := &stubValidator{ok: false}
		req := formRequest("http://example.com/sms", form)
		req.Header.Set("X-Twilio-Signature", "bad")
		w := httptest.NewRecorder()

		signatureRouter(v, "").ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid signature")
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})

	t.Run("generates an ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		rid := w.Header().Get("X-Request-ID")
		_, err := uuid.Parse(rid)
		assert.NoError(t, err)
		assert.Equal(t, rid, w.Body.String())
	})

	t.Run("keeps the caller's ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Body.String())
	})
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware("https://admin.example.com"))
	router.GET("/api/turns", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/turns", nil)
		req.Header.Set("Origin", "https://admin.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origin is refused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/turns", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SecurityHeadersMiddleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
