package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestWebhookToken_RoundTrip(t *testing.T) {
	token, err := GenerateWebhookToken("secret", "wardtrack", "events", time.Minute)
	require.NoError(t, err)

	claims, err := ValidateToken(token, "secret", "wardtrack")
	require.NoError(t, err)
	assert.Equal(t, "events", claims.Source)
	assert.Equal(t, "wardtrack", claims.Issuer)
}

func TestValidateToken_Rejects(t *testing.T) {
	token, err := GenerateWebhookToken("secret", "wardtrack", "events", time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, "other-secret", "wardtrack")
	assert.Error(t, err)

	_, err = ValidateToken(token, "secret", "someone-else")
	assert.Error(t, err)

	expired, err := GenerateWebhookToken("secret", "wardtrack", "events", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(expired, "secret", "wardtrack")
	assert.Error(t, err)

	_, err = ValidateToken("not-a-token", "secret", "wardtrack")
	assert.Error(t, err)
}

type bindTarget struct {
	Ward    string `json:"ward" binding:"required"`
	Minutes int    `json:"minutes" validate:"gte=0"`
}

func bind(body string) (*httptest.ResponseRecorder, bool) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	var target bindTarget
	return w, BindAndValidate(c, &target)
}

func TestBindAndValidate(t *testing.T) {
	_, ok := bind(`{"ward":"ward_a","minutes":3}`)
	assert.True(t, ok)

	for _, body := range []string{`{"minutes":3}`, `{"ward":"ward_a","minutes":-1}`, `not json`} {
		w, ok := bind(body)
		assert.False(t, ok, body)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp ResponseData
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Error)
	}
}

func TestErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	ServiceUnavailable(c, "scan not recorded")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":503,"message":"An error occurred","error":"scan not recorded"}`, w.Body.String())
}
