package echo_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/kopp/oauth2-api-experiment/api/echo"
)

func newRelyingEnv(t *testing.T, brokerHandler http.HandlerFunc) *echo.Echo {
	t.Helper()

	brokerStub := httptest.NewServer(brokerHandler)
	t.Cleanup(brokerStub.Close)

	e := echo.New()
	echoapi.NewRelyingAPI("http://relying.test", brokerStub.URL).RegisterRoutes(e)

	return e
}

func TestRelyingIndex_OffersBrokerLoginLink(t *testing.T) {
	e := newRelyingEnv(t, func(w http.ResponseWriter, r *http.Request) {})

	rec := doGet(e, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/login?redirect_url=")
	assert.Contains(t, rec.Body.String(), "redirect_url=http%3A%2F%2Frelying.test%2Fuseapi")
	assert.Contains(t, rec.Body.String(), "api login")
}

func TestUseAPI_ForwardsCookieAndRelaysContent(t *testing.T) {
	var forwarded string
	e := newRelyingEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(echoapi.CookieToken); err == nil {
			forwarded = cookie.Value
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content": "Here you can browse my shiny api."}`))
	})

	rec := doGet(e, "/useapi", &http.Cookie{Name: echoapi.CookieToken, Value: "gho_forwarded"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gho_forwarded", forwarded)
	assert.Equal(t, "Response: Here you can browse my shiny api.", rec.Body.String())
}

func TestUseAPI_DegradesOnUnexpectedShape(t *testing.T) {
	e := newRelyingEnv(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>surprise</html>"))
	})

	rec := doGet(e, "/useapi", &http.Cookie{Name: echoapi.CookieToken, Value: "gho_forwarded"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Response looks strange")
}

func TestUseAPI_UnauthenticatedCallerDegrades(t *testing.T) {
	e := newRelyingEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "unauthorized"}`))
	})

	rec := doGet(e, "/useapi")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Response looks strange")
}

func TestUseAPI_BrokerUnreachable(t *testing.T) {
	brokerStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	brokerStub.Close()

	e := echo.New()
	echoapi.NewRelyingAPI("http://relying.test", brokerStub.URL).RegisterRoutes(e)

	rec := doGet(e, "/useapi")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Response looks strange")
}
