package echo

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// RelyingAPI is a sample service that delegates all authentication to the
// broker. It never sees the provider client secret; it only redirects callers
// to the broker's login endpoint and forwards the session cookie it got back.
type RelyingAPI struct {
	baseURL       string
	brokerBaseURL string
	httpClient    *http.Client
}

// NewRelyingAPI initializes the relying-service API.
func NewRelyingAPI(baseURL, brokerBaseURL string) *RelyingAPI {
	return &RelyingAPI{
		baseURL:       strings.TrimRight(baseURL, "/"),
		brokerBaseURL: strings.TrimRight(brokerBaseURL, "/"),
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

// RegisterRoutes registers the relying-service routes.
func (a *RelyingAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/", a.IndexHandler)
	e.GET("/index.html", a.IndexHandler)
	e.GET("/useapi", a.UseAPIHandler)
}

// LoginURL is the broker login endpoint with redirect_url pointing back at the
// protected action of this service.
func (a *RelyingAPI) LoginURL() string {
	params := url.Values{}
	params.Set("redirect_url", a.baseURL+"/useapi")

	return a.brokerBaseURL + "/login?" + params.Encode()
}

// IndexHandler offers the login link.
func (a *RelyingAPI) IndexHandler(c echo.Context) error {
	return c.HTML(http.StatusOK, fmt.Sprintf("<p><a href='%s'>api login</a></p>", a.LoginURL()))
}

// UseAPIHandler is the protected action: it forwards the caller's session
// cookie to the broker's protected resource and relays the content. Any
// unexpected response shape degrades to a message instead of failing.
func (a *RelyingAPI) UseAPIHandler(c echo.Context) error {
	req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodGet, a.brokerBaseURL+"/api", nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to build broker request")
		return c.HTML(http.StatusInternalServerError, "Response looks strange: could not reach the api")
	}

	if cookie, cookieErr := c.Cookie(CookieToken); cookieErr == nil {
		req.AddCookie(&http.Cookie{Name: CookieToken, Value: cookie.Value})
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("call to broker api failed")
		return c.HTML(http.StatusBadGateway, "Response looks strange: could not reach the api")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Msg("failed to read broker response")
		return c.HTML(http.StatusBadGateway, "Response looks strange: could not reach the api")
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		if content, ok := payload["content"].(string); ok {
			return c.HTML(http.StatusOK, "Response: "+content)
		}
	}

	return c.HTML(http.StatusOK, "Response looks strange: "+string(body))
}
