// Package echo exposes the broker and the sample relying service over HTTP.
package echo

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/kopp/oauth2-api-experiment/errors"
	"github.com/kopp/oauth2-api-experiment/internal/broker"
	"github.com/kopp/oauth2-api-experiment/internal/flow"
)

// Cookie names the broker issues. The token cookie carries the raw provider
// access token as an opaque value; the client-id cookie is only a key for
// redirect continuation, never a credential.
const (
	CookieToken    = "authentication-token"
	CookieClientID = "client-id"
)

// BrokerAPI holds the handlers of the authentication broker.
type BrokerAPI struct {
	service *broker.Service
}

// NewBrokerAPI initializes the broker API.
func NewBrokerAPI(service *broker.Service) *BrokerAPI {
	return &BrokerAPI{service: service}
}

// RegisterRoutes registers the broker routes.
func (a *BrokerAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/login", a.LoginHandler)
	e.GET("/callback", a.CallbackHandler)
	e.GET("/login/status", a.LoginStatusHandler)
	e.GET("/api", a.APIHandler)
	e.GET("/welcome", a.WelcomeHandler)
	e.GET("/", a.IndexHandler)
	e.GET("/index.html", a.IndexHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func readCookie(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// LoginHandler starts a delegated login. It expects a redirect_url query
// parameter naming where the caller wants to end up after authentication.
// Already-authenticated callers are sent straight there; everyone else is
// redirected to the provider authorize URL, with the target recorded under the
// caller's client identifier (minted and set as a cookie if none existed).
func (a *BrokerAPI) LoginHandler(c echo.Context) error {
	redirectURL := c.QueryParam("redirect_url")
	if redirectURL == "" {
		log.Warn().Msg("login called without redirect_url")
		return c.JSON(http.StatusBadRequest, errors.NewMissingParameter("redirect_url"))
	}

	ctx := c.Request().Context()

	if a.service.IsAuthenticated(ctx, readCookie(c, CookieToken)) {
		return c.Redirect(http.StatusFound, redirectURL)
	}

	clientID := readCookie(c, CookieClientID)
	minted := clientID == ""

	clientID, authorizeURL, err := a.service.BeginLogin(clientID, redirectURL)
	if err != nil {
		if stderrors.Is(err, flow.ErrRedirectConflict) {
			return c.JSON(http.StatusBadRequest, errors.NewRedirectConflict(
				"a different redirect_url is already registered for this client"))
		}

		log.Error().Err(err).Msg("failed to start login flow")
		return c.JSON(http.StatusInternalServerError, errors.NewServerError("failed to start login flow"))
	}

	if minted {
		c.SetCookie(&http.Cookie{Name: CookieClientID, Value: clientID, Path: "/"})
	}

	return c.Redirect(http.StatusFound, authorizeURL)
}

// CallbackHandler receives the provider redirect carrying state and code,
// exchanges the code for an access token and sends the caller on to its
// recorded post-login target, with the token attached as a session cookie.
// An exchange failure yields a 500 and no cookie.
func (a *BrokerAPI) CallbackHandler(c echo.Context) error {
	state := c.QueryParam("state")
	code := c.QueryParam("code")

	token, target, err := a.service.Callback(c.Request().Context(), state, code, readCookie(c, CookieClientID))
	if err != nil {
		log.Error().Err(err).Msg("code exchange failed")
		return c.JSON(http.StatusInternalServerError, errors.NewExchangeFailed(
			"could not exchange the authorization code for a token"))
	}

	c.SetCookie(&http.Cookie{Name: CookieToken, Value: token.AccessToken, Path: "/"})

	return c.Redirect(http.StatusFound, target)
}

// LoginStatusHandler reports whether the presented session cookie is currently
// valid. Always 200.
func (a *BrokerAPI) LoginStatusHandler(c echo.Context) error {
	if a.service.IsAuthenticated(c.Request().Context(), readCookie(c, CookieToken)) {
		return c.JSON(http.StatusOK, echo.Map{"status": "authenticated"})
	}

	return c.JSON(http.StatusOK, echo.Map{"status": "not authenticated"})
}

// APIHandler is the sample protected resource. The session cookie is verified
// against the provider on every call.
func (a *BrokerAPI) APIHandler(c echo.Context) error {
	if !a.service.IsAuthenticated(c.Request().Context(), readCookie(c, CookieToken)) {
		return c.JSON(http.StatusUnauthorized, errors.NewUnauthorized("a valid session cookie is required"))
	}

	return c.JSON(http.StatusOK, echo.Map{"content": "Here you can browse my shiny api."})
}

// WelcomeHandler is the default post-login landing page.
func (a *BrokerAPI) WelcomeHandler(c echo.Context) error {
	token := readCookie(c, CookieToken)
	if token == "" {
		return c.HTML(http.StatusOK, "You are not authenticated :(")
	}

	if !a.service.IsAuthenticated(c.Request().Context(), token) {
		authorizeURL, err := a.service.AuthorizeURL()
		if err != nil {
			log.Error().Err(err).Msg("failed to build authorize URL")
			return c.JSON(http.StatusInternalServerError, errors.NewServerError("failed to build authorize URL"))
		}

		return c.HTML(http.StatusOK, fmt.Sprintf(
			"You do have a cookie -- but it does not seem to be valid. <a href='%s'>Re-login</a> please.", authorizeURL))
	}

	return c.HTML(http.StatusOK, "Welcome -- you're authenticated now.")
}

// IndexHandler offers a direct login link for callers visiting the broker
// itself rather than a relying service.
func (a *BrokerAPI) IndexHandler(c echo.Context) error {
	authorizeURL, err := a.service.AuthorizeURL()
	if err != nil {
		log.Error().Err(err).Msg("failed to build authorize URL")
		return c.JSON(http.StatusInternalServerError, errors.NewServerError("failed to build authorize URL"))
	}

	return c.HTML(http.StatusOK, fmt.Sprintf("<p><a href='%s'>website login</a></p>", authorizeURL))
}
