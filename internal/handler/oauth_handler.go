package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"qawafel-crm/internal/middleware"
	"qawafel-crm/internal/model"
	"qawafel-crm/pkg/config"
	"qawafel-crm/pkg/logger"
	"qawafel-crm/prometheus"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute

	// GoogleUserInfoURL returns the profile of the token's owner
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// GoogleAuth signs staff in with their Google account. A nil Config means
// Google sign-in is disabled.
type GoogleAuth struct {
	Config      *oauth2.Config
	UserInfoURL string
	Sessions    *middleware.Sessions
}

// googleProfile is the subset of the userinfo response the CRM uses
type googleProfile struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// NewGoogleAuth builds the Google sign-in handler from configuration
func NewGoogleAuth(cfg config.GoogleConfig, sessions *middleware.Sessions) *GoogleAuth {
	g := &GoogleAuth{UserInfoURL: GoogleUserInfoURL, Sessions: sessions}
	if cfg.UserInfoURL != "" {
		g.UserInfoURL = cfg.UserInfoURL
	}
	if !cfg.Enabled() {
		return g
	}

	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	g.Config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoint,
	}
	return g
}

// Login redirects to the Google consent screen
func (g *GoogleAuth) Login(c echo.Context) error {
	if g.Config == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Google sign-in is not configured"})
	}

	state := strings.ReplaceAll(uuid.New().String(), "-", "")
	g.Sessions.SetTemporary(c, oauthStateCookie, state, oauthStateTTL)
	return c.Redirect(http.StatusTemporaryRedirect, g.Config.AuthCodeURL(state))
}

// Callback completes Google sign-in. Approved users get a session, everyone
// else is sent back to the login page with the reason.
func (g *GoogleAuth) Callback(c echo.Context) error {
	log := logger.FromEcho(c)

	if g.Config == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Google sign-in is not configured"})
	}

	cookie, err := c.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != c.QueryParam("state") {
		prometheus.RecordLogin(model.ProviderGoogle, "invalid_state")
		return badRequest(c, "Invalid OAuth state")
	}
	g.Sessions.SetTemporary(c, oauthStateCookie, "", -time.Second)

	if errParam := c.QueryParam("error"); errParam != "" {
		log.Warn("Google sign-in cancelled", zap.String("error", errParam))
		return c.Redirect(http.StatusFound, "/login?error="+url.QueryEscape(errParam))
	}

	ctx := c.Request().Context()
	token, err := g.Config.Exchange(ctx, c.QueryParam("code"))
	if err != nil {
		log.Error("Failed to exchange OAuth code", zap.Error(err))
		prometheus.RecordLogin(model.ProviderGoogle, "exchange_failed")
		return c.Redirect(http.StatusFound, "/login?error=oauth")
	}

	profile, err := g.fetchProfile(c, token)
	if err != nil {
		log.Error("Failed to fetch Google profile", zap.Error(err))
		prometheus.RecordLogin(model.ProviderGoogle, "profile_failed")
		return c.Redirect(http.StatusFound, "/login?error=oauth")
	}
	email := strings.ToLower(strings.TrimSpace(profile.Email))

	var user model.User
	err = dbFor(c).Where("email = ?", email).First(&user).Error
	switch {
	case err == nil && user.Approved:
		if _, err := g.Sessions.StartSession(c, user.ID, user.Email, user.Name, user.Role); err != nil {
			log.Error("Failed to generate token", zap.Error(err))
			return c.Redirect(http.StatusFound, "/login?error=oauth")
		}
		prometheus.RecordLogin(model.ProviderGoogle, "success")
		log.Info("User logged in with Google", zap.String("email", user.Email))
		return c.Redirect(http.StatusFound, "/")
	case err == nil:
		prometheus.RecordLogin(model.ProviderGoogle, "pending")
		return c.Redirect(http.StatusFound, "/login?error=pending")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		log.Error("Failed to load user", zap.Error(err))
		return c.Redirect(http.StatusFound, "/login?error=oauth")
	}

	_, err = createSignupRequest(dbFor(c), email, profile.Name, profile.Picture, model.ProviderGoogle)
	switch {
	case err == nil:
		log.Info("Signup request created from Google sign-in", zap.String("email", email))
		prometheus.RecordLogin(model.ProviderGoogle, "signup_requested")
		return c.Redirect(http.StatusFound, "/login?error=signup_requested")
	case errors.Is(err, errSignupPending):
		prometheus.RecordLogin(model.ProviderGoogle, "pending")
		return c.Redirect(http.StatusFound, "/login?error=pending")
	case errors.Is(err, errSignupRejected):
		prometheus.RecordLogin(model.ProviderGoogle, "rejected")
		return c.Redirect(http.StatusFound, "/login?error=rejected")
	}
	log.Error("Failed to create signup request", zap.Error(err))
	return c.Redirect(http.StatusFound, "/login?error=oauth")
}

func (g *GoogleAuth) fetchProfile(c echo.Context, token *oauth2.Token) (*googleProfile, error) {
	ctx := c.Request().Context()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.Config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}

	var profile googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, err
	}
	if profile.Email == "" {
		return nil, errors.New("userinfo has no email")
	}
	return &profile, nil
}
