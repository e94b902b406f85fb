package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brizzai/auth-gateway/internal/auth/models"
	"github.com/brizzai/auth-gateway/internal/config"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// extraEndpoints are discovery metadata go-oidc does not surface directly.
type extraEndpoints struct {
	RevocationEndpoint string `json:"revocation_endpoint"`
	EndSessionEndpoint string `json:"end_session_endpoint"`
}

// OIDCProvider is a discovery-backed relying-party adapter. It works against
// any standard issuer (Okta in the reference deployment).
type OIDCProvider struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	endpoints    extraEndpoints
	httpClient   *http.Client
}

// NewOIDCProvider runs discovery against the configured issuer.
func NewOIDCProvider(cfg *config.OIDCConfig) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(context.Background(), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	var extra extraEndpoints
	if err := provider.Claims(&extra); err != nil {
		return nil, fmt.Errorf("failed to parse provider metadata: %w", err)
	}

	oauth2Cfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		Scopes:       strings.Fields(cfg.Scopes),
	}

	return &OIDCProvider{
		oauth2Config: oauth2Cfg,
		verifier:     provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		endpoints:    extra,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (p *OIDCProvider) AuthCodeURL(state, codeChallenge, redirectURI string) string {
	opts := []oauth2.AuthCodeOption{}
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}
	if codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	return p.oauth2Config.AuthCodeURL(state, opts...)
}

func (p *OIDCProvider) Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (*models.TokenSet, *models.UserProfile, error) {
	cfg := *p.oauth2Config // copy
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}

	opts := []oauth2.AuthCodeOption{}
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}

	token, err := cfg.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrTokenExchange, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, nil, fmt.Errorf("no id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Sub   string `json:"sub"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	user := &models.UserProfile{
		Sub:   claims.Sub,
		Name:  claims.Name,
		Email: claims.Email,
	}

	return tokenSetFrom(token, rawIDToken), user, nil
}

func (p *OIDCProvider) Refresh(ctx context.Context, refreshToken string) (*models.TokenSet, error) {
	token, err := p.oauth2Config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
	}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTokenRefresh, err)
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	return tokenSetFrom(token, rawIDToken), nil
}

func (p *OIDCProvider) Revoke(ctx context.Context, token string) error {
	if p.endpoints.RevocationEndpoint == "" {
		return fmt.Errorf("issuer advertises no revocation endpoint")
	}

	form := url.Values{
		"token":           {token},
		"token_type_hint": {"access_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoints.RevocationEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(url.QueryEscape(p.oauth2Config.ClientID), url.QueryEscape(p.oauth2Config.ClientSecret))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revocation request failed with status %d", resp.StatusCode)
	}
	return nil
}

func (p *OIDCProvider) EndSessionURL(idTokenHint, postLogoutRedirect string) string {
	if p.endpoints.EndSessionEndpoint == "" {
		return ""
	}

	q := url.Values{}
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if postLogoutRedirect != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirect)
	}
	if len(q) == 0 {
		return p.endpoints.EndSessionEndpoint
	}
	return p.endpoints.EndSessionEndpoint + "?" + q.Encode()
}

func tokenSetFrom(token *oauth2.Token, rawIDToken string) *models.TokenSet {
	ts := &models.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IDToken:      rawIDToken,
		ExpiresAt:    token.Expiry,
	}
	if !token.Expiry.IsZero() {
		ts.ExpiresIn = int64(time.Until(token.Expiry).Seconds())
	}
	return ts
}

// NewOIDCProviderFromConfig adapts NewOIDCProvider for DI against the root
// config.
func NewOIDCProviderFromConfig(cfg *config.Config) (*OIDCProvider, error) {
	return NewOIDCProvider(&cfg.OIDC)
}
