// Echolog - Voice Journal Analytics and Weekly Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/echolog

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/echolog/internal/config"
	"github.com/tomtom215/echolog/internal/logging"
)

// OIDCAuthenticator validates bearer tokens issued by an external OIDC
// provider. Echolog acts as a resource server only: it never initiates
// login flows, it just validates RS256 access tokens against the
// issuer's published JWKS.
type OIDCAuthenticator struct {
	issuer      string
	audience    string
	userIDClaim string
	jwks        *jwksCache
}

// oidcDiscovery is the subset of the provider metadata we need.
type oidcDiscovery struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// NewOIDCAuthenticator discovers the issuer's JWKS endpoint and returns
// an authenticator for its tokens.
func NewOIDCAuthenticator(ctx context.Context, cfg *config.OIDCConfig) (*OIDCAuthenticator, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("OIDC issuer URL is required")
	}

	discovery, err := discoverProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("OIDC discovery failed: %w", err)
	}

	userIDClaim := cfg.UserIDClaim
	if userIDClaim == "" {
		userIDClaim = "sub"
	}

	logging.Info().
		Str("issuer", discovery.Issuer).
		Str("jwks_uri", discovery.JWKSURI).
		Msg("OIDC authenticator initialized")

	return &OIDCAuthenticator{
		issuer:      discovery.Issuer,
		audience:    cfg.Audience,
		userIDClaim: userIDClaim,
		jwks:        newJWKSCache(discovery.JWKSURI, nil, cfg.JWKSCacheTTL),
	}, nil
}

// discoverProvider fetches the issuer's OIDC configuration document.
func discoverProvider(ctx context.Context, issuerURL string) (*oidcDiscovery, error) {
	wellKnown := strings.TrimSuffix(issuerURL, "/") + "/.well-known/openid-configuration"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, http.NoBody)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	var discovery oidcDiscovery
	if err := json.NewDecoder(resp.Body).Decode(&discovery); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}
	if discovery.JWKSURI == "" {
		return nil, fmt.Errorf("discovery document has no jwks_uri")
	}

	return &discovery, nil
}

// Name implements Authenticator.
func (a *OIDCAuthenticator) Name() string {
	return "oidc"
}

// Authenticate implements Authenticator. It extracts the bearer token,
// validates signature, issuer, expiry and audience, and maps the claims
// to a Subject.
func (a *OIDCAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*Subject, error) {
	tokenString := extractBearerToken(r)
	if tokenString == "" {
		return nil, ErrNoCredentials
	}

	claims, err := a.validateToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	userID, _ := claims[a.userIDClaim].(string)
	if userID == "" {
		return nil, fmt.Errorf("%w: token missing %q claim", ErrInvalidCredentials, a.userIDClaim)
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	username, _ := claims["preferred_username"].(string)
	if username == "" {
		username, _ = claims["nickname"].(string)
	}

	return &Subject{UserID: userID, Username: username, Email: email, Name: name, Role: "user"}, nil
}

// validateToken parses and validates an RS256 token against the JWKS.
func (a *OIDCAuthenticator) validateToken(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("token missing kid header")
		}

		return a.jwks.getKey(ctx, kid)
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidCredentials
	}

	if iss, _ := claims["iss"].(string); iss != a.issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrInvalidCredentials)
	}

	if a.audience != "" {
		if !audienceMatches(claims["aud"], a.audience) {
			return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidCredentials)
		}
	}

	return claims, nil
}

// audienceMatches handles the aud claim being either a string or an
// array of strings.
func audienceMatches(aud any, expected string) bool {
	switch v := aud.(type) {
	case string:
		return v == expected
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == expected {
				return true
			}
		}
	}
	return false
}
