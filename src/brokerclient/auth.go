package brokerclient

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/oakmont-systems/futures-engine/src/eventmodels"
)

// Credentials is the broker auth payload.
type Credentials struct {
	Name       string `json:"name"`
	Password   string `json:"password"`
	AppID      string `json:"appId"`
	AppVersion string `json:"appVersion"`
	CID        string `json:"cid"`
	SecretKey  string `json:"sec"`
}

// AccessToken carries the trading and market-data tokens returned by the
// auth handshake.
type AccessToken struct {
	Trading    string
	MarketData string
	ExpiresAt  time.Time
}

type accessTokenResponseDTO struct {
	AccessToken    string `json:"accessToken"`
	MDAccessToken  string `json:"mdAccessToken"`
	ExpirationTime string `json:"expirationTime"`
	ErrorText      string `json:"errorText"`
}

// Authenticate exchanges credentials for access tokens over REST. A rejection
// is returned as an AuthError; the caller retries on the next reconnect
// rather than treating it as fatal.
func (c *Client) Authenticate(ctx context.Context) (*AccessToken, error) {
	var dto accessTokenResponseDTO
	if err := c.doPost(ctx, "/auth/accesstokenrequest", c.creds, &dto); err != nil {
		return nil, fmt.Errorf("Client:Authenticate(): token request failed: %w", err)
	}

	if dto.ErrorText != "" {
		return nil, &eventmodels.AuthError{Reason: dto.ErrorText}
	}

	if dto.AccessToken == "" {
		return nil, &eventmodels.AuthError{Reason: "empty access token in response"}
	}

	token := AccessToken{
		Trading:    dto.AccessToken,
		MarketData: dto.MDAccessToken,
	}

	if dto.ExpirationTime != "" {
		expiresAt, err := time.Parse(time.RFC3339, dto.ExpirationTime)
		if err != nil {
			log.Warnf("Client:Authenticate(): failed to parse token expiration: %v", err)
		} else {
			token.ExpiresAt = expiresAt
		}
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	log.Info("Client:Authenticate(): obtained trading and market-data tokens")

	return &token, nil
}

// Token returns the current access token pair.
func (c *Client) Token() AccessToken {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.token
}
