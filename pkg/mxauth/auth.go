// Package mxauth resolves homeservers and manages bot device credentials.
package mxauth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

// Credentials is the result of a password login, enough to configure the bot
// and to later invalidate the device again.
type Credentials struct {
	HomeserverURL string
	UserID        id.UserID
	AccessToken   string
	DeviceID      id.DeviceID
}

// ResolveHomeserver turns a server name or URL into a client API base URL,
// following the .well-known delegation when one is published. Lookup failures
// fall back to the server name itself so that login can surface the real
// error. Plain http URLs skip discovery, they only appear in local setups.
func ResolveHomeserver(ctx context.Context, server string) (string, error) {
	server = strings.TrimSuffix(server, "/")
	if strings.HasPrefix(server, "http://") || strings.HasPrefix(server, "https://") {
		parsed, err := url.Parse(server)
		if err != nil {
			return "", fmt.Errorf("invalid homeserver URL: %w", err)
		}
		if parsed.Scheme == "http" {
			return server, nil
		}
		server = parsed.Host
	}

	wellKnown, err := mautrix.DiscoverClientAPI(ctx, server)
	if err == nil && wellKnown != nil && wellKnown.Homeserver.BaseURL != "" {
		return strings.TrimSuffix(wellKnown.Homeserver.BaseURL, "/"), nil
	}
	return "https://" + server, nil
}

// Login performs a password login against the resolved homeserver and returns
// the credentials of the newly created device.
func Login(ctx context.Context, server, username, password string) (*Credentials, error) {
	homeserverURL, err := ResolveHomeserver(ctx, server)
	if err != nil {
		return nil, err
	}
	cli, err := mautrix.NewClient(homeserverURL, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	resp, err := cli.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: username,
		},
		Password:                 password,
		InitialDeviceDisplayName: "nestor",
	})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	return &Credentials{
		HomeserverURL: homeserverURL,
		UserID:        resp.UserID,
		AccessToken:   resp.AccessToken,
		DeviceID:      resp.DeviceID,
	}, nil
}

// Logout invalidates the device behind creds, deleting its access token and
// encryption keys from the homeserver.
func Logout(ctx context.Context, creds Credentials) error {
	cli, err := mautrix.NewClient(creds.HomeserverURL, creds.UserID, creds.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	cli.DeviceID = creds.DeviceID
	if _, err := cli.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}
