package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"upwatch/internals/modules/monitor"
	"upwatch/pkg/jsonpath"
)

// authenticator prepares the main probe request for one auth strategy.
// The set is closed; monitors select a strategy by AuthType.
type authenticator interface {
	prepare(ctx context.Context, client *http.Client, cfg monitor.AuthConfig, req *http.Request) error
}

func authenticatorFor(t monitor.AuthType) authenticator {
	switch t {
	case monitor.AuthBasic:
		return basicAuth{}
	case monitor.AuthToken:
		return tokenAuth{}
	case monitor.AuthLogin:
		return loginAuth{}
	default:
		return noAuth{}
	}
}

type noAuth struct{}

func (noAuth) prepare(ctx context.Context, client *http.Client, cfg monitor.AuthConfig, req *http.Request) error {
	return nil
}

type basicAuth struct{}

func (basicAuth) prepare(ctx context.Context, client *http.Client, cfg monitor.AuthConfig, req *http.Request) error {
	req.SetBasicAuth(cfg.Username, cfg.Password)
	return nil
}

// tokenAuth fetches a token from the configured issuing URL and attaches
// it as a header on the probe request.
type tokenAuth struct{}

func (tokenAuth) prepare(ctx context.Context, client *http.Client, cfg monitor.AuthConfig, req *http.Request) error {
	if cfg.TokenURL == "" {
		return fmt.Errorf("token auth: token_url is not configured")
	}

	body, err := credentialsBody(cfg)
	if err != nil {
		return fmt.Errorf("token auth: %w", err)
	}

	tokenReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("token auth: build token request: %w", err)
	}
	tokenReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(tokenReq)
	if err != nil {
		return fmt.Errorf("token auth: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("token auth: token endpoint returned status %d", resp.StatusCode)
	}

	var parsed any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("token auth: decode token response: %w", err)
	}

	field := cfg.TokenField
	if field == "" {
		field = "token"
	}

	value, ok := jsonpath.Lookup(parsed, field)
	if !ok || value == nil {
		return fmt.Errorf("token auth: field %q not found in token response", field)
	}
	token, ok := value.(string)
	if !ok {
		return fmt.Errorf("token auth: field %q is not a string", field)
	}

	header := cfg.HeaderName
	if header == "" {
		header = "Authorization"
	}
	prefix := cfg.HeaderPrefix
	if prefix == "" && header == "Authorization" {
		prefix = "Bearer "
	}

	req.Header.Set(header, prefix+token)
	return nil
}

// loginAuth performs a login call and replays the configured session
// cookie on the probe request.
type loginAuth struct{}

func (loginAuth) prepare(ctx context.Context, client *http.Client, cfg monitor.AuthConfig, req *http.Request) error {
	if cfg.LoginURL == "" {
		return fmt.Errorf("login auth: login_url is not configured")
	}
	if cfg.CookieName == "" {
		return fmt.Errorf("login auth: cookie_name is not configured")
	}

	body, err := credentialsBody(cfg)
	if err != nil {
		return fmt.Errorf("login auth: %w", err)
	}

	loginReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.LoginURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("login auth: build login request: %w", err)
	}
	loginReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(loginReq)
	if err != nil {
		return fmt.Errorf("login auth: login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("login auth: login endpoint returned status %d", resp.StatusCode)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == cfg.CookieName {
			req.AddCookie(cookie)
			return nil
		}
	}

	return fmt.Errorf("login auth: cookie %q not present in login response", cfg.CookieName)
}

func credentialsBody(cfg monitor.AuthConfig) ([]byte, error) {
	return json.Marshal(map[string]string{
		"username": cfg.Username,
		"password": cfg.Password,
	})
}
