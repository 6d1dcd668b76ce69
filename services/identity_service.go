package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bimworks/bimworks-api/config"
)

// UserInfo represents the user information returned from the identity
// provider's /userinfo endpoint
type UserInfo struct {
	Sub   string `json:"sub"` // identity provider user ID
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TokenResponse represents the provider's response to a password-grant
// sign-in
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// SignupResponse represents the provider's response to a sign-up request
type SignupResponse struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
}

// ProviderError is an error returned by the identity provider. The message is
// surfaced verbatim so callers see the provider's own wording (duplicate
// email, weak password, invalid credentials).
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// IdentityService brokers sign-up, sign-in and userinfo calls against the
// external identity provider
type IdentityService struct {
	domain     string
	audience   string
	httpClient *http.Client
}

// NewIdentityService creates a new identity service instance
func NewIdentityService(cfg *config.Config) *IdentityService {
	return &IdentityService{
		domain:   cfg.AuthDomain,
		audience: cfg.AuthAudience,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// baseURL returns the provider base URL.
// If the domain already includes a protocol (for testing), use it as-is.
func (s *IdentityService) baseURL() string {
	if strings.HasPrefix(s.domain, "http://") || strings.HasPrefix(s.domain, "https://") {
		return s.domain
	}
	return "https://" + s.domain
}

// SignUp creates a new account at the identity provider and returns the new
// account's provider ID. Provider rejections (duplicate email, weak password)
// are returned as ProviderError with the provider's message intact.
func (s *IdentityService) SignUp(email, password string, metadata map[string]string) (*SignupResponse, error) {
	payload := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	if len(metadata) > 0 {
		payload["user_metadata"] = metadata
	}

	var signup SignupResponse
	if err := s.post("/dbconnections/signup", payload, &signup); err != nil {
		return nil, err
	}

	return &signup, nil
}

// SignIn exchanges credentials for an access token using the password grant.
// Invalid credentials come back as a ProviderError.
func (s *IdentityService) SignIn(email, password string) (*TokenResponse, error) {
	payload := map[string]interface{}{
		"grant_type": "password",
		"username":   email,
		"password":   password,
		"audience":   s.audience,
	}

	var token TokenResponse
	if err := s.post("/oauth/token", payload, &token); err != nil {
		return nil, err
	}

	if token.AccessToken == "" {
		return nil, &ProviderError{StatusCode: http.StatusUnauthorized, Message: "provider returned no access token"}
	}

	return &token, nil
}

// GetUserInfo fetches user information from the provider's /userinfo endpoint.
// accessToken is the JWT access token from the Authorization header.
func (s *IdentityService) GetUserInfo(accessToken string) (*UserInfo, error) {
	req, err := http.NewRequest(http.MethodGet, s.baseURL()+"/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Add("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call userinfo endpoint: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("userinfo endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var userInfo UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	return &userInfo, nil
}

// post sends a JSON request to the provider and decodes the response into out.
// Non-2xx responses become ProviderError carrying the provider's message.
func (s *IdentityService) post(path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := s.httpClient.Post(s.baseURL()+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to call identity provider: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    providerMessage(raw),
		}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}

	return nil
}

// providerMessage extracts a human-readable message from a provider error
// body. Providers vary between "error_description", "description" and
// "message" keys; the raw body is the fallback.
func providerMessage(raw []byte) string {
	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		for _, key := range []string{"error_description", "description", "message", "error"} {
			if msg, ok := parsed[key].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return string(raw)
}
