package gigachat

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"linklens/internal/parser"
)

const (
	defaultAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	defaultBaseURL = "https://gigachat.devices.sberbank.ru/api/v1"
	defaultModel   = "GigaChat"

	// tokenSlack re-authenticates slightly before the token expires
	tokenSlack = 30 * time.Second
)

// systemPrompt instructs the model to produce the three-part profile summary
// (качества / интересы / риски) and to answer with the exact phrase
// "Недостаточно данных о пользователе" when the profile is too thin. The
// orchestrator matches that phrase byte-for-byte, so it must not be reworded.
const systemPrompt = `На основании переданных данных сделай вывод о личности пользователя. Вывод требуется в следующем формате:
личные качества: [укажи личные качества человека, исходя из его профиля, soft skills],
интересы: [перечисление интересов пользователя на основе постов и групп],
обратить внимание: [указание на потенциальные риски для репутации компании (например, проявления дискриминации, нетерпимости, агрессии, упоминание наркотиков и т.д.). Если ничего не нашел, то напиши "не обнаружено"].
Тебе будет дан json объект со значением posts, где перечислено содержание последних постов пользователя и дата поста, а также группы, на которые подписан пользователь. При описании личных качеств и интересов ориентируйся больше на посты, а при опасных моментах — и на посты, и на группы.
Если для анализа не хватает данных, либо мало информации о человеке, то выведи сообщение "Недостаточно данных о пользователе" и все.`

// Config holds the GigaChat connection settings
type Config struct {
	Credentials string // base64 authorization key for the OAuth handshake
	Scope       string // e.g. GIGACHAT_API_PERS
	AuthURL     string
	BaseURL     string
	Model       string
	InsecureTLS bool // the endpoint serves a certificate from a non-standard CA
}

// Client calls the GigaChat inference endpoint
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a GigaChat client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	transport := http.DefaultTransport
	if cfg.InsecureTLS {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   120 * time.Second,
			Transport: transport,
		},
		logger: logger,
	}
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"` // unix milliseconds
}

// token returns a cached access token, re-authenticating when expired
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Add(tokenSlack).Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"scope": {c.cfg.Scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+c.cfg.Credentials)
	req.Header.Set("RqUID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth returned status %d", resp.StatusCode)
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}

	c.accessToken = auth.AccessToken
	c.tokenExpiry = time.UnixMilli(auth.ExpiresAt)
	c.logger.Debug("GigaChat token refreshed", zap.Time("expires_at", c.tokenExpiry))
	return c.accessToken, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze sends the scraped profile data to the model and returns its
// free-form summary text
func (c *Client) Analyze(ctx context.Context, profile *parser.Profile) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("failed to marshal profile data: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(data)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("GigaChat returned non-OK status", zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("chat returned status %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}
