package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/mapreview/internal/category"
	"github.com/hpungsan/mapreview/internal/export"
	"github.com/hpungsan/mapreview/internal/importdoc"
)

const (
	sessionTimeout = 6 * time.Second
	submitTimeout  = 10 * time.Second
)

// Error kinds reported by the session service or assigned locally.
const (
	KindNoActiveSession = "no_active_session"
	KindUnauthorized    = "unauthorized"
	KindMissingCategory = "missing_category"
	KindMissingToken    = "missing_token"
	KindInvalidToken    = "invalid_token"
	KindInvalidResponse = "invalid_response"
	KindRequestFailed   = "request_failed"
)

// SessionError is the error document returned by the session service.
type SessionError struct {
	Kind     string  `json:"error"`
	Category *string `json:"category,omitempty"`
	ThreadID *string `json:"threadId,omitempty"`
}

// SessionResult is the outcome of a session fetch. Exactly one of Data and
// Err is set.
type SessionResult struct {
	OK     bool
	Status int
	Data   *importdoc.SessionDoc
	Err    *SessionError
}

// SubmitOptions are the extra fields merged into a submitted payload.
type SubmitOptions struct {
	UserToken     string
	Votecrew      bool
	PostAsPrivate bool
}

// SubmitResult is the outcome of a review submission.
type SubmitResult struct {
	OK     bool    `json:"ok"`
	Status int     `json:"status"`
	Body   *string `json:"body,omitempty"`
	Error  *string `json:"error,omitempty"`
}

// AuthRole is a role of an authenticated user.
type AuthRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AuthUser is the user behind a validated token.
type AuthUser struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Username string     `json:"username"`
	Avatar   string     `json:"avatar"`
	Roles    []AuthRole `json:"roles"`
}

// AuthRecord describes the token grant.
type AuthRecord struct {
	CreatedAt string `json:"createdAt"`
	GuildID   string `json:"guildId"`
}

// AuthResult is the outcome of token validation.
type AuthResult struct {
	OK     bool        `json:"ok"`
	Status int         `json:"status"`
	Token  string      `json:"token,omitempty"`
	User   *AuthUser   `json:"user,omitempty"`
	Record *AuthRecord `json:"record,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// SessionClient talks to the session service with a fixed bearer token.
type SessionClient struct {
	baseClient
	submit *http.Client
	token  string
}

// NewSessionClient creates a session service client.
func NewSessionClient(baseURL, token string, logger *zap.Logger) (*SessionClient, error) {
	bc, err := newBaseClient(baseURL, sessionTimeout, logger)
	if err != nil {
		return nil, err
	}
	return &SessionClient{
		baseClient: bc,
		submit:     &http.Client{Timeout: submitTimeout},
		token:      strings.TrimSpace(token),
	}, nil
}

func (c *SessionClient) authHeader() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

// FetchSession downloads the open session of a category. Service-level
// failures are reported in the result; only transport failures are errors.
func (c *SessionClient) FetchSession(ctx context.Context, categoryType string) (*SessionResult, error) {
	code, ok := category.NormalizeCode(categoryType)
	if !ok {
		return &SessionResult{Status: http.StatusBadRequest, Err: &SessionError{Kind: KindMissingCategory}}, nil
	}

	q := url.Values{}
	q.Set("categoryType", code)
	status, body, err := c.get(ctx, c.endpoint("session", q), c.authHeader())
	if err != nil {
		return nil, err
	}

	// An error document wins regardless of status.
	var svcErr struct {
		Error    string          `json:"error"`
		Category *string         `json:"category"`
		ThreadID json.RawMessage `json:"threadId"`
	}
	if json.Unmarshal(body, &svcErr) == nil && svcErr.Error != "" {
		return &SessionResult{
			Status: status,
			Err: &SessionError{
				Kind:     svcErr.Error,
				Category: svcErr.Category,
				ThreadID: export.FlexString(svcErr.ThreadID),
			},
		}, nil
	}

	doc, ok := importdoc.DecodeSession(body)
	if !ok {
		return &SessionResult{
			Status: status,
			Err:    &SessionError{Kind: KindInvalidResponse, Category: &code},
		}, nil
	}
	return &SessionResult{OK: true, Status: status, Data: doc}, nil
}

// SubmitReview posts a finished session export.
func (c *SessionClient) SubmitReview(ctx context.Context, categoryType string, payload *export.Payload, opts SubmitOptions) (*SubmitResult, error) {
	code, ok := category.NormalizeCode(categoryType)
	if !ok {
		return failedSubmit(http.StatusBadRequest, KindMissingCategory), nil
	}
	if err := payload.Validate(); err != nil {
		return failedSubmit(http.StatusBadRequest, fmt.Sprintf("invalid schemaVersion: %d", payload.SchemaVersion)), nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	if t := strings.TrimSpace(opts.UserToken); t != "" {
		doc["userToken"], _ = json.Marshal(t)
	}
	if opts.Votecrew {
		doc["votecrew"] = json.RawMessage("true")
	}
	if opts.PostAsPrivate {
		doc["postAsPrivate"] = json.RawMessage("true")
	}
	data, err = json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("session/"+code+"/review", nil), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.authHeader() {
		req.Header[k] = v
	}

	bc := c.baseClient
	bc.httpClient = c.submit
	status, body, err := bc.do(req)
	if err != nil {
		return nil, err
	}

	res := &SubmitResult{OK: status >= 200 && status < 300, Status: status}
	if text := string(body); strings.TrimSpace(text) != "" {
		res.Body = &text
	}
	if !res.OK {
		msg := KindRequestFailed
		if res.Body != nil {
			msg = *res.Body
		}
		res.Error = &msg
	}
	return res, nil
}

func failedSubmit(status int, msg string) *SubmitResult {
	return &SubmitResult{Status: status, Error: &msg}
}

// ValidateToken checks a personal user token against the auth endpoint.
// The fixed service token is not sent.
func (c *SessionClient) ValidateToken(ctx context.Context, token string) (*AuthResult, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return &AuthResult{Status: http.StatusBadRequest, Error: KindMissingToken}, nil
	}

	q := url.Values{}
	q.Set("token", t)
	status, body, err := c.get(ctx, c.endpoint("auth", q), nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		OK    bool    `json:"ok"`
		Token *string `json:"token"`
		User  *struct {
			ID       json.RawMessage `json:"id"`
			Name     string          `json:"name"`
			Username string          `json:"username"`
			Avatar   string          `json:"avatar"`
			Roles    []struct {
				ID   json.RawMessage `json:"id"`
				Name string          `json:"name"`
			} `json:"roles"`
		} `json:"user"`
		Record *struct {
			CreatedAt string          `json:"created_at"`
			GuildID   json.RawMessage `json:"guild_id"`
		} `json:"record"`
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &AuthResult{Status: status, Error: KindInvalidResponse}, nil
	}
	if !parsed.OK {
		msg := KindInvalidToken
		if parsed.Error != nil && *parsed.Error != "" {
			msg = *parsed.Error
		}
		return &AuthResult{Status: status, Error: msg}, nil
	}
	if parsed.Token == nil || parsed.User == nil || parsed.Record == nil {
		return &AuthResult{Status: status, Error: KindInvalidResponse}, nil
	}

	userID := export.FlexString(parsed.User.ID)
	if userID == nil {
		return &AuthResult{Status: status, Error: KindInvalidResponse}, nil
	}
	user := &AuthUser{
		ID:       *userID,
		Name:     parsed.User.Name,
		Username: parsed.User.Username,
		Avatar:   parsed.User.Avatar,
		Roles:    make([]AuthRole, 0, len(parsed.User.Roles)),
	}
	for _, r := range parsed.User.Roles {
		id := export.FlexString(r.ID)
		if id == nil {
			return &AuthResult{Status: status, Error: KindInvalidResponse}, nil
		}
		user.Roles = append(user.Roles, AuthRole{ID: *id, Name: r.Name})
	}
	record := &AuthRecord{CreatedAt: parsed.Record.CreatedAt}
	if g := export.FlexString(parsed.Record.GuildID); g != nil {
		record.GuildID = *g
	}

	return &AuthResult{
		OK:     true,
		Status: status,
		Token:  *parsed.Token,
		User:   user,
		Record: record,
	}, nil
}
