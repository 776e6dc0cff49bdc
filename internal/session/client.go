package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"smartexpense/internal/core"
)

// DefaultTimeout bounds every call to the auth service.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error response is read for its message.
const maxErrorBody = 64 << 10

type (
	// Credentials are the login inputs.
	Credentials struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	// SignupRequest are the inputs of a new account.
	SignupRequest struct {
		Name     string `json:"name" validate:"required,max=100"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	// ProfileUpdate carries the editable profile fields. Empty Name and nil
	// Image leave the respective field unchanged.
	ProfileUpdate struct {
		Name      string
		Image     io.Reader
		ImageName string
	}

	authResponse struct {
		Token string    `json:"token"`
		User  core.User `json:"user"`
	}

	errorResponse struct {
		Message string `json:"message"`
	}
)

// Client talks to the auth/profile REST service.
type Client struct {
	baseURL  string
	http     *http.Client
	validate *validator.Validate
}

// NewClient returns a client for baseURL. A non-positive timeout means DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		validate: validator.New(),
	}
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (core.Session, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := c.check(req); err != nil {
		return core.Session{}, err
	}
	return c.authenticate(ctx, "/api/auth/signup", req)
}

func (c *Client) Login(ctx context.Context, creds Credentials) (core.Session, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := c.check(creds); err != nil {
		return core.Session{}, err
	}
	return c.authenticate(ctx, "/api/auth/login", creds)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (core.Session, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return core.Session{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return core.Session{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out authResponse
	if err := c.do(req, routeAuth, &out); err != nil {
		return core.Session{}, err
	}
	sess := core.Session{Token: out.Token, User: out.User}
	if !sess.Valid() {
		return core.Session{}, core.NetworkError("the server sent an incomplete session", nil)
	}
	return sess, nil
}

// Profile fetches the user behind token.
func (c *Client) Profile(ctx context.Context, token string) (core.User, error) {
	if token == "" {
		return core.User{}, core.AuthError("please log in first", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/profile", nil)
	if err != nil {
		return core.User{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var user core.User
	if err := c.do(req, routeProfile, &user); err != nil {
		return core.User{}, err
	}
	return user, nil
}

// UpdateProfile sends a multipart update with the fields set in upd.
func (c *Client) UpdateProfile(ctx context.Context, token string, upd ProfileUpdate) (core.User, error) {
	if token == "" {
		return core.User{}, core.AuthError("please log in first", nil)
	}
	upd.Name = strings.TrimSpace(upd.Name)
	if upd.Name == "" && upd.Image == nil {
		return core.User{}, core.ValidationError("nothing to update", nil)
	}

	body, contentType, err := encodeProfile(upd)
	if err != nil {
		return core.User{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/auth/profile", body)
	if err != nil {
		return core.User{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	var user core.User
	if err := c.do(req, routeProfile, &user); err != nil {
		return core.User{}, err
	}
	return user, nil
}

func encodeProfile(upd ProfileUpdate) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if upd.Name != "" {
		if err := w.WriteField("name", upd.Name); err != nil {
			return nil, "", fmt.Errorf("write name field: %w", err)
		}
	}

	if upd.Image != nil {
		name := filepath.Base(upd.ImageName)
		if name == "." || name == "/" || name == "" {
			name = "profile.jpg"
		}
		ctype := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
		if ctype == "" {
			ctype = "application/octet-stream"
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="profileImage"; filename="%s"`, escapeQuotes(name)))
		h.Set("Content-Type", ctype)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create image part: %w", err)
		}
		if _, err := io.Copy(part, upd.Image); err != nil {
			return nil, "", fmt.Errorf("read profile image: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

type route int

const (
	routeAuth route = iota
	routeProfile
)

func (c *Client) do(req *http.Request, r route, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return core.NetworkError("the server sent an unreadable response", err)
		}
		return nil
	}

	return statusError(r, resp.StatusCode, readMessage(resp.Body))
}

func readMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return ""
	}
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(raw))
}

// statusError maps a non-2xx response onto the error taxonomy.
func statusError(r route, status int, msg string) error {
	cause := fmt.Errorf("HTTP %d", status)
	or := func(fallback string) string {
		if msg != "" {
			return msg
		}
		return fallback
	}

	switch {
	case r == routeAuth && (status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusConflict):
		return core.AuthError(or("invalid credentials"), cause)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.AuthError(or("your session has expired, please log in again"), cause)
	case status == http.StatusNotFound:
		return core.NotFoundError(or("user not found"), cause)
	case status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge:
		return core.ValidationError(or("the server rejected the request"), cause)
	case status == http.StatusTooManyRequests:
		return core.NetworkError(or("too many requests, try again later"), cause)
	default:
		return core.NetworkError(or(fmt.Sprintf("unexpected server response (%d)", status)), cause)
	}
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NetworkError("the server did not respond in time", err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return core.NetworkError("the server did not respond in time", err)
	}
	if errors.Is(err, context.Canceled) {
		return core.NetworkError("request cancelled", err)
	}
	return core.NetworkError("could not reach the server", err)
}

// check runs struct validation and reports the first problem in plain words.
func (c *Client) check(v any) error {
	err := c.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return core.ValidationError("invalid input", err)
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	var msg string
	switch fe.Tag() {
	case "required":
		msg = field + " is required"
	case "email":
		msg = "invalid email format"
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		msg = "invalid " + field
	}
	return core.ValidationError(msg, err)
}
