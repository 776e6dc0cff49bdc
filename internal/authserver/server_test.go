package authserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"smartexpense/internal/core"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestServer(t *testing.T) (*Server, *MemoryUsers, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	users := NewMemoryUsers()
	srv, err := New(users, Config{
		JWTSecret:  []byte(testSecret),
		UploadDir:  t.TempDir(),
		BcryptCost: bcrypt.MinCost,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv, users, srv.Router()
}

func doJSON(r http.Handler, method, url string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Message
}

func signup(t *testing.T, r http.Handler, name, email, password string) authResponse {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/api/auth/signup",
		map[string]string{"name": name, "email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out authResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSignup(t *testing.T) {
	_, users, r := newTestServer(t)

	out := signup(t, r, "Ada", "Ada@Example.com", "secret")

	assert.NotEmpty(t, out.Token)
	assert.NotEmpty(t, out.User.ID)
	assert.Equal(t, "Ada", out.User.Name)
	assert.Equal(t, "ada@example.com", out.User.Email)

	rec, err := users.UserByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", rec.PasswordHash)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	_, users, r := newTestServer(t)
	signup(t, r, "Ada", "a@b.com", "secret")

	w := doJSON(r, http.MethodPost, "/api/auth/signup",
		map[string]string{"name": "Other", "email": "A@B.com", "password": "pw"}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", message(t, w))
	assert.Len(t, users.byID, 1, "no duplicate record")
}

func TestSignup_InvalidInput(t *testing.T) {
	_, _, r := newTestServer(t)

	tests := []struct {
		name string
		body any
		want string
	}{
		{"missing fields", map[string]string{"email": "a@b.com"}, "All fields are required"},
		{"bad email", map[string]string{"name": "A", "email": "nope", "password": "x"}, "Invalid email format"},
		{"not json", "{", "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/api/auth/signup", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, message(t, w))
		})
	}
}

func TestLogin(t *testing.T) {
	_, _, r := newTestServer(t)
	created := signup(t, r, "Ada", "a@b.com", "secret")

	w := doJSON(r, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "a@b.com", "password": "secret"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.NotEmpty(t, raw["token"])
	user, ok := raw["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, created.User.ID, user["id"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "PasswordHash")
	assert.NotContains(t, w.Body.String(), "$2a$")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	_, _, r := newTestServer(t)
	signup(t, r, "Ada", "a@b.com", "secret")

	for _, body := range []map[string]string{
		{"email": "a@b.com", "password": "wrong"},
		{"email": "nobody@b.com", "password": "secret"},
		{"email": "a@b.com"},
	} {
		w := doJSON(r, http.MethodPost, "/api/auth/login", body, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid credentials", message(t, w))
	}
}

func TestProfile_Auth(t *testing.T) {
	srv, _, r := newTestServer(t)
	out := signup(t, r, "Ada", "a@b.com", "secret")

	for _, path := range []string{"/api/auth/profile", "/api/profile"} {
		t.Run(path, func(t *testing.T) {
			w := doJSON(r, http.MethodGet, path, nil, "")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "No token", message(t, w))

			w = doJSON(r, http.MethodGet, path, nil, "garbage")
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Invalid token", message(t, w))

			w = doJSON(r, http.MethodGet, path, nil, out.Token)
			require.Equal(t, http.StatusOK, w.Code)
			var u core.User
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
			assert.Equal(t, out.User, u)
		})
	}

	ghost, err := srv.tokens.Issue("ghost")
	require.NoError(t, err)
	w := doJSON(r, http.MethodGet, "/api/profile", nil, ghost)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", message(t, w))
}

func TestTokens_Expiry(t *testing.T) {
	tokens := NewTokens([]byte(testSecret), core.TokenLifetime)
	issued := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }

	tok, err := tokens.Issue("u1")
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(6 * 24 * time.Hour) }
	id, err := tokens.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	tokens.now = func() time.Time { return issued.Add(7*24*time.Hour + time.Second) }
	_, err = tokens.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokens([]byte("another-secret-of-some-length"), time.Hour)
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func multipartProfile(t *testing.T, name, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if name != "" {
		require.NoError(t, w.WriteField("name", name))
	}
	if fileName != "" {
		part, err := w.CreateFormFile("profileImage", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUpdateProfile(t *testing.T) {
	_, _, r := newTestServer(t)
	out := signup(t, r, "Ada", "a@b.com", "secret")

	body, ctype := multipartProfile(t, "Ada Lovelace", "me.PNG", []byte("\x89PNG fake"))
	req := httptest.NewRequest(http.MethodPut, "/api/auth/profile", body)
	req.Header.Set("Content-Type", ctype)
	req.Header.Set("Authorization", "Bearer "+out.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var u core.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, "Ada Lovelace", u.Name)
	assert.Equal(t, "a@b.com", u.Email)
	require.True(t, strings.HasPrefix(u.ProfileImage, "/uploads/"), u.ProfileImage)
	assert.True(t, strings.HasSuffix(u.ProfileImage, ".png"))

	// the uploaded image is served back
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, u.ProfileImage, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "\x89PNG fake", w.Body.String())

	// name only, through the short route
	body, ctype = multipartProfile(t, "Countess", "", nil)
	req = httptest.NewRequest(http.MethodPut, "/api/profile", body)
	req.Header.Set("Content-Type", ctype)
	req.Header.Set("Authorization", "Bearer "+out.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, "Countess", u.Name)
	assert.NotEmpty(t, u.ProfileImage, "image kept when not re-sent")
}

func TestUpdateProfile_RejectsNonImages(t *testing.T) {
	_, _, r := newTestServer(t)
	out := signup(t, r, "Ada", "a@b.com", "secret")

	body, ctype := multipartProfile(t, "", "script.sh", []byte("#!/bin/sh"))
	req := httptest.NewRequest(http.MethodPut, "/api/auth/profile", body)
	req.Header.Set("Content-Type", ctype)
	req.Header.Set("Authorization", "Bearer "+out.Token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only image uploads are allowed", message(t, w))
}

func TestLoginRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv, err := New(NewMemoryUsers(), Config{
		JWTSecret:      []byte(testSecret),
		UploadDir:      t.TempDir(),
		LoginRateLimit: 2,
	}, nil)
	require.NoError(t, err)
	defer srv.Close()
	r := srv.Router()

	var last int
	for i := 0; i < 3; i++ {
		last = doJSON(r, http.MethodPost, "/api/auth/login",
			map[string]string{"email": "a@b.com", "password": "x"}, "").Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(NewMemoryUsers(), Config{UploadDir: t.TempDir()}, nil)
	assert.Error(t, err)
}
