package authserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	"smartexpense/internal/middleware/ratelimit"
	"smartexpense/internal/middleware/security"
	"smartexpense/internal/middleware/trace"
	"smartexpense/internal/storage"
)

const (
	maxImageSize  = 5 << 20
	uploadsPrefix = "/uploads"
	userIDKey     = "userId"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

type Config struct {
	JWTSecret []byte
	TokenTTL  time.Duration
	UploadDir string
	// LoginRateLimit caps login and signup attempts per client and minute.
	// Zero disables the limit.
	LoginRateLimit int
	BcryptCost     int
}

type (
	signupRequest struct {
		Name     string `json:"name" validate:"required,max=100"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	loginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	authResponse struct {
		Token string    `json:"token"`
		User  core.User `json:"user"`
	}
)

// Server implements the auth and profile REST API.
type Server struct {
	users     UserStore
	tokens    *Tokens
	uploadDir string
	cost      int
	limiter   *ratelimit.Limiter
	validate  *validator.Validate
	logger    *slog.Logger
}

func New(users UserStore, cfg Config, logger *slog.Logger) (*Server, error) {
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("JWT secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = core.TokenLifetime
	}
	if cfg.UploadDir == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		users:     users,
		tokens:    NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		uploadDir: cfg.UploadDir,
		cost:      cfg.BcryptCost,
		validate:  validator.New(),
		logger:    logger.With(applog.FieldComponent, applog.ComponentAuth),
	}
	if cfg.LoginRateLimit > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.LoginRateLimit})
	}
	return s, nil
}

// Close stops background work.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// Router builds the gin engine serving the API and uploaded images.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), trace.Middleware(s.logger), security.Headers(security.DefaultHeadersConfig()))
	r.MaxMultipartMemory = maxImageSize

	auth := r.Group("/api/auth")
	if s.limiter != nil {
		auth.POST("/signup", s.limiter.Middleware(), s.signup)
		auth.POST("/login", s.limiter.Middleware(), s.login)
	} else {
		auth.POST("/signup", s.signup)
		auth.POST("/login", s.login)
	}

	for _, g := range []*gin.RouterGroup{auth.Group("/profile"), r.Group("/api/profile")} {
		g.Use(s.requireToken)
		g.GET("", s.getProfile)
		g.PUT("", s.updateProfile)
	}

	r.Group(uploadsPrefix, security.StaticAssets(86400)).Static("/", s.uploadDir)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	return r
}

func respondWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"message": message})
}

func (s *Server) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := s.validate.Struct(req); err != nil {
		respondWithError(c, http.StatusBadRequest, validationMessage(err))
		return
	}

	ctx := c.Request.Context()
	if _, err := s.users.UserByEmail(ctx, req.Email); err == nil {
		respondWithError(c, http.StatusBadRequest, "User already exists")
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.serverError(c, "look up user", err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		s.serverError(c, "hash password", err)
		return
	}

	rec := core.UserRecord{
		User: core.User{
			ID:    uuid.NewString(),
			Name:  req.Name,
			Email: req.Email,
		},
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			respondWithError(c, http.StatusBadRequest, "User already exists")
			return
		}
		s.serverError(c, "create user", err)
		return
	}

	s.logger.InfoContext(ctx, "User signed up", applog.FieldUserID, rec.ID)
	s.respondWithSession(c, rec.User)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := s.validate.Struct(req); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid credentials")
		return
	}

	ctx := c.Request.Context()
	rec, err := s.users.UserByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.serverError(c, "look up user", err)
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(req.Password)) != nil {
		s.logger.WarnContext(ctx, "Rejected login", "client_ip", c.ClientIP())
		respondWithError(c, http.StatusBadRequest, "Invalid credentials")
		return
	}

	s.respondWithSession(c, rec.User)
}

func (s *Server) respondWithSession(c *gin.Context, u core.User) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		s.serverError(c, "issue token", err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Token: token, User: u})
}

func (s *Server) requireToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		respondWithError(c, http.StatusUnauthorized, "No token")
		return
	}

	userID, err := s.tokens.Parse(strings.TrimSpace(token))
	if err != nil {
		respondWithError(c, http.StatusUnauthorized, "Invalid token")
		return
	}
	c.Set(userIDKey, userID)
	c.Next()
}

func (s *Server) currentUser(c *gin.Context) (core.UserRecord, bool) {
	rec, err := s.users.UserByID(c.Request.Context(), c.GetString(userIDKey))
	if errors.Is(err, storage.ErrNotFound) {
		respondWithError(c, http.StatusNotFound, "User not found")
		return core.UserRecord{}, false
	}
	if err != nil {
		s.serverError(c, "load user", err)
		return core.UserRecord{}, false
	}
	return rec, true
}

func (s *Server) getProfile(c *gin.Context) {
	rec, ok := s.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec.User)
}

func (s *Server) updateProfile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageSize+1<<20)

	rec, ok := s.currentUser(c)
	if !ok {
		return
	}

	user := rec.User
	if name := strings.TrimSpace(c.PostForm("name")); name != "" {
		if len(name) > 100 {
			respondWithError(c, http.StatusBadRequest, "Name is too long")
			return
		}
		user.Name = name
	}

	file, err := c.FormFile("profileImage")
	switch {
	case err == nil:
		if file.Size > maxImageSize {
			respondWithError(c, http.StatusRequestEntityTooLarge, "Image is too large")
			return
		}
		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !imageExtensions[ext] {
			respondWithError(c, http.StatusBadRequest, "Only image uploads are allowed")
			return
		}
		name := uuid.NewString() + ext
		if err := c.SaveUploadedFile(file, filepath.Join(s.uploadDir, name)); err != nil {
			s.serverError(c, "save upload", err)
			return
		}
		user.ProfileImage = uploadsPrefix + "/" + name
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondWithError(c, http.StatusRequestEntityTooLarge, "Image is too large")
			return
		}
		respondWithError(c, http.StatusBadRequest, "Invalid form data")
		return
	}

	ctx := c.Request.Context()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, "User not found")
			return
		}
		s.serverError(c, "update user", err)
		return
	}

	s.logger.InfoContext(ctx, "Profile updated", applog.FieldUserID, user.ID)
	c.JSON(http.StatusOK, user)
}

func (s *Server) serverError(c *gin.Context, op string, err error) {
	s.logger.ErrorContext(c.Request.Context(), "Request failed",
		applog.FieldOperation, op,
		applog.FieldError, err)
	respondWithError(c, http.StatusInternalServerError, "Server error")
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request data"
	}
	switch fe := verrs[0]; fe.Tag() {
	case "required":
		return "All fields are required"
	case "email":
		return "Invalid email format"
	case "max":
		return fe.Field() + " is too long"
	default:
		return "Invalid request data"
	}
}
