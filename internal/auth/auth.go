// Package auth guards the mutating HTTP endpoints with HS256 bearer tokens.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yegors/overhead/pkg/logger"
)

// Roles
const (
	RoleAdmin  = "admin"  // may push test overrides and force fetches
	RoleViewer = "viewer" // read-only
)

var (
	// ErrInvalidToken is returned when token validation fails
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrNoSecret is returned when tokens are requested without a signing key
	ErrNoSecret = errors.New("auth: no signing secret configured")
)

// Claims are the token claims
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Config holds authentication configuration
type Config struct {
	JWTSecret     string
	Issuer        string
	TokenDuration time.Duration
}

// Service issues and validates tokens
type Service struct {
	config Config
	now    func() time.Time
	logger *logger.Logger
}

// NewService creates the auth service. An empty secret means auth is disabled.
func NewService(cfg Config, log *logger.Logger) *Service {
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "overhead"
	}
	return &Service{config: cfg, now: time.Now, logger: log.Named("auth")}
}

// Enabled reports whether a signing secret is configured
func (s *Service) Enabled() bool {
	return s.config.JWTSecret != ""
}

// GenerateToken signs a token for subject with role
func (s *Service) GenerateToken(subject, role string) (string, error) {
	if !s.Enabled() {
		return "", ErrNoSecret
	}
	now := s.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.config.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// ValidateToken validates a token and returns its claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// HasRole checks if userRole satisfies requiredRole. Admin > Viewer.
func HasRole(userRole, requiredRole string) bool {
	roleLevel := map[string]int{
		RoleAdmin:  1,
		RoleViewer: 0,
	}
	userLevel, ok1 := roleLevel[userRole]
	requiredLevel, ok2 := roleLevel[requiredRole]
	if !ok1 || !ok2 {
		return false
	}
	return userLevel >= requiredLevel
}

type claimsKey struct{}

// ClaimsFromContext returns the claims attached by RequireRole
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// RequireRole rejects requests without a valid bearer token carrying role.
// When auth is disabled every request passes.
func (s *Service) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				http.Error(w, "Missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := s.ValidateToken(tokenString)
			if err != nil {
				s.logger.Warn("Rejected token",
					logger.String("path", r.URL.Path),
					logger.String("remote", r.RemoteAddr))
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			if !HasRole(claims.Role, role) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}
