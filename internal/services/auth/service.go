package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/interfaces"
)

// Service verifies bearer JWTs on the chat surface and the shared queue
// token on the task dispatch endpoint.
type Service struct {
	config *common.AuthConfig
	logger arbor.ILogger
}

// NewService creates a new auth service
func NewService(cfg *common.AuthConfig, logger arbor.ILogger) *Service {
	if cfg.JWTSecret == "" && !cfg.AllowAnonymous {
		logger.Warn().Msg("No JWT secret configured and anonymous access disabled, all bearer requests will be rejected")
	}
	if cfg.AllowAnonymous {
		logger.Warn().Msg("Anonymous access enabled, bearer verification is relaxed for development")
	}

	return &Service{
		config: cfg,
		logger: logger,
	}
}

// VerifyBearer validates an Authorization header value and returns the
// caller identity. With AllowAnonymous set, requests without a token get
// a synthesized development identity; a presented token must still
// verify when a secret is configured.
func (s *Service) VerifyBearer(authorization string) (*interfaces.Identity, error) {
	tokenString := strings.TrimSpace(authorization)
	if len(tokenString) > 7 && strings.EqualFold(tokenString[:7], "bearer ") {
		tokenString = strings.TrimSpace(tokenString[7:])
	}

	if tokenString == "" {
		if s.config.AllowAnonymous {
			return &interfaces.Identity{UserID: "anonymous", Anonymous: true}, nil
		}
		return nil, fmt.Errorf("%w: missing bearer token", interfaces.ErrUnauthorized)
	}

	if s.config.JWTSecret == "" {
		if s.config.AllowAnonymous {
			return &interfaces.Identity{UserID: "anonymous", Anonymous: true}, nil
		}
		return nil, fmt.Errorf("%w: jwt secret not configured", interfaces.ErrUnauthorized)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if s.config.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.JWTIssuer))
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	}, opts...)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Bearer token rejected")
		return nil, fmt.Errorf("%w: %v", interfaces.ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", interfaces.ErrUnauthorized)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", interfaces.ErrUnauthorized)
	}

	issuer, _ := token.Claims.GetIssuer()

	return &interfaces.Identity{
		UserID: subject,
		Issuer: issuer,
	}, nil
}

// VerifyQueueToken validates the shared secret presented by queue
// dispatch callers. An unset secret only passes in anonymous mode.
func (s *Service) VerifyQueueToken(token string) error {
	if s.config.QueueToken == "" {
		if s.config.AllowAnonymous {
			return nil
		}
		return fmt.Errorf("%w: queue token not configured", interfaces.ErrForbidden)
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(s.config.QueueToken)) != 1 {
		return fmt.Errorf("%w: queue token mismatch", interfaces.ErrForbidden)
	}

	return nil
}
