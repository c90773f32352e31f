package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const principalKey = "principal"

var (
	ErrTokenIsMissing = errors.New("bearer token is required")
	ErrTokenIsInvalid = errors.New("token is invalid")
	ErrNotHostedHere  = errors.New("principal is not hosted by this node")
)

// Authenticator maps a bearer JWT to the calling principal. The subject
// claim is the principal name, and the principal must be hosted by this
// node: a node only issues commands for its own parties.
type Authenticator struct {
	secret   []byte
	identity ports.IdentityService
}

func NewAuthenticator(secret string, identity ports.IdentityService) (*Authenticator, error) {
	if secret == "" {
		return nil, errs.NewValueIsRequiredError("secret")
	}
	if identity == nil {
		return nil, errs.NewValueIsRequiredError("identity")
	}
	return &Authenticator{secret: []byte(secret), identity: identity}, nil
}

// IssueToken signs a token for p valid for ttl.
func (a *Authenticator) IssueToken(p kernel.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   p.Name(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate returns the principal named by a valid token.
func (a *Authenticator) Authenticate(tokenString string) (kernel.Principal, error) {
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return kernel.Principal{}, fmt.Errorf("%w: %w", ErrTokenIsInvalid, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return kernel.Principal{}, fmt.Errorf("%w: %w", ErrTokenIsInvalid, err)
	}
	p, err := kernel.NewPrincipal(subject)
	if err != nil {
		return kernel.Principal{}, fmt.Errorf("%w: %w", ErrTokenIsInvalid, err)
	}
	if !a.identity.Hosts(p) {
		return kernel.Principal{}, fmt.Errorf("%w: %s", ErrNotHostedHere, p)
	}
	return p, nil
}

func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found || tokenString == "" {
				return c.JSON(http.StatusUnauthorized, newErrorResponse(http.StatusUnauthorized, ErrTokenIsMissing))
			}

			p, err := a.Authenticate(tokenString)
			switch {
			case errors.Is(err, ErrNotHostedHere):
				return c.JSON(http.StatusForbidden, newErrorResponse(http.StatusForbidden, err))
			case err != nil:
				return c.JSON(http.StatusUnauthorized, newErrorResponse(http.StatusUnauthorized, err))
			}

			c.Set(principalKey, p)
			return next(c)
		}
	}
}

// CallerFrom returns the principal stored by the middleware.
func CallerFrom(c echo.Context) (kernel.Principal, bool) {
	p, ok := c.Get(principalKey).(kernel.Principal)
	return p, ok
}
