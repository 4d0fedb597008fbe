package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/procura/internal/config"
	identitydomain "github.com/smallbiznis/procura/internal/identity/domain"
	obscontext "github.com/smallbiznis/procura/internal/observability/context"
	"go.uber.org/zap"
)

const contextActorKey = "actor"

var errMissingSecret = errors.New("auth jwt secret is not configured")

// Claims are the bearer token fields issued by the external auth provider.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TokenVerifier validates HS256 bearer tokens and turns them into principals.
type TokenVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewTokenVerifier(cfg config.Config) *TokenVerifier {
	return &TokenVerifier{
		secret:   []byte(cfg.Auth.JWTSecret),
		issuer:   cfg.Auth.Issuer,
		audience: cfg.Auth.Audience,
	}
}

func (v *TokenVerifier) Verify(raw string) (identitydomain.Principal, error) {
	if len(v.secret) == 0 {
		return identitydomain.Principal{}, errMissingSecret
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return identitydomain.Principal{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return identitydomain.Principal{}, errors.New("invalid token claims")
	}

	return identitydomain.Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
	}, nil
}

// AuthRequired resolves the bearer token into an Actor for the rest of the chain.
// Actors without a company pass through; services reject them where a company is needed.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.verifier.Verify(raw)
		if err != nil {
			if errors.Is(err, errMissingSecret) {
				s.log.Error("bearer token rejected", zap.Error(err))
			}
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor, err := s.identitySvc.Resolve(c.Request.Context(), principal)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		ctx = obscontext.WithActor(ctx, "user", actor.ProfileID.String())
		if actor.HasCompany() {
			ctx = obscontext.WithCompanyID(ctx, actor.CompanyID.String())
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextActorKey, actor)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func (s *Server) actorFromContext(c *gin.Context) (identitydomain.Actor, bool) {
	value, ok := c.Get(contextActorKey)
	if !ok {
		return identitydomain.Actor{}, false
	}
	actor, ok := value.(identitydomain.Actor)
	return actor, ok
}

// requireActor returns the resolved actor or aborts the request.
func (s *Server) requireActor(c *gin.Context) (identitydomain.Actor, bool) {
	actor, ok := s.actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return identitydomain.Actor{}, false
	}
	return actor, true
}

func (s *Server) Me(c *gin.Context) {
	actor, ok := s.requireActor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": actor})
}
