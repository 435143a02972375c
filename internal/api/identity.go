package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"turnover/internal/config"
	"turnover/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var errUnauthenticated = errors.New("unauthenticated")

type claims struct {
	jwt.RegisteredClaims
	UserType models.ActorType `json:"user_type"`
}

// Identity verifies HS256 bearer tokens and turns them into actors.
type Identity struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewIdentity(cfg config.APIAuthConfig) *Identity {
	return &Identity{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer, now: time.Now}
}

// Authenticate parses the token; sub is the user id and user_type is admin or worker.
func (i *Identity) Authenticate(token string) (models.Actor, error) {
	if len(i.secret) == 0 {
		return models.Actor{}, errors.New("jwt secret not configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	c := &claims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: %v", errUnauthenticated, err)
	}
	if !parsed.Valid {
		return models.Actor{}, fmt.Errorf("%w: invalid token", errUnauthenticated)
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return models.Actor{}, fmt.Errorf("%w: bad subject %q", errUnauthenticated, c.Subject)
	}
	if c.UserType != models.ActorAdmin && c.UserType != models.ActorWorker {
		return models.Actor{}, fmt.Errorf("%w: bad user_type %q", errUnauthenticated, c.UserType)
	}
	return models.Actor{ID: id, Type: c.UserType}, nil
}

// Issue signs a token for the actor. Used by the CLI to bootstrap admins and workers.
func (i *Identity) Issue(actor models.Actor, ttl time.Duration) (string, error) {
	if len(i.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	now := i.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatInt(actor.ID, 10),
			Issuer:   i.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
		UserType: actor.Type,
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

type actorKey struct{}

func withActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(models.Actor)
	return actor, ok
}
