package session

import (
	"context"
	"strings"

	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/observability"
)

const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

type User struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session is built once per request from the bearer token.
type Session struct {
	Token string
	User  User
	// Hotel is the first hotel the user administers, if any.
	Hotel *domain.Hotel
}

func (s *Session) IsAdmin() bool {
	return s != nil && (s.User.Role == RoleAdmin || s.User.Role == RoleSuperAdmin)
}

type ctxKey struct{}

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}

// HotelLister is satisfied by the backend client.
type HotelLister interface {
	MyHotels(ctx context.Context, token, cacheKey string) ([]domain.Hotel, error)
}

type Builder struct {
	parser *TokenParser
	hotels HotelLister
	logger observability.Logger
}

func NewBuilder(parser *TokenParser, hotels HotelLister, logger observability.Logger) *Builder {
	return &Builder{parser: parser, hotels: hotels, logger: logger}
}

// FromHeader extracts the token from an Authorization header value.
func FromHeader(h string) string {
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// Build parses the token and, for admins, resolves the managed hotel. A
// failed hotel lookup is logged and leaves Hotel nil.
func (b *Builder) Build(ctx context.Context, token string) (*Session, error) {
	claims, err := b.parser.Parse(token)
	if err != nil {
		return nil, err
	}
	s := &Session{
		Token: token,
		User:  User{Email: claims.Subject, Name: claims.Name, Role: claims.Role},
	}
	if s.IsAdmin() && b.hotels != nil {
		hotels, err := b.hotels.MyHotels(ctx, token, claims.Subject)
		if err != nil {
			b.logger.WithField("user", claims.Subject).Warn("could not resolve managed hotels: ", err)
		} else if len(hotels) > 0 {
			s.Hotel = &hotels[0]
		}
	}
	return s, nil
}
