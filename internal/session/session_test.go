package session

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/hotel-booking/internal/domain"
	"github.com/robertarktes/hotel-booking/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockHotels struct {
	mock.Mock
}

func (m *mockHotels) MyHotels(ctx context.Context, token, cacheKey string) ([]domain.Hotel, error) {
	args := m.Called(ctx, token, cacheKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Hotel), args.Error(1)
}

func TestTokenParser_RoundTrip(t *testing.T) {
	p := NewTokenParser("secret")
	tok, err := p.Sign("admin@venise.cm", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := p.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "admin@venise.cm", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestTokenParser_RejectsWrongSecret(t *testing.T) {
	tok, err := NewTokenParser("other").Sign("a@b.c", "", time.Hour)
	require.NoError(t, err)

	_, err = NewTokenParser("secret").Parse(tok)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenParser_UnverifiedStillChecksExpiry(t *testing.T) {
	tok, err := NewTokenParser("whatever").Sign("a@b.c", "", -time.Minute)
	require.NoError(t, err)

	p := NewTokenParser("")
	assert.False(t, p.Verifies())
	_, err = p.Parse(tok)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = p.Parse("not-a-jwt")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestFromHeader(t *testing.T) {
	assert.Equal(t, "abc", FromHeader("Bearer abc"))
	assert.Equal(t, "abc", FromHeader("bearer  abc"))
	assert.Empty(t, FromHeader("Basic abc"))
	assert.Empty(t, FromHeader(""))
}

func TestBuilder_AdminGetsHotel(t *testing.T) {
	p := NewTokenParser("secret")
	tok, _ := p.Sign("admin@venise.cm", RoleAdmin, time.Hour)

	hotels := &mockHotels{}
	hotels.On("MyHotels", mock.Anything, tok, "admin@venise.cm").
		Return([]domain.Hotel{{ID: 3, Name: "Venise"}, {ID: 4, Name: "Kribi"}}, nil)

	s, err := NewBuilder(p, hotels, observability.NewNopLogger()).Build(context.Background(), tok)
	require.NoError(t, err)
	require.NotNil(t, s.Hotel)
	assert.Equal(t, int64(3), s.Hotel.ID)
	assert.True(t, s.IsAdmin())
	hotels.AssertExpectations(t)
}

func TestBuilder_GuestSkipsHotelLookup(t *testing.T) {
	p := NewTokenParser("secret")
	tok, _ := p.Sign("guest@example.com", "", time.Hour)

	hotels := &mockHotels{}
	s, err := NewBuilder(p, hotels, observability.NewNopLogger()).Build(context.Background(), tok)
	require.NoError(t, err)
	assert.Nil(t, s.Hotel)
	assert.False(t, s.IsAdmin())
	hotels.AssertNotCalled(t, "MyHotels", mock.Anything, mock.Anything, mock.Anything)
}

func TestBuilder_HotelLookupFailureIsNotFatal(t *testing.T) {
	p := NewTokenParser("secret")
	tok, _ := p.Sign("admin@venise.cm", RoleSuperAdmin, time.Hour)

	hotels := &mockHotels{}
	hotels.On("MyHotels", mock.Anything, tok, "admin@venise.cm").Return(nil, errors.New("boom"))

	s, err := NewBuilder(p, hotels, observability.NewNopLogger()).Build(context.Background(), tok)
	require.NoError(t, err)
	assert.Nil(t, s.Hotel)
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := NewContext(context.Background(), &Session{Token: "t"})
	s, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "t", s.Token)
}
