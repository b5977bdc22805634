package redis

import (
	"context"
	"testing"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGrants(t *testing.T) {
	g, err := parseGrants(map[string]string{"coarse": "1", "fine": "false", "can_request": "true"})
	require.NoError(t, err)
	assert.Equal(t, domain.Grants{Coarse: true, CanRequest: true}, g)

	g, err = parseGrants(map[string]string{})
	require.NoError(t, err)
	assert.False(t, g.Granted())

	_, err = parseGrants(map[string]string{"fine": "maybe"})
	assert.ErrorContains(t, err, "fine")
}

func TestPermissionStore_Unavailable(t *testing.T) {
	s := NewPermissionStore(unreachableClient(t))

	_, err := s.Grants(context.Background())
	assert.Error(t, err)
}

func TestPermissionStore_RoundTrip(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	s := NewPermissionStore(client)

	g, err := s.Grants(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Grants{}, g)

	want := domain.Grants{Fine: true, Coarse: true, ShowRationale: true}
	require.NoError(t, s.SetGrants(ctx, want))

	g, err = s.Grants(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, g)
	assert.Equal(t, domain.AuthorizationAllowed, g.Status())
}
