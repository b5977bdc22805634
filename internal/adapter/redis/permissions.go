package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/WolfBearGames/Godot-GeolocationPlugin-Android/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// PermissionStore reads the permission grants the device mirrors into
// PermissionsKey. A missing hash means nothing has been granted.
type PermissionStore struct {
	rdb   *goredis.Client
	reads singleflight.Group
}

var _ domain.PermissionSource = (*PermissionStore)(nil)

func NewPermissionStore(rdb *goredis.Client) *PermissionStore {
	return &PermissionStore{rdb: rdb}
}

func (s *PermissionStore) Grants(ctx context.Context) (domain.Grants, error) {
	v, err, _ := s.reads.Do(PermissionsKey, func() (any, error) {
		fields, err := s.rdb.HGetAll(ctx, PermissionsKey).Result()
		if err != nil {
			return domain.Grants{}, fmt.Errorf("failed to read permissions: %w", err)
		}
		return parseGrants(fields)
	})
	if err != nil {
		return domain.Grants{}, err
	}
	return v.(domain.Grants), nil
}

// SetGrants stores the grants. Used by the device bridge and in tests.
func (s *PermissionStore) SetGrants(ctx context.Context, g domain.Grants) error {
	err := s.rdb.HSet(ctx, PermissionsKey,
		fieldCoarse, g.Coarse,
		fieldFine, g.Fine,
		fieldShowRationale, g.ShowRationale,
		fieldCanRequest, g.CanRequest,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to store permissions: %w", err)
	}
	return nil
}

func parseGrants(fields map[string]string) (domain.Grants, error) {
	var g domain.Grants
	for field, dst := range map[string]*bool{
		fieldCoarse:        &g.Coarse,
		fieldFine:          &g.Fine,
		fieldShowRationale: &g.ShowRationale,
		fieldCanRequest:    &g.CanRequest,
	} {
		raw, ok := fields[field]
		if !ok {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return domain.Grants{}, fmt.Errorf("permission field %s: %w", field, err)
		}
		*dst = v
	}
	return g, nil
}
