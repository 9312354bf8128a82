package localstore

import (
	"context"

	"github.com/trezcool/fieldpro/storage/internal/rows"
	"github.com/trezcool/fieldpro/storage/seed"
)

var tables = []string{
	rows.TableUsers,
	rows.TableBusinesses,
	rows.TableCustomers,
	rows.TableProducts,
	rows.TableJobs,
	rows.TableNotifications,
	rows.TableARFiles,
	rows.TableARScenes,
}

// InitializeData seeds a store that has never held users with d, then makes sure every
// entity document exists. It reports whether the store was seeded.
func (s *Store) InitializeData(ctx context.Context, d seed.Data) (bool, error) {
	seeded := false
	exists, err := s.Exists(rows.TableUsers)
	if err != nil {
		return false, err
	}
	if !exists {
		res, err := seed.Apply(ctx, seed.Target{Users: s, Businesses: s, Customers: s, Products: s}, d)
		if err != nil {
			return false, err
		}
		seeded = true
		if s.logger != nil {
			s.logger.Info("local store seeded", map[string]interface{}{
				"businesses": res.Businesses,
				"users":      res.Users,
				"customers":  res.Customers,
				"products":   res.Products,
			})
		}
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	for _, key := range tables {
		exists, err := s.Exists(key)
		if err != nil {
			return seeded, err
		}
		if !exists {
			if err = s.Put(key, []struct{}{}); err != nil {
				return seeded, err
			}
		}
	}
	return seeded, nil
}
