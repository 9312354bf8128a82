package localstore

import (
	"github.com/pkg/errors"
)

// load returns the rows stored under key, empty if there are none.
func load[R any](s *Store, key string) ([]R, error) {
	var rows []R
	if _, err := s.Get(key, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []R{}
	}
	return rows, nil
}

// mutate runs fn on the rows of key and stores the result, holding the write lock throughout.
func mutate[R any](s *Store, key string, fn func(rows []R) ([]R, error)) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	rows, err := load[R](s, key)
	if err != nil {
		return err
	}
	if rows, err = fn(rows); err != nil {
		return err
	}
	return s.Put(key, rows)
}

func find[R any](rows []R, id func(R) string, want string) (int, bool) {
	for i, r := range rows {
		if id(r) == want {
			return i, true
		}
	}
	return -1, false
}

func get[R any](s *Store, key string, id func(R) string, want string, notFound error) (R, error) {
	var zero R
	rows, err := load[R](s, key)
	if err != nil {
		return zero, err
	}
	i, ok := find(rows, id, want)
	if !ok {
		return zero, notFound
	}
	return rows[i], nil
}

func insert[R any](s *Store, key string, id func(R) string, row R) error {
	return mutate(s, key, func(rows []R) ([]R, error) {
		if _, exists := find(rows, id, id(row)); exists {
			return nil, errors.Errorf("%s: duplicate id %s", key, id(row))
		}
		return append(rows, row), nil
	})
}

func replace[R any](s *Store, key string, id func(R) string, row R, notFound error) error {
	return mutate(s, key, func(rows []R) ([]R, error) {
		i, ok := find(rows, id, id(row))
		if !ok {
			return nil, notFound
		}
		rows[i] = row
		return rows, nil
	})
}

func remove[R any](s *Store, key string, id func(R) string, want string, notFound error) error {
	return mutate(s, key, func(rows []R) ([]R, error) {
		i, ok := find(rows, id, want)
		if !ok {
			return nil, notFound
		}
		return append(rows[:i], rows[i+1:]...), nil
	})
}
