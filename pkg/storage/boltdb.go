package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/swarmroll/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// DBFileName is the registry file created inside the data directory
const DBFileName = "swarmroll.db"

var bucketServices = []byte("services")

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the registry in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	return OpenBoltStore(filepath.Join(dataDir, DBFileName))
}

// OpenBoltStore opens the registry at an explicit file path
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketServices); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketServices, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is still open and readable
func (s *BoltStore) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketServices) == nil {
			return fmt.Errorf("bucket %s missing", bucketServices)
		}
		return nil
	})
}

func (s *BoltStore) CreateService(ctx context.Context, service *types.ServiceRef) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketServices)
		if b.Get([]byte(service.Name)) != nil {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, service.Name)
		}

		now := time.Now().UTC()
		if service.CreatedAt.IsZero() {
			service.CreatedAt = now
		}
		service.UpdatedAt = now
		return putService(b, service)
	})
}

func (s *BoltStore) GetService(ctx context.Context, name string) (*types.ServiceRef, error) {
	var service types.ServiceRef
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketServices).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return json.Unmarshal(data, &service)
	})
	if err != nil {
		return nil, err
	}
	return &service, nil
}

// ListServices returns every registered service ordered by name
func (s *BoltStore) ListServices(ctx context.Context) ([]*types.ServiceRef, error) {
	services := []*types.ServiceRef{}
	err := s.db.View(func(tx *bolt.Tx) error {
		// Bolt iterates keys in byte order
		return tx.Bucket(bucketServices).ForEach(func(k, v []byte) error {
			var service types.ServiceRef
			if err := json.Unmarshal(v, &service); err != nil {
				return fmt.Errorf("failed to decode service %s: %w", k, err)
			}
			services = append(services, &service)
			return nil
		})
	})
	return services, err
}

func (s *BoltStore) UpdateService(ctx context.Context, service *types.ServiceRef) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketServices)
		data := b.Get([]byte(service.Name))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, service.Name)
		}

		var existing types.ServiceRef
		if err := json.Unmarshal(data, &existing); err != nil {
			return err
		}
		service.CreatedAt = existing.CreatedAt
		service.UpdatedAt = time.Now().UTC()
		return putService(b, service)
	})
}

func (s *BoltStore) DeleteService(ctx context.Context, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketServices)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return b.Delete([]byte(name))
	})
}

func putService(b *bolt.Bucket, service *types.ServiceRef) error {
	data, err := json.Marshal(service)
	if err != nil {
		return err
	}
	return b.Put([]byte(service.Name), data)
}

var _ Store = (*BoltStore)(nil)
