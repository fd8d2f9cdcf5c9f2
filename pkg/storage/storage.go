// Package storage persists diagnostic bundles: tar+gzip archives bundling
// a failed flush's pre-edit file snapshot with the raw hunk text that
// failed to apply, content-addressed by a short id. The interface shape
// and the cache-in-front-of-permanent-storage design are carried over
// unchanged from this codebase's original uploaded-file storage layer.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"go.etcd.io/bbolt"
)

// ErrNotFound is returned by Get when id has no stored bundle.
var ErrNotFound = errors.New("storage: not found")

// Storage stores and retrieves bundles by id. Bundles are expected to be
// small (well under 1MB), so the interface works directly on []byte
// rather than io.Reader.
type Storage interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, id string, data []byte) error
	Del(ctx context.Context, id string) error
}

// ListStorage adds enumeration to Storage, needed to warm a cachedStorage
// from its backing ListStorage on startup.
type ListStorage interface {
	Storage
	// Callers should NOT retain b, rather make a copy if needed.
	List(ctx context.Context, cb func(id string, b []byte) error) error
}

// MinioStorage stores bundles in an S3-compatible bucket.
type MinioStorage struct {
	Client     *minio.Client
	BucketName string
}

var _ Storage = (*MinioStorage)(nil)

func (m *MinioStorage) Get(ctx context.Context, id string) ([]byte, error) {
	obj, err := m.Client.GetObject(ctx, m.BucketName, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (m *MinioStorage) Put(ctx context.Context, id string, data []byte) error {
	_, err := m.Client.PutObject(ctx, m.BucketName, id,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

func (m *MinioStorage) Del(ctx context.Context, id string) error {
	return m.Client.RemoveObject(ctx, m.BucketName, id, minio.RemoveObjectOptions{})
}

// BoltStorage stores bundles as bbolt values in a single bucket.
type BoltStorage struct {
	db         *bbolt.DB
	bucketName []byte
}

var _ ListStorage = (*BoltStorage)(nil)

// NewBoltStorage creates bundle storage backed by db, ensuring bucketName
// exists. Panics if bucket creation fails: this is meant to be called
// once at startup, where a failure is unrecoverable anyway.
func NewBoltStorage(db *bbolt.DB, bucketName []byte) *BoltStorage {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		panic(fmt.Errorf("storage: creating bucket: %w", err))
	}
	return &BoltStorage{db: db, bucketName: bucketName}
}

func (m *BoltStorage) Get(_ context.Context, id string) ([]byte, error) {
	var val []byte
	err := m.db.View(func(tx *bbolt.Tx) error {
		bx := tx.Bucket(m.bucketName)
		val = append(val, bx.Get([]byte(id))...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(val) == 0 {
		return nil, ErrNotFound
	}
	return val, nil
}

func (m *BoltStorage) Put(_ context.Context, id string, data []byte) error {
	return m.db.Batch(func(tx *bbolt.Tx) error {
		return tx.Bucket(m.bucketName).Put([]byte(id), data)
	})
}

func (m *BoltStorage) Del(_ context.Context, id string) error {
	return m.db.Batch(func(tx *bbolt.Tx) error {
		return tx.Bucket(m.bucketName).Delete([]byte(id))
	})
}

func (m *BoltStorage) List(_ context.Context, cb func(id string, b []byte) error) error {
	return m.db.View(func(tx *bbolt.Tx) error {
		bx := tx.Bucket(m.bucketName)
		return bx.ForEach(func(k, v []byte) error {
			return cb(string(k), v)
		})
	})
}

type cachedObject struct {
	id          string
	size        uint64
	lastAccess  time.Time
	lastAccessM sync.Mutex
	ready       chan struct{}
}

func (c *cachedObject) access() {
	n := time.Now()
	if c.lastAccessM.TryLock() {
		c.lastAccess = n
		c.lastAccessM.Unlock()
	}
}

// CachedStorage fronts a permanent Storage with an LRU-by-last-access
// cache, evicting in the background once the cache exceeds maxSize.
type CachedStorage struct {
	cache     ListStorage
	permanent Storage
	maxSize   uint64

	sync.RWMutex
	objects  map[string]*cachedObject
	cleaning chan struct{}
}

// NewCachedStorage warms objects from cache's existing contents, then
// starts the background cleaner goroutine.
func NewCachedStorage(cache ListStorage, permanent Storage, maxSize uint64) (*CachedStorage, error) {
	objects := make(map[string]*cachedObject)
	ready := make(chan struct{})
	close(ready)
	err := cache.List(context.Background(), func(id string, b []byte) error {
		objects[id] = &cachedObject{
			id:         id,
			size:       uint64(len(b)),
			lastAccess: time.Now(),
			ready:      ready,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c := &CachedStorage{
		cache:     cache,
		permanent: permanent,
		maxSize:   maxSize,
		objects:   objects,
		cleaning:  make(chan struct{}, 1),
	}
	go c.cleaner()
	return c, nil
}

var _ Storage = (*CachedStorage)(nil)

const cleanSleep = time.Second

func (c *CachedStorage) cacheSize() uint64 {
	var sz uint64
	c.RLock()
	for _, obj := range c.objects {
		sz += obj.size
	}
	c.RUnlock()
	return sz
}

func (c *CachedStorage) evict(els []*cachedObject) {
	c.RLock()
	defer c.RUnlock()
	for _, el := range els {
		if _, ok := c.objects[el.id]; ok {
			continue
		}
		if err := c.cache.Del(context.Background(), el.id); err != nil {
			log.Printf("storage: error deleting in cache eviction: %v", err)
		}
	}
}

func (c *CachedStorage) doClean() {
	c.Lock()
	defer c.Unlock()

	objects := make([]*cachedObject, 0, len(c.objects))
	var sz uint64
	for _, obj := range c.objects {
		objects = append(objects, obj)
		obj.lastAccessM.Lock()
		sz += obj.size
	}

	slices.SortFunc(objects, func(i, j *cachedObject) int {
		return i.lastAccess.Compare(j.lastAccess)
	})

	collectTarget := (sz - c.maxSize) + c.maxSize/20
	var collected uint64
	var del []*cachedObject

	for i, obj := range objects {
		if collected >= collectTarget {
			if del == nil {
				del = objects[:i]
			}
			obj.lastAccessM.Unlock()
			continue
		}
		collected += obj.size
		delete(c.objects, obj.id)
		obj.lastAccessM.Unlock()
	}
	if del == nil {
		del = objects
	}

	go c.evict(del)
}

func (c *CachedStorage) cleaner() {
	for range c.cleaning {
		if c.cacheSize() >= c.maxSize {
			c.doClean()
		}
		time.Sleep(cleanSleep)
	}
}

func (c *CachedStorage) cacheHas(id string) bool {
	c.RWMutex.RLock()
	obj, ok := c.objects[id]
	c.RWMutex.RUnlock()
	if !ok {
		return false
	}
	<-obj.ready
	if obj.size == 0 {
		return false
	}
	obj.access()
	return true
}

func (c *CachedStorage) cacheStore(ctx context.Context, id string, b []byte, x *cachedObject) {
	if err := c.cache.Put(ctx, id, b); err != nil {
		log.Printf("storage: cache does not correctly Put objects: %v", err)
		return
	}
	x.lastAccess = time.Now()
	x.size = uint64(len(b))

	select {
	case c.cleaning <- struct{}{}:
	default:
	}
}

func (c *CachedStorage) Get(ctx context.Context, id string) ([]byte, error) {
	if c.cacheHas(id) {
		return c.cache.Get(ctx, id)
	}

	co, ours := &cachedObject{id: id, ready: make(chan struct{})}, false
	c.Lock()
	if mapObject, ok := c.objects[id]; ok {
		co = mapObject
	} else {
		c.objects[id] = co
		ours = true
	}
	c.Unlock()

	if !ours {
		<-co.ready
		if co.size > 0 {
			return c.cache.Get(ctx, id)
		}
		return nil, ErrNotFound
	}

	defer close(co.ready)
	b, err := c.permanent.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.cacheStore(ctx, id, b, co)
	return b, nil
}

func (c *CachedStorage) Put(ctx context.Context, id string, data []byte) error {
	if err := c.permanent.Put(ctx, id, data); err != nil {
		return err
	}
	co := &cachedObject{id: id, ready: make(chan struct{})}
	c.Lock()
	c.objects[id] = co
	c.Unlock()

	defer close(co.ready)
	c.cacheStore(ctx, id, data, co)
	return nil
}

func (c *CachedStorage) Del(ctx context.Context, id string) error {
	c.Lock()
	delete(c.objects, id)
	c.Unlock()
	return c.permanent.Del(ctx, id)
}
