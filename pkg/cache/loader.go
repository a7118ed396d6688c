package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/coocood/freecache"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	apierrors "github.com/irvinlim/apple-health-dashboard/pkg/errors"
	"github.com/irvinlim/apple-health-dashboard/pkg/workouts"
)

const (
	megabyte = 1024 * 1024

	// freecache rejects entries larger than 1/1024 of the cache, including
	// its entry header.
	entryHeaderSize = 24
	maxEntryDivisor = 1024

	// A dataset may use at most 1/16 of the cache, so that its chunks spread
	// over the cache segments without evicting each other.
	maxDatasetDivisor = 16
)

// LoadFunc loads the dataset at path.
type LoadFunc func(path string) (*workouts.Dataset, error)

// Loader memoizes LoadFunc by source identity, which is the absolute path of
// the source together with its size and modification time. Changing the file
// on disk therefore causes the next Get to load it again.
//
// Encoded datasets are split into chunks that each fit in one cache entry. The
// entry at the identity key holds the number of chunks.
//
// Each Get returns a freshly decoded copy, so callers never share a dataset.
type Loader struct {
	load       LoadFunc
	cache      *freecache.Cache
	ttl        time.Duration
	maxEntry   int
	maxDataset int

	// keys remembers the last identity seen for each path, for Invalidate.
	keys map[string]string
	mtx  sync.Mutex
}

// NewLoader returns a Loader backed by a cache of sizeMB megabytes. Entries
// expire after ttl, or never if ttl is zero.
func NewLoader(load LoadFunc, sizeMB int, ttl time.Duration) *Loader {
	if sizeMB < 1 {
		sizeMB = 1
	}
	size := sizeMB * megabyte
	return &Loader{
		load:       load,
		cache:      freecache.NewCache(size),
		ttl:        ttl,
		maxEntry:   size / maxEntryDivisor,
		maxDataset: size / maxDatasetDivisor,
		keys:       make(map[string]string),
	}
}

// Get returns the dataset at path, loading it only if its identity is not cached.
func (l *Loader) Get(path string) (*workouts.Dataset, error) {
	key, err := sourceKey(path)
	if err != nil {
		return nil, err
	}

	l.mtx.Lock()
	defer l.mtx.Unlock()

	logger := log.WithField("source", path)
	if cached, ok := l.getChunks(key); ok {
		var dataset workouts.Dataset
		err := jsoniter.Unmarshal(cached, &dataset)
		if err == nil {
			logger.Debug("dataset cache hit")
			return &dataset, nil
		}
		logger.WithError(err).Warn("cannot decode cached dataset, reloading")
	}

	dataset, err := l.load(path)
	if err != nil {
		return nil, err
	}

	encoded, err := jsoniter.Marshal(dataset)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot encode dataset")
	}
	if previous, ok := l.keys[path]; ok {
		l.deleteChunks(previous)
		delete(l.keys, path)
	}
	if err := l.setChunks(key, encoded); err != nil {
		logger.WithError(err).WithField("size", len(encoded)).Warn("cannot cache dataset")
		return dataset, nil
	}
	l.keys[path] = key

	// Return a decoded copy so the caller does not share the loaded dataset.
	var copied workouts.Dataset
	if err := jsoniter.Unmarshal(encoded, &copied); err != nil {
		return nil, errors.Wrapf(err, "cannot decode dataset")
	}
	return &copied, nil
}

// Invalidate drops the cached dataset for path.
func (l *Loader) Invalidate(path string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if key, ok := l.keys[path]; ok {
		l.deleteChunks(key)
		delete(l.keys, path)
	}
}

// Reset drops every cached dataset.
func (l *Loader) Reset() {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.cache.Clear()
	l.keys = make(map[string]string)
}

func (l *Loader) setChunks(key string, value []byte) error {
	if len(value) > l.maxDataset {
		return fmt.Errorf("dataset of %v bytes exceeds %v bytes", len(value), l.maxDataset)
	}
	chunkSize := l.maxEntry - entryHeaderSize - len(chunkKey(key, len(value)))
	if chunkSize <= 0 {
		return fmt.Errorf("cache key for %v is too long", key)
	}

	ttl := int(l.ttl.Seconds())
	var count int
	for start := 0; start < len(value); start += chunkSize {
		end := start + chunkSize
		if end > len(value) {
			end = len(value)
		}
		if err := l.cache.Set(chunkKey(key, count), value[start:end], ttl); err != nil {
			l.deleteChunkRange(key, count)
			return errors.Wrapf(err, "cannot cache chunk %v", count)
		}
		count++
	}

	// The count is written last, so a reader never sees a partial dataset.
	if err := l.cache.Set([]byte(key), []byte(strconv.Itoa(count)), ttl); err != nil {
		l.deleteChunkRange(key, count)
		return errors.Wrapf(err, "cannot cache chunk count")
	}
	return nil
}

// getChunks reassembles the value at key. ok is false if any chunk has been
// evicted or expired.
func (l *Loader) getChunks(key string) ([]byte, bool) {
	raw, err := l.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	count, err := strconv.Atoi(string(raw))
	if err != nil {
		return nil, false
	}
	var value []byte
	for i := 0; i < count; i++ {
		chunk, err := l.cache.Get(chunkKey(key, i))
		if err != nil {
			return nil, false
		}
		value = append(value, chunk...)
	}
	return value, true
}

func (l *Loader) deleteChunks(key string) {
	raw, err := l.cache.Get([]byte(key))
	l.cache.Del([]byte(key))
	if err != nil {
		return
	}
	count, _ := strconv.Atoi(string(raw))
	l.deleteChunkRange(key, count)
}

func (l *Loader) deleteChunkRange(key string, count int) {
	for i := 0; i < count; i++ {
		l.cache.Del(chunkKey(key, i))
	}
}

func chunkKey(key string, i int) []byte {
	return []byte(fmt.Sprintf("%v#%d", key, i))
}

func sourceKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", apierrors.WrapfLoad(err, "cannot resolve %v", path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", apierrors.WrapfLoad(err, "cannot stat %v", path)
	}
	return fmt.Sprintf("%v|%d|%d", abs, info.Size(), info.ModTime().UnixNano()), nil
}
