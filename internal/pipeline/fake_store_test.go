package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"monitory/internal/cloud"
)

// fakeStore is an in-memory ObjectStore for pipeline tests.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte // "bucket/key"
	puts    []string
	getErr  error
	putErr  error
	listErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) seed(bucket, key string, data []byte) {
	f.objects[bucket+"/"+key] = data
}

func (f *fakeStore) List(_ context.Context, bucket, prefix string) ([]cloud.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []cloud.ObjectInfo
	for k, v := range f.objects {
		if strings.HasPrefix(k, bucket+"/"+prefix) {
			out = append(out, cloud.ObjectInfo{
				Key:          strings.TrimPrefix(k, bucket+"/"),
				Size:         int64(len(v)),
				LastModified: time.Unix(0, 0),
			})
		}
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("no such key %s/%s", bucket, key)
	}
	return data, nil
}

func (f *fakeStore) Put(_ context.Context, bucket, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[bucket+"/"+key] = data
	f.puts = append(f.puts, bucket+"/"+key)
	return nil
}

func (f *fakeStore) putsTo(bucket string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.puts {
		if strings.HasPrefix(p, bucket+"/") {
			out = append(out, strings.TrimPrefix(p, bucket+"/"))
		}
	}
	return out
}
