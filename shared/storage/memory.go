package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps avatars in memory for tests and runs without MinIO.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]memoryObject{}}
}

func (m *MemoryStore) PutAvatar(_ context.Context, agentID uuid.UUID, ext string, file io.Reader, _ int64, contentType string) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := avatarPrefix(agentID)
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
		}
	}
	key := AvatarKey(agentID, ext)
	m.objects[key] = memoryObject{data: data, contentType: contentType}
	return key, nil
}

func (m *MemoryStore) GetAvatar(_ context.Context, agentID uuid.UUID) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := avatarPrefix(agentID)
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			return &Object{
				Body:        io.NopCloser(bytes.NewReader(obj.data)),
				ContentType: obj.contentType,
				Size:        int64(len(obj.data)),
			}, nil
		}
	}
	return nil, ErrObjectNotFound
}

// Keys lists stored object keys.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	return keys
}
