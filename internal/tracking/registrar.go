package tracking

import (
	"context"
	"sync"

	"github.com/phongzhu/e-elyon-mobile-sub000/internal/shared/codec"

	"github.com/redis/go-redis/v9"
)

// Registrar controls background location delivery for a device.
// Registering twice and unregistering an absent task are both no-ops.
type Registrar interface {
	Register(ctx context.Context, deviceID, taskID string, opts TaskOptions) error
	Unregister(ctx context.Context, deviceID, taskID string) error
	IsRegistered(ctx context.Context, deviceID, taskID string) (bool, error)
}

// RedisRegistrar records registrations in a hash per device, field =
// task id, value = CBOR-encoded options.
type RedisRegistrar struct {
	client *redis.Client
}

func NewRedisRegistrar(client *redis.Client) *RedisRegistrar {
	return &RedisRegistrar{client: client}
}

func registrationKey(deviceID string) string {
	return "geofence:tasks:" + deviceID
}

func (r *RedisRegistrar) Register(ctx context.Context, deviceID, taskID string, opts TaskOptions) error {
	raw, err := codec.Marshal(opts)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, registrationKey(deviceID), taskID, raw).Err()
}

func (r *RedisRegistrar) Unregister(ctx context.Context, deviceID, taskID string) error {
	return r.client.HDel(ctx, registrationKey(deviceID), taskID).Err()
}

func (r *RedisRegistrar) IsRegistered(ctx context.Context, deviceID, taskID string) (bool, error) {
	return r.client.HExists(ctx, registrationKey(deviceID), taskID).Result()
}

// Options returns the options a task was registered with.
func (r *RedisRegistrar) Options(ctx context.Context, deviceID, taskID string) (TaskOptions, error) {
	raw, err := r.client.HGet(ctx, registrationKey(deviceID), taskID).Bytes()
	if err != nil {
		return TaskOptions{}, err
	}
	var opts TaskOptions
	err = codec.Unmarshal(raw, &opts)
	return opts, err
}

type MemoryRegistrar struct {
	mu    sync.Mutex
	tasks map[string]TaskOptions
}

func NewMemoryRegistrar() *MemoryRegistrar {
	return &MemoryRegistrar{tasks: map[string]TaskOptions{}}
}

func (m *MemoryRegistrar) Register(_ context.Context, deviceID, taskID string, opts TaskOptions) error {
	m.mu.Lock()
	m.tasks[deviceID+"/"+taskID] = opts
	m.mu.Unlock()
	return nil
}

func (m *MemoryRegistrar) Unregister(_ context.Context, deviceID, taskID string) error {
	m.mu.Lock()
	delete(m.tasks, deviceID+"/"+taskID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryRegistrar) IsRegistered(_ context.Context, deviceID, taskID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[deviceID+"/"+taskID]
	return ok, nil
}
