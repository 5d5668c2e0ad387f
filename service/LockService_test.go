package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sitesweep/sitesweep-backend/sitesweep-service/entity"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/repository"
	"github.com/stretchr/testify/assert"
)

// fakeLockRepository keeps locks in memory with the same optimistic
// versioning semantics as the MySQL-backed implementation.
type fakeLockRepository struct {
	mu    sync.Mutex
	locks map[string]*entity.LockEntity
}

func newFakeLockRepository() *fakeLockRepository {
	return &fakeLockRepository{locks: make(map[string]*entity.LockEntity)}
}

func (f *fakeLockRepository) seed(lock entity.LockEntity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks[lock.Name] = &lock
}

func (f *fakeLockRepository) setOwner(lockName string, instanceId string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lock, ok := f.locks[lockName]; ok {
		lock.InstanceId = instanceId
		lock.Version++
	}
}

func (f *fakeLockRepository) TryAcquireLock(ctx context.Context, lockName string, instanceId string, leaseSeconds int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := f.locks[lockName]
	if !ok {
		f.locks[lockName] = &entity.LockEntity{
			Name:       lockName,
			InstanceId: instanceId,
			AcquiredAt: now,
			ExpiresAt:  now.Add(time.Duration(leaseSeconds) * time.Second),
			Version:    1,
		}
		return true, nil
	}
	if existing.ExpiresAt.After(now) {
		return false, repository.ErrLockAlreadyAcquired
	}
	existing.InstanceId = instanceId
	existing.AcquiredAt = now
	existing.ExpiresAt = now.Add(time.Duration(leaseSeconds) * time.Second)
	existing.Version++
	return true, nil
}

func (f *fakeLockRepository) RefreshLock(ctx context.Context, lockName string, instanceId string, leaseSeconds int, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	lock, ok := f.locks[lockName]
	if !ok {
		return repository.ErrLockNotFound
	}
	if lock.Version != expectedVersion {
		return repository.ErrVersionMismatch
	}
	if lock.InstanceId != instanceId {
		return repository.ErrLockAlreadyAcquired
	}
	lock.ExpiresAt = time.Now().UTC().Add(time.Duration(leaseSeconds) * time.Second)
	lock.Version++
	return nil
}

func (f *fakeLockRepository) ReleaseLock(ctx context.Context, lockName string, instanceId string, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	lock, ok := f.locks[lockName]
	if !ok {
		return repository.ErrLockNotFound
	}
	if lock.Version != expectedVersion {
		return repository.ErrVersionMismatch
	}
	if lock.InstanceId != instanceId {
		return repository.ErrLockAlreadyAcquired
	}
	lock.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	lock.Version++
	return nil
}

func (f *fakeLockRepository) GetLockInfo(ctx context.Context, lockName string) (*entity.LockEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lock, ok := f.locks[lockName]
	if !ok {
		return nil, repository.ErrLockNotFound
	}
	info := *lock
	return &info, nil
}

type fakeMonitoringService struct {
	mu          sync.Mutex
	taskRuns    []string
	contentions []string
	skipped     map[string]int
}

func (f *fakeMonitoringService) AddTaskRun(task string, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskRuns = append(f.taskRuns, task+"/"+status)
}

func (f *fakeMonitoringService) AddItemsDeleted(task string, count int)             {}
func (f *fakeMonitoringService) AddBytesFreed(task string, bytes int64)             {}
func (f *fakeMonitoringService) AddTaskDuration(task string, elapsed time.Duration) {}

func (f *fakeMonitoringService) AddLockContention(lockName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contentions = append(f.contentions, lockName)
}

func (f *fakeMonitoringService) AddItemsSkipped(task string, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.skipped == nil {
		f.skipped = make(map[string]int)
	}
	f.skipped[task] += count
}

func (f *fakeMonitoringService) AddRateLimitEvent(actor string, allowed bool) {}

func (f *fakeMonitoringService) lockContentions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.contentions...)
}

func TestAcquireLockDeniedWhileHeldByAnotherInstance(t *testing.T) {
	lockRepo := newFakeLockRepository()
	lockRepo.seed(entity.LockEntity{
		Name:       "cleanup_task_lock",
		InstanceId: "other-instance",
		AcquiredAt: time.Now().UTC(),
		ExpiresAt:  time.Now().UTC().Add(time.Minute),
		Version:    3,
	})
	monitoring := &fakeMonitoringService{}
	svc := NewLockService(lockRepo, monitoring, "this-instance")

	acquired, notify, err := svc.AcquireLock(context.Background(), "cleanup_task_lock", LockOptions{})

	assert.NoError(t, err)
	assert.False(t, acquired)
	assert.Nil(t, notify)
	assert.Equal(t, []string{"cleanup_task_lock"}, monitoring.lockContentions())

	lock, err := lockRepo.GetLockInfo(context.Background(), "cleanup_task_lock")
	assert.NoError(t, err)
	assert.Equal(t, "other-instance", lock.InstanceId)
}

func TestAcquireLockTakesOverExpiredLock(t *testing.T) {
	lockRepo := newFakeLockRepository()
	lockRepo.seed(entity.LockEntity{
		Name:       "cleanup_task_lock",
		InstanceId: "crashed-instance",
		AcquiredAt: time.Now().UTC().Add(-10 * time.Minute),
		ExpiresAt:  time.Now().UTC().Add(-9 * time.Minute),
		Version:    7,
	})
	monitoring := &fakeMonitoringService{}
	svc := NewLockService(lockRepo, monitoring, "this-instance")

	acquired, _, err := svc.AcquireLock(context.Background(), "cleanup_task_lock", LockOptions{})

	assert.NoError(t, err)
	assert.True(t, acquired)
	assert.Empty(t, monitoring.lockContentions())

	lock, err := lockRepo.GetLockInfo(context.Background(), "cleanup_task_lock")
	assert.NoError(t, err)
	assert.Equal(t, "this-instance", lock.InstanceId)
	assert.Equal(t, int64(8), lock.Version)

	assert.NoError(t, svc.ReleaseLock(context.Background(), "cleanup_task_lock"))
}

func TestReleaseLockLeavesForeignLockAlone(t *testing.T) {
	lockRepo := newFakeLockRepository()
	lockRepo.seed(entity.LockEntity{
		Name:       "cleanup_task_lock",
		InstanceId: "other-instance",
		AcquiredAt: time.Now().UTC(),
		ExpiresAt:  time.Now().UTC().Add(time.Minute),
		Version:    2,
	})
	svc := NewLockService(lockRepo, &fakeMonitoringService{}, "this-instance")

	assert.NoError(t, svc.ReleaseLock(context.Background(), "cleanup_task_lock"))

	lock, err := lockRepo.GetLockInfo(context.Background(), "cleanup_task_lock")
	assert.NoError(t, err)
	assert.Equal(t, "other-instance", lock.InstanceId)
	assert.Equal(t, int64(2), lock.Version)
	assert.True(t, lock.ExpiresAt.After(time.Now().UTC()))
}

func TestHeartbeatNotifiesWhenLockIsTakenOver(t *testing.T) {
	lockRepo := newFakeLockRepository()
	svc := NewLockService(lockRepo, &fakeMonitoringService{}, "this-instance")

	acquired, notify, err := svc.AcquireLock(context.Background(), "cleanup_task_lock", LockOptions{
		LeaseSeconds:             60,
		HeartbeatIntervalSeconds: 1,
		NotifyOnLoss:             true,
	})
	assert.NoError(t, err)
	assert.True(t, acquired)
	assert.NotNil(t, notify)

	lockRepo.setOwner("cleanup_task_lock", "usurper-instance")

	select {
	case event, ok := <-notify:
		assert.True(t, ok)
		assert.Equal(t, "cleanup_task_lock", event.LockName)
		assert.Equal(t, "this-instance", event.InstanceId)
		assert.Equal(t, "lock acquired by another instance", event.Reason)
	case <-time.After(5 * time.Second):
		t.Fatal("no lock lost notification before timeout")
	}
}
