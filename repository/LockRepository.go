package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/db"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/entity"
)

var (
	ErrLockAlreadyAcquired = errors.New("lock is already acquired by another instance")
	ErrLockNotFound        = errors.New("lock not found")
	ErrLockExpired         = errors.New("lock has expired")
	ErrVersionMismatch     = errors.New("lock version mismatch - optimistic lock failure")
)

const (
	clockSkewMargin = 10 * time.Second

	mysqlDuplicateEntry = 1062
)

type LockRepository interface {
	TryAcquireLock(ctx context.Context, lockName string, instanceId string, leaseSeconds int) (bool, error)
	RefreshLock(ctx context.Context, lockName string, instanceId string, leaseSeconds int, expectedVersion int64) error
	ReleaseLock(ctx context.Context, lockName string, instanceId string, expectedVersion int64) error
	GetLockInfo(ctx context.Context, lockName string) (*entity.LockEntity, error)
}

type lockRepositoryImpl struct {
	cp db.ConnectionProvider
}

func NewLockRepository(cp db.ConnectionProvider) LockRepository {
	return &lockRepositoryImpl{cp: cp}
}

func (r *lockRepositoryImpl) TryAcquireLock(ctx context.Context, lockName string, instanceId string, leaseSeconds int) (bool, error) {
	now := time.Now().UTC()
	safeNow := now.Add(-clockSkewMargin)
	expiresAt := now.Add(time.Duration(leaseSeconds) * time.Second)

	existingLock, err := r.findExistingLock(ctx, lockName)
	if err != nil {
		return false, err
	}

	if existingLock == nil {
		return r.createNewLock(ctx, lockName, instanceId, now, expiresAt)
	}

	if existingLock.ExpiresAt.After(safeNow) {
		return false, nil
	}

	return r.takeOverExpiredLock(ctx, lockName, instanceId, now, expiresAt, existingLock.Version, safeNow)
}

func (r *lockRepositoryImpl) findExistingLock(ctx context.Context, lockName string) (*entity.LockEntity, error) {
	var existingLock entity.LockEntity
	err := r.cp.GetConnection().NewSelect().Model(&existingLock).
		Where("name = ?", lockName).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check existing lock: %w", err)
	}

	return &existingLock, nil
}

func (r *lockRepositoryImpl) createNewLock(ctx context.Context, lockName, instanceId string, now, expiresAt time.Time) (bool, error) {
	lock := &entity.LockEntity{
		Name:       lockName,
		InstanceId: instanceId,
		AcquiredAt: now,
		ExpiresAt:  expiresAt,
		Version:    1,
	}

	_, err := r.cp.GetConnection().NewInsert().Model(lock).Exec(ctx)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return false, ErrLockAlreadyAcquired
		}
		return false, fmt.Errorf("failed to insert lock: %w", err)
	}
	return true, nil
}

func (r *lockRepositoryImpl) takeOverExpiredLock(ctx context.Context, lockName, instanceId string, now, expiresAt time.Time, version int64, safeNow time.Time) (bool, error) {
	result, err := r.cp.GetConnection().NewUpdate().Model((*entity.LockEntity)(nil)).
		Set("instance_id = ?", instanceId).
		Set("acquired_at = ?", now).
		Set("expires_at = ?", expiresAt).
		Set("version = version + 1").
		Where("name = ? AND version = ? AND expires_at < ?", lockName, version, safeNow).
		Exec(ctx)

	if err != nil {
		return false, fmt.Errorf("failed to take over lock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to take over lock: %w", err)
	}
	return affected > 0, nil
}

func (r *lockRepositoryImpl) RefreshLock(ctx context.Context, lockName string, instanceId string, leaseSeconds int, expectedVersion int64) error {
	now := time.Now().UTC()
	safeNow := now.Add(clockSkewMargin)
	expiresAt := now.Add(time.Duration(leaseSeconds) * time.Second)

	result, err := r.cp.GetConnection().NewUpdate().Model((*entity.LockEntity)(nil)).
		Set("expires_at = ?", expiresAt).
		Set("version = version + 1").
		Where("name = ? AND instance_id = ? AND expires_at > ? AND version = ?",
			lockName, instanceId, safeNow, expectedVersion).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to refresh lock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to refresh lock: %w", err)
	}

	if affected == 0 {
		lock, err := r.GetLockInfo(ctx, lockName)
		if err != nil {
			return err
		}

		if lock.ExpiresAt.Before(safeNow) {
			return ErrLockExpired
		}

		if lock.Version != expectedVersion {
			return ErrVersionMismatch
		}
		return ErrLockAlreadyAcquired
	}

	return nil
}

func (r *lockRepositoryImpl) ReleaseLock(ctx context.Context, lockName string, instanceId string, expectedVersion int64) error {
	pastTime := time.Now().UTC().Add(-clockSkewMargin)

	result, err := r.cp.GetConnection().NewUpdate().Model((*entity.LockEntity)(nil)).
		Set("expires_at = ?", pastTime).
		Set("version = version + 1").
		Where("name = ? AND instance_id = ? AND version = ?",
			lockName, instanceId, expectedVersion).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if affected == 0 {
		lock, err := r.GetLockInfo(ctx, lockName)
		if err != nil {
			if errors.Is(err, ErrLockNotFound) {
				return nil
			}
			return err
		}

		if lock.Version != expectedVersion {
			return ErrVersionMismatch
		}

		if lock.InstanceId != instanceId {
			return ErrLockAlreadyAcquired
		}
	}

	return nil
}

func (r *lockRepositoryImpl) GetLockInfo(ctx context.Context, lockName string) (*entity.LockEntity, error) {
	var lock entity.LockEntity
	err := r.cp.GetConnection().NewSelect().Model(&lock).
		Where("name = ?", lockName).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLockNotFound
		}
		return nil, fmt.Errorf("failed to get lock info: %w", err)
	}

	return &lock, nil
}
