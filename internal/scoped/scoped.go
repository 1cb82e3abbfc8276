// Package scoped wraps GORM so every query and mutation is constrained to
// one tenant. A row that is missing and a row owned by another tenant are
// indistinguishable to callers.
package scoped

import (
	"context"
	"errors"
	"time"

	"github.com/suteetoe/scouting-service/pkg/apperror"
	"github.com/suteetoe/scouting-service/prometheus"

	"gorm.io/gorm"
)

// ErrNotFoundOrForbidden is returned for absent and cross-tenant rows alike.
var ErrNotFoundOrForbidden = &apperror.Error{Code: apperror.ENotFound, Msg: "not found"}

// TenantOwned is implemented by every model carrying a tenant_id.
type TenantOwned interface {
	SetTenantID(id string)
}

// DB is re-exported so callers can write scopes without importing gorm.
type DB = gorm.DB

// Scope narrows a query, e.g. a filter or a Preload.
type Scope = func(*DB) *DB

// Store performs data operations on behalf of one tenant.
type Store struct {
	db       *gorm.DB
	tenantID string
}

// For returns a Store bound to tenantID.
func For(db *gorm.DB, tenantID string) *Store {
	return &Store{db: db, tenantID: tenantID}
}

// TenantID returns the tenant the store is bound to.
func (s *Store) TenantID() string { return s.tenantID }

// Query returns a tenant-filtered query on model for custom reads
// (aggregates, group-bys).
func (s *Store) Query(ctx context.Context, model any) *gorm.DB {
	return s.db.WithContext(ctx).Model(model).Where("tenant_id = ?", s.tenantID)
}

func (s *Store) scoped(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Where("tenant_id = ?", s.tenantID)
}

// List loads all tenant rows matching scopes into dest (a slice pointer).
func (s *Store) List(ctx context.Context, dest any, scopes ...Scope) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	if err := s.scoped(ctx).Scopes(scopes...).Find(dest).Error; err != nil {
		return apperror.Wrap(err, apperror.EInternal, "scoped.List")
	}
	return nil
}

// Get loads the tenant row with id into dest.
func (s *Store) Get(ctx context.Context, dest any, id string, scopes ...Scope) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	if id == "" {
		return ErrNotFoundOrForbidden
	}
	err := s.scoped(ctx).Scopes(scopes...).Where("id = ?", id).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFoundOrForbidden
	}
	if err != nil {
		return apperror.Wrap(err, apperror.EInternal, "scoped.Get")
	}
	return nil
}

// Exists reports whether the tenant owns a row of model with id.
func (s *Store) Exists(ctx context.Context, model any, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	var n int64
	if err := s.Query(ctx, model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, apperror.Wrap(err, apperror.EInternal, "scoped.Exists")
	}
	return n > 0, nil
}

// Count counts tenant rows of model matching scopes.
func (s *Store) Count(ctx context.Context, model any, scopes ...Scope) (int64, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var n int64
	if err := s.Query(ctx, model).Scopes(scopes...).Count(&n).Error; err != nil {
		return 0, apperror.Wrap(err, apperror.EInternal, "scoped.Count")
	}
	return n, nil
}

// Create stamps rec with the tenant id and inserts it.
func (s *Store) Create(ctx context.Context, rec TenantOwned) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())

	rec.SetTenantID(s.tenantID)
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return apperror.Wrap(err, apperror.EInternal, "scoped.Create")
	}
	return nil
}

// Update loads id into rec, checking ownership, lets mutate change it, and
// writes columns back (every column but id/tenant_id/created_at when none
// are given). mutate may return an error to abort without writing.
func (s *Store) Update(ctx context.Context, rec TenantOwned, id string, mutate func() error, columns ...string) error {
	if err := s.Get(ctx, rec, id); err != nil {
		return err
	}
	if mutate != nil {
		if err := mutate(); err != nil {
			return err
		}
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	rec.SetTenantID(s.tenantID)
	q := s.db.WithContext(ctx).Model(rec).Where("tenant_id = ?", s.tenantID)
	if len(columns) > 0 {
		q = q.Select(columns)
	} else {
		q = q.Select("*").Omit("id", "tenant_id", "created_at")
	}

	res := q.Updates(rec)
	if res.Error != nil {
		return apperror.Wrap(res.Error, apperror.EInternal, "scoped.Update")
	}
	if res.RowsAffected == 0 {
		// deleted between the read and the write
		return ErrNotFoundOrForbidden
	}
	return nil
}

// Delete removes the tenant row of model with id.
func (s *Store) Delete(ctx context.Context, model any, id string) error {
	ok, err := s.Exists(ctx, model, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFoundOrForbidden
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	res := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, s.tenantID).Delete(model)
	if res.Error != nil {
		return apperror.Wrap(res.Error, apperror.EInternal, "scoped.Delete")
	}
	if res.RowsAffected == 0 {
		return ErrNotFoundOrForbidden
	}
	return nil
}

// Transaction runs fn with a Store bound to the same tenant inside one
// database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(For(tx, s.tenantID))
	})
}
