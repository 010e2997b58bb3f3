// Package principals resolves authenticated actors against the account and
// api key tables.
package principals

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vistable/vistable"
	"github.com/vistable/vistable/kit/errors"
	"github.com/vistable/vistable/sqlite"
)

var _ vistable.PrincipalService = (*Service)(nil)

// Service looks up principals by identity.
type Service struct {
	store *sqlite.SqlStore
	log   *zap.Logger
	clock clock.Clock
}

type ServiceOption func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = c
	}
}

func NewService(log *zap.Logger, store *sqlite.SqlStore, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		log:   log,
		clock: clock.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func tableFor(t vistable.PrincipalType) (string, error) {
	switch t {
	case vistable.PrincipalAccount:
		return "account", nil
	case vistable.PrincipalAPIKey:
		return "api_key", nil
	default:
		return "", &errors.Error{
			Code: errors.EInvalid,
			Msg:  fmt.Sprintf("unknown principal type %q", t),
		}
	}
}

type principalRow struct {
	ID         uuid.UUID     `db:"id"`
	Name       string        `db:"name"`
	RoleID     vistable.Role `db:"role_id"`
	CreateTime time.Time     `db:"create_time"`
	UpdateTime time.Time     `db:"update_time"`
}

// FindPrincipal resolves one principal by id and type.
func (s *Service) FindPrincipal(ctx context.Context, id uuid.UUID, t vistable.PrincipalType) (*vistable.Principal, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}

	s.store.Mu.RLock()
	defer s.store.Mu.RUnlock()

	query, args, err := sq.Select("id", "name", "role_id", "create_time", "update_time").
		From(table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row principalRow
	if err := sqlx.GetContext(ctx, s.store.DB, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, &errors.Error{
				Code: errors.ENotFound,
				Msg:  fmt.Sprintf("principal %s of type %s not found", id, t),
				Op:   "principals.FindPrincipal",
			}
		}
		return nil, err
	}

	return &vistable.Principal{ID: row.ID, Type: t, Role: row.RoleID}, nil
}

// CreatePrincipal registers an account or api key with the given role. Used
// by provisioning and by tests; authentication itself lives outside this
// module.
func (s *Service) CreatePrincipal(ctx context.Context, p vistable.Principal, name string) error {
	table, err := tableFor(p.Type)
	if err != nil {
		return err
	}

	s.store.Mu.Lock()
	defer s.store.Mu.Unlock()

	now := s.clock.Now().UTC()
	query, args, err := sq.Insert(table).
		Columns("id", "name", "role_id", "create_time", "update_time").
		Values(p.ID, name, p.Role, now, now).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.store.DB.ExecContext(ctx, query, args...); err != nil {
		return &errors.Error{
			Code: errors.EConflict,
			Msg:  fmt.Sprintf("cannot register principal %s", name),
			Err:  err,
		}
	}
	return nil
}
