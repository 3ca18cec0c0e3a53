package dashboard

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions is the persistence interface for browser session records.
type Sessions interface {
	repository.Repository[*SessionRecord]

	GetByToken(ctx context.Context, token string, criteria ...repository.SelectCriteria) (*SessionRecord, error)
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string, criteria ...repository.SelectCriteria) (*SessionRecord, error)
	UpsertByToken(ctx context.Context, record *SessionRecord) (*SessionRecord, error)
	UpsertByTokenTx(ctx context.Context, tx bun.IDB, record *SessionRecord) (*SessionRecord, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByTokenTx(ctx context.Context, tx bun.IDB, token string) error
}

type sessions struct {
	repository.Repository[*SessionRecord]
	db *bun.DB
}

var (
	_ Sessions                              = (*sessions)(nil)
	_ repository.Repository[*SessionRecord] = (*sessions)(nil)
)

// NewSessionsRepository builds the bun-backed session repository.
func NewSessionsRepository(db *bun.DB) Sessions {
	repo := repository.NewRepository[*SessionRecord](db, repository.ModelHandlers[*SessionRecord]{
		NewRecord: func() *SessionRecord { return &SessionRecord{} },
		GetID: func(r *SessionRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *SessionRecord, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})

	return &sessions{
		Repository: repo,
		db:         db,
	}
}

// SessionRecordID derives the deterministic record ID for a token, so every
// writer racing to persist the same token converges on the same row.
func SessionRecordID(token string) (uuid.UUID, error) {
	return hashid.NewUUID(token)
}

func (s *sessions) GetByToken(ctx context.Context, token string, criteria ...repository.SelectCriteria) (*SessionRecord, error) {
	return s.GetByTokenTx(ctx, s.db, token, criteria...)
}

func (s *sessions) GetByTokenTx(ctx context.Context, tx bun.IDB, token string, criteria ...repository.SelectCriteria) (*SessionRecord, error) {
	record := &SessionRecord{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"token": maskToken(token),
				})
		}
		return nil, err
	}

	return record, nil
}

func (s *sessions) UpsertByToken(ctx context.Context, record *SessionRecord) (*SessionRecord, error) {
	return s.UpsertByTokenTx(ctx, s.db, record)
}

func (s *sessions) UpsertByTokenTx(ctx context.Context, tx bun.IDB, record *SessionRecord) (*SessionRecord, error) {
	if record.ID == uuid.Nil {
		if id, err := SessionRecordID(record.Token); err == nil {
			record.ID = id
		}
	}

	now := time.Now()
	record.UpdatedAt = &now

	_, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("token = EXCLUDED.token").
		Set("user_cache = EXCLUDED.user_cache").
		Set("last_validated_at = EXCLUDED.last_validated_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (s *sessions) DeleteByToken(ctx context.Context, token string) error {
	return s.DeleteByTokenTx(ctx, s.db, token)
}

func (s *sessions) DeleteByTokenTx(ctx context.Context, tx bun.IDB, token string) error {
	_, err := tx.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	return err
}

// maskToken keeps logs and error metadata free of full credentials.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
