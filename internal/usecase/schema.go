package usecase

import (
	"context"

	"github.com/semmidev/sqlkeep/internal/domain"
)

type Schema struct {
	db     domain.Database
	logger Logger
}

func NewSchema(db domain.Database, logger Logger) *Schema {
	return &Schema{db: db, logger: logger}
}

func (uc *Schema) Info(ctx context.Context) ([]domain.TableInfo, error) {
	tables, err := uc.db.TableStats(ctx)
	if err != nil {
		return nil, domain.Wrap("schema info failed", err)
	}
	return tables, nil
}

func (uc *Schema) Status(ctx context.Context) (*domain.ServerStatus, error) {
	status, err := uc.db.Status(ctx)
	if err != nil {
		return nil, domain.Wrap("status check failed", err)
	}
	return status, nil
}

// DropAllTables drops every table with foreign key checks suspended on a
// pinned connection. The checks are re-enabled on every exit path.
func (uc *Schema) DropAllTables(ctx context.Context) (*domain.DropResult, error) {
	tables, err := uc.db.ListTables(ctx)
	if err != nil {
		return nil, domain.Wrap("drop tables failed", err)
	}
	for _, t := range tables {
		if err := domain.ValidateIdentifier(t); err != nil {
			return nil, domain.Wrap("drop tables failed", err)
		}
	}

	dropped, err := uc.drop(ctx, tables)
	if err != nil {
		err = domain.Wrap("drop tables failed", err)
		uc.logger.Errorf("%v (dropped %d of %d)", err, len(dropped), len(tables))
		return nil, err
	}

	uc.logger.Warnf("Dropped %d table(s)", len(dropped))
	return &domain.DropResult{
		Success:       true,
		TablesDropped: len(dropped),
		Tables:        dropped,
	}, nil
}

func (uc *Schema) drop(ctx context.Context, tables []string) (dropped []string, err error) {
	session, err := acquireSession(ctx, uc.db)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = appendErr(err, session.release(ctx))
	}()

	dropped = []string{}
	for _, t := range tables {
		if _, err := session.Exec(ctx, "DROP TABLE IF EXISTS "+domain.QuoteIdentifier(t)); err != nil {
			return dropped, err
		}
		dropped = append(dropped, t)
	}
	return dropped, nil
}
