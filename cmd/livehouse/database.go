package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"livehouse/internal/app/events"
	"livehouse/internal/app/ingest"
	"livehouse/internal/app/venues"
	"livehouse/internal/store"
)

// backend is the store surface the commands need.
type backend interface {
	ingest.Store
	venues.Store
	events.Store
	EnsureSchema(ctx context.Context) error
}

type session struct {
	store backend
	tx    ingest.TxFunc
	db    *sql.DB
}

func (s *session) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// openSession connects to the store. Writers use the ingestion role when one is
// configured. With --dry-run an empty in-memory store is used instead.
func (a *app) openSession(ctx context.Context, privileged bool) (*session, error) {
	if a.dryRun {
		log.Warn().Msg("dry run: writes go to an in-memory store and are discarded")
		mem := store.NewMemory()
		return &session{store: mem, tx: ingest.Transactional(mem.InTx)}, nil
	}

	dsn, err := a.cfg.StoreDSN(privileged)
	if err != nil {
		return nil, err
	}
	db, err := a.openDB(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ingest.ErrStoreUnavailable, err)
	}
	dataStore := store.New(db)
	if err := dataStore.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &session{store: dataStore, tx: ingest.Transactional(dataStore.InTx), db: db}, nil
}

// openServeSessions opens a read-only session for the public API and a
// privileged one for ingestion. Without separate ingestion credentials, or on
// a dry run, both are the same session.
func (a *app) openServeSessions(ctx context.Context) (read, write *session, err error) {
	write, err = a.openSession(ctx, true)
	if err != nil {
		return nil, nil, err
	}
	if a.dryRun || a.cfg.Store.Credentials.User == "" {
		return write, write, nil
	}
	read, err = a.openSession(ctx, false)
	if err != nil {
		_ = write.Close()
		return nil, nil, err
	}
	return read, write, nil
}
