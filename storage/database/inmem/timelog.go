package inmemdb

import (
	"context"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/timelog"
)

type timeLogRepository struct {
	db *timeLogTable
}

var _ timelog.Repository = (*timeLogRepository)(nil) // interface compliance check

func NewTimeLogRepository(db *DB) timelog.Repository {
	return &timeLogRepository{db: db.timeLog}
}

func (repo *timeLogRepository) CreateTimeLog(_ context.Context, tl timelog.TimeLog) (timelog.TimeLog, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := tl
	repo.db.table[tl.ID] = &stored
	return stored, nil
}

func (repo *timeLogRepository) QueryTimeLogs(_ context.Context, filter *timelog.QueryFilter, ordering []core.DBOrdering) ([]timelog.TimeLog, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	logs := make([]timelog.TimeLog, 0)
	for _, tl := range repo.db.table {
		if filter.Matches(*tl) {
			logs = append(logs, *tl)
		}
	}
	timelog.SortTimeLogs(logs, ordering)
	return logs, nil
}

func (repo *timeLogRepository) GetTimeLog(_ context.Context, id string) (timelog.TimeLog, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tl, ok := repo.db.table[id]; ok {
		return *tl, nil
	}
	return timelog.TimeLog{}, timelog.ErrNotFound
}

func (repo *timeLogRepository) UpdateTimeLog(_ context.Context, tl timelog.TimeLog) (timelog.TimeLog, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[tl.ID]; !ok {
		return timelog.TimeLog{}, timelog.ErrNotFound
	}
	stored := tl
	repo.db.table[tl.ID] = &stored
	return stored, nil
}

func (repo *timeLogRepository) DeleteTimeLog(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return timelog.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
