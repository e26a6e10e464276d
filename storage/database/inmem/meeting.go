package inmemdb

import (
	"context"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/meeting"
)

type meetingRepository struct {
	db *meetingTable
}

var _ meeting.Repository = (*meetingRepository)(nil) // interface compliance check

func NewMeetingRepository(db *DB) meeting.Repository {
	return &meetingRepository{db: db.meeting}
}

func cloneMeeting(m meeting.Meeting) meeting.Meeting {
	m.AttendeeIDs = cloneStrings(m.AttendeeIDs)
	return m
}

func (repo *meetingRepository) CreateMeeting(_ context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := cloneMeeting(m)
	repo.db.table[m.ID] = &stored
	return cloneMeeting(stored), nil
}

func (repo *meetingRepository) QueryMeetings(_ context.Context, filter *meeting.QueryFilter, ordering []core.DBOrdering) ([]meeting.Meeting, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	meetings := make([]meeting.Meeting, 0)
	for _, m := range repo.db.table {
		if filter.Matches(*m) {
			meetings = append(meetings, cloneMeeting(*m))
		}
	}
	meeting.SortMeetings(meetings, ordering)
	return meetings, nil
}

func (repo *meetingRepository) GetMeeting(_ context.Context, id string) (meeting.Meeting, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if m, ok := repo.db.table[id]; ok {
		return cloneMeeting(*m), nil
	}
	return meeting.Meeting{}, meeting.ErrNotFound
}

func (repo *meetingRepository) UpdateMeeting(_ context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[m.ID]; !ok {
		return meeting.Meeting{}, meeting.ErrNotFound
	}
	stored := cloneMeeting(m)
	repo.db.table[m.ID] = &stored
	return cloneMeeting(stored), nil
}

func (repo *meetingRepository) DeleteMeeting(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return meeting.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
