// Package inmemdb implements the domain repositories in memory; it backs the `memory` database engine and the tests.
package inmemdb

import (
	"context"
	"sync"

	"github.com/Cherif0104/EcosystIA-sub000/core/course"
	"github.com/Cherif0104/EcosystIA-sub000/core/meeting"
	"github.com/Cherif0104/EcosystIA-sub000/core/project"
	"github.com/Cherif0104/EcosystIA-sub000/core/timelog"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
)

type (
	DB struct {
		user    *userTable
		project *projectTables
		course  *courseTables
		timeLog *timeLogTable
		meeting *meetingTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	// projects, tasks & risks share a lock so deletions can cascade.
	projectTables struct {
		projects map[string]*project.Project
		tasks    map[string]*project.Task
		risks    map[string]*project.Risk
		mutex    sync.RWMutex
	}

	courseTables struct {
		courses     map[string]*course.Course
		enrollments map[enrollmentKey]*course.Enrollment
		mutex       sync.RWMutex
	}

	enrollmentKey struct {
		courseID string
		userID   string
	}

	timeLogTable struct {
		table map[string]*timelog.TimeLog
		mutex sync.RWMutex
	}

	meetingTable struct {
		table map[string]*meeting.Meeting
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		project: &projectTables{
			projects: make(map[string]*project.Project),
			tasks:    make(map[string]*project.Task),
			risks:    make(map[string]*project.Risk),
		},
		course: &courseTables{
			courses:     make(map[string]*course.Course),
			enrollments: make(map[enrollmentKey]*course.Enrollment),
		},
		timeLog: &timeLogTable{table: make(map[string]*timelog.TimeLog)},
		meeting: &meetingTable{table: make(map[string]*meeting.Meeting)},
	}
}

// PingContext always succeeds.
func (db *DB) PingContext(_ context.Context) error { return nil }

func (db *DB) Close() error { return nil }

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append(make([]string, 0, len(s)), s...)
}
