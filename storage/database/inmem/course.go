package inmemdb

import (
	"context"
	"sort"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/course"
)

type courseRepository struct {
	db *courseTables
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func cloneCourse(c course.Course) course.Course {
	modules := make([]course.Module, 0, len(c.Modules))
	for _, m := range c.Modules {
		m.CourseID = c.ID
		lessons := make([]course.Lesson, 0, len(m.Lessons))
		for _, l := range m.Lessons {
			l.ModuleID = m.ID
			lessons = append(lessons, l)
		}
		m.Lessons = lessons
		modules = append(modules, m)
	}
	sort.SliceStable(modules, func(i, j int) bool { return modules[i].Position < modules[j].Position })
	c.Modules = modules
	return c
}

func cloneEnrollment(e course.Enrollment) course.Enrollment {
	e.CompletedLessonIDs = cloneStrings(e.CompletedLessonIDs)
	if e.CompletedAt != nil {
		at := *e.CompletedAt
		e.CompletedAt = &at
	}
	return e
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := cloneCourse(c)
	repo.db.courses[c.ID] = &stored
	return cloneCourse(stored), nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0)
	for _, c := range repo.db.courses {
		if filter.Matches(*c) {
			courses = append(courses, cloneCourse(*c))
		}
	}
	course.SortCourses(courses, ordering)
	return courses, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return cloneCourse(*c), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[c.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	stored := cloneCourse(c)
	repo.db.courses[c.ID] = &stored
	return cloneCourse(stored), nil
}

// DeleteCourse also deletes the course enrollments.
func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	for key := range repo.db.enrollments {
		if key.courseID == id {
			delete(repo.db.enrollments, key)
		}
	}
	return nil
}

func (repo *courseRepository) GetEnrollment(_ context.Context, courseID, userID string) (course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.enrollments[enrollmentKey{courseID: courseID, userID: userID}]; ok {
		return cloneEnrollment(*e), nil
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) QueryEnrollments(_ context.Context, filter course.EnrollmentFilter) ([]course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrollments := make([]course.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if filter.Matches(*e) {
			enrollments = append(enrollments, cloneEnrollment(*e))
		}
	}
	sort.SliceStable(enrollments, func(i, j int) bool {
		return enrollments[i].EnrolledAt.After(enrollments[j].EnrolledAt)
	})
	return enrollments, nil
}

func (repo *courseRepository) SaveEnrollment(_ context.Context, e course.Enrollment) (course.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[e.CourseID]; !ok {
		return course.Enrollment{}, course.ErrNotFound
	}
	key := enrollmentKey{courseID: e.CourseID, userID: e.UserID}
	if prev, ok := repo.db.enrollments[key]; ok {
		e.EnrolledAt = prev.EnrolledAt
	}
	stored := cloneEnrollment(e)
	repo.db.enrollments[key] = &stored
	return cloneEnrollment(stored), nil
}
