package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/course"
)

const (
	courseColumns     = "id, title, description, category, level, instructor_id, status, created_at, updated_at"
	moduleColumns     = "id, course_id, title, position"
	lessonColumns     = "id, module_id, title, type, content, duration_minutes, position"
	enrollmentColumns = "course_id, user_id, completed_lesson_ids, enrolled_at, completed_at"
)

var courseOrderings = map[string]string{
	"title":    "LOWER(title)",
	"category": "LOWER(category)",
	"level":    "CASE level WHEN 'beginner' THEN 1 WHEN 'intermediate' THEN 2 WHEN 'advanced' THEN 3 ELSE 0 END",
}

type courseRow struct {
	ID           string      `db:"id"`
	Title        string      `db:"title"`
	Description  string      `db:"description"`
	Category     string      `db:"category"`
	Level        string      `db:"level"`
	InstructorID null.String `db:"instructor_id"`
	Status       string      `db:"status"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
}

type moduleRow struct {
	ID       string `db:"id"`
	CourseID string `db:"course_id"`
	Title    string `db:"title"`
	Position int    `db:"position"`
}

type lessonRow struct {
	ID              string `db:"id"`
	ModuleID        string `db:"module_id"`
	Title           string `db:"title"`
	Type            string `db:"type"`
	Content         string `db:"content"`
	DurationMinutes int    `db:"duration_minutes"`
	Position        int    `db:"position"`
}

type enrollmentRow struct {
	CourseID           string         `db:"course_id"`
	UserID             string         `db:"user_id"`
	CompletedLessonIDs pq.StringArray `db:"completed_lesson_ids"`
	EnrolledAt         null.Time      `db:"enrolled_at"`
	CompletedAt        null.Time      `db:"completed_at"`
}

func courseToRow(c course.Course) courseRow {
	return courseRow{
		ID:           c.ID,
		Title:        c.Title,
		Description:  c.Description,
		Category:     c.Category,
		Level:        c.Level,
		InstructorID: nullUUID(c.InstructorID),
		Status:       c.Status,
		CreatedAt:    null.TimeFrom(c.CreatedAt.UTC()),
		UpdatedAt:    null.TimeFrom(c.UpdatedAt.UTC()),
	}
}

func (row courseRow) toCourse() course.Course {
	return course.Course{
		ID:           row.ID,
		Title:        row.Title,
		Description:  row.Description,
		Category:     row.Category,
		Level:        row.Level,
		InstructorID: row.InstructorID.String,
		Status:       row.Status,
		Modules:      []course.Module{},
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
}

func (row enrollmentRow) toEnrollment() course.Enrollment {
	e := course.Enrollment{
		CourseID:           row.CourseID,
		UserID:             row.UserID,
		CompletedLessonIDs: []string(row.CompletedLessonIDs),
		EnrolledAt:         row.EnrolledAt.Time,
		CompletedAt:        row.CompletedAt.Ptr(),
	}
	if e.CompletedLessonIDs == nil {
		e.CompletedLessonIDs = []string{}
	}
	return e
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

// insertTree inserts the course modules & lessons.
func insertTree(ctx context.Context, tx *sqlx.Tx, c course.Course) error {
	for _, m := range c.Modules {
		mrow := moduleRow{ID: m.ID, CourseID: c.ID, Title: m.Title, Position: m.Position}
		q := "INSERT INTO course_modules (" + moduleColumns + ") VALUES (:id, :course_id, :title, :position)"
		if _, err := tx.NamedExecContext(ctx, q, mrow); err != nil {
			return errors.Wrap(err, "inserting course module")
		}
		for _, l := range m.Lessons {
			lrow := lessonRow{
				ID:              l.ID,
				ModuleID:        m.ID,
				Title:           l.Title,
				Type:            l.Type,
				Content:         l.Content,
				DurationMinutes: l.DurationMinutes,
				Position:        l.Position,
			}
			q = "INSERT INTO course_lessons (" + lessonColumns + ") VALUES (:id, :module_id, :title, :type, :content, :duration_minutes, :position)"
			if _, err := tx.NamedExecContext(ctx, q, lrow); err != nil {
				return errors.Wrap(err, "inserting course lesson")
			}
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	row := courseToRow(c)
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO courses (` + courseColumns + `)
			VALUES (:id, :title, :description, :category, :level, :instructor_id, :status, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, q, row); err != nil {
			return errors.Wrap(err, "inserting course")
		}
		return insertTree(ctx, tx, c)
	})
	if err != nil {
		return course.Course{}, err
	}
	return c, nil
}

// loadTrees fills the modules of `courses` in place.
func (repo *courseRepository) loadTrees(ctx context.Context, courses []course.Course) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}

	var mrows []moduleRow
	q := "SELECT " + moduleColumns + " FROM course_modules WHERE course_id::text = ANY(?) ORDER BY position"
	if err := repo.db.SelectContext(ctx, &mrows, repo.db.Rebind(q), pq.StringArray(ids)); err != nil {
		return errors.Wrap(err, "querying course modules")
	}
	if len(mrows) == 0 {
		return nil
	}
	moduleIDs := make([]string, 0, len(mrows))
	for _, m := range mrows {
		moduleIDs = append(moduleIDs, m.ID)
	}

	var lrows []lessonRow
	q = "SELECT " + lessonColumns + " FROM course_lessons WHERE module_id::text = ANY(?) ORDER BY position"
	if err := repo.db.SelectContext(ctx, &lrows, repo.db.Rebind(q), pq.StringArray(moduleIDs)); err != nil {
		return errors.Wrap(err, "querying course lessons")
	}
	lessons := make(map[string][]course.Lesson, len(mrows))
	for _, l := range lrows {
		lessons[l.ModuleID] = append(lessons[l.ModuleID], course.Lesson{
			ID:              l.ID,
			ModuleID:        l.ModuleID,
			Title:           l.Title,
			Type:            l.Type,
			Content:         l.Content,
			DurationMinutes: l.DurationMinutes,
			Position:        l.Position,
		})
	}

	idx := make(map[string]int, len(courses))
	for i, c := range courses {
		idx[c.ID] = i
	}
	for _, m := range mrows {
		i, ok := idx[m.CourseID]
		if !ok {
			continue
		}
		mod := course.Module{ID: m.ID, CourseID: m.CourseID, Title: m.Title, Position: m.Position, Lessons: lessons[m.ID]}
		if mod.Lessons == nil {
			mod.Lessons = []course.Lesson{}
		}
		courses[i].Modules = append(courses[i].Modules, mod)
	}
	return nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			val := likeValue(filter.Search)
			w.add("title ILIKE ? OR description ILIKE ? OR category ILIKE ?", val, val, val)
		}
		w.anyOf(filter.Categories, func(cat string) (string, []interface{}) {
			return "category ILIKE ?", []interface{}{cat}
		})
		if len(filter.Levels) > 0 {
			w.add("level = ANY(?)", pq.StringArray(filter.Levels))
		}
		if len(filter.Statuses) > 0 {
			w.add("status = ANY(?)", pq.StringArray(filter.Statuses))
		}
		if filter.InstructorID != "" {
			w.add("instructor_id::text = ?", filter.InstructorID)
		}
		if filter.IDs != nil {
			w.add("id::text = ANY(?)", pq.StringArray(filter.IDs))
		}
		if filter.VisibleTo != "" {
			w.add("status = ? OR instructor_id::text = ?", course.StatusPublished, filter.VisibleTo)
		}
	}

	q := "SELECT " + courseColumns + " FROM courses" + w.String() + orderBy(ordering, courseOrderings, "created_at DESC")
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	if err := repo.loadTrees(ctx, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	if !validID(id) {
		return course.Course{}, course.ErrNotFound
	}
	var row courseRow
	q := "SELECT " + courseColumns + " FROM courses WHERE id = ?"
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "finding course")
	}
	courses := []course.Course{row.toCourse()}
	if err := repo.loadTrees(ctx, courses); err != nil {
		return course.Course{}, err
	}
	return courses[0], nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	row := courseToRow(c)
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `UPDATE courses SET title = :title, description = :description, category = :category, level = :level,
			instructor_id = :instructor_id, status = :status, updated_at = :updated_at
			WHERE id = :id`
		res, err := tx.NamedExecContext(ctx, q, row)
		if err != nil {
			return errors.Wrap(err, "updating course")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return course.ErrNotFound
		}
		// lessons cascade
		if _, err = exec(ctx, tx, "DELETE FROM course_modules WHERE course_id = ?", c.ID); err != nil {
			return errors.Wrap(err, "deleting course modules")
		}
		return insertTree(ctx, tx, c)
	})
	if err != nil {
		return course.Course{}, err
	}
	return c, nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	if !validID(id) {
		return course.ErrNotFound
	}
	res, err := exec(ctx, repo.db, "DELETE FROM courses WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, courseID, userID string) (course.Enrollment, error) {
	if !validID(courseID) || !validID(userID) {
		return course.Enrollment{}, course.ErrEnrollmentNotFound
	}
	var row enrollmentRow
	q := "SELECT " + enrollmentColumns + " FROM enrollments WHERE course_id = ? AND user_id = ?"
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), courseID, userID); err != nil {
		return course.Enrollment{}, trapNoRowsErr(err, course.ErrEnrollmentNotFound, "finding enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *courseRepository) QueryEnrollments(ctx context.Context, filter course.EnrollmentFilter) ([]course.Enrollment, error) {
	var w where
	if filter.CourseID != "" {
		w.add("course_id::text = ?", filter.CourseID)
	}
	if filter.UserID != "" {
		w.add("user_id::text = ?", filter.UserID)
	}

	var rows []enrollmentRow
	q := "SELECT " + enrollmentColumns + " FROM enrollments" + w.String() + " ORDER BY enrolled_at DESC"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]course.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, row.toEnrollment())
	}
	return enrollments, nil
}

func (repo *courseRepository) SaveEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	completed := e.CompletedLessonIDs
	if completed == nil {
		completed = []string{}
	}
	row := enrollmentRow{
		CourseID:           e.CourseID,
		UserID:             e.UserID,
		CompletedLessonIDs: completed,
		EnrolledAt:         null.TimeFrom(e.EnrolledAt.UTC()),
		CompletedAt:        null.TimeFromPtr(e.CompletedAt),
	}
	q := `INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES (:course_id, :user_id, :completed_lesson_ids, :enrolled_at, :completed_at)
		ON CONFLICT (course_id, user_id) DO UPDATE
		SET completed_lesson_ids = EXCLUDED.completed_lesson_ids, completed_at = EXCLUDED.completed_at`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return course.Enrollment{}, errors.Wrap(err, "saving enrollment")
	}
	return row.toEnrollment(), nil
}
