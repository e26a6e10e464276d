package course

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/user"
)

// Levels
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Lesson types
const (
	LessonVideo    = "video"
	LessonReading  = "reading"
	LessonQuiz     = "quiz"
	LessonExercise = "exercise"
)

var (
	Levels      = []string{LevelBeginner, LevelIntermediate, LevelAdvanced}
	Statuses    = []string{StatusDraft, StatusPublished, StatusArchived}
	LessonTypes = []string{LessonVideo, LessonReading, LessonQuiz, LessonExercise}

	levelRanks = map[string]int{LevelBeginner: 1, LevelIntermediate: 2, LevelAdvanced: 3}
)

type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Level        string    `json:"level"`
	InstructorID string    `json:"instructor_id"`
	Status       string    `json:"status"`
	Modules      []Module  `json:"modules"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

type Module struct {
	ID       string   `json:"id"`
	CourseID string   `json:"course_id"`
	Title    string   `json:"title"`
	Position int      `json:"position"`
	Lessons  []Lesson `json:"lessons"`
}

type Lesson struct {
	ID              string `json:"id"`
	ModuleID        string `json:"module_id"`
	Title           string `json:"title"`
	Type            string `json:"type"`
	Content         string `json:"content"`
	DurationMinutes int    `json:"duration_minutes"`
	Position        int    `json:"position"`
}

func (c Course) IsPublished() bool { return c.Status == StatusPublished }

// VisibleTo: published courses are public, the others are restricted to their instructor, admins & managers.
func (c Course) VisibleTo(usr user.User) bool {
	return c.IsPublished() || c.InstructorID == usr.ID || usr.SeesEverything()
}

func (c Course) EditableBy(usr user.User) bool {
	return c.InstructorID == usr.ID || usr.SeesEverything()
}

func (c Course) DeletableBy(usr user.User) bool {
	return c.InstructorID == usr.ID || usr.IsAdmin()
}

// CanCreateCourse: admins, managers & trainers.
func CanCreateCourse(usr user.User) bool {
	return usr.SeesEverything() || usr.IsTrainer()
}

func (c Course) DurationMinutes() int {
	var total int
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			total += l.DurationMinutes
		}
	}
	return total
}

func (c Course) LessonCount() int {
	var cnt int
	for _, m := range c.Modules {
		cnt += len(m.Lessons)
	}
	return cnt
}

// LessonIDs returns the IDs of every lesson of the course, in order.
func (c Course) LessonIDs() []string {
	ids := make([]string, 0, c.LessonCount())
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

func (c Course) HasLesson(id string) bool {
	return core.StringInSlice(id, c.LessonIDs())
}

// CourseJSON adds the derived values to the Course representation.
type CourseJSON struct {
	Course
	DurationMinutes int `json:"duration_minutes"`
	LessonCount     int `json:"lesson_count"`
}

func (c Course) JSON() CourseJSON {
	if c.Modules == nil {
		c.Modules = []Module{}
	}
	return CourseJSON{Course: c, DurationMinutes: c.DurationMinutes(), LessonCount: c.LessonCount()}
}

func CoursesJSON(courses []Course) []CourseJSON {
	out := make([]CourseJSON, 0, len(courses))
	for _, c := range courses {
		out = append(out, c.JSON())
	}
	return out
}

type Enrollment struct {
	CourseID           string     `json:"course_id"`
	UserID             string     `json:"user_id"`
	CompletedLessonIDs []string   `json:"completed_lesson_ids"`
	EnrolledAt         time.Time  `json:"enrolled_at"`  // UTC
	CompletedAt        *time.Time `json:"completed_at"` // UTC
}

// Progress is a user's progression through a course.
type Progress struct {
	CourseID         string     `json:"course_id"`
	CourseTitle      string     `json:"course_title"`
	UserID           string     `json:"user_id"`
	CompletedLessons int        `json:"completed_lessons"`
	TotalLessons     int        `json:"total_lessons"`
	Percent          int        `json:"progress"`
	EnrolledAt       time.Time  `json:"enrolled_at"`
	CompletedAt      *time.Time `json:"completed_at"`
}

// ComputeProgress only counts completed lessons that still belong to the course.
func ComputeProgress(c Course, e Enrollment) Progress {
	prog := Progress{
		CourseID:     c.ID,
		CourseTitle:  c.Title,
		UserID:       e.UserID,
		TotalLessons: c.LessonCount(),
		EnrolledAt:   e.EnrolledAt,
		CompletedAt:  e.CompletedAt,
	}
	lessons := c.LessonIDs()
	for _, id := range e.CompletedLessonIDs {
		if core.StringInSlice(id, lessons) {
			prog.CompletedLessons++
		}
	}
	if prog.TotalLessons > 0 {
		prog.Percent = prog.CompletedLessons * 100 / prog.TotalLessons
	}
	return prog
}

// LessonInput describes a lesson of a module tree; an ID of an existing lesson of the course keeps it.
type LessonInput struct {
	ID              string `json:"id"`
	Title           string `json:"title" validate:"required,notblank,max=255"`
	Type            string `json:"type" validate:"omitempty,oneof=video reading quiz exercise"`
	Content         string `json:"content"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0,lte=1440"`
}

type ModuleInput struct {
	ID      string        `json:"id"`
	Title   string        `json:"title" validate:"required,notblank,max=255"`
	Lessons []LessonInput `json:"lessons" validate:"omitempty,dive"`
}

func cleanModules(modules []ModuleInput) {
	for i := range modules {
		modules[i].ID = core.CleanString(modules[i].ID)
		modules[i].Title = core.CleanString(modules[i].Title)
		for j := range modules[i].Lessons {
			l := &modules[i].Lessons[j]
			l.ID = core.CleanString(l.ID)
			l.Title = core.CleanString(l.Title)
			l.Type = core.CleanString(l.Type, true /* lower */)
			l.Content = strings.TrimSpace(l.Content)
		}
	}
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string        `json:"title" validate:"required,notblank,max=255"`
	Description string        `json:"description"`
	Category    string        `json:"category" validate:"max=100"`
	Level       string        `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Status      string        `json:"status" validate:"omitempty,oneof=draft published archived"`
	Modules     []ModuleInput `json:"modules" validate:"omitempty,dive"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Category = core.CleanString(nc.Category)
	nc.Level = core.CleanString(nc.Level, true /* lower */)
	nc.Status = core.CleanString(nc.Status, true /* lower */)
	cleanModules(nc.Modules)
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
// A non-nil Modules replaces the whole module tree.
type UpdateCourse struct {
	Title       string        `json:"title" validate:"max=255"`
	Description *string       `json:"description"`
	Category    *string       `json:"category" validate:"omitempty,max=100"`
	Level       string        `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Status      string        `json:"status" validate:"omitempty,oneof=draft published archived"`
	Modules     []ModuleInput `json:"modules" validate:"omitempty,dive"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanString(uc.Title)
	uc.Level = core.CleanString(uc.Level, true /* lower */)
	uc.Status = core.CleanString(uc.Status, true /* lower */)
	if uc.Description != nil {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}
	if uc.Category != nil {
		cat := core.CleanString(*uc.Category)
		uc.Category = &cat
	}
	cleanModules(uc.Modules)
	return validate.Struct(uc)
}

func (uc UpdateCourse) apply(c Course) Course {
	if uc.Title != "" {
		c.Title = uc.Title
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.Category != nil {
		c.Category = *uc.Category
	}
	if uc.Level != "" {
		c.Level = uc.Level
	}
	if uc.Status != "" {
		c.Status = uc.Status
	}
	return c
}

// QueryFilter filters courses. Multiple values of a field are OR'ed, fields are AND'ed.
type QueryFilter struct {
	Search       string   `query:"search"`
	Categories   []string `query:"category"`
	Levels       []string `query:"level"`
	Statuses     []string `query:"status"`
	InstructorID string   `query:"instructor"`
	IDs          []string `query:"-"`
	VisibleTo    string   `query:"-"` // published courses or the ones taught by this user ID
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Categories = core.CleanStrings(qf.Categories)
	qf.Levels = core.CleanStrings(qf.Levels, true /* lower */)
	qf.Statuses = core.CleanStrings(qf.Statuses, true /* lower */)
	qf.InstructorID = core.CleanString(qf.InstructorID)
}

func (qf *QueryFilter) Matches(c Course) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(c.Title), s) ||
			strings.Contains(strings.ToLower(c.Description), s) ||
			strings.Contains(strings.ToLower(c.Category), s)) {
			return false
		}
	}
	if len(qf.Categories) > 0 && !containsFold(qf.Categories, c.Category) {
		return false
	}
	if len(qf.Levels) > 0 && !core.StringInSlice(c.Level, qf.Levels) {
		return false
	}
	if len(qf.Statuses) > 0 && !core.StringInSlice(c.Status, qf.Statuses) {
		return false
	}
	if qf.InstructorID != "" && c.InstructorID != qf.InstructorID {
		return false
	}
	if qf.IDs != nil && !core.StringInSlice(c.ID, qf.IDs) {
		return false
	}
	if qf.VisibleTo != "" && !c.IsPublished() && c.InstructorID != qf.VisibleTo {
		return false
	}
	return true
}

func containsFold(ss []string, s string) bool {
	for _, v := range ss {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// EnrollmentFilter selects enrollments; empty fields are ignored.
type EnrollmentFilter struct {
	CourseID string
	UserID   string
}

func (ef EnrollmentFilter) Matches(e Enrollment) bool {
	return (ef.CourseID == "" || e.CourseID == ef.CourseID) && (ef.UserID == "" || e.UserID == ef.UserID)
}

// OrderingFields are the fields courses can be ordered by.
var OrderingFields = []string{"title", "category", "level", "status", "created_at", "updated_at"}

// SortCourses sorts in place; the default order is `-created_at`.
func SortCourses(courses []Course, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(courses, func(i, j int) bool {
		a, b := courses[i], courses[j]
		for _, ord := range ordering {
			var c int
			switch ord.Field {
			case "title":
				c = strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
			case "category":
				c = strings.Compare(strings.ToLower(a.Category), strings.ToLower(b.Category))
			case "level":
				c = core.CompareInts(levelRanks[a.Level], levelRanks[b.Level])
			case "status":
				c = strings.Compare(a.Status, b.Status)
			case "created_at":
				c = core.CompareTimes(a.CreatedAt, b.CreatedAt)
			case "updated_at":
				c = core.CompareTimes(a.UpdatedAt, b.UpdatedAt)
			}
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func LevelRank(level string) int { return levelRanks[level] }
