package pdfexport

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/project"
	"github.com/Cherif0104/EcosystIA-sub000/core/timelog"
)

func init() {
	NowFunc = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
}

func TestProjectReport(t *testing.T) {
	detail := project.Detail{
		Project: project.Project{
			ID:            "p1",
			Name:          "Programme d'incubation été",
			Description:   "Accompagnement des startups de la cohorte 2024.",
			Status:        project.StatusInProgress,
			Priority:      project.PriorityHigh,
			StartDate:     core.DatePtr(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)),
			DueDate:       core.DatePtr(time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)),
			OwnerID:       "u1",
			TeamMemberIDs: []string{"u2", "u3"},
		},
		Tasks: []project.Task{
			{ID: "t1", Title: "Sélection des dossiers", Status: project.TaskDone, Priority: project.PriorityHigh, AssigneeID: "u2", EstimatedHours: 12},
			{ID: "t2", Title: strings.Repeat("A very long task title ", 10), Status: project.TaskTodo, Priority: project.PriorityLow},
		},
		Risks: project.RisksJSON([]project.Risk{
			{ID: "r1", Title: "Budget", Likelihood: project.LevelLow, Impact: project.LevelHigh, Status: project.RiskOpen},
			{ID: "r2", Title: "Mentors", Likelihood: project.LevelHigh, Impact: project.LevelHigh, Status: project.RiskOpen, MitigationPlan: "Recruit early"},
		}),
		Progress:     50,
		OverdueTasks: 0,
	}
	names := map[string]string{"u1": "Awa Diop", "u2": "Moussa Ndiaye"}

	var buf bytes.Buffer
	require.NoError(t, ProjectReport(&buf, detail, names))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	t.Run("empty project", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, ProjectReport(&buf, project.Detail{Project: project.Project{Name: "Empty"}}, nil))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	})
}

func TestTimeLogReport(t *testing.T) {
	logs := []timelog.TimeLog{
		{ID: "l1", UserID: "u1", EntityType: timelog.EntityProject, EntityID: "p1", EntityTitle: "Website", Date: core.NewDate(time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC)), DurationMinutes: 90, Description: "Design review"},
		{ID: "l2", UserID: "u2", EntityType: timelog.EntityCourse, EntityID: "c1", EntityTitle: "Go 101", Date: core.NewDate(time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)), DurationMinutes: 45},
	}
	summary := timelog.Summarize(logs, timelog.GroupByUser, nil)

	var buf bytes.Buffer
	require.NoError(t, TimeLogReport(&buf, "My time", logs, summary, map[string]string{"u1": "Awa Diop"}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	t.Run("no logs", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, TimeLogReport(&buf, "Nothing", nil, timelog.Summary{}, nil))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	})
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "0min"},
		{45, "45min"},
		{60, "1h00"},
		{65, "1h05"},
		{605, "10h05"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatMinutes(tc.minutes))
	}
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "In progress", humanize("in_progress"))
	assert.Equal(t, "Done", humanize("done"))
	assert.Equal(t, "-", humanize(""))
}

func TestSortRisks(t *testing.T) {
	risks := project.RisksJSON([]project.Risk{
		{ID: "a", Likelihood: project.LevelLow, Impact: project.LevelLow},
		{ID: "b", Likelihood: project.LevelMedium, Impact: project.LevelHigh},
		{ID: "c", Likelihood: project.LevelLow, Impact: project.LevelLow},
		{ID: "d", Likelihood: project.LevelHigh, Impact: project.LevelHigh},
	})
	sortRisks(risks)

	var ids []string
	for _, r := range risks {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"d", "b", "a", "c"}, ids)
}
