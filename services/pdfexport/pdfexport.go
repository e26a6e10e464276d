// Package pdfexport renders project and time log reports as PDF documents.
package pdfexport

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/Cherif0104/EcosystIA-sub000/core"
	"github.com/Cherif0104/EcosystIA-sub000/core/project"
	"github.com/Cherif0104/EcosystIA-sub000/core/timelog"
)

const (
	fontFamily = "Helvetica"
	lineHeight = 6.0
	pageWidth  = 190.0 // A4 minus 10mm margins
)

// NowFunc stamps the reports.
var NowFunc = time.Now

type column struct {
	title string
	width float64
	align string
}

type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDocument(title string) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("EcosystIA", true)
	pdf.SetCreationDate(NowFunc())
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 15)
	doc := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AliasNbPages("")
	pdf.AddPage()
	return doc
}

func (d *document) header(title, subtitle string) {
	d.pdf.SetFont(fontFamily, "B", 16)
	d.pdf.SetTextColor(20, 20, 20)
	d.pdf.CellFormat(0, 10, d.tr(title), "", 1, "L", false, 0, "")
	d.pdf.SetFont(fontFamily, "", 9)
	d.pdf.SetTextColor(110, 110, 110)
	d.pdf.CellFormat(0, 5, d.tr(subtitle), "", 1, "L", false, 0, "")
	d.pdf.Ln(4)
	d.pdf.SetTextColor(20, 20, 20)
}

func (d *document) section(title string) {
	d.pdf.Ln(3)
	d.pdf.SetFont(fontFamily, "B", 12)
	d.pdf.CellFormat(0, 8, d.tr(title), "B", 1, "L", false, 0, "")
	d.pdf.Ln(1)
}

func (d *document) field(label, value string) {
	d.pdf.SetFont(fontFamily, "B", 10)
	d.pdf.CellFormat(40, lineHeight, d.tr(label), "", 0, "L", false, 0, "")
	d.pdf.SetFont(fontFamily, "", 10)
	d.pdf.MultiCell(0, lineHeight, d.tr(value), "", "L", false)
}

func (d *document) text(s string) {
	d.pdf.SetFont(fontFamily, "I", 10)
	d.pdf.MultiCell(0, lineHeight, d.tr(s), "", "L", false)
}

// table writes a header row then `rows`; long cells are truncated to fit their column.
func (d *document) table(cols []column, rows [][]string) {
	d.pdf.SetFont(fontFamily, "B", 9)
	d.pdf.SetFillColor(230, 236, 245)
	for _, c := range cols {
		d.pdf.CellFormat(c.width, 7, d.tr(c.title), "1", 0, c.align, true, 0, "")
	}
	d.pdf.Ln(-1)

	d.pdf.SetFont(fontFamily, "", 9)
	d.pdf.SetFillColor(247, 247, 247)
	for i, row := range rows {
		for j, c := range cols {
			d.pdf.CellFormat(c.width, lineHeight, d.fit(row[j], c.width), "1", 0, c.align, i%2 == 1, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

func (d *document) fit(s string, width float64) string {
	s = d.tr(s)
	limit := width - 2
	if d.pdf.GetStringWidth(s) <= limit {
		return s
	}
	for len(s) > 0 && d.pdf.GetStringWidth(s+"...") > limit {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func (d *document) output(w io.Writer) error {
	if err := d.pdf.Error(); err != nil {
		return errors.Wrap(err, "building pdf")
	}
	return errors.Wrap(d.pdf.Output(w), "writing pdf")
}

// ProjectReport writes the project metadata, progress, tasks & risks (highest score first).
// userNames maps user IDs to display names.
func ProjectReport(w io.Writer, detail project.Detail, userNames map[string]string) error {
	doc := newDocument(detail.Name)
	doc.header(detail.Name, "Project report - generated on "+NowFunc().Format("02 Jan 2006 15:04"))

	doc.section("Overview")
	if detail.Description != "" {
		doc.field("Description", detail.Description)
	}
	doc.field("Status", humanize(detail.Status))
	doc.field("Priority", humanize(detail.Priority))
	doc.field("Owner", nameOf(detail.OwnerID, userNames))
	doc.field("Start date", formatDate(detail.StartDate))
	doc.field("Due date", formatDate(detail.DueDate))
	members := make([]string, 0, len(detail.TeamMemberIDs))
	for _, id := range detail.TeamMemberIDs {
		members = append(members, nameOf(id, userNames))
	}
	doc.field("Team", defaultStr(strings.Join(members, ", "), "-"))
	doc.field("Progress", fmt.Sprintf("%d%% (%d tasks, %d overdue)", detail.Progress, len(detail.Tasks), detail.OverdueTasks))

	doc.section(fmt.Sprintf("Tasks (%d)", len(detail.Tasks)))
	if len(detail.Tasks) == 0 {
		doc.text("No tasks.")
	} else {
		rows := make([][]string, 0, len(detail.Tasks))
		for _, t := range detail.Tasks {
			rows = append(rows, []string{
				t.Title,
				humanize(t.Status),
				humanize(t.Priority),
				nameOf(t.AssigneeID, userNames),
				formatDate(t.DueDate),
				fmt.Sprintf("%.1f", t.EstimatedHours),
			})
		}
		doc.table([]column{
			{"Title", 62, "L"}, {"Status", 24, "L"}, {"Priority", 20, "L"},
			{"Assignee", 38, "L"}, {"Due date", 26, "C"}, {"Est. h", 20, "R"},
		}, rows)
	}

	risks := append([]project.RiskJSON(nil), detail.Risks...)
	sortRisks(risks)
	doc.section(fmt.Sprintf("Risks (%d)", len(risks)))
	if len(risks) == 0 {
		doc.text("No risks.")
	} else {
		rows := make([][]string, 0, len(risks))
		for _, r := range risks {
			rows = append(rows, []string{
				r.Title,
				humanize(r.Likelihood),
				humanize(r.Impact),
				fmt.Sprintf("%d", r.Score),
				humanize(r.Status),
				defaultStr(r.MitigationPlan, "-"),
			})
		}
		doc.table([]column{
			{"Title", 50, "L"}, {"Likelihood", 22, "L"}, {"Impact", 20, "L"},
			{"Score", 14, "C"}, {"Status", 22, "L"}, {"Mitigation", 62, "L"},
		}, rows)
	}
	return doc.output(w)
}

// TimeLogReport writes the logs table followed by the summary totals.
func TimeLogReport(w io.Writer, title string, logs []timelog.TimeLog, summary timelog.Summary, userNames map[string]string) error {
	doc := newDocument(title)
	doc.header(title, "Time log report - generated on "+NowFunc().Format("02 Jan 2006 15:04"))

	doc.section(fmt.Sprintf("Entries (%d)", len(logs)))
	if len(logs) == 0 {
		doc.text("No time logged.")
	} else {
		rows := make([][]string, 0, len(logs))
		for _, tl := range logs {
			rows = append(rows, []string{
				tl.Date.String(),
				nameOf(tl.UserID, userNames),
				humanize(tl.EntityType),
				tl.EntityTitle,
				FormatMinutes(tl.DurationMinutes),
				tl.Description,
			})
		}
		doc.table([]column{
			{"Date", 22, "C"}, {"User", 34, "L"}, {"Type", 18, "L"},
			{"On", 44, "L"}, {"Duration", 20, "R"}, {"Description", 52, "L"},
		}, rows)
	}

	doc.section("Totals by " + defaultStr(summary.GroupBy, timelog.GroupByDay))
	if len(summary.Rows) > 0 {
		rows := make([][]string, 0, len(summary.Rows))
		for _, r := range summary.Rows {
			rows = append(rows, []string{r.Label, fmt.Sprintf("%d", r.Count), FormatMinutes(r.TotalMinutes)})
		}
		doc.table([]column{{"", 120, "L"}, {"Entries", 30, "R"}, {"Time", 40, "R"}}, rows)
	}
	doc.pdf.Ln(2)
	doc.field("Total", fmt.Sprintf("%s over %d entries", FormatMinutes(summary.TotalMinutes), summary.Count))
	return doc.output(w)
}

// FormatMinutes formats a duration in minutes as "1h05".
func FormatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dmin", minutes)
	}
	return fmt.Sprintf("%dh%02d", minutes/60, minutes%60)
}

func sortRisks(risks []project.RiskJSON) {
	sort.SliceStable(risks, func(i, j int) bool { return risks[i].Score > risks[j].Score })
}

func humanize(s string) string {
	if s == "" {
		return "-"
	}
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

func nameOf(id string, names map[string]string) string {
	if id == "" {
		return "-"
	}
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}

func formatDate(d *core.Date) string {
	if d == nil || d.IsZero() {
		return "-"
	}
	return d.Format("02 Jan 2006")
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
