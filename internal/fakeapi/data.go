package fakeapi

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kingrea/report-evaluator/internal/api"
)

type account struct {
	user         api.User
	passwordHash []byte
}

type storedEvaluation struct {
	api.Evaluation
	createdBy int
}

// seedRubric is one rubric of the built-in catalog.
type seedRubric struct {
	section     string
	maxPoints   float64
	description string
}

// seedCatalog lists the built-in report types in server order, which is
// deliberately not the client's display order.
var seedCatalog = []struct {
	name        string
	description string
	rubrics     []seedRubric
}{
	{"Seminar Report", "Written report accompanying a seminar talk.", []seedRubric{
		{"Introduction", 20, "Motivation and scope of the topic."},
		{"Overview of the Topic", 30, "Coverage and correctness of the presented material."},
		{"Discussion", 30, "Critical assessment of the sources."},
		{"Conclusion", 20, "Summary and outlook."},
	}},
	{"Research-Driven Thesis", "Thesis answering a research question with empirical work.", []seedRubric{
		{"Introduction", 10, "Problem statement and motivation."},
		{"Objectives", 10, "Research questions and goals."},
		{"Literature Review", 20, "Related work and positioning."},
		{"Methodology", 20, "Study design and rigor."},
		{"Results and Discussion", 30, "Findings and their interpretation."},
		{"Conclusion", 10, "Answers to the research questions."},
	}},
	{"Design-Driven Thesis", "Thesis centred on designing and building a system.", []seedRubric{
		{"Introduction", 10, "Context and motivation."},
		{"Requirements", 20, "Functional and non-functional requirements."},
		{"Design and Architecture", 35, "Architecture, alternatives and trade-offs."},
		{"Implementation", 25, "Quality of the realised system."},
		{"Conclusion", 10, "Reflection and future work."},
	}},
	{"Machine Learning or NLP-Based Theses", "Thesis built around a learned model or NLP pipeline.", []seedRubric{
		{"Introduction", 10, "Task definition and motivation."},
		{"Related Work", 15, "State of the art."},
		{"Dataset and Methodology", 25, "Data, preprocessing and model choice."},
		{"Experiments and Results", 30, "Experimental setup, baselines and metrics."},
		{"Discussion and Conclusion", 20, "Error analysis and limitations."},
	}},
	{"Design-Driven and Small Evaluation Thesis", "Design work validated with a small user or performance study.", []seedRubric{
		{"Introduction", 10, "Context and motivation."},
		{"Requirements", 20, "Derived requirements."},
		{"Design", 30, "Design decisions."},
		{"Evaluation", 25, "Study design and results."},
		{"Conclusion", 15, "Summary and limitations."},
	}},
}

// Data is the in-memory state of the development backend.
type Data struct {
	mu    sync.RWMutex
	clock func() time.Time

	accounts    []account
	students    []api.Student
	reportTypes []api.ReportType
	rubrics     []api.Rubric
	evaluations []storedEvaluation

	nextStudent    int
	nextEvaluation int
}

// NewData returns a store seeded with the built-in report types and rubrics.
func NewData(clock func() time.Time) *Data {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	d := &Data{clock: clock, nextStudent: 1, nextEvaluation: 1}
	now := clock()
	rubricID := 1
	for i, rt := range seedCatalog {
		typeID := i + 1
		d.reportTypes = append(d.reportTypes, api.ReportType{ID: typeID, Name: rt.name, Description: rt.description, CreatedAt: api.Timestamp{Time: now}})
		for order, r := range rt.rubrics {
			d.rubrics = append(d.rubrics, api.Rubric{
				ID:           rubricID,
				ReportTypeID: typeID,
				SectionName:  r.section,
				MaxPoints:    r.maxPoints,
				Description:  r.description,
				Order:        order + 1,
			})
			rubricID++
		}
	}
	return d
}

func (d *Data) addAccount(user api.User, hash []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user.ID = len(d.accounts) + 1
	if user.CreatedAt.IsZero() {
		user.CreatedAt = api.Timestamp{Time: d.clock()}
	}
	d.accounts = append(d.accounts, account{user: user, passwordHash: hash})
}

// findAccount matches by username first, then by email.
func (d *Data) findAccount(login string) (account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range d.accounts {
		if a.user.Username == login {
			return a, true
		}
	}
	for _, a := range d.accounts {
		if a.user.Email != "" && strings.EqualFold(a.user.Email, login) {
			return a, true
		}
	}
	return account{}, false
}

// ReportTypes returns the catalog in server order.
func (d *Data) ReportTypes() []api.ReportType {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]api.ReportType(nil), d.reportTypes...)
}

func (d *Data) reportType(id int) (api.ReportType, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, rt := range d.reportTypes {
		if rt.ID == id {
			return rt, nil
		}
	}
	return api.ReportType{}, echo.NewHTTPError(http.StatusNotFound, "Report type not found")
}

// Rubrics returns the rubrics of a report type ordered by their order field.
func (d *Data) Rubrics(reportTypeID int) ([]api.Rubric, error) {
	if _, err := d.reportType(reportTypeID); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []api.Rubric
	for _, r := range d.rubrics {
		if r.ReportTypeID == reportTypeID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// CreateStudent returns the existing student with the same matriculation
// number, or creates one.
func (d *Data) CreateStudent(in api.NewStudent) api.Student {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.students {
		if s.MatriculationNumber == in.MatriculationNumber {
			return s
		}
	}
	s := api.Student{
		ID:                  d.nextStudent,
		FirstName:           in.FirstName,
		LastName:            in.LastName,
		MatriculationNumber: in.MatriculationNumber,
		CreatedAt:           api.Timestamp{Time: d.clock()},
	}
	d.nextStudent++
	d.students = append(d.students, s)
	return s
}

// Students returns students in creation order.
func (d *Data) Students() []api.Student {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]api.Student(nil), d.students...)
}

func (d *Data) student(id int) (api.Student, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.students {
		if s.ID == id {
			return s, nil
		}
	}
	return api.Student{}, echo.NewHTTPError(http.StatusNotFound, "Student not found")
}

// scoredInput is one rubric score ready to be stored.
type scoredInput struct {
	rubricID int
	score    float64
	feedback *string
}

type evaluationInput struct {
	studentID       int
	reportTypeID    int
	reportTitle     string
	oberseminarDate *string
	oberseminarTime *string
	method          string
	scores          []scoredInput
	createdBy       int
}

// CreateEvaluation stores an evaluation. The maximum is the sum of the max
// points of the scored rubrics.
func (d *Data) CreateEvaluation(in evaluationInput) (api.Evaluation, error) {
	student, err := d.student(in.studentID)
	if err != nil {
		return api.Evaluation{}, err
	}
	reportType, err := d.reportType(in.reportTypeID)
	if err != nil {
		return api.Evaluation{}, err
	}
	rubrics, err := d.Rubrics(in.reportTypeID)
	if err != nil {
		return api.Evaluation{}, err
	}
	byID := make(map[int]api.Rubric, len(rubrics))
	for _, r := range rubrics {
		byID[r.ID] = r
	}

	eval := api.Evaluation{
		Student:          student,
		ReportType:       reportType,
		ReportTitle:      in.reportTitle,
		OberseminarDate:  in.oberseminarDate,
		OberseminarTime:  in.oberseminarTime,
		EvaluationMethod: in.method,
	}
	for _, s := range in.scores {
		rubric, ok := byID[s.rubricID]
		if !ok {
			return api.Evaluation{}, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Rubric %d does not belong to report type %d", s.rubricID, in.reportTypeID))
		}
		score := s.score
		eval.TotalScore += score
		eval.MaxPossibleScore += rubric.MaxPoints
		eval.Rubrics = append(eval.Rubrics, api.ScoredRubric{Rubric: rubric, Score: &score, Feedback: s.feedback})
	}
	if eval.Rubrics == nil {
		eval.Rubrics = []api.ScoredRubric{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	eval.ID = d.nextEvaluation
	eval.CreatedAt = api.Timestamp{Time: d.clock()}
	d.nextEvaluation++
	d.evaluations = append(d.evaluations, storedEvaluation{Evaluation: eval, createdBy: in.createdBy})
	return eval, nil
}

// Evaluation returns one evaluation by id.
func (d *Data) Evaluation(id int) (api.Evaluation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range d.evaluations {
		if e.ID == id {
			return e.Evaluation, nil
		}
	}
	return api.Evaluation{}, echo.NewHTTPError(http.StatusNotFound, "Evaluation not found")
}

// evaluationsWhere returns matching evaluations, newest first.
func (d *Data) evaluationsWhere(match func(storedEvaluation) bool) []api.Evaluation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []api.Evaluation{}
	for i := len(d.evaluations) - 1; i >= 0; i-- {
		if match(d.evaluations[i]) {
			out = append(out, d.evaluations[i].Evaluation)
		}
	}
	return out
}

// StudentEvaluations lists a student's evaluations, newest first.
func (d *Data) StudentEvaluations(studentID int) ([]api.Evaluation, error) {
	if _, err := d.student(studentID); err != nil {
		return nil, err
	}
	return d.evaluationsWhere(func(e storedEvaluation) bool { return e.Student.ID == studentID }), nil
}

// EvaluationsBy lists evaluations created by a user, newest first.
func (d *Data) EvaluationsBy(userID int) []api.Evaluation {
	return d.evaluationsWhere(func(e storedEvaluation) bool { return e.createdBy == userID })
}

// Statistics aggregates evaluations per report type.
func (d *Data) Statistics() []api.ReportTypeStatistics {
	types := d.ReportTypes()
	out := make([]api.ReportTypeStatistics, 0, len(types))
	for _, rt := range types {
		evals := d.evaluationsWhere(func(e storedEvaluation) bool { return e.ReportType.ID == rt.ID })
		out = append(out, statisticsFor(rt, evals))
	}
	return out
}

func statisticsFor(rt api.ReportType, evals []api.Evaluation) api.ReportTypeStatistics {
	stats := api.ReportTypeStatistics{ReportTypeID: rt.ID, ReportTypeName: rt.Name}
	if len(evals) == 0 {
		return stats
	}
	var sumScore, sumMax float64
	minScore, maxScore := math.Inf(1), math.Inf(-1)
	for _, e := range evals {
		sumScore += e.TotalScore
		sumMax += e.MaxPossibleScore
		minScore = math.Min(minScore, e.TotalScore)
		maxScore = math.Max(maxScore, e.TotalScore)
	}
	n := float64(len(evals))
	avgScore, avgMax := sumScore/n, sumMax/n
	stats.TotalEvaluations = len(evals)
	stats.AverageScore = round2(avgScore)
	stats.MaxPossibleScore = round2(avgMax)
	if avgMax > 0 {
		stats.AveragePercentage = round2(avgScore / avgMax * 100)
	}
	stats.MinScore = round2(minScore)
	stats.MaxScore = round2(maxScore)
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
