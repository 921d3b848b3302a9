package fakeapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kingrea/report-evaluator/internal/api"
)

type studentRequest struct {
	FirstName           string `json:"first_name" label:"first_name" validate:"required"`
	LastName            string `json:"last_name" label:"last_name" validate:"required"`
	MatriculationNumber string `json:"matriculation_number" label:"Matriculation number" validate:"required,len=7,digits"`
}

type scoreRequest struct {
	RubricID int     `json:"rubric_id" label:"rubric_id" validate:"required,gt=0"`
	Score    float64 `json:"score" label:"score" validate:"gte=0"`
	Feedback *string `json:"feedback"`
}

type evaluationRequest struct {
	StudentID        int            `json:"student_id" label:"student_id" validate:"required,gt=0"`
	ReportTypeID     int            `json:"report_type_id" label:"report_type_id" validate:"required,gt=0"`
	ReportTitle      string         `json:"report_title" label:"report_title" validate:"required"`
	OberseminarDate  *string        `json:"oberseminar_date"`
	OberseminarTime  *string        `json:"oberseminar_time"`
	EvaluationMethod string         `json:"evaluation_method"`
	Scores           []scoreRequest `json:"scores" validate:"dive"`
}

type automatedRequest struct {
	StudentID     int    `json:"student_id" label:"student_id" validate:"required,gt=0"`
	ReportTypeID  int    `json:"report_type_id" label:"report_type_id" validate:"required,gt=0"`
	ReportTitle   string `json:"report_title" label:"report_title" validate:"required"`
	ReportContent string `json:"report_content" label:"report_content" validate:"required"`
}

func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return err
	}
	return c.Validate(dst)
}

func pathID(c echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusUnprocessableEntity, name+" must be a positive integer")
	}
	return id, nil
}

func (s *Server) handleReportTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, s.data.ReportTypes())
}

func (s *Server) handleReportType(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	rt, err := s.data.reportType(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rt)
}

func (s *Server) handleRubrics(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	rubrics, err := s.data.Rubrics(id)
	if err != nil {
		return err
	}
	if rubrics == nil {
		rubrics = []api.Rubric{}
	}
	return c.JSON(http.StatusOK, rubrics)
}

func (s *Server) handleReportTypeStatistics(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	for _, stats := range s.data.Statistics() {
		if stats.ReportTypeID == id {
			return c.JSON(http.StatusOK, stats)
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "Report type not found")
}

func (s *Server) handleStatistics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.data.Statistics())
}

func (s *Server) handleCreateStudent(c echo.Context) error {
	req := new(studentRequest)
	if err := bindValid(c, req); err != nil {
		return err
	}
	student := s.data.CreateStudent(api.NewStudent{
		FirstName:           strings.TrimSpace(req.FirstName),
		LastName:            strings.TrimSpace(req.LastName),
		MatriculationNumber: req.MatriculationNumber,
	})
	return c.JSON(http.StatusOK, student)
}

func (s *Server) handleStudents(c echo.Context) error {
	students := s.data.Students()
	if students == nil {
		students = []api.Student{}
	}
	return c.JSON(http.StatusOK, students)
}

func (s *Server) handleStudent(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	student, err := s.data.student(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, student)
}

func (s *Server) handleStudentEvaluations(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	evals, err := s.data.StudentEvaluations(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, evals)
}

func (s *Server) handleCreateEvaluation(c echo.Context) error {
	req := new(evaluationRequest)
	if err := bindValid(c, req); err != nil {
		return err
	}
	method := strings.TrimSpace(req.EvaluationMethod)
	if method == "" {
		method = api.MethodManual
	}
	scores := make([]scoredInput, 0, len(req.Scores))
	for _, sc := range req.Scores {
		scores = append(scores, scoredInput{rubricID: sc.RubricID, score: sc.Score, feedback: sc.Feedback})
	}
	eval, err := s.data.CreateEvaluation(evaluationInput{
		studentID:       req.StudentID,
		reportTypeID:    req.ReportTypeID,
		reportTitle:     strings.TrimSpace(req.ReportTitle),
		oberseminarDate: req.OberseminarDate,
		oberseminarTime: req.OberseminarTime,
		method:          method,
		scores:          scores,
		createdBy:       contextUser(c).ID,
	})
	if err != nil {
		return err
	}
	s.logger.Printf("fakeapi: evaluation %d (%s) %.1f/%.1f", eval.ID, method, eval.TotalScore, eval.MaxPossibleScore)
	return c.JSON(http.StatusOK, eval)
}

func (s *Server) automatedHandler(method string) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := new(automatedRequest)
		if err := bindValid(c, req); err != nil {
			return err
		}
		rubrics, err := s.data.Rubrics(req.ReportTypeID)
		if err != nil {
			return err
		}
		scores, err := scoreAutomated(method, rubrics, req.ReportContent)
		if err != nil {
			return err
		}
		eval, err := s.data.CreateEvaluation(evaluationInput{
			studentID:    req.StudentID,
			reportTypeID: req.ReportTypeID,
			reportTitle:  strings.TrimSpace(req.ReportTitle),
			method:       method,
			scores:       scores,
			createdBy:    contextUser(c).ID,
		})
		if err != nil {
			return err
		}
		s.logger.Printf("fakeapi: evaluation %d (%s) %.1f/%.1f", eval.ID, method, eval.TotalScore, eval.MaxPossibleScore)
		return c.JSON(http.StatusOK, eval)
	}
}

func (s *Server) handleMyEvaluations(c echo.Context) error {
	return c.JSON(http.StatusOK, s.data.EvaluationsBy(contextUser(c).ID))
}

func (s *Server) handleEvaluation(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	eval, err := s.data.Evaluation(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, eval)
}

func (s *Server) handleReport(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	eval, err := s.data.Evaluation(id)
	if err != nil {
		return err
	}
	switch c.Param("format") {
	case api.FormatHTML:
		body, err := renderHTMLReport(eval)
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, echo.MIMETextHTMLCharsetUTF8, body)
	case api.FormatPDF:
		return c.Blob(http.StatusOK, "application/pdf", renderPDFReport(eval))
	default:
		return echo.NewHTTPError(http.StatusNotFound, "Unsupported report format")
	}
}
