package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rosterd/internal/services"
	"github.com/charlesng35/rosterd/pkg/errors"
	"github.com/charlesng35/rosterd/pkg/response"
)

// CatalogHandler serves faculty and course aggregates.
type CatalogHandler struct {
	svc *services.StudentService
}

func NewCatalogHandler(svc *services.StudentService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// GET /api/faculties
func (h *CatalogHandler) Faculties(c *gin.Context) {
	faculties, err := h.svc.Faculties(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, faculties, &response.Meta{Total: len(faculties)})
}

// GET /api/faculties/:name/stats
func (h *CatalogHandler) FacultyStats(c *gin.Context) {
	stats, err := h.svc.FacultyStats(requestContext(c), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// GET /api/faculties/:name/students
func (h *CatalogHandler) FacultyStudents(c *gin.Context) {
	students, err := h.svc.FacultyStudents(requestContext(c), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, students, &response.Meta{Total: len(students)})
}

// GET /api/courses
func (h *CatalogHandler) Courses(c *gin.Context) {
	courses, err := h.svc.Courses(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, courses, &response.Meta{Total: len(courses)})
}

// GET /api/courses/:name/stats
func (h *CatalogHandler) CourseStats(c *gin.Context) {
	stats, err := h.svc.CourseStats(requestContext(c), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// GET /api/courses/:name/low-grades?max_grade=30
func (h *CatalogHandler) LowGrades(c *gin.Context) {
	maxGrade, err := parseOptionalIntQuery(c, "max_grade")
	if err != nil {
		response.Error(c, err)
		return
	}

	threshold := services.DefaultLowGradeThreshold
	if maxGrade != nil {
		if *maxGrade < 1 || *maxGrade > 101 {
			response.Error(c, errors.NewValidation("max_grade must be between 1 and 101"))
			return
		}
		threshold = *maxGrade
	}

	students, err := h.svc.LowGrades(requestContext(c), c.Param("name"), threshold)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, students, &response.Meta{Total: len(students)})
}
