package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rosterd/internal/services"
	"github.com/charlesng35/rosterd/pkg/errors"
	"github.com/charlesng35/rosterd/pkg/response"
)

// StudentHandler exposes student CRUD and filtered listings.
type StudentHandler struct {
	svc *services.StudentService
}

func NewStudentHandler(svc *services.StudentService) *StudentHandler {
	return &StudentHandler{svc: svc}
}

// GET /api/students?faculty=&course=&min_grade=&max_grade=
func (h *StudentHandler) List(c *gin.Context) {
	filter := services.StudentFilter{
		Faculty: c.Query("faculty"),
		Course:  c.Query("course"),
	}

	var err error
	if filter.MinGrade, err = parseOptionalIntQuery(c, "min_grade"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.MaxGrade, err = parseOptionalIntQuery(c, "max_grade"); err != nil {
		response.Error(c, err)
		return
	}

	students, err := h.svc.List(requestContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, students, &response.Meta{Total: len(students)})
}

// GET /api/students/:id
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.svc.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, student)
}

// POST /api/students
func (h *StudentHandler) Create(c *gin.Context) {
	var input services.StudentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, errors.NewBadRequest("invalid JSON payload"))
		return
	}

	student, err := h.svc.Create(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, student)
}

// PATCH /api/students/:id (also PUT)
func (h *StudentHandler) Update(c *gin.Context) {
	var patch services.StudentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, errors.NewBadRequest("invalid JSON payload"))
		return
	}

	student, err := h.svc.Update(requestContext(c), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, student)
}

// DELETE /api/students/:id
func (h *StudentHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Delete(requestContext(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}
