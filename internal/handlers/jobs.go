package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rosterd/internal/jobs"
	apperrors "github.com/charlesng35/rosterd/pkg/errors"
	"github.com/charlesng35/rosterd/pkg/response"
)

// MaxUploadBytes bounds the CSV accepted by the bulk load endpoint.
const MaxUploadBytes = 10 << 20

// JobHandler hands bulk operations to the background runner.
type JobHandler struct {
	runner *jobs.Runner
}

func NewJobHandler(runner *jobs.Runner) *JobHandler {
	return &JobHandler{runner: runner}
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// POST /api/jobs/load
//
// Accepts the CSV as a multipart "file" field or as the raw request body.
func (h *JobHandler) Load(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	data, err := readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.runner.Submit(requestContext(c), jobs.KindBulkLoad, data); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, "bulk load started")
}

// POST /api/jobs/delete
func (h *JobHandler) Delete(c *gin.Context) {
	var req bulkDeleteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.runner.Submit(requestContext(c), jobs.KindBulkDelete, req.IDs); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, "bulk delete started")
}

func readUpload(c *gin.Context) ([]byte, error) {
	var reader io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, apperrors.NewBadRequest("multipart field \"file\" is required")
		}
		file, err := header.Open()
		if err != nil {
			return nil, apperrors.NewBadRequest("uploaded file is unreadable")
		}
		defer file.Close()
		reader = file
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.NewBadRequest("upload exceeds the size limit")
		}
		return nil, apperrors.NewBadRequest("request body is unreadable")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, apperrors.NewValidation("csv payload is empty")
	}
	return data, nil
}
