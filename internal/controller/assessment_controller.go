package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	Service *service.AssessmentService
}

func NewAssessmentController(svc *service.AssessmentService) *AssessmentController {
	return &AssessmentController{Service: svc}
}

// @Summary List published tests for the current learner
// @Tags assessment
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} util.Response
// @Router /api/tests [get]
func (c *AssessmentController) ListTests(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	tests, total, err := c.Service.ListTestsForStudent(user.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"items": tests, "total": total})
}

// @Summary Get a test with the caller's attempt state and remaining time
// @Tags assessment
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 200 {object} util.Response
// @Router /api/tests/{id} [get]
func (c *AssessmentController) GetTest(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	detail, err := c.Service.GetStudentTestDetail(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		c.renderError(ctx, err)
		return
	}

	util.Success(ctx, detail)
}

// @Summary Start or resume a test attempt
// @Tags assessment
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 201 {object} util.Response
// @Router /api/tests/{id}/start [post]
func (c *AssessmentController) StartAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.Service.StartAttempt(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		c.renderError(ctx, err)
		return
	}

	if result.Resumed {
		util.Success(ctx, result)
		return
	}
	util.Created(ctx, result)
}

type submitAttemptReq struct {
	Answers map[string]json.RawMessage `json:"answers"`
}

// @Summary Submit answers and finalize an attempt
// @Tags assessment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Param body body submitAttemptReq true "Answers keyed by question ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/submit [post]
func (c *AssessmentController) SubmitAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req submitAttemptReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.SubmitAttempt(ctx.Param("id"), user.UserID, req.Answers)
	if err != nil {
		c.renderError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary Get the graded review of a finished attempt
// @Tags assessment
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/result [get]
func (c *AssessmentController) GetResult(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.Service.GetResult(ctx.Param("id"), user.UserID)
	if err != nil {
		c.renderError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

func (c *AssessmentController) renderError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrTestNotFound), errors.Is(err, util.ErrAttemptNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrTestNotPublished):
		util.Error(ctx, http.StatusForbidden, err.Error())
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrAttemptLimitExceeded):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrResultNotReady):
		util.Conflict(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
