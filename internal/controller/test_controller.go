package controller

import (
	"errors"
	"strconv"

	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TestController struct {
	Service *service.TestService
}

func NewTestController(svc *service.TestService) *TestController {
	return &TestController{Service: svc}
}

// @Summary Create a test with questions
// @Tags teacher
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.TestReq true "Test payload"
// @Success 201 {object} util.Response
// @Router /api/teacher/tests [post]
func (c *TestController) CreateTest(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.TestReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	test, err := c.Service.CreateTest(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	util.Created(ctx, test)
}

// @Summary List tests
// @Tags teacher
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} util.Response
// @Router /api/teacher/tests [get]
func (c *TestController) ListTests(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	tests, total, err := c.Service.ListTests(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"items": tests, "total": total})
}

// @Summary Get a test with its questions and answer keys
// @Tags teacher
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/tests/{id} [get]
func (c *TestController) GetTest(ctx *gin.Context) {
	test, qs, err := c.Service.GetTest(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrTestNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"test": test, "questions": qs})
}

// @Summary Update a test and upsert its questions
// @Tags teacher
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Param body body service.TestReq true "Test payload"
// @Success 200 {object} util.Response
// @Router /api/teacher/tests/{id} [put]
func (c *TestController) UpdateTest(ctx *gin.Context) {
	var req service.TestReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	test, err := c.Service.UpdateTest(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		if errors.Is(err, util.ErrTestNotFound) || errors.Is(err, util.ErrQuestionNotFound) {
			util.NotFound(ctx)
			return
		}
		util.BadRequest(ctx, err.Error())
		return
	}

	util.Success(ctx, test)
}

// @Summary Delete a test and all its attempts
// @Tags teacher
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/tests/{id} [delete]
func (c *TestController) DeleteTest(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := c.Service.DeleteTest(ctx.Request.Context(), id); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"deleted": id})
}

// @Summary List attempts for a test
// @Tags teacher
// @Produce json
// @Security BearerAuth
// @Param id path string true "Test ID"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Param status query string false "Filter by attempt status"
// @Success 200 {object} util.Response
// @Router /api/teacher/tests/{id}/attempts [get]
func (c *TestController) ListAttempts(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	status := ctx.Query("status")

	attempts, total, err := c.Service.ListAttempts(ctx.Param("id"), page, limit, status)
	if err != nil {
		if errors.Is(err, util.ErrTestNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"items": attempts, "total": total})
}

// @Summary Get one attempt with graded answers and answer keys
// @Tags teacher
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/attempts/{id} [get]
func (c *TestController) GetAttemptDetail(ctx *gin.Context) {
	detail, err := c.Service.GetAttemptDetail(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrAttemptNotFound) || errors.Is(err, util.ErrTestNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, detail)
}
