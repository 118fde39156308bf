package controllers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/smis-school/smis/internal/app/models"
	"github.com/smis-school/smis/internal/app/models/dto"
	"github.com/smis-school/smis/internal/app/services"
	"github.com/smis-school/smis/internal/middleware"
	"github.com/smis-school/smis/internal/pkg/helpers"
)

// AdminController serves system administration: users, departments,
// classes and cache maintenance.
type AdminController struct {
	adminService      services.AdminService
	userService       services.UserService
	departmentService services.DepartmentService
	logger            zerolog.Logger
}

func NewAdminController(
	adminService services.AdminService,
	userService services.UserService,
	departmentService services.DepartmentService,
	logger zerolog.Logger,
) *AdminController {
	return &AdminController{
		adminService:      adminService,
		userService:       userService,
		departmentService: departmentService,
		logger:            logger,
	}
}

// Dashboard godoc
// @Summary Admin dashboard
// @Description User counts per role, recent activity and cache statistics
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.AdminDashboard}
// @Router /admin/dashboard [get]
func (c *AdminController) Dashboard(ctx *gin.Context) {
	dash, err := c.adminService.Dashboard(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, dash, "")
}

// FlushCache godoc
// @Summary Flush the dashboard cache
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse
// @Router /admin/cache/flush [post]
func (c *AdminController) FlushCache(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	if err := c.adminService.FlushCache(ctx.Request.Context(), actor); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	c.logger.Info().Int64("adminID", actor.UserID).Msg("Cache flushed")
	ok(ctx, nil, "Cache flushed")
}

// ListUsers godoc
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "Role"
// @Param departmentId query int false "Department ID"
// @Param isActive query bool false "Active flag"
// @Param search query string false "Name or email"
// @Param sortBy query string false "id, email, firstName, lastName, createdAt"
// @Param sortOrder query string false "asc or desc"
// @Param page query int false "Page" default(1)
// @Param size query int false "Page size" default(10)
// @Success 200 {object} dto.APIResponse{data=dto.PaginatedResponse}
// @Router /admin/users [get]
func (c *AdminController) ListUsers(ctx *gin.Context) {
	filter := models.UserFilter{
		Role:      models.RoleType(strings.ToUpper(ctx.Query("role"))),
		Search:    ctx.Query("search"),
		SortBy:    ctx.Query("sortBy"),
		SortOrder: ctx.Query("sortOrder"),
	}
	if filter.Role != "" && !filter.Role.IsValid() {
		middleware.AbortBadRequest(ctx, "role must be one of STUDENT TEACHER HOD FINANCE ADMIN")
		return
	}
	if id, found := helpers.QueryInt64(ctx, "departmentId"); found {
		filter.DepartmentID = &id
	}
	if raw := ctx.Query("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			middleware.AbortBadRequest(ctx, "isActive must be true or false")
			return
		}
		filter.IsActive = &active
	}

	page, size := helpers.ParsePaginationParams(ctx)
	result, err := c.userService.ListUsers(ctx.Request.Context(), filter, page, size)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, result, "")
}

// GetUser godoc
// @Summary Get a user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse}
// @Failure 404 {object} dto.APIResponse "User not found"
// @Router /admin/users/{id} [get]
func (c *AdminController) GetUser(ctx *gin.Context) {
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	user, err := c.userService.GetUser(ctx.Request.Context(), id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, user, "")
}

// CreateUser godoc
// @Summary Create a user of any role
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateUserRequest true "User"
// @Success 201 {object} dto.APIResponse{data=dto.UserResponse}
// @Failure 409 {object} dto.APIResponse "Email or student number exists"
// @Router /admin/users [post]
func (c *AdminController) CreateUser(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	var req dto.CreateUserRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	user, err := c.userService.CreateUser(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	created(ctx, user, "User created")
}

// UpdateUser godoc
// @Summary Update a user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body dto.UpdateUserRequest true "Changes"
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse}
// @Router /admin/users/{id} [put]
func (c *AdminController) UpdateUser(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	var req dto.UpdateUserRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	user, err := c.userService.UpdateUser(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, user, "User updated")
}

// SetUserStatus godoc
// @Summary Enable or disable a user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body dto.UpdateUserStatusRequest true "Status"
// @Success 200 {object} dto.APIResponse
// @Router /admin/users/{id}/status [patch]
func (c *AdminController) SetUserStatus(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	var req dto.UpdateUserStatusRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	if err := c.userService.SetStatus(ctx.Request.Context(), actor, id, *req.IsActive); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, gin.H{"id": id, "isActive": *req.IsActive}, "User status updated")
}

// DeleteUser godoc
// @Summary Delete a user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} dto.APIResponse
// @Router /admin/users/{id} [delete]
func (c *AdminController) DeleteUser(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	if err := c.userService.DeleteUser(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, nil, "User deleted")
}

// ListDepartments godoc
// @Summary List departments
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.Department}
// @Router /admin/departments [get]
func (c *AdminController) ListDepartments(ctx *gin.Context) {
	departments, err := c.departmentService.ListDepartments(ctx.Request.Context())
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, departments, "")
}

// CreateDepartment godoc
// @Summary Create a department
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateDepartmentRequest true "Department"
// @Success 201 {object} dto.APIResponse{data=models.Department}
// @Failure 409 {object} dto.APIResponse "Department exists"
// @Router /admin/departments [post]
func (c *AdminController) CreateDepartment(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	var req dto.CreateDepartmentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	dept, err := c.departmentService.CreateDepartment(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	created(ctx, dept, "Department created")
}

// UpdateDepartment godoc
// @Summary Update a department
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Department ID"
// @Param request body dto.UpdateDepartmentRequest true "Department"
// @Success 200 {object} dto.APIResponse{data=models.Department}
// @Router /admin/departments/{id} [put]
func (c *AdminController) UpdateDepartment(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	var req dto.UpdateDepartmentRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	dept, err := c.departmentService.UpdateDepartment(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, dept, "Department updated")
}

// DeleteDepartment godoc
// @Summary Delete a department
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Department ID"
// @Success 200 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "Department has related data"
// @Router /admin/departments/{id} [delete]
func (c *AdminController) DeleteDepartment(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	if err := c.departmentService.DeleteDepartment(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, nil, "Department deleted")
}

// ListClasses godoc
// @Summary List classes
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param departmentId query int false "Department ID"
// @Success 200 {object} dto.APIResponse{data=[]models.Class}
// @Router /admin/classes [get]
func (c *AdminController) ListClasses(ctx *gin.Context) {
	var deptID *int64
	if id, found := helpers.QueryInt64(ctx, "departmentId"); found {
		deptID = &id
	}
	classes, err := c.departmentService.ListClasses(ctx.Request.Context(), deptID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, classes, "")
}

// CreateClass godoc
// @Summary Create a class
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ClassRequest true "Class"
// @Success 201 {object} dto.APIResponse{data=models.Class}
// @Router /admin/classes [post]
func (c *AdminController) CreateClass(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	var req dto.ClassRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	class, err := c.departmentService.CreateClass(ctx.Request.Context(), actor, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	created(ctx, class, "Class created")
}

// UpdateClass godoc
// @Summary Update a class
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Class ID"
// @Param request body dto.ClassRequest true "Class"
// @Success 200 {object} dto.APIResponse{data=models.Class}
// @Router /admin/classes/{id} [put]
func (c *AdminController) UpdateClass(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	var req dto.ClassRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	class, err := c.departmentService.UpdateClass(ctx.Request.Context(), actor, id, &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, class, "Class updated")
}

// DeleteClass godoc
// @Summary Delete a class
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Class ID"
// @Success 200 {object} dto.APIResponse
// @Router /admin/classes/{id} [delete]
func (c *AdminController) DeleteClass(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	if err := c.departmentService.DeleteClass(ctx.Request.Context(), actor, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, nil, "Class deleted")
}

// SetRoster godoc
// @Summary Replace a class roster
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Class ID"
// @Param request body dto.RosterRequest true "Student IDs"
// @Success 200 {object} dto.APIResponse{data=models.Class}
// @Router /admin/classes/{id}/roster [put]
func (c *AdminController) SetRoster(ctx *gin.Context) {
	actor, authed := requireActor(ctx)
	if !authed {
		return
	}
	id, valid := helpers.ParseIDParam(ctx, "id")
	if !valid {
		return
	}
	var req dto.RosterRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}
	class, err := c.departmentService.SetRoster(ctx.Request.Context(), actor, id, req.StudentIDs)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ok(ctx, class, "Roster updated")
}
