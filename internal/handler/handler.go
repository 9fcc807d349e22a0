package handler

import (
	"errors"
	"strconv"

	"github.com/Ezhevenko/coachlog/internal/config"
	"github.com/Ezhevenko/coachlog/internal/repository"
	"github.com/Ezhevenko/coachlog/internal/service"
	"github.com/Ezhevenko/coachlog/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	packageService *service.PackageService
	consumeService *service.ConsumeService
	workoutService *service.WorkoutService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		packageService: service.NewPackageService(db, rdb, cfg),
		consumeService: service.NewConsumeService(db, rdb, cfg),
		workoutService: service.NewWorkoutService(db, cfg),
	}
}

// ============================================================
// 课时包相关接口
// ============================================================

// GetBalance 查询课时余额和流水
// GET /api/v1/package/balance?coach_id=xxx&client_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	coachID, err := strconv.ParseInt(c.Query("coach_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "coach_id 参数错误")
		return
	}
	clientID, err := strconv.ParseInt(c.Query("client_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "client_id 参数错误")
		return
	}

	balance, err := h.packageService.GetBalance(c.Request.Context(), coachID, clientID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, balance)
}

// AddCreditsRequest 课时变动请求
type AddCreditsRequest struct {
	CoachID  int64  `json:"coach_id" binding:"required"`
	ClientID int64  `json:"client_id" binding:"required"`
	Delta    int64  `json:"delta" binding:"required"` // 非零，正数加课时，负数调减
	Remark   string `json:"remark"`
}

// AddCredits 增减课时
// POST /api/v1/package/add
func (h *Handler) AddCredits(c *gin.Context) {
	var req AddCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	serviceReq := &service.AddCreditsRequest{
		CoachID:  req.CoachID,
		ClientID: req.ClientID,
		Delta:    req.Delta,
		Remark:   req.Remark,
	}

	result, err := h.packageService.AddCredits(c.Request.Context(), serviceReq)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDelta) {
			response.BusinessError(c, response.CodeInvalidDelta, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// SweepRequest 到期训练扫描请求
type SweepRequest struct {
	CoachID int64 `json:"coach_id" binding:"required"`
}

// SweepPackages 扫描并核销某教练所有已到期未核销的训练（管理入口）
// POST /api/v1/package/sweep
func (h *Handler) SweepPackages(c *gin.Context) {
	var req SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.consumeService.SweepDueWorkouts(c.Request.Context(), req.CoachID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// ============================================================
// 训练相关接口
// ============================================================

// CreateWorkoutRequest 创建训练请求（排课模块调用）
type CreateWorkoutRequest struct {
	RequestID       string `json:"request_id" binding:"required"` // 幂等ID
	CoachID         int64  `json:"coach_id" binding:"required"`
	ClientID        int64  `json:"client_id" binding:"required"`
	Date            string `json:"date" binding:"required"` // YYYY-MM-DD
	TimeStart       string `json:"time_start"`              // HH:MM，可为空
	DurationMinutes int    `json:"duration_minutes"`
}

// CreateWorkout 创建训练记录
// POST /api/v1/workout/create
func (h *Handler) CreateWorkout(c *gin.Context) {
	var req CreateWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	serviceReq := &service.CreateWorkoutRequest{
		RequestID:       req.RequestID,
		CoachID:         req.CoachID,
		ClientID:        req.ClientID,
		Date:            req.Date,
		TimeStart:       req.TimeStart,
		DurationMinutes: req.DurationMinutes,
	}

	workout, err := h.workoutService.CreateWorkout(c.Request.Context(), serviceReq)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"workout_no": workout.WorkoutNo,
		"date":       workout.Date,
		"time_start": workout.TimeStart,
		"consumed":   workout.Consumed,
	})
}

// GetWorkout 查询训练详情
// GET /api/v1/workout/detail?workout_no=xxx
func (h *Handler) GetWorkout(c *gin.Context) {
	workoutNo := c.Query("workout_no")
	if workoutNo == "" {
		response.ParamError(c, "workout_no 参数不能为空")
		return
	}

	workout, err := h.workoutService.GetWorkout(c.Request.Context(), workoutNo)
	if err != nil {
		if errors.Is(err, repository.ErrWorkoutNotFound) {
			response.BusinessError(c, response.CodeWorkoutNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, workout)
}

// ListWorkouts 查询教练的训练列表
// GET /api/v1/workout/list?coach_id=xxx&page=1&page_size=10
func (h *Handler) ListWorkouts(c *gin.Context) {
	coachID, err := strconv.ParseInt(c.Query("coach_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "coach_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	workouts, total, err := h.workoutService.ListCoachWorkouts(c.Request.Context(), coachID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      workouts,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// FinishWorkoutRequest 完成训练请求
type FinishWorkoutRequest struct {
	CoachID   int64 `json:"coach_id" binding:"required"`
	WorkoutID int64 `json:"workout_id" binding:"required"`
}

// FinishWorkout 手动完成训练并核销课时
// POST /api/v1/workout/finish
//
// 【关键点】核销是整个系统最核心的操作，需要保证：
// 1. 幂等性：同一个训练重复提交只会扣一次课时
// 2. 原子性：consumed 翻转、余额扣减、流水记录必须同时成功或同时失败
// 3. 归属校验：只有训练所属的教练能核销，校验失败前不产生任何写入
func (h *Handler) FinishWorkout(c *gin.Context) {
	var req FinishWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.consumeService.Consume(c.Request.Context(), req.CoachID, req.WorkoutID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrWorkoutNotFound):
			response.BusinessError(c, response.CodeWorkoutNotFound, err.Error())
		case errors.Is(err, service.ErrWorkoutForbidden):
			response.BusinessError(c, response.CodeWorkoutForbidden, err.Error())
		case errors.Is(err, repository.ErrPackageNotFound):
			response.BusinessError(c, response.CodePackageNotFound, err.Error())
		case errors.Is(err, repository.ErrCreditNotEnough):
			response.BusinessError(c, response.CodeCreditNotEnough, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, result)
}
