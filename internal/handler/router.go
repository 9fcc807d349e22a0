package handler

import (
	"github.com/Ezhevenko/coachlog/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 课时包相关
		pkg := api.Group("/package")
		{
			pkg.GET("/balance", h.GetBalance)
			pkg.POST("/add", h.AddCredits)
			pkg.POST("/sweep", h.SweepPackages)
		}

		// 训练相关
		workout := api.Group("/workout")
		{
			workout.POST("/create", h.CreateWorkout)
			workout.GET("/detail", h.GetWorkout)
			workout.GET("/list", h.ListWorkouts)
			workout.POST("/finish", h.FinishWorkout)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
