package routes

import (
	"equipment_lending/app"
	"equipment_lending/controllers"
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	uc := controllers.NewUserController(s)
	ec := controllers.NewEquipmentController(s)
	bc := controllers.NewBorrowRequestController(s)

	// 全局：令牌校验（公开路径放行）+ 最近活跃时间
	r.Use(app.AuthRequired(a.Sessions(), a.Repo, a.Log))
	r.Use(app.TouchLastSeen(a.Repo, a.RDB, a.Config.SeenThrottle))
	adminMW := app.AdminOnly(a.Config)

	// Health
	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })

	// ------------------------------
	// 用户
	// ------------------------------
	users := r.Group("/api/users")
	{
		users.POST("/register", uc.Register)
		users.POST("/login", uc.Login)
		users.POST("/logout", uc.Logout)

		users.GET("", adminMW, uc.ListUsers)
		users.GET("/me", uc.Me)
		users.GET("/:id", uc.GetUser)
	}

	// ------------------------------
	// 设备目录
	// ------------------------------
	equipment := r.Group("/api/equipment")
	{
		equipment.GET("", ec.ListEquipment)
		equipment.GET("/available", ec.ListAvailable)
		equipment.GET("/:id", ec.GetEquipment)

		equipment.POST("", adminMW, ec.CreateEquipment)
		equipment.PUT("/:id", adminMW, ec.UpdateEquipment)
		equipment.DELETE("/:id", adminMW, ec.DeleteEquipment)
	}

	public := r.Group("/api/public")
	{
		public.GET("/equipment", ec.ListAvailable)
	}

	// ------------------------------
	// 借用申请
	// ------------------------------
	requests := r.Group("/api/requests")
	{
		requests.POST("", bc.CreateRequest)
		requests.GET("", bc.ListRequests)
		requests.GET("/user/:userId", bc.ListUserRequests)

		requests.PUT("/:id/approve", adminMW, bc.Approve)
		requests.PUT("/:id/reject", adminMW, bc.Reject)
		requests.PUT("/:id/return", bc.Return) // 申请人本人或管理员
	}
}
