package handler

import (
	"fmt"
	"net/http"
	"time"

	"venturehub-backend/pkg/config"
	"venturehub-backend/pkg/database"
	"venturehub-backend/pkg/handlers"
	customMiddleware "venturehub-backend/pkg/middleware"
	"venturehub-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler 是Vercel函数的入口点
// 这个函数实现了"单体路由模式"，将所有API端点集中在一个Chi路由器中管理
func Handler(w http.ResponseWriter, r *http.Request) {
	// 加载配置
	cfg := config.GetCached()

	// 验证配置
	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	// 获取优化的数据库连接（自动适配Vercel环境）
	db := database.GetOptimizedDatabase(database.DatabaseConfig{
		UseMemoryDB: cfg.UseMemoryDB,
		PostgresDSN: cfg.PostgresDSN,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
		Debug:       cfg.Debug,
	})
	// 注意：连接由优化器管理，无需手动关闭

	// 创建Chi路由器
	router := chi.NewRouter()

	// 设置全局中间件
	setupMiddleware(router, cfg)

	// 设置路由
	setupRoutes(router, cfg, db)

	// 将请求传递给Chi路由器处理
	router.ServeHTTP(w, r)
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	// 基础中间件
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.CustomLogger(cfg))
	router.Use(customMiddleware.Recovery(cfg))

	// CORS中间件
	router.Use(customMiddleware.CORS(cfg))

	// 超时中间件（Vercel函数有时间限制）
	router.Use(middleware.Timeout(25 * time.Second)) // 留5秒缓冲

	// 压缩中间件
	router.Use(middleware.Compress(5))

	// 请求体大小限制（1MB）
	router.Use(customMiddleware.MaxBodySize(1 << 20))

	// 开发环境额外中间件
	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface) {
	// 创建处理器
	authHandler := handlers.NewAuthHandler(cfg, db)
	orgsHandler := handlers.NewOrgsHandler(cfg, db)
	goalsHandler := handlers.NewGoalsHandler(cfg, db)
	subtasksHandler := handlers.NewSubtasksHandler(cfg, db)

	// 健康检查端点
	router.Get("/", authHandler.HealthCheck)

	// 数据库连接池状态端点（调试用）
	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			var stats map[string]interface{}

			if database.IsVercelEnvironment() {
				// Vercel环境显示优化器状态
				optimizer := database.GetVercelOptimizer()
				stats = optimizer.GetStats()
				stats["optimizer_type"] = "vercel"
			} else {
				// 非Vercel环境显示连接池状态
				stats = database.GetConnectionStats()
				stats["optimizer_type"] = "standard"
			}

			utils.WriteSuccessResponse(w, stats)
		})
	}

	// API路由组
	router.Route("/api", func(r chi.Router) {
		// 公开路由（不需要认证）
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
			r.Post("/logout", authHandler.Logout)
		})

		// 需要认证的路由
		r.Group(func(r chi.Router) {
			// 应用认证中间件
			r.Use(customMiddleware.AuthMiddleware(cfg))
			r.Use(customMiddleware.ContentTypeJSON)

			// 用户相关路由
			r.Route("/user", func(r chi.Router) {
				r.Get("/profile", authHandler.Profile)
			})

			// Organizations & staff
			r.Route("/orgs", func(r chi.Router) {
				r.Get("/", orgsHandler.ListMyOrganizations)
				r.Post("/", orgsHandler.CreateOrganization)
				r.Put("/{id}", orgsHandler.UpdateOrganization)
				r.Get("/members", orgsHandler.ListMembers) // expects ?org_id=
				r.Post("/invite", orgsHandler.InviteStaff)
				r.Put("/members/{staffID}/access-level", orgsHandler.UpdateStaffAccessLevel)
			})

			// Invitations
			r.Route("/invitations", func(r chi.Router) {
				r.Get("/my", orgsHandler.ListMyInvitations)
				r.Post("/accept", orgsHandler.AcceptInvitation)
			})

			// Goals
			r.Route("/goals", func(r chi.Router) {
				r.Get("/", goalsHandler.ListGoals) // expects ?org_id=
				r.Post("/", goalsHandler.CreateGoal)
				r.Get("/{id}", goalsHandler.GetGoal)
				r.Put("/{id}", goalsHandler.UpdateGoal)
				r.Delete("/{id}", goalsHandler.DeleteGoal)

				// Subtasks scoped under their goal
				r.Get("/{goalID}/subtasks", subtasksHandler.ListSubtasks)
				r.Post("/{goalID}/subtasks", subtasksHandler.CreateSubtask)
			})

			// Subtasks addressed directly
			r.Route("/subtasks", func(r chi.Router) {
				r.Put("/{id}", subtasksHandler.UpdateSubtask)
				r.Put("/{id}/assignees", subtasksHandler.ReassignSubtask)
				r.Delete("/{id}", subtasksHandler.DeleteSubtask)
			})
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
