package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/wikiquiz-go/wikiquiz-round-backend/api"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/hint"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/backup"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/config"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/database"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/health"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/shutdown"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/startup"
	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/round"
	"github.com/wikiquiz-go/wikiquiz-round-backend/pkg/lifecycle"
	"github.com/wikiquiz-go/wikiquiz-round-backend/pkg/token"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("无法加载配置文件: %v", err))
	}

	token.GenerateSecretKey()
	database.InitDB(cfg.Database.Sqlite)
	database.InitRedis(cfg.Database.Redis)

	// 1. 阻塞式获取初始Run ID
	health.InitializeRunID()

	// 2. 执行应用首次启动初始化流程
	if err := startup.InitializeApplication(); err != nil {
		panic(fmt.Sprintf("应用初始化失败，无法启动: %v", err))
	}

	// 3. 阻塞式执行一次启动后健康检查
	fmt.Println("正在执行启动后健康检查...")
	health.PerformCheck()

	// 4. 异步启动后台的持续健康检查器
	go health.StartRedisHealthCheck()

	// 5. 注入LLM提示客户端
	round.SetHintClient(hint.NewClient(cfg.Hint))

	// 6. 创建两阶段停机的生命周期管理器，并启动后台任务
	gracefulManager := lifecycle.NewManager()
	forcefulManager := lifecycle.NewManager()

	janitorHandle, err := gracefulManager.NewServiceHandle("session-janitor")
	if err != nil {
		panic(fmt.Sprintf("无法注册会话清理服务: %v", err))
	}
	go round.StartSessionJanitor(janitorHandle)

	backupHandle, err := gracefulManager.NewServiceHandle("exposure-backup")
	if err != nil {
		panic(fmt.Sprintf("无法注册快照备份服务: %v", err))
	}
	go backup.StartBackupScheduler(backupHandle)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.SetupRoutes(r)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	go func() {
		fmt.Printf("服务器已准备就绪，开始监听 %s\n", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic("Failed to start server: " + err.Error())
		}
	}()

	// 7. 阻塞在停机协调器上，直到优雅停机完成
	coordinator := shutdown.NewCoordinator(gracefulManager, forcefulManager)
	coordinator.ListenForSignalsAndShutdown(server)
}
