package api

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/cp-duel/cp-duel-backend/internal/api/handlers"
	"github.com/cp-duel/cp-duel-backend/internal/api/middleware"
	"github.com/cp-duel/cp-duel-backend/internal/config"
	"github.com/cp-duel/cp-duel-backend/internal/repository"
	"github.com/cp-duel/cp-duel-backend/internal/service"
	"github.com/cp-duel/cp-duel-backend/internal/websocket"
	"github.com/cp-duel/cp-duel-backend/pkg/codeforces"
	"github.com/cp-duel/cp-duel-backend/pkg/database"
	"github.com/cp-duel/cp-duel-backend/pkg/judge"
	jwtutil "github.com/cp-duel/cp-duel-backend/pkg/jwt"
	"github.com/cp-duel/cp-duel-backend/pkg/ratelimit"
)

// SetupRouter API 라우터 설정
func SetupRouter(cfg *config.Config, db *database.DB) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// 외부 클라이언트 초기화
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	cfClient := codeforces.NewClient(cfg.CodeforcesAPIURL, redisClient, cfg.ProblemCacheTTL)
	judgeClient := judge.NewClient(cfg.JudgeURL, cfg.JudgeTimeout)
	jwtManager := jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	limiter := ratelimit.NewRedisLimiter(redisClient, "ratelimit:")

	// Repository 초기화
	userRepo := repository.NewUserRepository(db)
	gameRepo := repository.NewGameRepository(db)

	// WebSocket Hub 초기화 및 시작
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Service 초기화
	selector := service.NewProblemSelector(cfClient)
	userService := service.NewUserService(userRepo, cfClient, jwtManager)
	gameService := service.NewGameService(gameRepo, userRepo, selector, judgeClient, wsHub)

	// Handler 초기화
	authHandler := handlers.NewAuthHandler(userService)
	userHandler := handlers.NewUserHandler(userService)
	gameHandler := handlers.NewGameHandler(gameService)
	problemHandler := handlers.NewProblemHandler(cfClient)
	contestHandler := handlers.NewContestHandler(cfClient)
	wsHandler := handlers.NewWebSocketHandler(wsHub, jwtManager)

	auth := middleware.Auth(jwtManager)

	// Health check
	router.GET("/health", handlers.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// WebSocket endpoint (token 쿼리 파라미터로 인증)
		v1.GET("/ws", wsHandler.HandleWebSocket)

		// Auth routes
		authGroup := v1.Group("/auth")
		authGroup.Use(middleware.AuthRateLimit(limiter))
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		// User routes
		users := v1.Group("/users")
		{
			users.GET("/me", auth, userHandler.Me)
			users.POST("/verify-handle", auth, userHandler.VerifyHandle)
			users.GET("/:id/stats", userHandler.Stats)
		}

		// Leaderboard
		v1.GET("/leaderboard", userHandler.Leaderboard)

		// Game routes
		games := v1.Group("/games")
		games.Use(auth)
		{
			games.POST("/find", middleware.MatchRateLimit(limiter), gameHandler.FindOnline)
			games.POST("/friend", middleware.MatchRateLimit(limiter), gameHandler.CreateFriend)
			games.GET("/current", gameHandler.Current)
			games.POST("/current/submit", middleware.SubmissionRateLimit(limiter), gameHandler.Submit)
			games.POST("/current/leave", gameHandler.Leave)
			games.POST("/current/cancel", gameHandler.Cancel)
			games.POST("/cancel-all", gameHandler.CancelAll)
			games.GET("/history", gameHandler.History)
		}

		// Problem routes
		problems := v1.Group("/problems")
		{
			problems.GET("", problemHandler.List)
			problems.GET("/:contestId/:index", problemHandler.Get)
		}

		// Contest routes
		contests := v1.Group("/contests")
		{
			contests.GET("/upcoming", contestHandler.Upcoming)
			contests.GET("/recent", contestHandler.Recent)
		}
	}

	return router
}
