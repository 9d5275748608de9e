package routes

import (
	"net/http"
	"time"

	"polls-service/internal/api/handlers"
	"polls-service/internal/api/middleware"
	"polls-service/internal/config"
	"polls-service/internal/repositories/postgres"
	"polls-service/internal/services"
	"polls-service/internal/web"
	"polls-service/internal/websocket"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Deps are the long-lived collaborators the router wires into handlers.
type Deps struct {
	Config       *config.Config
	DB           *gorm.DB
	RedisService *services.RedisService
	Hub          *websocket.Hub
	Publisher    services.VotePublisher
	Archiver     services.ResultsArchiver
	ChatService  *services.ChatService
}

type Router struct {
	engine        *gin.Engine
	authHandler   *handlers.AuthHandler
	pollHandler   *handlers.PollHandler
	choiceHandler *handlers.ChoiceHandler
	votingHandler *handlers.VotingHandler
	chatHandler   *handlers.ChatHandler
	wsHandler     *handlers.WSHandler
	render        *handlers.Renderer
	rateLimitMW   *middleware.RateLimitMiddleware
	authMW        *middleware.AuthMiddleware
}

func NewRouter(deps Deps) (*Router, error) {
	cfg := deps.Config

	if err := middleware.RegisterValidators(); err != nil {
		return nil, err
	}
	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.SetHTMLTemplate(tmpl)

	// Add middlewares
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	engine.Use(middleware.LogApi())

	// Initialize repositories
	userRepo := postgres.NewUserRepository(deps.DB)
	pollRepo := postgres.NewPollRepository(deps.DB)
	choiceRepo := postgres.NewChoiceRepository(deps.DB)
	voteRepo := postgres.NewVoteRepository(deps.DB)

	// Initialize services
	userService := services.NewUserService(userRepo, cfg.JWT.Secret, cfg.JWT.ExpirationTime, cfg.Polls.GrantAddOnRegister)
	pollService := services.NewPollService(pollRepo, userRepo, deps.RedisService, deps.Archiver, cfg.Polls.DashboardCacheTTL)
	choiceService := services.NewChoiceService(choiceRepo, pollService)
	voteService := services.NewVoteService(pollService, choiceRepo, voteRepo, deps.RedisService, deps.Publisher)
	chatService := deps.ChatService
	if chatService == nil {
		chatService = services.NewChatService(cfg.Chat)
	}

	// Initialize handlers
	render := handlers.NewRenderer(deps.RedisService)

	return &Router{
		engine:        engine,
		authHandler:   handlers.NewAuthHandler(userService, render, cfg.JWT.ExpirationTime),
		pollHandler:   handlers.NewPollHandler(pollService, render),
		choiceHandler: handlers.NewChoiceHandler(pollService, choiceService, render),
		votingHandler: handlers.NewVotingHandler(voteService, render),
		chatHandler:   handlers.NewChatHandler(chatService, render),
		wsHandler:     handlers.NewWSHandler(deps.Hub, websocket.NewUpgrader(cfg.CORS.AllowedOrigins), pollService),
		render:        render,
		rateLimitMW:   middleware.NewRateLimitMiddleware(deps.RedisService),
		authMW:        middleware.NewAuthMiddleware(cfg.JWT.Secret),
	}, nil
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/polls/")
	})

	site := r.engine.Group("/")
	site.Use(r.authMW.Authenticate())

	r.engine.NoRoute(r.authMW.Authenticate(), func(c *gin.Context) {
		r.render.NotFound(c, "")
	})

	// Accounts
	accounts := site.Group("/accounts")
	accounts.Use(r.rateLimitMW.RateLimitIP(50, time.Minute))
	{
		accounts.GET("/register", r.authHandler.RegisterPage)
		accounts.POST("/register", r.authHandler.RegisterForm)
		accounts.GET("/login", r.authHandler.LoginPage)
		accounts.POST("/login", r.authHandler.LoginForm)
		accounts.POST("/logout", r.authHandler.Logout)
	}

	api := r.engine.Group("/api/v1")
	authRoutes := api.Group("/auth")
	authRoutes.Use(r.rateLimitMW.RateLimitIP(50, time.Minute)) // 50 requests per minute per IP
	{
		authRoutes.POST("/register", r.authHandler.Register)
		authRoutes.POST("/login", r.authHandler.Login)
	}

	// Public poll pages
	site.GET("/polls/:id", r.pollHandler.Detail)
	site.GET("/polls/:id/results", r.pollHandler.Results)
	site.GET("/ws/polls/:id", r.wsHandler.PollResults)

	// Pages behind login
	pages := site.Group("/")
	pages.Use(r.authMW.RequireLogin())
	{
		pages.GET("/polls/", r.pollHandler.List)
		pages.GET("/polls/dashboard", r.pollHandler.Dashboard)
		pages.GET("/polls/mine", r.pollHandler.Mine)
		pages.GET("/polls/add", r.pollHandler.AddPage)
		pages.POST("/polls/add", r.pollHandler.Add)
		pages.GET("/polls/:id/edit", r.pollHandler.EditPage)
		pages.POST("/polls/:id/edit", r.pollHandler.Edit)
		pages.POST("/polls/:id/delete", r.pollHandler.Delete)
		pages.POST("/polls/:id/end", r.pollHandler.End)
		pages.GET("/polls/:id/choices/add", r.choiceHandler.AddPage)
		pages.POST("/polls/:id/choices/add", r.choiceHandler.Add)
		pages.GET("/choices/:id/edit", r.choiceHandler.EditPage)
		pages.POST("/choices/:id/edit", r.choiceHandler.Edit)
		pages.POST("/choices/:id/delete", r.choiceHandler.Delete)
		pages.POST("/polls/:id/vote", r.rateLimitMW.RateLimit(30, time.Minute), r.votingHandler.Vote)
		pages.GET("/chat", r.chatHandler.Page)
	}

	chat := site.Group("/chat")
	chat.Use(r.authMW.RequireAuth())
	{
		chat.POST("/message", r.rateLimitMW.RateLimit(20, time.Minute), r.chatHandler.Message)
		chat.GET("/message", r.chatHandler.MethodNotAllowed)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
