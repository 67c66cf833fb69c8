package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"skillduels/auth"
	"skillduels/config"
	"skillduels/crypto"
	"skillduels/game"
	"skillduels/match"
	"skillduels/migrations"
	"skillduels/settlement"
	"skillduels/storage"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		if slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func matchConfig(cfg config.Config) match.Config {
	return match.Config{
		WinThreshold:    cfg.WinThreshold,
		CountdownTicks:  cfg.CountdownTicks,
		CountdownTick:   cfg.CountdownTick,
		SettleDelay:     cfg.SettleDelay,
		WaitingTTL:      cfg.WaitingTTL,
		DefaultGameMode: cfg.DefaultGameMode,
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// logger setup
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := migrations.Migrate(cfg.PostgresURL); err != nil {
		log.Fatal(err)
	}

	// Dependencies
	pgRepo, err := storage.NewPostgresRepo(context.Background(), cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pgRepo.Close()

	passwordHasher := crypto.NewArgon2idHasher(3, 1024*64, 32, 16, 1)
	tokenManager := crypto.NewJWTManager(cfg.JWTKey, cfg.TokenMaxAge)

	authService := auth.NewService(pgRepo, pgRepo, passwordHasher, tokenManager)
	authHandler := auth.NewAuthHandler(authService, cfg.TokenMaxAge)

	// target items are loaded once, room loops never touch the database
	itemsCtx, cancelItems := context.WithTimeout(context.Background(), 5*time.Second)
	items, err := pgRepo.TargetItems(itemsCtx)
	cancelItems()
	if err != nil {
		slog.Warn("could not load target items, using built-in list", "error", err)
	}
	itemPool := match.NewItemPool(items, nil)

	var escrow settlement.Escrow = settlement.LogEscrow{}
	if cfg.EscrowURL != "" {
		escrow = settlement.NewHTTPEscrow(cfg.EscrowURL, &http.Client{Timeout: 10 * time.Second})
	}
	var publisher settlement.Publisher = settlement.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = settlement.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	defer publisher.Close()

	settlementSvc := settlement.NewService(pgRepo, escrow, publisher, settlement.DefaultQueueSize)
	settlementCtx, stopSettlement := context.WithCancel(context.Background())
	settlementDone := make(chan struct{})
	go func() {
		settlementSvc.Run(settlementCtx)
		close(settlementDone)
	}()

	r := CreateServer(cfg.AllowedOrigins)
	requireAuth := authHandler.RequireAuthMiddleware(time.Second * 2)

	{
		auth := r.Group("/auth")
		auth.POST("/signup", authHandler.SignupHandler)
		auth.POST("/login", authHandler.LoginHandler)
		auth.POST("/logout", authHandler.LogoutHandler)
		auth.GET("/refresh", authHandler.RefreshSessionHandler)
		auth.GET("/me", requireAuth, authHandler.ProfileHandler)
	}

	codeGen := game.NewCodeGen()
	tickerGen := game.NewTickerGen()
	wg := sync.WaitGroup{}
	lobby := game.NewLobby(game.LobbyConfig{
		Match:        matchConfig(cfg),
		RoomTick:     cfg.RoomTick,
		PingInterval: cfg.PingInterval,
	}, codeGen, &tickerGen, itemPool, settlementSvc, &wg)

	lobbyCtx, stopLobby := context.WithCancel(context.Background())
	lobbyStarted := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		lobby.LobbyActor(lobbyCtx, lobbyStarted)
	}()
	<-lobbyStarted

	gameHandler := game.NewGameHandler(lobby, pgRepo)
	{
		gameGroup := r.Group("/game")
		gameGroup.Use(requireAuth)

		gameGroup.GET("/ws", gameHandler.WebsocketHandler)
		gameGroup.GET("/code", gameHandler.NewCodeHandler)
		gameGroup.GET("/rooms/:code", gameHandler.RoomStatusHandler)
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()
	slog.Info("server started", "port", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	<-sigCh
	slog.Info("shutdown signal received, closing rooms")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown", "error", err)
	}

	// rooms report their outcomes before the settlement queue is drained
	stopLobby()
	wg.Wait()
	stopSettlement()
	<-settlementDone

	slog.Info("shut down")
}
