package main

import (
	"context"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/lhccong/fish-island-backend-sub001/config"
	"github.com/lhccong/fish-island-backend-sub001/crypto"
	"github.com/lhccong/fish-island-backend-sub001/game"
	"github.com/lhccong/fish-island-backend-sub001/migrations"
	"github.com/lhccong/fish-island-backend-sub001/storage"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")
		if origin == "" || slices.Contains(allowedOrigins, origin) {
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

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	if err := migrations.Migrate(cfg.PostgresURL); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}

	pgRepo, err := storage.NewPostgresRepo(context.Background(), cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer pgRepo.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis")
	}

	settings := game.DefaultSettings()
	settings.RoundDuration = cfg.RoundDuration

	store := game.NewRedisStore(redisClient, "game:")
	words := game.NewWordSource(pgRepo, store)
	hub := game.NewHub(log)

	var sched game.RoundScheduler
	var localSched *game.DeadlineScheduler
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.DistributedTimers {
		queueSched := game.NewAsynqScheduler(redisOpt, log)
		defer queueSched.Close()
		sched = queueSched
	} else {
		localSched = game.NewDeadlineScheduler()
		defer localSched.Close()
		sched = localSched
	}

	coord := game.NewCoordinator(store, sched, hub, pgRepo, words, settings, log)

	if cfg.DistributedTimers {
		worker := game.NewDeadlineWorker(redisOpt, coord.HandleTimeout, log)
		defer worker.Shutdown()
		go func() {
			if err := worker.Run(); err != nil {
				log.Fatal().Err(err).Msg("deadline worker")
			}
		}()
	} else {
		localSched.Bind(coord.HandleTimeout)
	}

	tokenManager := crypto.NewJWTManager(cfg.JWTKey, time.Hour*24*7)
	gameHandler := game.NewGameHandler(coord, hub, tokenManager, pgRepo, log)

	r := CreateServer(cfg.AllowedOrigins)
	{
		gameGroup := r.Group("/game")
		gameGroup.Use(gameHandler.RequireAuth())

		gameGroup.GET("/ws", gameHandler.ConnectHandler)
		gameGroup.GET("/rooms/:roomid", gameHandler.RoomHandler)
		gameGroup.GET("/me", gameHandler.MyRoomHandler)
	}

	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}
