package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"taskboard-api/api"
	"taskboard-api/service"
	"taskboard-api/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	usersTableName := os.Getenv("USERS_TABLE")
	boardsTableName := os.Getenv("BOARDS_TABLE")
	tasksTableName := os.Getenv("TASKS_TABLE")
	reconcileQueueName := os.Getenv("RECONCILE_QUEUE")
	if connStr == "" || usersTableName == "" || boardsTableName == "" || tasksTableName == "" || reconcileQueueName == "" {
		log.Fatal("missing storage config")
	}
	base, err := storage.New(connStr, usersTableName, boardsTableName, tasksTableName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	queue, err := storage.NewReconcileQueue(connStr, reconcileQueueName)
	if err != nil {
		log.Fatalf("queue: %v", err)
	}

	var store service.Store = base
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			parts := strings.Split(redisConn, ",")
			redisOpts = &redis.Options{Addr: parts[0]}
			for _, p := range parts[1:] {
				kv := strings.SplitN(p, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch strings.ToLower(kv[0]) {
				case "password":
					redisOpts.Password = kv[1]
				case "ssl":
					if strings.ToLower(kv[1]) == "true" {
						redisOpts.TLSConfig = &tls.Config{}
					}
				}
			}
		}
		ttl := 5 * time.Minute
		if v := os.Getenv("CACHE_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid CACHE_TTL: %v", err)
			}
			ttl = d
		}
		store = storage.NewCache(base, redis.NewClient(redisOpts), ttl)
	}

	testMode := os.Getenv("AUTH_TEST_MODE") == "1"
	var auth *api.Auth
	if testMode {
		auth = api.NewAuth(nil, "", "")
	} else {
		jwtAudience := os.Getenv("AUTH0_AUDIENCE")
		domain := os.Getenv("AUTH0_DOMAIN")
		if jwtAudience == "" || domain == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+domain+"/")
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	logger := log.New()
	members := service.NewMembership(store, queue, logger)
	boards := service.NewBoardService(store, members, queue, logger)
	tasks := service.NewTaskService(store, queue, logger)
	users := service.NewDirectory(store, nil, logger)

	reconcileInterval := 5 * time.Second
	if v := os.Getenv("RECONCILE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid RECONCILE_INTERVAL: %v", err)
		}
		reconcileInterval = d
	}
	reconciler := service.NewReconciler(queue, store, members, logger, reconcileInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go reconciler.Run(ctx)

	requestTimeout := 30 * time.Second
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid REQUEST_TIMEOUT: %v", err)
		}
		requestTimeout = d
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echoprometheus.NewMiddleware("taskboard_api"))
	e.Use(api.RequestTimeoutMiddleware(requestTimeout))
	e.GET("/metrics", echoprometheus.NewHandler())

	svc := api.Services{Boards: boards, Tasks: tasks, Users: users}
	api.Register(e, svc, auth, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	go func() {
		if err := e.Start(listenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorf("tracer shutdown: %v", err)
	}
}
