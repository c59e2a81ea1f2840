package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realtime_chat_server/internal/config"
	dao "realtime_chat_server/internal/dao/mysql"
	myredis "realtime_chat_server/internal/dao/redis"
	"realtime_chat_server/internal/gateway/websocket"
	"realtime_chat_server/internal/handler"
	"realtime_chat_server/internal/https_server"
	"realtime_chat_server/internal/infrastructure/auth"
	"realtime_chat_server/internal/infrastructure/logger"
	"realtime_chat_server/internal/infrastructure/mq"
	"realtime_chat_server/internal/router"
	"realtime_chat_server/internal/service"
	"realtime_chat_server/internal/service/chat"
	"realtime_chat_server/internal/service/presence"
	"realtime_chat_server/pkg/util/jwt"
	"realtime_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer zap.L().Sync()
	zap.L().Info("日志初始化成功")

	// 3. 初始化数据库
	db, repos := dao.Init(&conf.MysqlConfig)
	zap.L().Info("数据库初始化成功")

	// 4. 初始化 Redis，未启用时为 nil
	cache := myredis.Init(&conf.RedisConfig)

	// 5. 初始化 JWT 与 ID 生成
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry, conf.JWTConfig.Issuer)
	snowflake.Init(conf.SnowflakeConfig.MachineID)

	// 6. 初始化广播总线
	var broker websocket.MessageBroker
	if conf.KafkaConfig.MessageMode == "kafka" {
		if conf.AutoCreateTopic {
			if err := mq.CreateTopic(conf.KafkaConfig); err != nil {
				zap.L().Error("create kafka topic failed", zap.Error(err))
			}
		}
		broker = mq.NewKafkaBroker(conf.KafkaConfig)
	} else {
		broker = websocket.NewChannelBroker()
	}
	hub := websocket.NewHub()
	dispatcher := websocket.NewDispatcher(hub, broker)
	zap.L().Info("广播总线初始化成功", zap.String("mode", conf.KafkaConfig.MessageMode))

	// 7. 初始化 Service 层 (依赖注入)
	chatOpts := chat.OptionsFromConfig(conf)
	chatOpts.Stash = chat.NewLocalFileStash(conf.StaticFilePath, https_server.StaticPrefix)
	presenceOpts := presence.OptionsFromConfig(conf)
	// cache 为 nil 指针时不能直接赋给接口字段
	if cache != nil {
		chatOpts.Limiter = cache
		presenceOpts.Cache = cache
	}
	svc := service.NewServices(service.Deps{
		Repos:           repos,
		Bus:             dispatcher,
		Chat:            chatOpts,
		Presence:        presenceOpts,
		TypingTimeout:   conf.TypingConfig.Timeout,
		ReclaimInterval: time.Hour,
	})
	zap.L().Info("Service 层初始化成功")

	// 8. 初始化网关与 HTTP 服务器
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Fatal("init validator translator failed", zap.Error(err))
	}
	resolver := auth.NewJWTResolver()
	gateway := websocket.NewGateway(hub, resolver, svc, websocket.Options{Translator: handler.Trans})
	handlers := handler.NewHandlers(svc, gateway)
	policy := auth.NewRolePolicy(conf.PermissionConfig.Roles, "user")
	engine := https_server.Init(conf, router.NewRouter(handlers, resolver, policy))

	// 9. 启动后台任务与服务
	ctx, cancel := context.WithCancel(context.Background())
	background := make(chan struct{}, 2)
	go func() {
		dispatcher.Run()
		background <- struct{}{}
	}()
	go func() {
		svc.Run(ctx)
		background <- struct{}{}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler: engine,
	}
	go func() {
		zap.L().Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	// 设置信号监听
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("关闭服务器...")

	// 先断开 WebSocket，等各连接完成离线清理，再关闭总线和存储
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	hub.Close()
	if err := hub.Wait(shutdownCtx); err != nil {
		zap.L().Warn("wait ws connections cleanup timeout", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("server shutdown failed", zap.Error(err))
	}

	cancel()
	svc.Close()
	if err := broker.Close(); err != nil {
		zap.L().Error("close broker failed", zap.Error(err))
	}
	for i := 0; i < 2; i++ {
		select {
		case <-background:
		case <-shutdownCtx.Done():
		}
	}

	if cache != nil {
		if err := cache.Close(); err != nil {
			zap.L().Error("close redis failed", zap.Error(err))
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	zap.L().Info("服务器已关闭")
}
