// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"llm-chat-go/internal/config"
	"llm-chat-go/internal/handler"
	"llm-chat-go/internal/middleware"
	"llm-chat-go/internal/pipeline"
	"llm-chat-go/internal/realtime"
	"llm-chat-go/internal/repository"
	"llm-chat-go/internal/service"
	"llm-chat-go/pkg/database"
	"llm-chat-go/pkg/es"
	"llm-chat-go/pkg/kafka"
	"llm-chat-go/pkg/llm"
	"llm-chat-go/pkg/log"
	"llm-chat-go/pkg/storage"
	"llm-chat-go/pkg/tasks"
	"llm-chat-go/pkg/token"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 后台任务的生命周期与进程一致
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 3. 初始化数据库和 Redis
	db, err := database.Open(cfg.Database.Driver, cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatal("数据库初始化失败", err)
	}
	if cfg.Database.MySQL.AutoMigrate {
		if err := repository.AutoMigrate(db); err != nil {
			log.Fatal("数据库迁移失败", err)
		}
	}
	rdb, err := database.NewRedis(rootCtx, cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatal("Redis 初始化失败", err)
	}

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(rdb)
	folderRepo := repository.NewFolderRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// 5. 大模型供应商：凭证缺失时对应供应商进入 echo 模式
	gen := cfg.AI.Generation
	providerOptions := func(p config.ProviderConfig) llm.Options {
		return llm.Options{
			APIKey:       p.APIKey,
			BaseURL:      p.BaseURL,
			DefaultModel: p.DefaultModel,
			Temperature:  gen.Temperature,
			MaxTokens:    gen.MaxTokens,
		}
	}
	registry := llm.NewRegistry(llm.Credentials{
		OpenAI:    providerOptions(cfg.AI.OpenAI),
		Google:    providerOptions(cfg.AI.Google),
		Anthropic: providerOptions(cfg.AI.Anthropic),
	})
	orchestrator := llm.NewOrchestrator(registry)
	defaults := service.SessionDefaults{Model: cfg.AI.DefaultModel}
	if name, ok := llm.ParseName(cfg.AI.DefaultProvider); ok {
		defaults.Provider = name
	} else {
		log.Warnf("未知的默认供应商 '%s'，使用 %s", cfg.AI.DefaultProvider, llm.DefaultProvider)
	}

	// 6. 可选组件：Elasticsearch、MinIO
	var (
		searchIndex service.MessageIndex
		indexer     pipeline.MessageIndexer
		archives    service.ArchiveStore
	)
	if cfg.Elasticsearch.Enabled {
		esClient, err := es.NewClient(es.Config{
			Addresses: splitList(cfg.Elasticsearch.Addresses),
			Username:  cfg.Elasticsearch.Username,
			Password:  cfg.Elasticsearch.Password,
			IndexName: cfg.Elasticsearch.IndexName,
		})
		if err != nil {
			log.Fatal("Elasticsearch 初始化失败", err)
		}
		if err := esClient.EnsureIndex(rootCtx); err != nil {
			log.Fatal("Elasticsearch 索引创建失败", err)
		}
		searchIndex, indexer = esClient, esClient
	}
	if cfg.MinIO.Enabled {
		store, err := storage.NewArchiveStore(rootCtx, storage.Config{
			Endpoint:        cfg.MinIO.Endpoint,
			AccessKeyID:     cfg.MinIO.AccessKeyID,
			SecretAccessKey: cfg.MinIO.SecretAccessKey,
			UseSSL:          cfg.MinIO.UseSSL,
			BucketName:      cfg.MinIO.BucketName,
		})
		if err != nil {
			log.Fatal("MinIO 初始化失败", err)
		}
		archives = store
	}

	// 7. 完成任务管道：Kafka 启用时异步消费，否则进程内执行
	processor := pipeline.NewProcessor(sessionRepo, messageRepo, indexer, orchestrator, registry)
	runner := tasks.NewRunner(processor, tasks.NewRedisAttemptCounter(rdb), 2*time.Second)
	var completions tasks.Publisher
	var inline *tasks.InlinePublisher
	if cfg.Kafka.Enabled {
		kafkaCfg := kafka.Config{
			Brokers: kafka.ParseBrokers(cfg.Kafka.Brokers),
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}
		producer := kafka.NewProducer(kafkaCfg)
		defer producer.Close()
		completions = producer
		go kafka.StartConsumer(rootCtx, kafkaCfg, runner)
	} else {
		inline = tasks.NewInlinePublisher(rootCtx, runner)
		completions = inline
	}

	// 8. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpireMinutes)*time.Minute,
		time.Duration(cfg.JWT.RefreshTokenExpireDays)*24*time.Hour,
	)
	userService := service.NewUserService(userRepo, tokenRepo, jwtManager)
	sessionService := service.NewSessionService(sessionRepo, messageRepo, folderRepo, groupRepo, archives, defaults)
	hub := realtime.NewHub(sessionService)
	messageService := service.NewMessageService(sessionRepo, messageRepo, hub)
	chatService := service.NewChatService(sessionRepo, messageRepo, orchestrator, hub, completions, defaults)
	searchService := service.NewSearchService(searchIndex, messageRepo)

	// 9. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	handler.RegisterRoutes(r, handler.Handlers{
		Auth:        handler.NewAuthHandler(userService),
		Folder:      handler.NewFolderHandler(service.NewFolderService(folderRepo, sessionRepo)),
		Group:       handler.NewGroupHandler(service.NewGroupService(groupRepo, sessionRepo)),
		Session:     handler.NewSessionHandler(sessionService),
		Message:     handler.NewMessageHandler(messageService, chatService),
		Model:       handler.NewModelHandler(registry),
		Search:      handler.NewSearchHandler(searchService),
		Chat:        handler.NewChatHandler(hub, userService),
		UserService: userService,
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 流式请求在 Shutdown 中自然结束，websocket 需要主动断开
	hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	if inline != nil {
		inline.Wait()
	}
	cancelRoot()
	log.Info("服务已优雅关闭")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
