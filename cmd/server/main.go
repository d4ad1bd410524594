package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/researchkeeper/service/internal/agents"
	"github.com/researchkeeper/service/internal/api"
	"github.com/researchkeeper/service/internal/config"
	"github.com/researchkeeper/service/internal/llm"
	"github.com/researchkeeper/service/internal/models"
	"github.com/researchkeeper/service/internal/services"
	"github.com/researchkeeper/service/internal/store"
	"github.com/researchkeeper/service/internal/tools"
	"github.com/researchkeeper/service/internal/utils"
	"github.com/researchkeeper/service/pkg/embedding"
	"github.com/researchkeeper/service/pkg/vectorstore"
)

func main() {
	log.Println("启动 Research-Keeper 研究服务...")

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// 初始化TraceID系统
	utils.InitTraceIDSystem()

	// 加载配置
	cfg := config.Load()
	log.Printf("配置加载完成: %s", cfg)

	// 设置Gin模式
	if cfg.Debug || cfg.GinMode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建LLM客户端
	llmClient, err := buildLLMClient(cfg)
	if err != nil {
		log.Fatalf("创建LLM客户端失败: %v", err)
	}
	defer llmClient.Close()

	// 网络检索工具（可禁用）
	var searchTool agents.SearchTool
	if cfg.SearchEnabled {
		searchTool = tools.NewWebSearchTool()
		log.Println("网络检索已启用")
	} else {
		log.Println("网络检索已禁用, researcher阶段仅凭模型知识作答")
	}

	// 流水线与进度推送
	executor := agents.NewLLMStageExecutor(llmClient, searchTool)
	executor.SetMaxSources(cfg.MaxSources)
	pipeline := agents.NewPipeline(executor)

	progressHub := api.NewProgressHub()
	pipeline.SetProgressFunc(progressHub.StageProgressFunc())

	// 历史存储
	history, err := buildHistoryStore(cfg)
	if err != nil {
		log.Fatalf("创建历史存储失败: %v", err)
	}
	defer history.Close()

	// 向量存储（可禁用）
	vector, err := buildVectorStore(cfg)
	if err != nil {
		log.Printf("警告: 创建向量存储失败, 向量索引将不可用: %v", err)
		vector = nil
	}
	if vector != nil {
		defer vector.Close()
	}

	// 研究服务
	research := services.NewResearchService(pipeline, history, vector, services.NewPerformanceTracker())
	research.SetQualityThreshold(cfg.QualityThreshold)
	research.SetMaxRetries(cfg.MaxRetries)

	// 创建Gin路由器
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(utils.TraceIDMiddleware())

	// 配置CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "Cache-Control", "X-Requested-With", "X-Trace-ID"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "X-Trace-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// 注册路由
	handler := api.NewHandler(research, cfg)
	handler.RegisterRoutes(router)
	router.GET("/ws/progress", progressHub.HandleProgressWS)

	// 创建HTTP服务器。研究请求涉及多轮LLM调用，读写超时放宽到5分钟。
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  5 * time.Minute,
	}

	// 优雅关闭处理
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("正在关闭服务器...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("服务器关闭时出错: %v", err)
		}
		log.Println("服务器已关闭")
	}()

	log.Printf("Research-Keeper 服务启动在 %s", addr)
	log.Printf("健康检查: http://%s/health", addr)
	log.Printf("研究接口: http://%s/research", addr)
	log.Printf("进度推送: ws://%s/ws/progress", addr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP服务器启动失败: %v", err)
	}
}

// buildLLMClient 按配置创建LLM客户端
func buildLLMClient(cfg *config.Config) (llm.LLMClient, error) {
	provider := llm.LLMProvider(cfg.LLMProvider)

	builder := llm.NewConfigBuilder(provider).WithAPIKey(cfg.LLMAPIKey)
	if cfg.LLMModel != "" {
		builder = builder.WithModel(cfg.LLMModel)
	}
	if cfg.LLMBaseURL != "" {
		builder = builder.WithBaseURL(cfg.LLMBaseURL)
	}

	llmConfig, err := builder.Build()
	if err != nil {
		return nil, err
	}

	factory := llm.NewLLMFactory()
	factory.SetConfig(provider, llmConfig)
	return factory.CreateClient(provider)
}

// buildHistoryStore 按配置创建历史存储后端
func buildHistoryStore(cfg *config.Config) (models.HistoryStore, error) {
	switch cfg.HistoryStoreType {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres历史存储需要配置POSTGRES_DSN")
		}
		return store.NewPostgresHistoryStore(context.Background(), cfg.PostgresDSN)
	case "file", "":
		return store.NewFileHistoryStore(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("不支持的历史存储类型: %s", cfg.HistoryStoreType)
	}
}

// buildVectorStore 按配置创建向量存储，disabled时返回nil
func buildVectorStore(cfg *config.Config) (models.VectorStore, error) {
	storeType := vectorstore.ParseVectorStoreType(cfg.VectorStoreType)
	if storeType == models.VectorStoreTypeDisabled {
		return nil, nil
	}

	provider := embedding.NewService(
		cfg.EmbeddingAPIURL,
		cfg.EmbeddingAPIKey,
		cfg.EmbeddingModel,
		cfg.EmbeddingDimension,
	)

	return vectorstore.CreateVectorStore(&models.VectorStoreConfig{
		Type:        storeType,
		PersistPath: cfg.StoragePath,
		Collection:  cfg.VectorCollection,
		Dimension:   cfg.EmbeddingDimension,
	}, provider)
}
