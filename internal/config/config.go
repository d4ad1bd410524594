// Package config 从环境变量与.env文件加载应用配置。
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	// 服务配置
	ServiceName string
	Port        int
	Debug       bool
	StoragePath string
	Host        string // 服务监听地址
	GinMode     string // Gin运行模式

	// LLM配置
	LLMProvider string // openai, deepseek, qianwen
	LLMAPIKey   string
	LLMModel    string // 为空时使用各提供商默认模型
	LLMBaseURL  string // 为空时使用各提供商默认地址

	// 研究流程配置
	QualityThreshold float64 // 质量阈值，低于此值触发修正重试
	MaxRetries       int     // 最大重试次数
	MaxSources       int     // 检索阶段的最大来源数
	SearchEnabled    bool    // 是否启用网络检索

	// 历史存储配置
	HistoryStoreType string // postgres, file
	PostgresDSN      string

	// 向量存储配置
	VectorStoreType  string // chromem, disabled
	VectorCollection string

	// 嵌入服务配置（OpenAI兼容）
	EmbeddingAPIURL    string
	EmbeddingAPIKey    string
	EmbeddingModel     string
	EmbeddingDimension int
}

// Load 从环境变量加载配置
func Load() *Config {
	// 尝试加载.env文件，优先config/目录，然后兼容根目录
	envPaths := []string{
		"config/.env",
		".env",
	}

	loaded := false
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				log.Printf("成功加载.env文件: %s", path)
				loaded = true
				break
			}
		}
	}

	if !loaded {
		log.Printf("警告: 未找到.env文件，尝试使用系统环境变量")
	}

	config := &Config{
		// 服务配置默认值
		ServiceName: getEnv("SERVICE_NAME", "research-keeper"),
		Port:        getEnvAsInt("PORT", 8090),
		Debug:       getEnvAsBool("DEBUG", false),
		StoragePath: getStoragePathDefault(),
		Host:        getEnv("HOST", "0.0.0.0"),
		GinMode:     getEnv("GIN_MODE", "release"),

		// LLM配置
		LLMProvider: getEnv("LLM_PROVIDER", "openai"),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMModel:    getEnv("LLM_MODEL", ""),
		LLMBaseURL:  getEnv("LLM_BASE_URL", ""),

		// 研究流程配置
		QualityThreshold: getEnvAsFloat("QUALITY_THRESHOLD", 0.65),
		MaxRetries:       getEnvAsInt("MAX_RETRIES", 2),
		MaxSources:       getEnvAsInt("MAX_SOURCES", 5),
		SearchEnabled:    getEnvAsBool("SEARCH_ENABLED", true),

		// 历史存储配置
		HistoryStoreType: getEnv("HISTORY_STORE_TYPE", "file"),
		PostgresDSN:      getEnv("POSTGRES_DSN", ""),

		// 向量存储配置
		VectorStoreType:  getEnv("VECTOR_STORE_TYPE", "disabled"),
		VectorCollection: getEnv("VECTOR_COLLECTION", "research_reports"),

		// 嵌入服务配置
		EmbeddingAPIURL:    getEnv("EMBEDDING_API_URL", "https://api.openai.com/v1/embeddings"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", getEnv("LLM_API_KEY", "")),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),
	}

	// 确保存储路径存在
	if err := ensureDir(config.StoragePath); err != nil {
		log.Printf("警告: 创建存储目录失败: %v", err)
	}

	return config
}

// String 返回配置的字符串表示
func (c *Config) String() string {
	return fmt.Sprintf(
		"服务名称: %s, 端口: %d, 调试模式: %v, 存储路径: %s, LLM: %s, "+
			"质量阈值: %.2f, 最大重试: %d, 历史存储: %s, 向量存储: %s, 嵌入API: %s",
		c.ServiceName, c.Port, c.Debug, c.StoragePath, c.LLMProvider,
		c.QualityThreshold, c.MaxRetries, c.HistoryStoreType, c.VectorStoreType,
		maskString(c.EmbeddingAPIURL),
	)
}

// 从环境变量获取字符串值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// 从环境变量获取整数值
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return defaultValue
}

// 从环境变量获取布尔值
func getEnvAsBool(key string, defaultValue bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return defaultValue
}

// 从环境变量获取浮点值
func getEnvAsFloat(key string, defaultValue float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return defaultValue
}

// 确保目录存在
func ensureDir(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, 0755)
	}
	return nil
}

// 掩码字符串，用于日志输出安全
func maskString(input string) string {
	if len(input) <= 8 {
		return "***"
	}
	return input[:4] + "..." + input[len(input)-4:]
}

// 获取存储路径的默认值（使用操作系统标准应用数据目录）
func getStoragePathDefault() string {
	appName := "research-keeper"

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Printf("警告: 无法获取用户主目录: %v", err)
		return "./data"
	}

	var dataPath string
	switch runtime.GOOS {
	case "darwin":
		dataPath = filepath.Join(homeDir, "Library", "Application Support", appName)
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			dataPath = filepath.Join(appData, appName)
		} else {
			dataPath = filepath.Join(homeDir, "AppData", "Roaming", appName)
		}
	default: // Linux和其他UNIX系统
		dataPath = filepath.Join(homeDir, ".local", "share", appName)
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataPath = filepath.Join(xdgDataHome, appName)
		}
	}

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		log.Printf("警告: 创建数据目录失败: %v", err)

		fallbackPath := filepath.Join(homeDir, "."+appName)
		if err := os.MkdirAll(fallbackPath, 0755); err != nil {
			return "./data"
		}
		return fallbackPath
	}

	return dataPath
}
