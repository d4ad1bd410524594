// Package utils 提供TraceID日志链路支持。
package utils

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"runtime"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TraceID 键名
const TraceIDKey = "traceId"

// goroutine local storage for TraceID
var (
	traceIDMap   = make(map[uint64]string)
	traceIDMutex = sync.RWMutex{}
)

// TraceIDWriter 自定义Writer，拦截并添加TraceID到日志
type TraceIDWriter struct {
	originalWriter io.Writer
	timeRegex      *regexp.Regexp
}

func NewTraceIDWriter(originalWriter io.Writer) *TraceIDWriter {
	return &TraceIDWriter{
		originalWriter: originalWriter,
		// 匹配Go标准log的时间戳格式：2025/07/12 11:24:30
		timeRegex: regexp.MustCompile(`^(\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2})\s`),
	}
}

func (w *TraceIDWriter) Write(p []byte) (n int, err error) {
	logLine := string(p)

	traceID := GetTraceID()
	if traceID != "" && w.timeRegex.MatchString(logLine) {
		logLine = w.timeRegex.ReplaceAllString(logLine, fmt.Sprintf("$1 【%s】", traceID))
	}

	return w.originalWriter.Write([]byte(logLine))
}

// 生成TraceID
func GenerateTraceID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return fmt.Sprintf("%x", bytes)
}

// 获取当前goroutine ID
func getGoroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]

	// stack trace格式: "goroutine 123 [running]:"
	var gid uint64
	fmt.Sscanf(string(b), "goroutine %d ", &gid)
	return gid
}

// 设置当前goroutine的TraceID
func SetTraceID(traceID string) {
	gid := getGoroutineID()
	traceIDMutex.Lock()
	traceIDMap[gid] = traceID
	traceIDMutex.Unlock()
}

// 获取当前goroutine的TraceID
func GetTraceID() string {
	gid := getGoroutineID()
	traceIDMutex.RLock()
	traceID := traceIDMap[gid]
	traceIDMutex.RUnlock()
	return traceID
}

// 清理当前goroutine的TraceID
func ClearTraceID() {
	gid := getGoroutineID()
	traceIDMutex.Lock()
	delete(traceIDMap, gid)
	traceIDMutex.Unlock()
}

// TraceID Hook for logrus
type TraceIDHook struct{}

// Levels 返回适用的日志级别
func (hook *TraceIDHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire 在每次日志记录时触发
func (hook *TraceIDHook) Fire(entry *logrus.Entry) error {
	if traceID := GetTraceID(); traceID != "" {
		entry.Data[TraceIDKey] = traceID
	}
	return nil
}

// 初始化TraceID系统：标准log包与logrus统一走带TraceID的Writer
func InitTraceIDSystem() {
	traceIDWriter := NewTraceIDWriter(os.Stdout)
	log.SetOutput(traceIDWriter)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
		ForceColors:     false,
		DisableColors:   true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return "", fmt.Sprintf("%s:%d", f.File, f.Line)
		},
	})
	logrus.SetReportCaller(true)
	logrus.AddHook(&TraceIDHook{})
	logrus.SetOutput(traceIDWriter)

	log.Printf("TraceID系统初始化完成 - 支持标准log包和logrus双重输出")
}

// Gin中间件：TraceID处理
func TraceIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从请求头获取TraceID，如果没有则生成新的
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = GenerateTraceID()
		}

		SetTraceID(traceID)
		c.Set(TraceIDKey, traceID)
		c.Header("X-Trace-ID", traceID)

		c.Next()

		// 请求处理完成后清理TraceID
		ClearTraceID()
	}
}

// 从Gin上下文获取TraceID
func GetTraceIDFromGin(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		return traceID.(string)
	}
	return ""
}

// 从标准context获取TraceID
func GetTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// 将TraceID添加到标准context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}
