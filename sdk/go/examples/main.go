package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdk "github.com/hewenyu/medml-registry/sdk/go"
)

func main() {
	// 配置SDK客户端
	config := &sdk.Config{
		ServerAddr:  "localhost:9000",
		ServiceID:   "breast_cancer",
		ServiceName: "乳腺癌风险预测服务",
		Version:     "1.2.0",
		Description: "基于随机森林的乳腺癌风险评估模型",
		BaseURL:     "http://127.0.0.1:8000",
		Port:        8000,
		Endpoints: map[string]string{
			"health":  "/health",
			"predict": "/api/v1/predict",
		},
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"age":         map[string]interface{}{"type": "number"},
				"tumor_size":  map[string]interface{}{"type": "number"},
				"node_status": map[string]interface{}{"type": "integer"},
			},
		},
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"risk_score": map[string]interface{}{"type": "number"},
				"risk_level": map[string]interface{}{"type": "string"},
			},
		},
		Tags: []string{"cancer", "classification", "breast"},
		Capabilities: map[string]interface{}{
			"model_type":    "random_forest",
			"batch_support": false,
		},
		HeartbeatInterval: 30 * time.Second,
		Timeout:           5 * time.Second,
		RetryCount:        3,
	}

	// 创建SDK客户端
	client, err := sdk.NewClient(config)
	if err != nil {
		log.Fatalf("创建SDK客户端失败: %v", err)
	}

	// 注册服务
	ctx := context.Background()
	stored, err := client.Register(ctx)
	if err != nil {
		log.Fatalf("服务注册失败: %v", err)
	}
	log.Printf("服务注册成功，服务ID: %s, 注册时间: %s",
		client.ServiceID(), stored.RegisteredAt.Format(time.RFC3339))

	// 启动心跳
	client.StartHeartbeat()
	log.Printf("心跳任务已启动，间隔: %s", config.HeartbeatInterval)

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	log.Println("服务已启动，按Ctrl+C终止...")
	<-quit

	// 优雅关闭：停止心跳并注销服务
	log.Println("正在关闭服务...")
	if err := client.Close(ctx); err != nil {
		log.Printf("关闭SDK客户端失败: %v", err)
	}
	log.Println("服务已关闭")
}
