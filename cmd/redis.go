package cmd

import (
	"context"
	"fmt"

	"PlaySync/cache"
	"PlaySync/db"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，并列出持久化的管理员令牌数量。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		client, err := db.ConnectRedis(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到Redis: %w", err)
		}
		defer client.Close()
		fmt.Println("Redis连接成功！")

		tokens, err := cache.NewTokenCache(client).All(ctx)
		if err != nil {
			return fmt.Errorf("读取管理员令牌失败: %w", err)
		}
		fmt.Printf("已持久化的管理员令牌: %d\n", len(tokens))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
