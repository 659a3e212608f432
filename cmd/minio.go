package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"PlaySync/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioStats  bool
	minioDelete string
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看和管理MinIO存储桶中的媒体文件，支持列出文件、查看统计信息、删除文件。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewMinioStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}

		switch {
		case minioDelete != "":
			if err := store.Remove(ctx, minioDelete); err != nil {
				return fmt.Errorf("删除文件失败: %w", err)
			}
			fmt.Printf("已删除: %s\n", minioDelete)
		case minioStats:
			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("获取存储桶统计信息失败: %w", err)
			}
			fmt.Printf("存储桶: %s\n", store.Bucket())
			fmt.Printf("文件总数: %d\n", stats.TotalObjects)
			fmt.Printf("总大小: %.2f MB\n", float64(stats.TotalSize)/(1024*1024))
			if !stats.LastModified.IsZero() {
				fmt.Printf("最后修改: %s\n", stats.LastModified.Format(time.RFC3339))
			}
		default:
			objects, err := store.List(ctx)
			if err != nil {
				return fmt.Errorf("列出文件失败: %w", err)
			}
			for _, o := range objects {
				if !strings.HasPrefix(o.Key, minioPrefix) {
					continue
				}
				fmt.Printf("%-60s %10d %s\n", o.Key, o.Size, o.LastModified.Format(time.RFC3339))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示存储桶统计信息")
	minioCmd.Flags().StringVarP(&minioDelete, "delete", "d", "", "删除指定文件")

	minioCmd.Example = `  # 列出所有文件
  playsync minio

  # 按前缀过滤文件
  playsync minio -p "3f2a"

  # 显示存储桶统计信息
  playsync minio -s

  # 删除文件
  playsync minio -d "3f2a..._song.mp3"`
}
