package cmd

import (
	"context"
	"fmt"

	"PlaySync/core/auth"
	"PlaySync/db"
	"PlaySync/repository"

	"github.com/spf13/cobra"
)

var mediaCmd = &cobra.Command{
	Use:   "media [playListId]",
	Short: "列出媒体目录",
	Long:  `按播放顺序列出播放列表中的媒体；不指定播放列表时列出全部。`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		gdb, err := db.Open(cfg)
		if err != nil {
			return err
		}
		defer db.Close(gdb)
		repo := repository.NewGormMediaRepository(gdb)

		if len(args) == 1 {
			items, err := repo.ListByPlaylist(ctx, args[0])
			if err != nil {
				return err
			}
			for _, item := range items {
				fmt.Printf("%4d  %s  %8.2fs  %s\n", item.SortOrder, item.ID, item.DurationSeconds, item.FilePath)
			}
			return nil
		}

		items, err := repo.ListAll(ctx)
		if err != nil {
			return err
		}
		for _, item := range items {
			fmt.Printf("%-20s %4d  %s  %8.2fs  %s\n", item.PlaylistID, item.SortOrder, item.ID, item.DurationSeconds, item.FilePath)
		}
		return nil
	},
}

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret <secret>",
	Short: "生成系统密钥的bcrypt哈希",
	Long:  `生成可以放入 SECRET_KEYS 或 SECRET_KEYS_FILE 的bcrypt哈希，避免明文保存系统密钥。`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashSecret(args[0])
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mediaCmd)
	rootCmd.AddCommand(hashSecretCmd)
}
