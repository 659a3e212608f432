package cmd

import (
	"PlaySync/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动PlaySync服务器",
	Long:  `启动HTTP管理接口、媒体文件服务和WebSocket事件通道，并运行播放推进循环`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
