// cmd/eagerclean-watch/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowforge/eagerclean/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:   "eagerclean-watch",
	Short: "Terminal dashboard over a running eagerclean serve's status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		return tui.New(addr).Run()
	},
}

func main() {
	rootCmd.Flags().String("addr", "http://127.0.0.1:8090", "base URL of the eagerclean status API")
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
