package app

import (
	"github.com/spf13/cobra"

	"github.com/xab-mack/dosguard/internal/cli"
)

func BuildRoot() *cobra.Command {
	root := &cobra.Command{Use: "dosguard", Short: "Static DOS-pattern scanner for smart contracts"}
	cli.AddCommands(root)
	return root
}
