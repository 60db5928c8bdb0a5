// Package cli implements the Cobra command tree for the wpcv CLI.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "wpcv",
		Short:         "Send prompts to LLM agents and apply the file changes they propose",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	rootCmd.PersistentFlags().String("server", "", "use the wpcv server at this address instead of running in-process")
	rootCmd.PersistentFlags().StringP("agent", "a", "", "agent to use")

	rootCmd.AddCommand(newPromptCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newAgentsCmd())
	rootCmd.AddCommand(newConversationsCmd())
	rootCmd.AddCommand(newLogCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStopCmd())
	rootCmd.AddCommand(newPsCmd())
	rootCmd.AddCommand(newInitCmd())

	return rootCmd
}
