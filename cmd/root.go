/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recurry",
	Short: "Curried, serializable chat-bot callbacks",
	Long: `Recurry turns Go functions into serializable chat callbacks: buttons carry
tokens that survive restarts, conversations pause for input and resume from
session state, and oversized payloads overflow into the session store.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
