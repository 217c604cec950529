package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	ocrHost   string
	portalUrl string
	debugDir  string
)

var rootCmd = &cobra.Command{
	Use:   "raritp",
	Short: "raritp queries the RAR portal for vehicle inspection records.",
}

func Execute() {
	rootCmd.PersistentFlags().StringVar(&ocrHost, "ocr", "", "host (or full url) of the captcha OCR endpoint")
	rootCmd.PersistentFlags().StringVar(&portalUrl, "portal", "", "override the RAR portal url")
	rootCmd.PersistentFlags().StringVar(&debugDir, "debug-dir", "", "dump downloaded captcha images into this directory")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
