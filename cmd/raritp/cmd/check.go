package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"raritp-backend/lib/ocr"
	"raritp-backend/lib/scrapers/rarom"
	"raritp-backend/lib/timezone"
	"raritp-backend/services/itp"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

func debugSink(dir string) rarom.CaptchaSink {
	if dir == "" {
		return nil
	}
	return func(vin string, attempt int, image []byte) {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			log.Println("failed to create debug dir:", err)
			return
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_attempt%d.png", vin, attempt))
		err = os.WriteFile(path, image, 0644)
		if err != nil {
			log.Println("failed to write captcha image:", err)
		}
	}
}

var checkCmd = &cobra.Command{
	Use:   "check <vin>...",
	Short: "Checks the inspection status of the given VINs against the RAR portal.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if ocrHost == "" {
			log.Fatal("an OCR endpoint is required, pass one with --ocr")
		}

		client, err := rarom.NewClient(rarom.ClientOptions{
			BaseUrl:     portalUrl,
			Solver:      ocr.NewClient(ocr.EndpointFromHost(ocrHost)),
			CaptchaSink: debugSink(debugDir),
		})
		if err != nil {
			log.Fatal(err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"VIN", "Status", "Expires", "Days Left"})

		for _, vin := range args {
			outcome, err := client.Check(cmd.Context(), vin)
			if err != nil {
				log.Fatal(err)
			}

			daysLeft := "-"
			if days, ok := itp.DaysUntil(outcome.ExpirationDate, timezone.Now()); ok {
				daysLeft = fmt.Sprintf("%d", days)
			}
			t.AppendRow(table.Row{vin, outcome.Status, outcome.ExpirationDate, daysLeft})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
