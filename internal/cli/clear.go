package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every chunk from the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		svc, err := a.ingestService()
		if err != nil {
			return err
		}
		if err := svc.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Index cleared: %s\n", a.location)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
