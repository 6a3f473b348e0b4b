package main

import (
	"fmt"
	"strconv"

	"github.com/hairizuan-noorazman/testdroid-appium/cloud"
	"github.com/spf13/cobra"
)

func newDevicesCmd() *cobra.Command {
	var search string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List cloud devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newBootstrapper()
			if err != nil {
				return err
			}
			api, err := b.Cloud()
			if err != nil {
				return err
			}

			devices, err := api.Devices(cmd.Context(), cloud.Query{Search: search, Offset: offset, Limit: limit})
			if err != nil {
				return err
			}

			if flagJSON {
				printJSON(devices)
				return nil
			}

			var rows [][]string
			for _, d := range devices {
				rows = append(rows, []string{
					strconv.FormatInt(d.ID, 10),
					d.DisplayName,
					strconv.FormatBool(d.Locked),
					strconv.FormatBool(d.Online),
				})
			}
			printTable([]string{"ID", "NAME", "LOCKED", "ONLINE"}, rows)
			printMessage(fmt.Sprintf("\nShowing %d devices", len(devices)))
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Filter devices by name")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset for pagination")
	return cmd
}
