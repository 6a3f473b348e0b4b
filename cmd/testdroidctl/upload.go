package main

import "github.com/spf13/cobra"

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an application and print its file reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := newBootstrapper()
			if err != nil {
				return err
			}
			api, err := b.Cloud()
			if err != nil {
				return err
			}

			ref, err := api.Upload(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if flagJSON {
				printJSON(map[string]string{"file": ref})
				return nil
			}
			printMessage(ref)
			return nil
		},
	}
}
