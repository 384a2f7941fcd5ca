package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cryptoadvance/specter-keystore/pkg/keystore"
	"github.com/cryptoadvance/specter-keystore/pkg/media"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists this device's stored keys on both media",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlock(); err != nil {
			return err
		}
		defer ks.Lock()

		for _, root := range []media.Root{media.Internal, media.Removable} {
			fmt.Printf("%s:\n", root)
			if root == media.Removable && !ks.Locator().Present(root) {
				fmt.Println("  (no card inserted)")
				continue
			}
			records, err := ks.Records(root)
			if errors.Is(err, keystore.ErrNoRecords) {
				fmt.Println("  (no keys)")
				continue
			}
			if err != nil {
				return err
			}
			for _, rec := range records {
				fmt.Printf("  %-20s %s\n", rec.Label, rec.Filename)
			}
		}
		return nil
	},
}
