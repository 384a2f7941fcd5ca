package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cryptoadvance/specter-keystore/internal/config"
	"github.com/cryptoadvance/specter-keystore/pkg/crypto"
	"github.com/cryptoadvance/specter-keystore/pkg/keystore"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initializes the keystore with a fresh device salt",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ks.Initialized() {
			return fmt.Errorf("keystore is already initialized at %s", cfg.InternalPath)
		}

		fmt.Println("Initializing keystore...")

		passphrase1, err := promptPassphrase("Enter passphrase: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(passphrase1)
		passphrase2, err := promptPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(passphrase2)

		if string(passphrase1) != string(passphrase2) {
			return fmt.Errorf("passphrases do not match")
		}

		result := keystore.ValidatePassphrase(string(passphrase1))
		if !result.Valid {
			return fmt.Errorf("passphrase validation failed: %s", result.Warnings[0])
		}
		// Warnings are advisory, not blocking
		fmt.Printf("Passphrase strength: %s\n", result.Strength)
		for _, warning := range result.Warnings {
			fmt.Printf("Warning: %s\n", warning)
		}

		if err := ks.Init(); err != nil {
			return fmt.Errorf("failed to initialize keystore: %w", err)
		}
		if err := config.Save(cfgDir, cfg); err != nil {
			return err
		}

		fmt.Printf("Keystore initialized at %s\n", cfg.InternalPath)
		return nil
	},
}
