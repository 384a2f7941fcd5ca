package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cryptoadvance/specter-keystore/pkg/keystore"
	"github.com/cryptoadvance/specter-keystore/pkg/workflow"
)

var manageGenerateBits int

var manageCmd = &cobra.Command{
	Use:   "manage",
	Short: "Runs the interactive key storage session",
	Long: `Unlocks the keystore and enters the storage menu: save the loaded
key to internal storage or SD card, load or delete a stored key, or show
the recovery phrase. The session keeps running until you back out.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := unlock(); err != nil {
			return err
		}
		defer ks.Lock()

		ui := newTerminalUI()

		// A fresh session has no key in memory; offer to load one before
		// entering the storage menu.
		if !ks.HasMnemonic() {
			if err := acquireMnemonic(ui); err != nil {
				if errors.Is(err, workflow.ErrCancelled) {
					return nil
				}
				return err
			}
		}

		return workflow.New(ks, ui, log).Run()
	},
}

func init() {
	manageCmd.Flags().IntVar(&manageGenerateBits, "entropy", 128,
		"Entropy bits for generated keys (128 = 12 words, 256 = 24 words)")
}

// acquireMnemonic asks how to bring a key into the session: generate a
// fresh one, type a phrase in, or continue with none (load from storage
// later).
func acquireMnemonic(ui *terminalUI) error {
	choice, err := ui.chooseOne("No key in memory", []menuEntry{
		{text: "Generate a new key", enabled: true},
		{text: "Type in a recovery phrase", enabled: true},
		{text: "Continue without (load from storage)", enabled: true},
	})
	if err != nil {
		return err
	}

	switch choice {
	case 0:
		phrase, err := ks.GenerateMnemonic(manageGenerateBits)
		if err != nil {
			return err
		}
		ui.ShowMnemonic(phrase)
		ui.Alert("Important", "Write these words down. They are shown only on request\nand exist nowhere else until you save the key.")
	case 1:
		phrase, err := ui.enterMnemonic()
		if err != nil {
			return err
		}
		if err := ks.SetMnemonic(phrase, ""); err != nil {
			if errors.Is(err, keystore.ErrInvalidMnemonic) {
				return fmt.Errorf("not a valid recovery phrase")
			}
			return err
		}
		fmt.Println("Recovery phrase loaded.")
	case 2:
	}
	return nil
}
