package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cryptoadvance/specter-keystore/pkg/audit"
	"github.com/cryptoadvance/specter-keystore/pkg/backup"
	"github.com/cryptoadvance/specter-keystore/pkg/crypto"
	"github.com/cryptoadvance/specter-keystore/pkg/media"
)

var (
	backupMedia       string
	restoreMedia      string
	restoreOnConflict string
	restoreDryRun     bool
	restoreVerifyOnly bool
)

var backupCmd = &cobra.Command{
	Use:   "backup [output file]",
	Short: "Writes an encrypted backup of the stored keys on one media",
	Long: `Bundles every key this device stores on the chosen media into a
single file, wrapped a second time under a separate backup password. The
device salt is included so the backup is restorable on a fresh host.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := media.ParseRoot(backupMedia)
		if err != nil {
			return err
		}
		if err := unlock(); err != nil {
			return err
		}
		defer ks.Lock()

		password, err := promptPassphrase("Enter backup password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(password)
		confirm, err := promptPassphrase("Confirm backup password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(confirm)
		if string(password) != string(confirm) {
			return fmt.Errorf("passwords do not match")
		}

		f, err := os.OpenFile(args[0], os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			return fmt.Errorf("failed to create backup file: %w", err)
		}
		defer f.Close()

		if err := backup.Create(ks, root, backup.CreateOptions{
			Output:   f,
			Password: password,
		}); err != nil {
			os.Remove(args[0])
			return err
		}
		if auditLogger != nil {
			_ = auditLogger.LogSuccess(audit.OpBackupCreate, root.String(), "")
		}

		fmt.Printf("Backup written to %s\n", args[0])
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [backup file]",
	Short: "Restores keys from an encrypted backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := media.ParseRoot(restoreMedia)
		if err != nil {
			return err
		}

		var onConflict backup.ConflictMode
		switch restoreOnConflict {
		case "error":
			onConflict = backup.ConflictError
		case "skip":
			onConflict = backup.ConflictSkip
		case "overwrite":
			onConflict = backup.ConflictOverwrite
		default:
			return fmt.Errorf("invalid conflict mode %q (use error, skip or overwrite)", restoreOnConflict)
		}

		password, err := promptPassphrase("Enter backup password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(password)

		if restoreVerifyOnly {
			result, err := backup.Verify(args[0], password)
			if err != nil {
				return err
			}
			if !result.Valid {
				return fmt.Errorf("backup verification failed: %s", result.Error)
			}
			fmt.Printf("Backup is valid: %d key(s) from %s, created %s\n",
				result.RecordCount, result.Media, result.CreatedAt.Format("2006-01-02 15:04"))
			return nil
		}

		result, err := backup.Restore(args[0], backup.RestoreOptions{
			Locator:    ks.Locator(),
			Root:       root,
			OnConflict: onConflict,
			Password:   password,
			DryRun:     restoreDryRun,
		})
		if err != nil {
			return err
		}

		if result.DryRun {
			fmt.Printf("Dry run: %d key(s) would be restored to %s\n", result.RecordsRestored, root)
			return nil
		}
		fmt.Printf("Restored %d key(s) to %s", result.RecordsRestored, root)
		if result.RecordsSkipped > 0 {
			fmt.Printf(", skipped %d existing", result.RecordsSkipped)
		}
		fmt.Println()
		if result.SaltRestored {
			fmt.Println("Device salt installed; unlock with the original passphrase.")
		}
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVar(&backupMedia, "media", "internal", "Media to back up: internal, sdcard")
	restoreCmd.Flags().StringVar(&restoreMedia, "media", "internal", "Media to restore to: internal, sdcard")
	restoreCmd.Flags().StringVar(&restoreOnConflict, "on-conflict", "error", "Existing record handling: error, skip, overwrite")
	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "Preview without writing")
	restoreCmd.Flags().BoolVar(&restoreVerifyOnly, "verify", false, "Only verify backup integrity")
}
