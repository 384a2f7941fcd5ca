package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cryptoadvance/specter-keystore/internal/config"
	"github.com/cryptoadvance/specter-keystore/pkg/audit"
	"github.com/cryptoadvance/specter-keystore/pkg/keystore"
	"github.com/cryptoadvance/specter-keystore/pkg/media"
)

var (
	cfgDirFlag string
	logLevel   string

	cfgDir      string
	cfg         *config.Config
	log         zerolog.Logger
	ks          *keystore.Keystore
	auditLogger *audit.Logger
)

var rootCmd = &cobra.Command{
	Use:   "specterkey",
	Short: "specterkey stores BIP-39 recovery phrases encrypted on internal flash or an SD card",
	Long: `An encrypted keystore for wallet recovery phrases.

Keys are stored AES-256-GCM encrypted under a key derived from your
passphrase, on internal storage or a removable SD card, and are verified
on every save. Nothing ever touches disk in plaintext.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	// PersistentPreRunE wires config, logging, media and the keystore for
	// every subcommand.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfgDir = cfgDirFlag
		if cfgDir == "" {
			cfgDir, err = config.Dir()
			if err != nil {
				return err
			}
		}
		cfg, err = config.LoadOrDefault(cfgDir)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()

		loc := media.NewLocator(cfg.InternalPath, cfg.RemovablePath,
			media.NewDirDriver(cfg.RemovablePath), log)

		if cfg.AuditEnabled {
			auditLogger = audit.NewLogger(cfg.AuditDir(cfgDir))
		}
		ks = keystore.New(loc, auditLogger, log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDirFlag, "config", "", "Config directory (default ~/.specterkey)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(manageCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(auditCmd)
}

// promptPassphrase reads a passphrase without echo.
func promptPassphrase(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	passphrase, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	return passphrase, nil
}

// unlock prompts for the device passphrase and unlocks the keystore.
func unlock() error {
	if !ks.Initialized() {
		return fmt.Errorf("keystore is not initialized, run 'specterkey init' first")
	}
	passphrase, err := promptPassphrase("Enter passphrase: ")
	if err != nil {
		return err
	}
	if err := ks.Unlock(passphrase); err != nil {
		return fmt.Errorf("failed to unlock keystore: %w", err)
	}
	return nil
}
