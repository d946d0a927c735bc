package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/glebarez/sqlite"
	"github.com/gotd/td/session/tdesktop"
	"github.com/gotd/td/telegram"
	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"github.com/blockedby/tgdown/internal/config"
	"github.com/blockedby/tgdown/internal/logger"
	tgclient "github.com/blockedby/tgdown/internal/telegram"
)

var (
	tdataDir string
	reader   = bufio.NewReader(os.Stdin)

	rootCmd = &cobra.Command{
		Use:   "tg-auth",
		Short: "Log in to telegram and store the session for tgdown",
		Long: `tg-auth creates the telegram session tgdown runs with.

Without a subcommand it offers the telegram desktop session when one is
found and falls back to phone login.`,
		RunE: runInteractive,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&tdataDir, "tdata", "", "Telegram Desktop tdata directory")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "tdata",
		Short: "Import a Telegram Desktop session and print a session string",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			accounts, path, err := readTData()
			if err != nil {
				return err
			}
			fmt.Printf("found %d account(s) at %s\n", len(accounts), path)
			return finish(authWithTData(cfg, accounts))
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "phone",
		Short: "Log in with phone number and login code",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return finish(authWithPhone(cfg))
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "qr",
		Short: "Log in by scanning a QR code with the telegram app",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return authWithQR(cmd.Context(), cfg)
		},
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads tgdown's configuration and prompts for missing api
// credentials.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init("warn", ""); err != nil {
		return nil, err
	}

	if cfg.TGApiID == 0 {
		idStr := prompt("enter your api_id (from https://my.telegram.org): ")
		cfg.TGApiID, err = strconv.Atoi(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid api_id: %w", err)
		}
	}
	if cfg.TGApiHash == "" {
		cfg.TGApiHash = prompt("enter your api_hash: ")
	}
	return cfg, nil
}

func prompt(label string) string {
	fmt.Print(label)
	s, _ := reader.ReadString('\n')
	return strings.TrimSpace(s)
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	fmt.Println("=== telegram auth tool ===")
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	accounts, path, tdataErr := readTData()
	if tdataErr != nil {
		fmt.Printf("no telegram desktop session found (%v)\n", tdataErr)
		if custom := prompt("enter telegram desktop path (or press enter to skip): "); custom != "" {
			tdataDir = custom
			accounts, path, tdataErr = readTData()
		}
	}

	if tdataErr == nil {
		fmt.Printf("\ndetected %d telegram desktop session(s) at: %s\n\n", len(accounts), path)
		fmt.Println("choose authentication method:")
		fmt.Println("  1. use telegram desktop session (recommended)")
		fmt.Println("  2. authenticate with phone number (sms/code)")
		fmt.Println("  3. scan a QR code")
		switch prompt("\nenter choice [1]: ") {
		case "2":
			return finish(authWithPhone(cfg))
		case "3":
			return authWithQR(cmd.Context(), cfg)
		default:
			return finish(authWithTData(cfg, accounts))
		}
	}

	fmt.Println("choose authentication method:")
	fmt.Println("  1. authenticate with phone number (sms/code)")
	fmt.Println("  2. scan a QR code")
	if prompt("\nenter choice [1]: ") == "2" {
		return authWithQR(cmd.Context(), cfg)
	}
	return finish(authWithPhone(cfg))
}

// readTData loads Telegram Desktop accounts from --tdata or the platform
// default location.
func readTData() ([]tdesktop.Account, string, error) {
	path := tdataDir
	if path == "" {
		path = defaultTDataPath()
	} else if filepath.Base(path) != "tdata" {
		path = filepath.Join(path, "tdata")
	}

	accounts, err := tdesktop.Read(path, nil)
	if err != nil {
		return nil, path, err
	}
	if len(accounts) == 0 {
		return nil, path, fmt.Errorf("no accounts in %s", path)
	}
	return accounts, path, nil
}

// defaultTDataPath returns the path to Telegram Desktop data directory
func defaultTDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Telegram Desktop", "tdata")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Telegram Desktop", "tdata")
	default: // linux
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "TelegramDesktop", "tdata")
	}
}

func device(cfg *config.Config) *telegram.DeviceConfig {
	return &telegram.DeviceConfig{
		DeviceModel:   cfg.DeviceModel,
		SystemVersion: cfg.SystemVersion,
		AppVersion:    cfg.AppVersion,
	}
}

// authWithTData authenticates using Telegram Desktop session
func authWithTData(cfg *config.Config, accounts []tdesktop.Account) (*gotgproto.Client, error) {
	idx := 0
	if len(accounts) > 1 {
		fmt.Printf("\nfound %d telegram accounts:\n", len(accounts))
		for i := range accounts {
			fmt.Printf("  %d. Account #%d\n", i+1, i+1)
		}
		if n, err := strconv.Atoi(prompt("\nselect account number [1]: ")); err == nil && n >= 1 && n <= len(accounts) {
			idx = n - 1
		}
	}

	fmt.Println("\nauthenticating with telegram desktop session...")

	return gotgproto.NewClient(
		cfg.TGApiID,
		cfg.TGApiHash,
		gotgproto.ClientTypePhone(""), // empty = use session
		&gotgproto.ClientOpts{
			Session:          sessionMaker.TdataSession(accounts[idx]).Name("tdata_session"),
			DisableCopyright: true,
			InMemory:         true,
			Device:           device(cfg),
		},
	)
}

// authWithPhone logs in with a login code and stores the session in the
// file tgdown reads by default.
func authWithPhone(cfg *config.Config) (*gotgproto.Client, error) {
	phone := cfg.TGPhone
	if phone == "" {
		phone = prompt("enter your phone number (with country code, e.g. +1234567890): ")
	}

	fmt.Println("\nauthenticating... (check telegram for code)")

	client, err := gotgproto.NewClient(
		cfg.TGApiID,
		cfg.TGApiHash,
		gotgproto.ClientTypePhone(phone),
		&gotgproto.ClientOpts{
			Session:          sessionMaker.SqlSession(sqlite.Open(cfg.TGSessionFile)),
			DisableCopyright: true,
			Device:           device(cfg),
		},
	)
	if err == nil {
		fmt.Printf("\nsession stored in %s\n", cfg.TGSessionFile)
	}
	return client, err
}

// authWithQR prints login QR codes until one is scanned and stores the
// session in the session store.
func authWithQR(ctx context.Context, cfg *config.Config) error {
	db, err := tgclient.OpenSessionStore(cfg)
	if err != nil {
		return err
	}

	manager := tgclient.NewManager(cfg, db)
	fmt.Println("scan the code in telegram: settings > devices > link desktop device")

	err = manager.StartQR(ctx, func(url string) {
		fmt.Println()
		qrterminal.GenerateHalfBlock(url, qrterminal.L, os.Stdout)
		fmt.Println("waiting for scan, the code refreshes automatically")
	})
	if err != nil {
		return err
	}

	fmt.Println("\n✓ authentication successful!")
	if cfg.SessionDatabaseURL != "" {
		fmt.Println("session stored in SESSION_DATABASE_URL")
	} else {
		fmt.Printf("session stored in %s\n", cfg.TGSessionFile)
	}
	return nil
}

// finish prints the session string of a logged-in client.
func finish(client *gotgproto.Client, err error) error {
	if err != nil {
		return err
	}
	defer client.Stop()

	sessionString, err := client.ExportStringSession()
	if err != nil {
		return fmt.Errorf("export session: %w", err)
	}

	fmt.Println("\n✓ authentication successful!")
	fmt.Printf("logged in as: @%s\n", client.Self.Username)
	fmt.Println("\nyour session string:")
	fmt.Println("---")
	fmt.Println(sessionString)
	fmt.Println("---")
	fmt.Println("\nadd this to your .env file as TG_SESSION_STRING")
	fmt.Println("\n⚠️  keep this secret! it provides full access to your telegram account")
	return nil
}
