package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"workshopcast/pkg/auth"
	"workshopcast/pkg/logger"
	"workshopcast/pkg/telegram"
	"workshopcast/pkg/ui"
)

var sessionName string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Telegram bot session",
	Long: `Manage the stored Telegram bot token.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variable WORKSHOPCAST_BOT_TOKEN (read only)

Never share your token or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify and store a bot token",
	Long: `Verify a bot token against the Bot API and store it for the session.

The bot must be an administrator of the channel and a member of its
discussion group.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored bot token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	authCmd.PersistentFlags().StringVar(&sessionName, "session", "", "session name (default from config)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name := sessionOrDefault(cfg.Telegram.SessionName)

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}

	prompt := ui.NewConsolePrompter()
	auth.ShowTokenGuide(os.Stdout)

	if manager.Exists(name) {
		answer, err := prompt.Ask(fmt.Sprintf("Session '%s' already exists. Replace its token? (y/N): ", name))
		if err != nil {
			return err
		}
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			return nil
		}
	}

	token, err := prompt.Secret("Bot token: ")
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("token is required")
	}

	fmt.Println("\n🔎 Checking the token...")
	m, err := telegram.Connect(cmd.Context(), cfg.Telegram, token, logger.GetLogger())
	if err != nil {
		return fmt.Errorf("token rejected: %w", err)
	}
	_ = m.Close()

	if err := manager.Store(&auth.Session{Name: name, Token: token}); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Session saved: %s", name))

	fmt.Println("\n🔒 Your token is stored in:")
	if auth.IsKeyringAvailable() {
		fmt.Println("   • System keychain (primary)")
	}
	fmt.Println("   • Encrypted file (backup)")
	fmt.Println("\n⚠️  Never share your token or config files!")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name := sessionOrDefault(cfg.Telegram.SessionName)

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}
	if err := manager.Delete(name); err != nil {
		return fmt.Errorf("failed to remove session %s: %w", name, err)
	}
	ui.PrintSuccess("Session removed: " + name)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}

	sessions, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		ui.PrintInfo("No stored sessions", "Use 'workshopcast auth login' to add one")
		auth.ShowQuickTokenGuide(os.Stdout)
		return nil
	}

	ui.PrintHighlight("Stored Sessions")
	fmt.Println()
	for i, session := range sessions {
		sanitized := auth.SanitizeSession(session)
		fmt.Printf("%d. Session: %s\n", i+1, sanitized.Name)
		fmt.Printf("   Token: %s\n", sanitized.Token)
		if !sanitized.LastModified.IsZero() {
			fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
	return nil
}

func sessionOrDefault(configured string) string {
	if sessionName != "" {
		return sessionName
	}
	return configured
}
