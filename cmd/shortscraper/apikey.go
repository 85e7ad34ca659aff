package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"shortscraper/internal/runner"
	"shortscraper/pkg/auth"
	"shortscraper/pkg/ui"
)

var (
	keyName     string
	showFullKey bool
)

// apikeyCmd represents the apikey command
var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage the metadata API key",
	Long: `Manage the optional metadata API key outside the config file.

Keys are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only: SHORTSCRAPER_API_KEY, YOUTUBE_API_KEY)

A key in the config file or SHORTSCRAPER_API_KEY always wins over a stored one.`,
}

var apikeySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the API key securely",
	Long: `Store the API key in the system keychain, or in the encrypted file when no
keychain is available. You will be prompted for the key; it is hidden as you type.`,
	Example: `  # Interactive
  shortscraper apikey set

  # Store a second, named key
  shortscraper apikey set --name backup`,
	Args: cobra.NoArgs,
	Run:  runAPIKeySet,
}

var apikeyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show where the API key comes from",
	Args:  cobra.NoArgs,
	Run:   runAPIKeyShow,
}

var apikeyDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored API key",
	Args:  cobra.NoArgs,
	Run:   runAPIKeyDelete,
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeySetCmd)
	apikeyCmd.AddCommand(apikeyShowCmd)
	apikeyCmd.AddCommand(apikeyDeleteCmd)

	apikeyCmd.PersistentFlags().StringVar(&keyName, "name", auth.DefaultKeyName, "key name")
	apikeyShowCmd.Flags().BoolVar(&showFullKey, "reveal", false, "print the key unmasked")
}

func newKeyManager() *auth.Manager {
	manager, err := auth.NewManager()
	if err != nil {
		fail("Failed to initialize key manager", err)
	}
	return manager
}

func runAPIKeySet(cmd *cobra.Command, args []string) {
	manager := newKeyManager()
	reader := bufio.NewReader(os.Stdin)

	auth.ShowAPIKeyGuide(os.Stdout)
	fmt.Println()

	if existing, source, _ := manager.Retrieve(keyName); existing != nil {
		fmt.Printf("A key named '%s' already exists in %s. Replace it? (y/N): ", keyName, source)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Print("API key: ")
	key, err := readPassword(reader)
	if err != nil {
		fail("Failed to read key", err)
	}

	store, err := manager.Store(&auth.APIKey{
		Name:         keyName,
		Key:          key,
		LastModified: time.Now(),
	})
	if errors.Is(err, auth.ErrInvalidKey) {
		fail("That does not look like an API key", nil)
	}
	if err != nil {
		fail("Failed to store key", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Key '%s' stored in %s", keyName, store))
}

func runAPIKeyShow(cmd *cobra.Command, args []string) {
	manager := newKeyManager()

	key, source, err := manager.Retrieve(keyName)
	if errors.Is(err, auth.ErrKeyNotFound) {
		ui.PrintWarning(fmt.Sprintf("No key named '%s' is stored", keyName))
		fmt.Println("Run 'shortscraper apikey set' to add one.")
		os.Exit(runner.ExitMisconfig)
	}
	if err != nil {
		fail("Failed to read key", err)
	}

	value := auth.Mask(key.Key)
	if showFullKey {
		value = key.Key
	}
	ui.PrintInfo("Name", key.Name)
	ui.PrintInfo("Key", value)
	ui.PrintInfo("Source", source)
	if !key.LastModified.IsZero() {
		ui.PrintInfo("Last modified", key.LastModified.Format(time.RFC1123))
	}

	keys, err := manager.List()
	if err == nil && len(keys) > 1 {
		fmt.Println()
		t := ui.NewTable(os.Stdout)
		t.AppendHeader(table.Row{"Name", "Key", "Last modified"})
		for _, k := range keys {
			t.AppendRow(table.Row{k.Name, auth.Mask(k.Key), k.LastModified.Format(time.DateTime)})
		}
		t.Render()
	}
}

func runAPIKeyDelete(cmd *cobra.Command, args []string) {
	manager := newKeyManager()

	fmt.Printf("Delete key '%s' from every store? (y/N): ", keyName)
	input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
		return
	}

	if err := manager.Delete(keyName); err != nil {
		fail("Failed to delete key", err)
	}
	ui.PrintSuccess(fmt.Sprintf("Key '%s' deleted", keyName))
}

// readPassword reads a line without echo when stdin is a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
