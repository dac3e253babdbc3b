package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// statusCmd queries a running agent's control API and prints a summary.
func statusCmd() *cobra.Command {
	var addr string
	var token string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running agent",
		Run: func(cmd *cobra.Command, args []string) {
			if err := printStatus(addr, token); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:3000", "control API address")
	cmd.Flags().StringVar(&token, "token", os.Getenv("WAREACT_API_TOKEN"), "API token")
	return cmd
}

func printStatus(addr, token string) error {
	url := strings.TrimRight(addr, "/") + "/status"
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("is the agent running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("control API returned %s", resp.Status)
	}

	var body struct {
		Status struct {
			Listening        bool     `json:"listening"`
			Connection       string   `json:"connection"`
			GroupsConfigured []string `json:"groups_configured"`
			GroupsTracked    int      `json:"groups_tracked"`
			SenderPolicy     string   `json:"sender_policy"`
			AllowListActive  bool     `json:"allow_list_active"`
			MinMessageChars  int      `json:"min_message_chars"`
			LedgerSize       int      `json:"ledger_size"`
			Emoji            string   `json:"emoji"`
		} `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	st := body.Status

	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	listener := red("paused")
	if st.Listening {
		listener = green("listening")
	}
	conn := red(st.Connection)
	if st.Connection == "connected" {
		conn = green(st.Connection)
	}

	fmt.Printf("%s %s\n", bold("wareact"), listener)
	fmt.Printf("  connection:   %s\n", conn)
	fmt.Printf("  groups:       %d tracked of %d configured\n", st.GroupsTracked, len(st.GroupsConfigured))
	fmt.Printf("  policy:       %s (allow list active: %v)\n", st.SenderPolicy, st.AllowListActive)
	fmt.Printf("  min chars:    %d\n", st.MinMessageChars)
	fmt.Printf("  ledger:       %d entries\n", st.LedgerSize)
	fmt.Printf("  emoji:        %s\n", st.Emoji)
	return nil
}
