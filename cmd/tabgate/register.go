package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"
)

// Exit codes for the register command.
const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitRejected    = 2
	ExitUnavailable = 3
)

var (
	registerToken      string
	registerGatewayURL string
	registerTimeout    int
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Exchange a TabPFN token for a local API key",
	Long: `Register a TabPFN token with a running TabGate server.
The token is verified against the remote service, encrypted, and stored;
TabGate prints the newly issued API key exactly once. Store it safely,
it cannot be recovered later.

Examples:
  tabgate register -t "<tabpfn token>"
  tabgate register -t "<tabpfn token>" --gateway-url http://tabgate.internal:8080

Exit codes:
  0  success
  1  registration failure
  2  token rejected by the remote service
  3  gateway or remote service unavailable`,
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().StringVarP(&registerToken, "token", "t", "", "TabPFN token to register (required)")
	registerCmd.Flags().StringVar(&registerGatewayURL, "gateway-url", "http://localhost:8080", "TabGate HTTP API URL")
	registerCmd.Flags().IntVar(&registerTimeout, "timeout", 60, "timeout in seconds")

	_ = registerCmd.MarkFlagRequired("token")
}

func runRegister(_ *cobra.Command, _ []string) error {
	if registerToken == "" {
		return fmt.Errorf("token is required: use -t flag")
	}

	// Resolve gateway URL from flag or env.
	gatewayURL := goutils.Env("TABGATE_GATEWAY_URL", registerGatewayURL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(registerTimeout)*time.Second)
	defer cancel()

	reqBody, _ := json.Marshal(map[string]any{
		"tabpfn_token": registerToken,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", gatewayURL+"/v1/auth/setup", bytes.NewReader(reqBody))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitFailure)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach gateway at %s: %v\n", gatewayURL, err)
		os.Exit(ExitUnavailable)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		var result struct {
			APIKey string `json:"api_key"`
		}
		_ = json.Unmarshal(respBody, &result)
		fmt.Println(result.APIKey)
		fmt.Fprintln(os.Stderr, "\nStore this API key safely: it is shown exactly once.")
		os.Exit(ExitSuccess)

	case http.StatusBadRequest:
		fmt.Fprintf(os.Stderr, "Token rejected: %s\n", errorMessage(respBody))
		os.Exit(ExitRejected)

	case http.StatusServiceUnavailable:
		fmt.Fprintf(os.Stderr, "Remote service unavailable: %s\n", errorMessage(respBody))
		os.Exit(ExitUnavailable)

	default:
		fmt.Fprintf(os.Stderr, "Registration failed (HTTP %d): %s\n", resp.StatusCode, errorMessage(respBody))
		os.Exit(ExitFailure)
	}

	return nil
}

// errorMessage extracts the error field from a JSON error body, falling back
// to the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return string(body)
}
