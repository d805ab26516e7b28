package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sanidhya49/Invested/auth"
	"github.com/Sanidhya49/Invested/finance"
	"github.com/Sanidhya49/Invested/mockserver"
	"github.com/Sanidhya49/Invested/types"
	"github.com/Sanidhya49/Invested/websocket"
)

var phonesCmd = &cobra.Command{
	Use:   "phones",
	Short: "List the mock provider's test phone numbers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PHONE\tSCENARIO")
		for _, u := range mockserver.TestUsers {
			fmt.Fprintf(tw, "%s\t%s\n", u.Phone, u.Scenario)
		}
		return tw.Flush()
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token [phone]",
	Short: "Mint a backend access token and an agents bridge token with SECRET_KEY",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := phone
		if len(args) == 1 {
			p = args[0]
		}
		issuer := &auth.Issuer{Secret: cfg.SecretKey, TTL: cfg.AccessTokenTTL()}
		access, err := issuer.AccessToken(p)
		if err != nil {
			return err
		}
		bridge, err := issuer.BridgeToken(p)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"phone":          p,
			"access_token":   access,
			"firebase_token": bridge,
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in through the backend and print the access token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tok, err := login(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

var subscriptionsCmd = &cobra.Command{
	Use:   "subscriptions <bank_transactions.json>",
	Short: "Run subscription detection over a bank transactions file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bank, err := readJSONObject(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"detected":    finance.DetectSubscriptions(bank, finance.DefaultToday),
			"auto_debits": finance.AutoDebitSubscriptions(bank, time.Now()),
		})
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the Oracle a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"question": strings.Join(args, " ")}
		return callAgent(cmd, http.MethodPost, "/agents/oracle/chat", body)
	},
}

var agentPaths = map[string]string{
	"guardian":   "/agents/guardian/alerts",
	"catalyst":   "/agents/catalyst/tips",
	"strategist": "/agents/strategist/portfolio",
	"status":     "/agents/status",
}

var agentCmd = &cobra.Command{
	Use:       "agent <guardian|catalyst|strategist|status>",
	Short:     "Run one of the agents for the current phone",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"guardian", "catalyst", "strategist", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path, ok := agentPaths[args[0]]
		if !ok {
			return fmt.Errorf("unknown agent %q", args[0])
		}
		return callAgent(cmd, http.MethodGet, path, nil)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print live notifications from the agents server websocket",
	RunE: func(cmd *cobra.Command, _ []string) error {
		issuer := &auth.Issuer{Secret: cfg.SecretKey}
		tok, err := issuer.BridgeToken(phone)
		if err != nil {
			return err
		}
		wsURL, err := websocketURL(serverURL)
		if err != nil {
			return err
		}
		sub, err := websocket.NewSubscriber(wsURL, tok)
		if err != nil {
			return err
		}
		sub.OnConnect = func() { fmt.Fprintln(cmd.ErrOrStderr(), "connected to", wsURL) }
		sub.OnDisconnect = func(err error) { fmt.Fprintln(cmd.ErrOrStderr(), "disconnected:", err) }

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return sub.Run(ctx, func(m types.WebSocketMessage) {
			_ = printJSON(cmd.OutOrStdout(), m)
		})
	},
}

// websocketURL maps an http(s) base URL to the agents /ws endpoint.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func login(ctx context.Context) (string, error) {
	form := url.Values{"username": {phone}, "password": {"123456"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(serverURL, "/")+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := doJSON(req, &out); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return out.AccessToken, nil
}

func callAgent(cmd *cobra.Command, method, path string, body any) error {
	tok, err := login(cmd.Context())
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(cmd.Context(), method, strings.TrimRight(serverURL, "/")+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	var out any
	if err := doJSON(req, &out); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func doJSON(req *http.Request, out any) error {
	client := &http.Client{Timeout: 90 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}

func readJSONObject(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
