package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

// client issues authenticated JSON requests against the vault API.
type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newClient(c *cli.Context) *client {
	return &client{
		baseURL: strings.TrimRight(c.String("api"), "/"),
		apiKey:  c.String("key"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) do(ctx context.Context, method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling API: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, payload, "", "  "); err != nil {
		pretty.Write(payload)
	}
	fmt.Println(pretty.String())

	if resp.StatusCode >= 400 {
		return cli.Exit(fmt.Sprintf("API returned %s", resp.Status), 1)
	}
	return nil
}

func parseWeights(args []string) (map[string]uint32, error) {
	weights := make(map[string]uint32, len(args))
	for _, arg := range args {
		name, val, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("weight %q is not in name=bps form", arg)
		}
		bps, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("weight %q: %w", arg, err)
		}
		weights[name] = uint32(bps)
	}
	return weights, nil
}

func main() {
	app := &cli.App{
		Name:  "ovira-admin",
		Usage: "operate vaults over the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Value:   "http://localhost:8080",
				Usage:   "base URL of the vault API",
				EnvVars: []string{"OVIRA_API_URL"},
			},
			&cli.StringFlag{
				Name:    "key",
				Usage:   "admin API key",
				EnvVars: []string{"ADMIN_API_KEY"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "initialize a vault for an asset",
				ArgsUsage: "ASSET POOL [POOL...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "caller", Required: true, Usage: "admin identity"},
					&cli.UintFlag{Name: "performance-fee-bps", Value: 0},
					&cli.UintFlag{Name: "management-fee-bps", Value: 0},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return cli.Exit("usage: init ASSET POOL [POOL...]", 1)
					}
					return newClient(c).do(c.Context, http.MethodPost, "/api/v1/vaults", map[string]any{
						"caller":            c.String("caller"),
						"assetId":           c.Args().Get(0),
						"performanceFeeBps": c.Uint("performance-fee-bps"),
						"managementFeeBps":  c.Uint("management-fee-bps"),
						"pools":             c.Args().Slice()[1:],
					})
				},
			},
			{
				Name:      "deposit",
				Usage:     "deposit assets into a vault",
				ArgsUsage: "ASSET AMOUNT",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "caller", Required: true, Usage: "depositor identity"},
				},
				Action: func(c *cli.Context) error {
					asset, amount, err := assetAmountArgs(c)
					if err != nil {
						return err
					}
					return newClient(c).do(c.Context, http.MethodPost, "/api/v1/vaults/"+asset+"/deposit", map[string]any{
						"caller": c.String("caller"),
						"amount": amount,
					})
				},
			},
			{
				Name:      "withdraw",
				Usage:     "withdraw assets from a vault",
				ArgsUsage: "ASSET AMOUNT",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "caller", Required: true, Usage: "withdrawer identity"},
				},
				Action: func(c *cli.Context) error {
					asset, amount, err := assetAmountArgs(c)
					if err != nil {
						return err
					}
					return newClient(c).do(c.Context, http.MethodPost, "/api/v1/vaults/"+asset+"/withdraw", map[string]any{
						"caller": c.String("caller"),
						"amount": amount,
					})
				},
			},
			{
				Name:      "accrue",
				Usage:     "accrue management and performance fees",
				ArgsUsage: "ASSET",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "caller", Required: true, Usage: "admin identity"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("usage: accrue ASSET", 1)
					}
					return newClient(c).do(c.Context, http.MethodPost, "/api/v1/vaults/"+c.Args().Get(0)+"/accrue", map[string]any{
						"caller": c.String("caller"),
					})
				},
			},
			{
				Name:      "rebalance",
				Usage:     "update pool allocation weights",
				ArgsUsage: "ASSET POOL=BPS [POOL=BPS...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "caller", Required: true, Usage: "admin identity"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return cli.Exit("usage: rebalance ASSET POOL=BPS [POOL=BPS...]", 1)
					}
					weights, err := parseWeights(c.Args().Slice()[1:])
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					return newClient(c).do(c.Context, http.MethodPost, "/api/v1/vaults/"+c.Args().Get(0)+"/rebalance", map[string]any{
						"caller":  c.String("caller"),
						"weights": weights,
					})
				},
			},
			{
				Name:      "fund",
				Usage:     "credit a user's custody account (on-ramp settlement)",
				ArgsUsage: "ASSET OWNER AMOUNT",
				Action: func(c *cli.Context) error {
					if c.NArg() != 3 {
						return cli.Exit("usage: fund ASSET OWNER AMOUNT", 1)
					}
					amount, err := strconv.ParseUint(c.Args().Get(2), 10, 64)
					if err != nil {
						return cli.Exit("invalid amount: "+c.Args().Get(2), 1)
					}
					return newClient(c).do(c.Context, http.MethodPost, "/api/v1/custody/credit", map[string]any{
						"assetId": c.Args().Get(0),
						"owner":   c.Args().Get(1),
						"amount":  amount,
					})
				},
			},
			{
				Name:      "state",
				Usage:     "show vault state",
				ArgsUsage: "ASSET",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("usage: state ASSET", 1)
					}
					return newClient(c).do(c.Context, http.MethodGet, "/api/v1/vaults/"+c.Args().Get(0), nil)
				},
			},
			{
				Name:      "position",
				Usage:     "show a user's position",
				ArgsUsage: "ASSET OWNER",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit("usage: position ASSET OWNER", 1)
					}
					return newClient(c).do(c.Context, http.MethodGet,
						"/api/v1/vaults/"+c.Args().Get(0)+"/positions/"+c.Args().Get(1), nil)
				},
			},
			{
				Name:      "events",
				Usage:     "list recent vault events",
				ArgsUsage: "ASSET",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("usage: events ASSET", 1)
					}
					return newClient(c).do(c.Context, http.MethodGet, "/api/v1/vaults/"+c.Args().Get(0)+"/events", nil)
				},
			},
			{
				Name:      "indicators",
				Usage:     "show computed indicators for a vault",
				ArgsUsage: "ASSET",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("usage: indicators ASSET", 1)
					}
					return newClient(c).do(c.Context, http.MethodGet, "/api/v1/vaults/"+c.Args().Get(0)+"/indicators", nil)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func assetAmountArgs(c *cli.Context) (string, uint64, error) {
	if c.NArg() != 2 {
		return "", 0, cli.Exit(fmt.Sprintf("usage: %s ASSET AMOUNT", c.Command.Name), 1)
	}
	amount, err := strconv.ParseUint(c.Args().Get(1), 10, 64)
	if err != nil {
		return "", 0, cli.Exit("invalid amount: "+c.Args().Get(1), 1)
	}
	return c.Args().Get(0), amount, nil
}
