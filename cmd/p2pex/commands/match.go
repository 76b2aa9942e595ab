package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/wonny/p2pex/backend/internal/api/handlers"
	"github.com/wonny/p2pex/backend/internal/contracts"
	"github.com/wonny/p2pex/backend/internal/matching"
	"github.com/wonny/p2pex/backend/internal/orderbook"
	"github.com/wonny/p2pex/backend/pkg/config"
	"github.com/wonny/p2pex/backend/pkg/httputil"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find the best counter-order",
	Long: `Run the matching engine once and print the result as JSON.

Orders come from a local JSON file (--orders) or a running API server (--server).
With --chain the file holds indexer orders (order_id, exchange_rate, from_crypto, ...).

Example:
  go run ./cmd/p2pex match --orders orders.json --amount 100 --side buy --requester 0xabc
  go run ./cmd/p2pex match --server http://localhost:8080 --amount 100 --side sell --requester 0xabc`,
	RunE: runMatch,
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Quote a quick trade",
	Long: `Estimate the rate and fees for a trade without committing to a maker.

Example:
  go run ./cmd/p2pex estimate --orders orders.json --amount 100 --side buy`,
	RunE: runEstimate,
}

var (
	matchOrdersFile string
	matchChain      bool
	matchServer     string
	matchAmount     string
	matchSide       string
	matchRequester  string
)

func init() {
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(estimateCmd)

	for _, c := range []*cobra.Command{matchCmd, estimateCmd} {
		c.Flags().StringVar(&matchOrdersFile, "orders", "", "JSON file with the order book")
		c.Flags().BoolVar(&matchChain, "chain", false, "orders file uses the indexer format")
		c.Flags().StringVar(&matchServer, "server", "", "API server base URL instead of a local file")
		c.Flags().StringVar(&matchAmount, "amount", "", "token amount to trade")
		c.Flags().StringVar(&matchSide, "side", "", "buy or sell")
		c.MarkFlagsMutuallyExclusive("orders", "server")
		_ = c.MarkFlagRequired("amount")
		_ = c.MarkFlagRequired("side")
	}
	matchCmd.Flags().StringVar(&matchRequester, "requester", "", "address of the requester (never matched against own orders)")
	_ = matchCmd.MarkFlagRequired("requester")
}

func runMatch(cmd *cobra.Command, args []string) error {
	amount, side, err := parseTradeFlags()
	if err != nil {
		return err
	}

	if matchServer != "" {
		req := handlers.MatchRequest{Amount: amount, Side: side.String(), RequesterID: matchRequester}
		return postToServer(cmd, "/api/match", req)
	}

	orders, err := readOrders(matchOrdersFile, matchChain)
	if err != nil {
		return err
	}
	engine, err := cliEngine()
	if err != nil {
		return err
	}

	result, err := engine.FindBestMatch(orders, amount, side, matchRequester)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("no matching order for %s %s", side, amount)
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	amount, side, err := parseTradeFlags()
	if err != nil {
		return err
	}

	if matchServer != "" {
		req := handlers.EstimateRequest{Amount: amount, Side: side.String()}
		return postToServer(cmd, "/api/estimate", req)
	}

	orders, err := readOrders(matchOrdersFile, matchChain)
	if err != nil {
		return err
	}
	engine, err := cliEngine()
	if err != nil {
		return err
	}

	estimate, err := engine.EstimateQuickTrade(orders, amount, side)
	if err != nil {
		return err
	}
	if estimate == nil {
		return fmt.Errorf("no liquidity for %s %s", side, amount)
	}
	return writeJSON(cmd.OutOrStdout(), estimate)
}

func parseTradeFlags() (decimal.Decimal, contracts.Side, error) {
	amount, err := decimal.NewFromString(matchAmount)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("invalid --amount %q: %w", matchAmount, err)
	}
	side, err := contracts.ParseSide(matchSide)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("invalid --side: %w", err)
	}
	return amount, side, nil
}

func cliEngine() (*matching.Engine, error) {
	log := cliLogger()
	pcfg, err := loadPolicy(firstNonEmpty(policyFile, os.Getenv("MATCH_POLICY_FILE")), log)
	if err != nil {
		return nil, err
	}
	policy, err := pcfg.MatchingPolicy()
	if err != nil {
		return nil, fmt.Errorf("matching policy: %w", err)
	}
	return matching.NewEngine(policy, log), nil
}

// readOrders loads an order book from path, or stdin when path is "" or "-"
func readOrders(path string, chain bool) ([]contracts.Order, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open orders: %w", err)
		}
		defer f.Close()
		r = f
	}
	return decodeOrders(r, chain)
}

func decodeOrders(r io.Reader, chain bool) ([]contracts.Order, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if !chain {
		var orders []contracts.Order
		if err := dec.Decode(&orders); err != nil {
			return nil, fmt.Errorf("decode orders: %w", err)
		}
		return orders, nil
	}

	var raw []orderbook.ChainOrder
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode chain orders: %w", err)
	}
	orders := make([]contracts.Order, 0, len(raw))
	for _, c := range raw {
		o, err := c.ToOrder()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func postToServer(cmd *cobra.Command, path string, body interface{}) error {
	client := httputil.New(&config.Config{}, cliLogger()).DisableRetry()

	url := strings.TrimRight(matchServer, "/") + path
	resp, err := client.PostJSON(cmd.Context(), url, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var payload json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return writeJSON(cmd.OutOrStdout(), payload)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
