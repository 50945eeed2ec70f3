package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/tournevent/parcelgate/internal/server"
	"github.com/tournevent/parcelgate/pkg/shipping"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "parcelgate",
	Short:   "Europarcel shipping for shop checkouts - rates, lockers and courier orders",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the carrier services an instance can enable",
	Args:  cobra.NoArgs,
	RunE:  runServices,
}

var accountCmd = &cobra.Command{
	Use:   "account <instance-id>",
	Short: "Show the Europarcel account behind an instance's API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccount,
}

var quoteCmd = &cobra.Command{
	Use:   "quote <instance-id>",
	Short: "Show the rates an instance offers for a package, next to live courier prices",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuote,
}

var quoteFlags struct {
	country  string
	county   string
	city     string
	subtotal string
	tax      string
	classes  []string
	coupon   bool
}

func init() {
	quoteCmd.Flags().StringVar(&quoteFlags.country, "country", "RO", "destination country code")
	quoteCmd.Flags().StringVar(&quoteFlags.county, "county", "", "destination county")
	quoteCmd.Flags().StringVar(&quoteFlags.city, "city", "", "destination city")
	quoteCmd.Flags().StringVar(&quoteFlags.subtotal, "subtotal", "0", "cart subtotal")
	quoteCmd.Flags().StringVar(&quoteFlags.tax, "tax", "0", "cart tax total")
	quoteCmd.Flags().StringSliceVar(&quoteFlags.classes, "class", []string{""}, "shipping class of each item, one flag per item")
	quoteCmd.Flags().BoolVar(&quoteFlags.coupon, "free-coupon", false, "apply a free-shipping coupon")

	rootCmd.AddCommand(serveCmd, servicesCmd, accountCmd, quoteCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	a.logger.Info("Starting parcelgate",
		zap.Int("port", a.cfg.Port),
		zap.String("version", a.cfg.Version),
		zap.String("store", a.cfg.StoreBackend),
		zap.Bool("mock_api", a.cfg.EuroparcelUseMock),
	)

	srv := server.New(server.Config{Port: a.cfg.Port, AdminToken: a.cfg.AdminToken}, a.service, a.metrics, a.registry, a.logger)
	for name, check := range a.stores.checks {
		srv.WithHealthCheck(name, check)
	}
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runServices(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tCARRIER\tSERVICE\tLABEL")
	for _, d := range shipping.Services() {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", d.Key, d.CarrierID, d.ServiceID, d.Label)
	}
	return w.Flush()
}

func runAccount(cmd *cobra.Command, args []string) error {
	instanceID, err := parseInstanceID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	overview, err := a.service.AccountOverview(ctx, instanceID)
	if err != nil {
		return err
	}
	return printJSON(cmd, overview)
}

func runQuote(cmd *cobra.Command, args []string) error {
	instanceID, err := parseInstanceID(args[0])
	if err != nil {
		return err
	}
	subtotal, err := decimal.NewFromString(quoteFlags.subtotal)
	if err != nil {
		return fmt.Errorf("invalid --subtotal: %w", err)
	}
	tax, err := decimal.NewFromString(quoteFlags.tax)
	if err != nil {
		return fmt.Errorf("invalid --tax: %w", err)
	}

	pkg := shipping.CartPackage{
		Destination: shipping.Destination{
			Country: quoteFlags.country,
			State:   quoteFlags.county,
			City:    quoteFlags.city,
		},
		Subtotal: subtotal,
		TaxTotal: tax,
	}
	for _, class := range quoteFlags.classes {
		pkg.Contents = append(pkg.Contents, shipping.Item{ShippingClass: class, NeedsShipping: true})
	}
	if quoteFlags.coupon {
		pkg.Coupons = []shipping.Coupon{{Code: "cli", FreeShipping: true}}
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	quote, err := a.service.Quote(ctx, instanceID, pkg)
	if err != nil {
		return err
	}
	return printJSON(cmd, quote)
}

func parseInstanceID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid instance id %q", arg)
	}
	return id, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
