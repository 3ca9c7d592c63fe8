package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"covidash/internal/grpcserver"
)

const defaultBaseURL = "http://localhost:8080"

type options struct {
	baseURL  string
	grpcAddr string
	timeout  time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "covidash",
		Short: "Query a running covidash API",
		Long: `Query the case-count views served by api-server.

Views are fetched over HTTP by default; pass --grpc to use the gRPC
SeriesService instead (regions, lines, deltas, map, share).`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.baseURL, "api", defaultBaseURL, "API base URL")
	root.PersistentFlags().StringVar(&opts.grpcAddr, "grpc", "", "gRPC address; when set, views use gRPC")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "request timeout")

	var mode string
	var day int
	var raw bool

	regionsCmd := &cobra.Command{
		Use:   "regions [name]",
		Short: "List regions, or show one region's series",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return opts.get(cmd, "/api/regions/"+url.PathEscape(args[0]), nil)
			}
			return opts.view(cmd, "Regions", "/api/regions", nil)
		},
	}

	linesCmd := &cobra.Command{
		Use:   "lines",
		Short: "Cumulative cases per day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.view(cmd, "Lines", "/api/lines", map[string]any{"mode": mode})
		},
	}
	linesCmd.Flags().StringVar(&mode, "mode", "aggregate", "aggregate or by-region")

	deltasCmd := &cobra.Command{
		Use:   "deltas",
		Short: "New cases against total cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.view(cmd, "Deltas", "/api/deltas", map[string]any{"mode": mode})
		},
	}
	deltasCmd.Flags().StringVar(&mode, "mode", "aggregate", "aggregate or by-region")

	totalsCmd := &cobra.Command{
		Use:   "totals",
		Short: "National cumulative total and daily new cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.get(cmd, "/api/totals", nil)
		},
	}

	mapCmd := &cobra.Command{
		Use:   "map",
		Short: "Choropleth values for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{}
			if cmd.Flags().Changed("day") {
				req["day"] = day
			}
			return opts.view(cmd, "Map", "/api/map", req)
		},
	}
	mapCmd.Flags().IntVar(&day, "day", 0, "day offset (default latest)")

	shareCmd := &cobra.Command{
		Use:   "share",
		Short: "Share of the national total for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"merged": !raw}
			if cmd.Flags().Changed("day") {
				req["day"] = day
			}
			return opts.view(cmd, "Share", "/api/share", req)
		},
	}
	shareCmd.Flags().IntVar(&day, "day", 0, "day offset (default latest)")
	shareCmd.Flags().BoolVar(&raw, "raw", false, "keep one row per region instead of merging \"Other\"")

	reloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask the server to reload its dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			var out map[string]any
			if err := doJSON(ctx, opts.client(), http.MethodPost, opts.baseURL+"/admin/reload", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	var wsURL string
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print dataset events from the push feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := wsURL
			if endpoint == "" {
				var err error
				endpoint, err = websocketURL(opts.baseURL, "/ws")
				if err != nil {
					return fmt.Errorf("ws url: %w", err)
				}
			}
			return runWebSocket(cmd.Context(), endpoint, cmd.OutOrStdout())
		},
	}
	watchCmd.Flags().StringVar(&wsURL, "ws", "", "WebSocket URL (defaults to /ws on API host)")

	root.AddCommand(regionsCmd, linesCmd, deltasCmd, totalsCmd, mapCmd, shareCmd, reloadCmd, watchCmd)
	return root
}

func (o *options) client() *http.Client {
	return &http.Client{Timeout: o.timeout}
}

// view fetches over gRPC when --grpc is set and over HTTP otherwise.
func (o *options) view(cmd *cobra.Command, method, path string, req map[string]any) error {
	if o.grpcAddr == "" {
		return o.get(cmd, path, req)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	conn, err := grpc.NewClient(o.grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	out, err := grpcserver.NewClient(conn).Call(ctx, method, req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func (o *options) get(cmd *cobra.Command, path string, query map[string]any) error {
	u, err := url.Parse(o.baseURL + path)
	if err != nil {
		return err
	}
	q := u.Query()
	for k, v := range query {
		switch v := v.(type) {
		case string:
			q.Set(k, v)
		case int:
			q.Set(k, strconv.Itoa(v))
		case bool:
			q.Set(k, strconv.FormatBool(v))
		}
	}
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()
	var out any
	if err := doJSON(ctx, o.client(), http.MethodGet, u.String(), nil, &out); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
