package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pixyzehn/Moya"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var (
	flagMethod     string
	flagParams     []string
	flagHeaders    []string
	flagJSON       bool
	flagStubConfig string
	flagName       string
	flagSample     string
	flagConcurrent int
	flagRate       float64
	flagTimeout    time.Duration
	flagKeyPath    string
	flagFull       bool
	flagVerbose    bool
	flagMetrics    bool
	flagToken      string
)

var requestCmd = &cobra.Command{
	Use:   "request <url>",
	Short: "Dispatch a request through a moya provider",
	Long: `Dispatch a request through a moya provider.

With --concurrent N the same request is issued N times at once; inflight
tracking coalesces them into a single execution. With --stub-config the
request may be answered from sample data instead of the network.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, args[0])
	},
}

func init() {
	requestCmd.Flags().StringVarP(&flagMethod, "method", "X", http.MethodGet, "HTTP method")
	requestCmd.Flags().StringArrayVarP(&flagParams, "param", "p", nil, "Parameter key=value, can be repeated")
	requestCmd.Flags().StringArrayVarP(&flagHeaders, "header", "H", nil, "Header key:value, can be repeated")
	requestCmd.Flags().BoolVar(&flagJSON, "json", false, "Encode parameters as a JSON body")
	requestCmd.Flags().StringVar(&flagStubConfig, "stub-config", "", "YAML stub configuration file")
	requestCmd.Flags().StringVar(&flagName, "name", "", "Target name used for stub configuration lookups")
	requestCmd.Flags().StringVar(&flagSample, "sample", "", "Sample data returned when the request is stubbed")
	requestCmd.Flags().IntVarP(&flagConcurrent, "concurrent", "c", 1, "Number of identical concurrent requests")
	requestCmd.Flags().Float64Var(&flagRate, "rate", 0, "Maximum live requests per second (0 = unlimited)")
	requestCmd.Flags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "Overall timeout")
	requestCmd.Flags().StringVarP(&flagKeyPath, "key-path", "k", "", "Print only the JSON value at this key path")
	requestCmd.Flags().BoolVarP(&flagFull, "full", "f", false, "Show status and headers")
	requestCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log dispatcher events to stderr")
	requestCmd.Flags().BoolVar(&flagMetrics, "metrics", false, "Print a metrics summary to stderr")
	requestCmd.Flags().StringVar(&flagToken, "token", os.Getenv("MOYA_TOKEN"), "Bearer token (defaults to $MOYA_TOKEN)")
}

func runRequest(cmd *cobra.Command, rawURL string) error {
	if flagConcurrent < 1 {
		return errors.New("--concurrent must be at least 1")
	}

	target, err := buildTarget(rawURL)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	options, err := buildOptions(registry)
	if err != nil {
		return err
	}

	provider := moya.New[cliTarget](options...)
	if err := provider.ValidationError(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, flagTimeout)
	defer cancel()

	results := make([]moya.Result, flagConcurrent)
	var wg sync.WaitGroup
	for i := 0; i < flagConcurrent; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := provider.Do(ctx, target)
			results[i] = moya.Result{Response: resp, Err: err}
		}(i)
	}
	wg.Wait()

	out := cmd.OutOrStdout()
	var firstErr error
	for i, result := range results {
		if flagConcurrent > 1 {
			fmt.Fprintf(out, "--- request %d\n", i+1)
		}
		if err := printResult(out, result); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if flagMetrics {
		printMetrics(cmd.ErrOrStderr(), registry)
	}
	return firstErr
}

func buildTarget(rawURL string) (cliTarget, error) {
	params, err := parsePairs(flagParams, "=")
	if err != nil {
		return cliTarget{}, fmt.Errorf("bad --param: %w", err)
	}
	headers, err := parsePairs(flagHeaders, ":")
	if err != nil {
		return cliTarget{}, fmt.Errorf("bad --header: %w", err)
	}

	var parameters map[string]any
	if len(params) > 0 {
		parameters = make(map[string]any, len(params))
		for k, v := range params {
			parameters[k] = v
		}
	}

	return cliTarget{
		name:       flagName,
		url:        rawURL,
		method:     moya.Method(strings.ToUpper(flagMethod)),
		parameters: parameters,
		headers:    headers,
		json:       flagJSON,
		sample:     []byte(flagSample),
	}, nil
}

func buildOptions(registry *prometheus.Registry) ([]moya.Option[cliTarget], error) {
	var middleware []moya.Middleware
	if flagRate > 0 {
		middleware = append(middleware, moya.RateLimitMiddleware(rate.NewLimiter(rate.Limit(flagRate), 1)))
	}

	options := []moya.Option[cliTarget]{
		moya.WithInflightTracking[cliTarget](),
		moya.WithHTTPClient[cliTarget](&http.Client{Timeout: flagTimeout}, middleware...),
		moya.WithMetricsCollector[cliTarget](moya.NewMetricsCollectorWithRegistry(registry)),
	}

	if flagToken != "" {
		token := flagToken
		options = append(options, moya.WithPlugins[cliTarget](
			moya.NewAccessTokenPlugin[cliTarget](func() string { return token }),
		))
	}

	if flagVerbose {
		logger := moya.NewWriterLogger(os.Stderr)
		options = append(options,
			moya.WithLogger[cliTarget](logger),
			moya.WithDebug[cliTarget](),
			moya.WithPlugins[cliTarget](moya.NewNetworkLoggerPlugin[cliTarget](logger)),
		)
	}

	if flagStubConfig != "" {
		stubs, err := moya.LoadStubConfigFile(flagStubConfig)
		if err != nil {
			return nil, err
		}
		options = append(options, moya.WithStubConfig[cliTarget](stubs))
	}

	return options, nil
}

func printResult(w io.Writer, result moya.Result) error {
	resp, err := result.Unwrap()
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return err
	}

	if flagFull {
		fmt.Fprintf(w, "%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
		if resp.HTTPResponse != nil {
			names := make([]string, 0, len(resp.HTTPResponse.Header))
			for name := range resp.HTTPResponse.Header {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(w, "%s: %s\n", name, strings.Join(resp.HTTPResponse.Header[name], ", "))
			}
		}
		fmt.Fprintln(w)
	}

	if flagKeyPath != "" {
		value, err := resp.MapStringAtKeyPath(flagKeyPath)
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			return err
		}
		fmt.Fprintln(w, value)
		return nil
	}

	fmt.Fprintln(w, string(resp.Data))
	return nil
}

// printMetrics writes one line per gathered sample; histograms report their count.
func printMetrics(w io.Writer, registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		fmt.Fprintf(w, "metrics: %v\n", err)
		return
	}

	for _, family := range families {
		for _, metric := range family.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, label := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", label.GetName(), label.GetValue()))
			}

			var value float64
			switch {
			case metric.GetCounter() != nil:
				value = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				value = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				value = float64(metric.GetHistogram().GetSampleCount())
			}
			fmt.Fprintf(w, "%s{%s} %g\n", family.GetName(), strings.Join(labels, ","), value)
		}
	}
}
