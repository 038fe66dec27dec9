package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/transport/httpapi"
)

type loadMode string

const (
	modeCart           loadMode = "cart"
	modeCheckout       loadMode = "checkout"
	modeCheckoutReplay loadMode = "checkout-replay"
	modeCheckoutVerify loadMode = "checkout-verify"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	productID   string
	quantity    int
	keySecret   string
	customerTag string
	outputPath  string
}

func parseConfig(args []string) (config, error) {
	var (
		cfg       config
		modeValue string
	)

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "marketplace HTTP API base URL")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&modeValue, "mode", string(modeCheckout), "load mode: cart | checkout | checkout-replay | checkout-verify")
	fs.StringVar(&cfg.productID, "product", "prod-mug", "product id added to every cart")
	fs.IntVar(&cfg.quantity, "qty", 1, "quantity per cart item")
	fs.StringVar(&cfg.keySecret, "key-secret", "mock_key_secret", "gateway key secret used to sign verify requests")
	fs.StringVar(&cfg.customerTag, "customer-tag", "load", "customer id prefix")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	switch {
	case strings.TrimSpace(cfg.baseURL) == "":
		return cfg, errors.New("url is required")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case strings.TrimSpace(cfg.productID) == "":
		return cfg, errors.New("product is required")
	case cfg.quantity <= 0:
		return cfg, errors.New("qty must be > 0")
	case cfg.mode == modeCheckoutVerify && strings.TrimSpace(cfg.keySecret) == "":
		return cfg, errors.New("key-secret is required in checkout-verify mode")
	case strings.TrimSpace(cfg.customerTag) == "":
		return cfg, errors.New("customer-tag is required")
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch m := loadMode(strings.TrimSpace(value)); m {
	case modeCart, modeCheckout, modeCheckoutReplay, modeCheckoutVerify:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	result := runLoad(cfg)
	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func runLoad(cfg config) report {
	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()
	client := newAPIClient(cfg.baseURL, cfg.timeout, col)

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				_ = runScenario(client, cfg, id, runID)
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	return col.buildReport(startedAt, time.Since(startedAt))
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}
		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// runScenario проводит одного покупателя по выбранному сценарию. Каждому сценарию свой customer id.
func runScenario(client *apiClient, cfg config, index int, runID string) (err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "failed"
		}
		client.col.record(scenarioStep, time.Since(start), status, err == nil)
	}()

	customerID := fmt.Sprintf("%s-%s-%d", cfg.customerTag, runID, index)

	if err := client.addItem(customerID, cfg.productID, int32(cfg.quantity)); err != nil {
		return err
	}
	if err := client.quote(customerID); err != nil {
		return err
	}
	if cfg.mode == modeCart {
		return nil
	}

	key := fmt.Sprintf("lt-checkout-%s-%d", runID, index)
	placed, _, err := client.checkout(stepCheckout, customerID, key)
	if err != nil {
		return err
	}
	if placed.Order.ID == "" || placed.GatewayIntentID == "" {
		return fmt.Errorf("%w: checkout returned empty order or intent id", errUnexpectedResponse)
	}

	switch cfg.mode {
	case modeCheckoutReplay:
		replayed, resp, err := client.checkout(stepCheckoutReplay, customerID, key)
		if err != nil {
			return err
		}
		if resp.header.Get(httpapi.HeaderIdempotentReplay) != "true" || replayed.Order.ID != placed.Order.ID {
			return fmt.Errorf("%w: checkout retry was not replayed", errUnexpectedResponse)
		}
	case modeCheckoutVerify:
		paymentID := fmt.Sprintf("pay_lt_%s_%d", runID, index)
		verified, err := client.verify(customerID, cfg.keySecret, placed.GatewayIntentID, paymentID)
		if err != nil {
			return err
		}
		if !verified.Success || verified.OrderID != placed.Order.ID {
			return fmt.Errorf("%w: verify returned status %q", errUnexpectedResponse, verified.Status)
		}
	}
	return nil
}
