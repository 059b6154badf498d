package scraper

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"orderscraper/internal/auth"
	"orderscraper/internal/extract"
	"orderscraper/internal/orders"
	"orderscraper/internal/scroll"
	"orderscraper/lib/configutil"
	"orderscraper/lib/statedir"
)

// Millis is a duration written as a number of milliseconds in configuration.
type Millis int64

func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

type TimeoutConfig struct {
	Restore    Millis `json:"restore_ms"`
	LoginUI    Millis `json:"login_ui_ms"`
	OTPScreen  Millis `json:"otp_screen_ms"`
	Login      Millis `json:"login_ms"`
	Location   Millis `json:"location_ms"`
	Navigation Millis `json:"navigation_ms"`
	Container  Millis `json:"container_ms"`
	Detail     Millis `json:"detail_ms"`
	Poll       Millis `json:"poll_ms"`
}

type ScrollConfig struct {
	MaxIterations int    `json:"max_iterations"`
	StallLimit    int    `json:"stall_limit"`
	PollInterval  Millis `json:"poll_interval_ms"`
	StepTimeout   Millis `json:"step_timeout_ms"`
}

// SelectorConfig holds the page selectors, they use chromedp's search syntax so CSS
// selectors and XPath expressions both work.
type SelectorConfig struct {
	auth.Selectors

	ProfileMenu   string `json:"profile_menu"`
	OrdersLink    string `json:"orders_link"`
	OrdersHeading string `json:"orders_heading"`
	OrderList     string `json:"order_list"`
	LoadMore      string `json:"load_more"`
	DetailReady   string `json:"detail_ready"`
}

type SchemaConfig struct {
	Summary extract.Schema `json:"summary"`
	Detail  extract.Schema `json:"detail"`
}

type StatusConfig struct {
	Vocabulary          map[string][]string `json:"vocabulary"`
	Excluded            []string            `json:"excluded"`
	SimilarityThreshold float64             `json:"similarity_threshold"`
}

// CacheConfig controls the detail page cache, an empty dir disables it.
type CacheConfig struct {
	Dir      string `json:"dir"`
	TTLHours int    `json:"ttl_hours"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

type Config struct {
	BaseURL   string `json:"base_url"`
	OrdersURL string `json:"orders_url"`
	// DetailURLTemplate builds the url of an order page when the card has no link,
	// "{id}" is replaced with the order id.
	DetailURLTemplate string `json:"detail_url_template"`
	// Location answers the storefront's delivery location prompt.
	Location string `json:"location"`
	// Timezone is the IANA name order dates are rendered in.
	Timezone    string `json:"timezone"`
	SessionPath string `json:"session_path"`
	DebugDir    string `json:"debug_dir"`
	UserAgent   string `json:"user_agent"`

	Timeouts  TimeoutConfig  `json:"timeouts"`
	Scroll    ScrollConfig   `json:"scroll"`
	Selectors SelectorConfig `json:"selectors"`
	Schemas   SchemaConfig   `json:"schemas"`
	Statuses  StatusConfig   `json:"statuses"`
	Cache     CacheConfig    `json:"cache"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://blinkit.com",
		OrdersURL:         "https://blinkit.com/account/orders",
		DetailURLTemplate: "https://blinkit.com/order/{id}",
		Location:          "Gurugram",
		Timezone:          "Asia/Kolkata",
		SessionPath:       fmt.Sprintf("%s/session.json", statedir.Prefix),
		DebugDir:          fmt.Sprintf("%s/debug", statedir.Prefix),

		Timeouts: TimeoutConfig{
			Restore:    15_000,
			LoginUI:    30_000,
			OTPScreen:  15_000,
			Login:      30_000,
			Location:   5_000,
			Navigation: 30_000,
			Container:  15_000,
			Detail:     20_000,
			Poll:       250,
		},
		Scroll: ScrollConfig{
			MaxIterations: 200,
			StallLimit:    1,
			PollInterval:  250,
			StepTimeout:   2_000,
		},
		Selectors: SelectorConfig{
			Selectors: auth.Selectors{
				Landmark:           `div[data-test-id="user-profile"]`,
				LoginButton:        `//button[contains(., "Login")]`,
				PhoneInput:         `input[type="tel"]`,
				ContinueButton:     `//button[contains(., "Continue")]`,
				OTPScreen:          `//div[contains(., "Enter OTP")]`,
				OTPInput:           `(//input[@type="tel"])[2]`,
				OTPError:           `//*[contains(text(), "Invalid OTP") or contains(text(), "incorrect OTP")]`,
				LocationInput:      `input[placeholder*="Search for your location"]`,
				LocationSuggestion: `div[class*="location-suggestions"]`,
			},
			ProfileMenu:   `div[data-test-id="user-profile"]`,
			OrdersLink:    `//a[contains(., "My Orders")]`,
			OrdersHeading: `//h1[contains(., "My Orders")]`,
			OrderList:     `div[class*="order-card-wrapper"]`,
			DetailReady:   `div[class*="order-details"]`,
		},
		Schemas: SchemaConfig{
			Summary: extract.DefaultSummarySchema(),
			Detail:  extract.DefaultDetailSchema(),
		},
		Statuses: StatusConfig{
			Vocabulary:          maps.Clone(orders.DefaultVocabulary),
			Excluded:            []string{"cancelled", "returned"},
			SimilarityThreshold: orders.DefaultSimilarityThreshold,
		},
		Cache: CacheConfig{
			Dir:      fmt.Sprintf("%s/cache", statedir.Prefix),
			TTLHours: 24 * 30,
		},
	}
}

// LoadConfig merges the config file at path (and its .local variant) over
// DefaultConfig, a missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfigOr(path, DefaultConfig())
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	err = cfg.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.Selectors.Landmark == "" {
		return fmt.Errorf("selectors.landmark is required")
	}
	if c.Selectors.OrderList == "" {
		return fmt.Errorf("selectors.order_list is required")
	}
	if c.Scroll.MaxIterations <= 0 {
		return fmt.Errorf("scroll.max_iterations must be positive")
	}
	if c.Scroll.StallLimit <= 0 {
		return fmt.Errorf("scroll.stall_limit must be positive")
	}
	if c.DetailURLTemplate != "" && !strings.Contains(c.DetailURLTemplate, "{id}") {
		return fmt.Errorf("detail_url_template must contain {id}")
	}
	if c.Cache.Dir != "" && c.Cache.TTLHours <= 0 {
		return fmt.Errorf("cache.ttl_hours must be positive")
	}
	_, err := orders.ParseStatuses(c.Statuses.Excluded)
	if err != nil {
		return fmt.Errorf("statuses.excluded: %w", err)
	}
	return nil
}

func (c Config) authOptions(forceRelogin bool) auth.Options {
	return auth.Options{
		BaseURL:      c.BaseURL,
		Location:     c.Location,
		ForceRelogin: forceRelogin,
		Selectors:    c.Selectors.Selectors,
		Timeouts: auth.Timeouts{
			Restore:     c.Timeouts.Restore.Duration(),
			LoginButton: c.Timeouts.LoginUI.Duration(),
			OTPScreen:   c.Timeouts.OTPScreen.Duration(),
			Login:       c.Timeouts.Login.Duration(),
			Location:    c.Timeouts.Location.Duration(),
			Poll:        c.Timeouts.Poll.Duration(),
		},
	}
}

func (c Config) loaderOptions() scroll.Options {
	return scroll.Options{
		Container:        c.Selectors.OrderList,
		LoadMore:         c.Selectors.LoadMore,
		ContainerTimeout: c.Timeouts.Container.Duration(),
		StepTimeout:      c.Scroll.StepTimeout.Duration(),
		PollInterval:     c.Scroll.PollInterval.Duration(),
		MaxIterations:    c.Scroll.MaxIterations,
		StallLimit:       c.Scroll.StallLimit,
	}
}

func (c Config) detailURL(o orders.Order) string {
	if o.DetailURL != "" {
		return o.DetailURL
	}
	if c.DetailURLTemplate == "" {
		return ""
	}
	return strings.ReplaceAll(c.DetailURLTemplate, "{id}", o.ID)
}

// ResolvePaths expands the state directory prefix of the configured paths.
func (c Config) ResolvePaths() (Config, error) {
	var err error
	c.SessionPath, err = statedir.ResolvePath(c.SessionPath)
	if err != nil {
		return c, err
	}
	c.DebugDir, err = statedir.ResolvePath(c.DebugDir)
	if err != nil {
		return c, err
	}
	if c.Cache.Dir != "" {
		c.Cache.Dir, err = statedir.ResolvePath(c.Cache.Dir)
		if err != nil {
			return c, err
		}
	}
	return c, nil
}
