package config

import (
	"fmt"
	"os"
	"time"

	"github.com/contentsquare/atomiccell/cell"
	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v2"
)

var (
	defaultConfig = Config{
		Metrics:  defaultMetrics,
		Executor: defaultExecutor,
		Stress:   defaultStress,
	}

	defaultMetrics = Metrics{
		ListenAddr: ":9090",
		Namespace:  "atomiccell",
	}

	defaultExecutor = Executor{
		MaxInFlight: 64,
	}

	defaultStress = Stress{
		Workers:        8,
		Iterations:     10000,
		ReportInterval: Duration(time.Second),
		Scenarios:      []string{"increment", "cas-race", "update", "publish", "weak-retry", "wrap"},
		Publish:        defaultPublish,
	}

	defaultPublish = Publish{
		StoreOrdering: cell.Release,
		LoadOrdering:  cell.Acquire,
	}

	defaultRedis = Redis{
		KeyPrefix: "atomiccell",
		TTL:       Duration(24 * time.Hour),
	}
)

// Config describes how the atomiccell command stresses cells
// and where it exposes and reports the results.
type Config struct {
	// Whether to print debug logs
	LogDebug bool `yaml:"log_debug,omitempty"`

	Metrics Metrics `yaml:"metrics,omitempty"`

	Executor Executor `yaml:"executor,omitempty"`

	Stress Stress `yaml:"stress,omitempty"`

	Report Report `yaml:"report,omitempty"`

	// Catches all undefined fields
	XXX map[string]interface{} `yaml:",inline"`
}

// String implements the Stringer interface
func (c *Config) String() string {
	cfg := deepcopy.Copy(*c).(Config)
	if cfg.Report.Redis != nil && len(cfg.Report.Redis.Password) > 0 {
		cfg.Report.Redis.Password = "XXX"
	}
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	// set c to a private copy of the defaults and then overwrite it with the input.
	*c = deepcopy.Copy(defaultConfig).(Config)

	type plain Config
	if err := unmarshal((*plain)(c)); err != nil {
		return err
	}

	return checkOverflow(c.XXX, "config")
}

// Validates passed configuration by additional marshalling
// to ensure that all rules and checks were applied
func (c *Config) Validate() error {
	content, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error while marshalling config: %w", err)
	}

	cfg := &Config{}
	return yaml.Unmarshal(content, cfg)
}

// Metrics describes the prometheus endpoint
type Metrics struct {
	// TCP address to serve /metrics on.
	// Empty value disables the endpoint
	ListenAddr string `yaml:"listen_addr,omitempty"`

	// Prefix of every exported metric name
	Namespace string `yaml:"namespace,omitempty"`

	// List of networks that access is allowed from
	// Each list item could be IP address or subnet mask
	// if omitted or zero - no limits would be applied
	AllowedNetworks Networks `yaml:"allowed_networks,omitempty"`

	// Catches all undefined fields
	XXX map[string]interface{} `yaml:",inline"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (m *Metrics) UnmarshalYAML(unmarshal func(interface{}) error) error {
	*m = defaultMetrics

	type plain Metrics
	if err := unmarshal((*plain)(m)); err != nil {
		return err
	}

	return checkOverflow(m.XXX, "metrics")
}

// Executor describes admission limits of the task executor
type Executor struct {
	// Maximum number of tasks running at the same time.
	// Tasks submitted above the limit are rejected.
	// if omitted or zero - no limits would be applied
	MaxInFlight int32 `yaml:"max_in_flight,omitempty"`

	// Maximum number of tasks admitted per second
	// if omitted or zero - no limits would be applied
	RateLimit float64 `yaml:"rate_limit,omitempty"`

	// Number of tasks which may be admitted at once above RateLimit.
	// Default is 1 if RateLimit is set
	Burst int `yaml:"burst,omitempty"`

	// Catches all undefined fields
	XXX map[string]interface{} `yaml:",inline"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (e *Executor) UnmarshalYAML(unmarshal func(interface{}) error) error {
	*e = defaultExecutor

	type plain Executor
	if err := unmarshal((*plain)(e)); err != nil {
		return err
	}

	if e.MaxInFlight < 0 {
		return fmt.Errorf("field `max_in_flight` cannot be negative")
	}

	if e.RateLimit < 0 {
		return fmt.Errorf("field `rate_limit` cannot be negative")
	}

	if e.RateLimit > 0 && e.Burst == 0 {
		e.Burst = 1
	}

	if e.Burst < 0 {
		return fmt.Errorf("field `burst` cannot be negative")
	}

	return checkOverflow(e.XXX, "executor")
}

// Stress describes the contention scenarios to run
type Stress struct {
	// Number of goroutines racing on the same cell
	Workers int `yaml:"workers,omitempty"`

	// Number of operations performed by every worker
	Iterations int `yaml:"iterations,omitempty"`

	// How often progress is logged while scenarios run
	ReportInterval Duration `yaml:"report_interval,omitempty"`

	// Names of scenarios to run, in order
	Scenarios []string `yaml:"scenarios,omitempty"`

	Publish Publish `yaml:"publish,omitempty"`

	// Catches all undefined fields
	XXX map[string]interface{} `yaml:",inline"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (s *Stress) UnmarshalYAML(unmarshal func(interface{}) error) error {
	*s = deepcopy.Copy(defaultStress).(Stress)

	type plain Stress
	if err := unmarshal((*plain)(s)); err != nil {
		return err
	}

	if s.Workers <= 0 {
		return fmt.Errorf("field `workers` must be positive")
	}

	if s.Iterations <= 0 {
		return fmt.Errorf("field `iterations` must be positive")
	}

	if s.ReportInterval <= 0 {
		return fmt.Errorf("field `report_interval` must be positive")
	}

	if len(s.Scenarios) == 0 {
		return fmt.Errorf("field `scenarios` must contain at least 1 scenario")
	}

	return checkOverflow(s.XXX, "stress")
}

// Publish describes orderings used by the publish/flag scenario
type Publish struct {
	// Ordering of the flag store. Acquire is not allowed
	StoreOrdering cell.Ordering `yaml:"store_ordering"`

	// Ordering of the flag load. Release is not allowed
	LoadOrdering cell.Ordering `yaml:"load_ordering"`

	// Catches all undefined fields
	XXX map[string]interface{} `yaml:",inline"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (p *Publish) UnmarshalYAML(unmarshal func(interface{}) error) error {
	*p = defaultPublish

	type plain Publish
	if err := unmarshal((*plain)(p)); err != nil {
		return err
	}

	if !p.StoreOrdering.CanStore() {
		return fmt.Errorf("field `store_ordering` cannot be %q", p.StoreOrdering)
	}

	if !p.LoadOrdering.CanLoad() {
		return fmt.Errorf("field `load_ordering` cannot be %q", p.LoadOrdering)
	}

	return checkOverflow(p.XXX, "publish")
}

// Report describes where scenario results are sent.
// Results are always logged
type Report struct {
	Redis *Redis `yaml:"redis,omitempty"`

	// Catches all undefined fields
	XXX map[string]interface{} `yaml:",inline"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (r *Report) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain Report
	if err := unmarshal((*plain)(r)); err != nil {
		return err
	}

	return checkOverflow(r.XXX, "report")
}

// Redis describes the redis instance scenario results are stored in
type Redis struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username,omitempty"`
	Password  string   `yaml:"password,omitempty"`

	// Every result is stored under `<key_prefix>:<scenario>`
	KeyPrefix string `yaml:"key_prefix,omitempty"`

	// How long results are kept
	TTL Duration `yaml:"ttl,omitempty"`

	// Catches all undefined fields
	XXX map[string]interface{} `yaml:",inline"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (r *Redis) UnmarshalYAML(unmarshal func(interface{}) error) error {
	*r = defaultRedis

	type plain Redis
	if err := unmarshal((*plain)(r)); err != nil {
		return err
	}

	if len(r.Addresses) == 0 {
		return fmt.Errorf("field `addresses` must contain at least 1 address")
	}

	if r.TTL < 0 {
		return fmt.Errorf("field `ttl` cannot be negative")
	}

	return checkOverflow(r.XXX, "redis")
}

// Loads and validates configuration from provided .yml file
func LoadFile(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	// An empty file never reaches UnmarshalYAML, so start from the defaults.
	cfg := deepcopy.Copy(defaultConfig).(Config)
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
