/*
Package config loads the contribution engine configuration.

SOURCES (later wins):
  1. Defaults()
  2. TOML file given with --config
  3. Environment variables

FILE FORMAT:
  [http]
  addr = ":8080"
  read_timeout = "15s"

  [store]
  events_path = "contrib.db"
  readside_path = ""          # empty: same database as events

  [log]
  mode = "dev"                # "prod" for JSON output

  [stream]
  shards = 4
  poll_interval = "1s"
  batch_size = 100

  [kafka]
  brokers = ["localhost:9092"] # empty: no publication
  topic = "calculation-events"

  [calculator]
  years = []                  # empty: every known year

  [[calculator.tables]]       # extra or replacement fiscal years, see Table
  year = 2020
  pass = "41136"
  prci = "38404"
  csg = "1.35"

ENVIRONMENT:
  CONTRIB_HTTP_ADDR, CONTRIB_DB_PATH, CONTRIB_LOG_MODE,
  CONTRIB_KAFKA_BROKERS (comma separated), CONTRIB_KAFKA_TOPIC
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration reads "15s"-style strings from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	HTTP       HTTP       `toml:"http"`
	Store      Store      `toml:"store"`
	Log        Log        `toml:"log"`
	Stream     Stream     `toml:"stream"`
	Kafka      Kafka      `toml:"kafka"`
	Calculator Calculator `toml:"calculator"`
}

type HTTP struct {
	Addr            string   `toml:"addr"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	IdleTimeout     Duration `toml:"idle_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	AllowedOrigins  []string `toml:"allowed_origins"`
}

type Store struct {
	EventsPath   string `toml:"events_path"`
	ReadsidePath string `toml:"readside_path"`
}

type Log struct {
	Mode string `toml:"mode"`
}

type Stream struct {
	Shards       int      `toml:"shards"`
	PollInterval Duration `toml:"poll_interval"`
	BatchSize    int      `toml:"batch_size"`
}

type Kafka struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

// Enabled reports whether committed events are published.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

type Calculator struct {
	Years  []int   `toml:"years"`
	Tables []Table `toml:"tables"`
}

// Defaults is a working single-node setup without a broker.
func Defaults() Config {
	return Config{
		HTTP: HTTP{
			Addr:            ":8080",
			ReadTimeout:     Duration{15 * time.Second},
			WriteTimeout:    Duration{15 * time.Second},
			IdleTimeout:     Duration{60 * time.Second},
			ShutdownTimeout: Duration{30 * time.Second},
			AllowedOrigins:  []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Store:  Store{EventsPath: "contrib.db"},
		Log:    Log{Mode: "dev"},
		Stream: Stream{Shards: 4, PollInterval: Duration{time.Second}, BatchSize: 100},
		Kafka:  Kafka{Topic: "calculation-events"},
	}
}

// Load reads path on top of the defaults, then applies the environment.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err == nil {
			err = checkUndecoded(md)
		}
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg, cfg.Validate()
}

// Parse decodes TOML text on top of the defaults. The environment is not
// consulted.
func Parse(text string) (Config, error) {
	cfg := Defaults()
	md, err := toml.Decode(text, &cfg)
	if err == nil {
		err = checkUndecoded(md)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// checkUndecoded rejects keys that match no field, typos included.
func checkUndecoded(md toml.MetaData) error {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys %v", undecoded)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("CONTRIB_HTTP_ADDR"); ok && v != "" {
		c.HTTP.Addr = v
	}
	if v, ok := lookup("CONTRIB_DB_PATH"); ok && v != "" {
		c.Store.EventsPath = v
	}
	if v, ok := lookup("CONTRIB_LOG_MODE"); ok && v != "" {
		c.Log.Mode = v
	}
	if v, ok := lookup("CONTRIB_KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup("CONTRIB_KAFKA_TOPIC"); ok && v != "" {
		c.Kafka.Topic = v
	}
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.Store.EventsPath == "" {
		errs = append(errs, errors.New("store.events_path is required"))
	}
	if c.Stream.Shards < 1 {
		errs = append(errs, fmt.Errorf("stream.shards must be at least 1, got %d", c.Stream.Shards))
	}
	if c.Stream.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("stream.batch_size must be at least 1, got %d", c.Stream.BatchSize))
	}
	if c.Stream.PollInterval.Duration <= 0 {
		errs = append(errs, errors.New("stream.poll_interval must be positive"))
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	if _, err := c.Calculator.Registry(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
