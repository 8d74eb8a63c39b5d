// Package rdtconf holds the RDT configuration parameters from spec §6 and
// loads them from YAML, following the teacher's conf.Conf
// setDefaults()/validate() two-pass shape.
package rdtconf

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/goccy/go-yaml"
)

// Variant selects which reliability algorithm a socket runs.
type Variant string

const (
	SAW Variant = "saw"
	SR  Variant = "sr"
)

// Conf holds every tunable named in spec §6, with the defaults named there.
type Conf struct {
	Role    string `yaml:"role"`
	Listen  string `yaml:"listen"`
	Variant Variant `yaml:"variant"`

	AckTimeout         time.Duration `yaml:"ack_timeout"`
	FinWaitTimeout      time.Duration `yaml:"fin_wait_timeout"`
	FinAckWaitTimeout   time.Duration `yaml:"finack_wait_timeout"`
	ConnectRetries      int           `yaml:"connect_retries"`
	FinRetries          int           `yaml:"fin_retries"`
	AckRetries          int           `yaml:"ack_retries"`
	MSS                 int           `yaml:"mss"`
	WindowSize          int           `yaml:"window_size"`
	InitialPacketNumber uint32        `yaml:"initial_packet_number"`

	// AcceptBacklog bounds the listener's pending-accept queue (§4.2).
	AcceptBacklog int `yaml:"accept_backlog"`

	// BuggynessFactor is the outbound-drop probability for loss-injection
	// testing (§4.1). Zero in production configs.
	BuggynessFactor float64 `yaml:"buggyness_factor"`
}

// LoadFromFile reads and validates a YAML config file.
func LoadFromFile(path string) (*Conf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Conf
	if err := yaml.Unmarshal(data, &c); err != nil {
		return &c, err
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return &c, err
	}
	return &c, nil
}

// Default returns a Conf with every spec §6 default applied.
func Default() *Conf {
	c := &Conf{}
	c.SetDefaults()
	return c
}

func (c *Conf) SetDefaults() {
	if c.Variant == "" {
		c.Variant = SR
	}
	if c.AckTimeout == 0 {
		c.AckTimeout = 1500 * time.Millisecond
	}
	if c.FinWaitTimeout == 0 {
		c.FinWaitTimeout = 7 * time.Second
	}
	if c.FinAckWaitTimeout == 0 {
		c.FinAckWaitTimeout = 1500 * time.Millisecond
	}
	if c.ConnectRetries == 0 {
		c.ConnectRetries = 50
	}
	if c.FinRetries == 0 {
		c.FinRetries = 10
	}
	if c.AckRetries == 0 {
		c.AckRetries = 50
	}
	if c.MSS == 0 {
		c.MSS = 62000
	}
	if c.WindowSize == 0 {
		c.WindowSize = 500
	}
	if c.AcceptBacklog == 0 {
		c.AcceptBacklog = 128
	}
}

func (c *Conf) Validate() error {
	var errs []string

	validRoles := []string{"client", "server"}
	if c.Role != "" && !slices.Contains(validRoles, c.Role) {
		errs = append(errs, "role must be 'client' or 'server'")
	}
	if c.Variant != SAW && c.Variant != SR {
		errs = append(errs, "variant must be 'saw' or 'sr'")
	}
	if c.MSS <= 0 || c.MSS > 65514 {
		errs = append(errs, "mss must be in (0, 65514]")
	}
	// Invariant from spec §6: WINDOW_SIZE < 2^(8*seq_bytes-1) == 2^31.
	if c.WindowSize <= 0 || c.WindowSize >= (1<<31) {
		errs = append(errs, "window_size must be in (0, 2^31)")
	}
	if c.BuggynessFactor < 0 || c.BuggynessFactor > 1 {
		errs = append(errs, "buggyness_factor must be in [0, 1]")
	}
	if c.AcceptBacklog <= 0 {
		errs = append(errs, "accept_backlog must be > 0")
	}

	if len(errs) > 0 {
		msg := "rdtconf validation failed:"
		for _, e := range errs {
			msg += "\n  - " + e
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}
