package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"rbcast/internal/message"
)

// DefaultHost is used for peer addresses given as a bare port.
const DefaultHost = "127.0.0.1"

// Timing defaults.
const (
	DefaultRetransmitAfter = 3 * time.Second
	DefaultRepeatInterval  = 1500 * time.Millisecond
	DefaultScanInterval    = 1 * time.Second
)

// Environment variables read by FromEnv.
const (
	EnvProcessID        = "RBCAST_PID"
	EnvListenAddr       = "RBCAST_LISTEN"
	EnvPeers            = "RBCAST_PEERS"
	EnvAdminAddr        = "RBCAST_ADMIN"
	EnvCodec            = "RBCAST_CODEC"
	EnvRetransmitAfter  = "RBCAST_RETRANSMIT_AFTER"
	EnvRepeatInterval   = "RBCAST_REPEAT_INTERVAL"
	EnvScanInterval     = "RBCAST_SCAN_INTERVAL"
	EnvMaxRetryDuration = "RBCAST_MAX_RETRY"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Peer represents another member of the group.
type Peer struct {
	ID   int
	Addr string
}

// Config holds the process configuration.
type Config struct {
	ProcessID  int
	ListenAddr string
	Peers      []Peer
	AdminAddr  string // optional gRPC health endpoint
	Codec      string

	RetransmitAfter  time.Duration // first retry no sooner than this after the first send
	RepeatInterval   time.Duration // minimum spacing between retries of one message
	ScanInterval     time.Duration // period of the retransmission loop
	MaxRetryDuration time.Duration // 0 retries forever
}

// Default returns a configuration with the default timing and codec.
func Default() Config {
	return Config{
		Codec:           "json",
		RetransmitAfter: DefaultRetransmitAfter,
		RepeatInterval:  DefaultRepeatInterval,
		ScanInterval:    DefaultScanInterval,
	}
}

// NormalizeAddr expands a bare port ("5002") to DefaultHost:port.
func NormalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if _, err := strconv.Atoi(addr); err == nil {
		return net.JoinHostPort(DefaultHost, addr)
	}
	return addr
}

// ParsePeers parses a comma-separated list of peers in the format:
// "2=127.0.0.1:5002,3=127.0.0.1:5003". An address may be a bare port.
func ParsePeers(peersStr string) ([]Peer, error) {
	if strings.TrimSpace(peersStr) == "" {
		return []Peer{}, nil
	}

	parts := strings.Split(peersStr, ",")
	peers := make([]Peer, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("%w: invalid peer format: %s (expected id=addr)", ErrInvalid, part)
		}

		idStr := strings.TrimSpace(kv[0])
		addr := strings.TrimSpace(kv[1])
		if idStr == "" || addr == "" {
			return nil, fmt.Errorf("%w: peer ID and address cannot be empty: %s", ErrInvalid, part)
		}

		id, err := strconv.Atoi(idStr)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: peer ID must be a positive integer: %s", ErrInvalid, part)
		}

		peers = append(peers, Peer{
			ID:   id,
			Addr: NormalizeAddr(addr),
		})
	}

	return peers, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.ProcessID <= 0 {
		return fmt.Errorf("%w: process id must be positive, got %d", ErrInvalid, c.ProcessID)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen address is required", ErrInvalid)
	}

	ids := map[int]bool{c.ProcessID: true}
	addrs := map[string]bool{c.ListenAddr: true}
	for _, p := range c.Peers {
		if ids[p.ID] {
			return fmt.Errorf("%w: duplicate process id %d", ErrInvalid, p.ID)
		}
		if addrs[p.Addr] {
			return fmt.Errorf("%w: duplicate address %s", ErrInvalid, p.Addr)
		}
		ids[p.ID] = true
		addrs[p.Addr] = true
	}

	if c.RetransmitAfter <= 0 || c.RepeatInterval <= 0 || c.ScanInterval <= 0 {
		return fmt.Errorf("%w: retransmit-after, repeat interval and scan interval must be positive", ErrInvalid)
	}
	if c.MaxRetryDuration < 0 {
		return fmt.Errorf("%w: max retry duration cannot be negative", ErrInvalid)
	}
	if _, err := message.CodecByName(c.Codec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// GroupSize returns 1 (self) + number of peers.
func (c *Config) GroupSize() int {
	return 1 + len(c.Peers)
}

// Members returns the process ids of the whole group, self first.
func (c *Config) Members() []int {
	ids := make([]int, 0, c.GroupSize())
	ids = append(ids, c.ProcessID)
	for _, p := range c.Peers {
		ids = append(ids, p.ID)
	}
	return ids
}

// PeerAddrs returns the peer addresses in configuration order.
func (c *Config) PeerAddrs() []string {
	addrs := make([]string, 0, len(c.Peers))
	for _, p := range c.Peers {
		addrs = append(addrs, p.Addr)
	}
	return addrs
}

// FromEnv builds a configuration from RBCAST_* environment variables,
// starting from Default. The given dotenv files are loaded first; with no
// files, ./.env is loaded if present. Variables already set in the
// environment take precedence over dotenv files.
func FromEnv(files ...string) (Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, fmt.Errorf("failed to load env files %v: %w", files, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := Default()

	if v, ok := os.LookupEnv(EnvProcessID); ok {
		pid, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvProcessID, v, err)
		}
		cfg.ProcessID = pid
	}
	if v, ok := os.LookupEnv(EnvListenAddr); ok {
		cfg.ListenAddr = NormalizeAddr(v)
	}
	if v, ok := os.LookupEnv(EnvPeers); ok {
		peers, err := ParsePeers(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Peers = peers
	}
	if v, ok := os.LookupEnv(EnvAdminAddr); ok {
		cfg.AdminAddr = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvCodec); ok {
		cfg.Codec = strings.TrimSpace(v)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvRetransmitAfter, &cfg.RetransmitAfter},
		{EnvRepeatInterval, &cfg.RepeatInterval},
		{EnvScanInterval, &cfg.ScanInterval},
		{EnvMaxRetryDuration, &cfg.MaxRetryDuration},
	}
	for _, d := range durations {
		v, ok := os.LookupEnv(d.key)
		if !ok {
			continue
		}
		parsed, err := ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s=%q: %v", ErrInvalid, d.key, v, err)
		}
		*d.dst = parsed
	}

	return cfg, nil
}

// ParseDuration accepts Go duration strings ("1500ms") and plain numbers of
// seconds ("1.5").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}
