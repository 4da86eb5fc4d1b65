// Package config loads server and client settings from the environment,
// after merging an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tetriq/game"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Server is everything the server process needs at startup.
type Server struct {
	ListenAddress        string
	ListenPort           int
	MaxClients           int
	MaxIncomingBandwidth int
	MaxOutgoingBandwidth int
	TicksPerSecond       int
	GameWidth            int
	GameHeight           int

	AdminEnabled bool
	AdminAddr    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogFile  string
	LogLevel string

	MaxProtocolViolations int
}

// Addr is the host:port the game listener binds to.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.ListenAddress, strconv.Itoa(s.ListenPort))
}

// Period is the duration of one tick.
func (s *Server) Period() time.Duration {
	return time.Second / time.Duration(s.TicksPerSecond)
}

// Client is everything the client process needs at startup.
type Client struct {
	ServerURL            string
	MaxIncomingBandwidth int
	MaxOutgoingBandwidth int
	ServerTimeout        time.Duration

	LogFile  string
	LogLevel string

	Autoplay     bool
	AutoplaySeed uint64
}

// LoadServer reads TETRIQ_* variables. A missing .env file is not an error.
func LoadServer() (*Server, error) {
	_ = godotenv.Load()

	e := &env{}
	cfg := &Server{
		ListenAddress:         e.str("TETRIQ_LISTEN_ADDRESS", "0.0.0.0"),
		ListenPort:            e.integer("TETRIQ_LISTEN_PORT", 4242),
		MaxClients:            e.integer("TETRIQ_MAX_CLIENTS", 32),
		MaxIncomingBandwidth:  e.integer("TETRIQ_MAX_INCOMING_BANDWIDTH", 0),
		MaxOutgoingBandwidth:  e.integer("TETRIQ_MAX_OUTGOING_BANDWIDTH", 0),
		TicksPerSecond:        e.integer("TETRIQ_TICKS_PER_SECOND", 20),
		GameWidth:             e.integer("TETRIQ_GAME_WIDTH", 12),
		GameHeight:            e.integer("TETRIQ_GAME_HEIGHT", 22),
		AdminEnabled:          e.boolean("TETRIQ_ADMIN_ENABLED", false),
		AdminAddr:             e.str("TETRIQ_ADMIN_ADDR", "127.0.0.1:9090"),
		RedisAddr:             e.str("REDIS_ADDR", ""),
		RedisPassword:         e.str("REDIS_PASSWORD", ""),
		RedisDB:               e.integer("REDIS_DB", 0),
		LogFile:               e.str("TETRIQ_LOG_FILE", "tetriq-server.log"),
		LogLevel:              e.str("TETRIQ_LOG_LEVEL", "info"),
		MaxProtocolViolations: e.integer("TETRIQ_MAX_PROTOCOL_VIOLATIONS", 10),
	}
	if e.err != nil {
		return nil, e.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and addresses.
func (s *Server) Validate() error {
	var problems []string
	if s.ListenPort < 0 || s.ListenPort > 65535 {
		problems = append(problems, fmt.Sprintf("listen port %d", s.ListenPort))
	}
	if s.MaxClients < 1 {
		problems = append(problems, fmt.Sprintf("max clients %d", s.MaxClients))
	}
	if s.MaxIncomingBandwidth < 0 || s.MaxOutgoingBandwidth < 0 {
		problems = append(problems, "negative bandwidth")
	}
	if s.TicksPerSecond < 1 || s.TicksPerSecond > 1000 {
		problems = append(problems, fmt.Sprintf("ticks per second %d", s.TicksPerSecond))
	}
	if s.GameWidth < game.MinWidth || s.GameWidth > game.MaxDimension ||
		s.GameHeight < game.MinHeight || s.GameHeight > game.MaxDimension {
		problems = append(problems, fmt.Sprintf("game size %dx%d", s.GameWidth, s.GameHeight))
	}
	if s.AdminEnabled && s.AdminAddr == "" {
		problems = append(problems, "admin enabled without address")
	}
	if s.MaxProtocolViolations < 1 {
		problems = append(problems, fmt.Sprintf("max protocol violations %d", s.MaxProtocolViolations))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, ", "))
	}
	return nil
}

// LoadClient reads TETRIQ_* variables for the client binary.
func LoadClient() (*Client, error) {
	_ = godotenv.Load()

	e := &env{}
	cfg := &Client{
		ServerURL:            e.str("TETRIQ_SERVER_URL", "ws://127.0.0.1:4242/ws"),
		MaxIncomingBandwidth: e.integer("TETRIQ_MAX_INCOMING_BANDWIDTH", 0),
		MaxOutgoingBandwidth: e.integer("TETRIQ_MAX_OUTGOING_BANDWIDTH", 0),
		ServerTimeout:        time.Duration(e.integer("TETRIQ_SERVER_TIMEOUT_MS", 1000)) * time.Millisecond,
		LogFile:              e.str("TETRIQ_LOG_FILE", "tetriq-client.log"),
		LogLevel:             e.str("TETRIQ_LOG_LEVEL", "info"),
		Autoplay:             e.boolean("TETRIQ_AUTOPLAY", true),
		AutoplaySeed:         uint64(e.integer("TETRIQ_AUTOPLAY_SEED", 1)),
	}
	if e.err != nil {
		return nil, e.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the server URL and limits.
func (c *Client) Validate() error {
	var problems []string
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("server url %q", c.ServerURL))
	}
	if c.MaxIncomingBandwidth < 0 || c.MaxOutgoingBandwidth < 0 {
		problems = append(problems, "negative bandwidth")
	}
	if c.ServerTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("server timeout %s", c.ServerTimeout))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, ", "))
	}
	return nil
}

// env collects the first parse error so loaders read top to bottom.
type env struct {
	err error
}

func (e *env) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *env) integer(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.fail(fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, v))
		return def
	}
	return n
}

func (e *env) boolean(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		e.fail(fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, key, v))
		return def
	}
	return b
}

func (e *env) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
