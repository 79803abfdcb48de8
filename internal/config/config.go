package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentdeck/agentdeck/internal/session"
)

type Config struct {
	Server  Server           `yaml:"server"`
	Engine  Engine           `yaml:"engine"`
	Status  Status           `yaml:"status"`
	Agents  map[string]Agent `yaml:"agents"`
	Viewer  Viewer           `yaml:"viewer"`
	Privacy Privacy          `yaml:"privacy"`
}

type Server struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
	// Token, when set, is required on every API and websocket request.
	Token string `yaml:"token"`
	// MaxWSConnections caps concurrent websocket clients; 0 means unlimited.
	MaxWSConnections int `yaml:"max_ws_connections"`
}

type Engine struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	ProcessCacheTTL time.Duration `yaml:"process_cache_ttl"`
	DiffStatsTTL    time.Duration `yaml:"diff_stats_ttl"`
	TranscriptTail  int64         `yaml:"transcript_tail_bytes"`
}

// Status holds the default inference thresholds; per-agent overrides live
// under agents.<name>.
type Status struct {
	PendingWindow time.Duration `yaml:"pending_window"`
	CPUThreshold  float64       `yaml:"cpu_threshold"`
	IdleAfter     time.Duration `yaml:"idle_after"`
	StaleAfter    time.Duration `yaml:"stale_after"`
}

// Agent overrides storage location and thresholds for one agent family.
// Zero-valued fields fall back to the defaults.
type Agent struct {
	Root          string        `yaml:"root"`
	PendingWindow time.Duration `yaml:"pending_window"`
	CPUThreshold  float64       `yaml:"cpu_threshold"`
	IdleAfter     time.Duration `yaml:"idle_after"`
	StaleAfter    time.Duration `yaml:"stale_after"`
}

type Viewer struct {
	Command       string        `yaml:"command"`
	PushInterval  time.Duration `yaml:"push_interval"`
	EditorCommand string        `yaml:"editor_command"`
}

// Privacy controls what session detail leaves the daemon.
type Privacy struct {
	MaskProjectPaths bool     `yaml:"mask_project_paths"`
	MaskSessionIDs   bool     `yaml:"mask_session_ids"`
	MaskPIDs         bool     `yaml:"mask_pids"`
	MaskMessages     bool     `yaml:"mask_messages"`
	AllowedPaths     []string `yaml:"allowed_paths"`
	BlockedPaths     []string `yaml:"blocked_paths"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Engine: Engine{
			PollInterval:    3 * time.Second,
			ProcessCacheTTL: 750 * time.Millisecond,
			DiffStatsTTL:    12 * time.Second,
			TranscriptTail:  256 * 1024,
		},
		Status: Status{
			PendingWindow: 3 * time.Minute,
			CPUThreshold:  15.0,
			IdleAfter:     5 * time.Minute,
			StaleAfter:    10 * time.Minute,
		},
		Viewer: Viewer{
			PushInterval:  3 * time.Second,
			EditorCommand: "code",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault loads the config when the file exists and silently falls
// back to defaults when it doesn't. Other read or parse errors still fail.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	return cfg, err
}

// AgentStatus resolves the effective thresholds for one agent family,
// layering any per-agent override over the defaults.
func (c *Config) AgentStatus(agent string) Status {
	out := c.Status
	a, ok := c.Agents[agent]
	if !ok {
		return out
	}
	if a.PendingWindow > 0 {
		out.PendingWindow = a.PendingWindow
	}
	if a.CPUThreshold > 0 {
		out.CPUThreshold = a.CPUThreshold
	}
	if a.IdleAfter > 0 {
		out.IdleAfter = a.IdleAfter
	}
	if a.StaleAfter > 0 {
		out.StaleAfter = a.StaleAfter
	}
	return out
}

// AgentRoot returns the configured storage root for an agent family, or ""
// when the detector should use its built-in default location.
func (c *Config) AgentRoot(agent string) string {
	if a, ok := c.Agents[agent]; ok {
		return a.Root
	}
	return ""
}

// PrivacyFilter builds the session filter from the privacy section.
func (c *Config) PrivacyFilter() *session.PrivacyFilter {
	return &session.PrivacyFilter{
		MaskProjectPaths: c.Privacy.MaskProjectPaths,
		MaskSessionIDs:   c.Privacy.MaskSessionIDs,
		MaskPIDs:         c.Privacy.MaskPIDs,
		MaskMessages:     c.Privacy.MaskMessages,
		AllowedPaths:     c.Privacy.AllowedPaths,
		BlockedPaths:     c.Privacy.BlockedPaths,
	}
}
