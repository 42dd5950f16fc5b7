package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Network   NetworkConfig   `toml:"network"`
	Movement  MovementConfig  `toml:"movement"`
	Map       MapConfig       `toml:"map"`
	Npc       NpcConfig       `toml:"npc"`
	Database  DatabaseConfig  `toml:"database"`
	Scripting ScriptingConfig `toml:"scripting"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	ID        int    `toml:"id"`
	StartTime int64  // set at boot, not from config
}

type NetworkConfig struct {
	BindAddress    string        `toml:"bind_address"`
	TickRate       time.Duration `toml:"tick_rate"`   // movement tick interval
	PatrolRate     time.Duration `toml:"patrol_rate"` // patrol controller pass interval
	OutQueueSize   int           `toml:"out_queue_size"`
	WriteTimeout   time.Duration `toml:"write_timeout"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	MaxMessageSize int64         `toml:"max_message_size"`
}

type MovementConfig struct {
	// ClientReported switches players from click-to-move (server paths,
	// client acks each step) to client-reported positions checked by the
	// validator.
	ClientReported    bool          `toml:"client_reported"`
	PlayerSpeed       float64       `toml:"player_speed"` // tiles/s
	NpcSpeed          float64       `toml:"npc_speed"`    // tiles/s
	SpeedTolerance    float64       `toml:"speed_tolerance"`
	GracePeriod       time.Duration `toml:"grace_period"`
	TeleportThreshold time.Duration `toml:"teleport_threshold"`
	ViewRange         int32         `toml:"view_range"` // tiles, Chebyshev
	KickAfter         int           `toml:"kick_after"` // rejections before the default policy kicks
}

type MapConfig struct {
	List    string `toml:"list"`
	TileDir string `toml:"tile_dir"`
	MapID   int16  `toml:"map_id"`
	SpawnX  int32  `toml:"spawn_x"` // player spawn cell
	SpawnY  int32  `toml:"spawn_y"`
}

type NpcConfig struct {
	PatrolList string `toml:"patrol_list"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables the violation log
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	FlushInterval   time.Duration `toml:"flush_interval"`
}

type ScriptingConfig struct {
	Dir string `toml:"dir"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"` // "json" or "console"
	File       string `toml:"file"`   // optional rotating log file
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Default returns the built-in configuration used when no file overrides it.
func Default() *Config { return defaults() }

// Validate rejects settings the movement core cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Network.TickRate <= 0 {
		errs = append(errs, errors.New("network.tick_rate must be positive"))
	}
	if c.Network.PatrolRate <= 0 {
		errs = append(errs, errors.New("network.patrol_rate must be positive"))
	}
	if c.Network.OutQueueSize <= 0 {
		errs = append(errs, errors.New("network.out_queue_size must be positive"))
	}
	if c.Movement.PlayerSpeed <= 0 {
		errs = append(errs, errors.New("movement.player_speed must be positive"))
	}
	if c.Movement.NpcSpeed <= 0 {
		errs = append(errs, errors.New("movement.npc_speed must be positive"))
	}
	if c.Movement.SpeedTolerance < 1 {
		errs = append(errs, errors.New("movement.speed_tolerance must be at least 1"))
	}
	if c.Movement.GracePeriod < 0 || c.Movement.TeleportThreshold < 0 {
		errs = append(errs, errors.New("movement.grace_period and teleport_threshold must not be negative"))
	}
	if c.Database.DSN != "" && c.Database.FlushInterval <= 0 {
		errs = append(errs, errors.New("database.flush_interval must be positive"))
	}
	return errors.Join(errs...)
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "gridmove",
			ID:   1,
		},
		Network: NetworkConfig{
			BindAddress:    "0.0.0.0:7001",
			TickRate:       50 * time.Millisecond, // 20 Hz
			PatrolRate:     250 * time.Millisecond,
			OutQueueSize:   256,
			WriteTimeout:   10 * time.Second,
			ReadTimeout:    60 * time.Second,
			MaxMessageSize: 4096,
		},
		Movement: MovementConfig{
			PlayerSpeed:       4,
			NpcSpeed:          2,
			SpeedTolerance:    1.5,
			GracePeriod:       100 * time.Millisecond,
			TeleportThreshold: 500 * time.Millisecond,
			ViewRange:         20,
			KickAfter:         5,
		},
		Map: MapConfig{
			List:    "data/yaml/map_list.yaml",
			TileDir: "map",
			MapID:   0,
			SpawnX:  1,
			SpawnY:  1,
		},
		Npc: NpcConfig{
			PatrolList: "data/yaml/patrol_list.yaml",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			FlushInterval:   2 * time.Second,
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}
