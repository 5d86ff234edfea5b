package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Gateway GatewayConfig `yaml:"gateway"`
	Logging LoggingConfig `yaml:"logging"`
	Paths   PathsConfig   `yaml:"paths"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// EngineConfig 运行时循环配置。
type EngineConfig struct {
	// TickFPS 是每个 play 的 tick 泵频率。评分节流与光标延时走
	// 会话设置，与 tick 频率解耦。
	TickFPS int `yaml:"tick_fps"`
}

type GatewayConfig struct {
	PingInterval   time.Duration `yaml:"ping_interval"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PathsConfig struct {
	// Games 是授权内容目录（*.json 游戏文件）。
	Games string `yaml:"games"`
}

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	fmt.Printf("📋 Loading config from: %s\n", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	fmt.Printf("✅ Config file read successfully (%d bytes)\n", len(data))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	fmt.Printf("✅ Config parsed successfully\n")

	// 从环境变量覆盖部署相关项
	if port := os.Getenv("POSEPLAY_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("parse POSEPLAY_PORT: %w", err)
		}
		fmt.Printf("🔌 Using POSEPLAY_PORT from environment: %d\n", p)
		cfg.Server.Port = p
	}
	if games := os.Getenv("POSEPLAY_GAMES_DIR"); games != "" {
		fmt.Printf("📚 Using POSEPLAY_GAMES_DIR from environment: %s\n", games)
		cfg.Paths.Games = games
	}

	cfg.applyDefaults()

	// 打印关键配置
	fmt.Printf("\n📊 Configuration Summary:\n")
	fmt.Printf("   Server: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("   Tick FPS: %d\n", cfg.Engine.TickFPS)
	fmt.Printf("   Games Dir: %s\n", cfg.Paths.Games)
	fmt.Printf("\n")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	fmt.Printf("✅ Config validation passed\n\n")

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Engine.TickFPS == 0 {
		c.Engine.TickFPS = 30
	}
	if c.Gateway.PingInterval == 0 {
		c.Gateway.PingInterval = 20 * time.Second
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Paths.Games == "" {
		return fmt.Errorf("games path is required (set paths.games or POSEPLAY_GAMES_DIR)")
	}
	if c.Engine.TickFPS < 1 || c.Engine.TickFPS > 120 {
		return fmt.Errorf("engine.tick_fps must be in [1, 120], got %d", c.Engine.TickFPS)
	}
	return nil
}

// TickInterval 返回 tick 泵周期。
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Engine.TickFPS)
}

// Addr 返回监听地址。
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
