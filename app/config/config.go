package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log     Log     `yaml:"log"`
	Redis   Redis   `yaml:"redis"`
	DB      DB      `yaml:"db"`
	OpenAI  OpenAI  `yaml:"openai"`
	Markets Markets `yaml:"markets"`
	Trader  Trader  `yaml:"trader"`
	Twitter Twitter `yaml:"twitter"`
	Agent   Agent   `yaml:"agent"`
	API     API     `yaml:"api"`
}

type OpenAI struct {
	Chat   ModelConfig `yaml:"chat" validate:"required"`
	Social ModelConfig `yaml:"social" validate:"required"`
}

type ModelConfig struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1" validate:"required"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// OpenAI model
	Model string `yaml:"model" example:"gpt-4o-mini" validate:"required"`
}

type Markets struct {
	// Dex Screener API base url
	DexscreenerURL string `yaml:"dexscreener_url" example:"https://api.dexscreener.com"`
	// Raydium API base url
	RaydiumURL string `yaml:"raydium_url" example:"https://api-v3.raydium.io"`
}

type Trader struct {
	// Base url of the swap-execution service
	URL string `yaml:"url" example:"http://localhost:9040" validate:"required"`
}

type Twitter struct {
	// Base url of the post-publication service
	URL string `yaml:"url" example:"http://localhost:9050"`
	// Bearer token for the post-publication service
	Token string `yaml:"token"`
}

type Agent struct {
	// Solana wallet address of the agent
	WalletAddress string `yaml:"wallet_address" example:"7fUAJdStEuGbc3sM84cKRL6yYaaSstyLSU4ve5oovLS7" validate:"required"`
	// Amount of SOL spent per approved purchase
	BuyAmountSOL float64 `yaml:"buy_amount_sol" example:"0.0001"`
	// Maximum number of model invocations per conversation turn
	MaxRounds int `yaml:"max_rounds" example:"4"`
}

type API struct {
	// Listen address of the HTTP server
	Listen string `yaml:"listen" example:":8080"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type Redis struct {
	// Redis address
	Addr string `yaml:"addr" example:"localhost:6379"`
	// Redis password
	Password string `yaml:"password"`
	// Redis database number
	Database int `yaml:"database" example:"0"`
}

type DB struct {
	// MySQL username
	User string `yaml:"user" example:"kaja" validate:"required"`
	// MySQL password
	Pass string `yaml:"pass" validate:"required"`
	// MySQL host
	Host string `yaml:"host"  example:"localhost:3306" validate:"required"`
	// MySQL database name
	Database string `yaml:"database" example:"kaja" validate:"required"`
}

func Load() (*Config, error) {
	data, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var result Config

	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	if result.Redis.Addr == "" {
		result.Redis.Addr = "localhost:6379"
	}
	if result.DB.User == "" {
		result.DB.User = "kaja"
	}
	if result.DB.Pass == "" {
		result.DB.Pass = "kaja"
	}
	if result.DB.Host == "" {
		result.DB.Host = "localhost:3306"
	}
	if result.DB.Database == "" {
		result.DB.Database = "kaja"
	}
	if result.Markets.DexscreenerURL == "" {
		result.Markets.DexscreenerURL = "https://api.dexscreener.com"
	}
	if result.Markets.RaydiumURL == "" {
		result.Markets.RaydiumURL = "https://api-v3.raydium.io"
	}
	if result.Agent.BuyAmountSOL <= 0 {
		result.Agent.BuyAmountSOL = 0.0001
	}
	if result.Agent.MaxRounds <= 0 {
		result.Agent.MaxRounds = 4
	}
	if result.API.Listen == "" {
		result.API.Listen = ":8080"
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}
