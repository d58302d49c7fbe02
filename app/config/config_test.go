package config_test

import (
	"testing"

	"kaja/app/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
openai:
  chat:
    base_url: https://api.openai.com/v1
    token: sk-test
    model: gpt-4o-mini
  social:
    base_url: https://api.openai.com/v1
    token: sk-test
    model: gpt-4o-mini
trader:
  url: http://localhost:9040
agent:
  wallet_address: 7fUAJdStEuGbc3sM84cKRL6yYaaSstyLSU4ve5oovLS7
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "localhost:3306", cfg.DB.Host)
	assert.Equal(t, "https://api.dexscreener.com", cfg.Markets.DexscreenerURL)
	assert.Equal(t, "https://api-v3.raydium.io", cfg.Markets.RaydiumURL)
	assert.Equal(t, 0.0001, cfg.Agent.BuyAmountSOL)
	assert.Equal(t, 4, cfg.Agent.MaxRounds)
	assert.Equal(t, ":8080", cfg.API.Listen)
}

func TestParse_ExplicitValuesWin(t *testing.T) {
	cfg, err := config.Parse([]byte(`
openai:
  chat:
    base_url: https://api.openai.com/v1
    token: sk-test
    model: gpt-4o-mini
  social:
    base_url: https://api.openai.com/v1
    token: sk-test
    model: gpt-4o-mini
trader:
  url: http://localhost:9040
redis:
  addr: redis-prod:6379
agent:
  wallet_address: 7fUAJdStEuGbc3sM84cKRL6yYaaSstyLSU4ve5oovLS7
  buy_amount_sol: 0.5
  max_rounds: 8
`))
	require.NoError(t, err)

	assert.Equal(t, "redis-prod:6379", cfg.Redis.Addr)
	assert.Equal(t, 0.5, cfg.Agent.BuyAmountSOL)
	assert.Equal(t, 8, cfg.Agent.MaxRounds)
}

func TestParse_RejectsMissingRequired(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "empty", yaml: ``},
		{
			name: "missing wallet",
			yaml: `
openai:
  chat:
    base_url: https://api.openai.com/v1
    token: sk-test
    model: gpt-4o-mini
  social:
    base_url: https://api.openai.com/v1
    token: sk-test
    model: gpt-4o-mini
trader:
  url: http://localhost:9040
`,
		},
		{
			name: "missing chat model",
			yaml: `
openai:
  chat:
    base_url: https://api.openai.com/v1
    token: sk-test
  social:
    base_url: https://api.openai.com/v1
    token: sk-test
    model: gpt-4o-mini
trader:
  url: http://localhost:9040
agent:
  wallet_address: 7fUAJdStEuGbc3sM84cKRL6yYaaSstyLSU4ve5oovLS7
`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_RejectsInvalidYAML(t *testing.T) {
	_, err := config.Parse([]byte("openai: [not: a: mapping"))
	assert.Error(t, err)
}
