package catalog

import (
	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
)

// Service holds the per-mode tool tables. It is immutable after construction
// and safe for concurrent reads.
type Service struct {
	modes map[Mode][]ToolDefinition
}

func New(_ *do.Injector) (*Service, error) {
	return Build()
}

// Build assembles the tool tables and fails fast on a definition whose
// required list references an undeclared parameter.
func Build() (*Service, error) {
	identifyPool := ToolDefinition{
		Name:        ToolIdentifyPool,
		Description: "Fetch address of a given pool or token address on Raydium.",
		Parameters: map[string]string{
			"pool_or_token_address": "Fetch token or pool address from Raydium URL.",
		},
		Required: []string{"pool_or_token_address"},
	}
	fetchPoolData := ToolDefinition{
		Name:        ToolFetchPoolData,
		Description: "Fetch analytics data for a given token address.",
		Parameters: map[string]string{
			"token_address": "The address of the pool to fetch data for.",
		},
		Required: []string{"token_address"},
	}
	retrievePortfolio := ToolDefinition{
		Name:        ToolRetrieveCurrentPortfolio,
		Description: "Retrieve information about the current agent's portfolio.",
		Parameters:  map[string]string{},
	}
	retrieveBuyExplanation := ToolDefinition{
		Name:        ToolRetrieveBuyExplanation,
		Description: "Retrieve explanation for why a specific meme token was bought.",
		Parameters: map[string]string{
			"pool_address": "Retrieve the pool address of the token pair.",
		},
		Required: []string{"pool_address"},
	}
	retrievePnl := ToolDefinition{
		Name:        ToolRetrievePnlInformation,
		Description: "Retrieve profit and loss (PnL) statistics based on the user's request.",
		Parameters: map[string]string{
			"action": "Specify the action to retrieve PnL statistics.",
		},
		Required: []string{"action"},
	}

	modes := map[Mode][]ToolDefinition{
		ModeTradingAllowed: {
			{
				Name:        ToolApproveShilling,
				Description: "Approve buying meme token from Raydium and provide an explanation.",
				Parameters: map[string]string{
					"explanation": "Explanation for why you decide to buy the token.",
					"poolAddress": "Extract the poolAddress from analytic data.",
				},
				Required: []string{"explanation", "poolAddress"},
			},
			{
				Name:        ToolRejectShilling,
				Description: "Reject buying meme token from Raydium and provide an explanation.",
				Parameters: map[string]string{
					"explanation": "Explanation for why you reject buying the token.",
				},
				Required: []string{"explanation"},
			},
			identifyPool,
			fetchPoolData,
			retrievePortfolio,
			retrieveBuyExplanation,
			retrievePnl,
		},
		ModeTradingNotAllowed: {
			identifyPool,
			retrievePortfolio,
			retrieveBuyExplanation,
			retrievePnl,
		},
		ModeSocialPost: {
			{
				Name:        ToolGeneratePostInTwitter,
				Description: "Generate and post text on Twitter.",
				Parameters: map[string]string{
					"data": "Data provided to generate a post on Twitter.",
				},
				Required: []string{"data"},
			},
		},
	}

	for mode, defs := range modes {
		for _, def := range defs {
			for _, name := range def.Required {
				if _, ok := def.Parameters[name]; !ok {
					return nil, oops.Errorf("tool %q in mode %q requires undeclared parameter %q",
						def.Name, mode, name)
				}
			}
		}
	}

	return &Service{modes: modes}, nil
}

// ForMode returns the ordered tool definitions available in the given mode.
// The returned slice must not be mutated.
func (s *Service) ForMode(mode Mode) []ToolDefinition {
	return s.modes[mode]
}

// Contains reports whether the named tool is part of the mode's catalog.
func (s *Service) Contains(mode Mode, name ToolName) bool {
	return pie.Any(s.modes[mode], func(def ToolDefinition) bool {
		return def.Name == name
	})
}
