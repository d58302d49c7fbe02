package catalog

// Mode is the permission context of a conversation turn. It selects which
// tools the model is allowed to request.
type Mode string

const (
	ModeTradingAllowed    Mode = "trading_allowed"
	ModeTradingNotAllowed Mode = "trading_not_allowed"
	ModeSocialPost        Mode = "social_post"
)

// ToolName is a closed enumeration of the tool identifiers known at compile
// time. An unrecognized name coming back from the model is never silently
// ignored, it maps to a distinct unknown-tool error in the executor.
type ToolName string

const (
	ToolIdentifyPool             ToolName = "identifyPool"
	ToolFetchPoolData            ToolName = "fetch_pool_data"
	ToolRetrieveCurrentPortfolio ToolName = "retrieveCurrentPortfolio"
	ToolRetrieveBuyExplanation   ToolName = "retrieveBuyExplanation"
	ToolRetrievePnlInformation   ToolName = "retrievePnlInformation"
	ToolApproveShilling          ToolName = "approveShilling"
	ToolRejectShilling           ToolName = "rejectShilling"
	ToolGeneratePostInTwitter    ToolName = "generatePostInTwitter"
)

// Terminal reports whether a successful execution of the tool ends the
// orchestration loop with a final decision.
func (n ToolName) Terminal() bool {
	return n == ToolApproveShilling || n == ToolRejectShilling
}

type ToolDefinition struct {
	Name        ToolName
	Description string
	// Parameters maps parameter name to its description.
	Parameters map[string]string
	// Required lists parameter names that must be present, every entry must
	// exist in Parameters.
	Required []string
}
