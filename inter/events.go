package inter

// Event names. The keccak256 of a name is the first topic of the emitted log.
const (
	EventTransfer = "Transfer"
	EventMint     = "Mint"

	EventValidatorRegistered   = "ValidatorRegistered"
	EventValidatorUnregistered = "ValidatorUnregistered"
	EventProposalCreated       = "ProposalCreated"
	EventProposalVoted         = "ProposalVoted"
	EventProposalExecuted      = "ProposalExecuted"
	EventProposalExpired       = "ProposalExpired"

	EventStakeDeposited    = "StakeDeposited"
	EventStakeWithdrawn    = "StakeWithdrawn"
	EventValidatorSlashed  = "ValidatorSlashed"
	EventValidatorRewarded = "ValidatorRewarded"
	EventRewardPoolFunded  = "RewardPoolFunded"

	EventCircuitBreakerInitialized = "CircuitBreakerInitialized"
	EventCircuitBreakerUpdated     = "CircuitBreakerUpdated"
	EventCircuitBreakerTriggered   = "CircuitBreakerTriggered"
	EventCircuitBreakerReset       = "CircuitBreakerReset"
	EventBridgePaused              = "BridgePaused"
	EventBridgeResumed             = "BridgeResumed"
	EventChainsPaused              = "ChainsPaused"
	EventChainsResumed             = "ChainsResumed"

	EventSwapInitiated = "SwapInitiated"
	EventSwapCompleted = "SwapCompleted"
	EventSwapExpired   = "SwapExpired"
	EventSwapRefunded  = "SwapRefunded"

	EventBridgeInitiated  = "BridgeInitiated"
	EventTokensDeposited  = "TokensDeposited"
	EventBridgeCompleted  = "BridgeCompleted"
	EventTokensReleased   = "TokensReleased"
	EventBridgeCancelled  = "BridgeCancelled"
	EventBridgeConfigured = "BridgeConfigured"

	EventAdminChanged = "AdminChanged"
)

// Events lists every event name.
var Events = []string{
	EventTransfer, EventMint,
	EventValidatorRegistered, EventValidatorUnregistered,
	EventProposalCreated, EventProposalVoted, EventProposalExecuted, EventProposalExpired,
	EventStakeDeposited, EventStakeWithdrawn, EventValidatorSlashed, EventValidatorRewarded, EventRewardPoolFunded,
	EventCircuitBreakerInitialized, EventCircuitBreakerUpdated, EventCircuitBreakerTriggered, EventCircuitBreakerReset,
	EventBridgePaused, EventBridgeResumed, EventChainsPaused, EventChainsResumed,
	EventSwapInitiated, EventSwapCompleted, EventSwapExpired, EventSwapRefunded,
	EventBridgeInitiated, EventTokensDeposited, EventBridgeCompleted, EventTokensReleased, EventBridgeCancelled, EventBridgeConfigured,
	EventAdminChanged,
}
