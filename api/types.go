package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/rony4d/go-opera-bridge/inter"
)

// Timestamps are served as unix seconds.

type RPCConsensusState struct {
	TotalStake         *hexutil.Big   `json:"totalStake"`
	ActiveValidators   hexutil.Uint   `json:"activeValidators"`
	ByzantineThreshold hexutil.Uint   `json:"byzantineThreshold"`
	MaxFaulty          hexutil.Uint   `json:"maxFaulty"`
	LastRound          hexutil.Uint64 `json:"lastRound"`
}

func newRPCConsensusState(st inter.ConsensusState) *RPCConsensusState {
	return &RPCConsensusState{
		TotalStake:         (*hexutil.Big)(st.TotalStake),
		ActiveValidators:   hexutil.Uint(st.ActiveValidators),
		ByzantineThreshold: hexutil.Uint(st.ByzantineThreshold),
		MaxFaulty:          hexutil.Uint(st.MaxFaulty()),
		LastRound:          unix(st.LastRound),
	}
}

type RPCValidator struct {
	Address           common.Address `json:"address"`
	ID                hexutil.Uint   `json:"id"`
	Stake             *hexutil.Big   `json:"stake"`
	Reputation        hexutil.Uint   `json:"reputation"`
	Active            bool           `json:"active"`
	Status            hexutil.Uint64 `json:"status"`
	JoinedAt          hexutil.Uint64 `json:"joinedAt"`
	LastActivity      hexutil.Uint64 `json:"lastActivity"`
	TotalValidations  hexutil.Uint64 `json:"totalValidations"`
	MissedValidations hexutil.Uint64 `json:"missedValidations"`
	SlashedAmount     *hexutil.Big   `json:"slashedAmount"`
}

func newRPCValidator(v inter.ValidatorInfo) *RPCValidator {
	return &RPCValidator{
		Address:           v.Address,
		ID:                hexutil.Uint(v.ID),
		Stake:             (*hexutil.Big)(v.Stake),
		Reputation:        hexutil.Uint(v.Reputation),
		Active:            v.Active,
		Status:            hexutil.Uint64(v.Status),
		JoinedAt:          unix(v.JoinedAt),
		LastActivity:      unix(v.LastActivity),
		TotalValidations:  hexutil.Uint64(v.TotalValidations),
		MissedValidations: hexutil.Uint64(v.MissedValidations),
		SlashedAmount:     (*hexutil.Big)(v.SlashedAmount),
	}
}

type RPCMessage struct {
	SourceChain      hexutil.Uint   `json:"sourceChain"`
	SourceTxHash     common.Hash    `json:"sourceTxHash"`
	Nonce            hexutil.Uint64 `json:"nonce"`
	Token            common.Address `json:"token"`
	Amount           *hexutil.Big   `json:"amount"`
	Recipient        common.Address `json:"recipient"`
	DestinationChain hexutil.Uint   `json:"destinationChain"`
	Hash             common.Hash    `json:"hash"`
}

type RPCVote struct {
	Validator common.Address `json:"validator"`
	Approve   bool           `json:"approve"`
}

type RPCProposal struct {
	ID            hexutil.Uint64 `json:"id"`
	Proposer      common.Address `json:"proposer"`
	Message       RPCMessage     `json:"message"`
	Votes         []RPCVote      `json:"votes"`
	VoteCount     hexutil.Uint   `json:"voteCount"`
	RequiredVotes hexutil.Uint   `json:"requiredVotes"`
	Status        string         `json:"status"`
	CreatedAt     hexutil.Uint64 `json:"createdAt"`
	ExpiresAt     hexutil.Uint64 `json:"expiresAt"`
}

func newRPCProposal(p inter.BridgeProposal) *RPCProposal {
	votes := make([]RPCVote, len(p.Votes))
	for i, v := range p.Votes {
		votes[i] = RPCVote{Validator: v.Validator, Approve: v.Approve}
	}
	return &RPCProposal{
		ID:       hexutil.Uint64(p.ID),
		Proposer: p.Proposer,
		Message: RPCMessage{
			SourceChain:      hexutil.Uint(p.Message.SourceChain),
			SourceTxHash:     p.Message.SourceTxHash,
			Nonce:            hexutil.Uint64(p.Message.Nonce),
			Token:            p.Message.Token,
			Amount:           (*hexutil.Big)(p.Message.Amount),
			Recipient:        p.Message.Recipient,
			DestinationChain: hexutil.Uint(p.Message.DestinationChain),
			Hash:             p.Message.Hash(),
		},
		Votes:         votes,
		VoteCount:     hexutil.Uint(p.VoteCount),
		RequiredVotes: hexutil.Uint(p.RequiredVotes),
		Status:        p.Status.String(),
		CreatedAt:     unix(p.CreatedAt),
		ExpiresAt:     unix(p.ExpiresAt),
	}
}

type RPCSwap struct {
	ID                 hexutil.Uint64 `json:"id"`
	Initiator          common.Address `json:"initiator"`
	InitiatorToken     common.Address `json:"initiatorToken"`
	InitiatorAmount    *hexutil.Big   `json:"initiatorAmount"`
	Counterparty       common.Address `json:"counterparty"`
	CounterpartyToken  common.Address `json:"counterpartyToken"`
	CounterpartyAmount *hexutil.Big   `json:"counterpartyAmount"`
	Hashlock           common.Hash    `json:"hashlock"`
	Timelock           hexutil.Uint64 `json:"timelock"`
	Status             string         `json:"status"`
	CreatedAt          hexutil.Uint64 `json:"createdAt"`
	Preimage           hexutil.Bytes  `json:"preimage,omitempty"`
}

func newRPCSwap(s inter.AtomicSwap) *RPCSwap {
	return &RPCSwap{
		ID:                 hexutil.Uint64(s.ID),
		Initiator:          s.Initiator,
		InitiatorToken:     s.InitiatorToken,
		InitiatorAmount:    (*hexutil.Big)(s.InitiatorAmount),
		Counterparty:       s.Counterparty,
		CounterpartyToken:  s.CounterpartyToken,
		CounterpartyAmount: (*hexutil.Big)(s.CounterpartyAmount),
		Hashlock:           s.Hashlock,
		Timelock:           unix(s.Timelock),
		Status:             s.Status.String(),
		CreatedAt:          unix(s.CreatedAt),
		Preimage:           s.Preimage,
	}
}

type RPCCircuitBreaker struct {
	ChainID              hexutil.Uint   `json:"chainId"`
	MaxDailyVolume       *hexutil.Big   `json:"maxDailyVolume"`
	CurrentDailyVolume   *hexutil.Big   `json:"currentDailyVolume"`
	MaxTransactionAmount *hexutil.Big   `json:"maxTransactionAmount"`
	LastReset            hexutil.Uint64 `json:"lastReset"`
	Triggered            bool           `json:"triggered"`
	Paused               bool           `json:"paused"`
}

func newRPCCircuitBreaker(cb inter.CircuitBreaker, paused bool) *RPCCircuitBreaker {
	return &RPCCircuitBreaker{
		ChainID:              hexutil.Uint(cb.ChainID),
		MaxDailyVolume:       (*hexutil.Big)(cb.MaxDailyVolume),
		CurrentDailyVolume:   (*hexutil.Big)(cb.CurrentDailyVolume),
		MaxTransactionAmount: (*hexutil.Big)(cb.MaxTransactionAmount),
		LastReset:            unix(cb.LastReset),
		Triggered:            cb.Triggered,
		Paused:               paused,
	}
}

type RPCSlashingRecord struct {
	Validator common.Address `json:"validator"`
	Amount    *hexutil.Big   `json:"amount"`
	Reason    string         `json:"reason"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
	Evidence  hexutil.Bytes  `json:"evidence"`
	Slasher   common.Address `json:"slasher"`
}

func newRPCSlashingRecord(r inter.SlashingRecord) *RPCSlashingRecord {
	return &RPCSlashingRecord{
		Validator: r.Validator,
		Amount:    (*hexutil.Big)(r.Amount),
		Reason:    r.Reason.String(),
		Timestamp: unix(r.Timestamp),
		Evidence:  r.Evidence,
		Slasher:   r.Slasher,
	}
}

type RPCRewardRecord struct {
	Validator  common.Address `json:"validator"`
	Amount     *hexutil.Big   `json:"amount"`
	RewardType string         `json:"rewardType"`
	Timestamp  hexutil.Uint64 `json:"timestamp"`
}

func newRPCRewardRecord(r inter.RewardRecord) *RPCRewardRecord {
	return &RPCRewardRecord{
		Validator:  r.Validator,
		Amount:     (*hexutil.Big)(r.Amount),
		RewardType: r.RewardType,
		Timestamp:  unix(r.Timestamp),
	}
}

type RPCBridgeTransaction struct {
	Nonce            hexutil.Uint64 `json:"nonce"`
	Sender           common.Address `json:"sender"`
	Token            common.Address `json:"token"`
	Amount           *hexutil.Big   `json:"amount"`
	Fee              *hexutil.Big   `json:"fee"`
	DestinationChain hexutil.Uint   `json:"destinationChain"`
	Recipient        hexutil.Bytes  `json:"recipient"`
	Timestamp        hexutil.Uint64 `json:"timestamp"`
}

func newRPCBridgeTransaction(tx inter.BridgeTransaction) *RPCBridgeTransaction {
	return &RPCBridgeTransaction{
		Nonce:            hexutil.Uint64(tx.Nonce),
		Sender:           tx.Sender,
		Token:            tx.Token,
		Amount:           (*hexutil.Big)(tx.Amount),
		Fee:              (*hexutil.Big)(tx.Fee),
		DestinationChain: hexutil.Uint(tx.DestinationChain),
		Recipient:        tx.Recipient,
		Timestamp:        unix(tx.Timestamp),
	}
}

type RPCBridgeMetrics struct {
	Nonce           hexutil.Uint64 `json:"nonce"`
	OutboundCount   hexutil.Uint64 `json:"outboundCount"`
	OutboundVolume  *hexutil.Big   `json:"outboundVolume"`
	CompletedCount  hexutil.Uint64 `json:"completedCount"`
	CompletedVolume *hexutil.Big   `json:"completedVolume"`
	CancelledCount  hexutil.Uint64 `json:"cancelledCount"`
	CancelledVolume *hexutil.Big   `json:"cancelledVolume"`
	FeesCollected   *hexutil.Big   `json:"feesCollected"`
}

func newRPCBridgeMetrics(m inter.BridgeMetrics, nonce uint64) *RPCBridgeMetrics {
	return &RPCBridgeMetrics{
		Nonce:           hexutil.Uint64(nonce),
		OutboundCount:   hexutil.Uint64(m.OutboundCount),
		OutboundVolume:  (*hexutil.Big)(m.OutboundVolume),
		CompletedCount:  hexutil.Uint64(m.CompletedCount),
		CompletedVolume: (*hexutil.Big)(m.CompletedVolume),
		CancelledCount:  hexutil.Uint64(m.CancelledCount),
		CancelledVolume: (*hexutil.Big)(m.CancelledVolume),
		FeesCollected:   (*hexutil.Big)(m.FeesCollected),
	}
}

func unix(t inter.Timestamp) hexutil.Uint64 {
	return hexutil.Uint64(t.Unix())
}
