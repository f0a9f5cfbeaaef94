package websocket

import (
	"time"

	"github.com/KevinKickass/OpenCircuitCore/internal/analysis"
	"github.com/KevinKickass/OpenCircuitCore/internal/simulation"
	"github.com/KevinKickass/OpenCircuitCore/internal/types"
)

// MessageType doubles as the subscription topic of a message.
type MessageType string

const (
	MessageTypeWireState       MessageType = "wire_state"
	MessageTypeWireStates      MessageType = "wire_states"
	MessageTypeNetworkChange   MessageType = "network_change"
	MessageTypeIndicator       MessageType = "indicator"
	MessageTypeSimulationState MessageType = "simulation_state"
	MessageTypeAnalysis        MessageType = "analysis"
	MessageTypeSystemStatus    MessageType = "system_status"

	// client -> server
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeSubscribed  MessageType = "subscribed"
	MessageTypeError       MessageType = "error"
)

type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// ClientMessage is what clients send: a topic (un)subscription.
type ClientMessage struct {
	Type   MessageType   `json:"type"`
	Topics []MessageType `json:"topics"`
}

type NetworkChangeData struct {
	Kind string     `json:"kind"`
	Wire types.Wire `json:"wire"`
}

type IndicatorData struct {
	ComponentID string `json:"component_id"`
	Lit         bool   `json:"lit"`
}

type SubscribedData struct {
	Topics []MessageType `json:"topics"`
}

type ErrorData struct {
	Message string `json:"message"`
}

func NewMessage(msgType MessageType, data any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewWireStateMessage(st types.WireRuntimeState) Message {
	return NewMessage(MessageTypeWireState, st)
}

func NewWireStatesMessage(states []types.WireRuntimeState) Message {
	return NewMessage(MessageTypeWireStates, states)
}

func NewNetworkChangeMessage(kind string, w types.Wire) Message {
	return NewMessage(MessageTypeNetworkChange, NetworkChangeData{Kind: kind, Wire: w})
}

func NewIndicatorMessage(componentID string, lit bool) Message {
	return NewMessage(MessageTypeIndicator, IndicatorData{ComponentID: componentID, Lit: lit})
}

func NewSimulationStateMessage(st simulation.Status) Message {
	return NewMessage(MessageTypeSimulationState, st)
}

func NewAnalysisMessage(snap analysis.Snapshot) Message {
	return NewMessage(MessageTypeAnalysis, snap)
}
