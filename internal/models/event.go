package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Known client event names. The dispatch table in the ingestion pipeline is
// keyed by these; unknown names are accepted and ignored.
const (
	EventContractStart      = "ContractStart"
	EventIntroCutEnd        = "IntroCutEnd"
	EventExitGate           = "exit_gate"
	EventContractEnd        = "ContractEnd"
	EventContractFailed     = "ContractFailed"
	EventKill               = "Kill"
	EventCrowdNpcDied       = "CrowdNPC_Died"
	EventPacify             = "Pacify"
	EventBodyHidden         = "BodyHidden"
	EventDisguise           = "Disguise"
	EventDisguiseBlown      = "DisguiseBlown"
	EventBrokenDisguiseCleared = "BrokenDisguiseCleared"
	EventSpotted            = "Spotted"
	EventWitnesses          = "Witnesses"
	EventSecurityRecorder   = "SecuritySystemRecorder"
	EventObjectiveCompleted = "ObjectiveCompleted"
	EventAccidentBodyFound  = "AccidentBodyFound"
	EventDeadBodySeen       = "DeadBodySeen"
	EventMurderedBodySeen   = "MurderedBodySeen"
	EventAddSyndicateTarget    = "AddSyndicateTarget"
	EventRemoveSyndicateTarget = "RemoveSyndicateTarget"
	EventAreaDiscovered     = "AreaDiscovered"
	EventCpdSet             = "CpdSet"
	EventMissionFailed      = "MissionFailed_Event"
	EventEvergreenPayout    = "Evergreen_Payout_Data"
	EventGhostPlayerDied    = "Ghost_PlayerDied"
	EventGhostTargetUnnoticed = "Ghost_TargetUnnoticed"
	EventOpponents          = "Opponents"
	EventMatchOver          = "MatchOver"
	EventSegmentClosing     = "SegmentClosing"
)

// ScoringScreenEndStatePrefix marks the evergreen scoring-screen events that
// short-circuit all other processing for the event.
const ScoringScreenEndStatePrefix = "ScoringScreenEndState_"

// ClientEvent is the wire form of one gameplay telemetry event. Timestamp is
// the client's mission clock in seconds, not wall time. CreatedAt and Token
// are stamped by the server when the event is queued for delivery.
type ClientEvent struct {
	ID                string          `json:"Id,omitempty"`
	Name              string          `json:"Name"`
	Timestamp         float64         `json:"Timestamp"`
	Value             json.RawMessage `json:"Value,omitempty"`
	ContractSessionID string          `json:"ContractSessionId,omitempty"`
	ContractID        string          `json:"ContractId,omitempty"`
	UserID            string          `json:"UserId,omitempty"`
	SessionID         string          `json:"SessionId,omitempty"`
	Origin            string          `json:"Origin,omitempty"`
	CreatedAt         string          `json:"CreatedAt,omitempty"`
	Token             string          `json:"Token,omitempty"`
}

// DecodeValue unmarshals the event payload into out. A missing payload is not
// an error; the target is simply left zeroed.
func (e *ClientEvent) DecodeValue(out any) error {
	if len(e.Value) == 0 {
		return nil
	}
	return json.Unmarshal(e.Value, out)
}

// ValueString extracts the payload as a bare string, tolerating both a JSON
// string and a raw unquoted value (some client builds send either).
func (e *ClientEvent) ValueString() string {
	if len(e.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Value, &s); err == nil {
		return s
	}
	return strings.Trim(string(e.Value), `"`)
}

// IsScoringScreenEndState reports whether this is an evergreen
// scoring-screen terminator, returning the trailing state name.
func (e *ClientEvent) IsScoringScreenEndState() (string, bool) {
	if strings.HasPrefix(e.Name, ScoringScreenEndStatePrefix) {
		return strings.TrimPrefix(e.Name, ScoringScreenEndStatePrefix), true
	}
	return "", false
}

// NewServerEvent builds a server-originated event bound to a session,
// ready for the per-user delivery queue.
func NewServerEvent(name string, timestamp float64, value any, session *ContractSession) ClientEvent {
	raw, _ := json.Marshal(value)
	ev := ClientEvent{
		Name:      name,
		Timestamp: timestamp,
		Value:     raw,
	}
	if session != nil {
		ev.ContractSessionID = session.ID
		ev.ContractID = session.ContractID
		ev.UserID = session.UserID
	}
	return ev
}

// StampCreated records the wall-clock enqueue time on the event.
func (e *ClientEvent) StampCreated(now time.Time) {
	e.CreatedAt = now.UTC().Format(time.RFC3339Nano)
}

// Death context values reported on kill events. NotHero marks a kill whose
// actor is not the player character; such a kill can never be a noticed kill.
const (
	DeathContextUndefined = 0
	DeathContextNotHero   = 1
	DeathContextHidden    = 2
	DeathContextAccident  = 3
	DeathContextMurder    = 4
)

// KillPayload is the Value of a Kill event.
type KillPayload struct {
	RepositoryID       string `json:"RepositoryId"`
	ActorID            int    `json:"ActorId,omitempty"`
	ActorName          string `json:"ActorName,omitempty"`
	KillClass          string `json:"KillClass,omitempty"`
	KillContext        int    `json:"KillContext,omitempty"`
	Accident           bool   `json:"Accident,omitempty"`
	WeaponSilenced     bool   `json:"WeaponSilenced,omitempty"`
	IsTarget           bool   `json:"IsTarget,omitempty"`
	KillItemCategory   string `json:"KillItemCategory,omitempty"`
	OutfitRepositoryID string `json:"OutfitRepositoryId,omitempty"`
	IsHeadshot         bool   `json:"IsHeadshot,omitempty"`
}

// PacifyPayload is the Value of a Pacify or BodyHidden event.
type PacifyPayload struct {
	RepositoryID string `json:"RepositoryId"`
	Accident     bool   `json:"Accident,omitempty"`
	IsTarget     bool   `json:"IsTarget,omitempty"`
}

// RecorderPayload is the Value of a SecuritySystemRecorder event.
type RecorderPayload struct {
	Event string `json:"event"` // spotted, destroyed, erased
}

// ObjectivePayload is the Value of an ObjectiveCompleted event.
type ObjectivePayload struct {
	ID string `json:"Id"`
}

// BodySeenPayload is the Value of the body-discovery events.
type BodySeenPayload struct {
	Witness         string `json:"Witness"`
	IsWitnessTarget bool   `json:"IsWitnessTarget,omitempty"`
	DeadBody        struct {
		RepositoryID string `json:"RepositoryId"`
		IsCrowdActor bool   `json:"IsCrowdActor,omitempty"`
	} `json:"DeadBody"`
}

// ActorTagPayload is the Value of the target mark/unmark events.
type ActorTagPayload struct {
	RepositoryID string `json:"RepositoryId"`
}

// AreaPayload is the Value of an AreaDiscovered event.
type AreaPayload struct {
	RepositoryID string `json:"RepositoryId"`
}

// CpdPayload is the Value of a CpdSet event: one key of the per-user,
// per-contract progression blob.
type CpdPayload struct {
	CpdID string          `json:"CpdId,omitempty"`
	Key   string          `json:"Key"`
	Value json.RawMessage `json:"Value"`
}

// EvergreenPayoutPayload is the Value of an Evergreen_Payout_Data event.
type EvergreenPayoutPayload struct {
	TotalPayout float64 `json:"Total_Payout"`
}

// OpponentsPayload is the Value of a ghost-mode Opponents event.
type OpponentsPayload struct {
	ConnectedSessions []string `json:"ConnectedSessions"`
}

// MatchOverPayload is the Value of a ghost-mode MatchOver event.
type MatchOverPayload struct {
	MyScore       int  `json:"MyScore"`
	OpponentScore int  `json:"OpponentScore"`
	IsWinner      bool `json:"IsWinner"`
	IsDraw        bool `json:"IsDraw"`
}

// SegmentClosingValue is the payload of the synthetic SegmentClosing
// server→client event emitted when a session is finalized.
type SegmentClosingValue struct {
	SegmentIndex    int    `json:"SegmentIndex"`
	CloseType       string `json:"CloseType"`
	ContractID      string `json:"ContractId,omitempty"`
	SessionDuration float64 `json:"SessionDuration"`
}
