package services

import (
	"log"

	"masquerade/internal/models"
)

// manualExitValue is the failure value the client reports when the player
// restarts from inside the level rather than actually failing.
const manualExitValue = "exit_gate"

// FailureFinisher finalizes a session when the client reports
// ContractFailed: close-reason derivation, autosplitter/telemetry
// notification, contest play-history, the arcade escalation rule, and the
// synthetic SegmentClosing push event. Collaborator failures are logged,
// never propagated — finishing must not block gameplay.
type FailureFinisher struct {
	userdata *UserDataService
	splitter *Autosplitter
	queue    *PushQueue
}

// NewFailureFinisher creates the finisher. Any collaborator may be nil in
// tests.
func NewFailureFinisher(userdata *UserDataService, splitter *Autosplitter, queue *PushQueue) *FailureFinisher {
	return &FailureFinisher{
		userdata: userdata,
		splitter: splitter,
		queue:    queue,
	}
}

// ContractFailed finalizes the session after a reported failure. Caller
// holds the session lock.
func (f *FailureFinisher) ContractFailed(event *models.ClientEvent, session *models.ContractSession) {
	value := event.ValueString()
	isManualExit := value == manualExitValue

	session.MarkedTargets.Clear()

	closeReason := "ContractFailed:" + value
	if isManualExit && session.ContractType == "usercreated" {
		closeReason = "GameRestart"
	}

	// Failing before IntroCutEnd means the timer never started; report
	// zero, never a negative elapsed.
	elapsed := 0.0
	if session.TimerStart != 0 {
		elapsed = event.Timestamp - session.TimerStart
	}
	if f.splitter != nil {
		f.splitter.FailMission(elapsed)
	}

	switch session.ContractType {
	case "contest", "featured":
		if f.userdata != nil {
			f.userdata.TouchPlayHistory(session.UserID, session.GameVersion, session.ContractID, nowFunc())
		}
	case "arcade":
		f.applyArcadeRule(session, isManualExit)
	}

	if f.queue != nil {
		closing := models.NewServerEvent(models.EventSegmentClosing, event.Timestamp, models.SegmentClosingValue{
			CloseType:       closeReason,
			ContractID:      session.ContractID,
			SessionDuration: session.Duration,
		}, session)
		f.queue.EnqueueEvent(session.UserID, closing)
	}

	log.Printf("🛑 [FAILURE] Session %s closed: %s", session.ID, closeReason)
}

// applyArcadeRule preserves escalation progress only for a manual in-level
// exit after at least one completed primary objective; every other failure
// path resets the whole escalation group.
func (f *FailureFinisher) applyArcadeRule(session *models.ContractSession, isManualExit bool) {
	if isManualExit && session.HasCompletedPrimaryObjective() {
		log.Printf("ℹ️  [FAILURE] Arcade progress preserved for session %s", session.ID)
		return
	}
	if session.ContractGroup == "" {
		return
	}
	if f.userdata != nil {
		f.userdata.ResetEscalationGroup(session.UserID, session.GameVersion, session.ContractGroup)
	}
	log.Printf("ℹ️  [FAILURE] Arcade group %s reset for user %s", session.ContractGroup, session.UserID)
}
