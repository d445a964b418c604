package services

import (
	"encoding/json"
	"testing"
	"time"
)

func TestGetUnknownUserIsEmptyProfile(t *testing.T) {
	userdata := newTestUserData(t)

	profile, err := userdata.Get("nobody", "h3")
	if err != nil {
		t.Fatalf("unknown user must not error: %v", err)
	}
	if profile.UserID != "nobody" || profile.GameVersion != "h3" {
		t.Errorf("profile identity wrong: %+v", profile)
	}
	if len(profile.ContractProgression) != 0 || len(profile.EscalationProgress) != 0 {
		t.Error("fresh profile not empty")
	}
}

func TestSetCpdValueRoundTrips(t *testing.T) {
	userdata := newTestUserData(t)

	userdata.SetCpdValue("U1", "h3", "cpd-1", "EvergreenLevel", json.RawMessage(`42`))
	userdata.SetCpdValue("U1", "h3", "cpd-1", "Mastery", json.RawMessage(`"gold"`))

	profile, err := userdata.Get("U1", "h3")
	if err != nil {
		t.Fatalf("failed to load profile: %v", err)
	}
	if string(profile.ContractProgression["cpd-1"]["EvergreenLevel"]) != "42" {
		t.Errorf("EvergreenLevel wrong: %s", profile.ContractProgression["cpd-1"]["EvergreenLevel"])
	}
	if string(profile.ContractProgression["cpd-1"]["Mastery"]) != `"gold"` {
		t.Errorf("Mastery wrong: %s", profile.ContractProgression["cpd-1"]["Mastery"])
	}
}

func TestProfilesArePartitionedByGameVersion(t *testing.T) {
	userdata := newTestUserData(t)

	userdata.SetCpdValue("U1", "h1", "cpd-1", "Key", json.RawMessage(`1`))
	userdata.SetCpdValue("U1", "h3", "cpd-1", "Key", json.RawMessage(`2`))

	h1, _ := userdata.Get("U1", "h1")
	h3, _ := userdata.Get("U1", "h3")
	if string(h1.ContractProgression["cpd-1"]["Key"]) != "1" || string(h3.ContractProgression["cpd-1"]["Key"]) != "2" {
		t.Errorf("versions bled into each other: h1=%s h3=%s",
			h1.ContractProgression["cpd-1"]["Key"], h3.ContractProgression["cpd-1"]["Key"])
	}
}

func TestRecordAreaDiscoveredCountsDistinctAreas(t *testing.T) {
	userdata := newTestUserData(t)

	if count := userdata.RecordAreaDiscovered("U1", "h3", "CH1", "area-a"); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
	if count := userdata.RecordAreaDiscovered("U1", "h3", "CH1", "area-b"); count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
	// Rediscovery is idempotent.
	if count := userdata.RecordAreaDiscovered("U1", "h3", "CH1", "area-a"); count != 2 {
		t.Errorf("expected count to stay at 2, got %d", count)
	}
}

func TestTouchPlayHistoryPersists(t *testing.T) {
	userdata := newTestUserData(t)

	playedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	userdata.TouchPlayHistory("U1", "h3", "C1", playedAt)

	profile, err := userdata.Get("U1", "h3")
	if err != nil {
		t.Fatalf("failed to load profile: %v", err)
	}
	if !profile.PlayHistory["C1"].Equal(playedAt) {
		t.Errorf("play history wrong: %v", profile.PlayHistory["C1"])
	}
}
