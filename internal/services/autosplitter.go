package services

import (
	"fmt"
	"log"
	"net"
	"time"
)

// Autosplitter pushes run timing to a LiveSplit-style TCP server over its
// line protocol. Everything here is fire-and-forget: a speedrun overlay
// must never be able to slow down or fail event processing, so commands are
// sent from a goroutine and all errors end at the log.
type Autosplitter struct {
	enabled bool
	addr    string
	timeout time.Duration
}

// NewAutosplitter creates the client. A disabled splitter swallows all
// calls.
func NewAutosplitter(enabled bool, addr string, timeout time.Duration) *Autosplitter {
	return &Autosplitter{enabled: enabled, addr: addr, timeout: timeout}
}

// StartMission starts the run timer.
func (a *Autosplitter) StartMission() {
	a.send("starttimer")
}

// FailMission pauses game time and reports the elapsed mission seconds.
func (a *Autosplitter) FailMission(elapsed float64) {
	a.send("pausegametime", fmt.Sprintf("setgametime %.2f", elapsed))
}

func (a *Autosplitter) send(commands ...string) {
	if !a.enabled {
		return
	}
	go func() {
		conn, err := net.DialTimeout("tcp", a.addr, a.timeout)
		if err != nil {
			log.Printf("⚠️  [SPLITTER] Cannot reach %s: %v", a.addr, err)
			return
		}
		defer conn.Close()
		_ = conn.SetWriteDeadline(time.Now().Add(a.timeout))
		for _, command := range commands {
			if _, err := fmt.Fprintf(conn, "%s\r\n", command); err != nil {
				log.Printf("⚠️  [SPLITTER] Write failed: %v", err)
				return
			}
		}
	}()
}
