// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package snapshot

import (
	"math/rand"
	"sync"
	"time"

	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/tgt/model"
	ping "github.com/sparrc/go-ping"
)

const (
	defaultPingCount   = 2
	defaultPingTimeout = 2 * time.Second
)

// Prober sends ICMP echo requests to the address of every connected initiator
type Prober struct {
	Count      int
	Timeout    time.Duration
	Privileged bool

	// pingFn returns the number of echo replies received from address
	pingFn func(address string, tracker int64, p *Prober) (int, error)
}

// NewProber returns a Prober using unprivileged (UDP) pings
func NewProber() *Prober {
	return &Prober{Count: defaultPingCount, Timeout: defaultPingTimeout, pingFn: icmpPing}
}

// Probe pings each session in parallel and returns reachability keyed by nexus ID.  Sessions
// without an address are reported unreachable.
func (p *Prober) Probe(sessions []*model.Session) map[string]bool {
	log.Tracef(">>>>> Probe, sessions=%d", len(sessions))
	defer log.Trace("<<<<< Probe")

	reachable := make(map[string]bool, len(sessions))
	var mux sync.Mutex
	var wg sync.WaitGroup

	// unique tracker per pinger so concurrent replies are not mixed up
	tracker := int64(rand.Uint64())

	for _, session := range sessions {
		if session.IPAddress == "" {
			mux.Lock()
			reachable[session.NexusID] = false
			mux.Unlock()
			continue
		}
		tracker++
		wg.Add(1)
		go func(session *model.Session, tracker int64) {
			defer wg.Done()
			received, err := p.pingFn(session.IPAddress, tracker, p)
			if err != nil {
				log.Errorf("Unable to ping %s, err=%v", session.IPAddress, err)
			}
			log.Tracef("Nexus %s at %s, packetsRecv=%d", session.NexusID, session.IPAddress, received)
			mux.Lock()
			reachable[session.NexusID] = received > 0
			mux.Unlock()
		}(session, tracker)
	}
	wg.Wait()
	return reachable
}

func icmpPing(address string, tracker int64, p *Prober) (int, error) {
	pinger, err := ping.NewPinger(address)
	if err != nil {
		return 0, err
	}
	pinger.Tracker = tracker
	pinger.SetPrivileged(p.Privileged)
	pinger.Count = p.Count
	pinger.Timeout = p.Timeout
	pinger.Run()
	return pinger.Statistics().PacketsRecv, nil
}
