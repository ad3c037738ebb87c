package diagnostics

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"unipi-control/pkg/health"
)

type fakePublisher struct {
	mu      sync.Mutex
	topic   string
	payload string
	calls   int
}

func (p *fakePublisher) PublishRetained(topic, payload string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.payload = payload
	p.calls++
}

func (p *fakePublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestReporterPublishesSnapshotImmediatelyOnRun(t *testing.T) {
	monitor := health.NewMonitor()
	monitor.RecordTCPError(errors.New("boom"))
	pub := &fakePublisher{}
	r := NewReporter(monitor, pub, "dev/diagnostics", time.Hour)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		r.Run(stop)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for pub.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("reporter did not publish an initial snapshot")
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(stop)
	<-done

	pub.mu.Lock()
	topic, payload := pub.topic, pub.payload
	pub.mu.Unlock()

	if topic != "dev/diagnostics" {
		t.Errorf("topic = %q, want dev/diagnostics", topic)
	}

	var decoded state
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("payload did not decode: %v", err)
	}
	if decoded.TCPErrors != 1 {
		t.Errorf("tcp_errors = %d, want 1", decoded.TCPErrors)
	}
}

func TestReporterStopsOnSignal(t *testing.T) {
	monitor := health.NewMonitor()
	pub := &fakePublisher{}
	r := NewReporter(monitor, pub, "dev/diagnostics", 10*time.Millisecond)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		r.Run(stop)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop after the stop channel closed")
	}
}

func TestNewReporterDefaultsInterval(t *testing.T) {
	r := NewReporter(health.NewMonitor(), &fakePublisher{}, "t", 0)
	if r.interval != 30*time.Second {
		t.Errorf("interval = %v, want 30s default", r.interval)
	}
}
