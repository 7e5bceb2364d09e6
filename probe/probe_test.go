package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gridwatch/gridwatch/bus"
)

// writeScript creates a small shell script used as a fake probe binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "probe.sh")
	script := "#!/bin/sh\n" + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake probe script: %v", err)
	}
	return path
}

func TestSupervisorParsesAndPushesEvents(t *testing.T) {
	path := writeScript(t, `echo '{"ts":1,"event_type":"compute.util","entity_id":"gpu-0","value":"50"}'`)

	b := bus.New(10)
	p := b.NewProducer()
	sup := New(path, nil, p)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	select {
	case ev := <-b.Events():
		if ev.EntityID != "gpu-0" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for probe event")
	}

	cancel()
	p.Close()
	<-done
}

func TestSupervisorSkipsMalformedLines(t *testing.T) {
	path := writeScript(t, `echo 'not json'
echo '{"ts":2,"event_type":"compute.mem","entity_id":"gpu-1","value":"60"}'`)

	b := bus.New(10)
	p := b.NewProducer()
	sup := New(path, nil, p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	select {
	case ev := <-b.Events():
		if ev.EntityID != "gpu-1" {
			t.Errorf("expected well-formed event to survive malformed sibling, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for probe event")
	}

	cancel()
	p.Close()
	<-done
}

func TestSupervisorRespawnsOnExit(t *testing.T) {
	path := writeScript(t, `echo '{"ts":1,"event_type":"compute.util","entity_id":"gpu-0","value":"1"}'`)

	b := bus.New(10)
	p := b.NewProducer()
	sup := New(path, nil, p)

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	count := 0
	timeout := time.After(2200 * time.Millisecond)
loop:
	for {
		select {
		case <-b.Events():
			count++
			if count >= 2 {
				break loop
			}
		case <-timeout:
			break loop
		}
	}

	if count < 2 {
		t.Errorf("expected probe to respawn and emit at least twice, got %d", count)
	}

	cancel()
	p.Close()
	<-done
}
