package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
)

const commsTestPrefix = "events:comms_publisher_integration_test"

// startTestServer starts an in-process NATS server on a random port.
func startTestServer(t *testing.T) *comms.Conn {
	t.Helper()

	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", commsTestPrefix, err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", commsTestPrefix)
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("%s - failed to connect: %v", commsTestPrefix, err)
	}

	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return nc
}

// collect subscribes to subject and forwards decoded events.
func collect(t *testing.T, nc *comms.Conn, subject string) <-chan *InvocationEvent {
	t.Helper()
	ch := make(chan *InvocationEvent, 4)
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		var event InvocationEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			t.Errorf("%s - failed to unmarshal: %v", commsTestPrefix, err)
			return
		}
		ch <- &event
	})
	if err != nil {
		t.Fatalf("%s - failed to subscribe: %v", commsTestPrefix, err)
	}
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	if err := nc.Flush(); err != nil {
		t.Fatalf("%s - flush: %v", commsTestPrefix, err)
	}
	return ch
}

func await(t *testing.T, ch <-chan *InvocationEvent) *InvocationEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - timed out waiting for event", commsTestPrefix)
		return nil
	}
}

func TestCommsPublisher_BothSubjects(t *testing.T) {
	nc := startTestServer(t)
	granular := collect(t, nc, "bridge.invoked.widgets.getWidget")
	global := collect(t, nc, "bridge.invoked")

	event := sampleEvent()
	event.TenantID = "acme"
	if err := NewCommsPublisher(nc, nil).PublishInvocation(context.Background(), event); err != nil {
		t.Fatalf("%s - publish failed: %v", commsTestPrefix, err)
	}

	for _, got := range []*InvocationEvent{await(t, granular), await(t, global)} {
		if got.ID != "req-1" || got.Version != "1.2.0" || got.TenantID != "acme" || got.Parameters[0] != "id" {
			t.Errorf("%s - fields not preserved: %+v", commsTestPrefix, got)
		}
	}
}

func TestCommsPublisher_CustomGlobalSubject(t *testing.T) {
	nc := startTestServer(t)
	custom := collect(t, nc, "audit.calls")

	pub := NewCommsPublisher(nc, &CommsPublisherOpts{GlobalSubject: "audit.calls"})
	if err := pub.PublishInvocation(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("%s - publish failed: %v", commsTestPrefix, err)
	}
	if got := await(t, custom); got.Operation != "getWidget" {
		t.Errorf("%s - unexpected event %+v", commsTestPrefix, got)
	}
}

func TestCommsPublisher_FailuresOnly(t *testing.T) {
	nc := startTestServer(t)
	global := collect(t, nc, "bridge.invoked")

	pub := NewCommsPublisher(nc, &CommsPublisherOpts{FailuresOnly: true})
	ok := sampleEvent()
	failed := sampleEvent()
	failed.ID = "req-2"
	failed.Outcome = "NOT_FOUND"

	for _, e := range []*InvocationEvent{ok, failed} {
		if err := pub.PublishInvocation(context.Background(), e); err != nil {
			t.Fatalf("%s - publish failed: %v", commsTestPrefix, err)
		}
	}
	if got := await(t, global); got.ID != "req-2" {
		t.Errorf("%s - successful call must be skipped, got %s first", commsTestPrefix, got.ID)
	}
}

func TestNewCommsPublisher_Defaults(t *testing.T) {
	for _, opts := range []*CommsPublisherOpts{nil, {}} {
		pub := NewCommsPublisher(nil, opts)
		if pub.globalSubject != "bridge.invoked" || pub.failuresOnly {
			t.Errorf("%s - unexpected defaults %+v", commsTestPrefix, pub)
		}
	}
}
