package ingestion_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"CTFIndexer/internal/event"
	"CTFIndexer/internal/ingestion"
	"CTFIndexer/internal/testutil"
)

// Round-trips events through the docker-compose.test.yml NATS server.
// Run with INTEGRATION_TEST=1 after `docker compose -f docker-compose.test.yml up -d`.

func connectTestNATS(t *testing.T) (*nats.Conn, jetstream.JetStream) {
	t.Helper()
	testutil.RequireIntegration(t)

	nc, js, err := ingestion.ConnectNATS(testutil.TestNATSURL())
	if err != nil {
		t.Skipf("test nats not available: %v (start with: docker compose -f docker-compose.test.yml up -d)", err)
	}
	return nc, js
}

func TestSubscriberDeliversPublishedEvent(t *testing.T) {
	nc, js := connectTestNATS(t)
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ingestion.EnsureStreams(ctx, js); err != nil {
		t.Fatalf("ensure streams: %v", err)
	}

	eventChan := make(chan ingestion.RawEvent, 64)
	sub := ingestion.NewNATSSubscriber(js, eventChan)
	if err := sub.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Stop()

	// unique tx hash so stale messages from earlier runs are ignored
	txHash := fmt.Sprintf("0xit%d", time.Now().UnixNano())
	payload := metaFields(txHash)
	payload["condition_id"] = "0xc0ffee"
	payload["oracle"] = "0xabc"
	payload["question_id"] = "0xq1"
	payload["outcome_slot_count"] = 2
	raw := rawFromJSON(t, payload)

	if _, err := js.Publish(ctx, "ctf.condition.prepared.poly", raw.Data); err != nil {
		t.Fatalf("publish: %v", err)
	}

	subjects := ingestion.DefaultSubjects()
	deadline := time.After(15 * time.Second)
	for {
		select {
		case got := <-eventChan:
			eventType, ok := ingestion.EventTypeForSubject(subjects, got.Subject)
			if !ok {
				t.Fatalf("unroutable subject %s", got.Subject)
			}
			evt, err := ingestion.ParseRawEvent(got, eventType)
			got.AckFunc()
			if err != nil {
				// stale or foreign payload from an earlier run
				continue
			}
			cp, isPrep := evt.(*event.ConditionPreparation)
			if !isPrep || cp.EventID() != txHash+"-3" {
				continue
			}
			if cp.ConditionID != "0xc0ffee" {
				t.Errorf("condition_id = %s", cp.ConditionID)
			}
			return
		case <-deadline:
			t.Fatal("published event never delivered")
		}
	}
}

func TestOutboundPublisherRoundTrip(t *testing.T) {
	nc, js := connectTestNATS(t)
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ingestion.EnsureOutboundStream(ctx, js); err != nil {
		t.Fatalf("ensure outbound stream: %v", err)
	}

	input := make(chan ingestion.PublishableEvent, 1)
	pub := ingestion.NewOutboundPublisher(js, input)
	pubCtx, pubCancel := context.WithCancel(ctx)
	defer pubCancel()
	go pub.Run(pubCtx)

	eventID := fmt.Sprintf("0xob%d-0", time.Now().UnixNano())
	input <- ingestion.PublishableEvent{
		Sequence:  42,
		EventType: "OrderFilled",
		EventID:   eventID,
		MarketID:  "0xc1",
		StateHash: "deadbeef",
		Timestamp: time.Now().UTC(),
	}

	if !outboundSeen(t, ctx, js, eventID) {
		t.Fatal("applied event never published outbound")
	}
}

func outboundSeen(t *testing.T, ctx context.Context, js jetstream.JetStream, eventID string) bool {
	t.Helper()

	cons, err := js.CreateOrUpdateConsumer(ctx, "CTF_INDEXER_APPLIED", jetstream.ConsumerConfig{
		FilterSubject: "ctf.indexer.applied.>",
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		t.Fatalf("create consumer: %v", err)
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		batch, err := cons.Fetch(16, jetstream.FetchMaxWait(2*time.Second))
		if err != nil {
			continue
		}
		for msg := range batch.Messages() {
			data := string(msg.Data())
			msg.Ack()
			if strings.Contains(data, eventID) {
				return true
			}
		}
	}
	return false
}
