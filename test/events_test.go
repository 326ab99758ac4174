// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/relabs-tech/ixdir/directory"
	"github.com/relabs-tech/ixdir/directory/api"
)

type ChangeEventsTestSuite struct {
	IntegrationTestSuite
}

func TestChangeEventsTestSuite(t *testing.T) {
	ts := &ChangeEventsTestSuite{}
	suite.Run(t, ts)
}

type changeEvent struct {
	operation string
	payload   []byte
}

// consumeEvents reads change events from the topic in the background and
// collects them per resource type. Returns the collector map, its mutex and
// a stop function.
func (s *ChangeEventsTestSuite) consumeEvents() (map[string][]changeEvent, *sync.Mutex, func()) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{s.kafkaAddr},
		Topic:       eventsTopic,
		GroupID:     uuid.New().String(),
		StartOffset: kafka.FirstOffset,
	})

	mu := &sync.Mutex{}
	received := make(map[string][]changeEvent)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				return
			}
			operation := ""
			for _, h := range msg.Headers {
				if h.Key == "operation" {
					operation = string(h.Value)
				}
			}
			mu.Lock()
			key := string(msg.Key)
			received[key] = append(received[key], changeEvent{
				operation: operation,
				payload:   msg.Value,
			})
			mu.Unlock()
		}
	}()

	stop := func() {
		cancel()
		reader.Close()
	}
	return received, mu, stop
}

func (s *ChangeEventsTestSuite) TestChangeEventDelivery() {
	received, mu, stop := s.consumeEvents()
	defer stop()

	org := s.createOrganization("Event Barn")

	org.Website = "https://eventbarn.example.com"
	_, err := s.client.Resource(api.TypeOrganization).Item(org.ID).Update(org, nil)
	s.Require().NoError(err, "Failed to update organization")

	_, err = s.client.Resource(api.TypeOrganization).Item(org.ID).Delete()
	s.Require().NoError(err, "Failed to delete organization")

	mine := func() []changeEvent {
		var events []changeEvent
		mu.Lock()
		defer mu.Unlock()
		for _, ev := range received[api.TypeOrganization] {
			var payload struct {
				ID uuid.UUID `json:"id"`
			}
			if json.Unmarshal(ev.payload, &payload) == nil && payload.ID == org.ID {
				events = append(events, ev)
			}
		}
		return events
	}

	require.Eventually(s.T(), func() bool {
		return len(mine()) >= 3
	}, 10*time.Second, 100*time.Millisecond, "Did not receive all change events")

	events := mine()
	require.Len(s.T(), events, 3)
	require.Equal(s.T(), "create", events[0].operation)
	require.Equal(s.T(), "update", events[1].operation)
	require.Equal(s.T(), "delete", events[2].operation)

	var created directory.Organization
	s.Require().NoError(json.Unmarshal(events[0].payload, &created))
	require.Equal(s.T(), "Event Barn", created.Name)

	var updated directory.Organization
	s.Require().NoError(json.Unmarshal(events[1].payload, &updated))
	require.Equal(s.T(), "https://eventbarn.example.com", updated.Website)
}

func (s *ChangeEventsTestSuite) TestChangeEventOrderingPerResource() {
	received, mu, stop := s.consumeEvents()
	defer stop()

	orgs := make([]directory.Organization, 5)
	expected := make(map[uuid.UUID][]string)
	for i := range orgs {
		orgs[i] = s.createOrganization(fmt.Sprintf("Ordered %d seq 0", i))
		expected[orgs[i].ID] = append(expected[orgs[i].ID], orgs[i].Name)
	}

	for seq := 1; seq <= 10; seq++ {
		for i := range orgs {
			orgs[i].Name = fmt.Sprintf("Ordered %d seq %d", i, seq)
			_, err := s.client.Resource(api.TypeOrganization).Item(orgs[i].ID).Update(orgs[i], nil)
			s.Require().NoError(err, "Failed to update organization")
			expected[orgs[i].ID] = append(expected[orgs[i].ID], orgs[i].Name)
		}
	}

	sequences := func() map[uuid.UUID][]string {
		result := make(map[uuid.UUID][]string)
		mu.Lock()
		defer mu.Unlock()
		for _, ev := range received[api.TypeOrganization] {
			var payload directory.Organization
			if json.Unmarshal(ev.payload, &payload) != nil {
				continue
			}
			if _, ok := expected[payload.ID]; !ok {
				continue
			}
			result[payload.ID] = append(result[payload.ID], payload.Name)
		}
		return result
	}

	require.Eventually(s.T(), func() bool {
		got := sequences()
		if len(got) < len(expected) {
			return false
		}
		for id := range expected {
			if len(got[id]) < len(expected[id]) {
				return false
			}
		}
		return true
	}, 20*time.Second, 100*time.Millisecond, "Did not receive all change events")

	require.EqualValues(s.T(), expected, sequences(),
		"Events are not delivered in order per resource")
	s.T().Log("All events delivered in order")
}

func (s *ChangeEventsTestSuite) TestChangeEventOutboxDrained() {
	s.createOrganization("Drained")

	require.Eventually(s.T(), func() bool {
		var count int
		err := s.dbConn.QueryRow(`SELECT count(*) FROM ` + s.dbConn.Schema + `."_event_outbox_";`).
			Scan(&count)
		s.Require().NoError(err)
		return count == 0
	}, 10*time.Second, 100*time.Millisecond, "Outbox was not drained")
}
