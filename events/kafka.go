// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*Package events publishes change events to Kafka.

Events are written to a database outbox table first and delivered to Kafka by
a background handler. This keeps event publication out of the request path
and guarantees that no event is lost when the brokers are briefly
unavailable.
*/
package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/ixdir/core"
	"github.com/relabs-tech/ixdir/core/csql"
	"github.com/relabs-tech/ixdir/core/logger"
)

const defaultOutboxTable = "_event_outbox_"

// KafkaNotifierBuilder is a builder helper for the Kafka notifier
type KafkaNotifierBuilder struct {
	// DB is the postgres database holding the outbox table. Mandatory.
	DB *csql.DB
	// Brokers is the list of Kafka broker addresses. Mandatory.
	Brokers []string
	// Topic is the topic change events are published to. Mandatory.
	Topic string
	// OutboxTable overrides the default outbox table name.
	OutboxTable string
	// PollInterval overrides the default delivery interval of two seconds.
	PollInterval time.Duration
}

// KafkaNotifier implements core.Notifier on top of a Kafka topic, with a
// database outbox in between
type KafkaNotifier struct {
	db     *csql.DB
	writer *kafka.Writer
	table  string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewKafkaNotifier creates the outbox table if it does not exist yet and
// starts the background delivery handler.
func NewKafkaNotifier(b *KafkaNotifierBuilder) *KafkaNotifier {
	if b.DB == nil {
		panic("please specify a database")
	}
	if len(b.Brokers) == 0 || b.Topic == "" {
		panic("please specify brokers and topic")
	}
	table := b.OutboxTable
	if table == "" {
		table = defaultOutboxTable
	}
	interval := b.PollInterval
	if interval == 0 {
		interval = 2 * time.Second
	}

	n := &KafkaNotifier{
		db:    b.DB,
		table: table,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(b.Brokers...),
			Topic:        b.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 100 * time.Millisecond,
		},
		done: make(chan struct{}),
	}

	_, err := b.DB.Exec(`CREATE table IF NOT EXISTS ` + b.DB.Schema + `."` + table + `"
(event_id bigserial,
resource varchar NOT NULL,
operation varchar NOT NULL,
payload json NOT NULL,
created timestamp NOT NULL DEFAULT now(),
PRIMARY KEY(event_id)
);`)
	if err != nil {
		panic(fmt.Errorf("cannot create outbox table: %w", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	go n.deliveryLoop(ctx, interval)
	return n
}

// Notify queues a change event for delivery. Errors only get logged, a
// failed notification never fails the request that caused it.
func (n *KafkaNotifier) Notify(resource string, operation core.Operation, payload []byte) {
	_, err := n.db.Exec(`INSERT INTO `+n.db.Schema+`."`+n.table+`"(resource,operation,payload)
VALUES($1,$2,$3);`, resource, string(operation), string(payload))
	if err != nil {
		logger.Default().WithError(err).Errorln("Error 4301: cannot queue event")
	}
}

// Close stops the delivery handler and closes the Kafka writer. Events still
// in the outbox are delivered on the next start.
func (n *KafkaNotifier) Close() error {
	n.cancel()
	<-n.done
	return n.writer.Close()
}

func (n *KafkaNotifier) deliveryLoop(ctx context.Context, interval time.Duration) {
	logger.Default().Infoln("Starting background delivery handler")
	defer close(n.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := n.deliver(ctx); err != nil && ctx.Err() == nil {
				logger.Default().WithError(err).Errorln("Error 4302: cannot deliver events")
			}
		}
	}
}

// deliver publishes one batch from the outbox. Rows are locked with SKIP
// LOCKED so multiple service instances can share the outbox.
func (n *KafkaNotifier) deliver(ctx context.Context) error {
	tx, err := n.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT event_id, resource, operation, payload
FROM `+n.db.Schema+`."`+n.table+`" ORDER BY event_id LIMIT 100 FOR UPDATE SKIP LOCKED;`)
	if err != nil {
		return err
	}
	var ids []interface{}
	var messages []kafka.Message
	placeholders := ""
	for rows.Next() {
		var id int64
		var resource, operation, payload string
		if err := rows.Scan(&id, &resource, &operation, &payload); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
		messages = append(messages, kafka.Message{
			Key:   []byte(resource),
			Value: []byte(payload),
			Headers: []kafka.Header{
				{Key: "operation", Value: []byte(operation)},
				{Key: "event_id", Value: []byte(strconv.FormatInt(id, 10))},
			},
		})
		if placeholders != "" {
			placeholders += ","
		}
		placeholders += "$" + strconv.Itoa(len(ids))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	if err := n.writer.WriteMessages(ctx, messages...); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM `+n.db.Schema+`."`+n.table+`"
WHERE event_id IN (`+placeholders+`);`, ids...)
	if err != nil {
		return err
	}
	return tx.Commit()
}
