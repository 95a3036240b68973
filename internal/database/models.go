package database

import (
	"time"
)

// DeliveryRecord is one dispatched unit as stored in the deliveries table.
type DeliveryRecord struct {
	ID              string    `db:"id"`
	SourceMessageID int       `db:"source_message_id"`
	TopicKey        string    `db:"topic_key"`
	ThreadID        int       `db:"thread_id"`
	ItemCount       int       `db:"item_count"`
	Mode            string    `db:"mode"`
	Status          string    `db:"status"`
	ErrorText       string    `db:"error_text"`
	CreatedAt       time.Time `db:"created_at"`
}

// TopicStat aggregates deliveries of one topic.
type TopicStat struct {
	TopicKey string `db:"topic_key"`
	Sent     int    `db:"sent"`
	Failed   int    `db:"failed"`
}
