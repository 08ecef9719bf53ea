package aggregation

import (
	"context"
	"time"

	v1 "github.com/pulse-lab/project-pulse/internal/api/v1"
	"github.com/pulse-lab/project-pulse/internal/core/aggregate"
	"github.com/pulse-lab/project-pulse/internal/core/interval"
	"github.com/pulse-lab/project-pulse/internal/core/storage"
)

// memAggregateStore is an in-memory storage.AggregateStore for tests. It
// mimics the Postgres adapter's behavior: uniqueness on (bucket, group),
// full-replace updates, and range queries over bucket starts.
type memAggregateStore struct {
	records    map[interval.BucketKey]map[string]*aggregate.Record
	queryCalls int
}

func newMemAggregateStore() *memAggregateStore {
	return &memAggregateStore{records: make(map[interval.BucketKey]map[string]*aggregate.Record)}
}

func (m *memAggregateStore) CreateRecord(_ context.Context, rec *aggregate.Record) error {
	byGroup, ok := m.records[rec.Key]
	if !ok {
		byGroup = make(map[string]*aggregate.Record)
		m.records[rec.Key] = byGroup
	}
	if _, exists := byGroup[rec.Group]; exists {
		return storage.ErrDuplicateRecord
	}
	byGroup[rec.Group] = cloneRecord(rec)
	return nil
}

func (m *memAggregateStore) UpdateRecord(_ context.Context, rec *aggregate.Record) error {
	byGroup, ok := m.records[rec.Key]
	if !ok {
		return storage.ErrRecordNotFound
	}
	if _, exists := byGroup[rec.Group]; !exists {
		return storage.ErrRecordNotFound
	}
	byGroup[rec.Group] = cloneRecord(rec)
	return nil
}

func (m *memAggregateStore) QueryRecords(_ context.Context, key interval.BucketKey) ([]*aggregate.Record, error) {
	m.queryCalls++
	var out []*aggregate.Record
	for _, rec := range m.records[key] {
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

func (m *memAggregateStore) QueryIncomplete(_ context.Context, g interval.Granularity, start, end time.Time) ([]*aggregate.Record, error) {
	var out []*aggregate.Record
	for key, byGroup := range m.records {
		if key.Granularity != g {
			continue
		}
		bucketStart := mustBucketStart(key)
		if bucketStart.Before(start) || !bucketStart.Before(end) {
			continue
		}
		for _, rec := range byGroup {
			if !rec.Complete {
				out = append(out, cloneRecord(rec))
			}
		}
	}
	return out, nil
}

func (m *memAggregateStore) QueryRange(_ context.Context, g interval.Granularity, group string, start, end time.Time) ([]*aggregate.Record, error) {
	var out []*aggregate.Record
	for key, byGroup := range m.records {
		if key.Granularity != g {
			continue
		}
		bucketStart := mustBucketStart(key)
		if bucketStart.Before(start) || !bucketStart.Before(end) {
			continue
		}
		for _, rec := range byGroup {
			if group != "" && rec.Group != group {
				continue
			}
			if rec.Complete {
				out = append(out, cloneRecord(rec))
			}
		}
	}
	return out, nil
}

func (m *memAggregateStore) WithTx(_ context.Context, fn func(storage.AggregateStore) error) error {
	return fn(m)
}

// get fetches the stored copy of one record, nil if absent.
func (m *memAggregateStore) get(key interval.BucketKey, group string) *aggregate.Record {
	byGroup, ok := m.records[key]
	if !ok {
		return nil
	}
	return byGroup[group]
}

// seed inserts a record bypassing uniqueness checks.
func (m *memAggregateStore) seed(rec *aggregate.Record) {
	byGroup, ok := m.records[rec.Key]
	if !ok {
		byGroup = make(map[string]*aggregate.Record)
		m.records[rec.Key] = byGroup
	}
	byGroup[rec.Group] = cloneRecord(rec)
}

func cloneRecord(rec *aggregate.Record) *aggregate.Record {
	c := aggregate.New(rec.Key, rec.Group)
	c.Duration = rec.Duration
	c.Complete = rec.Complete
	c.UpdatedAt = rec.UpdatedAt
	c.SetParticipants(rec.ParticipantList())
	return c
}

func mustBucketStart(key interval.BucketKey) time.Time {
	t, err := key.StartTime()
	if err != nil {
		panic(err)
	}
	return t
}

// memEventStore is an in-memory storage.EventStore for runner tests.
type memEventStore struct {
	events []*v1.Event
}

func (m *memEventStore) SaveEvent(_ context.Context, event *v1.Event) error {
	event.IngestSeq = int64(len(m.events) + 1)
	m.events = append(m.events, event)
	return nil
}

func (m *memEventStore) RetrieveEventsAfterCursor(_ context.Context, cursor int64, limit int) ([]*v1.Event, error) {
	var out []*v1.Event
	for _, evt := range m.events {
		if evt.IngestSeq > cursor {
			out = append(out, evt)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memEventStore) RetrieveEventsByParticipant(_ context.Context, participantID string, limit int) ([]*v1.Event, error) {
	var out []*v1.Event
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].ParticipantID == participantID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

// memCheckpointStore is an in-memory storage.CheckpointStore.
type memCheckpointStore struct {
	cursors map[string]int64
}

func newMemCheckpointStore() *memCheckpointStore {
	return &memCheckpointStore{cursors: make(map[string]int64)}
}

func (m *memCheckpointStore) ReadCheckpoint(_ context.Context, stream string) (int64, error) {
	return m.cursors[stream], nil
}

func (m *memCheckpointStore) WriteCheckpoint(_ context.Context, stream string, cursor int64) error {
	m.cursors[stream] = cursor
	return nil
}
