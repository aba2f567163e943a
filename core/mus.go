package core

import (
	"time"

	com "github.com/mus-format/common-go"
	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written mus-go serializers for the records that reach disk. The record
// set is small and changes rarely, so the serializers are maintained by hand
// instead of generated. Field order is part of the stored format: append new
// fields at the end, never reorder.

var (
	// IDMUS serializes an ID.
	IDMUS = idMUS{}
	// EntityKeyMUS serializes an EntityKey.
	EntityKeyMUS = entityKeyMUS{}
	// EntitySnapshotMUS serializes an EntitySnapshot.
	EntitySnapshotMUS = entitySnapshotMUS{}
	// EmbeddingRecordMUS serializes an EmbeddingRecord.
	EmbeddingRecordMUS = embeddingRecordMUS{}
	// CheckpointMUS serializes a Checkpoint.
	CheckpointMUS = checkpointMUS{}
)

type idMUS struct{}

func (idMUS) Marshal(id ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

func (idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

type entityKeyMUS struct{}

func (entityKeyMUS) Marshal(key EntityKey, bs []byte) int {
	n := IDMUS.Marshal(key.OrgID, bs)
	n += varint.Int.Marshal(int(key.Type), bs[n:])
	n += IDMUS.Marshal(key.EntityID, bs[n:])
	return n
}

func (entityKeyMUS) Unmarshal(bs []byte) (key EntityKey, n int, err error) {
	key.OrgID, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	var typ int
	typ, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	key.Type = EntityType(typ)
	key.EntityID, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (entityKeyMUS) Size(key EntityKey) int {
	return IDMUS.Size(key.OrgID) + varint.Int.Size(int(key.Type)) + IDMUS.Size(key.EntityID)
}

func (entityKeyMUS) Skip(bs []byte) (n int, err error) {
	for i := 0; i < 3; i++ {
		var n1 int
		n1, err = varint.Uint64.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

type entitySnapshotMUS struct{}

func (entitySnapshotMUS) Marshal(s EntitySnapshot, bs []byte) int {
	n := EntityKeyMUS.Marshal(s.Key, bs)
	n += ord.String.Marshal(s.Name, bs[n:])
	n += ord.String.Marshal(s.Description, bs[n:])
	n += ord.String.Marshal(s.Status, bs[n:])
	n += ord.String.Marshal(s.ProjectName, bs[n:])
	n += ord.String.Marshal(s.Category, bs[n:])
	n += raw.Float64.Marshal(s.Amount, bs[n:])
	n += ord.String.Marshal(s.Currency, bs[n:])
	n += raw.Float64.Marshal(s.Quantity, bs[n:])
	n += ord.String.Marshal(s.Unit, bs[n:])
	n += ord.String.Marshal(s.Notes, bs[n:])
	return n
}

func (entitySnapshotMUS) Unmarshal(bs []byte) (s EntitySnapshot, n int, err error) {
	s.Key, n, err = EntityKeyMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	strs := []*string{
		&s.Name, &s.Description, &s.Status, &s.ProjectName, &s.Category,
	}
	for _, dst := range strs {
		*dst, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	s.Amount, n1, err = raw.Float64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	s.Currency, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	s.Quantity, n1, err = raw.Float64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	s.Unit, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	s.Notes, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (entitySnapshotMUS) Size(s EntitySnapshot) int {
	return EntityKeyMUS.Size(s.Key) +
		ord.String.Size(s.Name) +
		ord.String.Size(s.Description) +
		ord.String.Size(s.Status) +
		ord.String.Size(s.ProjectName) +
		ord.String.Size(s.Category) +
		raw.Float64.Size(s.Amount) +
		ord.String.Size(s.Currency) +
		raw.Float64.Size(s.Quantity) +
		ord.String.Size(s.Unit) +
		ord.String.Size(s.Notes)
}

type embeddingRecordMUS struct{}

func (embeddingRecordMUS) Marshal(r EmbeddingRecord, bs []byte) int {
	n := EntityKeyMUS.Marshal(r.Key, bs)
	n += IDMUS.Marshal(r.ContentHash, bs[n:])
	n += marshalVector(r.Vector, bs[n:])
	n += varint.Uint64.Marshal(r.Version, bs[n:])
	n += varint.Int.Marshal(int(r.State), bs[n:])
	n += varint.Int64.Marshal(r.UpdatedAt.UnixMicro(), bs[n:])
	return n
}

func (embeddingRecordMUS) Unmarshal(bs []byte) (r EmbeddingRecord, n int, err error) {
	r.Key, n, err = EntityKeyMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	r.ContentHash, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.Vector, n1, err = unmarshalVector(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.Version, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var state int
	state, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.State = EmbeddingState(state)
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.UpdatedAt = time.UnixMicro(micros).UTC()
	return
}

func (embeddingRecordMUS) Size(r EmbeddingRecord) int {
	return EntityKeyMUS.Size(r.Key) +
		IDMUS.Size(r.ContentHash) +
		sizeVector(r.Vector) +
		varint.Uint64.Size(r.Version) +
		varint.Int.Size(int(r.State)) +
		varint.Int64.Size(r.UpdatedAt.UnixMicro())
}

type checkpointMUS struct{}

func (checkpointMUS) Marshal(c Checkpoint, bs []byte) int {
	n := ord.String.Marshal(c.Task, bs)
	n += EntityKeyMUS.Marshal(c.LastKey, bs[n:])
	n += varint.Int.Marshal(c.Processed, bs[n:])
	n += varint.Int64.Marshal(c.UpdatedAt.UnixMicro(), bs[n:])
	return n
}

func (checkpointMUS) Unmarshal(bs []byte) (c Checkpoint, n int, err error) {
	c.Task, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	c.LastKey, n1, err = EntityKeyMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.Processed, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.UpdatedAt = time.UnixMicro(micros).UTC()
	return
}

func (checkpointMUS) Size(c Checkpoint) int {
	return ord.String.Size(c.Task) +
		EntityKeyMUS.Size(c.LastKey) +
		varint.Int.Size(c.Processed) +
		varint.Int64.Size(c.UpdatedAt.UnixMicro())
}

func marshalVector(v []float32, bs []byte) int {
	n := varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) (v []float32, n int, err error) {
	var length int
	length, n, err = varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return
	}
	// The length prefix comes off disk; bound it against the remaining bytes
	// before allocating so corrupt data cannot panic or balloon memory.
	if length < 0 {
		err = com.ErrNegativeLength
		return
	}
	if length > (len(bs)-n)/raw.Float32.Size(0) {
		err = mus.ErrTooSmallByteSlice
		return
	}
	v = make([]float32, length)
	var n1 int
	for i := 0; i < length; i++ {
		v[i], n1, err = raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

func sizeVector(v []float32) int {
	n := varint.Int.Size(len(v))
	for _, f := range v {
		n += raw.Float32.Size(f)
	}
	return n
}
