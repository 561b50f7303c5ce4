package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"time"

	gwpb "github.com/brocaar/chirpstack-api/go/v3/gw"
	"github.com/golang/protobuf/proto"
	"github.com/google/uuid"
)

const Prefix = "CD"

var ErrInvalidKey = errors.New("invalid key")

// Journal keeps the most recent uplinks seen by the concentrator.
type Journal interface {
	Store(id uuid.UUID, v []byte, t time.Time) error
	StoreTx(tx Tx, id uuid.UUID, v []byte, t time.Time) error
	Get(id uuid.UUID) (*Record, error)
	Last(count int) ([]Record, error)
	Begin() Tx
}

type Tx interface {
	Discard()
	Commit() error
}

type Record struct {
	ID    uuid.UUID
	Time  time.Time
	Value []byte
}

// DataKey returns the key Prefix+"D"+reverse time+id, most recent first.
func DataKey(t time.Time, id uuid.UUID) []byte {
	dk := make([]byte, len(Prefix)+1+8+16)
	copy(dk, Prefix+"D")
	// using reverse timestamp
	copy(dk[len(Prefix)+1:], int64tob(math.MaxInt64-t.UnixNano()))
	copy(dk[len(Prefix)+1+8:], id[:])
	return dk
}

// DataPrefix is the prefix shared by all data keys.
func DataPrefix() []byte {
	return []byte(Prefix + "D")
}

// IDKey returns the key Prefix+"I"+id pointing to the data key.
func IDKey(id uuid.UUID) []byte {
	ik := make([]byte, len(Prefix)+1+16)
	copy(ik, Prefix+"I")
	copy(ik[len(Prefix)+1:], id[:])
	return ik
}

// ReadDataKey returns the time and id stored in a data key.
func ReadDataKey(dk []byte) (time.Time, uuid.UUID, error) {
	var t time.Time
	if len(dk) != len(Prefix)+1+8+16 || !bytes.HasPrefix(dk, DataPrefix()) {
		return t, uuid.Nil, ErrInvalidKey
	}

	// reverse ts back
	ts := int64(binary.BigEndian.Uint64(dk[len(Prefix)+1:]))
	t = time.Unix(0, math.MaxInt64-ts).UTC()

	id, err := uuid.FromBytes(dk[len(Prefix)+1+8:])
	if err != nil {
		return t, uuid.Nil, err
	}
	return t, id, nil
}

// StoreUplink encodes and stores an uplink frame under its uplink id.
func StoreUplink(j Journal, frame *gwpb.UplinkFrame, t time.Time) error {
	id, err := uuid.FromBytes(frame.GetRxInfo().GetUplinkId())
	if err != nil {
		return err
	}
	b, err := proto.Marshal(frame)
	if err != nil {
		return err
	}
	return j.Store(id, b, t)
}

// Uplinks returns up to count uplinks, most recent first.
func Uplinks(j Journal, count int) ([]*gwpb.UplinkFrame, error) {
	recs, err := j.Last(count)
	if err != nil {
		return nil, err
	}
	res := make([]*gwpb.UplinkFrame, 0, len(recs))
	for _, r := range recs {
		frame := &gwpb.UplinkFrame{}
		if err := proto.Unmarshal(r.Value, frame); err != nil {
			return nil, err
		}
		res = append(res, frame)
	}
	return res, nil
}

// Uplink returns the uplink stored for id, nil if not found.
func Uplink(j Journal, id uuid.UUID) (*gwpb.UplinkFrame, error) {
	r, err := j.Get(id)
	if err != nil || r == nil {
		return nil, err
	}
	frame := &gwpb.UplinkFrame{}
	if err := proto.Unmarshal(r.Value, frame); err != nil {
		return nil, err
	}
	return frame, nil
}
