package cachestore

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vulpemventures/go-polyderive/derivation"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/instance"
	"github.com/vulpemventures/go-polyderive/internal/bufferutil"
	"github.com/vulpemventures/go-polyderive/network"
)

// ErrCorruptEntry is returned when a stored entry does not decode.
var ErrCorruptEntry = errors.New("cachestore: corrupt entry")

var (
	poolPrefix   = []byte("pool/")
	cursorPrefix = []byte("cursor/")
)

func poolKey(r derivation.Request) []byte {
	return append(append([]byte(nil), poolPrefix...), encodeRequest(r)...)
}

func cursorKey(r derivation.Request) []byte {
	return append(append([]byte(nil), cursorPrefix...), encodeRequest(r)...)
}

func encodeRequest(r derivation.Request) []byte {
	w := bufferutil.NewBufferWriter(nil)
	w.WriteUint8(uint8(r.FactorSourceID.Kind))
	w.WriteSlice(r.FactorSourceID.Body[:])
	w.WriteUint8(uint8(r.Network))
	w.WriteUint32(uint32(r.EntityKind))
	w.WriteUint32(uint32(r.KeyKind))
	w.WriteUint8(uint8(r.KeySpace))
	return w.Bytes()
}

func decodeRequest(b []byte) (derivation.Request, error) {
	r := bufferutil.NewBufferReader(bytes.NewBuffer(b))

	kind, err := r.ReadUint8()
	if err != nil {
		return derivation.Request{}, err
	}
	body, err := r.ReadSlice(32)
	if err != nil {
		return derivation.Request{}, err
	}
	net, err := r.ReadUint8()
	if err != nil {
		return derivation.Request{}, err
	}
	entity, err := r.ReadUint32()
	if err != nil {
		return derivation.Request{}, err
	}
	key, err := r.ReadUint32()
	if err != nil {
		return derivation.Request{}, err
	}
	space, err := r.ReadUint8()
	if err != nil {
		return derivation.Request{}, err
	}
	if r.Len() != 0 {
		return derivation.Request{}, fmt.Errorf("%d trailing bytes", r.Len())
	}

	id := factorsource.ID{Kind: factorsource.Kind(kind)}
	copy(id.Body[:], body)
	return derivation.NewRequest(
		id, network.ID(net), derivation.EntityKind(entity),
		derivation.KeyKind(key), derivation.KeySpace(space),
	), nil
}

// encodePool serializes the offsets and public keys of a pool. The request
// is carried by the key.
func encodePool(items []instance.FactorInstance) []byte {
	w := bufferutil.NewBufferWriter(nil)
	w.WriteVarInt(uint64(len(items)))
	for _, fi := range items {
		w.WriteUint32(fi.Path.Index.Raw())
		w.WriteVarSlice(fi.PublicKey.Bytes())
	}
	return w.Bytes()
}

func decodePool(req derivation.Request, b []byte) ([]instance.FactorInstance, error) {
	r := bufferutil.NewBufferReader(bytes.NewBuffer(b))
	n, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}

	items := make([]instance.FactorInstance, 0, n)
	for i := uint64(0); i < n; i++ {
		raw, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		index := derivation.Classify(raw)
		if index.KeySpace() != req.KeySpace {
			return nil, fmt.Errorf("index %d not in %s space", raw, req.KeySpace)
		}
		pk, err := r.ReadVarSlice()
		if err != nil {
			return nil, err
		}
		pubkey, err := instance.ParsePublicKey(pk)
		if err != nil {
			return nil, err
		}
		path := derivation.NewPath(
			req.FactorSourceID, req.Network, req.EntityKind, req.KeyKind, index,
		)
		items = append(items, instance.FromPath(path, pubkey))
	}
	return items, nil
}

func encodeCursor(cursor uint32) []byte {
	w := bufferutil.NewBufferWriter(nil)
	w.WriteUint32(cursor)
	return w.Bytes()
}

func decodeCursor(b []byte) (uint32, error) {
	return bufferutil.NewBufferReader(bytes.NewBuffer(b)).ReadUint32()
}
