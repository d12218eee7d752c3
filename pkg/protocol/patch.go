package protocol

import (
	"errors"

	"github.com/raven-ui/raven/pkg/vdom"
)

// ErrUnknownPatchOp is returned when a decoded op byte matches no
// patch operation.
var ErrUnknownPatchOp = errors.New("protocol: unknown patch op")

// PatchFrame is one sequenced batch of patches. A frame is applied
// atomically in order; the sequence number drives acks and resync.
type PatchFrame struct {
	Seq     uint64
	Patches []vdom.Patch
}

// EncodePatchFrame encodes a patch frame to bytes.
func EncodePatchFrame(pf *PatchFrame) []byte {
	e := NewEncoder()
	EncodePatchFrameTo(e, pf)
	return e.Bytes()
}

// EncodePatchFrameTo encodes a patch frame using the provided encoder.
func EncodePatchFrameTo(e *Encoder, pf *PatchFrame) {
	e.WriteUvarint(pf.Seq)
	e.WriteUvarint(uint64(len(pf.Patches)))
	for i := range pf.Patches {
		encodePatch(e, &pf.Patches[i])
	}
}

func encodePatch(e *Encoder, p *vdom.Patch) {
	e.WriteByte(byte(p.Op))
	e.WriteUvarint(uint64(p.NodeID))

	switch p.Op {
	case vdom.PatchInsert:
		e.WriteUvarint(uint64(p.ParentID))
		e.WriteUvarint(uint64(p.BeforeID))
		EncodeVNode(e, p.Node)

	case vdom.PatchRemove:
		// NodeID is sufficient.

	case vdom.PatchReplace:
		EncodeVNode(e, p.Node)

	case vdom.PatchMove:
		e.WriteUvarint(uint64(p.ParentID))
		e.WriteUvarint(uint64(p.BeforeID))

	case vdom.PatchUpdateProps:
		e.WriteUvarint(uint64(len(p.Added)))
		for _, prop := range p.Added {
			encodeProp(e, prop)
		}
		e.WriteUvarint(uint64(len(p.Removed)))
		for _, name := range p.Removed {
			e.WriteString(name)
		}
		e.WriteUvarint(uint64(len(p.Changed)))
		for _, prop := range p.Changed {
			encodeProp(e, prop)
		}

	case vdom.PatchUpdateText:
		e.WriteString(p.Text)
	}
}

// DecodePatchFrame decodes a patch frame from bytes.
func DecodePatchFrame(data []byte) (*PatchFrame, error) {
	d := NewDecoder(data)
	return DecodePatchFrameFrom(d)
}

// DecodePatchFrameFrom decodes a patch frame from a decoder.
func DecodePatchFrameFrom(d *Decoder) (*PatchFrame, error) {
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}

	patches := make([]vdom.Patch, count)
	for i := 0; i < count; i++ {
		if err := decodePatch(d, &patches[i]); err != nil {
			return nil, err
		}
	}
	return &PatchFrame{Seq: seq, Patches: patches}, nil
}

func decodePatch(d *Decoder, p *vdom.Patch) error {
	opByte, err := d.ReadByte()
	if err != nil {
		return err
	}
	p.Op = vdom.PatchOp(opByte)

	id, err := d.ReadUvarint()
	if err != nil {
		return err
	}
	p.NodeID = vdom.NodeID(id)

	switch p.Op {
	case vdom.PatchInsert:
		if err := decodeAnchor(d, p); err != nil {
			return err
		}
		p.Node, err = DecodeVNode(d)
		return err

	case vdom.PatchRemove:
		return nil

	case vdom.PatchReplace:
		p.Node, err = DecodeVNode(d)
		return err

	case vdom.PatchMove:
		return decodeAnchor(d, p)

	case vdom.PatchUpdateProps:
		if p.Added, err = decodePropList(d); err != nil {
			return err
		}
		count, err := d.ReadCollectionCount()
		if err != nil {
			return err
		}
		if count > 0 {
			p.Removed = make([]string, count)
			for i := 0; i < count; i++ {
				if p.Removed[i], err = d.ReadString(); err != nil {
					return err
				}
			}
		}
		p.Changed, err = decodePropList(d)
		return err

	case vdom.PatchUpdateText:
		p.Text, err = d.ReadString()
		return err

	default:
		return ErrUnknownPatchOp
	}
}

func decodeAnchor(d *Decoder, p *vdom.Patch) error {
	parent, err := d.ReadUvarint()
	if err != nil {
		return err
	}
	before, err := d.ReadUvarint()
	if err != nil {
		return err
	}
	p.ParentID = vdom.NodeID(parent)
	p.BeforeID = vdom.NodeID(before)
	return nil
}

func decodePropList(d *Decoder) ([]vdom.Prop, error) {
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	props := make([]vdom.Prop, count)
	for i := 0; i < count; i++ {
		if props[i], err = decodeProp(d); err != nil {
			return nil, err
		}
	}
	return props, nil
}
