package protocol

import (
	"errors"

	"github.com/raven-ui/raven/pkg/vdom"
)

// nilNode marks a nil node on the wire. VKind values are small, so the
// marker cannot collide with a real kind byte.
const nilNode = 0xFF

// ErrUnknownKind is returned when a decoded kind byte matches no node
// kind.
var ErrUnknownKind = errors.New("protocol: unknown node kind")

// EncodeVNode encodes a node tree using the provided encoder. Event
// props are encoded as their names only; the receiving surface
// re-associates callbacks through handler tokens after the patch is
// applied.
func EncodeVNode(e *Encoder, v *vdom.VNode) {
	if v == nil {
		e.WriteByte(nilNode)
		return
	}

	e.WriteByte(byte(v.Kind))
	e.WriteUvarint(uint64(v.ID))

	switch v.Kind {
	case vdom.KindText:
		e.WriteString(v.Text)

	case vdom.KindElement:
		e.WriteString(v.Tag)
		e.WriteString(v.Key)
		encodeProps(e, v.Props)
		e.WriteUvarint(uint64(len(v.Children)))
		for _, c := range v.Children {
			EncodeVNode(e, c)
		}

	case vdom.KindFragment, vdom.KindComponent:
		e.WriteString(v.Key)
		e.WriteUvarint(uint64(len(v.Children)))
		for _, c := range v.Children {
			EncodeVNode(e, c)
		}
	}
}

// DecodeVNode decodes a node tree, enforcing MaxNodeDepth.
func DecodeVNode(d *Decoder) (*vdom.VNode, error) {
	return decodeVNode(d, 0)
}

func decodeVNode(d *Decoder, depth int) (*vdom.VNode, error) {
	if depth > MaxNodeDepth {
		return nil, ErrMaxDepthExceeded
	}

	kind, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	if kind == nilNode {
		return nil, nil
	}

	id, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	v := &vdom.VNode{
		Kind: vdom.VKind(kind),
		ID:   vdom.NodeID(id),
	}

	switch v.Kind {
	case vdom.KindText:
		v.Text, err = d.ReadString()
		return v, err

	case vdom.KindElement:
		if v.Tag, err = d.ReadString(); err != nil {
			return nil, err
		}
		if v.Key, err = d.ReadString(); err != nil {
			return nil, err
		}
		if v.Props, err = decodeProps(d); err != nil {
			return nil, err
		}
		if v.Children, err = decodeChildren(d, depth); err != nil {
			return nil, err
		}
		return v, nil

	case vdom.KindFragment, vdom.KindComponent:
		if v.Key, err = d.ReadString(); err != nil {
			return nil, err
		}
		if v.Children, err = decodeChildren(d, depth); err != nil {
			return nil, err
		}
		return v, nil

	default:
		return nil, ErrUnknownKind
	}
}

func decodeChildren(d *Decoder, depth int) ([]*vdom.VNode, error) {
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	children := make([]*vdom.VNode, count)
	for i := 0; i < count; i++ {
		if children[i], err = decodeVNode(d, depth+1); err != nil {
			return nil, err
		}
	}
	return children, nil
}

// encodeProp encodes one typed property. Wire layout depends on the
// kind: attrs and styles carry a value string, booleans a single byte,
// events nothing beyond their name.
func encodeProp(e *Encoder, p vdom.Prop) {
	e.WriteByte(byte(p.Kind))
	e.WriteString(p.Name)
	switch p.Kind {
	case vdom.PropAttr, vdom.PropStyle:
		e.WriteString(p.Value)
	case vdom.PropBool:
		e.WriteBool(p.Bool)
	case vdom.PropEvent:
		// Name only; the callback stays server-side.
	}
}

func decodeProp(d *Decoder) (vdom.Prop, error) {
	var p vdom.Prop
	kind, err := d.ReadByte()
	if err != nil {
		return p, err
	}
	p.Kind = vdom.PropKind(kind)
	if p.Name, err = d.ReadString(); err != nil {
		return p, err
	}
	switch p.Kind {
	case vdom.PropAttr, vdom.PropStyle:
		p.Value, err = d.ReadString()
	case vdom.PropBool:
		p.Bool, err = d.ReadBool()
	case vdom.PropEvent:
		// Name only.
	default:
		err = ErrUnknownKind
	}
	return p, err
}

// encodeProps writes props in sorted key order so equal trees encode
// to identical bytes.
func encodeProps(e *Encoder, props vdom.Props) {
	e.WriteUvarint(uint64(len(props)))
	for _, k := range props.SortedKeys() {
		encodeProp(e, props[k])
	}
}

func decodeProps(d *Decoder) (vdom.Props, error) {
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	props := make(vdom.Props, count)
	for i := 0; i < count; i++ {
		p, err := decodeProp(d)
		if err != nil {
			return nil, err
		}
		props[p.Key()] = p
	}
	return props, nil
}
