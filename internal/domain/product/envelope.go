package product

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Envelope is the wrapper the catalog service puts around every response.
type Envelope struct {
	Status  int
	Message string
	// Data is nil when the response carried no product.
	Data *Product
}

// OK reports whether the catalog service flagged the response as successful.
func (e Envelope) OK() bool {
	return e.Status != 0
}

// DecodeEnvelope parses a catalog response body.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	d := jx.DecodeBytes(data)
	if err := env.Decode(d); err != nil {
		return Envelope{}, err
	}
	if d.Next() != jx.Invalid {
		return Envelope{}, errors.New("unexpected data after envelope")
	}
	return env, nil
}

// Decode reads an envelope object from d.
func (e *Envelope) Decode(d *jx.Decoder) error {
	*e = Envelope{}
	if d.Next() != jx.Object {
		return errors.Errorf("envelope: expected object, got %s", d.Next())
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "status":
			status, err := decodeStatus(d)
			if err != nil {
				return errors.Wrap(err, "status")
			}
			e.Status = status
		case "message":
			if d.Next() == jx.Null {
				return d.Null()
			}
			msg, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "message")
			}
			e.Message = msg
		case "data":
			switch d.Next() {
			case jx.Null:
				return d.Null()
			case jx.Object:
				var p Product
				if err := p.Decode(d); err != nil {
					return errors.Wrap(err, "data")
				}
				e.Data = &p
			default:
				return errors.Errorf("data: expected object or null, got %s", d.Next())
			}
		default:
			return d.Skip()
		}
		return nil
	})
}

// decodeStatus accepts both the numeric status used by the catalog and a
// plain boolean.
func decodeStatus(d *jx.Decoder) (int, error) {
	switch d.Next() {
	case jx.Bool:
		ok, err := d.Bool()
		if err != nil {
			return 0, err
		}
		if ok {
			return 1, nil
		}
		return 0, nil
	case jx.Number:
		return d.Int()
	default:
		return 0, errors.Errorf("expected number or bool, got %s", d.Next())
	}
}
