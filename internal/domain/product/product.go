package product

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// ErrNegativePrice is returned when a decoded product carries a price below zero.
var ErrNegativePrice = errors.New("negative price")

// Product is a single catalog item as returned by the catalog endpoint.
// Values are never mutated after decoding.
type Product struct {
	Name        string
	SKU         string
	BrandName   string
	Price       decimal.Decimal
	Description string // may embed HTML markup
	Image       string
	Images      []string
}

// Gallery returns the images to show for the product. It falls back to the
// primary image when the gallery is empty.
func (p Product) Gallery() []string {
	if len(p.Images) > 0 {
		return slices.Clone(p.Images)
	}
	if p.Image == "" {
		return nil
	}
	return []string{p.Image}
}

// Clone returns a copy of p that shares no memory with it.
func (p Product) Clone() Product {
	p.Images = slices.Clone(p.Images)
	return p
}

// Decode reads a product object from d.
func (p *Product) Decode(d *jx.Decoder) error {
	*p = Product{Images: []string{}}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name":
			p.Name, err = d.Str()
		case "sku":
			p.SKU, err = d.Str()
		case "brand_name":
			p.BrandName, err = d.Str()
		case "price":
			p.Price, err = decodePrice(d)
		case "description":
			p.Description, err = d.Str()
		case "image":
			p.Image, err = d.Str()
		case "images":
			err = d.Arr(func(d *jx.Decoder) error {
				s, err := d.Str()
				if err != nil {
					return err
				}
				p.Images = append(p.Images, s)
				return nil
			})
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	if tt := d.Next(); tt != jx.Number {
		return decimal.Zero, errors.Errorf("expected number, got %s", tt)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse price")
	}
	if price.IsNegative() {
		return decimal.Zero, ErrNegativePrice
	}
	return price, nil
}

// Encode writes the product in catalog wire shape.
func (p Product) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("sku")
	e.Str(p.SKU)
	e.FieldStart("brand_name")
	e.Str(p.BrandName)
	e.FieldStart("price")
	e.Num(jx.Num(p.Price.String()))
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("image")
	e.Str(p.Image)
	e.FieldStart("images")
	e.ArrStart()
	for _, img := range p.Images {
		e.Str(img)
	}
	e.ArrEnd()
	e.ObjEnd()
}

// MarshalJSON implements json.Marshaler.
func (p Product) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	p.Encode(&e)
	return e.Bytes(), nil
}
