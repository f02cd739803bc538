package instance

import (
	"fmt"

	"github.com/viant/structology/conv"
)

// Parameters is the immutable key-value payload an instance is created with.
type Parameters map[string]interface{}

var converter = newConverter()

func newConverter() *conv.Converter {
	options := conv.DefaultOptions()
	options.IgnoreUnmapped = true
	return conv.NewConverter(options)
}

// Clone returns a shallow copy.
func (p Parameters) Clone() Parameters {
	if p == nil {
		return nil
	}
	ret := make(Parameters, len(p))
	for k, v := range p {
		ret[k] = v
	}
	return ret
}

// Decode converts the parameters into the typed value pointed by dest.
func (p Parameters) Decode(dest interface{}) error {
	if len(p) == 0 {
		return nil
	}
	if err := converter.Convert(map[string]interface{}(p), dest); err != nil {
		return fmt.Errorf("failed to decode parameters into %T: %w", dest, err)
	}
	return nil
}

// Merge returns a copy of p overlaid with the supplied values.
func (p Parameters) Merge(values Parameters) Parameters {
	ret := p.Clone()
	if ret == nil {
		ret = make(Parameters, len(values))
	}
	for k, v := range values {
		ret[k] = v
	}
	return ret
}
