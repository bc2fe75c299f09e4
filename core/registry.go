package core

import (
	"slices"
	"sync"
)

// CodecRegistry is the thread-safe Registry used by the inspector and the
// stdlib transformer.  Lookups vastly outnumber registrations, so reads take
// the shared lock.
type CodecRegistry struct {
	mu       sync.RWMutex
	decoders map[Format]Decoder
	encoders map[Format]Encoder
}

// NewRegistry returns an empty CodecRegistry.
func NewRegistry() *CodecRegistry {
	return &CodecRegistry{
		decoders: make(map[Format]Decoder),
		encoders: make(map[Format]Encoder),
	}
}

func (r *CodecRegistry) RegisterDecoder(f Format, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[f] = d
}

func (r *CodecRegistry) RegisterEncoder(f Format, e Encoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders[f] = e
}

func (r *CodecRegistry) DecoderFor(f Format) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[f]
	if ok && !d.CanDecode(f) {
		return nil, false
	}
	return d, ok
}

func (r *CodecRegistry) EncoderFor(f Format) (Encoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.encoders[f]
	if ok && !e.CanEncode(f) {
		return nil, false
	}
	return e, ok
}

// DecodableFormats lists the formats with a registered decoder, sorted.
func (r *CodecRegistry) DecodableFormats() []Format {
	r.mu.RLock()
	out := make([]Format, 0, len(r.decoders))
	for f := range r.decoders {
		out = append(out, f)
	}
	r.mu.RUnlock()
	slices.Sort(out)
	return out
}
