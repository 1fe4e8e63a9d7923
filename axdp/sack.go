package axdp

// SackBitmap is a selective-acknowledgement bitmap over a window of
// chunk indices [BaseChunk, BaseChunk+WindowSize). bit[i] set means chunk
// BaseChunk+i has been received.
type SackBitmap struct {
	BaseChunk  uint32
	WindowSize uint32
	Bits       []byte
}

// NewSackBitmap allocates a zeroed bitmap covering windowSize chunks
// starting at baseChunk. len(Bits) == ceil(windowSize/8).
func NewSackBitmap(baseChunk, windowSize uint32) *SackBitmap {
	return &SackBitmap{
		BaseChunk:  baseChunk,
		WindowSize: windowSize,
		Bits:       make([]byte, (windowSize+7)/8),
	}
}

// MarkReceived records chunk as received. No-op if chunk falls outside
// the window.
func (s *SackBitmap) MarkReceived(chunk uint32) {
	if chunk < s.BaseChunk || chunk >= s.BaseChunk+s.WindowSize {
		return
	}
	i := chunk - s.BaseChunk
	s.Bits[i/8] |= 1 << (i % 8)
}

// IsReceived reports whether chunk has been marked received.
func (s *SackBitmap) IsReceived(chunk uint32) bool {
	if chunk < s.BaseChunk || chunk >= s.BaseChunk+s.WindowSize {
		return false
	}
	i := chunk - s.BaseChunk
	return s.Bits[i/8]&(1<<(i%8)) != 0
}

// MissingChunks returns the indices in [BaseChunk, BaseChunk+n] that are
// not yet marked received.
func (s *SackBitmap) MissingChunks(n uint32) []uint32 {
	var missing []uint32
	end := s.BaseChunk + n
	for c := s.BaseChunk; c <= end; c++ {
		if c >= s.BaseChunk+s.WindowSize {
			break
		}
		if !s.IsReceived(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// HighestContiguous returns the largest k such that every chunk in
// [BaseChunk, k] has been received. If BaseChunk itself is missing it
// returns 0 with ok=false.
func (s *SackBitmap) HighestContiguous() (k uint32, ok bool) {
	if !s.IsReceived(s.BaseChunk) {
		return 0, false
	}
	k = s.BaseChunk
	for c := s.BaseChunk + 1; c < s.BaseChunk+s.WindowSize; c++ {
		if !s.IsReceived(c) {
			break
		}
		k = c
	}
	return k, true
}

// EncodeBits returns the raw bit array for wire encoding.
func (s *SackBitmap) EncodeBits() []byte {
	return append([]byte(nil), s.Bits...)
}
