package axdp

// Encode serializes msg into its full on-wire form: magic + TLVs.
func Encode(msg Message) []byte {
	out := append([]byte(nil), Magic[:]...)
	out = encodeTLV(out, tlvMessageType, []byte{messageTypeWire(msg.Type)})
	out = encodeTLV(out, tlvSessionID, u32(msg.SessionID))
	out = encodeTLV(out, tlvMessageID, u32(msg.MessageID))

	if msg.ChunkIndex != nil {
		out = encodeTLV(out, tlvChunkIndex, u32(*msg.ChunkIndex))
	}
	if msg.TotalChunks != nil {
		out = encodeTLV(out, tlvTotalChunks, u32(*msg.TotalChunks))
	}
	if msg.Payload != nil {
		out = encodeTLV(out, tlvPayload, msg.Payload)
	}
	if msg.PayloadCRC32 != nil {
		out = encodeTLV(out, tlvPayloadCRC32, u32(*msg.PayloadCRC32))
	}
	if msg.Sack != nil {
		var v []byte
		v = append(v, u32(msg.Sack.BaseChunk)...)
		v = append(v, u32(msg.Sack.WindowSize)...)
		v = append(v, msg.Sack.EncodeBits()...)
		out = encodeTLV(out, tlvSackBitmap, v)
	}
	if msg.Caps != nil {
		out = encodeTLV(out, tlvCapabilities, encodeCapabilities(*msg.Caps))
	}
	if msg.FileMeta != nil {
		out = encodeTLV(out, tlvFileMeta, encodeFileMeta(*msg.FileMeta))
	}
	if msg.Compression != nil {
		out = encodeTLV(out, tlvCompression, []byte{compressionWire(*msg.Compression)})
	}
	if msg.Metrics != nil {
		out = encodeTLV(out, tlvTransferMetrics, encodeTransferMetrics(*msg.Metrics))
	}
	if msg.AckedMessageID != nil {
		out = encodeTLV(out, tlvAckedMessageID, u32(*msg.AckedMessageID))
	}
	for _, u := range msg.Unknown {
		out = encodeTLV(out, u.Type, u.Value)
	}
	return out
}

// Decode attempts to extract one complete AXDP message from the start of
// buf. It returns (message, bytesConsumed, true) only when buf holds a
// complete message; any truncation (magic missing, TLVs cut short, or
// mandatory TLVs absent) yields (zero, 0, false) rather than a partial
// result. This is the invariant fragment reassembly depends on.
func Decode(buf []byte) (Message, int, bool) {
	if !HasMagic(buf) {
		return Message{}, 0, false
	}
	tlvs, ok := parseTLVs(buf[4:])
	if !ok {
		return Message{}, 0, false
	}

	var msg Message
	haveType := false
	consumed := 4
	for _, t := range tlvs {
		consumed += 3 + len(t.Value)
		switch t.Type {
		case tlvMessageType:
			if len(t.Value) != 1 {
				return Message{}, 0, false
			}
			msg.Type = messageTypeFromWire(t.Value[0])
			haveType = true
		case tlvSessionID:
			v, ok := parseU32(t.Value)
			if !ok {
				return Message{}, 0, false
			}
			msg.SessionID = v
		case tlvMessageID:
			v, ok := parseU32(t.Value)
			if !ok {
				return Message{}, 0, false
			}
			msg.MessageID = v
		case tlvChunkIndex:
			v, ok := parseU32(t.Value)
			if !ok {
				return Message{}, 0, false
			}
			msg.ChunkIndex = &v
		case tlvTotalChunks:
			v, ok := parseU32(t.Value)
			if !ok {
				return Message{}, 0, false
			}
			msg.TotalChunks = &v
		case tlvPayload:
			msg.Payload = append([]byte{}, t.Value...)
		case tlvPayloadCRC32:
			v, ok := parseU32(t.Value)
			if !ok {
				return Message{}, 0, false
			}
			msg.PayloadCRC32 = &v
		case tlvSackBitmap:
			if len(t.Value) < 8 {
				return Message{}, 0, false
			}
			base, _ := parseU32(t.Value[0:4])
			window, _ := parseU32(t.Value[4:8])
			want := int((window + 7) / 8)
			if len(t.Value[8:]) != want {
				return Message{}, 0, false
			}
			msg.Sack = &SackBitmap{BaseChunk: base, WindowSize: window, Bits: append([]byte(nil), t.Value[8:]...)}
		case tlvCapabilities:
			c, ok := decodeCapabilities(t.Value)
			if !ok {
				return Message{}, 0, false
			}
			msg.Caps = &c
		case tlvFileMeta:
			fm, ok := decodeFileMeta(t.Value)
			if !ok {
				return Message{}, 0, false
			}
			msg.FileMeta = &fm
		case tlvCompression:
			if len(t.Value) != 1 {
				return Message{}, 0, false
			}
			alg := compressionFromWire(t.Value[0])
			msg.Compression = &alg
		case tlvTransferMetrics:
			m, ok := decodeTransferMetrics(t.Value)
			if !ok {
				return Message{}, 0, false
			}
			msg.Metrics = &m
		case tlvAckedMessageID:
			v, ok := parseU32(t.Value)
			if !ok {
				return Message{}, 0, false
			}
			msg.AckedMessageID = &v
		default:
			msg.Unknown = append(msg.Unknown, UnknownTLV{Type: t.Type, Value: append([]byte(nil), t.Value...)})
		}
	}

	if !haveType {
		return Message{}, 0, false
	}
	if msg.Validate() != nil {
		return Message{}, 0, false
	}
	// parseTLVs only returns ok=true after consuming buf to its end, so
	// consumed == len(buf) always holds here.
	return msg, consumed, true
}
