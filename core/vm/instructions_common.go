package vm

// getData copies length bytes from data starting at offset, zero-padding
// past the end. It is CALLDATACOPY/EXTCODECOPY's analogue of
// Bytecode.GetData for plain byte slices (calldata, external account code).
func getData(data []byte, offset, length uint64) []byte {
	out := make([]byte, length)
	if offset >= uint64(len(data)) {
		return out
	}
	end := offset + length
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	copy(out, data[offset:end])
	return out
}
