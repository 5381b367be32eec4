package pool

// FillArray is a raw data payload referenced by an array-fill operation.
type FillArray struct {
	Width int
	Data  []byte

	offset int
}

// Offset returns the assigned offset of the payload.
func (f *FillArray) Offset() int {
	return f.offset
}

// Size returns the payload size padded to 4 bytes.
func (f *FillArray) Size() int {
	return (len(f.Data) + 3) &^ 3
}

// FillArrays holds the fill-array payloads of a unit in creation order.
type FillArrays struct {
	arrays []*FillArray
}

// NewFillArrays creates an empty set of fill-array payloads.
func NewFillArrays() *FillArrays {
	return &FillArrays{}
}

// Add registers a payload of elements width bytes wide.
func (s *FillArrays) Add(width int, data []byte) *FillArray {
	f := &FillArray{Width: width, Data: data}
	s.arrays = append(s.arrays, f)

	return f
}

// Arrays returns the payloads in layout order.
func (s *FillArrays) Arrays() []*FillArray {
	return s.arrays
}

// AssignOffsets places the payloads back to back.
func (s *FillArrays) AssignOffsets(offset int) int {
	for _, f := range s.arrays {
		f.offset = offset
		offset += f.Size()
	}

	return offset
}

// Install copies every payload.
func (s *FillArrays) Install(im *Image) {
	for _, f := range s.arrays {
		im.PadTo(f.offset)
		im.Buf = append(im.Buf, f.Data...)
		im.PadTo(f.offset + f.Size())
	}
}
