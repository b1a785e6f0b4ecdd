package tsbuf

const (
	samplePair  = 2 // int16 values per complex sample
	minCapacity = 2 // Smallest ring that can hold one sample
)
