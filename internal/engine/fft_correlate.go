package engine

import (
	"math/cmplx"

	"github.com/tphakala/simd/c128"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Correlator performs overlap-save FFT cross-correlation of a complex signal
// against a fixed complex reference.
//
//	y[n] = Σ_k x[n+k] · conj(h[k]),  n in [0, len(x)-len(h)]
//
// Overlap-save method:
//  1. Process input in blocks of fftSize samples (with kernelLen-1 overlap)
//  2. Each block produces blockSize = fftSize - kernelLen + 1 valid output samples
//  3. The first kernelLen-1 output samples of each block are discarded (circular wrap)
type Correlator struct {
	fft       *fourier.CmplxFFT
	fftSize   int
	blockSize int

	// Precomputed reference spectrum, already scaled by 1/fftSize
	// (gonum's inverse transform does not normalize).
	kernelFFT []complex128
	kernelLen int

	// Working buffers (pre-allocated for zero allocation during processing)
	signalBlock []complex128
	signalFFT   []complex128
	productFFT  []complex128
	ifftResult  []complex128
}

// NewCorrelator creates a correlator for the given reference. The reference
// is transformed once and reused for every call.
func NewCorrelator(ref []complex128) *Correlator {
	kernelLen := len(ref)
	if kernelLen == 0 {
		return nil
	}

	fftSize := defaultFFTBlockSize
	for fftSize < 2*kernelLen {
		fftSize *= 2
	}

	fft := fourier.NewCmplxFFT(fftSize)

	// Reversed conjugate reference turns circular convolution into
	// correlation against the reference.
	padded := make([]complex128, fftSize)
	for i := range kernelLen {
		padded[i] = cmplx.Conj(ref[kernelLen-1-i])
	}
	kernelFFT := fft.Coefficients(nil, padded)
	scale := complex(1/float64(fftSize), 0)
	for i := range kernelFFT {
		kernelFFT[i] *= scale
	}

	return &Correlator{
		fft:         fft,
		fftSize:     fftSize,
		blockSize:   fftSize - kernelLen + 1,
		kernelFFT:   kernelFFT,
		kernelLen:   kernelLen,
		signalBlock: make([]complex128, fftSize),
		signalFFT:   make([]complex128, fftSize),
		productFFT:  make([]complex128, fftSize),
		ifftResult:  make([]complex128, fftSize),
	}
}

// KernelLen returns the reference length.
func (c *Correlator) KernelLen() int { return c.kernelLen }

// Correlate writes len(signal)-KernelLen()+1 correlation lags into dst and
// returns the number written. dst must be at least that long.
func (c *Correlator) Correlate(dst, signal []complex128) int {
	signalLen := len(signal)
	outputLen := signalLen - c.kernelLen + 1
	if outputLen <= 0 || len(dst) < outputLen {
		return 0
	}

	overlap := c.kernelLen - 1
	outIdx := 0

	for outIdx < outputLen {
		clear(c.signalBlock)

		copyLen := min(c.fftSize, signalLen-outIdx)
		copy(c.signalBlock, signal[outIdx:outIdx+copyLen])

		c.signalFFT = c.fft.Coefficients(c.signalFFT, c.signalBlock)
		c128.Mul(c.productFFT, c.signalFFT, c.kernelFFT)
		c.ifftResult = c.fft.Sequence(c.ifftResult, c.productFFT)

		validSamples := min(c.blockSize, outputLen-outIdx)
		copy(dst[outIdx:outIdx+validSamples], c.ifftResult[overlap:overlap+validSamples])

		outIdx += validSamples
	}

	return outputLen
}
