// Package ltesync is the receive-side synchronization core of an LTE
// downlink receiver in pure Go.
//
// It pulls timestamped sc16 samples from a radio source, finds a cell by its
// primary and secondary synchronization signals, decodes the master
// information block through a caller-supplied decoder and then keeps timing
// and carrier frequency locked while handing every enabled subframe, stamped
// with frame and subframe number, to a pool of decode workers.
//
// # Features
//
//   - All six LTE bandwidths, 6 to 100 resource blocks
//   - Polyphase FIR decimation into fixed-rate sync and broadcast views,
//     with SIMD dot products via github.com/tphakala/simd
//   - FFT based PSS search, frequency domain sector confirmation and SSS
//     cell group and half-frame detection
//   - Per-subframe timing correction from the measured PSS position,
//     including sub-sample nudges while tracking
//   - Averaged carrier offset correction applied digitally at the source
//   - Bounded, allocation free work distribution to concurrent decoders
//   - Supervisor that restarts acquisition after recoverable radio faults
//   - Prometheus metrics and structured logging
//
// # Quick Start
//
// Wrap a sample stream in a Device, supply a MIB decoder and a data decoder,
// and run the receiver:
//
//	dev, err := ltesync.NewDevice(stream, 64*1920, logger, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rx, err := ltesync.New(ltesync.DefaultConfig(), ltesync.Collaborators{
//	    Source:  dev,
//	    MIB:     mibDecoder,
//	    Decoder: ltesync.DecoderFunc(decodeSubframe),
//	    Logger:  logger,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Blocks until ctx is cancelled or the stream fails for good.
//	if err := rx.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// [Receiver.Acquire] stops at the first decoded MIB, which is enough to
// scan for cells. [Receiver.Track] and [Receiver.Run] keep going.
//
// # Synchronization States
//
// The receiver steps one subframe at a time through these states:
//
//   - [PSSSync]: search the whole subframe for the strongest PSS peak.
//   - [PSSSync2]: confirm sector and timing at the next subframe 0.
//   - [SSSSync]: resolve the cell group and half-frame from the SSS.
//   - [PBCHSync] and [PBCH]: re-check the PSS and decode the MIB.
//   - [PDSCHSync] and [PDSCH]: track, re-verify at subframe 5 and dispatch.
//
// Repeated misses in any state fall back to the search with the frequency
// correction removed.
//
// # Timing
//
// Every cycle the PSS position measured in the sync view becomes a sample
// correction for the next subframe read. Large offsets jump directly to the
// expected PSS boundary, small ones are halved before lock and scaled to the
// native rate while tracking. The sample ring keeps already consumed samples
// until they are overwritten, so corrections may move the timeline back.
//
// # Thread Safety
//
// [Receiver.Acquire], [Receiver.Track] and [Receiver.Run] own the source and
// must not overlap. [Receiver.SetSubframeMode], [Receiver.SetRNTI] and
// [Receiver.Status] are safe from any goroutine. Decoders run concurrently
// with each other and with the sync loop; a [Buffer] belongs to the decoder
// until Decode returns.
package ltesync
