package subframe

import "github.com/tphakala/go-lte-sync/internal/iq"

// Base exposes the converted float buffer of channel ch.
func (a *Assembler) Base(ch int) iq.Vector { return a.base[ch] }

// HistoryLen exposes the look-back history length in samples.
func (a *Assembler) HistoryLen() int { return a.hlen }
