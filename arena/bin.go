package arena

import "github.com/heapcore/heapcore/internal/rbtree"

// runMaxOvrhd bounds the fraction of a run's bytes that may be consumed
// by bookkeeping overhead before arena_bin_run_size_calc stops growing
// the run; runMaxOvrhdRelax relaxes that bound once the region itself
// is large enough that the absolute overhead is negligible regardless
// of the ratio.
const (
	runMaxOvrhd      = 0.015
	runMaxOvrhdRelax = 1.5
	runHeaderBase    = 16 // nominal header bytes, mirroring the in-band run header size
)

// Bin holds the fixed layout chosen once at arena-init time for one
// small size class: its region size and the run geometry that serves
// it, plus the mutable runcur/non-full-run state.
type Bin struct {
	regSize    int
	runSize    int
	nregs      int
	maskNelms  int
	reg0Offset int

	runcur  *smallRun
	nonFull *nonFullTree // ordered by address
}

// buildBins computes {run_size, nregs, regs_mask_nelms, reg0_offset} for
// every small size class, in the order given by binSizes, carrying
// run_size forward monotonically across bins as arena_bin_run_size_calc
// does in the original.
func buildBins() []*Bin {
	bins := make([]*Bin, NumBins)
	runSize := PageSize

	for i, regSize := range binSizes {
		runSize = binRunSizeCalc(regSize, runSize)
		nregs, maskNelms, reg0 := binLayout(regSize, runSize)

		bins[i] = &Bin{
			regSize:    regSize,
			runSize:    runSize,
			nregs:      nregs,
			maskNelms:  maskNelms,
			reg0Offset: reg0,
			nonFull:    rbtree.New[*smallRun](cmpSmallRunAddr),
		}
	}
	return bins
}

func binRunSizeCalc(regSize, tryRunSize int) int {
	goodRunSize := tryRunSize
	for {
		if tryRunSize > ArenaMaxclass {
			return goodRunSize
		}
		nregs, maskNelms, reg0 := binLayout(regSize, tryRunSize)
		if nregs < 1 {
			tryRunSize += PageSize
			continue
		}

		headerBytes := runHeaderBase + (maskNelms-1)*8
		if headerBytes < 0 {
			headerBytes = runHeaderBase
		}
		overhead := float64(headerBytes) / float64(tryRunSize)
		_ = reg0

		if overhead <= runMaxOvrhd || float64(regSize)*runMaxOvrhd > runMaxOvrhdRelax {
			goodRunSize = tryRunSize
			tryRunSize += PageSize
			continue
		}
		return goodRunSize
	}
}

// binLayout solves for the largest nregs such that the nominal run
// header (sized to the mask array nregs requires) plus nregs*regSize
// fits in runSize. The regions are packed against the end of the run,
// so reg0Offset = runSize - nregs*regSize: because runSize is a page
// multiple, every region is aligned to the largest power of two
// dividing regSize (up to PageSize).
func binLayout(regSize, runSize int) (nregs, maskNelms, reg0Offset int) {
	usable := runSize
	for {
		candidateNregs := (usable - runHeaderBase) / regSize
		if candidateNregs < 1 {
			return 0, 1, runHeaderBase
		}
		nelms := (candidateNregs + 63) / 64
		if nelms < 1 {
			nelms = 1
		}
		header := runHeaderBase + (nelms-1)*8
		if header+candidateNregs*regSize <= runSize {
			return candidateNregs, nelms, runSize - candidateNregs*regSize
		}
		usable--
		if usable <= 0 {
			return 0, 1, runHeaderBase
		}
	}
}
