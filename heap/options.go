package heap

import (
	"log/slog"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// narenasAutoMax mirrors mozjemalloc's cap on the automatically chosen
// arena count.
const narenasAutoMax = 8

// Options configures a Heap at construction time: the realization of
// the HEAPCORE_OPTIONS environment variable plus the
// programmatic knobs (NumArenas, MaxDirtyPages) that variable's tokens
// ultimately drive.
type Options struct {
	// NumArenas is the arena count. Zero means "pick automatically",
	// realized the way mozjemalloc sizes narenas_auto from ncpus.
	NumArenas int

	// MaxDirtyPages is the per-arena dirty high-water mark before a
	// purge is triggered (opt_dirty_max's realization).
	MaxDirtyPages int

	// FillJunk, when true, fills newly allocated memory that was not
	// requested zeroed with a junk byte pattern (0xe4) (the `j`/`J`
	// HEAPCORE_OPTIONS token). Freed regions are poisoned with 0xe5
	// whether or not it is set.
	FillJunk bool

	// ZeroFill, when true, always zeroes newly allocated memory even
	// when the caller did not request it via Calloc (the `z`/`Z`
	// token).
	ZeroFill bool

	// Logger receives structured diagnostics, including unrecognized
	// HEAPCORE_OPTIONS tokens. Defaults to slog.Default() if nil.
	Logger *slog.Logger
}

// DefaultOptions returns the Options a freshly embedded Heap uses with
// no HEAPCORE_OPTIONS set: an automatically sized arena count and a
// conservative dirty-page ceiling.
func DefaultOptions() Options {
	return Options{
		NumArenas:     autoNumArenas(),
		MaxDirtyPages: 512,
		Logger:        slog.Default(),
	}
}

// DebugOptions returns Options suited to catching use-after-free and
// uninitialized-read bugs during development: junk-filling and
// zero-filling both enabled, a single arena to make interleavings
// reproducible.
func DebugOptions() Options {
	o := DefaultOptions()
	o.NumArenas = 1
	o.FillJunk = true
	o.ZeroFill = true
	return o
}

func autoNumArenas() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	if n > narenasAutoMax {
		n = narenasAutoMax
	}
	return n
}

var foldCaser = cases.Fold()

// ParseOptions parses a HEAPCORE_OPTIONS-style string into Options
// layered on top of base. Two token shapes are accepted, split on
// whitespace and commas:
//
//   - a single meaningful letter — f/F halve/double MaxDirtyPages,
//     j/J toggle FillJunk off/on, z/Z toggle ZeroFill off/on —
//     optionally followed by a decimal repetition count, which f/F
//     apply once per repetition and the toggles ignore;
//   - a long-form word alias ("junk"/"nojunk", "zero"/"nozero",
//     "arenas:<n>") for administrators who find single letters in a
//     pasted config file error-prone. Word aliases are matched after
//     Unicode case folding via golang.org/x/text/cases, so "JUNK" and
//     "Junk" behave identically — unlike the single-letter tokens,
//     where case is the signal and must NOT be folded.
//
// Unknown tokens are logged through base.Logger (or slog.Default() if
// unset) and otherwise ignored, matching mozjemalloc's permissive
// parser.
func ParseOptions(base Options, env string) Options {
	o := base
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for _, tok := range splitOptionTokens(env) {
		if applySingleLetterToken(&o, tok) {
			continue
		}
		if applyWordToken(&o, tok) {
			continue
		}
		logger.Warn("heap: unrecognized HEAPCORE_OPTIONS token", "token", tok)
	}

	o.Logger = logger
	return o
}

func splitOptionTokens(env string) []string {
	var toks []string
	var cur []byte
	flush := func() {
		if len(cur) > 0 {
			toks = append(toks, string(cur))
			cur = cur[:0]
		}
	}
	for i := 0; i < len(env); i++ {
		c := env[i]
		if c == ' ' || c == ',' || c == '\t' {
			flush()
			continue
		}
		cur = append(cur, c)
	}
	flush()
	return toks
}

// applySingleLetterToken handles the single-char tokens,
// optionally suffixed with a decimal repetition count (the repeat
// count applies to f/F, which halve/double opt_dirty_max once per
// occurrence; j/J and z/Z ignore it beyond validating it parses).
// Case carries meaning here (lowercase disables/shrinks, uppercase
// enables/grows) and is never folded.
func applySingleLetterToken(o *Options, tok string) bool {
	if len(tok) == 0 {
		return false
	}
	letter := tok[0]
	rest := tok[1:]
	repeat := 1
	if rest != "" {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return false
		}
		repeat = n
	}
	switch letter {
	case 'f':
		for i := 0; i < repeat && o.MaxDirtyPages > 1; i++ {
			o.MaxDirtyPages /= 2
		}
	case 'F':
		for i := 0; i < repeat; i++ {
			o.MaxDirtyPages *= 2
		}
	case 'j':
		o.FillJunk = false
	case 'J':
		o.FillJunk = true
	case 'z':
		o.ZeroFill = false
	case 'Z':
		o.ZeroFill = true
	default:
		return false
	}
	return true
}

// applyWordToken handles the long-form aliases, matched case-insensitively.
func applyWordToken(o *Options, tok string) bool {
	folded := foldCaser.String(tok)
	switch {
	case folded == "junk":
		o.FillJunk = true
	case folded == "nojunk":
		o.FillJunk = false
	case folded == "zero":
		o.ZeroFill = true
	case folded == "nozero":
		o.ZeroFill = false
	case strings.HasPrefix(folded, "arenas:"):
		n, err := strconv.Atoi(folded[len("arenas:"):])
		if err != nil || n <= 0 {
			return false
		}
		o.NumArenas = n
	default:
		return false
	}
	return true
}
