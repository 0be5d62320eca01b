package flatgo

import "github.com/hupe1980/flatgo/quantization"

// Options configures an index handle. All fields have working defaults;
// adjust them with functional option setters passed to Create, Insert,
// Search and Reorder.
type Options struct {
	// EFConstruction is the beam width used while inserting. Larger values
	// build better graphs at higher construction cost.
	EFConstruction int

	// EFSearch is the beam width used while querying. Search raises it to
	// the requested k when it is smaller.
	EFSearch int

	// NumInitializations is the number of strided entry-point samples taken
	// before each beam search.
	NumInitializations int

	// GorderWindow is the sliding-window size for the Gorder reorder
	// strategy.
	GorderWindow int

	// PQ, when set, must be a trained product quantizer; stored vectors are
	// replaced by their codes.
	PQ *quantization.ProductQuantizer

	// Logger receives operation logs. Defaults to a no-op logger.
	Logger *Logger
}

// DefaultOptions contains the default index configuration.
var DefaultOptions = Options{
	EFConstruction:     128,
	EFSearch:           100,
	NumInitializations: 100,
	GorderWindow:       5,
}

// WithEFConstruction overrides the construction beam width.
func WithEFConstruction(ef int) func(o *Options) {
	return func(o *Options) { o.EFConstruction = ef }
}

// WithEFSearch overrides the search beam width.
func WithEFSearch(ef int) func(o *Options) {
	return func(o *Options) { o.EFSearch = ef }
}

// WithNumInitializations overrides the entry-selection sample count.
func WithNumInitializations(n int) func(o *Options) {
	return func(o *Options) { o.NumInitializations = n }
}

// WithGorderWindow overrides the Gorder sliding-window size.
func WithGorderWindow(w int) func(o *Options) {
	return func(o *Options) { o.GorderWindow = w }
}

// WithPQ stores vectors as codes of the given trained product quantizer.
func WithPQ(pq *quantization.ProductQuantizer) func(o *Options) {
	return func(o *Options) { o.PQ = pq }
}

// WithLogger sets the operation logger.
func WithLogger(l *Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}
