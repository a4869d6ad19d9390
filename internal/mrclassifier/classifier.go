package mrclassifier

// Run executes all five stages over rows, in the order spec.md §4.5
// requires ("later stages read columns produced by earlier ones").
// Every parsing/arithmetic hazard inside the stages is contained and
// degrades to UNKNOWN/empty rather than propagating an error, per
// spec.md §7's MR classifier failure policy.
func Run(rows []*Row, cfg *Config) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ExtractAtomicFeatures(rows, cfg)
	Classify(rows, cfg)
	InferDynamicGroups(rows, cfg)
	RecomputeContrastEnhanced(rows, cfg)
	PropagateEnhancement(rows, cfg)
}
