// Package metric computes the perceptual-quality signals the Candidate
// Builder uses to accept or reject an encoded buffer: multi-scale SSIM,
// edge-SSIM, and a banding-risk heuristic (spec §4.3). No existing Go SSIM
// implementation was found anywhere in the retrieved example corpus, so this
// package is built directly from the spec's algorithmic description rather
// than adapted from a teacher file; see DESIGN.md.
package metric

// Result is the outcome of comparing a base frame against a candidate frame.
type Result struct {
	MSSIM       float64 // decision variable, in [0,1]
	EdgeSSIM    float64 // in [0,1]
	BandingRisk float64 // in [0,1]; >= BandingRiskVeto rejects the candidate in smart mode
}

// BandingRiskVeto is the hard-coded threshold above which a candidate is
// rejected in smart mode regardless of its MSSIM (spec §4.3).
const BandingRiskVeto = 0.05
