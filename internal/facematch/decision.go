package facematch

// Classify applies the acceptance threshold to a match. A face is Known only
// when an identity was matched with dissimilarity strictly below threshold.
func Classify(result MatchResult, threshold float64) Classification {
	if result.Identity != nil && result.Dissimilarity < threshold {
		return Classification{
			Kind:          KindKnown,
			Identity:      result.Identity,
			Dissimilarity: result.Dissimilarity,
		}
	}
	return Classification{Kind: KindUnknown, Dissimilarity: result.Dissimilarity}
}
