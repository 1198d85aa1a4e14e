package domain

// Match is a successful catalog resolution: the matched entry name and the
// similarity score that selected it. A nil *Match means no entry cleared the
// confidence threshold.
type Match struct {
	Name  string
	Score float64
}
