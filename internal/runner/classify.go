package runner

import "strings"

// Strategy selects how source reaches the Node.js runtime.
type Strategy int

const (
	// StrategyModule pipes source to the runtime as an ES module.
	StrategyModule Strategy = iota
	// StrategyCommonJS writes source to a temp .cjs file and runs that.
	StrategyCommonJS
)

func (s Strategy) String() string {
	if s == StrategyCommonJS {
		return "commonjs"
	}
	return "module"
}

var commonJSMarkers = []string{
	"require(",
	"module.exports",
	"__dirname",
	"__filename",
	"exports.",
}

// Classify picks the execution strategy for a piece of source. The scan is
// purely syntactic: a marker inside a comment or string literal still counts.
func Classify(code string) Strategy {
	for _, m := range commonJSMarkers {
		if strings.Contains(code, m) {
			return StrategyCommonJS
		}
	}
	return StrategyModule
}
