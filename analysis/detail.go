package analysis

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/ChristianF88/searchviz/ingestor"
)

// MaxNogoodText is how many characters of a nogood string Describe shows.
const MaxNogoodText = 150

// Describe renders the one line summary and nogood text shown for a node.
func Describe(rec *ingestor.Record) string {
	min, rng := "-", "-"
	if rec.ObjDomain != nil {
		min = formatFloat(rec.ObjDomain.Min)
		rng = formatFloat(rec.ObjDomain.Range)
	}
	text := fmt.Sprintf("node %d: objMin(range): %s(%s). Label: %s", rec.ID, min, rng, rec.Label)

	nogood := rec.NogoodString
	if utf8.RuneCountInString(nogood) > MaxNogoodText {
		nogood = fmt.Sprintf("%s... (nogoodStringLength: %s)", string([]rune(nogood)[:MaxNogoodText]), formatFloat(rec.NogoodStringLength))
	}
	if nogood != "" {
		text += "\n" + nogood
	}
	return text
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NA"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
