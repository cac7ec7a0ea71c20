package vehicle

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genVehicleText builds strings from the letters, accents and separators seen
// in make, model and region names.
func genVehicleText() gopter.Gen {
	alphabet := []string{
		"a", "B", "c", "É", "é", "è", "ô", "Î", "ç", "ë", "â",
		" ", "  ", "-", "_", "'", "1", "9",
	}
	return gen.SliceOfN(12, gen.IntRange(0, len(alphabet)-1)).Map(func(idx []int) string {
		var b strings.Builder
		for _, i := range idx {
			b.WriteString(alphabet[i])
		}
		return b.String()
	})
}

func TestFoldProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("fold is idempotent", prop.ForAll(
		func(s string) bool {
			once := Fold(s)
			return Fold(once) == once
		},
		genVehicleText(),
	))

	properties.Property("folded keys carry no upper case, accents or doubled spaces", prop.ForAll(
		func(s string) bool {
			f := Fold(s)
			return f == strings.ToLower(f) &&
				!strings.ContainsAny(f, "éèôîçëâ-_'") &&
				!strings.Contains(f, "  ") &&
				f == strings.TrimSpace(f)
		},
		genVehicleText(),
	))

	properties.Property("case variants collapse to one key", prop.ForAll(
		func(s string) bool {
			return Fold(strings.ToUpper(s)) == Fold(strings.ToLower(s))
		},
		genVehicleText(),
	))

	properties.TestingRun(t)
}
