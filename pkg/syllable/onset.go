package syllable

import "github.com/MrWong99/phonalign/pkg/phoneme"

// validOnsets lists the English onset clusters accepted regardless of their
// sonority profile. Keys are symbols joined by spaces.
var validOnsets = map[string]bool{
	"p l": true, "p r": true, "p j": true,
	"b l": true, "b r": true, "b j": true,
	"t r": true, "t w": true,
	"d r": true, "d w": true,
	"k l": true, "k r": true, "k w": true, "k j": true,
	"ɡ l": true, "ɡ r": true, "ɡ w": true,
	"f l": true, "f r": true, "f j": true,
	"θ r": true, "θ w": true, "ʃ r": true,
	"v j": true, "m j": true, "n j": true, "h j": true,
	"s p": true, "s t": true, "s k": true, "s m": true, "s n": true, "s l": true, "s w": true,
	"s p l": true, "s p r": true, "s t r": true, "s k r": true, "s k w": true,
	"s p j": true, "s t j": true, "s k j": true,
}

// maxOnsetLen bounds onset clusters; English onsets never exceed three.
const maxOnsetLen = 3

// validOnset reports whether cluster may open a syllable.
func validOnset(cluster []phoneme.Token) bool {
	if len(cluster) == 0 {
		return true
	}
	if len(cluster) > maxOnsetLen {
		return false
	}
	for _, t := range cluster {
		if !t.IsConsonant() {
			return false
		}
	}
	if len(cluster) == 1 {
		return cluster[0].Symbol != "ŋ"
	}
	if validOnsets[phoneme.Join(cluster)] {
		return true
	}
	// /s/ + stop clusters fall in sonority; English allows them anyway, so
	// an /s/-initial cluster only needs a valid remainder.
	if cluster[0].Symbol == "s" {
		return validOnset(cluster[1:])
	}
	return risingSonority(cluster)
}

func risingSonority(cluster []phoneme.Token) bool {
	for i := 1; i < len(cluster); i++ {
		if cluster[i].Sonority <= cluster[i-1].Sonority {
			return false
		}
	}
	return true
}

// ambisyllabic lists the consonants that, alone between two vowels, open the
// following syllable.
var ambisyllabic = map[string]bool{"t": true, "d": true, "s": true, "z": true, "n": true}
