package entities

import "strings"

// DiseaseKey identifies a disease the image analyzer can report.
type DiseaseKey int

const (
	Healthy DiseaseKey = iota
	WheatBrownRust
	TomatoEarlyBlight
	RiceBlast
	PotatoLateBlight
)

// KnownDiseases lists every key, healthy included, in table order.
var KnownDiseases = []DiseaseKey{Healthy, WheatBrownRust, TomatoEarlyBlight, RiceBlast, PotatoLateBlight}

// DiseaseInfo is the static reference record for a disease.
type DiseaseInfo struct {
	Name        string `json:"name"`
	Pesticide   string `json:"pesticide"`
	Dosage      string `json:"dosage"`
	Description string `json:"description"`
}

func (k DiseaseKey) String() string {
	switch k {
	case WheatBrownRust:
		return "wheat_brown_rust"
	case TomatoEarlyBlight:
		return "tomato_early_blight"
	case RiceBlast:
		return "rice_blast"
	case PotatoLateBlight:
		return "potato_late_blight"
	default:
		return "healthy"
	}
}

// MarshalText makes keys travel as their wire names in JSON.
func (k DiseaseKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText never fails: unknown names become Healthy.
func (k *DiseaseKey) UnmarshalText(b []byte) error {
	*k, _ = ParseDiseaseKey(string(b))
	return nil
}

// ParseDiseaseKey maps a wire name to its key. Unknown names resolve to
// Healthy and ok=false, so a classifier that cannot identify a disease
// still yields a reportable result.
func ParseDiseaseKey(s string) (key DiseaseKey, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "healthy":
		return Healthy, true
	case "wheat_brown_rust":
		return WheatBrownRust, true
	case "tomato_early_blight":
		return TomatoEarlyBlight, true
	case "rice_blast":
		return RiceBlast, true
	case "potato_late_blight":
		return PotatoLateBlight, true
	default:
		return Healthy, false
	}
}

// Info returns the reference record for the key.
func (k DiseaseKey) Info() DiseaseInfo {
	switch k {
	case WheatBrownRust:
		return DiseaseInfo{
			Name:        "Wheat Brown Rust",
			Pesticide:   "Propiconazole 25% EC",
			Dosage:      "1ml per liter of water",
			Description: "Fungal disease causing brown pustules on leaves",
		}
	case TomatoEarlyBlight:
		return DiseaseInfo{
			Name:        "Tomato Early Blight",
			Pesticide:   "Mancozeb 75% WP",
			Dosage:      "2g per liter of water",
			Description: "Alternaria solani causing concentric rings on leaves",
		}
	case RiceBlast:
		return DiseaseInfo{
			Name:        "Rice Blast",
			Pesticide:   "Tricyclazole 75% WP",
			Dosage:      "1g per liter of water",
			Description: "Pyricularia oryzae causing diamond-shaped lesions",
		}
	case PotatoLateBlight:
		return DiseaseInfo{
			Name:        "Potato Late Blight",
			Pesticide:   "Metalaxyl 8% + Mancozeb 64% WP",
			Dosage:      "2.5g per liter of water",
			Description: "Phytophthora infestans causing dark lesions",
		}
	default:
		return DiseaseInfo{
			Name:        "Healthy Plant",
			Pesticide:   "None required",
			Dosage:      "N/A",
			Description: "No disease detected",
		}
	}
}

// DiseaseAssessment is what the external analyzer produced for one image.
type DiseaseAssessment struct {
	Disease        DiseaseKey `json:"disease_key"`
	Confidence     float64    `json:"confidence"`      // 0..1
	InfectionLevel float64    `json:"infection_level"` // % of leaf area affected
}
