package mrclassifier

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ExtractAtomicFeatures runs stage 4.5.1 over every row in place.
func ExtractAtomicFeatures(rows []*Row, cfg *Config) {
	contrastRe := regexp.MustCompile(cfg.AtomicFeatures.ContrastProtocolRegex)
	motionRe := regexp.MustCompile(cfg.AtomicFeatures.MotionCorrectionProtocolRegex)

	for _, r := range rows {
		r.ProtocolNameLower = strings.ToLower(r.ProtocolName)
		r.ImageTypeLower = strings.ToLower(r.ImageType)

		r.StandardOrientation = classifyOrientation(r, cfg)
		if r.MRAcquisitionType != "" {
			r.StandardDimension = r.MRAcquisitionType
		} else {
			r.StandardDimension = "UNKNOWN"
		}

		r.IsFatSuppressed = isFatSuppressed(r, cfg)
		r.IsContrastEnhanced = contrastRe.MatchString(r.ProtocolNameLower)
		r.HasMotionCorrection = motionRe.MatchString(r.ProtocolNameLower)
		r.RefinedImageType = refinedImageType(r)
		r.StandardFieldStrength = bucketFieldStrength(r)
		r.StandardManufacturer = standardManufacturer(r.Manufacturer)
	}
}

// classifyOrientation implements spec.md §4.5.1's orientation rule:
// ImageOrientationPatient row x col normal, oblique-dominance test, else
// protocol-name keyword fallback.
func classifyOrientation(r *Row, cfg *Config) string {
	nums, ok := parseFloatList(r.ImageOrientationPatient)
	if ok && len(nums) >= 6 {
		row := [3]float64{nums[0], nums[1], nums[2]}
		col := [3]float64{nums[3], nums[4], nums[5]}
		n := cross(row, col)
		normSq := n[0]*n[0] + n[1]*n[1] + n[2]*n[2]

		maxIdx, maxAbs := 0, math.Abs(n[0])
		for i := 1; i < 3; i++ {
			if math.Abs(n[i]) > maxAbs {
				maxAbs = math.Abs(n[i])
				maxIdx = i
			}
		}

		if maxAbs*maxAbs < cfg.Orientation.ObliqueDominanceRatio*normSq {
			return "OBL"
		}
		switch maxIdx {
		case 0:
			return "SAG"
		case 1:
			return "COR"
		default:
			return "AX"
		}
	}

	for label, keywords := range cfg.Orientation.FallbackKeywords {
		for _, kw := range keywords {
			if strings.Contains(r.ProtocolNameLower, kw) {
				return label
			}
		}
	}
	return "UNKNOWN"
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func parseFloatList(s string) ([]float64, bool) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\\' || r == '[' || r == ']'
	})
	var out []float64
	for _, f := range fields {
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, len(out) > 0
}

// isFatSuppressed applies the priority-OR rule from spec.md §4.5.1.
func isFatSuppressed(r *Row, cfg *Config) bool {
	if strings.Contains(r.ScanningSequence, cfg.FatSuppression.IRToken) &&
		r.HasInversionTime && r.InversionTime >= cfg.FatSuppression.StirTIMin && r.InversionTime <= cfg.FatSuppression.StirTIMax {
		return true
	}
	for _, tok := range cfg.FatSuppression.DixonWaterTokens {
		if strings.Contains(strings.ToUpper(r.ImageType), strings.ToUpper(tok)) {
			return true
		}
	}
	if strings.Contains(strings.ToUpper(r.ScanOptions), strings.ToUpper(cfg.FatSuppression.ScanOptionsFSToken)) {
		return true
	}
	for _, kw := range cfg.FatSuppression.ProtocolKeywords {
		if strings.Contains(r.ProtocolNameLower, kw) {
			return true
		}
	}
	return false
}

func refinedImageType(r *Row) string {
	t := r.ImageTypeLower
	switch {
	case strings.Contains(t, "derived") || strings.Contains(t, "secondary"):
		return "DERIVED"
	case strings.Contains(t, "localizer") || strings.Contains(t, "survey") || strings.Contains(t, "scout") ||
		strings.Contains(r.ProtocolNameLower, "localizer") || strings.Contains(r.ProtocolNameLower, "survey") || strings.Contains(r.ProtocolNameLower, "scout"):
		return "LOCALIZER"
	case strings.Contains(t, "original") && strings.Contains(t, "primary"):
		return "ORIGINAL"
	default:
		return "OTHER"
	}
}

func bucketFieldStrength(r *Row) string {
	if !r.HasFieldStrength {
		return "UNKNOWN"
	}
	switch {
	case r.MagneticFieldStrength < 1.0:
		return "Low-Field"
	case r.MagneticFieldStrength < 2.0:
		return "1.5T"
	case r.MagneticFieldStrength < 4.0:
		return "3.0T"
	default:
		return "High-Field"
	}
}

var manufacturerRules = []struct {
	substr string
	label  string
}{
	{"siemens", "Siemens"},
	{"philips", "Philips"},
	{"ge medical", "GE"},
	{"ge healthcare", "GE"},
	{"uih", "UIH"},
	{"united imaging", "UIH"},
	{"anke", "Anke"},
	{"canon", "Canon"},
	{"fujifilm", "Fujifilm"},
	{"hitachi", "Hitachi"},
	{"mindray", "Mindray"},
	{"shimadzu", "Shimadzu"},
}

func standardManufacturer(manufacturer string) string {
	lower := strings.ToLower(manufacturer)
	for _, rule := range manufacturerRules {
		if strings.Contains(lower, rule.substr) {
			return rule.label
		}
	}
	return "Other"
}
