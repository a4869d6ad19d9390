package mrclassifier

import "strings"

// ruleAOrder is the fixed priority order for Rule A keyword matching
// (spec.md §4.5.2): "Match protocol-name keyword sets in this order".
var ruleAOrder = []string{
	"LOCALIZER", "T1_MAP", "T2_MAP", "ADC", "FA_MAP",
	"SUBTRACTION", "MRA", "SWI", "PWI", "MRS",
}

// Classify runs stages 4.5.2 and 4.5.3 over every row, setting
// r.SequenceClass (and r.SequenceFamily as a side effect of Rule B).
func Classify(rows []*Row, cfg *Config) {
	for _, r := range rows {
		label := ruleA(r, cfg)
		if label == "" {
			label = ruleB(r, cfg)
		}
		if label == "" || label == "UNKNOWN" {
			label = ruleC(r, cfg)
		}
		if label == "" {
			label = "UNKNOWN"
		}
		if label == "UNKNOWN" {
			r.SequenceClass = label
		} else {
			r.SequenceClass = label + suffixFor(r, cfg)
		}
	}
}

func ruleA(r *Row, cfg *Config) string {
	for _, label := range ruleAOrder {
		rule, ok := cfg.Classification.RuleA[label]
		if !ok {
			continue
		}
		for _, kw := range rule.ProtocolKeywords {
			if strings.Contains(r.ProtocolNameLower, strings.ToLower(kw)) {
				return label
			}
		}
	}

	descLower := strings.ToLower(r.SeriesDescription)
	if breath, ok := cfg.Classification.RuleA["BREATH MOVEMENT"]; ok {
		for _, kw := range breath.SeriesDescriptionKeywords {
			if strings.Contains(descLower, strings.ToLower(kw)) {
				return "BREATH MOVEMENT"
			}
		}
	} else if strings.Contains(descLower, "resp") {
		return "BREATH MOVEMENT"
	}
	if mip, ok := cfg.Classification.RuleA["MIP"]; ok {
		for _, kw := range mip.SeriesDescriptionKeywords {
			if strings.Contains(descLower, strings.ToLower(kw)) {
				return "MIP"
			}
		}
	} else if strings.Contains(descLower, "mip") {
		return "MIP"
	}
	return ""
}

func ruleB(r *Row, cfg *Config) string {
	c := cfg.Classification

	if r.HasBValue && r.BValue > c.DWIBValueMin {
		if strings.Contains(r.ProtocolNameLower, "dti") {
			return "DTI"
		}
		return "DWI"
	}

	scanSeqLower := strings.ToLower(r.ScanningSequence)
	if strings.Contains(scanSeqLower, c.FMRI.ScanSeqToken) {
		for _, kw := range c.FMRI.ProtocolKeywords {
			if strings.Contains(r.ProtocolNameLower, kw) {
				return c.FMRI.Class
			}
		}
	}

	th := fieldStrengthThresholds(cfg, r.StandardFieldStrength)

	if r.HasInversionTime && r.InversionTime >= th.FlairTIMin {
		return "T2_FLAIR"
	}
	if r.HasInversionTime && r.InversionTime >= cfg.FatSuppression.StirTIMin && r.InversionTime <= th.StirTIMax {
		return "T2_STIR"
	}

	family := sequenceFamily(r, cfg)
	r.SequenceFamily = family

	if family == "SE_SingleShot" {
		return "T2_SE_SingleShot"
	}
	switch {
	case r.TE > th.T2TEMin:
		return "T2_" + family
	case r.TR < th.T1TRMax && r.TE < th.T1TEMax:
		return "T1_" + family
	case r.TR > th.T2TRMin && r.TE < th.PDTEMax && strings.Contains(r.ProtocolNameLower, "pd"):
		return "PD_" + family
	}
	return ""
}

func sequenceFamily(r *Row, cfg *Config) string {
	c := cfg.Classification.SequenceFamily
	scanSeqLower := strings.ToLower(r.ScanningSequence)
	seqVariantLower := strings.ToLower(r.SequenceVariant)

	if strings.Contains(scanSeqLower, c.GreToken) {
		switch {
		case strings.Contains(seqVariantLower, c.SteadyStateSeqVariantToken):
			return "GRE_STEADY_STATE"
		case strings.Contains(seqVariantLower, c.SpoiledSeqVariantToken):
			return "GRE_SPOILED"
		default:
			return "GRE"
		}
	}

	if strings.Contains(scanSeqLower, c.SeToken) {
		isSingleShotKeyword := false
		for _, kw := range c.SingleShotProtocolKeywords {
			if strings.Contains(r.ProtocolNameLower, kw) {
				isSingleShotKeyword = true
				break
			}
		}
		if isSingleShotKeyword || (r.HasETL && r.ETL > c.SingleShotETLMin) {
			return "SE_SingleShot"
		}
		if r.HasETL && r.ETL > 1 {
			return "TSE"
		}
		return "SE"
	}
	return "GRE"
}

func fieldStrengthThresholds(cfg *Config, bucket string) FieldStrengthThresholds {
	if th, ok := cfg.Thresholds.FieldStrength[bucket]; ok {
		return th
	}
	return cfg.Thresholds.FieldStrength["default"]
}

func ruleC(r *Row, cfg *Config) string {
	c := cfg.Classification.Fallback
	p := r.ProtocolNameLower

	switch {
	case strings.Contains(p, "tse_dark_fluid") && c.TSEDarkFluidToFlair:
		return "T2_FLAIR"
	case strings.Contains(p, "t2"):
		if r.SequenceFamily != "" {
			return "T2_" + r.SequenceFamily
		}
		for _, tok := range c.TSETokens {
			if strings.Contains(p, tok) {
				return "T2_TSE"
			}
		}
		if strings.Contains(p, c.SEToken) {
			return "T2_SE"
		}
		return "T2_NAME_BASED"
	case strings.Contains(p, "t1"):
		hasMPRIso := true
		for _, tok := range c.MPRIsoTokens {
			if !strings.Contains(p, tok) {
				hasMPRIso = false
				break
			}
		}
		if hasMPRIso && (!c.RequiresDimensionForFlash3D || r.StandardDimension == "3D") {
			return "T1_GRE_FLASH3D"
		}
		for _, tok := range c.TSETokens {
			if strings.Contains(p, tok) {
				return "T1_TSE"
			}
		}
		if strings.Contains(p, c.SEToken) {
			return "T1_SE"
		}
		return "T1_NAME_BASED"
	case strings.Contains(p, "pd"):
		if r.SequenceFamily != "" {
			return "PD_" + r.SequenceFamily
		}
		return "PD_GRE"
	case strings.Contains(p, "flair"):
		return "T2_FLAIR"
	case strings.Contains(p, "stir"):
		return "T2_STIR"
	case strings.Contains(p, "dwi") || strings.Contains(p, "diff"):
		return "DWI"
	}
	return ""
}

// suffixFor implements stage 4.5.3: at most one subtype suffix, then an
// optional motion-correction suffix.
func suffixFor(r *Row, cfg *Config) string {
	suf := ""
	t := strings.ToLower(r.ImageType)
	p := r.ProtocolNameLower
	c := cfg.SubtypeSuffix

	switch {
	case containsAny(t, c.WaterTokens) || containsAny(p, c.WaterTokens):
		suf = "_WATER"
	case containsAny(t, c.FatTokens) || containsAny(p, c.FatTokens):
		suf = "_FAT"
	case containsAny(t, c.InphaseTokens) || containsAny(p, c.InphaseTokens):
		suf = "_INPHASE"
	case containsAny(t, c.OutphaseTokens) || containsAny(p, c.OutphaseTokens):
		suf = "_OUTPHASE"
	default:
		if idx := strings.Index(p, c.T2StarEchoMarker); idx >= 0 {
			parts := strings.Split(p[idx:], c.T2StarEchoSplitToken)
			if len(parts) > 0 && len(parts[0]) > len(c.T2StarEchoMarker) {
				suf = "_ECHO" + parts[0][len(c.T2StarEchoMarker):]
			}
		}
	}

	if r.HasMotionCorrection {
		suf += cfg.Classification.MotionCorrection.Suffix
	}
	return suf
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if tok != "" && strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
