// Package mrclassifier implements the MR Sequence Classifier (spec.md
// §4.5): five ordered stages that enrich a metadata row set with sequence
// labels, dynamic-group/phase assignment, and contrast-enhancement
// propagation. No original_source file covers MR sequence
// classification, so the rule hierarchy is implemented directly from
// spec.md's algorithmic prose, re-expressed as ordered predicate chains
// in the teacher's style of small config-driven classifiers
// (internal/config loading in OtchereDev-ris-dicom-connector).
package mrclassifier

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the MR classifier configuration document (spec.md §6).
type Config struct {
	Orientation struct {
		ObliqueDominanceRatio float64             `json:"oblique_dominance_ratio"`
		FallbackKeywords      map[string][]string `json:"fallback_keywords"`
	} `json:"orientation"`

	FatSuppression struct {
		IRToken            string   `json:"ir_token"`
		StirTIMin          float64  `json:"stir_ti_min"`
		StirTIMax          float64  `json:"stir_ti_max"`
		DixonWaterTokens   []string `json:"dixon_water_tokens"`
		ScanOptionsFSToken string   `json:"scan_options_fs_token"`
		ProtocolKeywords   []string `json:"protocol_keywords"`
	} `json:"fat_suppression"`

	AtomicFeatures struct {
		ContrastProtocolRegex       string `json:"contrast_protocol_regex"`
		MotionCorrectionProtocolRegex string `json:"motion_correction_protocol_regex"`
	} `json:"atomic_features"`

	SubtypeSuffix struct {
		WaterTokens         []string `json:"water_tokens"`
		FatTokens           []string `json:"fat_tokens"`
		InphaseTokens       []string `json:"inphase_tokens"`
		OutphaseTokens      []string `json:"outphase_tokens"`
		T2StarEchoMarker    string   `json:"t2_star_echo_marker"`
		T2StarEchoSplitToken string  `json:"t2_star_echo_split_token"`
	} `json:"subtype_suffix"`

	Classification struct {
		RuleA map[string]struct {
			ProtocolKeywords        []string `json:"protocol_keywords"`
			SeriesDescriptionKeywords []string `json:"series_description_keywords"`
			RefinedImageType        string   `json:"refinedImageType"`
		} `json:"ruleA"`

		DWIBValueMin float64 `json:"dwi_b_value_min"`

		FMRI struct {
			ScanSeqToken     string   `json:"scan_seq_token"`
			ProtocolKeywords []string `json:"protocol_keywords"`
			Class            string   `json:"class"`
		} `json:"fmri"`

		SequenceFamily struct {
			GreToken               string   `json:"gre_token"`
			SeToken                string   `json:"se_token"`
			SteadyStateSeqVariantToken string `json:"steady_state_seq_variant_token"`
			SpoiledSeqVariantToken string   `json:"spoiled_seq_variant_token"`
			SingleShotProtocolKeywords []string `json:"single_shot_protocol_keywords"`
			SingleShotETLMin       float64  `json:"single_shot_etl_min"`
		} `json:"sequence_family"`

		MotionCorrection struct {
			ProtocolKeywords []string `json:"protocol_keywords"`
			Suffix           string   `json:"suffix"`
		} `json:"motion_correction"`

		Fallback struct {
			TSETokens               []string `json:"tse_tokens"`
			SEToken                 string   `json:"se_token"`
			TSEDarkFluidToFlair     bool     `json:"tse_dark_fluid_to_flair"`
			MPRIsoTokens            []string `json:"mpr_iso_tokens"`
			RequiresDimensionForFlash3D bool `json:"requires_dimension_for_flash3d"`
		} `json:"fallback"`
	} `json:"classification"`

	Thresholds struct {
		FieldStrength map[string]FieldStrengthThresholds `json:"field_strength"`
	} `json:"thresholds"`

	Dynamic struct {
		NumericCols             []string `json:"numeric_cols"`
		SpatialCols             []string `json:"spatial_cols"`
		ExcludeSequenceClasses  []string `json:"exclude_sequence_classes"`
		FingerprintCols         []string `json:"fingerprint_cols"`
		ListRoundDecimals       int      `json:"list_round_decimals"`
		NumericRoundDecimals    int      `json:"numeric_round_decimals"`
		ContrastProtocolRegex   string   `json:"contrast_protocol_regex"`
		ContrastAgentExcludeRegex string `json:"contrast_agent_exclude_regex"`
		ExcludeSequenceRegex    string   `json:"exclude_sequence_regex"`
	} `json:"dynamic"`

	Propagate struct {
		T1Contains      string `json:"t1_contains"`
		PropagatedPhase string `json:"propagated_phase"`
	} `json:"propagate"`
}

// FieldStrengthThresholds holds the TR/TE/TI cutoffs for one field-strength
// bucket (spec.md §6 thresholds.field_strength.<bucket>).
type FieldStrengthThresholds struct {
	FlairTIMin float64 `json:"flair_ti_min"`
	StirTIMax  float64 `json:"stir_ti_max"`
	T2TEMin    float64 `json:"t2_te_min"`
	T2TRMin    float64 `json:"t2_tr_min"`
	T1TRMax    float64 `json:"t1_tr_max"`
	T1TEMax    float64 `json:"t1_te_max"`
	PDTEMax    float64 `json:"pd_te_max"`
}

// LoadConfig reads the classifier's JSON config document from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mrclassifier: read config %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("mrclassifier: parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// DefaultConfig returns the built-in defaults named throughout spec.md
// §4.5, used when no configuration file is supplied.
func DefaultConfig() *Config {
	var cfg Config
	cfg.Orientation.ObliqueDominanceRatio = 0.9
	cfg.Orientation.FallbackKeywords = map[string][]string{
		"SAG": {"sag"},
		"COR": {"cor"},
		"AX":  {"ax", "tra", "axial"},
	}

	cfg.FatSuppression.IRToken = "IR"
	cfg.FatSuppression.StirTIMin = 100
	cfg.FatSuppression.StirTIMax = 250
	cfg.FatSuppression.DixonWaterTokens = []string{"W", "WATER"}
	cfg.FatSuppression.ScanOptionsFSToken = "FS"
	cfg.FatSuppression.ProtocolKeywords = []string{"stir", "fatsat", "fs"}

	cfg.AtomicFeatures.ContrastProtocolRegex = `\+c|post|gd|enh|contrast|增强|dyn`
	cfg.AtomicFeatures.MotionCorrectionProtocolRegex = `propeller|blade|radial|star`

	cfg.SubtypeSuffix.WaterTokens = []string{"water", "_w"}
	cfg.SubtypeSuffix.FatTokens = []string{"fat", "_f"}
	cfg.SubtypeSuffix.InphaseTokens = []string{"in phase", "inphase", "ip"}
	cfg.SubtypeSuffix.OutphaseTokens = []string{"out phase", "outphase", "op"}
	cfg.SubtypeSuffix.T2StarEchoMarker = "e"
	cfg.SubtypeSuffix.T2StarEchoSplitToken = "_"

	cfg.Classification.DWIBValueMin = 50
	cfg.Classification.FMRI.ScanSeqToken = "ep"
	cfg.Classification.FMRI.ProtocolKeywords = []string{"fmri", "bold"}
	cfg.Classification.FMRI.Class = "fMRI_BOLD"

	cfg.Classification.SequenceFamily.GreToken = "gr"
	cfg.Classification.SequenceFamily.SeToken = "se"
	cfg.Classification.SequenceFamily.SteadyStateSeqVariantToken = "ss"
	cfg.Classification.SequenceFamily.SpoiledSeqVariantToken = "sp"
	cfg.Classification.SequenceFamily.SingleShotProtocolKeywords = []string{"haste", "ssfse"}
	cfg.Classification.SequenceFamily.SingleShotETLMin = 128

	cfg.Classification.MotionCorrection.ProtocolKeywords = []string{"propeller", "blade", "radial", "star"}
	cfg.Classification.MotionCorrection.Suffix = "_MC"

	cfg.Classification.Fallback.TSETokens = []string{"tse"}
	cfg.Classification.Fallback.SEToken = "se"
	cfg.Classification.Fallback.TSEDarkFluidToFlair = true
	cfg.Classification.Fallback.MPRIsoTokens = []string{"mpr", "iso"}
	cfg.Classification.Fallback.RequiresDimensionForFlash3D = true

	def := FieldStrengthThresholds{
		FlairTIMin: 2000, StirTIMax: 250, T2TEMin: 80,
		T2TRMin: 2000, T1TRMax: 800, T1TEMax: 30, PDTEMax: 30,
	}
	cfg.Thresholds.FieldStrength = map[string]FieldStrengthThresholds{
		"Low-Field": def, "1.5T": def, "3.0T": def, "High-Field": def, "default": def,
	}

	cfg.Dynamic.NumericCols = []string{"SliceThickness", "TR", "TE", "FlipAngle"}
	cfg.Dynamic.SpatialCols = []string{"ImagePositionPatient", "ImageOrientationPatient"}
	cfg.Dynamic.ExcludeSequenceClasses = []string{"DWI", "DTI", "ADC", "FA", "MRS", "PWI", "ASL", "LOCALIZER"}
	cfg.Dynamic.FingerprintCols = []string{"ImagePositionPatient", "ImageOrientationPatient", "sequenceClass", "SliceThickness", "TR", "TE", "FlipAngle"}
	cfg.Dynamic.ListRoundDecimals = 2
	cfg.Dynamic.NumericRoundDecimals = 2
	cfg.Dynamic.ContrastProtocolRegex = cfg.AtomicFeatures.ContrastProtocolRegex
	cfg.Dynamic.ContrastAgentExcludeRegex = "no"
	cfg.Dynamic.ExcludeSequenceRegex = "DWI|T2|LOCALIZER"

	cfg.Propagate.T1Contains = "T1"
	cfg.Propagate.PropagatedPhase = "POST_PROPAGATED"

	return &cfg
}
