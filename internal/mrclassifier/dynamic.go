package mrclassifier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// InferDynamicGroups runs stage 4.5.4 over rows of any number of studies,
// partitioned by StudyInstanceUID, assigning DynamicGroup/DynamicPhase to
// members of any fingerprint that repeats more than once within a study.
func InferDynamicGroups(rows []*Row, cfg *Config) {
	byStudy := map[string][]*Row{}
	for _, r := range rows {
		byStudy[r.StudyInstanceUID] = append(byStudy[r.StudyInstanceUID], r)
	}

	excluded := map[string]bool{}
	for _, c := range cfg.Dynamic.ExcludeSequenceClasses {
		excluded[c] = true
	}

	for _, studyRows := range byStudy {
		inferDynamicGroupsForStudy(studyRows, excluded)
	}
}

func inferDynamicGroupsForStudy(rows []*Row, excluded map[string]bool) {
	byFingerprint := map[string][]*Row{}
	for _, r := range rows {
		if excluded[baseSequenceClass(r.SequenceClass)] {
			continue
		}
		fp := fingerprint(r)
		byFingerprint[fp] = append(byFingerprint[fp], r)
	}

	groupNum := 0
	for _, members := range byFingerprint {
		if len(members) <= 1 {
			continue
		}
		groupNum++
		groupID := fmt.Sprintf("group_%d", groupNum)

		sort.Slice(members, func(i, j int) bool { return members[i].SeriesTime < members[j].SeriesTime })
		for i, m := range members {
			m.DynamicGroup = groupID
			if i == 0 {
				m.DynamicPhase = "PRE"
			} else {
				m.DynamicPhase = fmt.Sprintf("POST_%d", i)
			}
		}
	}
}

func baseSequenceClass(class string) string {
	for _, prefix := range []string{"DWI", "DTI", "ADC", "FA", "MRS", "PWI", "ASL", "LOCALIZER"} {
		if strings.HasPrefix(class, prefix) {
			return prefix
		}
	}
	return class
}

func fingerprint(r *Row) string {
	parts := []string{
		roundedOrNA(r.ImagePositionPatient, 2),
		roundedOrNA(r.ImageOrientationPatient, 2),
		naIfEmpty(r.SequenceClass),
		numOrNA(r.SliceThickness),
		numOrNA(r.TR),
		numOrNA(r.TE),
		numOrNA(r.FlipAngle),
	}
	return strings.Join(parts, "|")
}

func naIfEmpty(s string) string {
	if s == "" {
		return "NA"
	}
	return s
}

func roundedOrNA(listStr string, decimals int) string {
	nums, ok := parseFloatList(listStr)
	if !ok {
		return "NA"
	}
	parts := make([]string, len(nums))
	scale := 1.0
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	for i, v := range nums {
		rounded := float64(int(v*scale+0.5)) / scale
		parts[i] = fmt.Sprintf("%g", rounded)
	}
	return strings.Join(parts, ",")
}

func numOrNA(v float64) string {
	if v == 0 {
		return "NA"
	}
	return fmt.Sprintf("%.2f", v)
}

// PropagateEnhancement runs stage 4.5.5: for rows with an empty
// DynamicPhase whose SequenceClass contains "T1" and whose SeriesTime is
// after the latest contrast-enhanced row in the study, mark them
// POST_PROPAGATED.
func PropagateEnhancement(rows []*Row, cfg *Config) {
	byStudy := map[string][]*Row{}
	for _, r := range rows {
		byStudy[r.StudyInstanceUID] = append(byStudy[r.StudyInstanceUID], r)
	}

	t1Re := regexp.MustCompile(cfg.Propagate.T1Contains)
	for _, studyRows := range byStudy {
		latest := ""
		for _, r := range studyRows {
			if r.IsContrastEnhanced && r.SeriesTime > latest {
				latest = r.SeriesTime
			}
		}
		if latest == "" {
			continue
		}
		for _, r := range studyRows {
			if r.DynamicPhase == "" && t1Re.MatchString(r.SequenceClass) && r.SeriesTime > latest {
				r.DynamicPhase = cfg.Propagate.PropagatedPhase
				r.IsContrastEnhanced = true
			}
		}
	}
}

// RecomputeContrastEnhanced implements the dynamic-group-aware
// recomputation of IsContrastEnhanced from spec.md §4.5.4 step 4.
func RecomputeContrastEnhanced(rows []*Row, cfg *Config) {
	contrastRe := regexp.MustCompile(cfg.Dynamic.ContrastProtocolRegex)
	agentExcludeRe := regexp.MustCompile(cfg.Dynamic.ContrastAgentExcludeRegex)
	seqExcludeRe := regexp.MustCompile(cfg.Dynamic.ExcludeSequenceRegex)

	for _, r := range rows {
		if r.DynamicGroup == "" {
			continue
		}
		phaseIsPost := strings.HasPrefix(r.DynamicPhase, "POST")
		protocolMatches := contrastRe.MatchString(r.ProtocolNameLower)
		agentNonNull := r.ContrastBolusAgent != "" && !agentExcludeRe.MatchString(strings.ToLower(r.ContrastBolusAgent))
		sequenceExcluded := seqExcludeRe.MatchString(r.SequenceClass)

		r.IsContrastEnhanced = (phaseIsPost || protocolMatches) && agentNonNull && !sequenceExcluded
	}
}
