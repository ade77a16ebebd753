package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Vitals captured during a screening encounter. Averages and BMI are
// recomputed server-side; everything else is stored as reported.
type Vitals struct {
	SBP1     *int            `json:"sbp1,omitempty"`
	DBP1     *int            `json:"dbp1,omitempty"`
	SBP2     *int            `json:"sbp2,omitempty"`
	DBP2     *int            `json:"dbp2,omitempty"`
	SBPAvg   *int            `json:"sbp_avg,omitempty"`
	DBPAvg   *int            `json:"dbp_avg,omitempty"`
	HR       *int            `json:"hr,omitempty"`
	SpO2     *int            `json:"spo2,omitempty"`
	Temp     *float64        `json:"temp,omitempty"`
	Weight   *float64        `json:"weight,omitempty"`
	Height   *float64        `json:"height,omitempty"`
	BMI      *float64        `json:"bmi,omitempty"`
	Waist    *float64        `json:"waist,omitempty"`
	Symptoms json.RawMessage `json:"symptoms,omitempty"`
	Risk     json.RawMessage `json:"risk,omitempty"`
	Consent  bool            `json:"consent"`
}

// Tests are point-of-care test results for an encounter.
type Tests struct {
	GlucoseType  *string         `json:"glucose_type,omitempty"` // FASTING/RANDOM
	GlucoseValue *int            `json:"glucose_value,omitempty"`
	Hb           *float64        `json:"hb,omitempty"`
	UrineDip     json.RawMessage `json:"urine_dip,omitempty"`
}

// DerivedResult is the client rules engine's output, stored opaquely.
// The server records it without re-deriving (offline-first, trust-but-verify).
type DerivedResult struct {
	RAG          string          `json:"rag"`
	Flags        json.RawMessage `json:"flags,omitempty"`
	NextStep     *string         `json:"next_step,omitempty"`
	FollowupDate *time.Time      `json:"followup_date,omitempty"`
	DomainScores json.RawMessage `json:"domain_scores,omitempty"`
	OverallScore *int            `json:"overall_score,omitempty"`
}

// ComputeDerivedVitals fills in the server-computed fields.
func (v *Vitals) ComputeDerivedVitals() {
	v.SBPAvg, v.DBPAvg = BPAverage(v.SBP1, v.DBP1, v.SBP2, v.DBP2)
	v.BMI = ComputeBMI(v.Weight, v.Height)
}

// BPAverage averages two blood pressure readings; nil unless both are present.
func BPAverage(sbp1, dbp1, sbp2, dbp2 *int) (*int, *int) {
	if sbp1 == nil || dbp1 == nil || sbp2 == nil || dbp2 == nil {
		return nil, nil
	}
	sbp := int(math.Round(float64(*sbp1+*sbp2) / 2))
	dbp := int(math.Round(float64(*dbp1+*dbp2) / 2))
	return &sbp, &dbp
}

// ComputeBMI returns weight/height² rounded to two decimals, nil if either
// input is missing or height is non-positive.
func ComputeBMI(weight, height *float64) *float64 {
	if weight == nil || height == nil || *weight == 0 || *height <= 0 {
		return nil
	}
	bmi := math.Round(*weight / (*height * *height) * 100) / 100
	return &bmi
}
