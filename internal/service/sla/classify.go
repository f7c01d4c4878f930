package sla

import "github.com/Shoofai/apimarketplace-sub002/internal/domain"

// Breach describes one SLA dimension that failed its target.
type Breach struct {
	Type     domain.ViolationType
	Severity string
	Actual   float64
	Target   float64
}

// Classify compares window stats against a definition's targets. A nil
// target is vacuously satisfied, as is a latency target with no observed
// latency data. The returned bool is true when every dimension holds.
func Classify(def domain.SLADefinition, stats WindowStats) (bool, []Breach) {
	var breaches []Breach

	if def.UptimeTarget != nil && stats.UptimePercentage < *def.UptimeTarget {
		breaches = append(breaches, Breach{
			Type:     domain.ViolationUptime,
			Severity: uptimeSeverity(stats.UptimePercentage, *def.UptimeTarget),
			Actual:   stats.UptimePercentage,
			Target:   *def.UptimeTarget,
		})
	}
	if def.ErrorRateTarget != nil && stats.ErrorRate > *def.ErrorRateTarget {
		breaches = append(breaches, Breach{
			Type:     domain.ViolationErrorRate,
			Severity: errorRateSeverity(stats.ErrorRate, *def.ErrorRateTarget),
			Actual:   stats.ErrorRate,
			Target:   *def.ErrorRateTarget,
		})
	}
	if def.LatencyP50TargetMS != nil && stats.LatencyP50MS != nil && *stats.LatencyP50MS > *def.LatencyP50TargetMS {
		breaches = append(breaches, Breach{
			Type:     domain.ViolationLatencyP50,
			Severity: domain.SeverityWarning,
			Actual:   *stats.LatencyP50MS,
			Target:   *def.LatencyP50TargetMS,
		})
	}
	if def.LatencyP95TargetMS != nil && stats.LatencyP95MS != nil && *stats.LatencyP95MS > *def.LatencyP95TargetMS {
		breaches = append(breaches, Breach{
			Type:     domain.ViolationLatencyP95,
			Severity: latencyP95Severity(*stats.LatencyP95MS, *def.LatencyP95TargetMS),
			Actual:   *stats.LatencyP95MS,
			Target:   *def.LatencyP95TargetMS,
		})
	}

	return len(breaches) == 0, breaches
}

// Severity rules are asymmetric per dimension. Uptime escalates once the
// observed value drops below 95% of the target, error rate once it exceeds
// twice the target, p95 latency once it exceeds 1.5x the target. Median
// latency misses are never more than a warning.

func uptimeSeverity(actual, target float64) string {
	if actual < target*0.95 {
		return domain.SeverityCritical
	}
	return domain.SeverityWarning
}

func errorRateSeverity(actual, target float64) string {
	if actual > target*2 {
		return domain.SeverityCritical
	}
	return domain.SeverityWarning
}

func latencyP95Severity(actual, target float64) string {
	if actual > target*1.5 {
		return domain.SeverityCritical
	}
	return domain.SeverityWarning
}
