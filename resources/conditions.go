package resources

import metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

// ConditionsEqual reports whether two condition slices are semantically
// equivalent: same set of types, each with matching Status/Reason/Message.
// Order does not matter, and LastTransitionTime is deliberately ignored so
// a controller can detect a true no-op status update and skip bumping
// resourceVersion for it.
func ConditionsEqual(a, b []metav1.Condition) bool {
	lenA, lenB := len(a), len(b)
	if lenA == 0 || lenB == 0 {
		if lenA == 0 && lenB == 0 {
			return true
		}
		// An empty condition set is not the same as a set of all-Unknown
		// conditions: the latter means the controller has observed and
		// initialized the type but not yet reconciled it.
		if lenA == 0 && allConditionsUnknown(b) {
			return false
		}
		if lenB == 0 && allConditionsUnknown(a) {
			return false
		}
		return false
	}

	mapA := conditionsToMap(a)
	mapB := conditionsToMap(b)
	if len(mapA) != len(mapB) {
		return false
	}
	for condType, condA := range mapA {
		condB, ok := mapB[condType]
		if !ok {
			return false
		}
		if condA.Status != condB.Status || condA.Reason != condB.Reason || condA.Message != condB.Message {
			return false
		}
	}
	return true
}

func conditionsToMap(conditions []metav1.Condition) map[string]metav1.Condition {
	m := make(map[string]metav1.Condition, len(conditions))
	for _, c := range conditions {
		m[c.Type] = c
	}
	return m
}

func allConditionsUnknown(conditions []metav1.Condition) bool {
	if len(conditions) == 0 {
		return true
	}
	for _, c := range conditions {
		if c.Status != metav1.ConditionUnknown {
			return false
		}
	}
	return true
}

// SetCondition inserts or updates the condition matching newCond.Type in
// place, bumping LastTransitionTime only when Status actually changes —
// mirroring the teacher's "only flip the clock on a real transition" rule
// for CRD status conditions.
func SetCondition(conditions []metav1.Condition, newCond metav1.Condition) []metav1.Condition {
	for i, c := range conditions {
		if c.Type != newCond.Type {
			continue
		}
		if c.Status == newCond.Status {
			newCond.LastTransitionTime = c.LastTransitionTime
		}
		conditions[i] = newCond
		return conditions
	}
	return append(conditions, newCond)
}
