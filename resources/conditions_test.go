package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestConditionsEqual(t *testing.T) {
	a := []metav1.Condition{{Type: ConditionAvailable, Status: metav1.ConditionTrue, Reason: "MinimumReplicasAvailable"}}
	b := []metav1.Condition{{Type: ConditionAvailable, Status: metav1.ConditionTrue, Reason: "MinimumReplicasAvailable"}}
	assert.True(t, ConditionsEqual(a, b))

	c := []metav1.Condition{{Type: ConditionAvailable, Status: metav1.ConditionFalse, Reason: "MinimumReplicasAvailable"}}
	assert.False(t, ConditionsEqual(a, c))

	assert.True(t, ConditionsEqual(nil, nil))

	unknown := []metav1.Condition{{Type: ConditionAvailable, Status: metav1.ConditionUnknown}}
	assert.False(t, ConditionsEqual(nil, unknown))
}

func TestSetConditionPreservesTransitionTimeWhenStatusUnchanged(t *testing.T) {
	now := metav1.Now()
	conditions := []metav1.Condition{{Type: ConditionAvailable, Status: metav1.ConditionTrue, LastTransitionTime: now, Reason: "old"}}
	conditions = SetCondition(conditions, metav1.Condition{Type: ConditionAvailable, Status: metav1.ConditionTrue, Reason: "new"})
	assert.Equal(t, now, conditions[0].LastTransitionTime)
	assert.Equal(t, "new", conditions[0].Reason)

	conditions = SetCondition(conditions, metav1.Condition{Type: ConditionAvailable, Status: metav1.ConditionFalse, Reason: "flipped"})
	assert.NotEqual(t, now, conditions[0].LastTransitionTime)
}
