package controllers

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/resources"
)

const deploymentControllerKind = "Deployment"

// lastAppliedConfigAnnotation is skipped when copying a Deployment's
// annotations down onto its ReplicaSets, matching the reference
// controller's annotationsToSkip set (controller/deployment.rs).
const lastAppliedConfigAnnotation = "kubectl.kubernetes.io/last-applied-configuration"

// stepDeployment implements §4.6: claim/disown ReplicaSets against the
// selector, then dispatch through the pause/rollback/scaling-event/rollout
// decision tree in exactly the order the reference controller evaluates it.
func stepDeployment(view *resources.View, local LocalState, now time.Time) (*action.Action, LocalState) {
	allRS := view.ReplicaSets.List()
	for _, d := range view.Deployments.List() {
		if act := reconcileDeployment(view, d, allRS, now); act != nil {
			return act, local
		}
	}
	return action.NoAction, local
}

func reconcileDeployment(view *resources.View, original *resources.Deployment, allRS []*resources.ReplicaSet, now time.Time) *action.Action {
	if selectsEverything(original.Spec.Selector) {
		if original.Status.ObservedGeneration < original.Meta.Generation {
			cp := original.DeepCopyObject().(*resources.Deployment)
			cp.Status.ObservedGeneration = cp.Meta.Generation
			return &action.Action{Kind: action.UpdateDeploymentStatus, Deployment: cp}
		}
		return nil
	}

	owned, disown := claimReplicaSets(original, allRS)
	if disown != nil {
		return disown
	}

	dep := original.DeepCopyObject().(*resources.Deployment)

	if dep.Meta.IsTerminating() {
		return syncStatusOnly(dep, owned, allRS, now)
	}

	if act := checkPausedConditions(dep, now); act != nil {
		return act
	}

	if dep.Spec.Paused {
		return syncDeployment(dep, owned, allRS, now)
	}

	// Rollback is not re-entrant while the underlying replica sets still
	// carry a new revision, so we hold off rolling out until the rollback
	// annotation has been cleared on a later tick.
	if _, has := getRollbackTo(dep); has {
		return rollback(dep, owned, allRS, now)
	}

	scalingEvent, act := isScalingEvent(dep, owned, allRS, now)
	if act != nil {
		return act
	}
	if scalingEvent {
		return syncDeployment(dep, owned, allRS, now)
	}

	if dep.Spec.Strategy.Type == resources.RecreateDeploymentStrategy {
		return rolloutRecreate(view, dep, owned, allRS, now)
	}
	return rolloutRolling(dep, owned, allRS, now)
}

// claimReplicaSets partitions allRS by selector match, disowning any
// non-matching ReplicaSet this Deployment still owns and claiming any
// matching, unowned one. At most one action is proposed per call; the
// settled owned set is returned only once nothing needs claiming.
func claimReplicaSets(dep *resources.Deployment, allRS []*resources.ReplicaSet) (owned []*resources.ReplicaSet, disown *action.Action) {
	sel, err := selectorFor(dep.Spec.Selector)
	if err != nil {
		return nil, nil
	}

	var matching, notOurs []*resources.ReplicaSet
	for _, rs := range allRS {
		if sel.Matches(labels.Set(rs.Meta.Labels)) {
			matching = append(matching, rs)
		} else {
			notOurs = append(notOurs, rs)
		}
	}

	for _, rs := range notOurs {
		for _, ref := range rs.Meta.OwnerReferences {
			if ref.Name == dep.Meta.Name {
				cp := rs.DeepCopyObject().(*resources.ReplicaSet)
				cp.Meta.OwnerReferences = removeOwnerByUID(cp.Meta.OwnerReferences, dep.Meta.UID)
				return nil, &action.Action{Kind: action.UpdateReplicaSet, ReplicaSet: cp}
			}
		}
	}

	for _, rs := range matching {
		if _, hasController := rs.Meta.ControllerRef(); !hasController {
			cp := rs.DeepCopyObject().(*resources.ReplicaSet)
			cp.Meta.SetControllerRef(newControllerRef(&dep.Meta, deploymentControllerKind))
			return nil, &action.Action{Kind: action.UpdateReplicaSet, ReplicaSet: cp}
		}
		if rs.Meta.IsControlledBy(dep.Meta.UID) {
			owned = append(owned, rs)
		}
	}
	return owned, nil
}

func syncStatusOnly(dep *resources.Deployment, owned, allRS []*resources.ReplicaSet, now time.Time) *action.Action {
	newRS, oldRS := getAllReplicaSetsAndSyncRevision(dep, owned, allRS, false, now)
	if newRS.act != nil {
		return newRS.act
	}
	all := append(append([]*resources.ReplicaSet{}, oldRS...))
	if newRS.rs != nil {
		all = append(all, newRS.rs)
	}
	return syncDeploymentStatus(all, newRS.rs, dep, now)
}

// checkPausedConditions maintains the Unknown-status Progressing condition
// a deployment carries while paused/resumed, so a resumed deployment with a
// progress deadline doesn't immediately look timed out. Only meaningful
// when a progress deadline is actually configured.
func checkPausedConditions(dep *resources.Deployment, now time.Time) *action.Action {
	if !dep.HasProgressDeadline() {
		return nil
	}
	cond := getDeploymentCondition(dep.Status.Conditions, resources.ConditionProgressing)
	if cond != nil && cond.Reason == resources.ReasonTimedOut {
		return nil
	}
	pausedExists := cond != nil && cond.Reason == resources.ReasonPausedDeploy

	switch {
	case dep.Spec.Paused && !pausedExists:
		c := newDeploymentCondition(resources.ConditionProgressing, metav1.ConditionUnknown, resources.ReasonPausedDeploy, "Deployment is paused", now)
		dep.Status.Conditions = setDeploymentCondition(dep.Status.Conditions, c)
		return &action.Action{Kind: action.UpdateDeploymentStatus, Deployment: dep}
	case !dep.Spec.Paused && pausedExists:
		c := newDeploymentCondition(resources.ConditionProgressing, metav1.ConditionUnknown, resources.ReasonResumedDeploy, "Deployment is resumed", now)
		dep.Status.Conditions = setDeploymentCondition(dep.Status.Conditions, c)
		return &action.Action{Kind: action.UpdateDeploymentStatus, Deployment: dep}
	default:
		return nil
	}
}

// syncDeployment handles the paused and scaling-event paths: proportional
// scale, then (if paused with no pending rollback) old-ReplicaSet cleanup,
// then a status sync. Never runs during a normal rollout.
func syncDeployment(dep *resources.Deployment, owned, allRS []*resources.ReplicaSet, now time.Time) *action.Action {
	newRS, oldRS := getAllReplicaSetsAndSyncRevision(dep, owned, allRS, false, now)
	if newRS.act != nil {
		return newRS.act
	}

	if act := scaleProportionally(dep, newRS.rs, oldRS); act != nil {
		return act
	}

	if dep.Spec.Paused {
		if _, has := getRollbackTo(dep); !has {
			if act := cleanupDeployment(oldRS, dep); act != nil {
				return act
			}
		}
	}

	all := append(append([]*resources.ReplicaSet{}, oldRS...))
	if newRS.rs != nil {
		all = append(all, newRS.rs)
	}
	return syncDeploymentStatus(all, newRS.rs, dep, now)
}

// replicaSetResult mirrors the reference's ValOrOp<ReplicaSet>: either a
// resolved ReplicaSet, an action that must be returned immediately, or
// (zero value) "no new ReplicaSet and none requested".
type replicaSetResult struct {
	rs  *resources.ReplicaSet
	act *action.Action
}

func getAllReplicaSetsAndSyncRevision(dep *resources.Deployment, owned, allRS []*resources.ReplicaSet, createIfNotExisted bool, now time.Time) (replicaSetResult, []*resources.ReplicaSet) {
	_, allOld := findOldReplicaSets(dep, owned)
	newRS := getNewReplicaSet(dep, owned, allOld, allRS, createIfNotExisted, now)
	return newRS, allOld
}

// findOldReplicaSets returns owned minus the new ReplicaSet as "all old",
// together with the subset of those that still have spec.replicas > 0.
func findOldReplicaSets(dep *resources.Deployment, owned []*resources.ReplicaSet) (required, all []*resources.ReplicaSet) {
	newRS := findNewReplicaSet(dep, owned)
	for _, rs := range owned {
		if newRS != nil && rs.Meta.UID == newRS.Meta.UID {
			continue
		}
		all = append(all, rs)
		if rs.Spec.Replicas > 0 {
			required = append(required, rs)
		}
	}
	return required, all
}

// findNewReplicaSet returns the oldest owned ReplicaSet whose template
// matches dep's, ignoring the pod-template-hash label both carry.
func findNewReplicaSet(dep *resources.Deployment, owned []*resources.ReplicaSet) *resources.ReplicaSet {
	sorted := append([]*resources.ReplicaSet{}, owned...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Meta.CreationTimestamp.Before(&sorted[j].Meta.CreationTimestamp)
	})
	for _, rs := range sorted {
		if equalIgnoreHash(rs.Spec.Template, dep.Spec.Template) {
			return rs
		}
	}
	return nil
}

func equalIgnoreHash(a, b resources.PodTemplateSpec) bool {
	return reflect.DeepEqual(stripHashLabel(a), stripHashLabel(b))
}

func stripHashLabel(t resources.PodTemplateSpec) resources.PodTemplateSpec {
	out := t
	out.Labels = cloneLabels(t.Labels)
	delete(out.Labels, resources.LabelPodTemplateHash)
	return out
}

// getNewReplicaSet resolves (and, if requested, creates) the ReplicaSet
// whose template matches dep, syncing revision annotations and the
// Progressing/FoundNewReplicaSet condition along the way.
func getNewReplicaSet(dep *resources.Deployment, owned, oldRS, allRS []*resources.ReplicaSet, createIfNotExisted bool, now time.Time) replicaSetResult {
	existing := findNewReplicaSet(dep, owned)
	newRevision := maxRevision(oldRS) + 1

	if existing != nil {
		rsCopy := existing.DeepCopyObject().(*resources.ReplicaSet)
		annotationsUpdated := setNewReplicaSetAnnotations(dep, rsCopy, strconv.FormatInt(newRevision, 10), true)
		minReadyNeedsUpdate := rsCopy.Spec.MinReadySeconds != dep.Spec.MinReadySeconds
		if annotationsUpdated || minReadyNeedsUpdate {
			rsCopy.Spec.MinReadySeconds = dep.Spec.MinReadySeconds
			return replicaSetResult{act: &action.Action{Kind: action.UpdateReplicaSet, ReplicaSet: rsCopy}}
		}

		needsUpdate := setDeploymentRevision(dep, rsCopy.Meta.Annotations[resources.AnnotationRevision])

		cond := getDeploymentCondition(dep.Status.Conditions, resources.ConditionProgressing)
		if dep.HasProgressDeadline() && cond == nil {
			message := fmt.Sprintf("Found new replica set %s", rsCopy.Meta.Name)
			c := newDeploymentCondition(resources.ConditionProgressing, metav1.ConditionTrue, resources.ReasonFoundNewRS, message, now)
			dep.Status.Conditions = setDeploymentCondition(dep.Status.Conditions, c)
			needsUpdate = true
		}

		if needsUpdate {
			return replicaSetResult{act: &action.Action{Kind: action.UpdateDeploymentStatus, Deployment: dep}}
		}
		return replicaSetResult{rs: rsCopy}
	}

	if !createIfNotExisted {
		return replicaSetResult{}
	}

	collisionCount := int32(0)
	if dep.Status.CollisionCount != nil {
		collisionCount = *dep.Status.CollisionCount
	}
	hash := ComputeTemplateHash(dep.Spec.Template, collisionCount)

	newTemplate := dep.Spec.Template
	newTemplate.Labels = cloneLabels(dep.Spec.Template.Labels)
	if newTemplate.Labels == nil {
		newTemplate.Labels = map[string]string{}
	}
	newTemplate.Labels[resources.LabelPodTemplateHash] = hash

	newSelector := *dep.Spec.Selector.DeepCopy()
	if newSelector.MatchLabels == nil {
		newSelector.MatchLabels = map[string]string{}
	}
	newSelector.MatchLabels[resources.LabelPodTemplateHash] = hash

	newRS := &resources.ReplicaSet{
		Meta: corev1.Metadata{
			Name:            fmt.Sprintf("%s-%s", dep.Meta.Name, hash),
			Namespace:       dep.Meta.Namespace,
			OwnerReferences: []corev1.OwnerReference{newControllerRef(&dep.Meta, deploymentControllerKind)},
			Labels:          cloneLabels(newTemplate.Labels),
		},
		Spec: resources.ReplicaSetSpec{
			MinReadySeconds: dep.Spec.MinReadySeconds,
			Selector:        newSelector,
			Template:        newTemplate,
		},
	}

	allWithNew := append(append([]*resources.ReplicaSet{}, oldRS...), newRS)
	newRS.Spec.Replicas = newRSNewReplicas(dep, allWithNew, newRS)

	setNewReplicaSetAnnotations(dep, newRS, strconv.FormatInt(newRevision, 10), false)

	collision := false
	for _, rs := range allRS {
		if rs.Meta.Name == newRS.Meta.Name {
			collision = true
			break
		}
	}
	if collision {
		// Different from a real apiserver, which would reject the create
		// with AlreadyExists: we can't get an error code back, so we
		// detect the collision ourselves and retry with a bumped count
		// on the next tick.
		bumpCollisionCount(dep)
		return replicaSetResult{act: &action.Action{Kind: action.UpdateDeploymentStatus, Deployment: dep}}
	}
	return replicaSetResult{act: &action.Action{Kind: action.CreateReplicaSet, ReplicaSet: newRS}}
}

func bumpCollisionCount(dep *resources.Deployment) {
	c := int32(0)
	if dep.Status.CollisionCount != nil {
		c = *dep.Status.CollisionCount
	}
	c++
	dep.Status.CollisionCount = &c
}

func syncDeploymentStatus(all []*resources.ReplicaSet, newRS *resources.ReplicaSet, dep *resources.Deployment, now time.Time) *action.Action {
	newStatus := calculateDeploymentStatus(all, newRS, dep, now)
	if deploymentStatusEqual(dep.Status, newStatus) {
		return nil
	}
	out := dep.DeepCopyObject().(*resources.Deployment)
	out.Status = newStatus
	return &action.Action{Kind: action.UpdateDeploymentStatus, Deployment: out}
}

func calculateDeploymentStatus(all []*resources.ReplicaSet, newRS *resources.ReplicaSet, dep *resources.Deployment, now time.Time) resources.DeploymentStatus {
	available := availableReplicaCountForReplicaSets(all)
	total := actualReplicaCountForReplicaSets(all)
	unavailable := saturatingSub(total, available)

	var updated int32
	if newRS != nil {
		updated = newRS.Status.Replicas
	}

	status := resources.DeploymentStatus{
		ObservedGeneration:  dep.Meta.Generation,
		Replicas:            total,
		UpdatedReplicas:      updated,
		ReadyReplicas:       readyReplicaCountForReplicaSets(all),
		AvailableReplicas:   available,
		UnavailableReplicas: unavailable,
		CollisionCount:      dep.Status.CollisionCount,
		Conditions:          append([]metav1.Condition(nil), dep.Status.Conditions...),
	}

	maxUnavail := maxUnavailable(dep)
	if available >= dep.Spec.Replicas-maxUnavail {
		status.Conditions = setDeploymentCondition(status.Conditions, newDeploymentCondition(
			resources.ConditionAvailable, metav1.ConditionTrue, resources.ReasonMinAvailable,
			"Deployment has minimum availability.", now))
	} else {
		status.Conditions = setDeploymentCondition(status.Conditions, newDeploymentCondition(
			resources.ConditionAvailable, metav1.ConditionFalse, resources.ReasonMinUnavailable,
			"Deployment does not have minimum availability.", now))
	}
	return status
}

// scaleProportionally redistributes replicas across old and new ReplicaSets
// in proportion to their current size, mitigating the risk of a rollout
// racing ahead just because of a scaling event. Runs only for scaling
// events and paused-deployment syncs, never during a normal rollout.
func scaleProportionally(dep *resources.Deployment, newRS *resources.ReplicaSet, oldRS []*resources.ReplicaSet) *action.Action {
	if active := findActiveOrLatest(newRS, oldRS); active != nil {
		if active.Spec.Replicas == dep.Spec.Replicas {
			return nil
		}
		return scaleReplicaSetAndRecordEvent(active, dep.Spec.Replicas, dep)
	}

	if isSaturated(dep, newRS) {
		for _, old := range filterActiveReplicaSets(oldRS) {
			if act := scaleReplicaSetAndRecordEvent(old, 0, dep); act != nil {
				return act
			}
		}
	}

	if !isRollingUpdate(dep) {
		return nil
	}

	all := append(append([]*resources.ReplicaSet{}, oldRS...))
	if newRS != nil {
		all = append(all, newRS)
	}
	all = filterActiveReplicaSets(all)
	allReplicas := replicaCountForReplicaSets(all)

	var allowedSize int32
	if dep.Spec.Replicas > 0 {
		allowedSize = dep.Spec.Replicas + annotationMaxSurge(dep)
	}
	toAdd := allowedSize - allReplicas

	switch {
	case toAdd > 0:
		sort.Slice(all, func(i, j int) bool {
			if all[i].Spec.Replicas == all[j].Spec.Replicas {
				return all[j].Meta.CreationTimestamp.Before(&all[i].Meta.CreationTimestamp)
			}
			return all[i].Spec.Replicas > all[j].Spec.Replicas
		})
	case toAdd < 0:
		sort.Slice(all, func(i, j int) bool {
			if all[i].Spec.Replicas == all[j].Spec.Replicas {
				return all[i].Meta.CreationTimestamp.Before(&all[j].Meta.CreationTimestamp)
			}
			return all[i].Spec.Replicas > all[j].Spec.Replicas
		})
	}

	var added int32
	sizes := make(map[string]int32, len(all))
	for _, rs := range all {
		if toAdd != 0 {
			p := getProportion(rs, dep, toAdd, added)
			var newSize int32
			if p < 0 {
				newSize = saturatingSub(rs.Spec.Replicas, -p)
			} else {
				newSize = rs.Spec.Replicas + p
			}
			sizes[rs.Meta.Name] = newSize
			added += p
		} else {
			sizes[rs.Meta.Name] = rs.Spec.Replicas
		}
	}

	if toAdd != 0 && len(all) > 0 {
		leftover := toAdd - added
		name := all[0].Meta.Name
		if leftover < 0 {
			sizes[name] = saturatingSub(sizes[name], -leftover)
		} else {
			sizes[name] += leftover
		}
	}

	var updated []*resources.ReplicaSet
	for _, rs := range all {
		if act := scaleReplicaSet(rs, sizes[rs.Meta.Name], dep); act != nil {
			updated = append(updated, act.ReplicaSet)
		}
	}
	if len(updated) > 0 {
		return &action.Action{Kind: action.UpdateReplicaSets, ReplicaSets: updated}
	}
	return nil
}

func maxRevision(all []*resources.ReplicaSet) int64 {
	var max int64
	for _, rs := range all {
		if v := revisionAnnotationInt(rs); v > max {
			max = v
		}
	}
	return max
}

// findActiveOrLatest returns the sole active ReplicaSet when at most one
// exists among old+new (the common case outside a rollout); nil when more
// than one is active, signalling "proportionally scale them instead".
func findActiveOrLatest(newRS *resources.ReplicaSet, oldRS []*resources.ReplicaSet) *resources.ReplicaSet {
	if newRS == nil && len(oldRS) == 0 {
		return nil
	}

	sortedOld := append([]*resources.ReplicaSet{}, oldRS...)
	sort.Slice(sortedOld, func(i, j int) bool {
		return sortedOld[i].Meta.CreationTimestamp.Before(&sortedOld[j].Meta.CreationTimestamp)
	})
	for i, j := 0, len(sortedOld)-1; i < j; i, j = i+1, j-1 {
		sortedOld[i], sortedOld[j] = sortedOld[j], sortedOld[i]
	}

	all := append(append([]*resources.ReplicaSet{}, sortedOld...))
	if newRS != nil {
		all = append(all, newRS)
	}
	active := filterActiveReplicaSets(all)

	switch len(active) {
	case 0:
		if newRS != nil {
			return newRS
		}
		if len(sortedOld) > 0 {
			return sortedOld[0]
		}
		return nil
	case 1:
		return active[0]
	default:
		return nil
	}
}

func filterActiveReplicaSets(all []*resources.ReplicaSet) []*resources.ReplicaSet {
	out := make([]*resources.ReplicaSet, 0, len(all))
	for _, rs := range all {
		if rs.Spec.Replicas > 0 {
			out = append(out, rs)
		}
	}
	return out
}

// isSaturated reports whether rs already owns the deployment's full
// desired capacity (every pod available), letting old ReplicaSets scale
// straight to zero instead of proportionally.
func isSaturated(dep *resources.Deployment, rs *resources.ReplicaSet) bool {
	if rs == nil {
		return false
	}
	desired, ok := intAnnotation(rs.Meta.Annotations, resources.AnnotationDesiredReplicas)
	if !ok {
		return false
	}
	return rs.Spec.Replicas == dep.Spec.Replicas &&
		desired == dep.Spec.Replicas &&
		rs.Status.AvailableReplicas == dep.Spec.Replicas
}

func scaleReplicaSetAndRecordEvent(rs *resources.ReplicaSet, newScale int32, dep *resources.Deployment) *action.Action {
	if rs.Spec.Replicas == newScale {
		return nil
	}
	return scaleReplicaSet(rs, newScale, dep)
}

func scaleReplicaSet(rs *resources.ReplicaSet, newScale int32, dep *resources.Deployment) *action.Action {
	maxReplicas := dep.Spec.Replicas + annotationMaxSurge(dep)
	sizeNeedsUpdate := rs.Spec.Replicas != newScale
	annotationsNeedUpdate := replicasAnnotationsNeedUpdate(rs, dep.Spec.Replicas, maxReplicas)
	if !sizeNeedsUpdate && !annotationsNeedUpdate {
		return nil
	}
	cp := rs.DeepCopyObject().(*resources.ReplicaSet)
	cp.Spec.Replicas = newScale
	setReplicasAnnotations(cp, dep.Spec.Replicas, maxReplicas)
	return &action.Action{Kind: action.UpdateReplicaSet, ReplicaSet: cp}
}

func replicasAnnotationsNeedUpdate(rs *resources.ReplicaSet, desiredReplicas, maxReplicas int32) bool {
	if v, ok := intAnnotation(rs.Meta.Annotations, resources.AnnotationDesiredReplicas); !ok || v != desiredReplicas {
		return true
	}
	if v, ok := intAnnotation(rs.Meta.Annotations, resources.AnnotationMaxReplicas); !ok || v != maxReplicas {
		return true
	}
	return false
}

func setReplicasAnnotations(rs *resources.ReplicaSet, desiredReplicas, maxReplicas int32) bool {
	if rs.Meta.Annotations == nil {
		rs.Meta.Annotations = map[string]string{}
	}
	updated := false
	if v := strconv.FormatInt(int64(desiredReplicas), 10); rs.Meta.Annotations[resources.AnnotationDesiredReplicas] != v {
		rs.Meta.Annotations[resources.AnnotationDesiredReplicas] = v
		updated = true
	}
	if v := strconv.FormatInt(int64(maxReplicas), 10); rs.Meta.Annotations[resources.AnnotationMaxReplicas] != v {
		rs.Meta.Annotations[resources.AnnotationMaxReplicas] = v
		updated = true
	}
	return updated
}

// annotationMaxSurge is the reference controller's simplified 0-or-1 surge
// flag used only for the desired/max-replicas annotation bookkeeping — not
// the fully resolved percentage-or-absolute maxSurge a rollout computes
// (see newRSNewReplicas), which this deliberately is not.
func annotationMaxSurge(dep *resources.Deployment) int32 {
	if isRollingUpdate(dep) {
		return 0
	}
	return 1
}

func isRollingUpdate(dep *resources.Deployment) bool {
	return dep.Spec.Strategy.Type != resources.RecreateDeploymentStrategy
}

func setDeploymentRevision(dep *resources.Deployment, newRevision string) bool {
	if dep.Meta.Annotations == nil {
		dep.Meta.Annotations = map[string]string{}
	}
	if dep.Meta.Annotations[resources.AnnotationRevision] == newRevision {
		return false
	}
	dep.Meta.Annotations[resources.AnnotationRevision] = newRevision
	return true
}

// cleanupDeployment retains at most spec.RevisionHistoryLimit old
// ReplicaSets, deleting the least-recent eligible one beyond that budget
// (nil limit means unlimited history, matching a MaxInt32 limit).
func cleanupDeployment(oldRS []*resources.ReplicaSet, dep *resources.Deployment) *action.Action {
	if dep.Spec.RevisionHistoryLimit == nil {
		return nil
	}
	limit := int(*dep.Spec.RevisionHistoryLimit)

	cleanable := make([]*resources.ReplicaSet, 0, len(oldRS))
	for _, rs := range oldRS {
		if !rs.Meta.IsTerminating() {
			cleanable = append(cleanable, rs)
		}
	}

	diff := len(cleanable) - limit
	if diff <= 0 {
		return nil
	}

	sort.Slice(cleanable, func(i, j int) bool {
		return revisionAnnotationInt(cleanable[i]) < revisionAnnotationInt(cleanable[j])
	})

	for _, rs := range cleanable[:diff] {
		if rs.Status.Replicas != 0 || rs.Spec.Replicas != 0 ||
			rs.Meta.Generation > rs.Status.ObservedGeneration || rs.Meta.IsTerminating() {
			continue
		}
		return &action.Action{Kind: action.DeleteReplicaSet, ReplicaSet: rs}
	}
	return nil
}

func availableReplicaCountForReplicaSets(all []*resources.ReplicaSet) int32 {
	var sum int32
	for _, rs := range all {
		sum += rs.Status.AvailableReplicas
	}
	return sum
}

func replicaCountForReplicaSets(all []*resources.ReplicaSet) int32 {
	var sum int32
	for _, rs := range all {
		sum += rs.Spec.Replicas
	}
	return sum
}

func actualReplicaCountForReplicaSets(all []*resources.ReplicaSet) int32 {
	var sum int32
	for _, rs := range all {
		sum += rs.Status.Replicas
	}
	return sum
}

func readyReplicaCountForReplicaSets(all []*resources.ReplicaSet) int32 {
	var sum int32
	for _, rs := range all {
		sum += rs.Status.ReadyReplicas
	}
	return sum
}

// maxUnavailable resolves spec.Strategy.RollingUpdate.MaxUnavailable to an
// absolute count, clamped to spec.Replicas. Zero whenever the strategy
// isn't RollingUpdate or the deployment is scaled to zero — fixed here
// relative to the reference's inverted `is_rolling_update(deployment)`
// guard, which would zero it during every rolling update.
func maxUnavailable(dep *resources.Deployment) int32 {
	if !isRollingUpdate(dep) || dep.Spec.Replicas == 0 {
		return 0
	}
	var mu int32
	if ru := dep.Spec.Strategy.RollingUpdate; ru != nil && ru.MaxUnavailable != nil {
		v, err := intstr.GetScaledValueFromIntOrPercent(ru.MaxUnavailable, int(dep.Spec.Replicas), true)
		if err == nil {
			mu = int32(v)
		}
	}
	if mu > dep.Spec.Replicas {
		return dep.Spec.Replicas
	}
	return mu
}

func newDeploymentCondition(condType string, status metav1.ConditionStatus, reason, message string, now time.Time) metav1.Condition {
	t := metav1.NewTime(now)
	return metav1.Condition{
		Type:               condType,
		Status:             status,
		Reason:             reason,
		Message:            message,
		LastTransitionTime: t,
	}
}

// setDeploymentCondition replaces the condition of the same type. A new
// condition with the same status and reason as the current one leaves the
// slice unchanged (message included); one with the same status but a new
// reason replaces it while keeping the current LastTransitionTime.
func setDeploymentCondition(conditions []metav1.Condition, newCond metav1.Condition) []metav1.Condition {
	current := getDeploymentCondition(conditions, newCond.Type)
	if current != nil {
		if current.Status == newCond.Status && current.Reason == newCond.Reason {
			return conditions
		}
		if current.Status == newCond.Status {
			newCond.LastTransitionTime = current.LastTransitionTime
		}
	}
	out := removeConditionType(conditions, newCond.Type)
	return append(out, newCond)
}

func getDeploymentCondition(conditions []metav1.Condition, condType string) *metav1.Condition {
	for i := range conditions {
		if conditions[i].Type == condType {
			return &conditions[i]
		}
	}
	return nil
}

func deploymentStatusEqual(a, b resources.DeploymentStatus) bool {
	if a.ObservedGeneration != b.ObservedGeneration || a.Replicas != b.Replicas ||
		a.UpdatedReplicas != b.UpdatedReplicas || a.ReadyReplicas != b.ReadyReplicas ||
		a.AvailableReplicas != b.AvailableReplicas || a.UnavailableReplicas != b.UnavailableReplicas {
		return false
	}
	ac, bc := int32(-1), int32(-1)
	if a.CollisionCount != nil {
		ac = *a.CollisionCount
	}
	if b.CollisionCount != nil {
		bc = *b.CollisionCount
	}
	if ac != bc {
		return false
	}
	return resources.ConditionsEqual(a.Conditions, b.Conditions)
}

func getRollbackTo(dep *resources.Deployment) (int64, bool) {
	v, ok := dep.Meta.Annotations[resources.AnnotationDeprecatedRollbackTo]
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func updateDeploymentAndClearRollbackTo(dep *resources.Deployment) *action.Action {
	if dep.Meta.Annotations != nil {
		delete(dep.Meta.Annotations, resources.AnnotationDeprecatedRollbackTo)
	}
	return &action.Action{Kind: action.UpdateDeployment, Deployment: dep}
}

// rollback implements rollback-by-revision-annotation: resolve the target
// revision (falling back to the second-highest revision when the
// annotation is "0"), find the ReplicaSet that served it, and copy its
// template back onto the deployment.
func rollback(dep *resources.Deployment, owned, allRS []*resources.ReplicaSet, now time.Time) *action.Action {
	newRS, oldRS := getAllReplicaSetsAndSyncRevision(dep, owned, allRS, true, now)
	if newRS.act != nil {
		return newRS.act
	}

	all := append(append([]*resources.ReplicaSet{}, oldRS...))
	if newRS.rs != nil {
		all = append(all, newRS.rs)
	}

	rollbackRevision, _ := getRollbackTo(dep)
	if rollbackRevision == 0 {
		rollbackRevision = lastRevision(all)
		if rollbackRevision == 0 {
			return updateDeploymentAndClearRollbackTo(dep)
		}
	}

	for _, rs := range all {
		if revisionAnnotationInt(rs) == rollbackRevision {
			return rollbackToTemplate(dep, rs)
		}
	}
	return updateDeploymentAndClearRollbackTo(dep)
}

// lastRevision returns the second-highest revision annotation among all,
// the revision rollback falls back to when asked for revision 0.
func lastRevision(all []*resources.ReplicaSet) int64 {
	var max, secondMax int64
	for _, rs := range all {
		v := revisionAnnotationInt(rs)
		if v >= max {
			secondMax = max
			max = v
		} else if v > secondMax {
			secondMax = v
		}
	}
	return secondMax
}

// rollbackToTemplate copies rs's template onto dep when they differ
// (fixed relative to the reference's inverted equality check), carrying
// rs's annotations back onto the deployment so a
// subsequent rollout re-derives the same revision history.
func rollbackToTemplate(dep *resources.Deployment, rs *resources.ReplicaSet) *action.Action {
	if !equalIgnoreHash(dep.Spec.Template, rs.Spec.Template) {
		setFromReplicaSetTemplate(dep, rs.Spec.Template)
		setDeploymentAnnotationsTo(dep, rs)
	}
	return updateDeploymentAndClearRollbackTo(dep)
}

func setFromReplicaSetTemplate(dep *resources.Deployment, template resources.PodTemplateSpec) {
	dep.Spec.Template.Labels = cloneLabels(template.Labels)
	dep.Spec.Template.Annotations = cloneLabels(template.Annotations)
	dep.Spec.Template.Containers = append([]resources.Container(nil), template.Containers...)
	dep.Spec.Template.NodeName = template.NodeName
	if dep.Spec.Template.Labels != nil {
		delete(dep.Spec.Template.Labels, resources.LabelPodTemplateHash)
	}
}

func setDeploymentAnnotationsTo(dep *resources.Deployment, rs *resources.ReplicaSet) {
	dep.Meta.Annotations = getSkippedAnnotations(dep.Meta.Annotations)
	for k, v := range rs.Meta.Annotations {
		if !skipCopyAnnotation(k) {
			dep.Meta.Annotations[k] = v
		}
	}
}

func getSkippedAnnotations(m map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range m {
		if skipCopyAnnotation(k) {
			out[k] = v
		}
	}
	return out
}

func skipCopyAnnotation(key string) bool {
	switch key {
	case lastAppliedConfigAnnotation, resources.AnnotationRevision, resources.AnnotationRevisionHistory,
		resources.AnnotationDesiredReplicas, resources.AnnotationMaxReplicas, resources.AnnotationDeprecatedRollbackTo:
		return true
	default:
		return false
	}
}

// newRSNewReplicas computes the new ReplicaSet's target size: the full
// deployment size under Recreate, or a surge-bounded scale-up under
// RollingUpdate (never more than spec.replicas+maxSurge total pods, and
// never more than spec.replicas for the new ReplicaSet itself).
func newRSNewReplicas(dep *resources.Deployment, all []*resources.ReplicaSet, newRS *resources.ReplicaSet) int32 {
	if dep.Spec.Strategy.Type == resources.RecreateDeploymentStrategy {
		return dep.Spec.Replicas
	}

	var maxSurge int32
	if ru := dep.Spec.Strategy.RollingUpdate; ru != nil && ru.MaxSurge != nil {
		v, err := intstr.GetScaledValueFromIntOrPercent(ru.MaxSurge, int(dep.Spec.Replicas), true)
		if err == nil {
			maxSurge = int32(v)
		}
	}
	currentPodCount := replicaCountForReplicaSets(all)
	maxTotalPods := dep.Spec.Replicas + maxSurge
	if currentPodCount >= maxTotalPods {
		return newRS.Spec.Replicas
	}
	scaleUpCount := maxTotalPods - currentPodCount
	if allowed := dep.Spec.Replicas - newRS.Spec.Replicas; scaleUpCount > allowed {
		scaleUpCount = allowed
	}
	return newRS.Spec.Replicas + scaleUpCount
}

// isScalingEvent reports whether the deployment's desired replica count
// has diverged from what its active ReplicaSets were last told to expect,
// the signal that distinguishes a scaling request from a rollout.
func isScalingEvent(dep *resources.Deployment, owned, allRS []*resources.ReplicaSet, now time.Time) (bool, *action.Action) {
	newRS, oldRS := getAllReplicaSetsAndSyncRevision(dep, owned, allRS, false, now)
	if newRS.act != nil {
		return false, newRS.act
	}
	all := append(append([]*resources.ReplicaSet{}, oldRS...))
	if newRS.rs != nil {
		all = append(all, newRS.rs)
	}
	for _, rs := range filterActiveReplicaSets(all) {
		if v, ok := intAnnotation(rs.Meta.Annotations, resources.AnnotationDesiredReplicas); ok && v != dep.Spec.Replicas {
			return true, nil
		}
	}
	return false, nil
}

// rolloutRolling drives the RollingUpdate strategy: scale up the new
// ReplicaSet if allowed, else clean unhealthy replicas and scale down old
// ones, else clean up revision history, else just resync status.
func rolloutRolling(dep *resources.Deployment, owned, allRS []*resources.ReplicaSet, now time.Time) *action.Action {
	newRS, oldRS := getAllReplicaSetsAndSyncRevision(dep, owned, allRS, true, now)
	if newRS.act != nil {
		return newRS.act
	}
	newReplicaSet := newRS.rs
	all := append(append([]*resources.ReplicaSet{}, oldRS...), newReplicaSet)

	if act := reconcileNewReplicaSet(all, newReplicaSet, dep); act != nil {
		return act
	}

	activeOld := filterActiveReplicaSets(oldRS)
	if act := reconcileOldReplicaSets(all, activeOld, newReplicaSet, dep); act != nil {
		return act
	}

	if deploymentComplete(dep, &dep.Status) {
		if act := cleanupDeployment(oldRS, dep); act != nil {
			return act
		}
	}

	return syncRolloutStatus(all, newReplicaSet, dep, now)
}

func reconcileNewReplicaSet(all []*resources.ReplicaSet, newRS *resources.ReplicaSet, dep *resources.Deployment) *action.Action {
	if newRS.Spec.Replicas == dep.Spec.Replicas {
		return nil
	}
	if newRS.Spec.Replicas > dep.Spec.Replicas {
		if act := scaleReplicaSetAndRecordEvent(newRS, dep.Spec.Replicas, dep); act != nil {
			return act
		}
	}
	newCount := newRSNewReplicas(dep, all, newRS)
	return scaleReplicaSetAndRecordEvent(newRS, newCount, dep)
}

func reconcileOldReplicaSets(all, oldActive []*resources.ReplicaSet, newRS *resources.ReplicaSet, dep *resources.Deployment) *action.Action {
	oldPodsCount := replicaCountForReplicaSets(oldActive)
	if oldPodsCount == 0 {
		return nil
	}

	allPodsCount := replicaCountForReplicaSets(all)
	maxUnavail := maxUnavailable(dep)
	minAvailable := dep.Spec.Replicas - maxUnavail
	newRSUnavailable := saturatingSub(newRS.Spec.Replicas, newRS.Status.AvailableReplicas)
	maxScaledDown := saturatingSub(saturatingSub(allPodsCount, minAvailable), newRSUnavailable)
	if maxScaledDown <= 0 {
		return nil
	}

	// Clean up unhealthy replicas first; otherwise they block the
	// deployment and cause a timeout.
	cleaned, act := cleanupUnhealthyReplicas(oldActive, dep, maxScaledDown)
	if act != nil {
		return act
	}

	allWithCleaned := append(append([]*resources.ReplicaSet{}, cleaned...), newRS)
	return scaleDownOldReplicaSetsForRollingUpdate(allWithCleaned, cleaned, dep)
}

func cleanupUnhealthyReplicas(oldActive []*resources.ReplicaSet, dep *resources.Deployment, maxCleanupCount int32) ([]*resources.ReplicaSet, *action.Action) {
	sorted := append([]*resources.ReplicaSet{}, oldActive...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Meta.CreationTimestamp.Before(&sorted[j].Meta.CreationTimestamp)
	})

	var totalScaledDown int32
	var updated []*resources.ReplicaSet
	for _, rs := range sorted {
		if totalScaledDown >= maxCleanupCount {
			break
		}
		if rs.Spec.Replicas == 0 {
			continue
		}
		if rs.Spec.Replicas == rs.Status.AvailableReplicas {
			continue
		}
		scaledDownCount := minInt32(maxCleanupCount-totalScaledDown, saturatingSub(rs.Spec.Replicas, rs.Status.AvailableReplicas))
		newCount := rs.Spec.Replicas - scaledDownCount
		if act := scaleReplicaSetAndRecordEvent(rs, newCount, dep); act != nil {
			updated = append(updated, act.ReplicaSet)
		}
		totalScaledDown += scaledDownCount
	}
	if len(updated) > 0 {
		return nil, &action.Action{Kind: action.UpdateReplicaSets, ReplicaSets: updated}
	}
	return oldActive, nil
}

func scaleDownOldReplicaSetsForRollingUpdate(all, old []*resources.ReplicaSet, dep *resources.Deployment) *action.Action {
	maxUnavail := maxUnavailable(dep)
	minAvailable := dep.Spec.Replicas - maxUnavail
	availablePodCount := availableReplicaCountForReplicaSets(all)
	if availablePodCount <= minAvailable {
		return nil
	}

	sorted := append([]*resources.ReplicaSet{}, old...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Meta.CreationTimestamp.Before(&sorted[j].Meta.CreationTimestamp)
	})

	totalScaleDownCount := availablePodCount - minAvailable
	var totalScaledDown int32
	var updated []*resources.ReplicaSet
	for _, rs := range sorted {
		if totalScaledDown >= totalScaleDownCount {
			break
		}
		if rs.Spec.Replicas == 0 {
			continue
		}
		scaledDownCount := minInt32(rs.Spec.Replicas, totalScaleDownCount-totalScaledDown)
		newCount := rs.Spec.Replicas - scaledDownCount
		if act := scaleReplicaSetAndRecordEvent(rs, newCount, dep); act != nil {
			updated = append(updated, act.ReplicaSet)
		}
		totalScaledDown += scaledDownCount
	}
	if len(updated) == 0 {
		return nil
	}
	return &action.Action{Kind: action.UpdateReplicaSets, ReplicaSets: updated}
}

// syncRolloutStatus recomputes status during a rollout, maintaining the
// Progressing condition's NewReplicaSetAvailable / ReplicaSetUpdated /
// ProgressDeadlineExceeded reasons and the ReplicaFailure condition.
func syncRolloutStatus(all []*resources.ReplicaSet, newRS *resources.ReplicaSet, dep *resources.Deployment, now time.Time) *action.Action {
	newStatus := calculateDeploymentStatus(all, newRS, dep, now)

	if !dep.HasProgressDeadline() {
		newStatus.Conditions = removeConditionType(newStatus.Conditions, resources.ConditionProgressing)
	}

	currentCond := getDeploymentCondition(dep.Status.Conditions, resources.ConditionProgressing)
	isCompleteDeployment := newStatus.Replicas == newStatus.UpdatedReplicas &&
		currentCond != nil && currentCond.Reason == resources.ReasonNewRSAvailable

	if dep.HasProgressDeadline() && !isCompleteDeployment {
		switch {
		case deploymentComplete(dep, &newStatus):
			msg := fmt.Sprintf("Deployment %s has successfully progressed.", dep.Meta.Name)
			cond := newDeploymentCondition(resources.ConditionProgressing, metav1.ConditionTrue, resources.ReasonNewRSAvailable, msg, now)
			newStatus.Conditions = setDeploymentCondition(newStatus.Conditions, cond)
		case deploymentProgressing(dep, &newStatus):
			msg := fmt.Sprintf("Deployment %s is progressing.", dep.Meta.Name)
			cond := newDeploymentCondition(resources.ConditionProgressing, metav1.ConditionTrue, resources.ReasonReplicaSetUpdated, msg, now)
			if currentCond != nil && currentCond.Status == metav1.ConditionTrue {
				cond.LastTransitionTime = currentCond.LastTransitionTime
			}
			newStatus.Conditions = removeConditionType(newStatus.Conditions, resources.ConditionProgressing)
			newStatus.Conditions = setDeploymentCondition(newStatus.Conditions, cond)
		case deploymentTimedOut(dep, &newStatus, now):
			msg := fmt.Sprintf("Deployment %s has timed out progressing.", dep.Meta.Name)
			cond := newDeploymentCondition(resources.ConditionProgressing, metav1.ConditionFalse, resources.ReasonTimedOut, msg, now)
			newStatus.Conditions = setDeploymentCondition(newStatus.Conditions, cond)
		}
	}

	failures := getReplicaFailures(all, newRS)
	if len(failures) > 0 {
		newStatus.Conditions = setDeploymentCondition(newStatus.Conditions, failures[0])
	} else {
		newStatus.Conditions = removeConditionType(newStatus.Conditions, resources.ConditionReplicaFailure)
	}

	if deploymentStatusEqual(dep.Status, newStatus) {
		return nil
	}

	out := dep.DeepCopyObject().(*resources.Deployment)
	out.Status = newStatus
	return &action.Action{Kind: action.UpdateDeploymentStatus, Deployment: out}
}

func deploymentComplete(dep *resources.Deployment, status *resources.DeploymentStatus) bool {
	return status.UpdatedReplicas == dep.Spec.Replicas &&
		status.Replicas == dep.Spec.Replicas &&
		status.AvailableReplicas == dep.Spec.Replicas &&
		status.ObservedGeneration >= dep.Meta.Generation
}

func deploymentProgressing(dep *resources.Deployment, newStatus *resources.DeploymentStatus) bool {
	old := dep.Status
	oldOldReplicas := old.Replicas - old.UpdatedReplicas
	newOldReplicas := newStatus.Replicas - newStatus.UpdatedReplicas
	return newStatus.UpdatedReplicas > old.UpdatedReplicas ||
		newOldReplicas < oldOldReplicas ||
		newStatus.ReadyReplicas > old.ReadyReplicas ||
		newStatus.AvailableReplicas > old.AvailableReplicas
}

// deploymentTimedOut reports whether the Progressing condition has stood
// without becoming NewReplicaSetAvailable for longer than
// progressDeadlineSeconds. Uses LastTransitionTime as the progress clock:
// this model's conditions carry no separate LastUpdateTime field.
func deploymentTimedOut(dep *resources.Deployment, newStatus *resources.DeploymentStatus, now time.Time) bool {
	if !dep.HasProgressDeadline() {
		return false
	}
	cond := getDeploymentCondition(newStatus.Conditions, resources.ConditionProgressing)
	if cond == nil {
		return false
	}
	if cond.Reason == resources.ReasonNewRSAvailable {
		return false
	}
	if cond.Reason == resources.ReasonTimedOut {
		return true
	}
	deadline := time.Duration(*dep.Spec.ProgressDeadlineSeconds) * time.Second
	return cond.LastTransitionTime.Add(deadline).Before(now)
}

func getReplicaFailures(all []*resources.ReplicaSet, newRS *resources.ReplicaSet) []metav1.Condition {
	var conditions []metav1.Condition
	if newRS != nil {
		for _, c := range newRS.Status.Conditions {
			if c.Type == resources.ReplicaSetConditionReplicaFailure {
				conditions = append(conditions, replicaSetConditionToDeploymentCondition(c))
			}
		}
	}
	if len(conditions) > 0 {
		return conditions
	}
	for _, rs := range all {
		for _, c := range rs.Status.Conditions {
			if c.Type == resources.ReplicaSetConditionReplicaFailure {
				conditions = append(conditions, replicaSetConditionToDeploymentCondition(c))
			}
		}
	}
	return conditions
}

func replicaSetConditionToDeploymentCondition(c metav1.Condition) metav1.Condition {
	out := c
	out.Type = resources.ConditionReplicaFailure
	return out
}

// rolloutRecreate drives the Recreate strategy: scale old ReplicaSets to
// zero and wait for their pods to actually finish before creating and
// scaling up the new one, so old and new pods are never up at once.
func rolloutRecreate(view *resources.View, dep *resources.Deployment, owned, allRS []*resources.ReplicaSet, now time.Time) *action.Action {
	newRS, oldRS := getAllReplicaSetsAndSyncRevision(dep, owned, allRS, false, now)
	if newRS.act != nil {
		return newRS.act
	}
	all := append(append([]*resources.ReplicaSet{}, oldRS...))
	if newRS.rs != nil {
		all = append(all, newRS.rs)
	}
	activeOld := filterActiveReplicaSets(oldRS)

	if act := scaleDownOldReplicaSetsForRecreate(activeOld, dep); act != nil {
		return act
	}

	if oldPodsRunning(view, newRS.rs, oldRS) {
		return syncRolloutStatus(all, newRS.rs, dep, now)
	}

	if newRS.rs == nil {
		created, createdOldRS := getAllReplicaSetsAndSyncRevision(dep, owned, allRS, true, now)
		if created.act != nil {
			return created.act
		}
		newRS = created
		oldRS = createdOldRS
		all = append(all, newRS.rs)
	}

	if act := scaleUpNewReplicaSetForRecreate(newRS.rs, dep); act != nil {
		return act
	}

	if deploymentComplete(dep, &dep.Status) {
		if act := cleanupDeployment(oldRS, dep); act != nil {
			return act
		}
	}

	return syncRolloutStatus(all, newRS.rs, dep, now)
}

func scaleDownOldReplicaSetsForRecreate(oldActive []*resources.ReplicaSet, dep *resources.Deployment) *action.Action {
	var updated []*resources.ReplicaSet
	for _, rs := range oldActive {
		if rs.Spec.Replicas == 0 {
			continue
		}
		if act := scaleReplicaSetAndRecordEvent(rs, 0, dep); act != nil {
			updated = append(updated, act.ReplicaSet)
		}
	}
	if len(updated) == 0 {
		return nil
	}
	return &action.Action{Kind: action.UpdateReplicaSets, ReplicaSets: updated}
}

// oldPodsRunning reports whether any pod belonging to an old ReplicaSet is
// still non-terminal, the gate that keeps Recreate from scaling the new
// ReplicaSet up before the old one has actually finished. Checks live pods
// directly rather than only status.replicas, since this in-memory model
// can observe them exactly.
func oldPodsRunning(view *resources.View, newRS *resources.ReplicaSet, oldRS []*resources.ReplicaSet) bool {
	if actualReplicaCountForReplicaSets(oldRS) > 0 {
		return true
	}
	for _, pod := range view.Pods.List() {
		ref, ok := pod.Meta.ControllerRef()
		if !ok {
			continue
		}
		if newRS != nil && ref.UID == newRS.Meta.UID {
			continue
		}
		ownedByOld := false
		for _, rs := range oldRS {
			if rs.Meta.UID == ref.UID {
				ownedByOld = true
				break
			}
		}
		if !ownedByOld {
			continue
		}
		if pod.Status.Phase == resources.PodFailed || pod.Status.Phase == resources.PodSucceeded {
			continue
		}
		return true
	}
	return false
}

func scaleUpNewReplicaSetForRecreate(newRS *resources.ReplicaSet, dep *resources.Deployment) *action.Action {
	return scaleReplicaSetAndRecordEvent(newRS, dep.Spec.Replicas, dep)
}

// getProportion estimates how many replicas rs should gain (or lose, if
// negative) this tick, clamped so the total never exceeds what's allowed
// to be added or removed across every ReplicaSet combined.
func getProportion(rs *resources.ReplicaSet, dep *resources.Deployment, toAdd, added int32) int32 {
	if rs.Spec.Replicas == 0 || toAdd == 0 || toAdd == added {
		return 0
	}
	fraction := getReplicaSetFraction(rs, dep)
	allowed := toAdd - added
	if toAdd > 0 {
		return minInt32(fraction, allowed)
	}
	return maxInt32(fraction, allowed)
}

func getReplicaSetFraction(rs *resources.ReplicaSet, dep *resources.Deployment) int32 {
	if dep.Spec.Replicas == 0 {
		return -rs.Spec.Replicas
	}
	depReplicas := dep.Spec.Replicas + annotationMaxSurge(dep)
	annotatedReplicas := dep.Status.Replicas
	if v, ok := getMaxReplicasAnnotation(rs); ok {
		annotatedReplicas = v
	}
	if annotatedReplicas == 0 {
		return 0
	}
	newSize := math.Round(float64(rs.Spec.Replicas) * float64(depReplicas) / float64(annotatedReplicas))
	return int32(newSize) - rs.Spec.Replicas
}

func getMaxReplicasAnnotation(rs *resources.ReplicaSet) (int32, bool) {
	return intAnnotation(rs.Meta.Annotations, resources.AnnotationMaxReplicas)
}

// setNewReplicaSetAnnotations copies the deployment's annotations onto rs,
// advances rs's revision annotation when it's behind, and appends the
// superseded revision to the truncated revision-history annotation.
func setNewReplicaSetAnnotations(dep *resources.Deployment, rs *resources.ReplicaSet, newRevision string, exists bool) bool {
	changed := copyDeploymentAnnotationsToReplicaSet(dep, rs)

	oldRevisionStr, hadOld := rs.Meta.Annotations[resources.AnnotationRevision]
	var oldRevision int64
	if hadOld {
		v, err := strconv.ParseInt(oldRevisionStr, 10, 64)
		if err != nil {
			return false
		}
		oldRevision = v
	}
	newRevisionInt, err := strconv.ParseInt(newRevision, 10, 64)
	if err != nil {
		return false
	}

	if oldRevision < newRevisionInt {
		if rs.Meta.Annotations == nil {
			rs.Meta.Annotations = map[string]string{}
		}
		rs.Meta.Annotations[resources.AnnotationRevision] = newRevision
		changed = true

		if hadOld {
			history := rs.Meta.Annotations[resources.AnnotationRevisionHistory]
			oldRevisions := strings.Split(history, ",")
			if oldRevisions[0] == "" {
				rs.Meta.Annotations[resources.AnnotationRevisionHistory] = oldRevisionStr
			} else {
				totalLen := len(history) + len(oldRevisionStr) + 1
				start := 0
				for totalLen > resources.MaxRevisionHistoryChars && start < len(oldRevisions) {
					totalLen -= len(oldRevisions[start]) + 1
					start++
				}
				if totalLen <= resources.MaxRevisionHistoryChars {
					kept := append(append([]string{}, oldRevisions[start:]...), oldRevisionStr)
					rs.Meta.Annotations[resources.AnnotationRevisionHistory] = strings.Join(kept, ",")
				}
			}
		}
	}

	if !exists && setReplicasAnnotations(rs, dep.Spec.Replicas, dep.Spec.Replicas+annotationMaxSurge(dep)) {
		changed = true
	}
	return changed
}

func copyDeploymentAnnotationsToReplicaSet(dep *resources.Deployment, rs *resources.ReplicaSet) bool {
	changed := false
	for k, v := range dep.Meta.Annotations {
		if skipCopyAnnotation(k) {
			continue
		}
		if existing, ok := rs.Meta.Annotations[k]; ok && existing == v {
			continue
		}
		if rs.Meta.Annotations == nil {
			rs.Meta.Annotations = map[string]string{}
		}
		rs.Meta.Annotations[k] = v
		changed = true
	}
	return changed
}

func intAnnotation(m map[string]string, key string) (int32, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(n), true
}

func revisionAnnotationInt(rs *resources.ReplicaSet) int64 {
	v, ok := rs.Meta.Annotations[resources.AnnotationRevision]
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func saturatingSub(a, b int32) int32 {
	if b >= a {
		return 0
	}
	return a - b
}

func minInt32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxInt32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
