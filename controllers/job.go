package controllers

import (
	"fmt"
	"strconv"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"

	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/resources"
)

const jobControllerKind = "Job"

// stepJob implements §4.8: select pods by selector (Job does not claim/
// adopt — every pod it creates already carries its owner reference), then
// walk the finalizer-removal / failure-policy / completion / suspend state
// machine, emitting at most one action per tick.
func stepJob(view *resources.View, local LocalState, now time.Time) (*action.Action, LocalState) {
	for _, job := range view.Jobs.List() {
		if act := reconcileJob(job, view.Pods.List(), now); act != nil {
			return act, local
		}
	}
	return action.NoAction, local
}

func reconcileJob(job *resources.Job, allPods []*resources.Pod, now time.Time) *action.Action {
	sel, err := selectorFor(job.Spec.Selector)
	if err != nil {
		return nil
	}
	var pods []*resources.Pod
	for _, p := range allPods {
		if sel.Matches(labels.Set(p.Meta.Labels)) {
			pods = append(pods, p)
		}
	}

	// trackJobStatusAndRemoveFinalizers: a finished pod still carrying the
	// tracking finalizer has been counted (or is about to be) but not yet
	// released; release it before doing anything else.
	for _, p := range pods {
		if (p.Status.Phase == resources.PodSucceeded || p.Status.Phase == resources.PodFailed) &&
			p.Meta.HasFinalizer(resources.JobTrackingFinalizer) {
			cp := p.DeepCopyObject().(*resources.Pod)
			cp.Meta.RemoveFinalizer(resources.JobTrackingFinalizer)
			return &action.Action{Kind: action.UpdatePod, Pod: cp}
		}
	}

	active := filterActivePods(pods)
	newSucceeded, newFailed := newFinishedPods(job, pods)

	succeeded := job.Status.Succeeded + int32(len(newSucceeded)) + int32(len(job.Status.UncountedTerminatedPods.Succeeded))
	failed := job.Status.Failed + nonIgnoredFailedCount(job, newFailed) + int32(len(job.Status.UncountedTerminatedPods.Failed))
	ready := countReadyPods(active)

	newStatus := job.Status
	if newStatus.StartTime == nil && !job.Spec.Suspend {
		t := metav1.NewTime(now)
		newStatus.StartTime = &t
	}

	exceedsBackoffLimit := failed > job.Spec.BackoffLimit

	finishedCond, finishing := determineFinishedCondition(job, pods, exceedsBackoffLimit, now)

	if finishing {
		if len(active) > 0 {
			return &action.Action{Kind: action.SoftDeletePod, Pod: active[0]}
		}
	}

	if job.Spec.CompletionMode == resources.IndexedCompletion {
		indexes := succeededIndexSet(job, pods)
		succeeded = int32(len(indexes))
		newStatus.CompletedIndexes = resources.FormatIndexList(indexes)
	}

	manageJobCalled := false
	if !finishing {
		if !job.Meta.IsTerminating() {
			if act := manageJob(job, active, succeeded, now); act != nil {
				return act
			}
			manageJobCalled = true
		}

		complete := false
		if job.Spec.Completions == nil {
			complete = succeeded > 0 && len(active) == 0
		} else {
			complete = succeeded >= *job.Spec.Completions && len(active) == 0
		}

		if complete {
			finishedCond = newJobCondition(resources.JobConditionComplete, metav1.ConditionTrue, "", "", now)
			finishing = true
		} else if manageJobCalled {
			if job.Spec.Suspend {
				if c, changed := ensureJobConditionStatus(newStatus.Conditions, resources.JobConditionSuspended,
					metav1.ConditionTrue, "JobSuspended", "Job suspended", now); changed {
					newStatus.Conditions = c
				}
			} else if c, changed := ensureJobConditionStatus(newStatus.Conditions, resources.JobConditionSuspended,
				metav1.ConditionFalse, "JobResumed", "Job resumed", now); changed {
				newStatus.Conditions = c
				t := metav1.NewTime(now)
				newStatus.StartTime = &t
			}
		}
	}

	if finishing {
		newStatus.Conditions = setJobCondition(newStatus.Conditions, finishedCond)
		if finishedCond.Type == resources.JobConditionComplete || finishedCond.Reason != "" && finishedCond.Type == resources.JobConditionFailed {
			t := metav1.NewTime(now)
			newStatus.CompletionTime = &t
		}
	}

	newStatus.Active = int32(len(active))
	newStatus.Ready = ready
	newStatus.Succeeded = succeeded
	newStatus.Failed = failed

	if jobStatusEqual(job.Status, newStatus) {
		return nil
	}
	cp := job.DeepCopyObject().(*resources.Job)
	cp.Status = newStatus
	return &action.Action{Kind: action.UpdateJobStatus, Job: cp}
}

// determineFinishedCondition resolves the Failed/FailureTarget condition a
// tick should move toward, in the same priority order the reference
// controller checks them. "finishing" true means delete-active-pods should
// run before the condition is actually committed.
func determineFinishedCondition(job *resources.Job, pods []*resources.Pod, exceedsBackoffLimit bool, now time.Time) (metav1.Condition, bool) {
	if c := getDeploymentCondition(job.Status.Conditions, "FailureTarget"); c != nil {
		return newJobCondition(resources.JobConditionFailed, metav1.ConditionTrue, c.Reason, c.Message, now), true
	}
	if msg, ok := getFailJobMessage(job, pods); ok {
		return newJobCondition("FailureTarget", metav1.ConditionTrue, resources.JobReasonPodFailurePolicy, msg, now), true
	}
	if exceedsBackoffLimit {
		return newJobCondition(resources.JobConditionFailed, metav1.ConditionTrue, resources.JobReasonBackoffLimitExceeded,
			"Job has reached the specified backoff limit", now), true
	}
	if pastActiveDeadline(job, now) {
		return newJobCondition(resources.JobConditionFailed, metav1.ConditionTrue, resources.JobReasonDeadlineExceeded,
			"Job was active longer than specified deadline", now), true
	}
	return metav1.Condition{}, false
}

func newJobCondition(condType string, status metav1.ConditionStatus, reason, message string, now time.Time) metav1.Condition {
	t := metav1.NewTime(now)
	return metav1.Condition{Type: condType, Status: status, Reason: reason, Message: message, LastTransitionTime: t}
}

func setJobCondition(conditions []metav1.Condition, c metav1.Condition) []metav1.Condition {
	out := removeConditionType(conditions, c.Type)
	return append(out, c)
}

// ensureJobConditionStatus appends or updates the condition, except it
// never appends a brand-new False condition (going from absent to False is
// meaningless — matches the reference's ensure_job_condition_status).
func ensureJobConditionStatus(conditions []metav1.Condition, condType string, status metav1.ConditionStatus, reason, message string, now time.Time) ([]metav1.Condition, bool) {
	existing := getDeploymentCondition(conditions, condType)
	if existing != nil {
		if existing.Status == status && existing.Reason == reason && existing.Message == message {
			return conditions, false
		}
		return setJobCondition(conditions, newJobCondition(condType, status, reason, message, now)), true
	}
	if status == metav1.ConditionFalse {
		return conditions, false
	}
	return append(append([]metav1.Condition{}, conditions...), newJobCondition(condType, status, reason, message, now)), true
}

// newFinishedPods partitions pods into newly-succeeded/newly-failed ones
// not yet accounted for in uncountedTerminatedPods, honoring the indexed
// mode's out-of-range-index exclusion.
func newFinishedPods(job *resources.Job, pods []*resources.Pod) (succeeded, failed []*resources.Pod) {
	uncountedSucceeded := stringSet(job.Status.UncountedTerminatedPods.Succeeded)
	uncountedFailed := stringSet(job.Status.UncountedTerminatedPods.Failed)

	for _, p := range pods {
		if !p.Meta.HasFinalizer(resources.JobTrackingFinalizer) {
			continue
		}
		if job.Spec.CompletionMode == resources.IndexedCompletion {
			idx, ok := completionIndex(p)
			if !ok || (job.Spec.Completions != nil && idx >= *job.Spec.Completions) {
				continue
			}
		}
		switch {
		case p.Status.Phase == resources.PodSucceeded && !uncountedSucceeded[string(p.Meta.UID)]:
			succeeded = append(succeeded, p)
		case isPodFailed(p, job) && !uncountedFailed[string(p.Meta.UID)]:
			failed = append(failed, p)
		}
	}
	return succeeded, failed
}

func stringSet(ss []string) map[string]bool {
	out := make(map[string]bool, len(ss))
	for _, s := range ss {
		out[s] = true
	}
	return out
}

func completionIndex(p *resources.Pod) (int32, bool) {
	return intAnnotation(p.Meta.Annotations, resources.JobCompletionIndexAnnotation)
}

// isPodFailed reports whether a pod counts as failed: a policy-governed
// job only counts explicit Failed phase; otherwise a deleted-but-not-
// succeeded pod is also treated as a failure (an orphan that will never
// reach Failed on its own).
func isPodFailed(p *resources.Pod, job *resources.Job) bool {
	if p.Status.Phase == resources.PodFailed {
		return true
	}
	if job.Spec.PodFailurePolicy != nil {
		return false
	}
	return p.Meta.IsTerminating() && p.Status.Phase != resources.PodSucceeded
}

// nonIgnoredFailedCount counts newly-failed pods minus any the
// podFailurePolicy marks Ignore.
func nonIgnoredFailedCount(job *resources.Job, failedPods []*resources.Pod) int32 {
	if job.Spec.PodFailurePolicy == nil {
		return int32(len(failedPods))
	}
	var n int32
	for _, p := range failedPods {
		_, countFailed := matchPodFailurePolicy(job.Spec.PodFailurePolicy, p)
		if countFailed {
			n++
		}
	}
	return n
}

// matchPodFailurePolicy returns the FailJob message (if any rule matched
// FailJob) and whether the failure should be counted at all (false only
// for an Ignore match); the first matching rule wins, except that a
// matching FailIndex rule passes on to the next rule.
func matchPodFailurePolicy(pfp *resources.PodFailurePolicy, pod *resources.Pod) (string, bool) {
	for _, rule := range pfp.Rules {
		if rule.OnExitCodes != nil {
			if cs, ok := matchOnExitCodes(pod.Status.ContainerStatuses, rule.OnExitCodes); ok {
				switch rule.Action {
				case resources.ActionIgnore:
					return "", false
				case resources.ActionCount:
					return "", true
				case resources.ActionFailIndex:
					continue
				case resources.ActionFailJob:
					return fmt.Sprintf("Container %s for pod %s/%s failed with exit code %d matching %s rule",
						cs.Name, pod.Meta.Namespace, pod.Meta.Name, *cs.ExitCode, rule.Action), true
				}
			}
			continue
		}
		if len(rule.OnPodConditions) > 0 {
			if matchOnPodConditions(pod.Status.Conditions, rule.OnPodConditions) {
				switch rule.Action {
				case resources.ActionIgnore:
					return "", false
				case resources.ActionCount:
					return "", true
				case resources.ActionFailIndex:
					continue
				case resources.ActionFailJob:
					return fmt.Sprintf("Pod %s/%s matched a %s rule", pod.Meta.Namespace, pod.Meta.Name, rule.Action), true
				}
			}
		}
	}
	return "", true
}

func matchOnExitCodes(statuses []resources.ContainerStatus, req *resources.PodFailurePolicyOnExitCodesRequirement) (resources.ContainerStatus, bool) {
	for _, cs := range statuses {
		if cs.ExitCode == nil || *cs.ExitCode == 0 {
			continue
		}
		if req.ContainerName != nil && *req.ContainerName != cs.Name {
			continue
		}
		if exitCodeMatches(*cs.ExitCode, req) {
			return cs, true
		}
	}
	return resources.ContainerStatus{}, false
}

func exitCodeMatches(exitCode int32, req *resources.PodFailurePolicyOnExitCodesRequirement) bool {
	switch req.Operator {
	case resources.OpIn:
		for _, v := range req.Values {
			if v == exitCode {
				return true
			}
		}
		return false
	case resources.OpNotIn:
		for _, v := range req.Values {
			if v == exitCode {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func matchOnPodConditions(conditions []metav1.Condition, patterns []resources.PodFailurePolicyOnPodConditionsPattern) bool {
	for _, c := range conditions {
		for _, p := range patterns {
			if c.Type == p.Type && c.Status == p.Status {
				return true
			}
		}
	}
	return false
}

func getFailJobMessage(job *resources.Job, pods []*resources.Pod) (string, bool) {
	if job.Spec.PodFailurePolicy == nil {
		return "", false
	}
	for _, p := range pods {
		if !isPodFailed(p, job) {
			continue
		}
		if msg, _ := matchPodFailurePolicy(job.Spec.PodFailurePolicy, p); msg != "" {
			return msg, true
		}
	}
	return "", false
}

func pastActiveDeadline(job *resources.Job, now time.Time) bool {
	if job.Spec.ActiveDeadlineSeconds == nil || job.Status.StartTime == nil || job.Spec.Suspend {
		return false
	}
	deadline := time.Duration(*job.Spec.ActiveDeadlineSeconds) * time.Second
	return !job.Status.StartTime.Add(deadline).After(now)
}

// succeededIndexSet unions the previously-recorded completed indexes with
// any newly succeeded, finalizer-bearing pod whose index is in range.
func succeededIndexSet(job *resources.Job, pods []*resources.Pod) []int32 {
	prev, _ := resources.ParseIndexList(job.Status.CompletedIndexes)
	set := make(map[int32]bool, len(prev))
	for _, i := range prev {
		set[i] = true
	}
	for _, p := range pods {
		if p.Status.Phase != resources.PodSucceeded || !p.Meta.HasFinalizer(resources.JobTrackingFinalizer) {
			continue
		}
		idx, ok := completionIndex(p)
		if !ok || (job.Spec.Completions != nil && idx >= *job.Spec.Completions) {
			continue
		}
		set[idx] = true
	}
	out := make([]int32, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	return out
}

func countReadyPods(pods []*resources.Pod) int32 {
	var n int32
	for _, p := range pods {
		if isPodReady(p) {
			n++
		}
	}
	return n
}

// manageJob creates up to one pod this tick when active+succeeded is still
// below the job's target (parallelism-bounded, and completions-bounded for
// a job that declares completions), stamping the completion-index
// annotation and job-tracking finalizer indexed mode and pod reuse need.
func manageJob(job *resources.Job, active []*resources.Pod, succeeded int32, now time.Time) *action.Action {
	if job.Spec.Suspend {
		if len(active) == 0 {
			return nil
		}
		return &action.Action{Kind: action.SoftDeletePod, Pod: active[0]}
	}

	if job.Spec.CompletionMode == resources.IndexedCompletion {
		return manageIndexedJob(job, active)
	}

	want := job.Spec.Parallelism
	if job.Spec.Completions != nil {
		remaining := *job.Spec.Completions - succeeded
		if remaining < want {
			want = remaining
		}
	}
	if int32(len(active)) >= want {
		return nil
	}
	pod := podFromTemplate(&job.Meta, job.Spec.Template, jobControllerKind)
	pod.Meta.Name = fmt.Sprintf("%s-%d", job.Meta.Name, len(active))
	pod.Meta.Finalizers = append(pod.Meta.Finalizers, resources.JobTrackingFinalizer)
	pod.Meta.Labels[resources.JobNameLabel] = job.Meta.Name
	return &action.Action{Kind: action.CreatePod, Pod: pod}
}

// manageIndexedJob creates a pod for the lowest incomplete, not-yet-active
// index under completions, up to parallelism concurrently active indexes.
func manageIndexedJob(job *resources.Job, active []*resources.Pod) *action.Action {
	if job.Spec.Completions == nil {
		return nil
	}
	activeIndexes := make(map[int32]bool, len(active))
	for _, p := range active {
		if idx, ok := completionIndex(p); ok {
			activeIndexes[idx] = true
		}
	}
	completed, _ := resources.ParseIndexList(job.Status.CompletedIndexes)
	completedSet := make(map[int32]bool, len(completed))
	for _, i := range completed {
		completedSet[i] = true
	}

	if int32(len(active)) >= job.Spec.Parallelism {
		return nil
	}
	for idx := int32(0); idx < *job.Spec.Completions; idx++ {
		if activeIndexes[idx] || completedSet[idx] {
			continue
		}
		pod := podFromTemplate(&job.Meta, job.Spec.Template, jobControllerKind)
		pod.Meta.Name = fmt.Sprintf("%s-%d", job.Meta.Name, idx)
		pod.Meta.Finalizers = append(pod.Meta.Finalizers, resources.JobTrackingFinalizer)
		pod.Meta.Labels[resources.JobNameLabel] = job.Meta.Name
		pod.Meta.Annotations[resources.JobCompletionIndexAnnotation] = strconv.FormatInt(int64(idx), 10)
		return &action.Action{Kind: action.CreatePod, Pod: pod}
	}
	return nil
}

func jobStatusEqual(a, b resources.JobStatus) bool {
	if a.Active != b.Active || a.Ready != b.Ready || a.Succeeded != b.Succeeded || a.Failed != b.Failed ||
		a.CompletedIndexes != b.CompletedIndexes {
		return false
	}
	if (a.StartTime == nil) != (b.StartTime == nil) {
		return false
	}
	if a.StartTime != nil && !a.StartTime.Equal(b.StartTime) {
		return false
	}
	if (a.CompletionTime == nil) != (b.CompletionTime == nil) {
		return false
	}
	if a.CompletionTime != nil && !a.CompletionTime.Equal(b.CompletionTime) {
		return false
	}
	return resources.ConditionsEqual(a.Conditions, b.Conditions)
}
